package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgbuilder/internal/db"
	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const retriesHeader = "x-retries"

// TaskLister lists tasks by status.
type TaskLister interface {
	ListTasks(ctx context.Context, filter db.TaskFilter) ([]common.BuildTask, int64, error)
}

// RecoverStaleTasks republishes tasks the background flow has not finished
// and that were not touched for staleAfter. Extraction is not resumable, the
// worker fails those tasks as interrupted when the message arrives.
func RecoverStaleTasks(ctx context.Context, ch Channel, tasks TaskLister, staleAfter time.Duration, now time.Time) (int, error) {
	statuses := []common.TaskStatus{
		common.TaskStatusPending,
		common.TaskStatusParsing,
		common.TaskStatusExtracting,
		common.TaskStatusAligning,
	}

	recovered := 0
	for _, status := range statuses {
		for page := 1; ; page++ {
			list, total, err := tasks.ListTasks(ctx, db.TaskFilter{Status: status, Page: page, Limit: 100})
			if err != nil {
				return recovered, fmt.Errorf("failed to list %s tasks: %w", status, err)
			}
			for _, t := range list {
				if now.Sub(t.UpdatedAt) < staleAfter {
					continue
				}
				body, err := json.Marshal(ExtractTaskMsg{TaskID: t.ID})
				if err != nil {
					return recovered, err
				}
				if err := PublishFIFO(ch, ExtractQueue, body); err != nil {
					logger.Error("[Queue] Failed to republish task", "task_id", t.ID, "err", err)
					continue
				}
				recovered++
				logger.Info("[Queue] Recovered stale task", "task_id", t.ID, "status", t.Status)
			}
			if int64(page*100) >= total || len(list) == 0 {
				break
			}
		}
	}

	if recovered == 0 {
		logger.Debug("[Queue] No stale tasks found")
	}
	return recovered, nil
}

// HandleProcessingError routes a failed delivery. Malformed messages and
// messages retried maxRetries times go to the dead letter queue, everything
// else to the retry queue.
func HandleProcessingError(ch Channel, msg amqp091.Delivery, queueName string, maxRetries int, cause error) {
	retries := retryCount(msg.Headers)

	if retries >= maxRetries || errors.Is(cause, ErrMalformedMessage) {
		dlqName := queueName + "_dlq"
		logger.Info("[Queue] Sending message to DLQ", "dlq", dlqName, "retries", retries)
		headers := copyHeaders(msg.Headers)
		headers["x-error"] = cause.Error()
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp091.Publishing{
				ContentType:  msg.ContentType,
				Body:         msg.Body,
				Headers:      headers,
				DeliveryMode: amqp091.Persistent,
			},
		)
		if pubErr != nil {
			logger.Error("[Queue] Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			_ = msg.Nack(false, true)
			return
		}
		_ = msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := copyHeaders(msg.Headers)
	headers[retriesHeader] = int32(retries + 1)

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if pubErr != nil {
		logger.Error("[Queue] Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func retryCount(h amqp091.Table) int {
	switch v := h[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func copyHeaders(h amqp091.Table) amqp091.Table {
	out := amqp091.Table{}
	for k, v := range h {
		out[k] = v
	}
	return out
}
