// Package worker consumes the extract queue and runs the background
// pipeline of each task.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/OFFIS-RIT/kgbuilder/internal/queue"
	"github.com/OFFIS-RIT/kgbuilder/internal/timing"
	"github.com/OFFIS-RIT/kgbuilder/pkg/ai"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"

	"github.com/panjf2000/ants/v2"
	"github.com/rabbitmq/amqp091-go"
)

// Config tunes a Worker.
type Config struct {
	// Concurrency is the number of tasks processed at the same time.
	Concurrency int
	// MaxRetries is the number of redeliveries before a message is dead
	// lettered.
	MaxRetries int
	// StaleAfter is how long an unfinished task may stay untouched before
	// the recovery loop republishes it.
	StaleAfter time.Duration
	// RecoverEvery is the interval of the recovery loop. Zero disables it.
	RecoverEvery time.Duration
}

// Worker runs build tasks delivered on queue.ExtractQueue.
type Worker struct {
	conn   *amqp091.Connection
	runner queue.TaskRunner
	tasks  queue.TaskLister
	ai     []ai.GraphAIClient
	cfg    Config
}

func New(conn *amqp091.Connection, runner queue.TaskRunner, tasks queue.TaskLister, cfg Config, aiClients ...ai.GraphAIClient) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &Worker{conn: conn, runner: runner, tasks: tasks, ai: aiClients, cfg: cfg}
}

// Run consumes until ctx is done, then waits for running tasks.
func (w *Worker) Run(ctx context.Context) error {
	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()

	// prefetch bounds the deliveries held by this worker to the pool size
	if err := ch.Qos(w.cfg.Concurrency, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	pool, err := ants.NewPool(w.cfg.Concurrency, ants.WithPanicHandler(func(p any) {
		logger.Error("[Worker] Task panicked", "panic", p)
	}))
	if err != nil {
		return err
	}
	defer pool.Release()

	msgs, err := ch.ConsumeWithContext(
		ctx,
		queue.ExtractQueue,
		"extract_queue_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	pub := &lockedChannel{ch: ch}
	if w.cfg.RecoverEvery > 0 && w.tasks != nil {
		go w.recoverLoop(ctx, pub)
	}

	var wg sync.WaitGroup
	logger.Info("[Worker] Listening for messages", "queue", queue.ExtractQueue, "concurrency", w.cfg.Concurrency)

	for {
		select {
		case <-ctx.Done():
			logger.Info("[Worker] Stopping consumer, waiting for running tasks")
			wg.Wait()
			return nil
		case msg, ok := <-msgs:
			if !ok {
				wg.Wait()
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("delivery channel closed")
			}
			wg.Add(1)
			err := pool.Submit(func() {
				defer wg.Done()
				w.handle(ctx, pub, msg)
			})
			if err != nil {
				wg.Done()
				logger.Error("[Worker] Failed to schedule message", "err", err)
				_ = msg.Nack(false, true)
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, pub queue.Channel, msg amqp091.Delivery) {
	start := time.Now()
	logger.Info("[Worker] Received message", "queue", queue.ExtractQueue, "delivery_tag", msg.DeliveryTag)

	err := queue.ProcessExtractMessage(ctx, w.runner, msg.Body)
	if err != nil {
		if ctx.Err() != nil {
			// shutting down, let the broker redeliver
			_ = msg.Nack(false, true)
			return
		}
		logger.Error("[Worker] Error processing message", "err", err)
		queue.HandleProcessingError(pub, msg, queue.ExtractQueue, w.cfg.MaxRetries, err)
	} else if err := msg.Ack(false); err != nil {
		logger.Error("[Worker] Failed to ack message", "err", err)
	}

	// metrics are shared by concurrent tasks, with Concurrency > 1 they are
	// an aggregate since the previous message
	var metrics ai.ModelMetrics
	for _, c := range w.ai {
		m := c.GetMetrics()
		metrics.InputTokens += m.InputTokens
		metrics.OutputTokens += m.OutputTokens
		metrics.TotalTokens += m.TotalTokens
		metrics.DurationMs += m.DurationMs
		c.ResetMetrics()
	}
	timing.LogTaskMetrics(taskIDOf(msg.Body), time.Since(start), metrics)
}

func (w *Worker) recoverLoop(ctx context.Context, pub queue.Channel) {
	ticker := time.NewTicker(w.cfg.RecoverEvery)
	defer ticker.Stop()
	for {
		if _, err := queue.RecoverStaleTasks(ctx, pub, w.tasks, w.cfg.StaleAfter, time.Now()); err != nil {
			logger.Error("[Worker] Stale task recovery failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// lockedChannel serialises publishing on a shared channel.
type lockedChannel struct {
	mu sync.Mutex
	ch *amqp091.Channel
}

func (l *lockedChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch.Publish(exchange, key, mandatory, immediate, msg)
}

func taskIDOf(body []byte) string {
	var msg queue.ExtractTaskMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return ""
	}
	return msg.TaskID
}
