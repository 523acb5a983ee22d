package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgbuilder/pkg/graph"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

// ErrMalformedMessage marks a message that can never be processed.
var ErrMalformedMessage = errors.New("malformed message")

// TaskRunner runs the background pipeline of one task.
type TaskRunner interface {
	Run(ctx context.Context, taskID string) error
}

// ProcessExtractMessage runs the task named by msg. Failures already
// recorded on the task and tasks that no longer exist are not errors of the
// message and are acknowledged.
func ProcessExtractMessage(ctx context.Context, runner TaskRunner, msg []byte) error {
	var data ExtractTaskMsg
	if err := json.Unmarshal(msg, &data); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if data.TaskID == "" {
		return fmt.Errorf("%w: missing task_id", ErrMalformedMessage)
	}

	err := runner.Run(ctx, data.TaskID)
	if err == nil {
		return nil
	}

	var failed *graph.TaskFailedError
	switch {
	case errors.As(err, &failed):
		logger.Warn("[Queue] Task failed", "task_id", data.TaskID, "stage", failed.Stage, "err", failed.Err)
		return nil
	case errors.Is(err, store.ErrNotFound):
		logger.Warn("[Queue] Task no longer exists, dropping message", "task_id", data.TaskID)
		return nil
	}
	return err
}
