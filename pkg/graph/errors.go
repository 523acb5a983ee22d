package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTaskState is returned when an operation does not apply to the
// task's current status.
var ErrInvalidTaskState = errors.New("invalid task state")

// ExtractionDecodeError is returned when a model reply could not be decoded
// after all attempts.
type ExtractionDecodeError struct {
	ChunkIndex int
	ChunkCount int
	RawPreview string
	RawLength  int
	Err        error
}

func (e *ExtractionDecodeError) Error() string {
	return fmt.Sprintf("模型返回内容无法解析 (片段 %d/%d): %v", e.ChunkIndex+1, e.ChunkCount, e.Err)
}

func (e *ExtractionDecodeError) Unwrap() error { return e.Err }

// ExtractionValidationError lists why an extraction result is unusable.
type ExtractionValidationError struct {
	Errors []string
}

func (e *ExtractionValidationError) Error() string {
	if len(e.Errors) == 0 {
		return msgNoValidResult
	}
	return strings.Join(e.Errors, "；")
}

// AlignmentPreconditionError is returned when a task reaches alignment
// without draft entities.
type AlignmentPreconditionError struct {
	TaskID string
}

func (e *AlignmentPreconditionError) Error() string {
	return "未提取到任何实体，无法对齐"
}

// TaskFailedError reports a failure that has already been recorded on the
// task. Callers must not retry it.
type TaskFailedError struct {
	TaskID string
	Stage  string
	Err    error
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s failed during %s: %v", e.TaskID, e.Stage, e.Err)
}

func (e *TaskFailedError) Unwrap() error { return e.Err }
