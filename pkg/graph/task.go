package graph

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

const (
	msgParsing           = "正在解析文档..."
	msgParseFailed       = "文档解析失败"
	msgExtracting        = "正在提取知识..."
	msgNoValidResult     = "知识抽取未得到有效结果"
	msgExtractionFailed  = "知识抽取失败"
	msgAligning          = "正在进行实体对齐..."
	msgAligningDegraded  = "正在进行实体对齐...（Embedding 不可用，已降级）"
	msgNoEntities        = "未抽取到实体，无法对齐"
	msgAlignmentFailed   = "实体对齐失败"
	msgConfirming        = "对齐完成，等待用户确认"
	msgConfirmingDegrade = "对齐完成，等待用户确认（Embedding 已降级）"
	msgBuilding          = "正在写入图数据库..."
	msgBuildFailed       = "图谱构建失败"
	msgCompleted         = "构建完成"
	msgInterrupted       = "任务处理中断，请重新提交"
)

func ptr[T any](v T) *T { return &v }

// taskTracker keeps a local copy of a task in sync with the store and
// refuses status changes the pipeline does not allow.
type taskTracker struct {
	store store.TaskStore
	task  *common.BuildTask
}

func (g *GraphClient) loadTask(ctx context.Context, taskID string) (*taskTracker, error) {
	task, err := g.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", taskID, err)
	}
	return &taskTracker{store: g.tasks, task: task}, nil
}

// update writes upd. Progress never moves backwards.
func (t *taskTracker) update(ctx context.Context, upd common.TaskUpdate) error {
	if upd.Status != nil && !common.CanTransition(t.task.Status, *upd.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTaskState, t.task.Status, *upd.Status)
	}
	if upd.Progress != nil && *upd.Progress < t.task.Progress {
		upd.Progress = ptr(t.task.Progress)
	}
	if err := t.store.UpdateTask(ctx, t.task.ID, upd); err != nil {
		return fmt.Errorf("update task %s: %w", t.task.ID, err)
	}
	upd.Apply(t.task)
	return nil
}

func (t *taskTracker) stage(ctx context.Context, status common.TaskStatus, progress int, message string) error {
	return t.update(ctx, common.TaskUpdate{
		Status:       ptr(status),
		Progress:     ptr(progress),
		StageMessage: ptr(message),
	})
}

// fail records the failure on the task and returns a *TaskFailedError
// wrapping cause. extra may set additional fields.
func (t *taskTracker) fail(ctx context.Context, stage, message string, cause error, extra func(*common.TaskUpdate)) error {
	upd := common.TaskUpdate{
		Status:       ptr(common.TaskStatusFailed),
		StageMessage: ptr(message),
		ErrorMessage: ptr(cause.Error()),
	}
	if extra != nil {
		extra(&upd)
	}
	if err := t.update(ctx, upd); err != nil {
		logger.Error("[Task] Failed to record task failure", "task", t.task.ID, "stage", stage, "err", err)
	}
	return &TaskFailedError{TaskID: t.task.ID, Stage: stage, Err: cause}
}
