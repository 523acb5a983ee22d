package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

// DeleteTaskHandler removes a task with its stored files, file records and
// the graph data only its files referenced.
func DeleteTaskHandler(c echo.Context) error {
	taskID := c.Param("taskId")
	ctx := c.Request().Context()
	a := app(c)

	task, err := a.Repo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(c, http.StatusNotFound, msgTaskNotFound)
		}
		return failErr(c, "get task", err)
	}

	fileIDs := task.FileIDs()
	files, err := a.Repo.GetFiles(ctx, fileIDs)
	if err != nil {
		return failErr(c, "get files", err)
	}
	for _, f := range files {
		if f.FilePath == "" {
			continue
		}
		if err := a.Storage.Delete(ctx, f.FilePath); err != nil {
			logger.Warn("[HTTP] Failed to delete stored file", "task", taskID, "path", f.FilePath, "err", err)
		}
	}

	if len(fileIDs) > 0 {
		if err := a.Graph.DeleteByFiles(ctx, fileIDs); err != nil {
			return failErr(c, "delete graph data", err)
		}
		if err := a.Repo.DeleteFiles(ctx, fileIDs); err != nil {
			return failErr(c, "delete files", err)
		}
	}
	if err := a.Repo.DeleteTask(ctx, taskID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return failErr(c, "delete task", err)
	}

	logger.Info("[HTTP] Task deleted", "task", taskID, "files", len(fileIDs))
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "任务已删除"})
}
