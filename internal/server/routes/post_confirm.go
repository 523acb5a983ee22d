package routes

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/graph"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

type confirmResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Stats   graph.BuildEntityStats `json:"stats"`
}

// ConfirmAndBuildHandler applies the user's modifications to the drafts of
// a task and writes them to the graph.
func ConfirmAndBuildHandler(c echo.Context) error {
	type confirmBody struct {
		TaskID        string               `param:"taskId" validate:"required"`
		Modifications common.Modifications `json:"modifications"`
	}

	data := new(confirmBody)
	if err := c.Bind(data); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}
	if err := c.Validate(data); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}

	ctx := c.Request().Context()
	a := app(c)
	task, err := a.Repo.GetTask(ctx, data.TaskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(c, http.StatusNotFound, msgTaskNotFound)
		}
		return failErr(c, "get task", err)
	}
	if task.Status != common.TaskStatusConfirming {
		return fail(c, http.StatusBadRequest, fmt.Sprintf("当前任务状态为 %s，无法确认构建", task.Status))
	}

	res, err := a.Builder.BuildGraph(ctx, data.TaskID, data.Modifications)
	if err != nil {
		return failErr(c, "build graph", err)
	}

	return c.JSON(http.StatusOK, confirmResponse{
		Success: true,
		Message: "知识图谱构建成功",
		Stats:   res.Stats,
	})
}
