package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/kgbuilder/internal/db"
	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

type extractResultResponse struct {
	Success        bool                   `json:"success"`
	TaskID         string                 `json:"taskId"`
	Status         common.TaskStatus      `json:"status"`
	Progress       int                    `json:"progress"`
	StageMessage   string                 `json:"stageMessage"`
	ErrorMessage   string                 `json:"errorMessage,omitempty"`
	DraftOntology  common.Ontology        `json:"draftOntology"`
	DraftEntities  []common.DraftEntity   `json:"draftEntities"`
	DraftRelations []common.DraftRelation `json:"draftRelations"`
}

// GetExtractResultHandler returns progress and drafts of a task.
func GetExtractResultHandler(c echo.Context) error {
	taskID := c.Param("taskId")
	task, err := app(c).Repo.GetTask(c.Request().Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(c, http.StatusNotFound, msgTaskNotFound)
		}
		return failErr(c, "get task", err)
	}

	return c.JSON(http.StatusOK, extractResultResponse{
		Success:        true,
		TaskID:         task.ID,
		Status:         task.Status,
		Progress:       task.Progress,
		StageMessage:   task.StageMessage,
		ErrorMessage:   task.ErrorMessage,
		DraftOntology:  task.DraftOntology,
		DraftEntities:  nonNil(task.DraftEntities),
		DraftRelations: nonNil(task.DraftRelations),
	})
}

type pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

type taskListResponse struct {
	Success    bool               `json:"success"`
	Data       []common.BuildTask `json:"data"`
	Pagination pagination         `json:"pagination"`
}

// GetTasksHandler lists tasks newest first.
func GetTasksHandler(c echo.Context) error {
	type listTasksQuery struct {
		Status string `query:"status" validate:"omitempty,oneof=pending parsing extracting aligning confirming building completed failed"`
		Page   int    `query:"page" validate:"gte=0"`
		Limit  int    `query:"limit" validate:"gte=0"`
	}

	data := new(listTasksQuery)
	if err := c.Bind(data); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}
	if err := c.Validate(data); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}

	filter := db.TaskFilter{
		Status: common.TaskStatus(data.Status),
		Page:   data.Page,
		Limit:  data.Limit,
	}.Normalize()
	tasks, total, err := app(c).Repo.ListTasks(c.Request().Context(), filter)
	if err != nil {
		return failErr(c, "list tasks", err)
	}

	return c.JSON(http.StatusOK, taskListResponse{
		Success:    true,
		Data:       nonNil(tasks),
		Pagination: pagination{Page: filter.Page, Limit: filter.Limit, Total: total},
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
