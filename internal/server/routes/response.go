package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/kgbuilder/internal/server/middleware"
	"github.com/OFFIS-RIT/kgbuilder/pkg/graph"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

const (
	msgTaskNotFound     = "任务不存在"
	msgOntologyNotFound = "本体不存在"
	msgInvalidRequest   = "请求参数无效"
	msgInternal         = "服务器内部错误"
)

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, dataResponse{Success: true, Data: data})
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, messageResponse{Success: false, Message: message})
}

// errorStatus maps pipeline and store errors to an HTTP status.
func errorStatus(err error) int {
	var be *store.BackendError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrInvalidTaskState):
		return http.StatusBadRequest
	case errors.As(err, &be) && be.Unavailable():
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// failErr logs err and answers with its mapped status. Backend errors show
// their operator message, internal errors a generic one.
func failErr(c echo.Context, action string, err error) error {
	status := errorStatus(err)
	logger.Error("[HTTP] "+action+" failed", "path", c.Path(), "status", status, "err", err)

	message := msgInternal
	var be *store.BackendError
	var failed *graph.TaskFailedError
	switch {
	case errors.As(err, &be):
		message = be.Message
	case errors.As(err, &failed):
		message = failed.Err.Error()
	case status == http.StatusBadRequest:
		message = err.Error()
	}
	return fail(c, status, message)
}

func app(c echo.Context) *middleware.App {
	return c.(*middleware.AppContext).App
}

func userID(c echo.Context) string {
	return c.(*middleware.AppContext).UserID()
}
