package middleware

import (
	"context"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/kgbuilder/internal/db"
	"github.com/OFFIS-RIT/kgbuilder/internal/storage"
	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/graph"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

// DefaultUserID is recorded as creator when authentication is disabled.
const DefaultUserID = "admin"

type AppUser struct {
	UserID string
	Role   string
}

// TaskPublisher hands a task to the background worker.
type TaskPublisher interface {
	PublishTask(ctx context.Context, taskID string) error
}

// GraphBuilder writes a confirmed task to the graph.
type GraphBuilder interface {
	BuildGraph(ctx context.Context, taskID string, mods common.Modifications) (*graph.BuildResult, error)
}

type App struct {
	Repo    db.Repository
	Queue   TaskPublisher
	Storage storage.FileStorage
	Graph   store.GraphStorage
	Builder GraphBuilder
	// Key verifies bearer tokens. Nil disables authentication.
	Key keyfunc.Keyfunc
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}

// UserID returns the id of the calling user, DefaultUserID when nobody is
// signed in.
func (c *AppContext) UserID() string {
	if c.User == nil || c.User.UserID == "" {
		return DefaultUserID
	}
	return c.User.UserID
}
