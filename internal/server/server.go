package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/kgbuilder/internal/db"
	"github.com/OFFIS-RIT/kgbuilder/internal/queue"
	mid "github.com/OFFIS-RIT/kgbuilder/internal/server/middleware"
	"github.com/OFFIS-RIT/kgbuilder/internal/setup"
	"github.com/OFFIS-RIT/kgbuilder/internal/storage"
	"github.com/OFFIS-RIT/kgbuilder/internal/util"
	"github.com/OFFIS-RIT/kgbuilder/internal/worker"
	"github.com/OFFIS-RIT/kgbuilder/pkg/graph"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New builds the echo instance serving app.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(util.GetEnvString("BODY_LIMIT", "100M")))

	RegisterRoutes(e)
	return e
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var key keyfunc.Keyfunc
	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err := keyfunc.NewDefaultCtx(ctx, []string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		key = k
	} else {
		logger.Warn("AUTH_URL not set, authentication disabled")
	}

	databaseURL := util.GetEnv("DATABASE_URL")
	if util.GetEnvBool("DATABASE_MIGRATE", true) {
		if err := db.Migrate(databaseURL, util.GetEnvString("MIGRATIONS_PATH", "migrations")); err != nil {
			logger.Fatal("Failed to migrate database", "err", err)
		}
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()
	repo := db.NewCachedStore(
		db.NewStore(conn),
		util.GetEnvInt("CACHE_SIZE", 256),
		util.GetEnvSeconds("CACHE_TTL_SECONDS", 60),
	)

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, []string{queue.ExtractQueue}, util.GetEnvSeconds("QUEUE_RETRY_DELAY_SECONDS", 10)); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	files, err := storage.FromEnv(ctx)
	if err != nil {
		logger.Fatal("Failed to set up file storage", "err", err)
	}

	graphStore, err := setup.GraphStorage(ctx)
	if err != nil {
		logger.Fatal("Failed to open graph storage", "err", err)
	}
	defer graphStore.Close(context.Background())

	if util.GetEnvBool("WORKER_EMBEDDED", false) {
		w, err := worker.FromEnv(que, repo, files, graphStore)
		if err != nil {
			logger.Fatal("Failed to set up embedded worker", "err", err)
		}
		wait := worker.Start(ctx, w)
		defer wait()
	}

	builder := graph.NewGraphClient(graph.NewGraphClientParams{
		Tasks:      repo,
		Files:      repo,
		Ontologies: repo,
		Graph:      graphStore,
	})

	e := New(&mid.App{
		Repo:    repo,
		Queue:   queue.NewPublisher(ch),
		Storage: files,
		Graph:   graphStore,
		Builder: builder,
		Key:     key,
	})

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(fmt.Sprintf(":%s", port)); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
