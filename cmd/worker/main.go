package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/kgbuilder/internal/db"
	"github.com/OFFIS-RIT/kgbuilder/internal/queue"
	"github.com/OFFIS-RIT/kgbuilder/internal/setup"
	"github.com/OFFIS-RIT/kgbuilder/internal/storage"
	"github.com/OFFIS-RIT/kgbuilder/internal/util"
	"github.com/OFFIS-RIT/kgbuilder/internal/worker"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger/console"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// Init pgx client
	pgConn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()
	repo := db.NewStore(pgConn)

	files, err := storage.FromEnv(ctx)
	if err != nil {
		logger.Fatal("Failed to set up file storage", "err", err)
	}

	graphStore, err := setup.GraphStorage(ctx)
	if err != nil {
		logger.Fatal("Failed to open graph storage", "err", err)
	}
	defer graphStore.Close(context.Background())

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	err = queue.SetupQueues(ch, []string{queue.ExtractQueue}, util.GetEnvSeconds("QUEUE_RETRY_DELAY_SECONDS", 10))
	ch.Close()
	if err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	w, err := worker.FromEnv(conn, repo, files, graphStore)
	if err != nil {
		logger.Fatal("Failed to set up worker", "err", err)
	}

	start := time.Now()
	if err := w.Run(ctx); err != nil {
		logger.Fatal("Worker stopped", "err", err)
	}
	logger.Info("Shutdown signal received, exiting...", "uptime", time.Since(start).Round(time.Second))
}
