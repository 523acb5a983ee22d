package worker

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgbuilder/internal/db"
	"github.com/OFFIS-RIT/kgbuilder/internal/setup"
	"github.com/OFFIS-RIT/kgbuilder/internal/storage"
	"github.com/OFFIS-RIT/kgbuilder/internal/util"
	"github.com/OFFIS-RIT/kgbuilder/pkg/graph"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"

	"github.com/rabbitmq/amqp091-go"
)

// FromEnv builds a Worker whose pipeline reads files from files, keeps task
// state in repo and writes to graphStore.
func FromEnv(conn *amqp091.Connection, repo db.Repository, files storage.FileStorage, graphStore store.GraphStorage) (*Worker, error) {
	chat, err := setup.ChatClient()
	if err != nil {
		return nil, fmt.Errorf("chat client: %w", err)
	}
	embedder, err := setup.EmbeddingClient()
	if err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}

	client := graph.NewGraphClient(graph.NewGraphClientParams{
		Tasks:              repo,
		Files:              repo,
		Ontologies:         repo,
		Graph:              graphStore,
		Parser:             setup.Parser(files),
		Chat:               chat,
		Embedder:           embedder,
		Model:              setup.ExtractionModel(),
		ChunkSize:          util.GetEnvInt("AI_CHUNK_SIZE", 4000),
		ParallelAiRequests: util.GetEnvInt("AI_PARALLEL_REQ", 4),
		MaxRetries:         util.GetEnvInt("AI_MAX_RETRIES", 3),
		StructuredOutput:   util.GetEnvBool("AI_STRUCTURED_OUTPUT", false),
	})

	return New(conn, client, repo, Config{
		Concurrency:  util.GetEnvInt("WORKER_CONCURRENCY", 2),
		MaxRetries:   util.GetEnvInt("QUEUE_MAX_RETRIES", 5),
		StaleAfter:   util.GetEnvSeconds("TASK_STALE_SECONDS", 1800),
		RecoverEvery: util.GetEnvSeconds("TASK_RECOVER_SECONDS", 300),
	}, chat, embedder), nil
}

// Start runs w in the background and returns a function that waits for it
// to stop.
func Start(ctx context.Context, w *Worker) (wait func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil {
			logger.Error("[Worker] Stopped", "err", err)
		}
	}()
	return func() { <-done }
}
