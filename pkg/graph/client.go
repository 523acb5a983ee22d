package graph

import (
	"time"

	"github.com/OFFIS-RIT/kgbuilder/pkg/ai"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

const (
	defaultChunkSize      = 4000
	defaultMaxRetries     = 3
	defaultRetryDelay     = 2 * time.Second
	defaultParallelReq    = 4
	defaultEmbedBatchSize = 10
	defaultEmbeddingDim   = 1024
	extractionTemperature = 0.3
)

// GraphClient runs the knowledge graph pipeline: extraction, alignment and
// the graph build. All state of a run lives on the task record, so any
// worker holding a GraphClient can pick a task up.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	tasks      store.TaskStore
	files      store.FileStore
	ontologies store.OntologyStore
	graph      store.GraphStorage
	parser     *loader.DocumentParser
	chat       ai.ChatClient
	embedder   ai.EmbeddingClient

	model              string
	chunkSize          int
	parallelAiRequests int
	maxRetries         int
	retryDelay         time.Duration
	embedBatchSize     int
	structuredOutput   bool
	now                func() time.Time
}

// NewGraphClientParams defines the dependencies and tuning of a GraphClient.
//
// Chat and Embedder may be the same provider. Model is only recorded in the
// extraction metadata. Zero values select the defaults: chunks of 4000
// characters, 3 attempts per chunk with a 2s pause and 4 parallel requests.
type NewGraphClientParams struct {
	Tasks      store.TaskStore
	Files      store.FileStore
	Ontologies store.OntologyStore
	Graph      store.GraphStorage
	Parser     *loader.DocumentParser
	Chat       ai.ChatClient
	Embedder   ai.EmbeddingClient

	Model              string
	ChunkSize          int
	ParallelAiRequests int
	MaxRetries         int
	RetryDelay         *time.Duration
	EmbedBatchSize     int
	StructuredOutput   bool
}

// NewGraphClient creates a GraphClient from params.
//
// Example:
//
//	client := graph.NewGraphClient(graph.NewGraphClientParams{
//		Tasks:              db,
//		Files:              db,
//		Ontologies:         db,
//		Graph:              neo,
//		Parser:             parser,
//		Chat:               aiClient,
//		Embedder:           aiClient,
//		ParallelAiRequests: 4,
//	})
func NewGraphClient(params NewGraphClientParams) *GraphClient {
	g := &GraphClient{
		tasks:              params.Tasks,
		files:              params.Files,
		ontologies:         params.Ontologies,
		graph:              params.Graph,
		parser:             params.Parser,
		chat:               params.Chat,
		embedder:           params.Embedder,
		model:              params.Model,
		chunkSize:          params.ChunkSize,
		parallelAiRequests: params.ParallelAiRequests,
		maxRetries:         params.MaxRetries,
		retryDelay:         defaultRetryDelay,
		embedBatchSize:     params.EmbedBatchSize,
		structuredOutput:   params.StructuredOutput,
		now:                time.Now,
	}
	if g.chunkSize <= 0 {
		g.chunkSize = defaultChunkSize
	}
	if g.parallelAiRequests <= 0 {
		g.parallelAiRequests = defaultParallelReq
	}
	if g.maxRetries <= 0 {
		g.maxRetries = defaultMaxRetries
	}
	if params.RetryDelay != nil {
		g.retryDelay = *params.RetryDelay
	}
	if g.embedBatchSize <= 0 {
		g.embedBatchSize = defaultEmbedBatchSize
	}
	return g
}
