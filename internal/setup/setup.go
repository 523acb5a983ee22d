// Package setup builds the collaborators shared by the server and the
// worker from the environment.
package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgbuilder/internal/util"
	"github.com/OFFIS-RIT/kgbuilder/pkg/ai"
	oai "github.com/OFFIS-RIT/kgbuilder/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/kgbuilder/pkg/ai/openai"
	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader/doc"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader/excel"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader/pdf"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader/text"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store/badger"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store/neo4j"
)

// GraphStorage opens the backend named by GRAPH_BACKEND: "neo4j" (default)
// or "badger" below BADGER_PATH. Badger locks its directory, so server and
// worker only share it when they run in one process.
func GraphStorage(ctx context.Context) (store.GraphStorage, error) {
	switch backend := util.GetEnvString("GRAPH_BACKEND", "neo4j"); backend {
	case "neo4j":
		return neo4j.Open(ctx, neo4j.ConfigFromEnv())
	case "badger":
		return badger.Open(util.GetEnvString("BADGER_PATH", "data/graph"))
	default:
		return nil, fmt.Errorf("unknown GRAPH_BACKEND %q", backend)
	}
}

// ExtractionModel is the chat model used for extraction.
func ExtractionModel() string {
	return util.GetEnvString("AI_CHAT_EXTRACT_MODEL", "glm-4-flash")
}

func aiTimeout() time.Duration {
	return time.Duration(util.GetEnvInt("AI_TIMEOUT_MIN", 2)) * time.Minute
}

// ChatClient creates the extraction model client selected by AI_ADAPTER.
func ChatClient() (ai.GraphAIClient, error) {
	model := ExtractionModel()
	url := util.GetEnv("AI_CHAT_URL")
	key := util.GetEnv("AI_CHAT_KEY")
	maxTokens := util.GetEnvInt("AI_MAX_TOKENS", 4096)
	timeout := aiTimeout()
	parallel := int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4))

	switch adapter := util.GetEnvString("AI_ADAPTER", "openai"); adapter {
	case "ollama":
		return oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ChatModel:             model,
			BaseURL:               url,
			ApiKey:                key,
			MaxTokens:             maxTokens,
			Timeout:               timeout,
			MaxConcurrentRequests: parallel,
		})
	case "openai":
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			ChatModel:             model,
			ChatURL:               url,
			ChatKey:               key,
			MaxTokens:             maxTokens,
			Timeout:               timeout,
			MaxConcurrentRequests: parallel,
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q", adapter)
	}
}

// EmbeddingClient creates the embedding client selected by
// EMBEDDING_PROVIDER: a local Ollama (default) or an OpenAI compatible API.
func EmbeddingClient() (ai.GraphAIClient, error) {
	timeout := aiTimeout()
	parallel := int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4))

	switch provider := util.GetEnvString("EMBEDDING_PROVIDER", "ollama"); provider {
	case "ollama":
		return oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			EmbeddingModel:        util.GetEnvString("OLLAMA_EMBED_MODEL", "bge-m3"),
			BaseURL:               util.GetEnvString("OLLAMA_BASE_URL", "http://localhost:11434"),
			Timeout:               timeout,
			MaxConcurrentRequests: parallel,
		})
	case "openai":
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			EmbeddingModel:        util.GetEnvString("AI_EMBED_MODEL", "embedding-3"),
			EmbeddingURL:          util.GetEnvString("AI_EMBED_URL", util.GetEnv("AI_CHAT_URL")),
			EmbeddingKey:          util.GetEnvString("AI_EMBED_KEY", util.GetEnv("AI_CHAT_KEY")),
			Timeout:               timeout,
			MaxConcurrentRequests: parallel,
		}), nil
	default:
		return nil, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", provider)
	}
}

// Parser builds the document parser for every supported format.
func Parser(source loader.Source) *loader.DocumentParser {
	ocr := util.GetEnvBool("PDF_OCR", false)
	if ocr {
		logger.Warn("PDF_OCR is set but scanned pages are not recognised")
	}
	return loader.NewDocumentParser(source, map[common.FileType]loader.FormatParser{
		common.FileTypeExcel: excel.NewParser(),
		common.FileTypeWord:  doc.NewParser(),
		common.FileTypePDF:   pdf.NewParser(ocr),
		common.FileTypeTxt:   text.NewParser(),
	})
}
