package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/OFFIS-RIT/kgbuilder/internal/util"
	"github.com/OFFIS-RIT/kgbuilder/pkg/ai"
	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
)

const rawPreviewLength = 2000

var errEmptyReply = errors.New("模型返回内容为空")

// ParsedFile is one parsed document handed to extraction.
type ParsedFile struct {
	FileID   string
	Filename string
	Text     string
	Preview  string
	Sheets   []loader.Sheet
}

// ParsedFileFrom converts parser output.
func ParsedFileFrom(doc *loader.ParsedDocument) ParsedFile {
	return ParsedFile{
		FileID:   doc.FileID,
		Filename: doc.Filename,
		Text:     doc.Text,
		Preview:  doc.Preview,
		Sheets:   doc.Sheets,
	}
}

type ExtractionInput struct {
	TaskID       string
	Files        []ParsedFile
	OntologyMode common.OntologyMode
	OntologyID   string
}

type ExtractionResult struct {
	EntityCount   int
	RelationCount int
	ChunkCount    int
	UsedFallback  bool
}

// ExtractFromDocuments extracts a draft ontology, entities and relations
// from the files of a task and stores them on the task, which then moves
// on to alignment.
//
// When the model path fails for any reason and one of the files is a
// safety risk register, the rule-based register extractor provides the
// draft instead. Failures are recorded on the task and returned as
// *TaskFailedError.
func (g *GraphClient) ExtractFromDocuments(ctx context.Context, in ExtractionInput) (*ExtractionResult, error) {
	t, err := g.loadTask(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}
	if err := t.stage(ctx, common.TaskStatusExtracting, 30, msgExtracting); err != nil {
		return nil, err
	}

	systemPrompt := ai.ExtractionSystemPrompt + g.ontologyHint(ctx, in)
	text := combineFiles(in.Files)
	startedAt := g.now()
	meta := common.ExtractionMeta{
		Model:      g.model,
		FileCount:  len(in.Files),
		InputChars: util.RuneLen(text),
		StartedAt:  &startedAt,
	}
	if err := t.update(ctx, common.TaskUpdate{ExtractionMeta: &meta}); err != nil {
		return nil, err
	}

	payload, chunkCount, err := g.extractKnowledge(ctx, text, systemPrompt)
	meta.ChunkCount = chunkCount
	if err == nil {
		err = validatePayload(payload)
	}

	usedFallback := false
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fallback, ok := extractRiskRegister(in.Files)
		if !ok {
			return nil, g.failExtraction(ctx, t, payload, meta, err)
		}
		logger.Warn("[Extract] Model extraction failed, using risk register rules", "task", in.TaskID, "err", err)
		payload, usedFallback = fallback, true
	}

	entities, relations := g.drafts(payload, in.Files)
	finishedAt := g.now()
	meta.EntityCount = len(entities)
	meta.RelationCount = len(relations)
	meta.FinishedAt = &finishedAt

	err = t.update(ctx, common.TaskUpdate{
		Status:          ptr(common.TaskStatusAligning),
		Progress:        ptr(60),
		StageMessage:    ptr(msgAligning),
		DraftOntology:   ptr(payload.ontology()),
		DraftEntities:   &entities,
		DraftRelations:  &relations,
		ExtractionMeta:  &meta,
		ExtractionDebug: &common.ExtractionDebug{},
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[Extract] Extraction finished", "task", in.TaskID, "entities", len(entities), "relations", len(relations), "chunks", chunkCount, "fallback", usedFallback)
	return &ExtractionResult{
		EntityCount:   len(entities),
		RelationCount: len(relations),
		ChunkCount:    chunkCount,
		UsedFallback:  usedFallback,
	}, nil
}

func (g *GraphClient) failExtraction(ctx context.Context, t *taskTracker, payload *extractionPayload, meta common.ExtractionMeta, cause error) error {
	finishedAt := g.now()
	meta.FinishedAt = &finishedAt

	var validationErr *ExtractionValidationError
	if errors.As(cause, &validationErr) {
		meta.EntityCount, meta.RelationCount = 0, 0
		return t.fail(ctx, "extraction", msgNoValidResult, cause, func(u *common.TaskUpdate) {
			u.Progress = ptr(40)
			u.DraftOntology = ptr(payload.ontology())
			u.DraftEntities = &[]common.DraftEntity{}
			u.DraftRelations = &[]common.DraftRelation{}
			u.ExtractionMeta = &meta
		})
	}

	return t.fail(ctx, "extraction", msgExtractionFailed, cause, func(u *common.TaskUpdate) {
		u.ExtractionMeta = &meta
		var decodeErr *ExtractionDecodeError
		if errors.As(cause, &decodeErr) {
			u.ExtractionDebug = &common.ExtractionDebug{
				ParseError: decodeErr.Error(),
				RawPreview: decodeErr.RawPreview,
				RawLength:  ptr(decodeErr.RawLength),
				ChunkIndex: ptr(decodeErr.ChunkIndex),
				ChunkCount: ptr(decodeErr.ChunkCount),
			}
		}
	})
}

func (g *GraphClient) ontologyHint(ctx context.Context, in ExtractionInput) string {
	if in.OntologyMode != common.OntologyModeExisting || g.ontologies == nil {
		return ""
	}
	var lib *common.OntologyLibrary
	var err error
	if in.OntologyID == "" {
		lib, err = g.ontologies.GetDefaultOntology(ctx)
	} else {
		lib, err = g.ontologies.GetOntology(ctx, in.OntologyID)
	}
	if err != nil {
		logger.Warn("[Extract] Ontology not available, extracting without hint", "ontology", in.OntologyID, "err", err)
		return ""
	}
	return ai.OntologyHint(lib.EntityTypeNames(), lib.RelationTypeNames())
}

// extractKnowledge runs every chunk of text through the model and merges
// the replies in chunk order.
func (g *GraphClient) extractKnowledge(ctx context.Context, text, systemPrompt string) (*extractionPayload, int, error) {
	chunks := splitText(text, g.chunkSize)
	results := make([]*extractionPayload, len(chunks))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelAiRequests)
	for i, chunk := range chunks {
		eg.Go(func() error {
			p, err := g.extractChunk(gCtx, i, len(chunks), chunk, systemPrompt)
			if err != nil {
				return err
			}
			results[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return &extractionPayload{}, len(chunks), err
	}

	merged := &extractionPayload{}
	for _, p := range results {
		merged.append(p)
	}
	return dedupePayload(merged), len(chunks), nil
}

func (g *GraphClient) extractChunk(ctx context.Context, index, total int, chunk, systemPrompt string) (*extractionPayload, error) {
	opts := []ai.GenerateOption{
		ai.WithSystemPrompts(systemPrompt),
		ai.WithTemperature(extractionTemperature),
	}
	if g.structuredOutput {
		opts = append(opts, ai.WithResponseSchema("knowledge_extraction", "Entities and relations of a document chunk", ai.GenerateSchema(extractResponse{})))
	}
	prompt := ai.ExtractionUserPrompt(index, total, chunk)

	attempt := 0
	return util.RetryWithDelay(ctx, g.maxRetries, g.retryDelay, func(ctx context.Context) (*extractionPayload, error) {
		attempt++
		if g.chat == nil {
			return nil, util.Permanent(ai.ErrNotConfigured)
		}
		raw, err := g.chat.GenerateCompletion(ctx, prompt, opts...)
		if err != nil {
			if errors.Is(err, ai.ErrNotConfigured) {
				return nil, util.Permanent(err)
			}
			logger.Warn("[Extract] Extraction call failed", "chunk", index, "attempt", attempt, "err", err)
			return nil, fmt.Errorf("片段 %d/%d 抽取失败: %w", index+1, total, err)
		}
		if strings.TrimSpace(raw) == "" {
			logger.Warn("[Extract] Extraction returned empty content", "chunk", index, "attempt", attempt)
			return nil, &ExtractionDecodeError{ChunkIndex: index, ChunkCount: total, Err: errEmptyReply}
		}

		var p extractionPayload
		if err := ai.DecodeModelJSON(raw, &p); err != nil {
			logger.Warn("[Extract] Extraction reply is not valid JSON", "chunk", index, "attempt", attempt, "err", err)
			return nil, &ExtractionDecodeError{
				ChunkIndex: index,
				ChunkCount: total,
				RawPreview: util.Truncate(raw, rawPreviewLength),
				RawLength:  util.RuneLen(raw),
				Err:        err,
			}
		}
		return &p, nil
	})
}

// drafts assigns ids to the extracted items. Ids of one run share a
// timestamp and are numbered by position.
func (g *GraphClient) drafts(p *extractionPayload, files []ParsedFile) ([]common.DraftEntity, []common.DraftRelation) {
	stamp := g.now()
	sourceFile := ""
	if len(files) > 0 {
		sourceFile = files[0].FileID
	}

	entities := make([]common.DraftEntity, 0, len(p.Entities))
	for i, e := range p.Entities {
		entities = append(entities, common.DraftEntity{
			ID:                  util.DraftID("entity", stamp, i),
			Name:                string(e.Name),
			Type:                string(e.Type),
			Properties:          e.Properties.Clone(),
			SourceFile:          sourceFile,
			SourceContext:       string(e.Context),
			Confidence:          confidenceOr(e.Confidence),
			AlignmentSuggestion: common.NewSuggestion(),
		})
	}

	relations := make([]common.DraftRelation, 0, len(p.Relations))
	for i, r := range p.Relations {
		relations = append(relations, common.DraftRelation{
			ID:            util.DraftID("relation", stamp, i),
			Source:        string(r.Source),
			Target:        string(r.Target),
			RelationType:  string(r.Type),
			Properties:    r.Properties.Clone(),
			Confidence:    confidenceOr(r.Confidence),
			SourceContext: string(r.Context),
		})
	}
	return entities, relations
}
