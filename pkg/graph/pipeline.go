package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
)

var errNoUsableFile = errors.New("没有可解析的文件")

// Run drives a task through parsing, extraction and alignment, leaving it
// in confirming for review. A task that was already picked up before is
// resumed where that is safe: aligning is re-run, a task stuck in
// extracting is failed as interrupted, and later states are left alone.
func (g *GraphClient) Run(ctx context.Context, taskID string) error {
	t, err := g.loadTask(ctx, taskID)
	if err != nil {
		return err
	}

	switch t.task.Status {
	case common.TaskStatusPending, common.TaskStatusParsing:
	case common.TaskStatusAligning:
		logger.Info("[Pipeline] Resuming alignment", "task", taskID)
		_, err := g.AlignEntities(ctx, taskID)
		return err
	case common.TaskStatusExtracting:
		return t.fail(ctx, "extraction", msgInterrupted, errors.New(msgInterrupted), nil)
	default:
		logger.Debug("[Pipeline] Nothing to do", "task", taskID, "status", t.task.Status)
		return nil
	}

	if err := t.stage(ctx, common.TaskStatusParsing, 10, msgParsing); err != nil {
		return err
	}
	files, err := g.parseFiles(ctx, t.task)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return t.fail(ctx, "parsing", msgParseFailed, err, nil)
	}

	_, err = g.ExtractFromDocuments(ctx, ExtractionInput{
		TaskID:       taskID,
		Files:        files,
		OntologyMode: t.task.OntologyMode,
		OntologyID:   t.task.OntologyID,
	})
	if err != nil {
		return err
	}
	_, err = g.AlignEntities(ctx, taskID)
	return err
}

// parseFiles parses every file of the task and records the outcome on the
// file records. It fails only when no file could be parsed.
func (g *GraphClient) parseFiles(ctx context.Context, task *common.BuildTask) ([]ParsedFile, error) {
	if g.parser == nil || g.files == nil {
		return nil, errors.New("document parser not configured")
	}

	var parsed []ParsedFile
	var errs []error
	for _, ref := range task.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := g.parseFile(ctx, ref)
		if err != nil {
			logger.Warn("[Pipeline] File could not be parsed", "task", task.ID, "file", ref.FileID, "err", err)
			errs = append(errs, err)
			continue
		}
		parsed = append(parsed, ParsedFileFrom(doc))
	}

	if len(parsed) == 0 {
		if len(errs) == 0 {
			return nil, errNoUsableFile
		}
		return nil, fmt.Errorf("%w: %w", errNoUsableFile, errors.Join(errs...))
	}
	return parsed, nil
}

func (g *GraphClient) parseFile(ctx context.Context, ref common.TaskFile) (*loader.ParsedDocument, error) {
	rec, err := g.files.GetFile(ctx, ref.FileID)
	if err != nil {
		return nil, fmt.Errorf("load file %s: %w", ref.FileID, err)
	}
	g.updateFile(ctx, rec.ID, common.FileUpdate{Status: ptr(common.FileStatusProcessing)})

	name := rec.OriginalName
	if name == "" {
		name = ref.Filename
	}
	doc, err := g.parser.Parse(ctx, loader.File{
		ID:   rec.ID,
		Name: name,
		Path: rec.FilePath,
		Type: rec.FileType,
	})
	processedAt := g.now()
	if err != nil {
		g.updateFile(ctx, rec.ID, common.FileUpdate{
			Status:        ptr(common.FileStatusFailed),
			ErrorMessage:  ptr(err.Error()),
			ProcessedTime: &processedAt,
		})
		return nil, err
	}

	g.updateFile(ctx, rec.ID, common.FileUpdate{
		Status:        ptr(common.FileStatusCompleted),
		ExtractedText: ptr(doc.Text),
		SheetCount:    ptr(doc.SheetCount),
		PageCount:     ptr(doc.PageCount),
		ProcessedTime: &processedAt,
	})
	return doc, nil
}

// updateFile is best effort: a stale file record does not stop the task.
func (g *GraphClient) updateFile(ctx context.Context, id string, upd common.FileUpdate) {
	if err := g.files.UpdateFile(ctx, id, upd); err != nil {
		logger.Warn("[Pipeline] Failed to update file record", "file", id, "err", err)
	}
}
