package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
)

type AlignmentResult struct {
	EntityCount    int
	NewCount       int
	MergeCount     int
	CandidateCount int
	Degraded       bool
}

// AlignEntities suggests, for every draft entity of a task, whether it is
// new, duplicates another draft entity of the same type, or resembles some.
// Embedding failures degrade the result instead of failing the task.
func (g *GraphClient) AlignEntities(ctx context.Context, taskID string) (*AlignmentResult, error) {
	t, err := g.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	entities := t.task.DraftEntities
	if len(entities) == 0 {
		cause := &AlignmentPreconditionError{TaskID: taskID}
		return nil, t.fail(ctx, "alignment", msgNoEntities, cause, func(u *common.TaskUpdate) {
			u.Progress = ptr(70)
		})
	}
	if err := t.stage(ctx, common.TaskStatusAligning, 70, msgAligning); err != nil {
		return nil, err
	}

	vectors, degraded, err := g.embedEntities(ctx, t, entities)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, t.fail(ctx, "alignment", msgAlignmentFailed, err, nil)
	}

	res := &AlignmentResult{EntityCount: len(entities), Degraded: degraded}
	aligned := make([]common.DraftEntity, len(entities))
	for i, e := range entities {
		e.AlignmentSuggestion = suggest(e, findCandidates(entities, vectors, i))
		switch e.AlignmentSuggestion.Kind() {
		case common.AlignmentKindMerge:
			res.MergeCount++
		case common.AlignmentKindCandidate:
			res.CandidateCount++
		default:
			res.NewCount++
		}
		aligned[i] = e
	}

	message := msgConfirming
	if degraded {
		message = msgConfirmingDegrade
	}
	err = t.update(ctx, common.TaskUpdate{
		Status:        ptr(common.TaskStatusConfirming),
		Progress:      ptr(90),
		StageMessage:  ptr(message),
		DraftEntities: &aligned,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[Align] Alignment finished", "task", taskID, "new", res.NewCount, "merge", res.MergeCount, "candidate", res.CandidateCount, "degraded", degraded)
	return res, nil
}

func entityText(e common.DraftEntity) string {
	return fmt.Sprintf("%s %s %s %s", e.Name, e.Type, e.Properties.Text("description"), e.SourceContext)
}

// embedEntities embeds entities in batches. A batch whose call fails, or
// whose reply is short, gets zero vectors of the last known dimension; the
// first such batch marks the task as degraded.
func (g *GraphClient) embedEntities(ctx context.Context, t *taskTracker, entities []common.DraftEntity) ([][]float32, bool, error) {
	vectors := make([][]float32, 0, len(entities))
	dim := 0
	degraded := false

	for start := 0; start < len(entities); start += g.embedBatchSize {
		end := min(start+g.embedBatchSize, len(entities))
		texts := make([]string, 0, end-start)
		for _, e := range entities[start:end] {
			texts = append(texts, entityText(e))
		}

		batch, err := g.embedBatch(ctx, texts)
		if err == nil {
			if dim == 0 && len(batch) > 0 {
				dim = len(batch[0])
			}
			vectors = append(vectors, batch...)
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, false, err
		}

		logger.Warn("[Align] Embedding batch failed, using zero vectors", "task", t.task.ID, "batch", start/g.embedBatchSize, "err", err)
		if !degraded {
			degraded = true
			if err := t.update(ctx, common.TaskUpdate{StageMessage: ptr(msgAligningDegraded)}); err != nil {
				return nil, false, err
			}
		}
		width := dim
		if width == 0 {
			width = defaultEmbeddingDim
		}
		for range texts {
			vectors = append(vectors, make([]float32, width))
		}
	}
	return vectors, degraded, nil
}

func (g *GraphClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if g.embedder == nil {
		return nil, errors.New("no embedding provider configured")
	}
	batch, err := g.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(batch) < len(texts) {
		return nil, fmt.Errorf("embedding reply has %d vectors for %d inputs", len(batch), len(texts))
	}
	return batch[:len(texts)], nil
}
