package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

type BuildEntityStats struct {
	NewEntities     int `json:"newEntities"`
	MergedEntities  int `json:"mergedEntities"`
	UpdatedEntities int `json:"updatedEntities"`
}

type BuildResult struct {
	EntityCount      int              `json:"entityCount"`
	RelationCount    int              `json:"relationCount"`
	Stats            BuildEntityStats `json:"stats"`
	SkippedRelations int              `json:"skippedRelations"`
}

// BuildGraph writes the confirmed draft of a task, with the user's
// modifications applied, to the graph store. Only tasks waiting for
// confirmation can be built.
func (g *GraphClient) BuildGraph(ctx context.Context, taskID string, mods common.Modifications) (*BuildResult, error) {
	t, err := g.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.task.Status != common.TaskStatusConfirming {
		return nil, fmt.Errorf("%w: task %s is %s", ErrInvalidTaskState, taskID, t.task.Status)
	}
	if g.graph == nil {
		return nil, errors.New("graph store not configured")
	}

	confirmedAt := g.now()
	err = t.update(ctx, common.TaskUpdate{
		Status:            ptr(common.TaskStatusBuilding),
		Progress:          ptr(95),
		StageMessage:      ptr(msgBuilding),
		UserModifications: &mods,
		ConfirmedAt:       &confirmedAt,
	})
	if err != nil {
		return nil, err
	}

	entities, relations := ApplyModifications(t.task.DraftEntities, t.task.DraftRelations, mods)
	res, err := g.writeGraph(ctx, entities, relations, t.task.FileIDs())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, t.fail(ctx, "build", msgBuildFailed, err, func(u *common.TaskUpdate) {
			var be *store.BackendError
			if errors.As(err, &be) {
				u.ErrorMessage = ptr(be.Message)
			}
		})
	}

	completedAt := g.now()
	err = t.update(ctx, common.TaskUpdate{
		Status:       ptr(common.TaskStatusCompleted),
		Progress:     ptr(100),
		StageMessage: ptr(msgCompleted),
		BuildStats: &common.BuildStats{
			EntityCount:   res.EntityCount,
			RelationCount: res.RelationCount,
			MergedCount:   res.Stats.MergedEntities,
		},
		CompletedAt: &completedAt,
	})
	if err != nil {
		return nil, err
	}
	g.markFilesCompleted(ctx, t.task.FileIDs(), completedAt)

	logger.Info("[Build] Graph build finished", "task", taskID, "entities", res.EntityCount, "relations", res.RelationCount, "skipped", res.SkippedRelations)
	return res, nil
}

func (g *GraphClient) writeGraph(ctx context.Context, entities []common.DraftEntity, relations []common.DraftRelation, fileIDs []string) (*BuildResult, error) {
	res := &BuildResult{}
	keys := nodeKeys(entities)

	byName := make(map[string]string, len(entities))
	byID := make(map[string]string, len(entities)*2)
	for i, e := range entities {
		if _, ok := byName[e.Name]; !ok {
			byName[e.Name] = keys[i]
		}
		byID[e.ID] = keys[i]
		if _, ok := byID[keys[i]]; !ok {
			byID[keys[i]] = keys[i]
		}
	}

	for i, e := range entities {
		_, err := g.graph.UpsertEntity(ctx, store.EntityWrite{
			ID:         keys[i],
			Name:       e.Name,
			Type:       e.Type,
			Properties: e.Properties,
			FileIDs:    fileIDs,
		})
		if err != nil {
			return nil, fmt.Errorf("write entity %q: %w", e.Name, err)
		}
		res.EntityCount++
		switch e.AlignmentSuggestion.Kind() {
		case common.AlignmentKindMerge:
			res.Stats.MergedEntities++
		case common.AlignmentKindCandidate:
			res.Stats.UpdatedEntities++
		default:
			res.Stats.NewEntities++
		}
	}

	resolve := func(ref string) (string, bool) {
		if id, ok := byName[ref]; ok {
			return id, true
		}
		id, ok := byID[ref]
		return id, ok
	}
	for _, r := range relations {
		source, okS := resolve(r.Source)
		target, okT := resolve(r.Target)
		if !okS || !okT {
			logger.Warn("[Build] Skipping relation with unknown endpoint", "source", r.Source, "target", r.Target, "type", r.RelationType)
			res.SkippedRelations++
			continue
		}
		confidence := r.Confidence
		if confidence <= 0 {
			confidence = store.DefaultConfidence
		}
		err := g.graph.UpsertRelation(ctx, store.RelationWrite{
			SourceID:   source,
			TargetID:   target,
			Type:       r.RelationType,
			Properties: r.Properties,
			Confidence: confidence,
		})
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("[Build] Skipping relation whose endpoint is missing in the graph", "source", r.Source, "target", r.Target)
			res.SkippedRelations++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("write relation %q -> %q: %w", r.Source, r.Target, err)
		}
		res.RelationCount++
	}
	return res, nil
}

func (g *GraphClient) markFilesCompleted(ctx context.Context, fileIDs []string, at time.Time) {
	if g.files == nil {
		return
	}
	for _, id := range fileIDs {
		g.updateFile(ctx, id, common.FileUpdate{
			Status:        ptr(common.FileStatusCompleted),
			ProcessedTime: &at,
		})
	}
}
