package neo4j

import (
	"context"

	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

func (s *Store) UpsertEntity(ctx context.Context, w store.EntityWrite) (store.UpsertResult, error) {
	strategy, err := s.currentStrategy(ctx)
	if err != nil {
		return store.UpsertResult{}, err
	}

	res, err := s.upsertWith(ctx, strategy, w)
	if err == nil || !isKind(err, store.BackendMissingCapability) {
		return res, err
	}
	if _, ok := strategy.(FallbackStrategy); ok {
		return res, err
	}

	// The failed transaction was rolled back; retry in a fresh one.
	return s.upsertWith(ctx, s.downgrade(strategy), w)
}

func (s *Store) upsertWith(ctx context.Context, strategy Strategy, w store.EntityWrite) (store.UpsertResult, error) {
	var res store.UpsertResult
	err := s.exec.Write(ctx, func(tx runner) error {
		var err error
		res, err = strategy.UpsertEntity(ctx, tx, w, s.timestamp())
		return err
	})
	return res, classify(err)
}

const deleteByFiles = `
MATCH (n:Entity)
WHERE any(f IN coalesce(n.sourceFiles, []) WHERE f IN $fileIds)
SET n.sourceFiles = [f IN n.sourceFiles WHERE NOT f IN $fileIds],
    n.updatedAt = $now
WITH n
WHERE size(n.sourceFiles) = 0
DETACH DELETE n
`

func (s *Store) DeleteByFiles(ctx context.Context, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	err := s.exec.Write(ctx, func(tx runner) error {
		_, err := tx.Run(ctx, deleteByFiles, map[string]any{
			"fileIds": stringsParam(fileIDs),
			"now":     s.timestamp(),
		})
		return err
	})
	return classify(err)
}
