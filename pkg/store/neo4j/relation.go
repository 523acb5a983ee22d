package neo4j

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

const upsertRelation = `
MATCH (s:Entity {id: $sourceId}), (t:Entity {id: $targetId})
MERGE (s)-[r:RELATION {type: $type}]->(t)
ON CREATE SET r.createdAt = $now
SET r.properties = $properties,
    r.confidence = $confidence,
    r.updatedAt = $now
RETURN count(r) AS written
`

func (s *Store) UpsertRelation(ctx context.Context, w store.RelationWrite) error {
	relType := w.Type
	if relType == "" {
		relType = store.DefaultRelationType
	}
	props, err := json.Marshal(w.Properties)
	if err != nil {
		return err
	}

	var written int64
	err = s.exec.Write(ctx, func(tx runner) error {
		records, err := tx.Run(ctx, upsertRelation, map[string]any{
			"sourceId":   w.SourceID,
			"targetId":   w.TargetID,
			"type":       relType,
			"properties": string(props),
			"confidence": w.Confidence,
			"now":        s.timestamp(),
		})
		if err != nil {
			return err
		}
		if len(records) > 0 {
			written = intValue(records[0], "written")
		}
		return nil
	})
	if err != nil {
		return classify(err)
	}
	if written == 0 {
		return fmt.Errorf("relation %s -> %s: %w", w.SourceID, w.TargetID, store.ErrNotFound)
	}
	return nil
}
