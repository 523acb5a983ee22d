package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

func (s *Store) UpsertRelation(ctx context.Context, w store.RelationWrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	relType := w.Type
	if relType == "" {
		relType = store.DefaultRelationType
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, id := range []string{w.SourceID, w.TargetID} {
			if _, err := readNode(txn, id); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("relation endpoint %s: %w", id, err)
				}
				return err
			}
		}
		edge := store.GraphEdge{
			Source:     w.SourceID,
			Target:     w.TargetID,
			Type:       relType,
			Properties: w.Properties.Clone(),
			Confidence: w.Confidence,
		}
		data, err := json.Marshal(edge)
		if err != nil {
			return err
		}
		return txn.Set(edgeKey(edge.Source, edge.Target, edge.Type), data)
	})
}

func scanEdges(txn *badger.Txn) ([]store.GraphEdge, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(edgePrefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var edges []store.GraphEdge
	for it.Rewind(); it.Valid(); it.Next() {
		var e store.GraphEdge
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, nil
}
