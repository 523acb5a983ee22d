package badger

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

func readNode(txn *badger.Txn, id string) (*store.EntityNode, error) {
	item, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var node store.EntityNode
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &node)
	})
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func writeNode(txn *badger.Txn, node *store.EntityNode) error {
	data, err := json.Marshal(node)
	if err != nil {
		return err
	}
	return txn.Set(nodeKey(node.ID), data)
}

func (s *Store) UpsertEntity(ctx context.Context, w store.EntityWrite) (store.UpsertResult, error) {
	var res store.UpsertResult
	if err := ctx.Err(); err != nil {
		return res, err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		now := s.now().UTC()
		node, err := readNode(txn, w.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			res.Created = true
			node = &store.EntityNode{
				ID:          w.ID,
				Name:        w.Name,
				Type:        w.Type,
				Properties:  w.NodeProperties(),
				SourceFiles: store.AppendSourceFiles(nil, w.FileIDs),
				Version:     1,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
		case err != nil:
			return err
		default:
			node.Properties = node.Properties.Merge(w.NodeProperties())
			node.SourceFiles = store.AppendSourceFiles(node.SourceFiles, w.FileIDs)
			node.Version++
			node.UpdatedAt = now
		}
		return writeNode(txn, node)
	})
	return res, err
}

// DeleteByFiles drops the given files from every node. Nodes left without a
// source file are deleted together with their edges.
func (s *Store) DeleteByFiles(ctx context.Context, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		nodes, err := scanNodes(txn)
		if err != nil {
			return err
		}
		removed := make(map[string]struct{})
		for i := range nodes {
			node := &nodes[i]
			remaining := store.RemoveSourceFiles(node.SourceFiles, fileIDs)
			if len(remaining) == len(node.SourceFiles) {
				continue
			}
			if len(remaining) == 0 {
				if err := txn.Delete(nodeKey(node.ID)); err != nil {
					return err
				}
				removed[node.ID] = struct{}{}
				continue
			}
			node.SourceFiles = remaining
			node.UpdatedAt = s.now().UTC()
			if err := writeNode(txn, node); err != nil {
				return err
			}
		}
		if len(removed) == 0 {
			return nil
		}

		edges, err := scanEdges(txn)
		if err != nil {
			return err
		}
		for _, e := range edges {
			_, src := removed[e.Source]
			_, tgt := removed[e.Target]
			if src || tgt {
				if err := txn.Delete(edgeKey(e.Source, e.Target, e.Type)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func scanNodes(txn *badger.Txn) ([]store.EntityNode, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(nodePrefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var nodes []store.EntityNode
	for it.Rewind(); it.Valid(); it.Next() {
		var node store.EntityNode
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		})
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
