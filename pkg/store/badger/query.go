package badger

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

func (s *Store) QueryGraph(ctx context.Context, filter store.GraphFilter) (*store.GraphView, error) {
	filter = filter.Normalize()
	view := &store.GraphView{Nodes: []store.EntityNode{}, Edges: []store.GraphEdge{}}

	err := s.db.View(func(txn *badger.Txn) error {
		nodes, err := scanNodes(txn)
		if err != nil {
			return err
		}
		matched := make([]store.EntityNode, 0, len(nodes))
		for _, n := range nodes {
			if filter.Type != "" && n.Type != filter.Type {
				continue
			}
			if filter.Keyword != "" && !matchesKeyword(n, filter.Keyword) {
				continue
			}
			matched = append(matched, n)
		}
		slices.SortFunc(matched, func(a, b store.EntityNode) int {
			return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
		})

		start := min(filter.Offset, len(matched))
		end := min(start+filter.Limit, len(matched))
		view.Nodes = append(view.Nodes, matched[start:end]...)

		ids := make(map[string]struct{}, len(view.Nodes))
		for _, n := range view.Nodes {
			ids[n.ID] = struct{}{}
		}
		edges, err := scanEdges(txn)
		if err != nil {
			return err
		}
		for _, e := range edges {
			_, src := ids[e.Source]
			_, tgt := ids[e.Target]
			if src && tgt {
				view.Edges = append(view.Edges, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func matchesKeyword(n store.EntityNode, keyword string) bool {
	if strings.Contains(n.Name, keyword) {
		return true
	}
	raw, err := json.Marshal(n.Properties)
	if err != nil {
		return false
	}
	return strings.Contains(string(raw), keyword)
}

// EntityNetwork returns every node within depth hops of entityID, ignoring
// edge direction, and the edges among them.
func (s *Store) EntityNetwork(ctx context.Context, entityID string, depth int) (*store.GraphView, error) {
	depth = store.NormalizeDepth(depth)
	view := &store.GraphView{Nodes: []store.EntityNode{}, Edges: []store.GraphEdge{}}

	err := s.db.View(func(txn *badger.Txn) error {
		start, err := readNode(txn, entityID)
		if err != nil {
			return err
		}
		edges, err := scanEdges(txn)
		if err != nil {
			return err
		}
		adjacent := make(map[string][]string)
		for _, e := range edges {
			adjacent[e.Source] = append(adjacent[e.Source], e.Target)
			adjacent[e.Target] = append(adjacent[e.Target], e.Source)
		}

		seen := map[string]struct{}{start.ID: {}}
		order := []string{start.ID}
		frontier := []string{start.ID}
		for range depth {
			var next []string
			for _, id := range frontier {
				for _, peer := range adjacent[id] {
					if _, ok := seen[peer]; ok {
						continue
					}
					seen[peer] = struct{}{}
					order = append(order, peer)
					next = append(next, peer)
				}
			}
			frontier = next
		}

		for _, id := range order {
			n, err := readNode(txn, id)
			if err != nil {
				continue
			}
			view.Nodes = append(view.Nodes, *n)
		}
		for _, e := range edges {
			_, src := seen[e.Source]
			_, tgt := seen[e.Target]
			if src && tgt {
				view.Edges = append(view.Edges, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Store) Stats(ctx context.Context) (*store.GraphStats, error) {
	stats := &store.GraphStats{TypeDistribution: []store.TypeCount{}}
	err := s.db.View(func(txn *badger.Txn) error {
		nodes, err := scanNodes(txn)
		if err != nil {
			return err
		}
		edges, err := scanEdges(txn)
		if err != nil {
			return err
		}
		stats.EntityCount = int64(len(nodes))
		stats.RelationCount = int64(len(edges))

		counts := make(map[string]int64)
		for _, n := range nodes {
			counts[n.Type]++
		}
		for t, c := range counts {
			stats.TypeDistribution = append(stats.TypeDistribution, store.TypeCount{Type: t, Count: c})
		}
		slices.SortFunc(stats.TypeDistribution, func(a, b store.TypeCount) int {
			return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Type, b.Type))
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
