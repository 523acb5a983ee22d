package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

const queryNodes = `
MATCH (n:Entity)
WHERE ($type = '' OR n.type = $type)
  AND ($keyword = '' OR n.name CONTAINS $keyword OR coalesce(n.properties, '') CONTAINS $keyword)
RETURN n
ORDER BY n.name, n.id
SKIP $offset
LIMIT $limit
`

const queryEdgesAmong = `
MATCH (s:Entity)-[r:RELATION]->(t:Entity)
WHERE s.id IN $ids AND t.id IN $ids
RETURN s.id AS source, t.id AS target, r.type AS type, r.properties AS properties, r.confidence AS confidence
`

func (s *Store) QueryGraph(ctx context.Context, filter store.GraphFilter) (*store.GraphView, error) {
	filter = filter.Normalize()
	view := &store.GraphView{Nodes: []store.EntityNode{}, Edges: []store.GraphEdge{}}

	err := s.exec.Read(ctx, func(tx runner) error {
		records, err := tx.Run(ctx, queryNodes, map[string]any{
			"type":    filter.Type,
			"keyword": filter.Keyword,
			"offset":  int64(filter.Offset),
			"limit":   int64(filter.Limit),
		})
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(records))
		for _, rec := range records {
			v, _ := rec.Get("n")
			node, ok := nodeValue(v)
			if !ok {
				continue
			}
			n := nodeFromProps(node.Props)
			view.Nodes = append(view.Nodes, n)
			ids = append(ids, n.ID)
		}
		if len(ids) == 0 {
			return nil
		}

		records, err = tx.Run(ctx, queryEdgesAmong, map[string]any{"ids": stringsParam(ids)})
		if err != nil {
			return err
		}
		for _, rec := range records {
			props := map[string]any{
				"type":       stringValue(rec, "type"),
				"properties": stringValue(rec, "properties"),
			}
			if v, ok := rec.Get("confidence"); ok {
				props["confidence"] = v
			}
			view.Edges = append(view.Edges, edgeFromProps(stringValue(rec, "source"), stringValue(rec, "target"), props))
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return view, nil
}

// Variable-length bounds cannot be parameters; depth is clamped first.
const queryNetwork = `
MATCH (start:Entity {id: $id})
OPTIONAL MATCH p = (start)-[:RELATION*1..%d]-(:Entity)
WITH start, collect(p) AS paths
RETURN start,
       reduce(acc = [], p IN paths | acc + nodes(p)) AS nodes,
       reduce(acc = [], p IN paths | acc + relationships(p)) AS rels
`

// EntityNetwork returns the neighbourhood of entityID. Relationship
// endpoints come back as element ids and are mapped to entity ids; edges
// repeated across paths are reported once.
func (s *Store) EntityNetwork(ctx context.Context, entityID string, depth int) (*store.GraphView, error) {
	depth = store.NormalizeDepth(depth)
	view := &store.GraphView{Nodes: []store.EntityNode{}, Edges: []store.GraphEdge{}}
	found := false

	err := s.exec.Read(ctx, func(tx runner) error {
		records, err := tx.Run(ctx, fmt.Sprintf(queryNetwork, depth), map[string]any{"id": entityID})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		rec := records[0]
		startVal, _ := rec.Get("start")
		start, ok := nodeValue(startVal)
		if !ok {
			return nil
		}
		found = true

		idByElement := make(map[string]string)
		addNode := func(node dbtype.Node) {
			if _, seen := idByElement[node.ElementId]; seen {
				return
			}
			n := nodeFromProps(node.Props)
			idByElement[node.ElementId] = n.ID
			view.Nodes = append(view.Nodes, n)
		}
		addNode(start)

		nodesVal, _ := rec.Get("nodes")
		if list, ok := nodesVal.([]any); ok {
			for _, item := range list {
				if node, ok := nodeValue(item); ok {
					addNode(node)
				}
			}
		}

		seenEdges := make(map[string]struct{})
		relsVal, _ := rec.Get("rels")
		list, _ := relsVal.([]any)
		for _, item := range list {
			rel, ok := relationshipValue(item)
			if !ok {
				continue
			}
			source, okS := idByElement[rel.StartElementId]
			target, okT := idByElement[rel.EndElementId]
			if !okS || !okT {
				continue
			}
			edge := edgeFromProps(source, target, rel.Props)
			key := edge.Source + "-" + edge.Target + "-" + edge.Type
			if _, dup := seenEdges[key]; dup {
				continue
			}
			seenEdges[key] = struct{}{}
			view.Edges = append(view.Edges, edge)
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !found {
		return nil, store.ErrNotFound
	}
	return view, nil
}

const (
	countEntities  = `MATCH (n:Entity) RETURN count(n) AS count`
	countRelations = `MATCH (:Entity)-[r:RELATION]->(:Entity) RETURN count(r) AS count`
	typeCounts     = `
MATCH (n:Entity)
RETURN coalesce(n.type, '') AS type, count(*) AS count
ORDER BY count DESC, type
`
)

func (s *Store) Stats(ctx context.Context) (*store.GraphStats, error) {
	stats := &store.GraphStats{TypeDistribution: []store.TypeCount{}}
	err := s.exec.Read(ctx, func(tx runner) error {
		records, err := tx.Run(ctx, countEntities, nil)
		if err != nil {
			return err
		}
		if len(records) > 0 {
			stats.EntityCount = intValue(records[0], "count")
		}

		records, err = tx.Run(ctx, countRelations, nil)
		if err != nil {
			return err
		}
		if len(records) > 0 {
			stats.RelationCount = intValue(records[0], "count")
		}

		records, err = tx.Run(ctx, typeCounts, nil)
		if err != nil {
			return err
		}
		for _, rec := range records {
			stats.TypeDistribution = append(stats.TypeDistribution, store.TypeCount{
				Type:  stringValue(rec, "type"),
				Count: intValue(rec, "count"),
			})
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return stats, nil
}
