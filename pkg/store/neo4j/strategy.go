package neo4j

import (
	"context"
	"encoding/json"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

// Strategy performs the entity upsert. Both variants store the same node
// shape; they differ in where the property union happens.
type Strategy interface {
	Name() string
	UpsertEntity(ctx context.Context, tx runner, w store.EntityWrite, now string) (store.UpsertResult, error)
}

const probeQuery = `RETURN apoc.convert.toJson({}) AS probe`

// ApocStrategy merges properties server side with APOC map functions.
type ApocStrategy struct{}

func (ApocStrategy) Name() string { return "with_extension" }

const apocUpsertEntity = `
MERGE (n:Entity {id: $id})
ON CREATE SET
    n.name = $name,
    n.type = $type,
    n.properties = $properties,
    n.sourceFiles = $fileIds,
    n.version = 1,
    n.createdAt = $now,
    n.updatedAt = $now
ON MATCH SET
    n.name = $name,
    n.type = $type,
    n.properties = apoc.convert.toJson(apoc.map.merge(
        apoc.convert.fromJsonMap(coalesce(n.properties, '{}')),
        apoc.convert.fromJsonMap($properties))),
    n.sourceFiles = coalesce(n.sourceFiles, []) + [f IN $fileIds WHERE NOT f IN coalesce(n.sourceFiles, [])],
    n.version = coalesce(n.version, 0) + 1,
    n.updatedAt = $now
RETURN n.version = 1 AS created
`

func (ApocStrategy) UpsertEntity(ctx context.Context, tx runner, w store.EntityWrite, now string) (store.UpsertResult, error) {
	props, err := json.Marshal(w.NodeProperties())
	if err != nil {
		return store.UpsertResult{}, err
	}
	records, err := tx.Run(ctx, apocUpsertEntity, map[string]any{
		"id":         w.ID,
		"name":       w.Name,
		"type":       w.Type,
		"properties": string(props),
		"fileIds":    stringsParam(store.AppendSourceFiles(nil, w.FileIDs)),
		"now":        now,
	})
	if err != nil {
		return store.UpsertResult{}, err
	}
	created := false
	if len(records) > 0 {
		created = boolValue(records[0], "created")
	}
	return store.UpsertResult{Created: created}, nil
}

// FallbackStrategy reads the stored properties back and unions them in Go.
// It only needs plain Cypher.
type FallbackStrategy struct{}

func (FallbackStrategy) Name() string { return "fallback" }

const fallbackMergeEntity = `
MERGE (n:Entity {id: $id})
ON CREATE SET n.version = 0, n.createdAt = $now
RETURN n.properties AS properties, n.sourceFiles AS sourceFiles, n.version AS version
`

const fallbackSetEntity = `
MATCH (n:Entity {id: $id})
SET n.name = $name,
    n.type = $type,
    n.properties = $properties,
    n.sourceFiles = $sourceFiles,
    n.version = $version,
    n.updatedAt = $now
`

func (FallbackStrategy) UpsertEntity(ctx context.Context, tx runner, w store.EntityWrite, now string) (store.UpsertResult, error) {
	records, err := tx.Run(ctx, fallbackMergeEntity, map[string]any{"id": w.ID, "now": now})
	if err != nil {
		return store.UpsertResult{}, err
	}

	var (
		existing common.Properties
		files    []string
		version  int64
	)
	if len(records) > 0 {
		rec := records[0]
		existing, err = common.ParseProperties(stringValue(rec, "properties"))
		if err != nil {
			logger.Warn("[Neo4j] Stored entity properties are not valid JSON, overwriting", "id", w.ID, "err", err)
			existing = common.Properties{}
		}
		files = stringsValue(rec, "sourceFiles")
		version = intValue(rec, "version")
	}

	merged, err := json.Marshal(existing.Merge(w.NodeProperties()))
	if err != nil {
		return store.UpsertResult{}, err
	}
	_, err = tx.Run(ctx, fallbackSetEntity, map[string]any{
		"id":          w.ID,
		"name":        w.Name,
		"type":        w.Type,
		"properties":  string(merged),
		"sourceFiles": stringsParam(store.AppendSourceFiles(files, w.FileIDs)),
		"version":     version + 1,
		"now":         now,
	})
	if err != nil {
		return store.UpsertResult{}, err
	}
	return store.UpsertResult{Created: version == 0}, nil
}

// currentStrategy probes for APOC once and caches the result. Errors other
// than a missing capability are returned without caching so the next call
// probes again.
func (s *Store) currentStrategy(ctx context.Context) (Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.strategy != nil {
		return s.strategy, nil
	}

	err := s.exec.Read(ctx, func(tx runner) error {
		_, err := tx.Run(ctx, probeQuery, nil)
		return err
	})
	switch err = classify(err); {
	case err == nil:
		s.strategy = ApocStrategy{}
	case isKind(err, store.BackendMissingCapability):
		logger.Warn("[Neo4j] APOC not available, using fallback entity upsert", "err", err)
		s.strategy = FallbackStrategy{}
	default:
		return nil, err
	}
	logger.Debug("[Neo4j] Neo4j upsert strategy selected", "strategy", s.strategy.Name())
	return s.strategy, nil
}

// downgrade switches permanently to the fallback strategy.
func (s *Store) downgrade(from Strategy) Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.strategy == from {
		logger.Warn("[Neo4j] APOC call failed, switching to fallback entity upsert for the rest of the process")
		s.strategy = FallbackStrategy{}
	}
	return s.strategy
}

// Strategy returns the selected strategy, or nil before the first write.
func (s *Store) Strategy() Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy
}
