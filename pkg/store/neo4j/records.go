package neo4j

import (
	"time"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

func stringsParam(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func stringValue(rec *neo4jdrv.Record, key string) string {
	v, _ := rec.Get(key)
	return asString(v)
}

func intValue(rec *neo4jdrv.Record, key string) int64 {
	v, _ := rec.Get(key)
	return asInt(v)
}

func boolValue(rec *neo4jdrv.Record, key string) bool {
	v, _ := rec.Get(key)
	b, _ := v.(bool)
	return b
}

func stringsValue(rec *neo4jdrv.Record, key string) []string {
	v, _ := rec.Get(key)
	return asStrings(v)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	}
	return 0
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	}
	return 0
}

func asStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		ts, err := time.Parse(time.RFC3339Nano, t)
		if err == nil {
			return ts
		}
	}
	return time.Time{}
}

func parseProperties(id string, v any) common.Properties {
	props, err := common.ParseProperties(asString(v))
	if err != nil {
		logger.Warn("[Neo4j] Ignoring malformed stored properties", "id", id, "err", err)
		return common.Properties{}
	}
	return props
}

func nodeFromProps(props map[string]any) store.EntityNode {
	id := asString(props["id"])
	return store.EntityNode{
		ID:          id,
		Name:        asString(props["name"]),
		Type:        asString(props["type"]),
		Properties:  parseProperties(id, props["properties"]),
		SourceFiles: asStrings(props["sourceFiles"]),
		Version:     int(asInt(props["version"])),
		CreatedAt:   parseTime(props["createdAt"]),
		UpdatedAt:   parseTime(props["updatedAt"]),
	}
}

func edgeFromProps(source, target string, props map[string]any) store.GraphEdge {
	relType := asString(props["type"])
	if relType == "" {
		relType = store.DefaultRelationType
	}
	conf := store.DefaultConfidence
	if v, ok := props["confidence"]; ok && v != nil {
		conf = asFloat(v)
	}
	return store.GraphEdge{
		Source:     source,
		Target:     target,
		Type:       relType,
		Properties: parseProperties(source+"->"+target, props["properties"]),
		Confidence: conf,
	}
}

func nodeValue(v any) (dbtype.Node, bool) {
	switch t := v.(type) {
	case dbtype.Node:
		return t, true
	case *dbtype.Node:
		if t != nil {
			return *t, true
		}
	}
	return dbtype.Node{}, false
}

func relationshipValue(v any) (dbtype.Relationship, bool) {
	switch t := v.(type) {
	case dbtype.Relationship:
		return t, true
	case *dbtype.Relationship:
		if t != nil {
			return *t, true
		}
	}
	return dbtype.Relationship{}, false
}
