package neo4j

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

var errNoApoc = &neo4jdrv.Neo4jError{
	Code: "Neo.ClientError.Statement.SyntaxError",
	Msg:  "Unknown function 'apoc.convert.toJson'",
}

func testWrite() store.EntityWrite {
	return store.EntityWrite{
		ID:         "e1",
		Name:       "叉车",
		Type:       "设备",
		Properties: common.NewProperties("color", "red"),
		FileIDs:    []string{"f2"},
	}
}

func TestUpsertEntity_SelectsApocWhenProbeSucceeds(t *testing.T) {
	exec := &fakeExec{handler: func(cypher string, params map[string]any) ([]*neo4jdrv.Record, error) {
		if strings.Contains(cypher, "MERGE (n:Entity") {
			return []*neo4jdrv.Record{record("created", true)}, nil
		}
		return nil, nil
	}}
	s := newTestStore(exec)

	res, err := s.UpsertEntity(context.Background(), testWrite())
	if err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	if !res.Created {
		t.Fatalf("expected Created")
	}
	if _, ok := s.Strategy().(ApocStrategy); !ok {
		t.Fatalf("expected ApocStrategy, got %T", s.Strategy())
	}
	calls := exec.callsContaining("apoc.map.merge")
	if len(calls) != 1 {
		t.Fatalf("expected one APOC upsert, got %d", len(calls))
	}
	if got := calls[0].params["properties"]; got != `{"color":"red","name":"叉车","type":"设备"}` {
		t.Fatalf("unexpected properties param: %v", got)
	}

	// The probe runs only once.
	if _, err := s.UpsertEntity(context.Background(), testWrite()); err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	if n := len(exec.callsContaining(probeQuery)); n != 1 {
		t.Fatalf("expected 1 probe, got %d", n)
	}
}

func TestUpsertEntity_FallbackWhenProbeFails(t *testing.T) {
	exec := &fakeExec{handler: func(cypher string, params map[string]any) ([]*neo4jdrv.Record, error) {
		switch {
		case cypher == probeQuery:
			return nil, errNoApoc
		case cypher == fallbackMergeEntity:
			return []*neo4jdrv.Record{record(
				"properties", `{"color":"yellow","load":3,"name":"叉车","type":"设备"}`,
				"sourceFiles", []any{"f1"},
				"version", int64(2),
			)}, nil
		}
		return nil, nil
	}}
	s := newTestStore(exec)

	res, err := s.UpsertEntity(context.Background(), testWrite())
	if err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	if res.Created {
		t.Fatalf("existing node must not be reported as created")
	}
	if _, ok := s.Strategy().(FallbackStrategy); !ok {
		t.Fatalf("expected FallbackStrategy, got %T", s.Strategy())
	}

	sets := exec.callsContaining(fallbackSetEntity)
	if len(sets) != 1 {
		t.Fatalf("expected one SET statement, got %d", len(sets))
	}
	params := sets[0].params
	var props map[string]any
	if err := json.Unmarshal([]byte(params["properties"].(string)), &props); err != nil {
		t.Fatalf("properties param is not JSON: %v", err)
	}
	wantProps := map[string]any{"color": "red", "load": float64(3), "name": "叉车", "type": "设备"}
	if diff := cmp.Diff(wantProps, props); diff != "" {
		t.Fatalf("properties mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"f1", "f2"}, params["sourceFiles"]); diff != "" {
		t.Fatalf("sourceFiles mismatch (-want +got):\n%s", diff)
	}
	if params["version"] != int64(3) {
		t.Fatalf("version = %v, want 3", params["version"])
	}
}

func TestUpsertEntity_FallbackCreate(t *testing.T) {
	exec := &fakeExec{handler: func(cypher string, params map[string]any) ([]*neo4jdrv.Record, error) {
		switch {
		case cypher == probeQuery:
			return nil, errNoApoc
		case cypher == fallbackMergeEntity:
			return []*neo4jdrv.Record{record("properties", nil, "sourceFiles", nil, "version", int64(0))}, nil
		}
		return nil, nil
	}}
	s := newTestStore(exec)

	res, err := s.UpsertEntity(context.Background(), testWrite())
	if err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	if !res.Created {
		t.Fatalf("expected Created for a fresh node")
	}
	sets := exec.callsContaining(fallbackSetEntity)
	if len(sets) != 1 || sets[0].params["version"] != int64(1) {
		t.Fatalf("expected version 1 on create, got %+v", sets)
	}
}

func TestUpsertEntity_DowngradesOnApocFailure(t *testing.T) {
	exec := &fakeExec{handler: func(cypher string, params map[string]any) ([]*neo4jdrv.Record, error) {
		switch {
		case strings.Contains(cypher, "apoc.map.merge"):
			return nil, &neo4jdrv.Neo4jError{Code: "Neo.ClientError.Procedure.ProcedureNotFound", Msg: "apoc.map.merge is unavailable"}
		case cypher == fallbackMergeEntity:
			return []*neo4jdrv.Record{record("version", int64(0))}, nil
		}
		return nil, nil
	}}
	s := newTestStore(exec)

	res, err := s.UpsertEntity(context.Background(), testWrite())
	if err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	if !res.Created {
		t.Fatalf("expected retried write to create the node")
	}
	if _, ok := s.Strategy().(FallbackStrategy); !ok {
		t.Fatalf("expected permanent downgrade, got %T", s.Strategy())
	}

	if _, err := s.UpsertEntity(context.Background(), testWrite()); err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	if n := len(exec.callsContaining("apoc.map.merge")); n != 1 {
		t.Fatalf("APOC upsert must not be attempted again, got %d calls", n)
	}
}

func TestUpsertEntity_ProbeUnavailableIsNotCached(t *testing.T) {
	down := true
	exec := &fakeExec{handler: func(cypher string, params map[string]any) ([]*neo4jdrv.Record, error) {
		if cypher == probeQuery && down {
			return nil, errors.New("dial tcp: connection refused")
		}
		return nil, nil
	}}
	s := newTestStore(exec)

	_, err := s.UpsertEntity(context.Background(), testWrite())
	var be *store.BackendError
	if !errors.As(err, &be) || be.Kind != store.BackendUnavailable {
		t.Fatalf("expected unavailable backend error, got %v", err)
	}
	if s.Strategy() != nil {
		t.Fatalf("strategy must not be cached after an unavailable probe")
	}

	down = false
	if _, err := s.UpsertEntity(context.Background(), testWrite()); err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	if _, ok := s.Strategy().(ApocStrategy); !ok {
		t.Fatalf("expected ApocStrategy after recovery, got %T", s.Strategy())
	}
}
