package neo4j

import (
	"context"
	"strings"
	"time"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type fakeCall struct {
	cypher string
	params map[string]any
	write  bool
}

// fakeExec answers statements through handler and records every call.
type fakeExec struct {
	handler func(cypher string, params map[string]any) ([]*neo4jdrv.Record, error)
	calls   []fakeCall
}

type fakeTx struct {
	exec  *fakeExec
	write bool
}

func (t fakeTx) Run(ctx context.Context, cypher string, params map[string]any) ([]*neo4jdrv.Record, error) {
	t.exec.calls = append(t.exec.calls, fakeCall{cypher: cypher, params: params, write: t.write})
	if t.exec.handler == nil {
		return nil, nil
	}
	return t.exec.handler(cypher, params)
}

func (f *fakeExec) Write(ctx context.Context, fn func(tx runner) error) error {
	return fn(fakeTx{exec: f, write: true})
}

func (f *fakeExec) Read(ctx context.Context, fn func(tx runner) error) error {
	return fn(fakeTx{exec: f})
}

func (f *fakeExec) callsContaining(fragment string) []fakeCall {
	var out []fakeCall
	for _, c := range f.calls {
		if strings.Contains(c.cypher, fragment) {
			out = append(out, c)
		}
	}
	return out
}

func record(kv ...any) *neo4jdrv.Record {
	rec := &neo4jdrv.Record{}
	for i := 0; i+1 < len(kv); i += 2 {
		rec.Keys = append(rec.Keys, kv[i].(string))
		rec.Values = append(rec.Values, kv[i+1])
	}
	return rec
}

func newTestStore(exec *fakeExec) *Store {
	s := New(exec)
	s.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	return s
}
