package server

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/kgbuilder/internal/db"
	mid "github.com/OFFIS-RIT/kgbuilder/internal/server/middleware"
	"github.com/OFFIS-RIT/kgbuilder/internal/storage"
	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/graph"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store/badger"
)

// memRepo is an in-memory db.Repository.
type memRepo struct {
	mu         sync.Mutex
	tasks      map[string]*common.BuildTask
	files      map[string]*common.FileUpload
	ontologies map[string]*common.OntologyLibrary
	order      []string
}

func newMemRepo() *memRepo {
	return &memRepo{
		tasks:      map[string]*common.BuildTask{},
		files:      map[string]*common.FileUpload{},
		ontologies: map[string]*common.OntologyLibrary{},
	}
}

func (r *memRepo) addTask(t *common.BuildTask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tasks[t.ID] = &cp
}

func (r *memRepo) GetTask(_ context.Context, id string) (*common.BuildTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, store.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (r *memRepo) UpdateTask(_ context.Context, id string, update common.TaskUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, store.ErrNotFound)
	}
	update.Apply(t)
	return nil
}

func (r *memRepo) GetFile(_ context.Context, id string) (*common.FileUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", id, store.ErrNotFound)
	}
	cp := *f
	return &cp, nil
}

func (r *memRepo) UpdateFile(_ context.Context, id string, update common.FileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return fmt.Errorf("file %s: %w", id, store.ErrNotFound)
	}
	if update.Status != nil {
		f.Status = *update.Status
	}
	return nil
}

func (r *memRepo) GetOntology(_ context.Context, id string) (*common.OntologyLibrary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.ontologies[id]
	if !ok {
		return nil, fmt.Errorf("ontology %s: %w", id, store.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) GetDefaultOntology(ctx context.Context) (*common.OntologyLibrary, error) {
	items, _ := r.ListOntologies(ctx)
	for _, o := range items {
		if o.IsDefault {
			return &o, nil
		}
	}
	if len(items) > 0 {
		return &items[0], nil
	}
	return nil, store.ErrNotFound
}

func (r *memRepo) CreateTaskWithFiles(_ context.Context, task *common.BuildTask, files []common.FileUpload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range files {
		f := files[i]
		r.files[f.ID] = &f
	}
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *memRepo) ListTasks(_ context.Context, filter db.TaskFilter) ([]common.BuildTask, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	filter = filter.Normalize()
	var all []common.BuildTask
	for _, t := range r.tasks {
		if filter.Status == "" || t.Status == filter.Status {
			all = append(all, *t)
		}
	}
	slices.SortFunc(all, func(a, b common.BuildTask) int { return b.CreatedAt.Compare(a.CreatedAt) })
	start := min((filter.Page-1)*filter.Limit, len(all))
	end := min(start+filter.Limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (r *memRepo) DeleteTask(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *memRepo) GetFiles(_ context.Context, ids []string) ([]common.FileUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []common.FileUpload
	for _, id := range ids {
		if f, ok := r.files[id]; ok {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *memRepo) DeleteFiles(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.files, id)
	}
	return nil
}

func (r *memRepo) ListOntologies(context.Context) ([]common.OntologyLibrary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []common.OntologyLibrary
	for _, id := range r.order {
		if o := r.ontologies[id]; o.IsActive {
			out = append(out, *o)
		}
	}
	slices.Reverse(out)
	return out, nil
}

func (r *memRepo) CreateOntology(_ context.Context, o *common.OntologyLibrary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.ontologies[o.ID] = &cp
	r.order = append(r.order, o.ID)
	return nil
}

func (r *memRepo) UpdateOntology(_ context.Context, o *common.OntologyLibrary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ontologies[o.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *o
	r.ontologies[o.ID] = &cp
	return nil
}

func (r *memRepo) DeleteOntology(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.ontologies[id]
	if !ok {
		return store.ErrNotFound
	}
	o.IsActive = false
	return nil
}

var _ db.Repository = (*memRepo)(nil)

type fakePublisher struct {
	mu    sync.Mutex
	tasks []string
	err   error
}

func (p *fakePublisher) PublishTask(_ context.Context, taskID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.tasks = append(p.tasks, taskID)
	return nil
}

type testServer struct {
	e       *echo.Echo
	repo    *memRepo
	queue   *fakePublisher
	storage *storage.LocalStorage
	graph   *badger.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gs, err := badger.Open("")
	if err != nil {
		t.Fatalf("badger.Open: %v", err)
	}
	t.Cleanup(func() { _ = gs.Close(context.Background()) })

	files, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	ts := &testServer{
		repo:    newMemRepo(),
		queue:   &fakePublisher{},
		storage: files,
		graph:   gs,
	}
	builder := graph.NewGraphClient(graph.NewGraphClientParams{
		Tasks:      ts.repo,
		Files:      ts.repo,
		Ontologies: ts.repo,
		Graph:      gs,
	})
	ts.e = New(&mid.App{
		Repo:    ts.repo,
		Queue:   ts.queue,
		Storage: files,
		Graph:   gs,
		Builder: builder,
	})
	return ts
}
