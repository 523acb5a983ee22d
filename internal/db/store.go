package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

const (
	defaultTaskPageSize = 10
	maxTaskPageSize     = 100
)

// TaskFilter selects a page of tasks, newest first. An empty Status
// matches every task.
type TaskFilter struct {
	Status common.TaskStatus
	Page   int
	Limit  int
}

// Normalize clamps the page to 1.. and the limit to 1..100, default 10.
func (f TaskFilter) Normalize() TaskFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultTaskPageSize
	}
	f.Limit = min(f.Limit, maxTaskPageSize)
	return f
}

// Repository is the document store of the service: tasks, uploaded files
// and ontology libraries.
type Repository interface {
	store.TaskStore
	store.FileStore
	store.OntologyStore

	// CreateTaskWithFiles stores the file records and the task referencing
	// them atomically.
	CreateTaskWithFiles(ctx context.Context, task *common.BuildTask, files []common.FileUpload) error
	ListTasks(ctx context.Context, filter TaskFilter) ([]common.BuildTask, int64, error)
	DeleteTask(ctx context.Context, id string) error

	GetFiles(ctx context.Context, ids []string) ([]common.FileUpload, error)
	DeleteFiles(ctx context.Context, ids []string) error

	ListOntologies(ctx context.Context) ([]common.OntologyLibrary, error)
	CreateOntology(ctx context.Context, o *common.OntologyLibrary) error
	UpdateOntology(ctx context.Context, o *common.OntologyLibrary) error
	DeleteOntology(ctx context.Context, id string) error
}

// Store is the Postgres Repository.
type Store struct {
	pool *pgxpool.Pool
	q    *Queries
	now  func() time.Time
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: New(pool), now: time.Now}
}

// notFound maps a missing row to store.ErrNotFound.
func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, store.ErrNotFound)
	}
	return err
}

func affected(n int64, err error, what, id string) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*common.BuildTask, error) {
	t, err := s.q.GetTask(ctx, id)
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, id string, update common.TaskUpdate) error {
	n, err := s.q.UpdateTask(ctx, id, update, s.now())
	return affected(n, err, "task", id)
}

func (s *Store) CreateTaskWithFiles(ctx context.Context, task *common.BuildTask, files []common.FileUpload) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		q := s.q.WithTx(tx)
		for i := range files {
			if err := q.CreateFile(ctx, &files[i]); err != nil {
				return fmt.Errorf("create file %s: %w", files[i].ID, err)
			}
		}
		if err := q.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("create task %s: %w", task.ID, err)
		}
		return nil
	})
}

func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]common.BuildTask, int64, error) {
	filter = filter.Normalize()
	var status *common.TaskStatus
	if filter.Status != "" {
		status = &filter.Status
	}
	tasks, err := s.q.ListTasks(ctx, ListTasksParams{
		Status: status,
		Limit:  filter.Limit,
		Offset: (filter.Page - 1) * filter.Limit,
	})
	if err != nil {
		return nil, 0, err
	}
	total, err := s.q.CountTasks(ctx, status)
	if err != nil {
		return nil, 0, err
	}
	if tasks == nil {
		tasks = []common.BuildTask{}
	}
	return tasks, total, nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	n, err := s.q.DeleteTask(ctx, id)
	return affected(n, err, "task", id)
}

func (s *Store) GetFile(ctx context.Context, id string) (*common.FileUpload, error) {
	f, err := s.q.GetFile(ctx, id)
	if err != nil {
		return nil, notFound(err, "file", id)
	}
	return f, nil
}

func (s *Store) UpdateFile(ctx context.Context, id string, update common.FileUpdate) error {
	n, err := s.q.UpdateFile(ctx, UpdateFileParams{
		ID:            id,
		Status:        update.Status,
		ExtractedText: update.ExtractedText,
		SheetCount:    update.SheetCount,
		PageCount:     update.PageCount,
		ProcessedTime: update.ProcessedTime,
		ErrorMessage:  update.ErrorMessage,
	})
	return affected(n, err, "file", id)
}

func (s *Store) GetFiles(ctx context.Context, ids []string) ([]common.FileUpload, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.q.GetFilesByIDs(ctx, ids)
}

func (s *Store) DeleteFiles(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.q.DeleteFiles(ctx, ids)
	return err
}

func (s *Store) GetOntology(ctx context.Context, id string) (*common.OntologyLibrary, error) {
	o, err := s.q.GetOntology(ctx, id)
	if err != nil {
		return nil, notFound(err, "ontology", id)
	}
	return o, nil
}

func (s *Store) GetDefaultOntology(ctx context.Context) (*common.OntologyLibrary, error) {
	o, err := s.q.GetDefaultOntology(ctx)
	if err != nil {
		return nil, notFound(err, "ontology", "default")
	}
	return o, nil
}

func (s *Store) ListOntologies(ctx context.Context) ([]common.OntologyLibrary, error) {
	items, err := s.q.ListActiveOntologies(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []common.OntologyLibrary{}
	}
	return items, nil
}

// CreateOntology stores o. A new default library takes the default flag
// from every other library.
func (s *Store) CreateOntology(ctx context.Context, o *common.OntologyLibrary) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		q := s.q.WithTx(tx)
		if err := q.CreateOntology(ctx, o); err != nil {
			return err
		}
		if o.IsDefault {
			return q.ClearDefaultOntology(ctx, o.ID)
		}
		return nil
	})
}

func (s *Store) UpdateOntology(ctx context.Context, o *common.OntologyLibrary) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		q := s.q.WithTx(tx)
		n, err := q.UpdateOntology(ctx, o)
		if err := affected(n, err, "ontology", o.ID); err != nil {
			return err
		}
		if o.IsDefault {
			return q.ClearDefaultOntology(ctx, o.ID)
		}
		return nil
	})
}

// DeleteOntology deactivates the library. Tasks referencing it keep their
// draft ontology.
func (s *Store) DeleteOntology(ctx context.Context, id string) error {
	n, err := s.q.DeactivateOntology(ctx, id)
	return affected(n, err, "ontology", id)
}

var _ Repository = (*Store)(nil)
