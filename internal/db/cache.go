package db

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
)

const defaultOntologyKey = "\x00default"

// CachedStore keeps ontology libraries and finished tasks in memory for a
// limited time. Running tasks are always read through, since the worker
// updates them from another process.
type CachedStore struct {
	Repository

	tasks      *expirable.LRU[string, *common.BuildTask]
	ontologies *expirable.LRU[string, *common.OntologyLibrary]
}

// NewCachedStore wraps repo. size bounds each cache, ttl bounds the age of
// an entry.
func NewCachedStore(repo Repository, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = 256
	}
	return &CachedStore{
		Repository: repo,
		tasks:      expirable.NewLRU[string, *common.BuildTask](size, nil, ttl),
		ontologies: expirable.NewLRU[string, *common.OntologyLibrary](size, nil, ttl),
	}
}

func (c *CachedStore) GetTask(ctx context.Context, id string) (*common.BuildTask, error) {
	if t, ok := c.tasks.Get(id); ok {
		cp := *t
		return &cp, nil
	}
	t, err := c.Repository.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		cp := *t
		c.tasks.Add(id, &cp)
	}
	return t, nil
}

func (c *CachedStore) UpdateTask(ctx context.Context, id string, update common.TaskUpdate) error {
	c.tasks.Remove(id)
	return c.Repository.UpdateTask(ctx, id, update)
}

func (c *CachedStore) DeleteTask(ctx context.Context, id string) error {
	c.tasks.Remove(id)
	return c.Repository.DeleteTask(ctx, id)
}

func (c *CachedStore) GetOntology(ctx context.Context, id string) (*common.OntologyLibrary, error) {
	if o, ok := c.ontologies.Get(id); ok {
		return o, nil
	}
	o, err := c.Repository.GetOntology(ctx, id)
	if err != nil {
		return nil, err
	}
	c.ontologies.Add(id, o)
	return o, nil
}

func (c *CachedStore) GetDefaultOntology(ctx context.Context) (*common.OntologyLibrary, error) {
	if o, ok := c.ontologies.Get(defaultOntologyKey); ok {
		return o, nil
	}
	o, err := c.Repository.GetDefaultOntology(ctx)
	if err != nil {
		return nil, err
	}
	c.ontologies.Add(defaultOntologyKey, o)
	return o, nil
}

// Every ontology write can move the default flag, so all entries go.

func (c *CachedStore) CreateOntology(ctx context.Context, o *common.OntologyLibrary) error {
	defer c.ontologies.Purge()
	return c.Repository.CreateOntology(ctx, o)
}

func (c *CachedStore) UpdateOntology(ctx context.Context, o *common.OntologyLibrary) error {
	defer c.ontologies.Purge()
	return c.Repository.UpdateOntology(ctx, o)
}

func (c *CachedStore) DeleteOntology(ctx context.Context, id string) error {
	defer c.ontologies.Purge()
	return c.Repository.DeleteOntology(ctx, id)
}
