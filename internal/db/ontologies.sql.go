package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
)

const ontologyColumns = `id, name, version, domain, description, is_active, is_default,
	entity_types, relation_types, created_by, created_at, updated_at`

func scanOntology(row pgx.Row) (*common.OntologyLibrary, error) {
	var (
		o           common.OntologyLibrary
		description *string
	)
	err := row.Scan(
		&o.ID,
		&o.Name,
		&o.Version,
		&o.Domain,
		&description,
		&o.IsActive,
		&o.IsDefault,
		&o.EntityTypes,
		&o.RelationTypes,
		&o.CreatedBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if description != nil {
		o.Description = *description
	}
	if o.EntityTypes == nil {
		o.EntityTypes = []common.LibraryEntityType{}
	}
	if o.RelationTypes == nil {
		o.RelationTypes = []common.LibraryRelationType{}
	}
	return &o, nil
}

func collectOntologies(rows pgx.Rows) ([]common.OntologyLibrary, error) {
	defer rows.Close()
	var items []common.OntologyLibrary
	for rows.Next() {
		o, err := scanOntology(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *o)
	}
	return items, rows.Err()
}

const createOntology = `-- name: CreateOntology :exec
INSERT INTO ontology_libraries (id, name, version, domain, description, is_active, is_default,
	entity_types, relation_types, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
`

func (q *Queries) CreateOntology(ctx context.Context, o *common.OntologyLibrary) error {
	_, err := q.db.Exec(ctx, createOntology,
		o.ID,
		o.Name,
		o.Version,
		o.Domain,
		nullString(o.Description),
		o.IsActive,
		o.IsDefault,
		o.EntityTypes,
		o.RelationTypes,
		o.CreatedBy,
		o.CreatedAt,
	)
	return err
}

const getOntology = `-- name: GetOntology :one
SELECT ` + ontologyColumns + ` FROM ontology_libraries WHERE id = $1
`

func (q *Queries) GetOntology(ctx context.Context, id string) (*common.OntologyLibrary, error) {
	return scanOntology(q.db.QueryRow(ctx, getOntology, id))
}

const getDefaultOntology = `-- name: GetDefaultOntology :one
SELECT ` + ontologyColumns + ` FROM ontology_libraries
WHERE is_active
ORDER BY is_default DESC, created_at DESC
LIMIT 1
`

func (q *Queries) GetDefaultOntology(ctx context.Context) (*common.OntologyLibrary, error) {
	return scanOntology(q.db.QueryRow(ctx, getDefaultOntology))
}

const listActiveOntologies = `-- name: ListActiveOntologies :many
SELECT ` + ontologyColumns + ` FROM ontology_libraries
WHERE is_active
ORDER BY created_at DESC
`

func (q *Queries) ListActiveOntologies(ctx context.Context) ([]common.OntologyLibrary, error) {
	rows, err := q.db.Query(ctx, listActiveOntologies)
	if err != nil {
		return nil, err
	}
	return collectOntologies(rows)
}

const updateOntology = `-- name: UpdateOntology :execrows
UPDATE ontology_libraries SET
	name = $2,
	version = $3,
	domain = $4,
	description = $5,
	is_active = $6,
	is_default = $7,
	entity_types = $8,
	relation_types = $9,
	updated_at = $10
WHERE id = $1
`

func (q *Queries) UpdateOntology(ctx context.Context, o *common.OntologyLibrary) (int64, error) {
	tag, err := q.db.Exec(ctx, updateOntology,
		o.ID,
		o.Name,
		o.Version,
		o.Domain,
		nullString(o.Description),
		o.IsActive,
		o.IsDefault,
		o.EntityTypes,
		o.RelationTypes,
		o.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const clearDefaultOntology = `-- name: ClearDefaultOntology :exec
UPDATE ontology_libraries SET is_default = FALSE WHERE is_default AND id <> $1
`

func (q *Queries) ClearDefaultOntology(ctx context.Context, keepID string) error {
	_, err := q.db.Exec(ctx, clearDefaultOntology, keepID)
	return err
}

const deactivateOntology = `-- name: DeactivateOntology :execrows
UPDATE ontology_libraries SET is_active = FALSE, updated_at = now() WHERE id = $1
`

func (q *Queries) DeactivateOntology(ctx context.Context, id string) (int64, error) {
	tag, err := q.db.Exec(ctx, deactivateOntology, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
