package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
)

const taskColumns = `id, task_type, status, progress, stage_message, error_message, files,
	ontology_mode, ontology_id, draft_ontology, draft_entities, draft_relations,
	user_modifications, build_stats, extraction_meta, extraction_debug,
	created_by, created_at, updated_at, confirmed_at, completed_at`

func scanTask(row pgx.Row) (*common.BuildTask, error) {
	var (
		t            common.BuildTask
		progress     int32
		errorMessage *string
		ontologyID   *string
	)
	err := row.Scan(
		&t.ID,
		&t.TaskType,
		&t.Status,
		&progress,
		&t.StageMessage,
		&errorMessage,
		&t.Files,
		&t.OntologyMode,
		&ontologyID,
		&t.DraftOntology,
		&t.DraftEntities,
		&t.DraftRelations,
		&t.UserModifications,
		&t.BuildStats,
		&t.ExtractionMeta,
		&t.ExtractionDebug,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.ConfirmedAt,
		&t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Progress = int(progress)
	if errorMessage != nil {
		t.ErrorMessage = *errorMessage
	}
	if ontologyID != nil {
		t.OntologyID = *ontologyID
	}
	return &t, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

const createTask = `-- name: CreateTask :exec
INSERT INTO build_tasks (id, task_type, status, progress, stage_message, files, ontology_mode, ontology_id, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
`

func (q *Queries) CreateTask(ctx context.Context, t *common.BuildTask) error {
	files := t.Files
	if files == nil {
		files = []common.TaskFile{}
	}
	_, err := q.db.Exec(ctx, createTask,
		t.ID,
		t.TaskType,
		t.Status,
		t.Progress,
		t.StageMessage,
		files,
		t.OntologyMode,
		nullString(t.OntologyID),
		t.CreatedBy,
		t.CreatedAt,
	)
	return err
}

const getTask = `-- name: GetTask :one
SELECT ` + taskColumns + ` FROM build_tasks WHERE id = $1
`

func (q *Queries) GetTask(ctx context.Context, id string) (*common.BuildTask, error) {
	return scanTask(q.db.QueryRow(ctx, getTask, id))
}

const listTasks = `-- name: ListTasks :many
SELECT ` + taskColumns + ` FROM build_tasks
WHERE $1::text IS NULL OR status = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

type ListTasksParams struct {
	Status *common.TaskStatus
	Limit  int
	Offset int
}

func (q *Queries) ListTasks(ctx context.Context, arg ListTasksParams) ([]common.BuildTask, error) {
	rows, err := q.db.Query(ctx, listTasks, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []common.BuildTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *t)
	}
	return items, rows.Err()
}

const countTasks = `-- name: CountTasks :one
SELECT count(*) FROM build_tasks WHERE $1::text IS NULL OR status = $1
`

func (q *Queries) CountTasks(ctx context.Context, status *common.TaskStatus) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countTasks, status).Scan(&count)
	return count, err
}

const updateTask = `-- name: UpdateTask :execrows
UPDATE build_tasks SET
	status = COALESCE($2, status),
	progress = COALESCE($3, progress),
	stage_message = COALESCE($4, stage_message),
	error_message = COALESCE($5, error_message),
	draft_ontology = COALESCE($6, draft_ontology),
	draft_entities = COALESCE($7, draft_entities),
	draft_relations = COALESCE($8, draft_relations),
	user_modifications = COALESCE($9, user_modifications),
	build_stats = COALESCE($10, build_stats),
	extraction_meta = COALESCE($11, extraction_meta),
	extraction_debug = COALESCE($12, extraction_debug),
	confirmed_at = COALESCE($13, confirmed_at),
	completed_at = COALESCE($14, completed_at),
	updated_at = $15
WHERE id = $1
`

func (q *Queries) UpdateTask(ctx context.Context, id string, u common.TaskUpdate, now time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, updateTask,
		id,
		u.Status,
		u.Progress,
		u.StageMessage,
		u.ErrorMessage,
		u.DraftOntology,
		u.DraftEntities,
		u.DraftRelations,
		u.UserModifications,
		u.BuildStats,
		u.ExtractionMeta,
		u.ExtractionDebug,
		u.ConfirmedAt,
		u.CompletedAt,
		now,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteTask = `-- name: DeleteTask :execrows
DELETE FROM build_tasks WHERE id = $1
`

func (q *Queries) DeleteTask(ctx context.Context, id string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteTask, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
