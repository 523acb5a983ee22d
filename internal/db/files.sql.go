package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
)

const fileColumns = `id, filename, original_name, file_type, file_size, file_path, status,
	extracted_text, sheet_count, page_count, upload_time, processed_time, error_message, created_by`

func scanFile(row pgx.Row) (*common.FileUpload, error) {
	var (
		f             common.FileUpload
		extractedText *string
		sheetCount    *int32
		pageCount     *int32
		errorMessage  *string
	)
	err := row.Scan(
		&f.ID,
		&f.Filename,
		&f.OriginalName,
		&f.FileType,
		&f.FileSize,
		&f.FilePath,
		&f.Status,
		&extractedText,
		&sheetCount,
		&pageCount,
		&f.UploadTime,
		&f.ProcessedTime,
		&errorMessage,
		&f.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	if extractedText != nil {
		f.ExtractedText = *extractedText
	}
	if sheetCount != nil {
		f.SheetCount = int(*sheetCount)
	}
	if pageCount != nil {
		f.PageCount = int(*pageCount)
	}
	if errorMessage != nil {
		f.ErrorMessage = *errorMessage
	}
	return &f, nil
}

const createFile = `-- name: CreateFile :exec
INSERT INTO file_uploads (id, filename, original_name, file_type, file_size, file_path, status, upload_time, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func (q *Queries) CreateFile(ctx context.Context, f *common.FileUpload) error {
	_, err := q.db.Exec(ctx, createFile,
		f.ID,
		f.Filename,
		f.OriginalName,
		f.FileType,
		f.FileSize,
		f.FilePath,
		f.Status,
		f.UploadTime,
		f.CreatedBy,
	)
	return err
}

const getFile = `-- name: GetFile :one
SELECT ` + fileColumns + ` FROM file_uploads WHERE id = $1
`

func (q *Queries) GetFile(ctx context.Context, id string) (*common.FileUpload, error) {
	return scanFile(q.db.QueryRow(ctx, getFile, id))
}

const getFilesByIDs = `-- name: GetFilesByIDs :many
SELECT ` + fileColumns + ` FROM file_uploads WHERE id = ANY($1::text[]) ORDER BY upload_time
`

func (q *Queries) GetFilesByIDs(ctx context.Context, ids []string) ([]common.FileUpload, error) {
	rows, err := q.db.Query(ctx, getFilesByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []common.FileUpload
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *f)
	}
	return items, rows.Err()
}

const updateFile = `-- name: UpdateFile :execrows
UPDATE file_uploads SET
	status = COALESCE($2, status),
	extracted_text = COALESCE($3, extracted_text),
	sheet_count = COALESCE($4, sheet_count),
	page_count = COALESCE($5, page_count),
	processed_time = COALESCE($6, processed_time),
	error_message = COALESCE($7, error_message)
WHERE id = $1
`

type UpdateFileParams struct {
	ID            string
	Status        *common.FileStatus
	ExtractedText *string
	SheetCount    *int
	PageCount     *int
	ProcessedTime *time.Time
	ErrorMessage  *string
}

func (q *Queries) UpdateFile(ctx context.Context, arg UpdateFileParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateFile,
		arg.ID,
		arg.Status,
		arg.ExtractedText,
		arg.SheetCount,
		arg.PageCount,
		arg.ProcessedTime,
		arg.ErrorMessage,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteFiles = `-- name: DeleteFiles :execrows
DELETE FROM file_uploads WHERE id = ANY($1::text[])
`

func (q *Queries) DeleteFiles(ctx context.Context, ids []string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteFiles, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
