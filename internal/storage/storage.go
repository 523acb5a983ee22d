package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/OFFIS-RIT/kgbuilder/internal/util"
)

// FileStorage stores uploaded documents. Paths returned by Put are what the
// file records keep and what ReadFile and Delete accept.
type FileStorage interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// FromEnv selects the storage driver from STORAGE_DRIVER: "s3" or "local"
// (default, below UPLOAD_DIR).
func FromEnv(ctx context.Context) (FileStorage, error) {
	switch driver := util.GetEnvString("STORAGE_DRIVER", "local"); driver {
	case "local":
		return NewLocalStorage(util.GetEnvString("UPLOAD_DIR", "uploads"))
	case "s3":
		return NewS3Storage(ctx, S3Config{
			Bucket:    util.GetEnv("S3_BUCKET"),
			Region:    util.GetEnvString("S3_REGION", "us-east-1"),
			Endpoint:  util.GetEnv("S3_ENDPOINT"),
			AccessKey: util.GetEnv("S3_ACCESS_KEY"),
			SecretKey: util.GetEnv("S3_SECRET_KEY"),
		})
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", driver)
	}
}
