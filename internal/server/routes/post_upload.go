package routes

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/kgbuilder/internal/storage"
	"github.com/OFFIS-RIT/kgbuilder/internal/util"
	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
)

// MaxUploadFiles is the number of documents one upload may carry.
const MaxUploadFiles = 10

type uploadResponse struct {
	Success   bool   `json:"success"`
	TaskID    string `json:"taskId"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	FileCount int    `json:"fileCount"`
}

// UploadAndExtractHandler stores the uploaded documents, creates a build
// task for them and hands it to the background worker.
func UploadAndExtractHandler(c echo.Context) error {
	type uploadBody struct {
		OntologyMode string `form:"ontologyMode" validate:"omitempty,oneof=auto existing"`
		OntologyID   string `form:"ontologyId"`
	}

	data := new(uploadBody)
	if err := c.Bind(data); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}
	if err := c.Validate(data); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidRequest)
	}
	mode := common.OntologyModeAuto
	if data.OntologyMode != "" {
		mode = common.OntologyMode(data.OntologyMode)
	}

	var uploads []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		uploads = form.File["files"]
	}
	if len(uploads) == 0 {
		return fail(c, http.StatusBadRequest, "请选择要上传的文件")
	}
	if len(uploads) > MaxUploadFiles {
		return fail(c, http.StatusBadRequest, fmt.Sprintf("最多同时上传%d个文件", MaxUploadFiles))
	}

	types := make([]common.FileType, len(uploads))
	for i, fh := range uploads {
		ft, ok := loader.DetectFileType(fh.Filename)
		if !ok {
			return fail(c, http.StatusBadRequest, "不支持的文件格式: "+fh.Filename)
		}
		types[i] = ft
	}

	ctx := c.Request().Context()
	a := app(c)
	user := userID(c)
	now := time.Now()

	files := make([]common.FileUpload, 0, len(uploads))
	stored := make([]string, 0, len(uploads))
	cleanup := func() {
		for _, p := range stored {
			if err := a.Storage.Delete(context.WithoutCancel(ctx), p); err != nil {
				logger.Warn("[HTTP] Failed to remove stored upload", "path", p, "err", err)
			}
		}
	}

	for i, fh := range uploads {
		key := util.StorageKey(fh.Filename)
		path, err := storeUpload(ctx, a.Storage, fh, key)
		if err != nil {
			cleanup()
			return failErr(c, "store upload", err)
		}
		stored = append(stored, path)
		files = append(files, common.FileUpload{
			ID:           util.NewID(),
			Filename:     key,
			OriginalName: fh.Filename,
			FileType:     types[i],
			FileSize:     fh.Size,
			FilePath:     path,
			Status:       common.FileStatusPending,
			UploadTime:   now,
			CreatedBy:    user,
		})
	}

	task := &common.BuildTask{
		ID:           util.NewID(),
		TaskType:     common.TaskTypeUserConfirmed,
		Status:       common.TaskStatusPending,
		StageMessage: "文件已上传，等待处理",
		OntologyMode: mode,
		OntologyID:   data.OntologyID,
		CreatedBy:    user,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, f := range files {
		task.Files = append(task.Files, common.TaskFile{FileID: f.ID, Filename: f.OriginalName})
	}

	if err := a.Repo.CreateTaskWithFiles(ctx, task, files); err != nil {
		cleanup()
		return failErr(c, "create task", err)
	}
	// The worker republishes pending tasks it has not seen, so a failed
	// publish only delays processing.
	if err := a.Queue.PublishTask(ctx, task.ID); err != nil {
		logger.Warn("[HTTP] Failed to enqueue task", "task", task.ID, "err", err)
	}

	logger.Info("[HTTP] Upload accepted", "task", task.ID, "files", len(files), "ontology_mode", mode)
	return c.JSON(http.StatusOK, uploadResponse{
		Success:   true,
		TaskID:    task.ID,
		Status:    "processing",
		Message:   "文件已上传，正在处理中...",
		FileCount: len(files),
	})
}

func storeUpload(ctx context.Context, s storage.FileStorage, fh *multipart.FileHeader, key string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	return s.Put(ctx, key, src, fh.Header.Get("Content-Type"))
}
