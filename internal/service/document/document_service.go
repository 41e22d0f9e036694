package document

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"time"

	"github.com/feichai0017/document-extractor/internal/agent"
	agentdoc "github.com/feichai0017/document-extractor/internal/agent/document"
	"github.com/feichai0017/document-extractor/internal/models"
	"github.com/feichai0017/document-extractor/internal/ocr"
	"github.com/feichai0017/document-extractor/internal/paginator"
	"github.com/feichai0017/document-extractor/internal/raster"
	"github.com/feichai0017/document-extractor/internal/utils/validator"
	"github.com/feichai0017/document-extractor/pkg/converters"
	"github.com/feichai0017/document-extractor/pkg/queue"
	"github.com/feichai0017/document-extractor/pkg/storage"
)

// ErrNotCompleted is returned when a result is requested before the task
// finished.
var ErrNotCompleted = errors.New("task is not completed")

type DocumentProcessor interface {
	ProcessFile(ctx context.Context, file io.Reader, header *multipart.FileHeader, options map[string]string) (*models.ProcessingTask, error)
	ProcessBatch(ctx context.Context, files []*multipart.FileHeader, options map[string]string) ([]*models.ProcessingTask, error)
	GetProcessingStatus(ctx context.Context, taskID string) (*models.ProcessingTask, error)
	HandleDocument(ctx context.Context, task *queue.Task) error
	GetProcessedDocument(ctx context.Context, taskID string) (*converters.ProcessedDocument, error)
	CancelTask(ctx context.Context, taskID string) error
	// Extract runs the pipeline synchronously on an in-memory file.
	Extract(ctx context.Context, filename string, data []byte, options map[string]string) (*converters.ProcessedDocument, error)
	GetHistory(ctx context.Context, id string) (*models.HistoryRecord, error)
	CleanupTasks(ctx context.Context) error
}

// HistoryStore records accepted documents.
type HistoryStore interface {
	Put(ctx context.Context, id string, ts time.Time) error
	MarkProcessed(ctx context.Context, id, format string, at time.Time) error
	Get(ctx context.Context, id string) (*models.HistoryRecord, error)
	Delete(ctx context.Context, id string) error
}

// IsPermanent reports whether err will fail again on retry: the input is
// malformed or unsupported, it asks for an invalid configuration, or the
// recognition engine is not installed.
func IsPermanent(err error) bool {
	for _, target := range []error{
		raster.ErrMalformedImage,
		paginator.ErrMalformedDocument,
		ocr.ErrInvalidConfig,
		ocr.ErrEngineUnavailable,
		agentdoc.ErrInvalidMode,
		agent.ErrUnsupportedType,
		validator.ErrInvalidFile,
		storage.ErrObjectNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
