package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-extractor/internal/agent"
	agentdoc "github.com/feichai0017/document-extractor/internal/agent/document"
	"github.com/feichai0017/document-extractor/internal/models"
	"github.com/feichai0017/document-extractor/internal/ocr"
	"github.com/feichai0017/document-extractor/internal/paginator"
	"github.com/feichai0017/document-extractor/internal/raster"
	"github.com/feichai0017/document-extractor/internal/service/document"
	"github.com/feichai0017/document-extractor/internal/utils/validator"
	"github.com/feichai0017/document-extractor/pkg/logger"
	"github.com/feichai0017/document-extractor/pkg/queue"
	"github.com/feichai0017/document-extractor/pkg/storage"
)

type Handlers struct {
	Document *DocumentHandler
	Convert  *ConvertHandler
}

func NewHandlers(
	documentService document.DocumentProcessor,
	logger logger.Logger,
	maxUploadSize int64,
) *Handlers {
	return &Handlers{
		Document: NewDocumentHandler(documentService, logger, maxUploadSize),
		Convert:  NewConvertHandler(logger, maxUploadSize),
	}
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, raster.ErrMalformedImage), errors.Is(err, paginator.ErrMalformedDocument):
		return http.StatusUnprocessableEntity
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ocr.ErrEngineUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ocr.ErrInvalidConfig),
		errors.Is(err, agentdoc.ErrInvalidMode),
		errors.Is(err, agent.ErrUnsupportedType),
		errors.Is(err, validator.ErrInvalidFile):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrObjectNotFound),
		errors.Is(err, queue.ErrTaskNotFound),
		errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, document.ErrNotCompleted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleError 统一错误处理
func handleError(log logger.Logger, c *gin.Context, status int, message string, err error) {
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if status >= http.StatusInternalServerError {
		log.Error(message, fields...)
	} else {
		log.Warn(message, fields...)
	}

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, response)
}
