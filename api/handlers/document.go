package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-extractor/internal/models"
	"github.com/feichai0017/document-extractor/internal/service/document"
	"github.com/feichai0017/document-extractor/pkg/converters"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

// optionKeys are the recognition overrides accepted as form fields.
var optionKeys = []string{"lang", "oem", "psm", "mode"}

type DocumentHandler struct {
	service   document.DocumentProcessor
	logger    logger.Logger
	maxUpload int64
}

// ProcessResponse 定义处理响应结构
type ProcessResponse struct {
	TaskID    string `json:"taskId"`
	Status    string `json:"status"`
	Filename  string `json:"filename"`
	FileSize  int64  `json:"fileSize"`
	FileType  string `json:"fileType"`
	CreatedAt string `json:"createdAt"`
}

// ExtractRequest is the JSON form of /extract. Data is base64; MD5, when
// present, is the hex MD5 of the base64 string.
type ExtractRequest struct {
	Filename string            `json:"filename" binding:"required"`
	Data     string            `json:"data" binding:"required"`
	MD5      string            `json:"md5"`
	Options  map[string]string `json:"options"`
}

func NewDocumentHandler(service document.DocumentProcessor, logger logger.Logger, maxUpload int64) *DocumentHandler {
	return &DocumentHandler{
		service:   service,
		logger:    logger,
		maxUpload: maxUpload,
	}
}

func (h *DocumentHandler) limitBody(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
}

func formOptions(c *gin.Context) map[string]string {
	options := make(map[string]string)
	for _, key := range optionKeys {
		if v := c.PostForm(key); v != "" {
			options[key] = v
		}
	}
	return options
}

// ProcessDocument 处理单个文档
func (h *DocumentHandler) ProcessDocument(c *gin.Context) {
	h.limitBody(c)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		handleError(h.logger, c, uploadStatus(err), "Invalid file upload", err)
		return
	}
	defer file.Close()

	task, err := h.service.ProcessFile(c.Request.Context(), file, header, formOptions(c))
	if err != nil {
		handleError(h.logger, c, statusFor(err), "Failed to process file", err)
		return
	}

	c.JSON(http.StatusAccepted, ProcessResponse{
		TaskID:    task.ID,
		Status:    string(task.Status),
		Filename:  header.Filename,
		FileSize:  header.Size,
		FileType:  filepath.Ext(header.Filename),
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
	})
}

// ProcessBatch 批量处理文档
func (h *DocumentHandler) ProcessBatch(c *gin.Context) {
	h.limitBody(c)
	form, err := c.MultipartForm()
	if err != nil {
		handleError(h.logger, c, uploadStatus(err), "Invalid form data", err)
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		handleError(h.logger, c, http.StatusBadRequest, "No files provided", nil)
		return
	}

	tasks, err := h.service.ProcessBatch(c.Request.Context(), files, formOptions(c))
	if err != nil && len(tasks) == 0 {
		handleError(h.logger, c, statusFor(err), "Failed to process files", err)
		return
	}

	responses := make([]ProcessResponse, len(tasks))
	for i, task := range tasks {
		responses[i] = batchResponse(task)
	}

	if err != nil {
		// the accepted tasks still run, so their ids must reach the client
		h.logger.Warn("Batch partially accepted",
			logger.Int("accepted", len(tasks)),
			logger.Int("files", len(files)),
			logger.Error(err),
		)
		c.JSON(http.StatusMultiStatus, gin.H{
			"message": fmt.Sprintf("Accepted %d of %d documents", len(tasks), len(files)),
			"error":   err.Error(),
			"tasks":   responses,
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": fmt.Sprintf("Processing %d documents", len(files)),
		"tasks":   responses,
	})
}

// batchResponse describes a task from its own metadata, since a partial
// batch no longer lines up with the uploaded files.
func batchResponse(task *models.ProcessingTask) ProcessResponse {
	filename := task.Metadata["filename"]
	size, _ := strconv.ParseInt(task.Metadata["size"], 10, 64)
	return ProcessResponse{
		TaskID:    task.ID,
		Status:    string(task.Status),
		Filename:  filename,
		FileSize:  size,
		FileType:  filepath.Ext(filename),
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
	}
}

// GetStatus 获取处理状态
func (h *DocumentHandler) GetStatus(c *gin.Context) {
	taskID := c.Param("taskId")

	task, err := h.service.GetProcessingStatus(c.Request.Context(), taskID)
	if err != nil {
		handleError(h.logger, c, statusFor(err), "Failed to get status", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"taskId":    task.ID,
		"status":    string(task.Status),
		"progress":  task.Progress,
		"error":     task.Error,
		"metadata":  task.Metadata,
		"createdAt": task.CreatedAt.Format(time.RFC3339),
		"updatedAt": task.UpdatedAt.Format(time.RFC3339),
	})
}

// DownloadResult 下载处理结果
func (h *DocumentHandler) DownloadResult(c *gin.Context) {
	taskID := c.Param("taskId")

	result, err := h.service.GetProcessedDocument(c.Request.Context(), taskID)
	if err != nil {
		handleError(h.logger, c, statusFor(err), "Failed to get result", err)
		return
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		handleError(h.logger, c, http.StatusInternalServerError, "Failed to serialize result", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=result_%s.json", taskID))
	c.Data(http.StatusOK, "application/json", resultJSON)
}

// CancelTask 取消处理任务
func (h *DocumentHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("taskId")

	if err := h.service.CancelTask(c.Request.Context(), taskID); err != nil {
		handleError(h.logger, c, statusFor(err), "Failed to cancel task", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task cancelled successfully",
		"taskId":  taskID,
	})
}

// Extract runs the pipeline synchronously. It accepts a multipart upload or
// an ExtractRequest JSON body.
func (h *DocumentHandler) Extract(c *gin.Context) {
	h.limitBody(c)

	var (
		filename string
		data     []byte
		options  map[string]string
	)
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			handleError(h.logger, c, uploadStatus(err), "Invalid request body", err)
			return
		}
		if req.MD5 != "" && !strings.EqualFold(req.MD5, converters.MD5Hex(req.Data)) {
			handleError(h.logger, c, http.StatusBadRequest, "Checksum mismatch", nil)
			return
		}
		decoded, err := converters.DecodeBase64(req.Data)
		if err != nil {
			handleError(h.logger, c, http.StatusBadRequest, "Invalid base64 data", err)
			return
		}
		filename, data, options = req.Filename, decoded, req.Options
	} else {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			handleError(h.logger, c, uploadStatus(err), "Invalid file upload", err)
			return
		}
		defer file.Close()
		if data, err = io.ReadAll(file); err != nil {
			handleError(h.logger, c, uploadStatus(err), "Failed to read file", err)
			return
		}
		filename, options = header.Filename, formOptions(c)
	}

	result, err := h.service.Extract(c.Request.Context(), filename, data, options)
	if err != nil {
		handleError(h.logger, c, statusFor(err), "Failed to extract text", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetHistory returns the history record of an accepted document.
func (h *DocumentHandler) GetHistory(c *gin.Context) {
	rec, err := h.service.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(h.logger, c, statusFor(err), "Failed to get history", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// uploadStatus distinguishes oversized bodies from malformed ones.
func uploadStatus(err error) int {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
