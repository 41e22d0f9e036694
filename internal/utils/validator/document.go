// internal/utils/validator/document.go
package validator

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/feichai0017/document-extractor/internal/paginator"
	"github.com/feichai0017/document-extractor/internal/raster"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

// ErrInvalidFile is wrapped by ValidationResult.Err.
var ErrInvalidFile = errors.New("invalid file")

// DocumentValidator 文档验证器
type DocumentValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	MaxFileSize  int64               // 最大文件大小（字节）
	AllowedTypes map[string][]string // 允许的文件类型 {扩展名: []MIME类型}
	MinDimension int                 // 图片最小尺寸
	MaxDimension int                 // 图片最大尺寸
	MaxPageCount int                 // PDF最大页数
}

// ValidationResult 验证结果
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

// ValidationError 验证错误
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`

	cause error
}

// FileInfo 文件信息
type FileInfo struct {
	Filename  string                 `json:"filename"`
	Size      int64                  `json:"size"`
	MimeType  string                 `json:"mimeType"`
	Extension string                 `json:"extension"`
	Hash      string                 `json:"hash"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// DefaultConfig accepts PDFs and the raster formats the codec decodes.
func DefaultConfig() *ValidatorConfig {
	return &ValidatorConfig{
		MaxFileSize: 50 * 1024 * 1024, // 50MB
		AllowedTypes: map[string][]string{
			".pdf":  {"application/pdf"},
			".jpg":  {"image/jpeg"},
			".jpeg": {"image/jpeg"},
			".png":  {"image/png"},
			".tif":  {"image/tiff"},
			".tiff": {"image/tiff"},
			".bmp":  {"image/bmp"},
			".gif":  {"image/gif"},
		},
		MinDimension: 1,
		MaxDimension: 20000,
		MaxPageCount: 1000,
	}
}

// NewDocumentValidator 创建新的文档验证器
func NewDocumentValidator(logger logger.Logger, config *ValidatorConfig) *DocumentValidator {
	if config == nil {
		config = DefaultConfig()
	}
	return &DocumentValidator{
		logger: logger,
		config: config,
	}
}

// ValidateFile 验证单个上传文件
func (v *DocumentValidator) ValidateFile(file *multipart.FileHeader) (*ValidationResult, error) {
	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, v.config.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return v.Validate(file.Filename, data), nil
}

// Validate checks name and content of an in-memory file.
func (v *DocumentValidator) Validate(filename string, data []byte) *ValidationResult {
	hash := sha256.Sum256(data)
	result := &ValidationResult{
		IsValid: true,
		FileInfo: FileInfo{
			Filename:  filename,
			Size:      int64(len(data)),
			Extension: strings.ToLower(filepath.Ext(filename)),
			Hash:      hex.EncodeToString(hash[:]),
			MimeType:  detectMimeType(data),
			Metadata:  make(map[string]interface{}),
		},
	}

	// 基本验证
	if errs := v.performBasicValidation(result.FileInfo); len(errs) > 0 {
		result.add(errs...)
		return result
	}
	result.add(v.validateMimeType(result.FileInfo)...)
	if !result.IsValid {
		return result
	}

	switch result.FileInfo.Extension {
	case ".pdf":
		result.add(v.validatePDF(data, result.FileInfo.Metadata)...)
	default:
		result.add(v.validateImage(data, result.FileInfo.Metadata)...)
	}

	if !result.IsValid {
		v.logger.Debug("File rejected",
			logger.String("filename", filename),
			logger.String("reason", result.Errors[0].Code))
	}
	return result
}

func (r *ValidationResult) add(errs ...ValidationError) {
	if len(errs) == 0 {
		return
	}
	r.IsValid = false
	r.Errors = append(r.Errors, errs...)
}

// Err returns nil for a valid file. Otherwise the error wraps ErrInvalidFile
// and, for undecodable content, the decoder's sentinel error.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	var cause error
	for i, e := range r.Errors {
		msgs[i] = e.Message
		if cause == nil {
			cause = e.cause
		}
	}
	if cause != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidFile, strings.Join(msgs, "; "), cause)
	}
	return fmt.Errorf("%w: %s", ErrInvalidFile, strings.Join(msgs, "; "))
}

// 基本验证
func (v *DocumentValidator) performBasicValidation(fileInfo FileInfo) []ValidationError {
	var errs []ValidationError

	if fileInfo.Size == 0 {
		errs = append(errs, ValidationError{
			Code:    "EMPTY_FILE",
			Message: "File is empty",
			Field:   "size",
		})
	}
	if v.config.MaxFileSize > 0 && fileInfo.Size > v.config.MaxFileSize {
		errs = append(errs, ValidationError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum limit of %d bytes", v.config.MaxFileSize),
			Field:   "size",
		})
	}
	if _, ok := v.config.AllowedTypes[fileInfo.Extension]; !ok {
		errs = append(errs, ValidationError{
			Code:    "INVALID_FILE_TYPE",
			Message: fmt.Sprintf("File type %q is not allowed", fileInfo.Extension),
			Field:   "extension",
		})
	}
	return errs
}

// MIME类型验证
func (v *DocumentValidator) validateMimeType(fileInfo FileInfo) []ValidationError {
	for _, mime := range v.config.AllowedTypes[fileInfo.Extension] {
		if mime == fileInfo.MimeType {
			return nil
		}
	}

	var cause error = raster.ErrMalformedImage
	if fileInfo.Extension == ".pdf" {
		cause = paginator.ErrMalformedDocument
	}
	return []ValidationError{{
		Code:    "INVALID_MIME_TYPE",
		Message: fmt.Sprintf("Content %s does not match extension %s", fileInfo.MimeType, fileInfo.Extension),
		Field:   "mimeType",
		cause:   cause,
	}}
}

// detectMimeType prefers the image codec, which knows TIFF.
func detectMimeType(data []byte) string {
	if format, err := raster.Sniff(data); err == nil {
		return "image/" + format
	}
	return http.DetectContentType(data)
}

// PDF特定验证
func (v *DocumentValidator) validatePDF(data []byte, meta map[string]interface{}) []ValidationError {
	doc, err := paginator.Split(data)
	if err != nil {
		return []ValidationError{{
			Code:    "MALFORMED_DOCUMENT",
			Message: err.Error(),
			cause:   err,
		}}
	}

	meta["pages"] = doc.PageCount()
	if v.config.MaxPageCount > 0 && doc.PageCount() > v.config.MaxPageCount {
		return []ValidationError{{
			Code:    "TOO_MANY_PAGES",
			Message: fmt.Sprintf("Document has %d pages, limit is %d", doc.PageCount(), v.config.MaxPageCount),
			Field:   "pages",
		}}
	}
	return nil
}

// 图片特定验证
func (v *DocumentValidator) validateImage(data []byte, meta map[string]interface{}) []ValidationError {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return []ValidationError{{
			Code:    "MALFORMED_IMAGE",
			Message: err.Error(),
			cause:   fmt.Errorf("%w: %v", raster.ErrMalformedImage, err),
		}}
	}

	meta["width"], meta["height"] = cfg.Width, cfg.Height
	longest, shortest := max(cfg.Width, cfg.Height), min(cfg.Width, cfg.Height)
	if shortest < v.config.MinDimension || (v.config.MaxDimension > 0 && longest > v.config.MaxDimension) {
		return []ValidationError{{
			Code: "INVALID_DIMENSIONS",
			Message: fmt.Sprintf("Image is %dx%d, allowed sides are %d to %d pixels",
				cfg.Width, cfg.Height, v.config.MinDimension, v.config.MaxDimension),
			Field: "dimensions",
		}}
	}
	return nil
}
