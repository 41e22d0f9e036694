package models

import (
	"errors"
	"time"
)

// ErrNotFound is wrapped by the lookup errors of the storage layers.
var ErrNotFound = errors.New("not found")

// FileType 文件类型
type FileType string

const (
	PDF   FileType = "pdf"
	Image FileType = "image"
)

// DocumentMetadata 文档元数据
type DocumentMetadata struct {
	ID         string                 `json:"id"`
	Title      string                 `json:"title"`
	Author     string                 `json:"author"`
	FileType   FileType               `json:"fileType"`
	FileSize   int64                  `json:"fileSize"`
	MimeType   string                 `json:"mimeType"`
	Pages      int                    `json:"pages"`
	CreatedAt  time.Time              `json:"createdAt"`
	Hash       string                 `json:"hash"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// DocumentChunk is the text of one page or image together with how it was
// obtained.
type DocumentChunk struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Chunk metadata keys.
const (
	MetaPage   = "pageNumber"
	MetaSource = "source"
	MetaWidth  = "width"
	MetaHeight = "height"
)

// Chunk sources.
const (
	SourceOCR      = "ocr"
	SourceEmbedded = "embedded"
)

type ProcessingTask struct {
	ID        string            `json:"id"`
	Status    ProcessingStatus  `json:"status"`
	Type      string            `json:"type"`
	Priority  int               `json:"priority"`
	Progress  float64           `json:"progress"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty"`
}

type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusRunning   ProcessingStatus = "running"
	StatusCompleted ProcessingStatus = "completed"
	StatusFailed    ProcessingStatus = "failed"
	StatusCancelled ProcessingStatus = "cancelled"
)

// ParseStatus maps a stored status string, defaulting to pending.
func ParseStatus(s string) ProcessingStatus {
	switch ProcessingStatus(s) {
	case StatusRunning, "active":
		return StatusRunning
	case StatusCompleted, StatusFailed, StatusCancelled:
		return ProcessingStatus(s)
	default:
		return StatusPending
	}
}

// HistoryRecord is one accepted document. Times have second resolution.
type HistoryRecord struct {
	ID          string     `json:"id"`
	Timestamp   time.Time  `json:"timestamp"`
	Format      string     `json:"format,omitempty"`
	Processed   bool       `json:"processed"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}
