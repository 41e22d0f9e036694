package converters

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/feichai0017/document-extractor/internal/models"
)

// DocumentConverter 定义文档转换器接口
type DocumentConverter interface {
	Convert(chunks []models.DocumentChunk) (*ProcessedDocument, error)
}

// ProcessedDocument is the stored extraction result of one task.
type ProcessedDocument struct {
	TaskID      string           `json:"taskId"`
	Status      string           `json:"status"`
	Text        string           `json:"text"`
	Content     []ChunkContent   `json:"content"`
	Metadata    DocumentMetadata `json:"metadata"`
	ProcessedAt time.Time        `json:"processedAt"`
}

// ChunkContent 定义文档块内容
type ChunkContent struct {
	Text     string                 `json:"text"`
	Position int                    `json:"position"`
	Type     string                 `json:"type"` // "page" or "image"
	Source   string                 `json:"source,omitempty"`
	Metadata map[string]interface{} `json:"metadata"`
}

// DocumentMetadata 定义文档元数据
type DocumentMetadata struct {
	FileName     string   `json:"fileName"`
	FileType     string   `json:"fileType"`
	FileSize     int64    `json:"fileSize"`
	Checksum     string   `json:"checksum,omitempty"`
	PageCount    int      `json:"pageCount,omitempty"`
	Sources      []string `json:"sources"`
	Language     string   `json:"language,omitempty"`
	ProcessingMs int64    `json:"processingMs"`
}

// JSONConverter joins chunk texts with Separator and keeps every chunk.
type JSONConverter struct {
	Separator string
}

func NewJSONConverter(separator string) *JSONConverter {
	return &JSONConverter{Separator: separator}
}

func (c *JSONConverter) Convert(chunks []models.DocumentChunk) (*ProcessedDocument, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to convert")
	}

	doc := &ProcessedDocument{
		Status:      string(models.StatusCompleted),
		ProcessedAt: time.Now(),
		Content:     make([]ChunkContent, 0, len(chunks)),
		Metadata: DocumentMetadata{
			Sources: make([]string, 0),
		},
	}

	texts := make([]string, 0, len(chunks))
	sources := make(map[string]bool)
	pages := 0

	for i, chunk := range chunks {
		metadata := chunk.Metadata
		if metadata == nil {
			metadata = make(map[string]interface{})
		}
		content := ChunkContent{
			Text:     chunk.Content,
			Position: i + 1,
			Type:     "image",
			Metadata: metadata,
		}
		if _, ok := metadata[models.MetaPage]; ok {
			content.Type = "page"
			pages++
		}
		if source, ok := metadata[models.MetaSource].(string); ok {
			content.Source = source
			sources[source] = true
		}

		doc.Content = append(doc.Content, content)
		texts = append(texts, chunk.Content)
	}

	doc.Text = strings.Join(texts, c.Separator)
	doc.Metadata.PageCount = pages
	for source := range sources {
		doc.Metadata.Sources = append(doc.Metadata.Sources, source)
	}
	sort.Strings(doc.Metadata.Sources)

	return doc, nil
}
