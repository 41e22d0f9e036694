package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/feichai0017/document-extractor/internal/models"
	"github.com/feichai0017/document-extractor/internal/ocr"
)

// Processor 文档处理器接口
type Processor interface {
	// CanProcess 检查是否可以处理指定MIME类型的文件
	CanProcess(mimeType string) bool

	// Process extracts the text of a document. A nil opts uses the
	// processor defaults.
	Process(ctx context.Context, reader io.Reader, opts *Options) ([]models.DocumentChunk, error)

	// ExtractMetadata 提取文档元数据
	ExtractMetadata(ctx context.Context, reader io.Reader) (models.DocumentMetadata, error)

	// Close 清理资源
	Close() error
}

// PDFMode selects where PDF text comes from.
type PDFMode string

const (
	// ModeText reads only the embedded text layer.
	ModeText PDFMode = "text"
	// ModeOCR rasterizes every page and recognizes it.
	ModeOCR PDFMode = "ocr"
	// ModeAuto uses the text layer and falls back to OCR for pages without one.
	ModeAuto PDFMode = "auto"
)

// ErrInvalidMode is returned for unknown PDF modes.
var ErrInvalidMode = errors.New("invalid pdf mode")

// ParsePDFMode validates a mode name; "" means ModeAuto.
func ParsePDFMode(s string) (PDFMode, error) {
	switch mode := PDFMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return ModeAuto, nil
	case ModeText, ModeOCR, ModeAuto:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Options are per-call overrides.
type Options struct {
	OCR  ocr.Config
	Mode PDFMode
}

// ParseOptions applies string overrides (lang, oem, psm, mode) on top of
// base. Unknown keys are ignored.
func ParseOptions(base Options, values map[string]string) (*Options, error) {
	cfg, err := ocr.ParseConfig(base.OCR, values["lang"], values["oem"], values["psm"])
	if err != nil {
		return nil, err
	}
	mode := base.Mode
	if m, ok := values["mode"]; ok && m != "" {
		if mode, err = ParsePDFMode(m); err != nil {
			return nil, err
		}
	}
	return &Options{OCR: cfg, Mode: mode}, nil
}
