// internal/agent/document/image/processor.go
package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/feichai0017/document-extractor/internal/agent/document"
	"github.com/feichai0017/document-extractor/internal/filter"
	"github.com/feichai0017/document-extractor/internal/models"
	"github.com/feichai0017/document-extractor/internal/ocr"
	"github.com/feichai0017/document-extractor/internal/raster"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

// Processor 图像处理器: decode, preprocess, recognize.
type Processor struct {
	logger     logger.Logger
	recognizer ocr.Recognizer
	pipeline   *filter.Pipeline
	config     *ProcessOptions
}

// 处理选项
type ProcessOptions struct {
	OCR        ocr.Config
	Steps      []string
	Filter     filter.Options
	Preprocess PreprocessConfig
	// Timeout bounds one recognizer call; zero means no limit.
	Timeout time.Duration
}

// DefaultOptions 默认处理选项
func DefaultOptions() *ProcessOptions {
	return &ProcessOptions{
		OCR:        ocr.DefaultConfig(),
		Steps:      append([]string(nil), filter.DefaultSteps...),
		Filter:     filter.DefaultOptions(),
		Preprocess: DefaultPreprocessConfig(),
		Timeout:    2 * time.Minute,
	}
}

// 创建新的处理器
func NewProcessor(log logger.Logger, recognizer ocr.Recognizer, opts *ProcessOptions) (*Processor, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if recognizer == nil {
		return nil, fmt.Errorf("recognizer is required")
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.OCR.Validate(); err != nil {
		return nil, err
	}

	pipeline, err := NewPipeline(opts.Steps, opts.Filter, opts.Preprocess)
	if err != nil {
		return nil, fmt.Errorf("failed to build preprocessing pipeline: %w", err)
	}

	return &Processor{
		logger:     log.Named("image"),
		recognizer: recognizer,
		pipeline:   pipeline,
		config:     opts,
	}, nil
}

func (p *Processor) CanProcess(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/jpg", "image/png", "image/tiff", "image/bmp", "image/gif":
		return true
	default:
		return false
	}
}

// Defaults returns the per-call options used when Process gets nil.
func (p *Processor) Defaults() document.Options {
	return document.Options{OCR: p.config.OCR, Mode: document.ModeAuto}
}

// Process 处理图像
func (p *Processor) Process(ctx context.Context, file io.Reader, opts *document.Options) ([]models.DocumentChunk, error) {
	if opts == nil {
		defaults := p.Defaults()
		opts = &defaults
	}

	imageData, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	r, err := raster.Decode(imageData, raster.Unchanged)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	text, err := p.RecognizeRaster(ctx, r, opts.OCR)
	if err != nil {
		return nil, err
	}

	return []models.DocumentChunk{
		{
			Content: text,
			Metadata: map[string]interface{}{
				models.MetaPage:   1,
				models.MetaSource: models.SourceOCR,
				models.MetaWidth:  r.Width,
				models.MetaHeight: r.Height,
				"language":        opts.OCR.Language,
				"psm":             int(opts.OCR.PageSegMode),
			},
		},
	}, nil
}

// RecognizeRaster runs the preprocessing pipeline on r and recognizes the
// result. A raster with no foreground left after preprocessing is a blank
// page and yields "".
func (p *Processor) RecognizeRaster(ctx context.Context, r *raster.Raster, cfg ocr.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	start := time.Now()
	processed, err := p.pipeline.Run(r)
	if errors.Is(err, filter.ErrEmptyRaster) {
		p.logger.Debug("Blank image, skipping recognition",
			logger.Int("width", r.Width),
			logger.Int("height", r.Height))
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to preprocess image: %w", err)
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	text, err := p.recognizer.Recognize(ctx, processed, cfg)
	if err != nil {
		p.logger.Error("Recognition failed",
			logger.String("language", cfg.Language),
			logger.Error(err))
		return "", err
	}

	p.logger.Debug("Image recognized",
		logger.Strings("steps", p.pipeline.Names()),
		logger.Int("chars", len(text)),
		logger.Duration("elapsed", time.Since(start)))
	return text, nil
}

// ExtractMetadata 实现 document.Processor 接口
func (p *Processor) ExtractMetadata(ctx context.Context, file io.Reader) (models.DocumentMetadata, error) {
	imageData, err := io.ReadAll(file)
	if err != nil {
		return models.DocumentMetadata{}, fmt.Errorf("failed to read image data: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return models.DocumentMetadata{}, fmt.Errorf("%w: %v", raster.ErrMalformedImage, err)
	}

	hash := sha256.Sum256(imageData)
	hashString := hex.EncodeToString(hash[:])

	return models.DocumentMetadata{
		ID:        hashString[:8],
		FileType:  models.Image,
		FileSize:  int64(len(imageData)),
		MimeType:  "image/" + format,
		Pages:     1,
		CreatedAt: time.Now(),
		Hash:      hashString,
		Extra: map[string]interface{}{
			models.MetaWidth:  cfg.Width,
			models.MetaHeight: cfg.Height,
			"format":          format,
		},
	}, nil
}

func (p *Processor) Close() error {
	return nil
}
