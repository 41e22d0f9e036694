package pdf

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/document-extractor/internal/agent/document"
	"github.com/feichai0017/document-extractor/internal/models"
	"github.com/feichai0017/document-extractor/internal/ocr"
	"github.com/feichai0017/document-extractor/internal/paginator"
	"github.com/feichai0017/document-extractor/internal/raster"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

// PageRecognizer turns a rendered page into text.
type PageRecognizer interface {
	RecognizeRaster(ctx context.Context, r *raster.Raster, cfg ocr.Config) (string, error)
}

// ProcessOptions configures the PDF processor.
type ProcessOptions struct {
	OCR  ocr.Config
	Mode document.PDFMode
	DPI  float64
	// MaxConcurrency bounds the pages processed at once.
	MaxConcurrency int
	// Format is the intermediate encoding pages are rendered to before OCR.
	Format raster.Format
	// Renderer overrides the registered default renderer.
	Renderer paginator.Renderer
}

// DefaultOptions 默认处理选项
func DefaultOptions() *ProcessOptions {
	return &ProcessOptions{
		OCR:            ocr.DefaultConfig(),
		Mode:           document.ModeAuto,
		DPI:            paginator.DefaultDPI,
		MaxConcurrency: 4,
		Format:         raster.FormatPNG,
	}
}

type Processor struct {
	logger logger.Logger
	pages  PageRecognizer
	config *ProcessOptions
}

// NewProcessor builds a PDF processor. pages may be nil when only the text
// mode is used.
func NewProcessor(log logger.Logger, pages PageRecognizer, opts *ProcessOptions) *Processor {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	if opts.Format == "" {
		opts.Format = raster.FormatPNG
	}
	if opts.Mode == "" {
		opts.Mode = document.ModeAuto
	}
	return &Processor{
		logger: log.Named("pdf"),
		pages:  pages,
		config: opts,
	}
}

func (p *Processor) CanProcess(mimeType string) bool {
	return mimeType == "application/pdf"
}

// Defaults returns the per-call options used when Process gets nil.
func (p *Processor) Defaults() document.Options {
	return document.Options{OCR: p.config.OCR, Mode: p.config.Mode}
}

// Process returns one chunk per page, in page order.
func (p *Processor) Process(ctx context.Context, file io.Reader, opts *document.Options) ([]models.DocumentChunk, error) {
	if opts == nil {
		defaults := p.Defaults()
		opts = &defaults
	}
	mode := opts.Mode
	if mode == "" {
		mode = p.config.Mode
	}
	if mode != document.ModeText {
		if err := opts.OCR.Validate(); err != nil {
			return nil, err
		}
		if p.pages == nil {
			return nil, fmt.Errorf("%w: pdf mode %s needs a page recognizer", ocr.ErrEngineUnavailable, mode)
		}
	}

	doc, err := p.open(file)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	numPages := doc.PageCount()
	chunks := make([]models.DocumentChunk, numPages)

	// 创建错误组以并行处理页面
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, p.config.MaxConcurrency)

	for _, page := range doc.Pages() {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			text, source, err := p.processPage(gctx, page, mode, opts.OCR)
			if err != nil {
				return fmt.Errorf("failed to process page %d: %w", page.Index+1, err)
			}
			chunks[page.Index] = models.DocumentChunk{
				Content: text,
				Metadata: map[string]interface{}{
					models.MetaPage:   page.Index + 1,
					models.MetaSource: source,
					"pageCount":       numPages,
				},
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		p.logger.Error("PDF processing failed",
			logger.Int("pages", numPages),
			logger.String("mode", string(mode)),
			logger.Error(err))
		return nil, err
	}

	p.logger.Info("PDF processed",
		logger.Int("pages", numPages),
		logger.String("mode", string(mode)),
		logger.Duration("elapsed", time.Since(start)))
	return chunks, nil
}

// processPage returns the page text and where it came from.
func (p *Processor) processPage(ctx context.Context, page paginator.Page, mode document.PDFMode, cfg ocr.Config) (string, string, error) {
	if mode != document.ModeOCR {
		text, err := page.Text()
		switch {
		case err != nil && mode == document.ModeText:
			return "", "", err
		case err != nil:
			p.logger.Warn("Text layer unreadable, falling back to OCR",
				logger.Int("page", page.Index+1),
				logger.Error(err))
		case text != "" || mode == document.ModeText:
			return text, models.SourceEmbedded, nil
		}
	}

	r, err := page.Rasterize(p.config.Format)
	if err != nil {
		return "", "", err
	}
	text, err := p.pages.RecognizeRaster(ctx, r, cfg)
	if err != nil {
		return "", "", err
	}
	return text, models.SourceOCR, nil
}

func (p *Processor) open(file io.Reader) (*paginator.Document, error) {
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf data: %w", err)
	}
	opts := []paginator.Option{paginator.WithDPI(p.config.DPI)}
	if p.config.Renderer != nil {
		opts = append(opts, paginator.WithRenderer(p.config.Renderer))
	}
	return paginator.Split(content, opts...)
}

func (p *Processor) ExtractMetadata(ctx context.Context, file io.Reader) (models.DocumentMetadata, error) {
	content, err := io.ReadAll(file)
	if err != nil {
		return models.DocumentMetadata{}, err
	}

	doc, err := paginator.Split(content)
	if err != nil {
		return models.DocumentMetadata{}, err
	}
	info := doc.Metadata()

	// 计算文件哈希
	hash := sha256.Sum256(content)
	hashString := hex.EncodeToString(hash[:])

	return models.DocumentMetadata{
		ID:        hashString[:8],
		Title:     info.Title,
		Author:    info.Author,
		FileType:  models.PDF,
		FileSize:  int64(len(content)),
		MimeType:  "application/pdf",
		Pages:     info.Pages,
		CreatedAt: time.Now(),
		Hash:      hashString,
	}, nil
}

func (p *Processor) Close() error {
	return nil
}
