package agent

import (
	"errors"
	"fmt"
	"strings"

	cfg "github.com/feichai0017/document-extractor/config"
	"github.com/feichai0017/document-extractor/internal/agent/document"
	"github.com/feichai0017/document-extractor/internal/agent/document/image"
	"github.com/feichai0017/document-extractor/internal/agent/document/pdf"
	"github.com/feichai0017/document-extractor/internal/filter"
	"github.com/feichai0017/document-extractor/internal/ocr"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

// ErrUnsupportedType is returned for files no processor handles.
var ErrUnsupportedType = errors.New("unsupported file type")

// 添加扩展名到 MIME 类型的映射
var extToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
}

// MIMEType maps an extension (".pdf", "PNG") or a MIME type to the MIME type
// processors are registered under.
func MIMEType(fileType string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(fileType))
	if strings.Contains(t, "/") {
		for _, m := range extToMIME {
			if m == t {
				return t, true
			}
		}
		if t == "image/jpg" {
			return "image/jpeg", true
		}
		return "", false
	}
	if !strings.HasPrefix(t, ".") {
		t = "." + t
	}
	m, ok := extToMIME[t]
	return m, ok
}

type ProcessorFactory struct {
	processors map[string]document.Processor
	defaults   document.Options
	logger     logger.Logger
}

// NewProcessorFactory wires the image and PDF processors around recognizer.
func NewProcessorFactory(log logger.Logger, recognizer ocr.Recognizer, ocrCfg *cfg.OCRConfig) (*ProcessorFactory, error) {
	defaults, err := DefaultOptions(ocrCfg)
	if err != nil {
		return nil, err
	}

	factory := &ProcessorFactory{
		processors: make(map[string]document.Processor),
		defaults:   defaults,
		logger:     log.Named("factory"),
	}

	imageOpts := image.DefaultOptions()
	imageOpts.OCR = defaults.OCR
	if len(ocrCfg.Steps) > 0 {
		imageOpts.Steps = ocrCfg.Steps
	}
	imageOpts.Filter = filter.Options{
		MedianSize: ocrCfg.MedianSize,
		KernelSize: ocrCfg.KernelSize,
		CannyLow:   ocrCfg.CannyLow,
		CannyHigh:  ocrCfg.CannyHigh,
	}
	imageOpts.Timeout = ocrCfg.Timeout

	imageProcessor, err := image.NewProcessor(log, recognizer, imageOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create image processor: %w", err)
	}
	for _, m := range []string{"image/jpeg", "image/png", "image/tiff", "image/bmp", "image/gif"} {
		factory.processors[m] = imageProcessor
	}

	pdfOpts := pdf.DefaultOptions()
	pdfOpts.OCR = defaults.OCR
	pdfOpts.Mode = defaults.Mode
	pdfOpts.MaxConcurrency = ocrCfg.MaxConcurrency
	if ocrCfg.DPI > 0 {
		pdfOpts.DPI = ocrCfg.DPI
	}
	factory.processors["application/pdf"] = pdf.NewProcessor(log, imageProcessor, pdfOpts)

	factory.logger.Info("Processors ready",
		logger.Strings("steps", imageOpts.Steps),
		logger.String("language", defaults.OCR.Language),
		logger.String("pdfMode", string(defaults.Mode)))
	return factory, nil
}

// DefaultOptions converts the pipeline configuration to per-call options.
func DefaultOptions(ocrCfg *cfg.OCRConfig) (document.Options, error) {
	base := ocr.DefaultConfig()
	if ocrCfg.Language != "" {
		base.Language = ocrCfg.Language
	}
	base.EngineMode = ocr.EngineMode(ocrCfg.OEM)
	base.PageSegMode = ocr.PageSegMode(ocrCfg.PSM)
	if err := base.Validate(); err != nil {
		return document.Options{}, err
	}

	mode, err := document.ParsePDFMode(ocrCfg.PDFMode)
	if err != nil {
		return document.Options{}, err
	}
	return document.Options{OCR: base, Mode: mode}, nil
}

// Defaults returns the configured per-call options.
func (f *ProcessorFactory) Defaults() document.Options {
	return f.defaults
}

func (f *ProcessorFactory) GetProcessor(fileType string) (document.Processor, error) {
	mimeType, ok := MIMEType(fileType)
	if !ok {
		f.logger.Warn("Unsupported file type", logger.String("fileType", fileType))
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fileType)
	}

	processor, ok := f.processors[mimeType]
	if !ok {
		f.logger.Error("No processor found", logger.String("mimeType", mimeType))
		return nil, fmt.Errorf("%w: no processor for %s", ErrUnsupportedType, mimeType)
	}
	f.logger.Debug("Processor selected",
		logger.String("fileType", fileType),
		logger.String("mimeType", mimeType))
	return processor, nil
}

// Close releases every registered processor once.
func (f *ProcessorFactory) Close() error {
	seen := make(map[document.Processor]bool)
	var errs []error
	for _, p := range f.processors {
		if seen[p] {
			continue
		}
		seen[p] = true
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
