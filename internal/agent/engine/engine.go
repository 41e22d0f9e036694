// Package engine builds the configured text recognizer and registers the
// default PDF page renderer.
package engine

import (
	"context"
	"fmt"
	"strings"

	cfg "github.com/feichai0017/document-extractor/config"
	"github.com/feichai0017/document-extractor/internal/ocr"
	"github.com/feichai0017/document-extractor/internal/ocr/tesseract"
	"github.com/feichai0017/document-extractor/internal/ocr/textract"
	_ "github.com/feichai0017/document-extractor/internal/paginator/fitz"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

const (
	EngineCLI       = "cli"
	EngineTesseract = "tesseract"
	EngineTextract  = "textract"
)

// New returns the recognizer named by ocrCfg.Engine.
func New(ctx context.Context, ocrCfg *cfg.OCRConfig, log logger.Logger) (ocr.Recognizer, error) {
	log = log.Named("ocr")

	switch engine := strings.ToLower(ocrCfg.Engine); engine {
	case "", EngineCLI:
		rec := ocr.NewCommandRecognizer(log, &ocr.CommandOptions{Binary: ocrCfg.Binary})
		if err := rec.Available(); err != nil {
			// requests fail with ErrEngineUnavailable until the binary is installed
			log.Warn("Tesseract binary not found", logger.String("binary", ocrCfg.Binary), logger.Error(err))
		}
		return rec, nil
	case EngineTesseract:
		if langs, err := tesseract.Languages(); err != nil {
			log.Warn("Tesseract library unavailable", logger.Error(err))
		} else {
			log.Info("Tesseract library ready", logger.Strings("languages", langs))
		}
		return tesseract.NewRecognizer(log), nil
	case EngineTextract:
		tc := cfg.GetTextractConfig()
		rec, err := textract.NewRecognizer(ctx, textract.Config{
			Region:        tc.Region,
			Endpoint:      tc.Endpoint,
			AccessKey:     tc.AccessKey,
			SecretKey:     tc.SecretKey,
			MinConfidence: tc.MinConfidence,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create textract recognizer: %w", err)
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ocr.ErrInvalidConfig, engine)
	}
}
