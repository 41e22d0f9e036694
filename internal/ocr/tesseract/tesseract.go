// Package tesseract recognizes text through libtesseract via gosseract.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/feichai0017/document-extractor/internal/ocr"
	"github.com/feichai0017/document-extractor/internal/raster"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

// Recognizer implements ocr.Recognizer with an in-process tesseract client.
// A fresh client is created per call, so one Recognizer may be shared by
// concurrent page workers.
type Recognizer struct {
	logger        logger.Logger
	clientFactory func() *gosseract.Client
}

// NewRecognizer creates a library-backed recognizer.
func NewRecognizer(logger logger.Logger) *Recognizer {
	return &Recognizer{logger: logger, clientFactory: gosseract.NewClient}
}

// Languages lists the trained data installed for the library.
func Languages() ([]string, error) {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ocr.ErrEngineUnavailable, err)
	}
	return langs, nil
}

// Recognize implements ocr.Recognizer. The engine mode is fixed when the
// library initialises, so only the default LSTM/auto modes are honoured here.
func (t *Recognizer) Recognize(ctx context.Context, r *raster.Raster, cfg ocr.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if cfg.EngineMode != ocr.EngineLSTM && cfg.EngineMode != ocr.EngineDefault {
		t.logger.Warn("Engine mode is not configurable through the library, using default",
			logger.String("oem", cfg.EngineMode.String()))
	}

	img, err := raster.Encode(r, raster.FormatPNG)
	if err != nil {
		return "", fmt.Errorf("failed to encode raster for recognition: %w", err)
	}

	client := t.clientFactory()
	defer client.Close()

	if err := client.SetLanguage(cfg.Languages()...); err != nil {
		return "", fmt.Errorf("%w: set language: %v", ocr.ErrRecognitionFailed, err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
		return "", fmt.Errorf("%w: set page segmentation mode: %v", ocr.ErrRecognitionFailed, err)
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("%w: set image: %v", ocr.ErrRecognitionFailed, err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ocr.ErrRecognitionFailed, err)
	}
	return strings.TrimSpace(text), nil
}
