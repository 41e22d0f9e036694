// Package ocr defines the text recognition boundary of the extraction
// pipeline. A Recognizer turns a preprocessed raster into text by delegating
// to an external engine; backends live in this package (the tesseract CLI and
// a scripted Mock) and in the tesseract and textract subpackages.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/feichai0017/document-extractor/internal/raster"
)

var (
	// ErrEngineUnavailable means the engine binary, library or service cannot be reached.
	ErrEngineUnavailable = errors.New("recognition engine unavailable")
	// ErrRecognitionFailed means the engine ran but reported a failure for the input.
	ErrRecognitionFailed = errors.New("recognition failed")
	// ErrInvalidConfig means a Config value is outside the accepted ranges.
	ErrInvalidConfig = errors.New("invalid recognition config")
)

// Recognizer extracts text from a raster. Implementations make exactly one
// attempt per call and honour ctx at the engine boundary.
type Recognizer interface {
	Recognize(ctx context.Context, r *raster.Raster, cfg Config) (string, error)
}

// EngineMode selects the recognition algorithm family.
type EngineMode int

const (
	EngineLegacy        EngineMode = 0
	EngineLSTM          EngineMode = 1
	EngineLegacyAndLSTM EngineMode = 2
	EngineDefault       EngineMode = 3
)

func (m EngineMode) String() string {
	switch m {
	case EngineLegacy:
		return "legacy"
	case EngineLSTM:
		return "lstm"
	case EngineLegacyAndLSTM:
		return "legacy+lstm"
	case EngineDefault:
		return "default"
	}
	return "EngineMode(" + strconv.Itoa(int(m)) + ")"
}

// Valid reports whether m is one of the four engine modes.
func (m EngineMode) Valid() bool {
	return m >= EngineLegacy && m <= EngineDefault
}

// PageSegMode tells the engine what layout to expect.
type PageSegMode int

const (
	SegOSDOnly         PageSegMode = 0
	SegAutoOSD         PageSegMode = 1
	SegAutoOnly        PageSegMode = 2 // not implemented by the engine, rejected by Validate
	SegAuto            PageSegMode = 3
	SegSingleColumn    PageSegMode = 4
	SegSingleBlockVert PageSegMode = 5
	SegSingleBlock     PageSegMode = 6
	SegSingleLine      PageSegMode = 7
	SegSingleWord      PageSegMode = 8
	SegCircleWord      PageSegMode = 9
	SegSingleChar      PageSegMode = 10
	SegSparseText      PageSegMode = 11
	SegSparseTextOSD   PageSegMode = 12
	SegRawLine         PageSegMode = 13
)

// Valid reports whether the engine accepts p.
func (p PageSegMode) Valid() bool {
	return p >= SegOSDOnly && p <= SegRawLine && p != SegAutoOnly
}

// Config is passed by value on every call.
type Config struct {
	Language    string      `json:"lang" yaml:"lang"`
	EngineMode  EngineMode  `json:"oem" yaml:"oem"`
	PageSegMode PageSegMode `json:"psm" yaml:"psm"`
}

// DefaultConfig returns Portuguese, LSTM engine, single column layout.
func DefaultConfig() Config {
	return Config{
		Language:    "por",
		EngineMode:  EngineLSTM,
		PageSegMode: SegSingleColumn,
	}
}

// Validate rejects values the engine would refuse.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Language) == "" {
		return fmt.Errorf("%w: language is empty", ErrInvalidConfig)
	}
	if strings.ContainsAny(c.Language, " \t\n") {
		return fmt.Errorf("%w: language %q contains whitespace", ErrInvalidConfig, c.Language)
	}
	if !c.EngineMode.Valid() {
		return fmt.Errorf("%w: engine mode %d", ErrInvalidConfig, c.EngineMode)
	}
	if !c.PageSegMode.Valid() {
		return fmt.Errorf("%w: page segmentation mode %d", ErrInvalidConfig, c.PageSegMode)
	}
	return nil
}

// Languages splits a "eng+por" style language tag into its parts.
func (c Config) Languages() []string {
	var langs []string
	for _, l := range strings.Split(c.Language, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

// ParseConfig builds a Config from string form values, falling back to base
// for empty fields.
func ParseConfig(base Config, lang, oem, psm string) (Config, error) {
	cfg := base
	if lang != "" {
		cfg.Language = lang
	}
	if oem != "" {
		n, err := strconv.Atoi(oem)
		if err != nil {
			return Config{}, fmt.Errorf("%w: engine mode %q", ErrInvalidConfig, oem)
		}
		cfg.EngineMode = EngineMode(n)
	}
	if psm != "" {
		n, err := strconv.Atoi(psm)
		if err != nil {
			return Config{}, fmt.Errorf("%w: page segmentation mode %q", ErrInvalidConfig, psm)
		}
		cfg.PageSegMode = PageSegMode(n)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
