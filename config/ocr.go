package config

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ocrOnce   sync.Once
	ocrConfig *OCRConfig
)

// OCRConfig drives the extraction pipeline. Environment variables set the
// base values; a YAML file named by OCR_PIPELINE_FILE overrides them.
type OCRConfig struct {
	// Engine selects the recognizer: "cli", "tesseract" or "textract".
	Engine   string `yaml:"engine"`
	Binary   string `yaml:"binary"`
	Language string `yaml:"lang"`
	OEM      int    `yaml:"oem"`
	PSM      int    `yaml:"psm"`

	Steps      []string `yaml:"steps"`
	MedianSize int      `yaml:"medianSize"`
	KernelSize int      `yaml:"kernelSize"`
	CannyLow   float64  `yaml:"cannyLow"`
	CannyHigh  float64  `yaml:"cannyHigh"`

	// PDFMode is "auto", "text" or "ocr".
	PDFMode        string        `yaml:"pdfMode"`
	DPI            float64       `yaml:"dpi"`
	PageSeparator  string        `yaml:"pageSeparator"`
	MaxConcurrency int           `yaml:"maxConcurrency"`
	Timeout        time.Duration `yaml:"timeout"`
}

func GetOCRConfig() *OCRConfig {
	ocrOnce.Do(func() {
		loadEnv()
		cfg := defaultOCRConfig()
		if path := getEnv("OCR_PIPELINE_FILE", ""); path != "" {
			if err := cfg.LoadFile(path); err != nil {
				log.Printf("Warning: %v, using environment settings", err)
			}
		}
		ocrConfig = cfg
	})
	return ocrConfig
}

func defaultOCRConfig() *OCRConfig {
	return &OCRConfig{
		Engine:         getEnv("OCR_ENGINE", "cli"),
		Binary:         getEnv("TESSERACT_BIN", "tesseract"),
		Language:       getEnv("OCR_LANG", "por"),
		OEM:            getEnvInt("OCR_OEM", 1),
		PSM:            getEnvInt("OCR_PSM", 4),
		Steps:          getEnvList("OCR_STEPS", []string{"grayscale", "denoise", "binarize", "deskew"}),
		MedianSize:     getEnvInt("OCR_MEDIAN_SIZE", 5),
		KernelSize:     getEnvInt("OCR_KERNEL_SIZE", 5),
		CannyLow:       100,
		CannyHigh:      200,
		PDFMode:        getEnv("OCR_PDF_MODE", "auto"),
		DPI:            float64(getEnvInt("OCR_DPI", 200)),
		PageSeparator:  getEnv("OCR_PAGE_SEPARATOR", "\n"),
		MaxConcurrency: getEnvInt("OCR_MAX_CONCURRENCY", 4),
		Timeout:        getEnvDuration("OCR_TIMEOUT", 2*time.Minute),
	}
}

// LoadFile overlays the YAML file at path onto c. Keys missing from the
// file keep their current values.
func (c *OCRConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read pipeline file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse pipeline file %s: %w", path, err)
	}
	return nil
}
