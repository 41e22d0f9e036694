package tesseract

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/feichai0017/document-extractor/internal/ocr"
	"github.com/feichai0017/document-extractor/internal/raster"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func TestRecognizerReadsRenderedText(t *testing.T) {
	ensureTesseractAvailable(t)

	img := image.NewGray(image.Rect(0, 0, 200, 80))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13, Dot: fixed.P(10, 50)}
	d.DrawString("Hello PDF")

	rec := NewRecognizer(logger.NewTestLogger())
	cfg := ocr.Config{Language: "eng", EngineMode: ocr.EngineDefault, PageSegMode: ocr.SegSingleLine}
	text, err := rec.Recognize(context.Background(), raster.FromImage(img, raster.Grayscale), cfg)
	require.NoError(t, err)

	got := strings.ToLower(text)
	assert.Contains(t, got, "hello")
}

func TestRecognizerRejectsInvalidConfig(t *testing.T) {
	rec := NewRecognizer(logger.NewTestLogger())
	_, err := rec.Recognize(context.Background(), nil, ocr.Config{})
	assert.ErrorIs(t, err, ocr.ErrInvalidConfig)
}
