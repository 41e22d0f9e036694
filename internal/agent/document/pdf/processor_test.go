package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-extractor/internal/agent/document"
	imageproc "github.com/feichai0017/document-extractor/internal/agent/document/image"
	"github.com/feichai0017/document-extractor/internal/models"
	"github.com/feichai0017/document-extractor/internal/ocr"
	"github.com/feichai0017/document-extractor/internal/paginator"
	"github.com/feichai0017/document-extractor/internal/raster"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

func buildPDF(t *testing.T, texts ...string) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetTitle("Invoice", false)
	doc.SetAuthor("Billing", false)
	doc.SetFont("Helvetica", "", 16)
	for _, text := range texts {
		doc.AddPage()
		if text != "" {
			doc.Cell(40, 10, text)
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, doc.Output(buf))
	return buf.Bytes()
}

type fakeRenderer struct {
	mu    sync.Mutex
	dpi   []float64
	calls int
}

// Render draws a white page whose width encodes the page index.
func (f *fakeRenderer) Render(data []byte, index int, dpi float64) (image.Image, error) {
	f.mu.Lock()
	f.calls++
	f.dpi = append(f.dpi, dpi)
	f.mu.Unlock()

	img := image.NewGray(image.Rect(0, 0, 100+index, 60))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for x := 10; x < 80; x++ {
		img.SetGray(x, 30, color.Gray{Y: 0})
	}
	return img, nil
}

// widthMock answers with the width of the page it was given.
func widthMock() *ocr.Mock {
	m := ocr.NewMock("")
	m.TextFunc = func(r *raster.Raster, cfg ocr.Config) (string, error) {
		return fmt.Sprintf("scan %d", r.Width), nil
	}
	return m
}

func newProcessor(t *testing.T, rec ocr.Recognizer, mode document.PDFMode) (*Processor, *fakeRenderer, *logger.TestLogger) {
	t.Helper()
	log := logger.NewTestLogger()
	images, err := imageproc.NewProcessor(log, rec, nil)
	require.NoError(t, err)

	renderer := &fakeRenderer{}
	opts := DefaultOptions()
	opts.Mode = mode
	opts.DPI = 150
	opts.MaxConcurrency = 2
	opts.Renderer = renderer
	return NewProcessor(log, images, opts), renderer, log
}

func contents(chunks []models.DocumentChunk) (texts []string, sources []interface{}, pages []interface{}) {
	for _, c := range chunks {
		texts = append(texts, c.Content)
		sources = append(sources, c.Metadata[models.MetaSource])
		pages = append(pages, c.Metadata[models.MetaPage])
	}
	return texts, sources, pages
}

func TestProcessTextMode(t *testing.T) {
	mock := widthMock()
	p, renderer, _ := newProcessor(t, mock, document.ModeText)

	chunks, err := p.Process(context.Background(), bytes.NewReader(buildPDF(t, "A", "B", "C")), nil)
	require.NoError(t, err)

	texts, sources, pages := contents(chunks)
	assert.Equal(t, []string{"A", "B", "C"}, texts)
	assert.Equal(t, []interface{}{"embedded", "embedded", "embedded"}, sources)
	assert.Equal(t, []interface{}{1, 2, 3}, pages)
	assert.Empty(t, mock.Calls())
	assert.Zero(t, renderer.calls)
}

func TestProcessTextModeKeepsEmptyPages(t *testing.T) {
	p, _, _ := newProcessor(t, widthMock(), document.ModeText)

	chunks, err := p.Process(context.Background(), bytes.NewReader(buildPDF(t, "A", "", "C")), nil)
	require.NoError(t, err)
	texts, _, _ := contents(chunks)
	assert.Equal(t, []string{"A", "", "C"}, texts)
}

func TestProcessAutoModeFallsBackToOCR(t *testing.T) {
	mock := widthMock()
	p, renderer, _ := newProcessor(t, mock, document.ModeAuto)

	chunks, err := p.Process(context.Background(), bytes.NewReader(buildPDF(t, "A", "", "C")), nil)
	require.NoError(t, err)

	texts, sources, _ := contents(chunks)
	assert.Equal(t, []string{"A", "scan 101", "C"}, texts)
	assert.Equal(t, []interface{}{"embedded", "ocr", "embedded"}, sources)
	assert.Len(t, mock.Calls(), 1)
	assert.Equal(t, 1, renderer.calls)
	assert.Equal(t, []float64{150}, renderer.dpi)
}

func TestProcessOCRModeKeepsPageOrder(t *testing.T) {
	mock := widthMock()
	p, _, log := newProcessor(t, mock, document.ModeOCR)

	chunks, err := p.Process(context.Background(), bytes.NewReader(buildPDF(t, "A", "B", "C", "D", "E")), nil)
	require.NoError(t, err)

	texts, sources, pages := contents(chunks)
	assert.Equal(t, []string{"scan 100", "scan 101", "scan 102", "scan 103", "scan 104"}, texts)
	assert.Equal(t, []interface{}{"ocr", "ocr", "ocr", "ocr", "ocr"}, sources)
	assert.Equal(t, []interface{}{1, 2, 3, 4, 5}, pages)
	assert.Len(t, mock.Calls(), 5)
	assert.Equal(t, 1, log.Count("INFO"))
}

func TestProcessPerCallModeOverride(t *testing.T) {
	mock := widthMock()
	p, _, _ := newProcessor(t, mock, document.ModeText)

	opts := p.Defaults()
	opts.Mode = document.ModeOCR
	opts.OCR.Language = "eng"
	chunks, err := p.Process(context.Background(), bytes.NewReader(buildPDF(t, "A")), &opts)
	require.NoError(t, err)
	assert.Equal(t, "scan 100", chunks[0].Content)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "eng", calls[0].Config.Language)
}

func TestProcessRecognizerFailure(t *testing.T) {
	mock := ocr.NewMock("ok").Script(
		ocr.Response{Text: "page"},
		ocr.Response{Err: fmt.Errorf("%w: exit status 1", ocr.ErrRecognitionFailed)},
	)
	p, _, log := newProcessor(t, mock, document.ModeOCR)

	_, err := p.Process(context.Background(), bytes.NewReader(buildPDF(t, "A", "B", "C")), nil)
	assert.ErrorIs(t, err, ocr.ErrRecognitionFailed)
	assert.GreaterOrEqual(t, log.Count("ERROR"), 1)
}

func TestProcessMalformed(t *testing.T) {
	p, _, _ := newProcessor(t, widthMock(), document.ModeAuto)

	_, err := p.Process(context.Background(), bytes.NewReader([]byte("%PDF-garbage")), nil)
	assert.ErrorIs(t, err, paginator.ErrMalformedDocument)
}

func TestProcessOCRWithoutRecognizer(t *testing.T) {
	p := NewProcessor(logger.NewTestLogger(), nil, &ProcessOptions{Mode: document.ModeOCR, OCR: ocr.DefaultConfig()})

	_, err := p.Process(context.Background(), bytes.NewReader(buildPDF(t, "A")), nil)
	assert.ErrorIs(t, err, ocr.ErrEngineUnavailable)

	opts := p.Defaults()
	opts.Mode = document.ModeText
	chunks, err := p.Process(context.Background(), bytes.NewReader(buildPDF(t, "A")), &opts)
	require.NoError(t, err)
	assert.Equal(t, "A", chunks[0].Content)
}

func TestProcessCancelled(t *testing.T) {
	p, _, _ := newProcessor(t, widthMock(), document.ModeOCR)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Process(ctx, bytes.NewReader(buildPDF(t, "A", "B")), nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExtractMetadata(t *testing.T) {
	p, _, _ := newProcessor(t, widthMock(), document.ModeAuto)

	meta, err := p.ExtractMetadata(context.Background(), bytes.NewReader(buildPDF(t, "A", "B")))
	require.NoError(t, err)
	assert.Equal(t, "Invoice", meta.Title)
	assert.Equal(t, "Billing", meta.Author)
	assert.Equal(t, 2, meta.Pages)
	assert.Equal(t, models.PDF, meta.FileType)
	assert.Equal(t, "application/pdf", meta.MimeType)
	assert.True(t, p.CanProcess("application/pdf"))
}
