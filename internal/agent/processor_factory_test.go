package agent

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/feichai0017/document-extractor/config"
	"github.com/feichai0017/document-extractor/internal/agent/document"
	"github.com/feichai0017/document-extractor/internal/ocr"
	"github.com/feichai0017/document-extractor/internal/raster"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

func testConfig() *cfg.OCRConfig {
	return &cfg.OCRConfig{
		Language:       "por",
		OEM:            1,
		PSM:            4,
		Steps:          []string{"grayscale", "binarize"},
		PDFMode:        "text",
		DPI:            150,
		MaxConcurrency: 2,
		Timeout:        time.Minute,
	}
}

func TestGetProcessor(t *testing.T) {
	f, err := NewProcessorFactory(logger.NewTestLogger(), ocr.NewMock("x"), testConfig())
	require.NoError(t, err)
	defer f.Close()

	for _, ft := range []string{".pdf", "PDF", "application/pdf"} {
		p, err := f.GetProcessor(ft)
		require.NoError(t, err, ft)
		assert.True(t, p.CanProcess("application/pdf"), ft)
	}
	for _, ft := range []string{".jpg", "jpeg", ".PNG", "image/jpg", ".tiff"} {
		p, err := f.GetProcessor(ft)
		require.NoError(t, err, ft)
		assert.True(t, p.CanProcess("image/png"), ft)
	}

	_, err = f.GetProcessor(".docx")
	assert.ErrorIs(t, err, ErrUnsupportedType)
	_, err = f.GetProcessor("text/plain")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDefaultOptions(t *testing.T) {
	opts, err := DefaultOptions(testConfig())
	require.NoError(t, err)
	assert.Equal(t, ocr.DefaultConfig(), opts.OCR)
	assert.Equal(t, document.ModeText, opts.Mode)

	bad := testConfig()
	bad.PSM = 2
	_, err = DefaultOptions(bad)
	assert.ErrorIs(t, err, ocr.ErrInvalidConfig)

	bad = testConfig()
	bad.PDFMode = "magic"
	_, err = NewProcessorFactory(logger.NewTestLogger(), ocr.NewMock("x"), bad)
	assert.ErrorIs(t, err, document.ErrInvalidMode)
}

func TestFactoryImageProcessorUsesConfiguredSteps(t *testing.T) {
	mock := ocr.NewMock("recognized")
	f, err := NewProcessorFactory(logger.NewTestLogger(), mock, testConfig())
	require.NoError(t, err)

	r, err := raster.New(30, 20, 3)
	require.NoError(t, err)
	r.Fill(200)
	data, err := raster.Encode(r, raster.FormatPNG)
	require.NoError(t, err)

	p, err := f.GetProcessor(".png")
	require.NoError(t, err)
	defaults := f.Defaults()
	chunks, err := p.Process(context.Background(), bytes.NewReader(data), &defaults)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "recognized", chunks[0].Content)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 1, calls[0].Channels)
}
