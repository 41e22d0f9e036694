package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-extractor/internal/ocr"
)

func TestParsePDFMode(t *testing.T) {
	for in, want := range map[string]PDFMode{"": ModeAuto, "TEXT": ModeText, " ocr ": ModeOCR, "auto": ModeAuto} {
		got, err := ParsePDFMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParsePDFMode("vision")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestParseOptions(t *testing.T) {
	base := Options{OCR: ocr.DefaultConfig(), Mode: ModeAuto}

	opts, err := ParseOptions(base, map[string]string{"lang": "eng+por", "psm": "6", "mode": "ocr"})
	require.NoError(t, err)
	assert.Equal(t, "eng+por", opts.OCR.Language)
	assert.Equal(t, ocr.SegSingleBlock, opts.OCR.PageSegMode)
	assert.Equal(t, ocr.EngineLSTM, opts.OCR.EngineMode)
	assert.Equal(t, ModeOCR, opts.Mode)

	opts, err = ParseOptions(base, nil)
	require.NoError(t, err)
	assert.Equal(t, base, *opts)

	_, err = ParseOptions(base, map[string]string{"psm": "2"})
	assert.ErrorIs(t, err, ocr.ErrInvalidConfig)
	_, err = ParseOptions(base, map[string]string{"mode": "magic"})
	assert.ErrorIs(t, err, ErrInvalidMode)
}
