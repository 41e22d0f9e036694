package paginator

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-extractor/internal/raster"
)

// buildPDF writes one page per entry, each holding that text.
func buildPDF(t *testing.T, texts ...string) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetTitle("Quarterly Report", false)
	doc.SetAuthor("Records Office", false)
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
	calls []int
	err   error
}

func (f *fakeRenderer) Render(data []byte, index int, dpi float64) (image.Image, error) {
	f.mu.Lock()
	f.calls = append(f.calls, index)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	// page index is encoded in the width so tests can tell pages apart
	img := image.NewNRGBA(image.Rect(0, 0, 10+index, 20))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 100, 50, 255
	}
	return img, nil
}

func TestSplitPageCount(t *testing.T) {
	for _, n := range []int{1, 3, 7} {
		texts := make([]string, n)
		for i := range texts {
			texts[i] = "page"
		}
		doc, err := Split(buildPDF(t, texts...))
		require.NoError(t, err)
		assert.Equal(t, n, doc.PageCount())

		pages := doc.Pages()
		require.Len(t, pages, n)
		for i, p := range pages {
			assert.Equal(t, i, p.Index)
		}
	}
}

func TestExtractEmbeddedText(t *testing.T) {
	doc, err := Split(buildPDF(t, "A", "B", "C"))
	require.NoError(t, err)

	text, err := ExtractEmbeddedText(doc, "\n")
	require.NoError(t, err)
	assert.Equal(t, "A\nB\nC", text)

	text, err = ExtractEmbeddedText(doc, " | ")
	require.NoError(t, err)
	assert.Equal(t, "A | B | C", text)
}

func TestExtractEmbeddedTextEmptyPage(t *testing.T) {
	doc, err := Split(buildPDF(t, "A", "", "C"))
	require.NoError(t, err)

	text, err := ExtractEmbeddedText(doc, "\n")
	require.NoError(t, err)
	assert.Equal(t, "A\n\nC", text)

	page, err := doc.Page(1)
	require.NoError(t, err)
	empty, err := page.Text()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSplitMalformed(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("this is not a pdf at all"),
		"truncated": buildPDF(t, "A")[:200],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Split(data)
			assert.ErrorIs(t, err, ErrMalformedDocument)
		})
	}
}

func TestMetadata(t *testing.T) {
	doc, err := Split(buildPDF(t, "A", "B"))
	require.NoError(t, err)

	meta := doc.Metadata()
	assert.Equal(t, "Quarterly Report", meta.Title)
	assert.Equal(t, "Records Office", meta.Author)
	assert.Equal(t, 2, meta.Pages)
}

func TestPageOutOfRange(t *testing.T) {
	doc, err := Split(buildPDF(t, "A", "B"), WithRenderer(&fakeRenderer{}))
	require.NoError(t, err)

	_, err = doc.Page(2)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
	_, err = doc.PageText(-1)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
	_, err = Rasterize(doc, 5, raster.FormatPNG)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
}

func TestRasterizeUsesRenderer(t *testing.T) {
	renderer := &fakeRenderer{}
	doc, err := Split(buildPDF(t, "A", "B", "C"), WithRenderer(renderer), WithDPI(150))
	require.NoError(t, err)

	for _, p := range doc.Pages() {
		r, err := p.Rasterize(raster.FormatPNG)
		require.NoError(t, err)
		assert.Equal(t, 10+p.Index, r.Width)
		assert.Equal(t, 20, r.Height)
		assert.Equal(t, 3, r.Channels)
		assert.Equal(t, []uint8{200, 100, 50}, r.Pix[:3])
	}
	assert.ElementsMatch(t, []int{0, 1, 2}, renderer.calls)

	data, err := RenderPage(doc, 1, raster.FormatJPEG)
	require.NoError(t, err)
	format, err := raster.Sniff(data)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestRasterizeRendererFailure(t *testing.T) {
	boom := errors.New("renderer crashed")
	doc, err := Split(buildPDF(t, "A"), WithRenderer(&fakeRenderer{err: boom}))
	require.NoError(t, err)

	_, err = Rasterize(doc, 0, raster.FormatPNG)
	assert.ErrorIs(t, err, boom)
}

func TestRasterizeWithoutRenderer(t *testing.T) {
	prev := DefaultRenderer()
	SetDefaultRenderer(nil)
	t.Cleanup(func() { SetDefaultRenderer(prev) })

	doc, err := Split(buildPDF(t, "A"))
	require.NoError(t, err)
	_, err = Rasterize(doc, 0, raster.FormatPNG)
	assert.ErrorIs(t, err, ErrNoRenderer)

	SetDefaultRenderer(RendererFunc(func(data []byte, index int, dpi float64) (image.Image, error) {
		assert.Equal(t, float64(DefaultDPI), dpi)
		img := image.NewGray(image.Rect(0, 0, 4, 4))
		img.SetGray(0, 0, color.Gray{Y: 9})
		return img, nil
	}))
	r, err := Rasterize(doc, 0, raster.FormatPNG)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Channels)
	assert.Equal(t, uint8(9), r.Pix[0])
}

func TestConcurrentPageAccess(t *testing.T) {
	doc, err := Split(buildPDF(t, "A", "B", "C", "D"), WithRenderer(&fakeRenderer{}))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, doc.PageCount())
	for _, p := range doc.Pages() {
		wg.Add(1)
		go func(p Page) {
			defer wg.Done()
			text, err := p.Text()
			assert.NoError(t, err)
			results[p.Index] = text
			_, err = p.Rasterize(raster.FormatPNG)
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()
	assert.Equal(t, []string{"A", "B", "C", "D"}, results)
}
