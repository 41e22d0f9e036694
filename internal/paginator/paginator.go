// Package paginator splits PDF documents into independently processable
// pages. It reads the page table and embedded text layer with a pure Go PDF
// parser and delegates rasterization to a pluggable Renderer.
package paginator

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"

	"github.com/feichai0017/document-extractor/internal/raster"
)

var (
	// ErrMalformedDocument is returned when bytes do not parse as a PDF.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrPageOutOfRange is returned for page indexes outside [0, PageCount).
	ErrPageOutOfRange = errors.New("page index out of range")
	// ErrNoRenderer is returned by rasterization when no Renderer is configured.
	ErrNoRenderer = errors.New("no page renderer configured")
)

// DefaultDPI is the render resolution when none is configured.
const DefaultDPI = 200

// Renderer draws one page (0-based) of an encoded PDF at the given resolution.
type Renderer interface {
	Render(data []byte, index int, dpi float64) (image.Image, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(data []byte, index int, dpi float64) (image.Image, error)

// Render implements Renderer.
func (f RendererFunc) Render(data []byte, index int, dpi float64) (image.Image, error) {
	return f(data, index, dpi)
}

var (
	defaultMu       sync.RWMutex
	defaultRenderer Renderer
)

// SetDefaultRenderer installs the renderer used by documents split without
// WithRenderer. Renderer packages call it from init.
func SetDefaultRenderer(r Renderer) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRenderer = r
}

// DefaultRenderer returns the installed default renderer, or nil.
func DefaultRenderer() Renderer {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRenderer
}

type options struct {
	renderer Renderer
	dpi      float64
}

// Option configures Split.
type Option func(*options)

// WithRenderer overrides the default renderer for one document.
func WithRenderer(r Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithDPI sets the render resolution.
func WithDPI(dpi float64) Option {
	return func(o *options) {
		if dpi > 0 {
			o.dpi = dpi
		}
	}
}

// Document is a parsed PDF backed by the caller's byte slice, which must not
// be modified while the document is in use.
type Document struct {
	data     []byte
	reader   *pdf.Reader
	pages    int
	renderer Renderer
	dpi      float64

	// the parser is not safe for concurrent use
	mu sync.Mutex
}

// Page is one page of a Document.
type Page struct {
	Index int
	doc   *Document
}

// Metadata describes a document from its Info dictionary.
type Metadata struct {
	Title  string
	Author string
	Pages  int
}

// Split parses data and fixes its page count.
func Split(data []byte, opts ...Option) (doc *Document, err error) {
	o := options{dpi: DefaultDPI}
	for _, opt := range opts {
		opt(&o)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedDocument)
	}

	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: %v", ErrMalformedDocument, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	pages := reader.NumPage()
	if pages <= 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrMalformedDocument)
	}

	return &Document{
		data:     data,
		reader:   reader,
		pages:    pages,
		renderer: o.renderer,
		dpi:      o.dpi,
	}, nil
}

// PageCount returns the number of pages in the page table.
func (d *Document) PageCount() int { return d.pages }

// Bytes returns the encoded document.
func (d *Document) Bytes() []byte { return d.data }

// Pages returns every page in order.
func (d *Document) Pages() []Page {
	pages := make([]Page, d.pages)
	for i := range pages {
		pages[i] = Page{Index: i, doc: d}
	}
	return pages
}

// Page returns page i.
func (d *Document) Page(i int) (Page, error) {
	if err := d.checkIndex(i); err != nil {
		return Page{}, err
	}
	return Page{Index: i, doc: d}, nil
}

func (d *Document) checkIndex(i int) error {
	if i < 0 || i >= d.pages {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrPageOutOfRange, i, d.pages)
	}
	return nil
}

// Text returns the page's embedded text, trimmed. A page without a text
// layer yields "".
func (p Page) Text() (string, error) {
	return p.doc.PageText(p.Index)
}

// PageText returns the trimmed embedded text of page i.
func (d *Document) PageText(i int) (text string, err error) {
	if err := d.checkIndex(i); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: page %d: %v", ErrMalformedDocument, i, r)
		}
	}()

	page := d.reader.Page(i + 1)
	if page.V.IsNull() {
		return "", nil
	}
	raw, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("%w: page %d: %v", ErrMalformedDocument, i, err)
	}
	return strings.TrimSpace(raw), nil
}

// Metadata reads title and author from the trailer.
func (d *Document) Metadata() (meta Metadata) {
	meta.Pages = d.pages

	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		// a broken Info dictionary only costs the optional fields
		_ = recover()
	}()

	info := d.reader.Trailer().Key("Info")
	if info.IsNull() {
		return meta
	}
	if title := info.Key("Title"); !title.IsNull() {
		meta.Title = title.Text()
	}
	if author := info.Key("Author"); !author.IsNull() {
		meta.Author = author.Text()
	}
	return meta
}

// ExtractEmbeddedText joins the trimmed embedded text of every page with
// separator, in page order.
func ExtractEmbeddedText(doc *Document, separator string) (string, error) {
	texts := make([]string, doc.PageCount())
	for i := range texts {
		text, err := doc.PageText(i)
		if err != nil {
			return "", err
		}
		texts[i] = text
	}
	return strings.Join(texts, separator), nil
}

// RenderPage renders page i and returns it encoded as format.
func RenderPage(doc *Document, i int, format raster.Format) ([]byte, error) {
	if err := doc.checkIndex(i); err != nil {
		return nil, err
	}
	renderer := doc.renderer
	if renderer == nil {
		renderer = DefaultRenderer()
	}
	if renderer == nil {
		return nil, ErrNoRenderer
	}

	img, err := renderer.Render(doc.data, i, doc.dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", i, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: page %d rendered empty", ErrMalformedDocument, i)
	}
	return raster.Encode(raster.FromImage(img, raster.Unchanged), format)
}

// Rasterize renders page i, passes it through the format's codec and returns
// the decoded raster.
func Rasterize(doc *Document, i int, format raster.Format) (*raster.Raster, error) {
	data, err := RenderPage(doc, i, format)
	if err != nil {
		return nil, err
	}
	return raster.Decode(data, raster.Unchanged)
}

// Rasterize renders this page.
func (p Page) Rasterize(format raster.Format) (*raster.Raster, error) {
	return Rasterize(p.doc, p.Index, format)
}
