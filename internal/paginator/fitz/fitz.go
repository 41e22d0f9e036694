// Package fitz renders PDF pages with MuPDF through go-fitz. Importing it
// installs Renderer as the paginator default.
package fitz

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/feichai0017/document-extractor/internal/paginator"
)

func init() {
	paginator.SetDefaultRenderer(NewRenderer())
}

// Renderer opens the document for every call, so pages render independently
// and calls may run in parallel.
type Renderer struct{}

// NewRenderer creates a MuPDF renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render implements paginator.Renderer.
func (r *Renderer) Render(data []byte, index int, dpi float64) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if index < 0 || index >= doc.NumPage() {
		return nil, fmt.Errorf("%w: %d", paginator.ErrPageOutOfRange, index)
	}
	img, err := doc.ImageDPI(index, dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", index, err)
	}
	return img, nil
}
