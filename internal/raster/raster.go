// Package raster holds the in-memory pixel grid shared by every stage of the
// extraction pipeline, together with the codec that moves it in and out of
// encoded image bytes.
package raster

import (
	"fmt"
	"image"
	"image/color"
)

// Depth is the number of bits per channel. The pipeline only works on 8-bit samples.
const Depth = 8

// Raster owns a contiguous, row-major pixel buffer.
// Pixel (x, y) channel c lives at Pix[(y*Width+x)*Channels+c].
type Raster struct {
	Pix      []uint8
	Width    int
	Height   int
	Channels int
}

// New allocates a zeroed raster. Channels must be 1 (gray) or 3 (RGB).
func New(width, height, channels int) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	return &Raster{
		Pix:      make([]uint8, width*height*channels),
		Width:    width,
		Height:   height,
		Channels: channels,
	}, nil
}

// NewLike allocates a zeroed raster with the same shape as r.
func NewLike(r *Raster) *Raster {
	return &Raster{
		Pix:      make([]uint8, len(r.Pix)),
		Width:    r.Width,
		Height:   r.Height,
		Channels: r.Channels,
	}
}

// Validate checks the buffer length invariant.
func (r *Raster) Validate() error {
	if r == nil {
		return fmt.Errorf("raster is nil")
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("invalid raster size %dx%d", r.Width, r.Height)
	}
	if r.Channels != 1 && r.Channels != 3 {
		return fmt.Errorf("unsupported channel count %d", r.Channels)
	}
	if want := r.Width * r.Height * r.Channels; len(r.Pix) != want {
		return fmt.Errorf("buffer length %d does not match %dx%dx%d", len(r.Pix), r.Width, r.Height, r.Channels)
	}
	return nil
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	pix := make([]uint8, len(r.Pix))
	copy(pix, r.Pix)
	return &Raster{Pix: pix, Width: r.Width, Height: r.Height, Channels: r.Channels}
}

// Offset returns the index of channel 0 of pixel (x, y).
func (r *Raster) Offset(x, y int) int {
	return (y*r.Width + x) * r.Channels
}

// At returns the sample of channel c at (x, y).
func (r *Raster) At(x, y, c int) uint8 {
	return r.Pix[r.Offset(x, y)+c]
}

// Set writes the sample of channel c at (x, y).
func (r *Raster) Set(x, y, c int, v uint8) {
	r.Pix[r.Offset(x, y)+c] = v
}

// Fill sets every sample to v.
func (r *Raster) Fill(v uint8) {
	for i := range r.Pix {
		r.Pix[i] = v
	}
}

// Image exposes the raster as a standard library image.
// Gray rasters become *image.Gray, colour rasters opaque *image.NRGBA.
func (r *Raster) Image() image.Image {
	rect := image.Rect(0, 0, r.Width, r.Height)
	if r.Channels == 1 {
		img := image.NewGray(rect)
		copy(img.Pix, r.Pix)
		return img
	}

	img := image.NewNRGBA(rect)
	for i, j := 0, 0; i < len(r.Pix); i, j = i+3, j+4 {
		img.Pix[j] = r.Pix[i]
		img.Pix[j+1] = r.Pix[i+1]
		img.Pix[j+2] = r.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// FromImage copies img into a new raster with the requested colour mode.
func FromImage(img image.Image, mode ColorMode) *Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if mode == Unchanged {
		mode = Color
		if isGray(img) {
			mode = Grayscale
		}
	}

	if mode == Grayscale {
		out := &Raster{Pix: make([]uint8, w*h), Width: w, Height: h, Channels: 1}
		if g, ok := img.(*image.Gray); ok {
			for y := 0; y < h; y++ {
				start := g.PixOffset(b.Min.X, b.Min.Y+y)
				copy(out.Pix[y*w:(y+1)*w], g.Pix[start:start+w])
			}
			return out
		}
		gray := luma(img)
		for i, j := 0, 0; i < len(out.Pix); i, j = i+1, j+4 {
			out.Pix[i] = gray.Pix[j]
		}
		return out
	}

	nrgba := toNRGBA(img)
	out := &Raster{Pix: make([]uint8, w*h*3), Width: w, Height: h, Channels: 3}
	for i, j := 0, 0; i < len(out.Pix); i, j = i+3, j+4 {
		out.Pix[i] = nrgba.Pix[j]
		out.Pix[i+1] = nrgba.Pix[j+1]
		out.Pix[i+2] = nrgba.Pix[j+2]
	}
	return out
}

func isGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return img.ColorModel() == color.GrayModel || img.ColorModel() == color.Gray16Model
}
