package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

var (
	// ErrMalformedImage is returned when bytes do not decode as a supported image.
	ErrMalformedImage = errors.New("malformed image")
	// ErrEncoding is returned when a raster cannot be encoded to the requested format.
	ErrEncoding = errors.New("encoding failed")
)

// ColorMode selects the channel layout produced by Decode.
type ColorMode int

const (
	// Unchanged keeps gray images gray and turns everything else into RGB.
	Unchanged ColorMode = iota
	// Grayscale forces a single luma channel.
	Grayscale
	// Color forces three RGB channels.
	Color
)

// Format names an encoded image format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// jpegQuality keeps JPEG output as close to lossless as the format allows.
const jpegQuality = 100

// ParseFormat normalises a format name or file extension ("jpg", ".JPEG", "png").
func ParseFormat(name string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".") {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", name)
	}
}

// Sniff reports the encoded format of data without decoding the pixels.
func Sniff(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedImage, err)
	}
	return format, nil
}

// Decode turns encoded image bytes into a raster.
func Decode(data []byte, mode ColorMode) (*Raster, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedImage)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImage, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrMalformedImage)
	}
	return FromImage(img, mode), nil
}

// Encode writes r in the given format.
func Encode(r *Raster, format Format) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	var target imaging.Format
	var opts []imaging.EncodeOption
	switch format {
	case FormatPNG:
		target = imaging.PNG
	case FormatJPEG:
		target = imaging.JPEG
		opts = append(opts, imaging.JPEGQuality(jpegQuality))
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrEncoding, format)
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, r.Image(), target, opts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return buf.Bytes(), nil
}

// Recode decodes data and re-encodes it as to. When from is set, the sniffed
// format must match it.
func Recode(data []byte, from, to Format) ([]byte, error) {
	if from != "" {
		sniffed, err := Sniff(data)
		if err != nil {
			return nil, err
		}
		got, err := ParseFormat(sniffed)
		if err != nil || got != from {
			return nil, fmt.Errorf("%w: expected %s, got %s", ErrMalformedImage, from, sniffed)
		}
	}

	r, err := Decode(data, Unchanged)
	if err != nil {
		return nil, err
	}
	return Encode(r, to)
}

// JPEGToPNG converts JPEG bytes to PNG.
func JPEGToPNG(data []byte) ([]byte, error) {
	return Recode(data, FormatJPEG, FormatPNG)
}

// JPGToPNG is JPEGToPNG under the other extension callers use.
func JPGToPNG(data []byte) ([]byte, error) {
	return JPEGToPNG(data)
}

func luma(img image.Image) *image.NRGBA {
	return imaging.Grayscale(img)
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) && n.Stride == 4*n.Rect.Dx() {
		return n
	}
	return imaging.Clone(img)
}
