package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(t *testing.T, w, h, channels int) *Raster {
	t.Helper()
	r, err := New(w, h, channels)
	require.NoError(t, err)
	for i := range r.Pix {
		r.Pix[i] = uint8(i * 7 % 256)
	}
	return r
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 5), G: uint8(y * 5), B: 128, A: 255})
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, jpeg.Encode(buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		w, h, ch int
	}{
		{"gray", 17, 9, 1},
		{"color", 8, 21, 3},
		{"single pixel", 1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := gradient(t, tt.w, tt.h, tt.ch)

			data, err := Encode(src, FormatPNG)
			require.NoError(t, err)

			got, err := Decode(data, Unchanged)
			require.NoError(t, err)
			assert.Equal(t, src.Width, got.Width)
			assert.Equal(t, src.Height, got.Height)
			assert.Equal(t, src.Channels, got.Channels)
			// PNG is lossless
			assert.Equal(t, src.Pix, got.Pix)
		})
	}
}

func TestDecodeModes(t *testing.T) {
	data := jpegBytes(t, 12, 10)

	gray, err := Decode(data, Grayscale)
	require.NoError(t, err)
	assert.Equal(t, 1, gray.Channels)
	assert.Len(t, gray.Pix, 12*10)

	col, err := Decode(data, Color)
	require.NoError(t, err)
	assert.Equal(t, 3, col.Channels)
	assert.NoError(t, col.Validate())
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"), Unchanged)
	assert.ErrorIs(t, err, ErrMalformedImage)

	_, err = Decode(nil, Unchanged)
	assert.ErrorIs(t, err, ErrMalformedImage)
}

func TestEncodeRejectsBadShape(t *testing.T) {
	bad := &Raster{Pix: make([]uint8, 10), Width: 4, Height: 4, Channels: 1}
	_, err := Encode(bad, FormatPNG)
	assert.ErrorIs(t, err, ErrEncoding)

	twoChannel := &Raster{Pix: make([]uint8, 32), Width: 4, Height: 4, Channels: 2}
	_, err = Encode(twoChannel, FormatPNG)
	assert.ErrorIs(t, err, ErrEncoding)

	_, err = Encode(gradient(t, 2, 2, 1), Format("webp"))
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestJPEGToPNG(t *testing.T) {
	out, err := JPEGToPNG(jpegBytes(t, 50, 50))
	require.NoError(t, err)

	format, err := Sniff(out)
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	r, err := Decode(out, Unchanged)
	require.NoError(t, err)
	assert.Equal(t, 50, r.Width)
	assert.Equal(t, 50, r.Height)
}

func TestJPGToPNGMatchesJPEGToPNG(t *testing.T) {
	in := jpegBytes(t, 20, 30)

	a, err := JPEGToPNG(in)
	require.NoError(t, err)
	b, err := JPGToPNG(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRecodeRejectsWrongClaimedFormat(t *testing.T) {
	png, err := Encode(gradient(t, 5, 5, 3), FormatPNG)
	require.NoError(t, err)

	_, err = JPEGToPNG(png)
	assert.ErrorIs(t, err, ErrMalformedImage)

	out, err := Recode(png, "", FormatJPEG)
	require.NoError(t, err)
	format, err := Sniff(out)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"png": FormatPNG, ".PNG": FormatPNG, "jpg": FormatJPEG, "jpeg": FormatJPEG, " .Jpg ": FormatJPEG} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("tiff")
	assert.Error(t, err)
}

func TestImageFromImageRoundTrip(t *testing.T) {
	src := gradient(t, 6, 4, 3)
	back := FromImage(src.Image(), Unchanged)
	assert.Equal(t, src, back)

	gray := gradient(t, 6, 4, 1)
	assert.Equal(t, gray, FromImage(gray.Image(), Unchanged))
}
