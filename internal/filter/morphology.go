package filter

import (
	"fmt"

	"github.com/feichai0017/document-extractor/internal/raster"
)

// StructuringElement is a square, odd-sized binary mask anchored at its centre.
type StructuringElement struct {
	size int
	mask []bool
}

// Ones returns a size x size element with every cell set.
func Ones(size int) (StructuringElement, error) {
	if size < 1 || size%2 == 0 {
		return StructuringElement{}, fmt.Errorf("kernel size must be odd and positive, got %d", size)
	}
	mask := make([]bool, size*size)
	for i := range mask {
		mask[i] = true
	}
	return StructuringElement{size: size, mask: mask}, nil
}

// NewStructuringElement builds an element from a square mask of 0/1 rows.
func NewStructuringElement(rows [][]uint8) (StructuringElement, error) {
	size := len(rows)
	if size < 1 || size%2 == 0 {
		return StructuringElement{}, fmt.Errorf("kernel size must be odd and positive, got %d", size)
	}
	mask := make([]bool, 0, size*size)
	for i, row := range rows {
		if len(row) != size {
			return StructuringElement{}, fmt.Errorf("kernel row %d has %d cells, want %d", i, len(row), size)
		}
		for _, v := range row {
			mask = append(mask, v != 0)
		}
	}
	return StructuringElement{size: size, mask: mask}, nil
}

// Size returns the side length.
func (k StructuringElement) Size() int { return k.size }

// Dilate replaces every sample with the maximum under the element.
// Kernel cells that fall outside the raster are ignored.
func Dilate(r *raster.Raster, k StructuringElement) (*raster.Raster, error) {
	return morph(r, k, func(acc, v uint8) uint8 {
		if v > acc {
			return v
		}
		return acc
	}, 0)
}

// Erode replaces every sample with the minimum under the element.
// Kernel cells that fall outside the raster are ignored.
func Erode(r *raster.Raster, k StructuringElement) (*raster.Raster, error) {
	return morph(r, k, func(acc, v uint8) uint8 {
		if v < acc {
			return v
		}
		return acc
	}, 255)
}

// Open erodes then dilates with the same element, removing specks smaller
// than the element while keeping larger shapes.
func Open(r *raster.Raster, k StructuringElement) (*raster.Raster, error) {
	eroded, err := Erode(r, k)
	if err != nil {
		return nil, err
	}
	return Dilate(eroded, k)
}

func morph(r *raster.Raster, k StructuringElement, pick func(acc, v uint8) uint8, init uint8) (*raster.Raster, error) {
	if err := check(r); err != nil {
		return nil, err
	}
	if k.size == 0 {
		return nil, fmt.Errorf("empty structuring element")
	}

	w, h, ch := r.Width, r.Height, r.Channels
	anchor := k.size / 2
	out := raster.NewLike(r)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < ch; c++ {
				acc := init
				for i := 0; i < k.size; i++ {
					yy := y + i - anchor
					if yy < 0 || yy >= h {
						continue
					}
					for j := 0; j < k.size; j++ {
						xx := x + j - anchor
						if xx < 0 || xx >= w || !k.mask[i*k.size+j] {
							continue
						}
						acc = pick(acc, r.Pix[(yy*w+xx)*ch+c])
					}
				}
				out.Pix[(y*w+x)*ch+c] = acc
			}
		}
	}
	return out, nil
}
