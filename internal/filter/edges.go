package filter

import (
	"fmt"

	"github.com/feichai0017/document-extractor/internal/raster"
)

const (
	tan22 = 0.4142135623730951
	tan67 = 2.414213562373095
)

const (
	edgeNone uint8 = iota
	edgeWeak
	edgeStrong
)

// DetectEdges runs Canny edge detection with an L1 gradient magnitude and
// hysteresis thresholds low and high. Colour input is converted to gray first.
// The result is a single-channel raster holding only 0 and 255.
func DetectEdges(r *raster.Raster, low, high float64) (*raster.Raster, error) {
	gray, err := Grayscale(r)
	if err != nil {
		return nil, err
	}
	if low < 0 || high < 0 {
		return nil, fmt.Errorf("canny thresholds must be non-negative, got %v/%v", low, high)
	}
	if low > high {
		low, high = high, low
	}
	lo, hi := int(low), int(high)

	w, h := gray.Width, gray.Height
	gx, gy := sobel(gray)

	// magnitude padded by one zero cell on every side
	stride := w + 2
	mag := make([]int, stride*(h+2))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			mag[(y+1)*stride+x+1] = abs(gx[i]) + abs(gy[i])
		}
	}
	at := func(x, y int) int { return mag[(y+1)*stride+x+1] }

	state := make([]uint8, w*h)
	var stack []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := at(x, y)
			if m <= lo {
				continue
			}
			dx, dy := gx[y*w+x], gy[y*w+x]
			ax, ay := float64(abs(dx)), float64(abs(dy))

			var keep bool
			switch {
			case ay < ax*tan22:
				keep = m > at(x-1, y) && m >= at(x+1, y)
			case ay > ax*tan67:
				keep = m > at(x, y-1) && m >= at(x, y+1)
			default:
				s := 1
				if (dx < 0) != (dy < 0) {
					s = -1
				}
				keep = m > at(x-s, y-1) && m > at(x+s, y+1)
			}
			if !keep {
				continue
			}
			if m > hi {
				state[y*w+x] = edgeStrong
				stack = append(stack, y*w+x)
			} else {
				state[y*w+x] = edgeWeak
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for ny := y - 1; ny <= y+1; ny++ {
			for nx := x - 1; nx <= x+1; nx++ {
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				if j := ny*w + nx; state[j] == edgeWeak {
					state[j] = edgeStrong
					stack = append(stack, j)
				}
			}
		}
	}

	for i, s := range state {
		if s == edgeStrong {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}
	return gray, nil
}

// sobel returns the 3x3 Sobel derivatives with replicated borders.
func sobel(gray *raster.Raster) (gx, gy []int) {
	w, h := gray.Width, gray.Height
	gx = make([]int, w*h)
	gy = make([]int, w*h)
	p := func(x, y int) int {
		return int(gray.Pix[clamp(y, 0, h-1)*w+clamp(x, 0, w-1)])
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx[y*w+x] = p(x+1, y-1) + 2*p(x+1, y) + p(x+1, y+1) -
				p(x-1, y-1) - 2*p(x-1, y) - p(x-1, y+1)
			gy[y*w+x] = p(x-1, y+1) + 2*p(x, y+1) + p(x+1, y+1) -
				p(x-1, y-1) - 2*p(x, y-1) - p(x+1, y-1)
		}
	}
	return gx, gy
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
