package filter

import (
	"fmt"

	"github.com/feichai0017/document-extractor/internal/raster"
)

// float32 machine epsilon, used to skip degenerate class splits
const otsuEpsilon = 1.1920929e-07

// Grayscale reduces a colour raster to one luma channel (0.299R + 0.587G + 0.114B).
// A gray raster is copied unchanged.
func Grayscale(r *raster.Raster) (*raster.Raster, error) {
	if err := check(r); err != nil {
		return nil, err
	}
	if r.Channels == 1 {
		return r.Clone(), nil
	}
	return raster.FromImage(r.Image(), raster.Grayscale), nil
}

// Invert maps every sample v to 255-v.
func Invert(r *raster.Raster) (*raster.Raster, error) {
	if err := check(r); err != nil {
		return nil, err
	}
	out := raster.NewLike(r)
	for i, v := range r.Pix {
		out.Pix[i] = 255 - v
	}
	return out, nil
}

// Denoise applies a median filter of odd size ksize to every channel,
// replicating edge pixels outside the raster.
func Denoise(r *raster.Raster, ksize int) (*raster.Raster, error) {
	if err := check(r); err != nil {
		return nil, err
	}
	if ksize < 1 || ksize%2 == 0 {
		return nil, fmt.Errorf("median size must be odd and positive, got %d", ksize)
	}
	if ksize == 1 {
		return r.Clone(), nil
	}

	w, h, ch := r.Width, r.Height, r.Channels
	half := ksize / 2
	out := raster.NewLike(r)
	window := make([]uint8, ksize*ksize)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < ch; c++ {
				n := 0
				for dy := -half; dy <= half; dy++ {
					row := clamp(y+dy, 0, h-1) * w
					for dx := -half; dx <= half; dx++ {
						window[n] = r.Pix[(row+clamp(x+dx, 0, w-1))*ch+c]
						n++
					}
				}
				out.Pix[(y*w+x)*ch+c] = median(window)
			}
		}
	}
	return out, nil
}

// median sorts buf in place and returns its middle element.
func median(buf []uint8) uint8 {
	for i := 1; i < len(buf); i++ {
		v := buf[i]
		j := i - 1
		for j >= 0 && buf[j] > v {
			buf[j+1] = buf[j]
			j--
		}
		buf[j+1] = v
	}
	return buf[len(buf)/2]
}

// Binarize thresholds r with Otsu's method. Colour input is converted to gray
// first. The result holds only 0 and 255.
func Binarize(r *raster.Raster) (*raster.Raster, error) {
	gray, err := Grayscale(r)
	if err != nil {
		return nil, err
	}

	t := OtsuThreshold(gray)
	for i, v := range gray.Pix {
		if v > t {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}
	return gray, nil
}

// OtsuThreshold picks the threshold that maximises the between-class variance
// of a single-channel raster's histogram, which is the same as minimising the
// within-class variance.
func OtsuThreshold(gray *raster.Raster) uint8 {
	var hist [256]int
	for _, v := range gray.Pix {
		hist[v]++
	}
	total := float64(len(gray.Pix))

	var mu float64
	for i, n := range hist {
		mu += float64(i) * float64(n)
	}
	mu /= total

	var q1, mu1, maxSigma float64
	var best int
	for i, n := range hist {
		p := float64(n) / total
		mu1 *= q1
		q1 += p
		q2 := 1 - q1

		if minf(q1, q2) < otsuEpsilon || maxf(q1, q2) > 1-otsuEpsilon {
			continue
		}

		mu1 = (mu1 + float64(i)*p) / q1
		mu2 := (mu - q1*mu1) / q2
		sigma := q1 * q2 * (mu1 - mu2) * (mu1 - mu2)
		if sigma > maxSigma {
			maxSigma = sigma
			best = i
		}
	}
	return uint8(best)
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
