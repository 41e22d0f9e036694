package image

import (
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/feichai0017/document-extractor/internal/filter"
	"github.com/feichai0017/document-extractor/internal/raster"
)

// Extra step names understood by StepByName on top of the filter package.
const (
	StepSharpen  = "sharpen"
	StepContrast = "contrast"
	StepBlur     = "blur"
	StepUpscale  = "upscale"
)

// PreprocessConfig tunes the imaging based steps.
type PreprocessConfig struct {
	SharpenSigma    float64 `yaml:"sharpenSigma"`
	ContrastPercent float64 `yaml:"contrastPercent"`
	BlurSigma       float64 `yaml:"blurSigma"`
	// MinWidth is the width small scans are enlarged to before recognition.
	MinWidth int `yaml:"minWidth"`
}

// DefaultPreprocessConfig 默认预处理参数
func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		SharpenSigma:    0.5,
		ContrastPercent: 20,
		BlurSigma:       0.5,
		MinWidth:        1000,
	}
}

// StepByName resolves the imaging steps of this package and defers every
// other name to filter.StepByName.
func StepByName(name string, opts filter.Options, cfg PreprocessConfig) (filter.Step, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StepSharpen:
		sigma := cfg.SharpenSigma
		return imagingStep(StepSharpen, func(img image.Image) *image.NRGBA {
			return imaging.Sharpen(img, sigma)
		}), nil
	case StepContrast:
		pct := cfg.ContrastPercent
		return imagingStep(StepContrast, func(img image.Image) *image.NRGBA {
			return imaging.AdjustContrast(img, pct)
		}), nil
	case StepBlur:
		sigma := cfg.BlurSigma
		return imagingStep(StepBlur, func(img image.Image) *image.NRGBA {
			return imaging.Blur(img, sigma)
		}), nil
	case StepUpscale:
		minWidth := cfg.MinWidth
		return filter.NewStep(StepUpscale, func(r *raster.Raster) (*raster.Raster, error) {
			if err := r.Validate(); err != nil {
				return nil, err
			}
			if minWidth <= 0 || r.Width >= minWidth {
				return r.Clone(), nil
			}
			img := imaging.Resize(r.Image(), minWidth, 0, imaging.Lanczos)
			return raster.FromImage(img, modeOf(r)), nil
		}), nil
	default:
		return filter.StepByName(name, opts)
	}
}

// NewPipeline builds a pipeline that may mix filter and imaging steps.
func NewPipeline(names []string, opts filter.Options, cfg PreprocessConfig) (*filter.Pipeline, error) {
	steps := make([]filter.Step, 0, len(names))
	for _, name := range names {
		step, err := StepByName(name, opts, cfg)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return filter.Compose(steps...), nil
}

// imagingStep runs fn on the raster's image form and keeps the channel count.
func imagingStep(name string, fn func(image.Image) *image.NRGBA) filter.Step {
	return filter.NewStep(name, func(r *raster.Raster) (*raster.Raster, error) {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		return raster.FromImage(fn(r.Image()), modeOf(r)), nil
	})
}

func modeOf(r *raster.Raster) raster.ColorMode {
	if r.Channels == 1 {
		return raster.Grayscale
	}
	return raster.Color
}
