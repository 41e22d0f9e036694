// Package filter implements the raster preprocessing steps that run before
// text recognition. Every step is a pure function: it validates its input,
// allocates a fresh output raster and never touches shared state, so steps can
// run concurrently on independent rasters.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/feichai0017/document-extractor/internal/raster"
)

var (
	// ErrEmptyRaster is returned by skew detection when no pixel is foreground.
	ErrEmptyRaster = errors.New("raster has no foreground pixels")
	// ErrInvalidRaster is returned when a step receives a malformed raster.
	ErrInvalidRaster = errors.New("invalid raster")
	// ErrUnknownStep is returned when a pipeline names a step that does not exist.
	ErrUnknownStep = errors.New("unknown pipeline step")
)

// Options carries the tunable parameters of the steps.
type Options struct {
	MedianSize int     `json:"medianSize" yaml:"medianSize"`
	KernelSize int     `json:"kernelSize" yaml:"kernelSize"`
	CannyLow   float64 `json:"cannyLow" yaml:"cannyLow"`
	CannyHigh  float64 `json:"cannyHigh" yaml:"cannyHigh"`
}

// DefaultOptions returns median 5, a 5x5 kernel and Canny thresholds 100/200.
func DefaultOptions() Options {
	return Options{
		MedianSize: 5,
		KernelSize: 5,
		CannyLow:   100,
		CannyHigh:  200,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MedianSize <= 0 {
		o.MedianSize = d.MedianSize
	}
	if o.KernelSize <= 0 {
		o.KernelSize = d.KernelSize
	}
	if o.CannyLow <= 0 && o.CannyHigh <= 0 {
		o.CannyLow, o.CannyHigh = d.CannyLow, d.CannyHigh
	}
	return o
}

// Step is a single named raster transform.
type Step interface {
	Name() string
	Process(r *raster.Raster) (*raster.Raster, error)
}

type stepFunc struct {
	name string
	fn   func(*raster.Raster) (*raster.Raster, error)
}

func (s stepFunc) Name() string { return s.name }

func (s stepFunc) Process(r *raster.Raster) (*raster.Raster, error) { return s.fn(r) }

// NewStep wraps fn as a Step.
func NewStep(name string, fn func(*raster.Raster) (*raster.Raster, error)) Step {
	return stepFunc{name: name, fn: fn}
}

// Step names understood by StepByName.
const (
	StepGrayscale = "grayscale"
	StepDenoise   = "denoise"
	StepBinarize  = "binarize"
	StepInvert    = "invert"
	StepDilate    = "dilate"
	StepErode     = "erode"
	StepOpen      = "open"
	StepEdges     = "edges"
	StepDeskew    = "deskew"
)

// DefaultSteps is the usual order for scanned documents.
var DefaultSteps = []string{StepGrayscale, StepDenoise, StepBinarize, StepDeskew}

// StepByName builds the named step configured by opts.
func StepByName(name string, opts Options) (Step, error) {
	opts = opts.withDefaults()
	kernel, err := Ones(opts.KernelSize)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case StepGrayscale:
		return NewStep(StepGrayscale, Grayscale), nil
	case StepDenoise:
		size := opts.MedianSize
		return NewStep(StepDenoise, func(r *raster.Raster) (*raster.Raster, error) {
			return Denoise(r, size)
		}), nil
	case StepBinarize:
		return NewStep(StepBinarize, Binarize), nil
	case StepInvert:
		return NewStep(StepInvert, Invert), nil
	case StepDilate:
		return NewStep(StepDilate, func(r *raster.Raster) (*raster.Raster, error) {
			return Dilate(r, kernel)
		}), nil
	case StepErode:
		return NewStep(StepErode, func(r *raster.Raster) (*raster.Raster, error) {
			return Erode(r, kernel)
		}), nil
	case StepOpen:
		return NewStep(StepOpen, func(r *raster.Raster) (*raster.Raster, error) {
			return Open(r, kernel)
		}), nil
	case StepEdges:
		low, high := opts.CannyLow, opts.CannyHigh
		return NewStep(StepEdges, func(r *raster.Raster) (*raster.Raster, error) {
			return DetectEdges(r, low, high)
		}), nil
	case StepDeskew:
		return NewStep(StepDeskew, CorrectSkew), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStep, name)
	}
}

// Pipeline applies its steps left to right.
type Pipeline struct {
	steps []Step
}

// NewPipeline builds a pipeline from step names.
func NewPipeline(names []string, opts Options) (*Pipeline, error) {
	steps := make([]Step, 0, len(names))
	for _, name := range names {
		step, err := StepByName(name, opts)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return &Pipeline{steps: steps}, nil
}

// Compose builds a pipeline from ready-made steps.
func Compose(steps ...Step) *Pipeline {
	return &Pipeline{steps: append([]Step(nil), steps...)}
}

// Names lists the step names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Len returns the number of steps.
func (p *Pipeline) Len() int { return len(p.steps) }

// Run applies every step to r. An empty pipeline returns a copy of r.
func (p *Pipeline) Run(r *raster.Raster) (*raster.Raster, error) {
	if err := check(r); err != nil {
		return nil, err
	}
	if len(p.steps) == 0 {
		return r.Clone(), nil
	}

	result := r
	for _, step := range p.steps {
		out, err := step.Process(result)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", step.Name(), err)
		}
		if out == nil {
			return nil, fmt.Errorf("step %s returned nil raster", step.Name())
		}
		result = out
	}
	return result, nil
}

func check(r *raster.Raster) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRaster, err)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
