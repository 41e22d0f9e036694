package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/feichai0017/document-extractor/internal/raster"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

// DefaultBinary is the engine executable looked up on PATH.
const DefaultBinary = "tesseract"

// CommandOptions configures a CommandRecognizer.
type CommandOptions struct {
	// Binary is a name resolved on PATH or an absolute path.
	Binary string
	// ExtraArgs are appended after the mode flags, e.g. "-c", "preserve_interword_spaces=1".
	ExtraArgs []string
}

// CommandRecognizer runs the engine as a child process, piping a PNG into
// stdin and reading the text from stdout.
type CommandRecognizer struct {
	logger logger.Logger
	opts   CommandOptions
}

// NewCommandRecognizer creates a recognizer around the tesseract executable.
func NewCommandRecognizer(logger logger.Logger, opts *CommandOptions) *CommandRecognizer {
	if opts == nil {
		opts = &CommandOptions{}
	}
	o := *opts
	if o.Binary == "" {
		o.Binary = DefaultBinary
	}
	return &CommandRecognizer{logger: logger, opts: o}
}

// Args returns the command line arguments used for cfg, without the binary.
func (c *CommandRecognizer) Args(cfg Config) []string {
	args := []string{
		"stdin", "stdout",
		"-l", cfg.Language,
		"--oem", strconv.Itoa(int(cfg.EngineMode)),
		"--psm", strconv.Itoa(int(cfg.PageSegMode)),
	}
	return append(args, c.opts.ExtraArgs...)
}

// Available reports whether the binary can be found.
func (c *CommandRecognizer) Available() error {
	if _, err := exec.LookPath(c.opts.Binary); err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return nil
}

// Recognize encodes r as PNG and hands it to the engine.
func (c *CommandRecognizer) Recognize(ctx context.Context, r *raster.Raster, cfg Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	path, err := exec.LookPath(c.opts.Binary)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	img, err := raster.Encode(r, raster.FormatPNG)
	if err != nil {
		return "", fmt.Errorf("failed to encode raster for recognition: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, c.Args(cfg)...)
	cmd.Stdin = bytes.NewReader(img)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("%w: %w", ErrRecognitionFailed, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			c.logger.Warn("Recognition engine exited with error",
				logger.Int("exitCode", exitErr.ExitCode()),
				logger.String("stderr", strings.TrimSpace(stderr.String())))
			return "", fmt.Errorf("%w: exit code %d: %s", ErrRecognitionFailed, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	c.logger.Debug("Recognition finished",
		logger.String("lang", cfg.Language),
		logger.Int("oem", int(cfg.EngineMode)),
		logger.Int("psm", int(cfg.PageSegMode)),
		logger.Duration("elapsed", time.Since(start)))

	return strings.TrimSpace(stdout.String()), nil
}
