// Package frame pulls a single still frame out of a video file with ffmpeg.
package frame

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned when ffmpeg does not finish within the configured timeout.
var ErrTimeout = errors.New("frame: extraction timed out")

// ErrNoFrame is returned when ffmpeg exits cleanly but leaves no output file.
var ErrNoFrame = errors.New("frame: no frame produced")

// DefaultTimeout bounds a single ffmpeg invocation.
const DefaultTimeout = 30 * time.Second

// Extractor writes one frame of videoPath as a PNG at outPath.
type Extractor interface {
	Extract(ctx context.Context, videoPath, outPath string) error
}

// ExitError carries ffmpeg's stderr when it exits non-zero.
type ExitError struct {
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg: %v", e.Err)
	}
	return fmt.Sprintf("ffmpeg: %v: %s", e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }

type commandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// FFmpeg is an Extractor backed by the ffmpeg binary.
type FFmpeg struct {
	path    string
	timeout time.Duration
	logger  *slog.Logger
	command commandFunc
}

// Option configures FFmpeg.
type Option func(*FFmpeg)

// WithBinary sets the ffmpeg executable. Defaults to "ffmpeg" looked up on PATH.
func WithBinary(path string) Option {
	return func(f *FFmpeg) {
		if path != "" {
			f.path = path
		}
	}
}

// WithTimeout bounds each extraction.
func WithTimeout(d time.Duration) Option {
	return func(f *FFmpeg) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *FFmpeg) {
		f.logger = logger
	}
}

// New creates an FFmpeg extractor.
func New(opts ...Option) *FFmpeg {
	f := &FFmpeg{
		path:    "ffmpeg",
		timeout: DefaultTimeout,
		command: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Args returns the ffmpeg argument list: the frame at one second, written once.
func Args(videoPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", videoPath,
		"-vf", "fps=1",
		"-vframes", "1",
		outPath,
	}
}

// Extract runs ffmpeg and waits for it to exit.
func (f *FFmpeg) Extract(ctx context.Context, videoPath, outPath string) error {
	runCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := f.command(runCtx, f.path, Args(videoPath, outPath)...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound):
			return fmt.Errorf("ffmpeg binary %q: %w", f.path, err)
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			return fmt.Errorf("%w after %s", ErrTimeout, f.timeout)
		}
		return &ExitError{Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	if _, statErr := os.Stat(outPath); statErr != nil {
		return fmt.Errorf("%w: %v", ErrNoFrame, statErr)
	}

	f.logger.Debug("frame extracted",
		"video", videoPath,
		"output", outPath,
		"duration", elapsed,
	)
	return nil
}

var _ Extractor = (*FFmpeg)(nil)
