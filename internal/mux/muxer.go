package mux

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"dashgrab/internal/logger"
)

// ErrMuxFailed is returned when the muxing tool exits unsuccessfully.
// The input tracks are kept when it is returned.
var ErrMuxFailed = errors.New("mux failed")

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Muxer combines a video and an audio track into one container with ffmpeg.
type Muxer struct {
	ffmpeg string
	logger logger.Logger
	run    CommandRunner
}

// New creates a Muxer that invokes the ffmpeg binary at ffmpegPath.
func New(ffmpegPath string, log logger.Logger) *Muxer {
	return &Muxer{ffmpeg: ffmpegPath, logger: log.With("component", "mux"), run: defaultCommandRunner}
}

// WithCommandRunner replaces how the tool is executed, for tests.
func (m *Muxer) WithCommandRunner(r CommandRunner) {
	if m != nil && r != nil {
		m.run = r
	}
}

// BuildArgs returns the ffmpeg arguments that stream-copy the first
// input's video and the second input's audio into output.
func BuildArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v",
		"-map", "1:a",
		"-c", "copy",
		outputPath,
	}
}

// Mux writes outputPath from the two inputs without re-encoding.
// On success both inputs are removed. On failure they are kept and
// nothing is left at outputPath by this call.
func (m *Muxer) Mux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	if strings.TrimSpace(m.ffmpeg) == "" {
		return fmt.Errorf("%w: ffmpeg path not configured", ErrMuxFailed)
	}
	for _, p := range []string{videoPath, audioPath} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("mux input: %w", err)
		}
	}

	// ffmpeg picks the container from the extension, so the pending name keeps it.
	pending := filepath.Join(filepath.Dir(outputPath), ".muxing-"+filepath.Base(outputPath))
	args := BuildArgs(videoPath, audioPath, pending)

	m.logger.Infof("Muxing %s + %s into %s", filepath.Base(videoPath), filepath.Base(audioPath), outputPath)
	m.logger.Debugf("Running %s %s", m.ffmpeg, strings.Join(args, " "))

	if output, err := m.run(ctx, m.ffmpeg, args...); err != nil {
		_ = os.Remove(pending)
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			return fmt.Errorf("%w: %s: %v", ErrMuxFailed, outputPath, err)
		}
		return fmt.Errorf("%w: %s: %v: %s", ErrMuxFailed, outputPath, err, detail)
	}

	if err := os.Rename(pending, outputPath); err != nil {
		_ = os.Remove(pending)
		return fmt.Errorf("%w: move output into place: %v", ErrMuxFailed, err)
	}

	for _, p := range []string{videoPath, audioPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warnf("Failed to remove temporary track %s: %v", p, err)
		}
	}
	return nil
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
