// Package encoder drives ffmpeg through the ordered strategy table. Every
// invocation is an argv array handed straight to the process, never a shell
// line, so filter expressions and paths need no quoting.
package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"framepress/logger"
)

// ErrTimeout marks an attempt whose ffmpeg process was killed at the
// per-attempt deadline.
var ErrTimeout = errors.New("encode attempt timed out")

// RunFunc executes one external encode invocation. The pipeline takes it as
// a value so tests can substitute a stub for the real ffmpeg.
type RunFunc func(ctx context.Context, ffmpegPath string, args []string, timeout time.Duration) error

// Run executes ffmpeg with the given argv under a wall-clock deadline. When
// the deadline fires the process is killed and awaited, not abandoned.
func Run(ctx context.Context, ffmpegPath string, args []string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	cmd.WaitDelay = 5 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debugf("running %s %s", ffmpegPath, strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		diag := tail(stderr.String())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, diag)
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, diag)
	}
	return nil
}

// EnsureTool verifies an external command is reachable. Called once at
// startup; a missing tool disables conversion instead of crashing requests.
func EnsureTool(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return nil
}

// tail returns the last few stderr lines, where ffmpeg puts the actual
// failure reason.
func tail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(no diagnostic output)"
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	return strings.Join(lines, " | ")
}
