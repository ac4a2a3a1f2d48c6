// Package probe validates downloaded bytes via ffprobe before any encoding
// is attempted. Probing is best effort: a readable file of the wrong kind is
// only a warning, while an unreadable or near-empty payload is a hard stop.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"framepress/models"
)

// MinInputBytes is the corrupt-input threshold: payloads below it are
// rejected without invoking ffprobe at all.
const MinInputBytes = 1024

// ErrTooSmall marks a payload below MinInputBytes.
var ErrTooSmall = errors.New("input too small to be valid media")

// Info holds the stream metadata the pipeline cares about.
type Info struct {
	FormatName string
	Duration   float64
	Codec      string
	Width      int
	Height     int
}

// HasVideoStream reports whether ffprobe found a decodable video stream.
func (i *Info) HasVideoStream() bool {
	return i.Codec != "" && i.Width > 0 && i.Height > 0
}

// MatchesKind reports whether the probed container plausibly matches the
// declared media kind. A mismatch is a pipeline warning, not a failure;
// misreported inputs are common.
func (i *Info) MatchesKind(kind models.MediaKind) bool {
	name := strings.ToLower(i.FormatName)
	switch kind {
	case models.KindAnimatedImage:
		return strings.Contains(name, "gif") ||
			strings.Contains(name, "webp") ||
			strings.Contains(name, "apng") ||
			strings.Contains(name, "png_pipe")
	case models.KindVideo:
		return strings.Contains(name, "mp4") ||
			strings.Contains(name, "matroska") ||
			strings.Contains(name, "webm") ||
			strings.Contains(name, "avi") ||
			strings.Contains(name, "mpegts") ||
			strings.Contains(name, "mov")
	}
	return false
}

// Inspect runs ffprobe against path under its own short deadline. The
// process is killed if the deadline fires.
func Inspect(ctx context.Context, ffprobePath, path string, timeout time.Duration) (*Info, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("ffprobe timed out after %s", timeout)
		}
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, strings.TrimSpace(stderr.String()))
	}

	return ParseOutput(stdout.Bytes())
}

type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// ParseOutput decodes ffprobe's -print_format json output into an Info,
// taking the first video stream.
func ParseOutput(data []byte) (*Info, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode ffprobe output: %w", err)
	}

	info := &Info{FormatName: out.Format.FormatName}
	if out.Format.Duration != "" {
		info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	}
	for _, s := range out.Streams {
		if s.CodecType == "video" {
			info.Codec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			break
		}
	}
	return info, nil
}
