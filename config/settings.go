package config

import (
	"os"
	"strconv"
	"time"
)

// Settings is the immutable configuration value threaded through one
// conversion. It is loaded once at startup and never mutated afterwards;
// concurrent conversions share it read-only.
type Settings struct {
	// MaxOutputSizeMB is the hard ceiling for the final artifact.
	MaxOutputSizeMB int

	// DownloadCeilingMultiplier scales MaxOutputSizeMB into the absolute
	// download ceiling. Inputs are admitted above the output budget because
	// encoding shrinks them substantially.
	DownloadCeilingMultiplier int

	// TargetHeight is the vertical pixel target for the primary encode.
	TargetHeight int

	// BaseCRF is the constant-rate-factor for the primary pass. Fallback
	// tiers and the size-governed re-encode only ever raise it.
	BaseCRF int

	// FrameRateCap is the output frame-rate ceiling for the primary encode.
	FrameRateCap int

	DownloadTimeout time.Duration
	AttemptTimeout  time.Duration
	ProbeTimeout    time.Duration

	// MaxConcurrentEncodes caps simultaneous ffmpeg invocations across all
	// requests.
	MaxConcurrentEncodes int64

	FFmpegPath  string
	FFprobePath string
}

const (
	defaultMaxOutputSizeMB      = 50
	defaultDownloadMultiplier   = 3
	defaultTargetHeight         = 720
	defaultBaseCRF              = 28
	defaultFrameRateCap         = 30
	defaultDownloadTimeout      = 30 * time.Second
	defaultAttemptTimeout       = 60 * time.Second
	defaultProbeTimeout         = 10 * time.Second
	defaultMaxConcurrentEncodes = 2
)

// LoadSettings builds a Settings from the FRAMEPRESS_* environment,
// falling back to defaults for anything unset or unparseable.
func LoadSettings() Settings {
	return Settings{
		MaxOutputSizeMB:           envInt("FRAMEPRESS_MAX_OUTPUT_MB", defaultMaxOutputSizeMB),
		DownloadCeilingMultiplier: defaultDownloadMultiplier,
		TargetHeight:              envInt("FRAMEPRESS_TARGET_HEIGHT", defaultTargetHeight),
		BaseCRF:                   envInt("FRAMEPRESS_BASE_CRF", defaultBaseCRF),
		FrameRateCap:              envInt("FRAMEPRESS_FPS_CAP", defaultFrameRateCap),
		DownloadTimeout:           envDurationMs("FRAMEPRESS_DOWNLOAD_TIMEOUT_MS", defaultDownloadTimeout),
		AttemptTimeout:            envDurationMs("FRAMEPRESS_ATTEMPT_TIMEOUT_MS", defaultAttemptTimeout),
		ProbeTimeout:              envDurationMs("FRAMEPRESS_PROBE_TIMEOUT_MS", defaultProbeTimeout),
		MaxConcurrentEncodes:      int64(envInt("FRAMEPRESS_MAX_ENCODES", defaultMaxConcurrentEncodes)),
		FFmpegPath:                envString("FRAMEPRESS_FFMPEG", "ffmpeg"),
		FFprobePath:               envString("FRAMEPRESS_FFPROBE", "ffprobe"),
	}
}

// MaxOutputBytes returns the output budget in bytes.
func (s Settings) MaxOutputBytes() int64 {
	return int64(s.MaxOutputSizeMB) * 1024 * 1024
}

// DownloadCeilingBytes returns the absolute download ceiling in bytes.
func (s Settings) DownloadCeilingBytes() int64 {
	return s.MaxOutputBytes() * int64(s.DownloadCeilingMultiplier)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDurationMs(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
