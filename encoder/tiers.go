package encoder

import (
	"fmt"
	"strconv"

	"framepress/config"
	"framepress/models"
)

// Quality-parameter ceilings. Fallback tiers escalate CRF toward crfCeiling;
// the size-governed re-encode may push as far as crfAggressiveCeiling.
const (
	crfCeiling           = 38
	crfAggressiveCeiling = 40
	fallbackCRFStep      = 6
)

// Tier is one entry in the fallback strategy table: a codec paired with its
// invocation parameters. Tiers are tried strictly in order and CRF only ever
// escalates across them within one request.
type Tier struct {
	Codec     string // ffmpeg encoder name
	Family    string // codec family, reused by the size-governed re-encode
	Container string // -f value
	Ext       string
	MimeType  string
	CRF       int
	Height    int // target vertical resolution; sources below it pass through
	FrameRate int
	KeepAudio bool
}

// TableFor returns the ordered strategy table for a media kind. Animated
// images get a high-compression primary tier and a broadly compatible
// fallback; already-compressed video gets a single resize tier.
func TableFor(kind models.MediaKind, s config.Settings) ([]Tier, error) {
	switch kind {
	case models.KindAnimatedImage:
		return []Tier{
			{
				Codec:     "libvpx-vp9",
				Family:    "vp9",
				Container: "webm",
				Ext:       "webm",
				MimeType:  "video/webm",
				CRF:       s.BaseCRF,
				Height:    s.TargetHeight,
				FrameRate: s.FrameRateCap,
			},
			{
				Codec:     "libx264",
				Family:    "h264",
				Container: "mp4",
				Ext:       "mp4",
				MimeType:  "video/mp4",
				CRF:       clampCRF(s.BaseCRF+fallbackCRFStep, crfCeiling),
				Height:    s.TargetHeight,
				FrameRate: s.FrameRateCap,
			},
		}, nil
	case models.KindVideo:
		return []Tier{
			{
				Codec:     "libx264",
				Family:    "h264",
				Container: "mp4",
				Ext:       "mp4",
				MimeType:  "video/mp4",
				CRF:       s.BaseCRF,
				Height:    s.TargetHeight,
				FrameRate: s.FrameRateCap,
				KeepAudio: true,
			},
		}, nil
	}
	return nil, fmt.Errorf("no strategy table for media kind %q", kind)
}

// Aggressive derives the single size-governed re-encode profile from the
// tier that produced the oversized artifact: halved resolution, coarser CRF,
// lower frame rate, same codec family.
func (t Tier) Aggressive() Tier {
	out := t
	out.Height = t.Height / 2
	out.CRF = clampCRF(t.CRF+fallbackCRFStep, crfAggressiveCeiling)
	out.FrameRate = t.FrameRate / 2
	if out.FrameRate < 10 {
		out.FrameRate = 10
	}
	return out
}

// Args builds the ffmpeg argv for this tier. The scale filter only ever
// downsizes: sources already below the target height pass through unchanged.
func (t Tier) Args(inputPath, outputPath string) []string {
	args := []string{
		"-y",
		"-i", inputPath,
		"-c:v", t.Codec,
		"-crf", strconv.Itoa(t.CRF),
		"-vf", downscaleFilter(t.Height),
		"-r", strconv.Itoa(t.FrameRate),
	}

	switch t.Family {
	case "vp9":
		// constant-quality mode
		args = append(args, "-b:v", "0")
	case "h264":
		args = append(args, "-preset", "fast", "-pix_fmt", "yuv420p")
		if t.Container == "mp4" {
			args = append(args, "-movflags", "+faststart")
		}
	}

	if t.KeepAudio {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	} else {
		args = append(args, "-an")
	}

	args = append(args, "-f", t.Container, outputPath)
	return args
}

// downscaleFilter caps the vertical resolution without ever upscaling. The
// comma inside min() is escaped because commas separate filters in a
// filtergraph; width -2 keeps the aspect ratio on an even pixel count.
func downscaleFilter(targetHeight int) string {
	return fmt.Sprintf("scale=-2:min(%d\\,ih)", targetHeight)
}

func clampCRF(v, ceiling int) int {
	if v > ceiling {
		return ceiling
	}
	return v
}
