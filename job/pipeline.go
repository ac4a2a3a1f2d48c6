// Package job runs the conversion pipeline: fetch a remote resource, probe
// it, drive ffmpeg through the fallback strategy table, hold the result to
// the size budget, and package it for inline transmission. Temporary state
// is reclaimed on every exit path, panics included.
package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"framepress/config"
	"framepress/encoder"
	"framepress/failures"
	"framepress/fetch"
	"framepress/logger"
	"framepress/models"
	"framepress/probe"
	"framepress/success"
)

// FetchFunc downloads a resource; ProbeFunc inspects it. Both are taken as
// values so tests can run the pipeline without a network or ffmpeg.
type FetchFunc func(ctx context.Context, rawURL string, creds map[string]string, ceiling int64, timeout time.Duration) (*fetch.Result, error)
type ProbeFunc func(ctx context.Context, ffprobePath, path string, timeout time.Duration) (*probe.Info, error)

// Pipeline holds the read-only configuration and collaborators for
// conversions. One Pipeline serves all requests; it carries no per-request
// state.
type Pipeline struct {
	Settings config.Settings
	WorkDir  string

	Fetch FetchFunc
	Probe ProbeFunc
	Run   encoder.RunFunc

	// ToolErr is non-nil when ffmpeg/ffprobe were missing at startup;
	// every conversion then fails as unsupported instead of crashing.
	ToolErr error

	sem *semaphore.Weighted
}

// New wires a Pipeline with the real fetcher, prober and ffmpeg runner.
func New(s config.Settings) *Pipeline {
	var toolErr error
	for _, tool := range []string{s.FFmpegPath, s.FFprobePath} {
		if err := encoder.EnsureTool(tool); err != nil {
			logger.Warnf("conversion disabled: %v", err)
			toolErr = err
			break
		}
	}

	return &Pipeline{
		Settings: s,
		WorkDir:  config.GetWorkDir(),
		Fetch:    fetch.Fetch,
		Probe:    probe.Inspect,
		Run:      encoder.Run,
		ToolErr:  toolErr,
		sem:      semaphore.NewWeighted(s.MaxConcurrentEncodes),
	}
}

// Attempt is one tier invocation's outcome. It lives only for the duration
// of the executor loop.
type Attempt struct {
	Tier        encoder.Tier
	Start       time.Time
	End         time.Time
	OutputPath  string
	OutputBytes int64
}

// Convert runs the full pipeline for one media request. On success the
// returned envelope holds the converted bytes inline; on failure the error
// is always a *Error with a taxonomy kind. Conversion failure is expected
// to be non-fatal to the caller's larger request.
func (p *Pipeline) Convert(ctx context.Context, req models.MediaRequest, creds map[string]string) (env models.InlineEnvelope, err error) {
	start := time.Now()
	id := req.ID()

	defer func() {
		if r := recover(); r != nil {
			err = failf(KindEncoding, "pipeline panic: %v", r)
		}
		if err != nil {
			err = p.recordFailure(id, req, err)
		}
	}()

	if p.ToolErr != nil {
		return env, &Error{Kind: KindUnsupported, Err: p.ToolErr}
	}
	if verr := req.Validate(); verr != nil {
		return env, &Error{Kind: KindUnsupported, Err: verr}
	}
	tiers, terr := encoder.TableFor(req.Kind, p.Settings)
	if terr != nil {
		return env, &Error{Kind: KindUnsupported, Err: terr}
	}

	res, ferr := p.Fetch(ctx, req.URL, creds, p.Settings.DownloadCeilingBytes(), p.Settings.DownloadTimeout)
	if ferr != nil {
		return env, &Error{Kind: KindDownload, Err: ferr}
	}
	if int64(len(res.Bytes)) < probe.MinInputBytes {
		return env, failf(KindValidation, "%w: %d bytes", probe.ErrTooSmall, len(res.Bytes))
	}

	// The workspace exists only from here on; a download failure never
	// touches the disk.
	ws, werr := NewWorkspace(p.WorkDir, id)
	if werr != nil {
		return env, &Error{Kind: KindEncoding, Err: werr}
	}
	defer ws.Close()

	inputPath := ws.Path("input" + inputExt(res.ContentType, req.DeclaredMime))
	if werr := os.WriteFile(inputPath, res.Bytes, 0644); werr != nil {
		return env, failf(KindEncoding, "failed to stage input: %w", werr)
	}

	info, perr := p.Probe(ctx, p.Settings.FFprobePath, inputPath, p.Settings.ProbeTimeout)
	if perr != nil {
		return env, &Error{Kind: KindValidation, Err: perr}
	}
	if !info.MatchesKind(req.Kind) {
		// misdeclared inputs are common; ffmpeg gets to decide
		logger.Warnf("conversion %s: probed format %q does not look like %s, attempting anyway", id, info.FormatName, req.Kind)
	}
	if !info.HasVideoStream() {
		logger.Warnf("conversion %s: no video stream reported by probe", id)
	}

	if serr := p.sem.Acquire(ctx, 1); serr != nil {
		return env, failf(KindEncoding, "cancelled while waiting for encoder slot: %w", serr)
	}
	defer p.sem.Release(1)

	attempt, aerr := p.runTiers(ctx, tiers, inputPath, ws)
	if aerr != nil {
		return env, aerr
	}

	passes := 1
	budget := p.Settings.MaxOutputBytes()
	if attempt.OutputBytes > budget {
		logger.Infof("conversion %s: %d bytes over %d budget, re-encoding aggressively", id, attempt.OutputBytes, budget)
		attempt, aerr = p.reEncode(ctx, attempt, inputPath, ws)
		if aerr != nil {
			return env, aerr
		}
		passes = 2
	}

	data, rerr := os.ReadFile(attempt.OutputPath)
	if rerr != nil {
		return env, failf(KindEncoding, "failed to read artifact: %w", rerr)
	}

	p.recordSuccess(id, attempt, int64(len(data)), passes, time.Since(start))
	logger.Infof("conversion %s: %d bytes as %s in %d pass(es)", id, len(data), attempt.Tier.MimeType, passes)
	return models.NewInlineEnvelope(data, attempt.Tier.MimeType), nil
}

// runTiers walks the strategy table in order, stopping at the first tier
// whose process exits zero.
func (p *Pipeline) runTiers(ctx context.Context, tiers []encoder.Tier, inputPath string, ws *Workspace) (*Attempt, error) {
	var diags []string
	for i, tier := range tiers {
		attempt, err := p.runTier(ctx, tier, inputPath, ws, fmt.Sprintf("output-%d", i))
		if err == nil {
			return attempt, nil
		}
		logger.Warnf("encode tier %d (%s) failed: %v", i, tier.Codec, err)
		diags = append(diags, fmt.Sprintf("tier %d (%s): %v", i, tier.Codec, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, failf(KindEncoding, "all strategy tiers exhausted: %s", strings.Join(diags, "; "))
}

// reEncode performs the single size-governed pass. A second oversized
// artifact, or a pass that fails outright, is a size-constraint failure —
// an oversized result is never returned silently.
func (p *Pipeline) reEncode(ctx context.Context, prior *Attempt, inputPath string, ws *Workspace) (*Attempt, error) {
	attempt, err := p.runTier(ctx, prior.Tier.Aggressive(), inputPath, ws, "output-reduced")
	if err != nil {
		return nil, &Error{Kind: KindSizeConstraint, Err: err}
	}
	if budget := p.Settings.MaxOutputBytes(); attempt.OutputBytes > budget {
		return nil, failf(KindSizeConstraint, "still %d bytes after aggressive pass (budget %d)", attempt.OutputBytes, budget)
	}
	return attempt, nil
}

func (p *Pipeline) runTier(ctx context.Context, tier encoder.Tier, inputPath string, ws *Workspace, base string) (*Attempt, error) {
	attempt := &Attempt{
		Tier:       tier,
		Start:      time.Now(),
		OutputPath: ws.Path(base + "." + tier.Ext),
	}

	err := p.Run(ctx, p.Settings.FFmpegPath, tier.Args(inputPath, attempt.OutputPath), p.Settings.AttemptTimeout)
	attempt.End = time.Now()
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(attempt.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("encoder exited zero but produced no artifact: %w", err)
	}
	attempt.OutputBytes = fi.Size()
	return attempt, nil
}

// recordFailure normalizes err to a tagged *Error and stores the outcome.
// Store errors are logged, never allowed to mask the conversion failure.
func (p *Pipeline) recordFailure(id string, req models.MediaRequest, err error) error {
	kind := Classify(err)
	if storeErr := failures.StoreFailure(id, string(kind), err, req); storeErr != nil {
		logger.Errorf("Failed to store failure for %s: %v", id, storeErr)
	}
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: kind, Err: err}
	}
	return e
}

func (p *Pipeline) recordSuccess(id string, attempt *Attempt, size int64, passes int, elapsed time.Duration) {
	record := success.SuccessRecord{
		ID:          id,
		MimeType:    attempt.Tier.MimeType,
		OutputBytes: size,
		Codec:       attempt.Tier.Family,
		Passes:      passes,
		Elapsed:     elapsed,
	}
	if err := success.StoreSuccess(record); err != nil {
		logger.Errorf("Failed to store success record for %s: %v", id, err)
	}
}

// inputExt picks a staging extension so ffprobe/ffmpeg get a hint on top of
// content sniffing. Unknown types fall back to a neutral extension.
func inputExt(observed, declared string) string {
	for _, ct := range []string{observed, declared} {
		if ct == "" {
			continue
		}
		if i := strings.Index(ct, ";"); i >= 0 {
			ct = ct[:i]
		}
		if ext, ok := mimeExts[strings.TrimSpace(strings.ToLower(ct))]; ok {
			return ext
		}
	}
	return ".bin"
}

var mimeExts = map[string]string{
	"image/gif":        ".gif",
	"image/webp":       ".webp",
	"image/apng":       ".apng",
	"image/png":        ".png",
	"video/mp4":        ".mp4",
	"video/webm":       ".webm",
	"video/quicktime":  ".mov",
	"video/x-matroska": ".mkv",
	"video/mpeg":       ".mpg",
}
