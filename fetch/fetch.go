// Package fetch downloads a remote media resource into memory under a time
// limit and an absolute size ceiling. Sources are selected by URL scheme:
// plain http(s), s3:// buckets, gs:// buckets and sftp:// drops. Non-HTTP
// sources authenticate with a credential map registered out of band.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"time"

	"framepress/logger"
)

// ErrTooLarge is returned when the resource exceeds the download ceiling,
// either by announced Content-Length or by actual buffered size.
var ErrTooLarge = errors.New("input exceeds download ceiling")

// Result is a fully buffered download.
type Result struct {
	Bytes       []byte
	ContentType string // observed; may be empty for non-HTTP sources
}

// Fetch downloads rawURL, aborting the transfer itself once timeout fires
// or the ceiling is crossed. creds may be nil for public HTTP inputs.
func Fetch(ctx context.Context, rawURL string, creds map[string]string, ceiling int64, timeout time.Duration) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var res *Result
	switch u.Scheme {
	case "http", "https":
		res, err = fetchHTTP(ctx, rawURL, ceiling)
	case "s3":
		res, err = fetchS3(ctx, u, creds, ceiling)
	case "gs":
		res, err = fetchGCS(ctx, u, creds, ceiling)
	case "sftp":
		res, err = fetchSFTP(ctx, u, creds, ceiling)
	default:
		return nil, fmt.Errorf("unsupported url scheme: %s", u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	if res.ContentType == "" {
		res.ContentType = mime.TypeByExtension(path.Ext(u.Path))
	}
	logger.Debugf("fetched %s: %d bytes, content type %q", u.Scheme, len(res.Bytes), res.ContentType)
	return res, nil
}

// readCapped buffers r, failing with ErrTooLarge as soon as the ceiling is
// crossed instead of draining the rest of the stream.
func readCapped(r io.Reader, ceiling int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, ceiling+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > ceiling {
		return nil, ErrTooLarge
	}
	return data, nil
}

func fetchHTTP(ctx context.Context, rawURL string, ceiling int64) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "Framepress/1.0")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	// Reject before buffering anything when the server announces a size.
	// The header can be absent or wrong, so readCapped re-checks reality.
	if resp.ContentLength > 0 && resp.ContentLength > ceiling {
		return nil, fmt.Errorf("announced %d bytes: %w", resp.ContentLength, ErrTooLarge)
	}

	data, err := readCapped(resp.Body, ceiling)
	if err != nil {
		return nil, err
	}

	return &Result{Bytes: data, ContentType: resp.Header.Get("Content-Type")}, nil
}
