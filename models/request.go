package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
)

// MediaKind classifies the input for strategy selection.
type MediaKind string

const (
	KindVideo         MediaKind = "video"
	KindAnimatedImage MediaKind = "animated-image"
)

// MediaRequest describes one inbound attachment to convert. It is created
// once per request and never mutated; a single pipeline invocation owns it.
type MediaRequest struct {
	URL          string    `json:"url"`
	DeclaredMime string    `json:"mimeType,omitempty"`
	Kind         MediaKind `json:"kind"`

	// CredentialKey references a registered credential record for
	// non-HTTP sources (s3, gs, sftp). Empty for public HTTP inputs.
	CredentialKey string `json:"credentialKey,omitempty"`
}

// Validate checks the request is well formed enough to enter the pipeline.
func (r MediaRequest) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url must be absolute")
	}
	switch r.Kind {
	case KindVideo, KindAnimatedImage:
	default:
		return fmt.Errorf("unknown media kind %q", r.Kind)
	}
	return nil
}

// ID derives the stable conversion identifier used for workspace naming,
// status lookups and outcome records.
func (r MediaRequest) ID() string {
	h := sha256.New()
	h.Write([]byte(r.URL))
	h.Write([]byte{0})
	h.Write([]byte(r.Kind))
	return hex.EncodeToString(h.Sum(nil))[:24]
}
