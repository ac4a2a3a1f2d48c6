package job

import (
	"errors"
	"fmt"
)

// Kind tags a conversion failure. Every error leaving the pipeline carries
// exactly one of these; nothing escapes untagged.
type Kind string

const (
	KindDownload       Kind = "download"        // network failure, timeout, or size ceiling hit before encoding
	KindValidation     Kind = "validation"      // corrupt or unreadable input detected by the prober
	KindUnsupported    Kind = "unsupported"     // conversion disabled, tools missing, or unrecognized input kind
	KindEncoding       Kind = "encoding"        // all strategy tiers exhausted (non-zero exits or timeouts)
	KindSizeConstraint Kind = "size-constraint" // output cannot fit the budget even after the re-encode pass
)

// Error is the tagged failure value returned by the pipeline.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func failf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Classify extracts the failure kind from an error chain. Errors that did
// not originate in the pipeline count as encoding failures so the taxonomy
// stays closed.
func Classify(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindEncoding
}
