package source

import (
	"errors"
	"fmt"
)

// Kind classifies a single fetch failure. The extractor's retry and fallback
// policy branches on it: transport kinds are retried against the same source,
// data kinds skip straight to the fallback source.
type Kind string

const (
	// KindUnreachable covers connection failures, DNS errors, 5xx responses,
	// and an open circuit breaker.
	KindUnreachable Kind = "unreachable"
	// KindTimeout covers request deadline or client timeout expiry.
	KindTimeout Kind = "timeout"
	// KindMalformedResponse covers undecodable, empty, or otherwise invalid
	// payloads. Retrying the same source will not help.
	KindMalformedResponse Kind = "malformed_response"
	// KindRateLimited covers HTTP 429. The source is healthy but refusing;
	// hammering it with retries would make things worse.
	KindRateLimited Kind = "rate_limited"
)

// Error is a typed single-attempt fetch failure from one named source.
type Error struct {
	Source string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from an error chain. ok is false when the
// error did not originate from a source fetch.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

// Retryable reports whether retrying the same source could plausibly succeed.
// Only transient transport failures qualify.
func Retryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	return kind == KindTimeout || kind == KindUnreachable
}
