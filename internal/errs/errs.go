// Package errs defines the typed error-kind taxonomy observable at every
// component boundary in the pipeline, replacing the source's
// exception-for-control-flow pattern (string-sniffing "quota"/"429" out of
// a caught exception) with an explicit discriminant.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is one of the error classes components must distinguish so callers
// can make a retry/fallback decision without inspecting message text.
type Kind string

const (
	Timeout                 Kind = "TIMEOUT"
	RateLimit               Kind = "RATE_LIMIT"
	Empty                   Kind = "EMPTY"
	Malformed               Kind = "MALFORMED"
	InvalidLocation         Kind = "INVALID_LOCATION"
	HistoricalDateRequired  Kind = "HISTORICAL_DATE_REQUIRED"
	ProviderError           Kind = "PROVIDER_ERROR"
	NoEvidence              Kind = "NO_EVIDENCE"
)

// Classified wraps an underlying error with a Kind and the provider that
// produced it, so fallback chains can branch on Kind alone.
type Classified struct {
	Kind     Kind
	Provider string
	Err      error
}

func (c *Classified) Error() string {
	if c.Provider != "" {
		return fmt.Sprintf("%s: %s: %v", c.Provider, c.Kind, c.Err)
	}
	return fmt.Sprintf("%s: %v", c.Kind, c.Err)
}

func (c *Classified) Unwrap() error { return c.Err }

// New builds a Classified error.
func New(kind Kind, provider string, err error) *Classified {
	return &Classified{Kind: kind, Provider: provider, Err: err}
}

// Newf builds a Classified error from a formatted message.
func Newf(kind Kind, provider, format string, args ...any) *Classified {
	return &Classified{Kind: kind, Provider: provider, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Classified; ok is false otherwise.
func KindOf(err error) (kind Kind, ok bool) {
	var c *Classified
	if errors.As(err, &c) {
		return c.Kind, true
	}
	return "", false
}

// Is reports whether err is classified with the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// RateLimitSignal matches the substrings the source sniffs out of provider
// error messages to detect throttling when the provider gives no structured
// signal; a literal "429" in the message counts as a match too.
func RateLimitSignal(msg string) bool {
	lower := strings.ToLower(msg)
	for _, needle := range []string{"quota", "resource_exhausted", "rate_limit", "429"} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}
