package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a scraper error
type Kind string

const (
	// KindNetwork represents transport failures (unreachable, blocked, bad status)
	KindNetwork Kind = "network"
	// KindRateLimit represents HTTP 429 responses that survived all retries
	KindRateLimit Kind = "rate_limit"
	// KindParse represents HTML/JSON parsing failures
	KindParse Kind = "parse"
	// KindBrowser represents browser-automation failures
	KindBrowser Kind = "browser"
	// KindCache represents response-cache failures
	KindCache Kind = "cache"
	// KindConfig represents configuration errors
	KindConfig Kind = "config"
	// KindMerge represents merge failures
	KindMerge Kind = "merge"
)

// ScrapeError is an error tagged with its kind and the source it belongs to.
// A failure in one source never affects another; callers decide whether to
// abort the source (network) or skip the record (parse).
type ScrapeError struct {
	Kind   Kind
	Source string
	Msg    string
	Err    error
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	switch {
	case e.Source != "" && e.Err != nil:
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, e.Source, e.Msg, e.Err)
	case e.Source != "":
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Source, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Msg, e.Err)
	default:
		return fmt.Sprintf("[%s] %s", e.Kind, e.Msg)
	}
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// New creates a new ScrapeError
func New(kind Kind, source, msg string, err error) *ScrapeError {
	return &ScrapeError{Kind: kind, Source: source, Msg: msg, Err: err}
}

// NewNetwork creates a network error
func NewNetwork(source, msg string, err error) *ScrapeError {
	return New(KindNetwork, source, msg, err)
}

// NewRateLimit creates a rate-limit error
func NewRateLimit(source, msg string, err error) *ScrapeError {
	return New(KindRateLimit, source, msg, err)
}

// NewParse creates a parsing error
func NewParse(source, msg string, err error) *ScrapeError {
	return New(KindParse, source, msg, err)
}

// NewBrowser creates a browser-automation error
func NewBrowser(source, msg string, err error) *ScrapeError {
	return New(KindBrowser, source, msg, err)
}

// NewCache creates a cache error
func NewCache(msg string, err error) *ScrapeError {
	return New(KindCache, "", msg, err)
}

// NewConfig creates a configuration error
func NewConfig(msg string) *ScrapeError {
	return New(KindConfig, "", msg, nil)
}

// NewMerge creates a merge error
func NewMerge(msg string, err error) *ScrapeError {
	return New(KindMerge, "", msg, err)
}

// IsKind reports whether err is (or wraps) a ScrapeError of the given kind
func IsKind(err error, kind Kind) bool {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}
