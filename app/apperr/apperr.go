package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyRunning = errors.New("source already running")
	ErrSourceInactive = errors.New("source is inactive")
)

type FetchKind string

const (
	Timeout        FetchKind = "timeout"
	NetworkFailure FetchKind = "network_failure"
	ParseFailure   FetchKind = "parse_failure"
	Cancelled      FetchKind = "cancelled"
)

// FetchError is returned by fetchers and is the only error kind that counts
// against source health.
type FetchError struct {
	Kind FetchKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.Kind, e.URL)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewFetchError(kind FetchKind, url string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, Err: err}
}

type ValidationKind string

const (
	EmptyContent     ValidationKind = "empty_content"
	DuplicateContent ValidationKind = "duplicate_content"
)

type ValidationError struct {
	Kind ValidationKind
	URL  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rejected %s: %s", e.Kind, e.URL)
}

type ConfigKind string

const (
	InvalidKeywordGroup ConfigKind = "invalid_keyword_group"
	InvalidSource       ConfigKind = "invalid_source"
)

type ConfigError struct {
	Kind ConfigKind
	Name string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// FetchKindOf reports the fetch kind carried by err, if any.
func FetchKindOf(err error) (FetchKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

func IsValidation(err error, kind ValidationKind) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Kind == kind
}

func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
