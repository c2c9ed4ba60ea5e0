package discovery

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for discovery requests.
var (
	// ErrInvalidInput matches every *InputError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable matches every *UpstreamError.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Upstream sources reported in UpstreamError.
const (
	SourceContentStore     = "content_store"
	SourceSocialGraph      = "social_graph"
	SourceGeoIndex         = "geo_index"
	SourceProfileDirectory = "profile_directory"
)

// InputError reports a rejected request field.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrInvalidInput) succeed.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, format string, args ...any) error {
	return &InputError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// UpstreamError wraps a failure of a store the request depends on.
type UpstreamError struct {
	Source string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrUpstreamUnavailable) succeed.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// upstream wraps err as an UpstreamError. A canceled caller is returned
// unchanged since no store actually failed.
func upstream(source string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &UpstreamError{Source: source, Err: err}
}
