package wav

import (
	"errors"
	"fmt"
	"strings"
)

// InputError indicates bad caller input. Not retryable.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return "input: " + e.Msg
}

// UpstreamError indicates a transient external-service failure. Retryable
// with backoff up to a bound; fatal once the bound is exhausted.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// SchemaError indicates malformed model output. Retrying the same prompt
// verbatim is assumed futile; callers may re-invoke once with an adjusted
// prompt, then treat the error as fatal.
type SchemaError struct {
	Service string
	Raw     string
	Err     error
}

func (e *SchemaError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return fmt.Sprintf("schema %s: %v (response: %s)", e.Service, e.Err, raw)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// ProviderAttempt records why one text provider failed during generation.
type ProviderAttempt struct {
	Provider string
	Err      error
}

// GenerationError indicates every text provider in the fallback chain was
// exhausted. Fatal.
type GenerationError struct {
	Attempts []ProviderAttempt
}

func (e *GenerationError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Provider, a.Err)
	}
	return "generation failed, all providers exhausted: " + strings.Join(parts, "; ")
}

// ConsistencyError indicates an internal data invariant was violated. Fatal;
// points at an upstream bug, not a transient condition.
type ConsistencyError struct {
	Msg string
}

func (e *ConsistencyError) Error() string {
	return "consistency: " + e.Msg
}

// ErrorKind names an error taxonomy bucket for journaling and logging.
func ErrorKind(err error) string {
	var (
		inputErr       *InputError
		upstreamErr    *UpstreamError
		schemaErr      *SchemaError
		generationErr  *GenerationError
		consistencyErr *ConsistencyError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &inputErr):
		return "input"
	case errors.As(err, &upstreamErr):
		return "upstream"
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.As(err, &generationErr):
		return "generation"
	case errors.As(err, &consistencyErr):
		return "consistency"
	default:
		return "unknown"
	}
}
