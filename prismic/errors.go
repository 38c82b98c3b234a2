package prismic

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no document matches a lookup.
	ErrNotFound = errors.New("prismic: document not found")
	// ErrInvalidPreview is returned when the API rejects a preview token
	// or the previewed document cannot be resolved with it.
	ErrInvalidPreview = errors.New("prismic: invalid preview token")
)

// UpstreamError reports a transport failure or a non-200 answer from the
// content API. StatusCode is 0 for transport failures.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("prismic: %s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("prismic: %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
