package viewer

import (
	"errors"
	"fmt"
)

var (
	ErrClosed     = errors.New("viewer: closed")
	ErrSuperseded = errors.New("viewer: load superseded by a newer request")
	ErrNoPages    = errors.New("viewer: document has no pages")
)

// LoadError reports a document that could not be fetched or decoded. The
// container shows it as an error banner and the load is not retried.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("viewer: load %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PageDecodeError reports a single page that failed to fetch or paint. It is
// logged and the previously shown frame stays visible.
type PageDecodeError struct {
	Page int
	Err  error
}

func (e *PageDecodeError) Error() string {
	return fmt.Sprintf("viewer: page %d: %v", e.Page, e.Err)
}

func (e *PageDecodeError) Unwrap() error { return e.Err }
