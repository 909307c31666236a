package fetcher

import (
	"fmt"
	"net/http"
)

// Kind classifies a fetch failure.
type Kind string

const (
	KindTimeout Kind = "timeout"
	KindHTTP    Kind = "http"
	KindPayload Kind = "payload"
)

// FetchError is the only error type Fetch returns.
type FetchError struct {
	Kind   Kind
	Status int // HTTP status for KindHTTP responses, 0 otherwise
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d %s", e.Kind, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
