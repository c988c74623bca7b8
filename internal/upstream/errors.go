package upstream

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is against these; *FetchError carries the detail.
var (
	ErrFetchFailure   = errors.New("upstream fetch failed")
	ErrInvalidPayload = errors.New("upstream returned an invalid payload")
)

// FetchError describes one failed document fetch.
type FetchError struct {
	Kind       error
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%v: %s: status %d", e.Kind, e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.URL, e.Err)
	default:
		return fmt.Sprintf("%v: %s", e.Kind, e.URL)
	}
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func fetchFailure(url string, status int, err error) *FetchError {
	return &FetchError{Kind: ErrFetchFailure, URL: url, StatusCode: status, Err: err}
}

func invalidPayload(url string, err error) *FetchError {
	return &FetchError{Kind: ErrInvalidPayload, URL: url, Err: err}
}
