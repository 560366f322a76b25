package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the bookmark pipeline.
type ErrorKind string

const (
	// KindAuthExpired: the access token is past its expiry. Triggers a refresh.
	KindAuthExpired ErrorKind = "auth_expired"
	// KindAuthRefreshFailed: the refresh grant failed. The session is over.
	KindAuthRefreshFailed ErrorKind = "auth_refresh_failed"
	// KindUpstreamFetchFailed: network, non-2xx or malformed payload on a page.
	KindUpstreamFetchFailed ErrorKind = "upstream_fetch_failed"
	// KindPaginationRunaway: the cursor chain exceeded the page cap or looped.
	KindPaginationRunaway ErrorKind = "pagination_runaway"
	// KindNotAuthenticated: no usable session on the request.
	KindNotAuthenticated ErrorKind = "not_authenticated"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrAuthExpired         = &Error{Kind: KindAuthExpired}
	ErrAuthRefreshFailed   = &Error{Kind: KindAuthRefreshFailed}
	ErrUpstreamFetchFailed = &Error{Kind: KindUpstreamFetchFailed}
	ErrPaginationRunaway   = &Error{Kind: KindPaginationRunaway}
	ErrNotAuthenticated    = &Error{Kind: KindNotAuthenticated}
)

// Error is a classified pipeline error.
type Error struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "fetcher.FetchAll"
	Err  error
}

// NewError builds a classified error.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so wrapped errors compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
