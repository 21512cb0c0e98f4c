package swrcache

import (
	"errors"
	"fmt"
)

// ErrNilFetch is returned by Revalidate when no fetch function was given.
var ErrNilFetch = errors.New("swrcache: nil fetch function")

// RefreshError describes a failed background stale-while-revalidate refresh.
// It is never returned to Revalidate callers (the stale value already served
// remains valid); it reaches the configured Logger and Hooks only.
type RefreshError struct {
	Key string
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh %q failed: %v", e.Key, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }
