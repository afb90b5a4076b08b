// Package poolerrors defines the error vocabulary shared by the
// orchestrator, the selection strategy, and the health tracker
// (spec.md §3 "Error classes", §7). It is a leaf package so every
// collaborator can produce or classify these errors without an import
// cycle back to the root dyno package.
package poolerrors

import (
	"errors"
	"fmt"

	"github.com/gorcz/dyno/host"
)

// ErrNoAvailableHosts means the selection strategy could not produce any
// connection. It is non-retriable (spec.md §7): it propagates immediately
// through every execute path.
var ErrNoAvailableHosts = errors.New("dyno: no available hosts")

// DynoError wraps a recoverable backend/transport error together with the
// host that produced it. executeWithFailover retries on this class
// (spec.md §3 "Error classes", §7 "Backend/Transport").
type DynoError struct {
	Host host.Host
	Err  error
}

func (e *DynoError) Error() string {
	return fmt.Sprintf("dyno: backend error on %s: %v", e.Host, e.Err)
}

func (e *DynoError) Unwrap() error { return e.Err }

// NewDynoError wraps err as a DynoError served by h.
func NewDynoError(h host.Host, err error) *DynoError {
	return &DynoError{Host: h, Err: err}
}

// FatalError wraps an unexpected/programming error. It is never retried
// (spec.md §3 "Error classes", §7 "Unexpected (programming)").
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("dyno: fatal error: %v", e.Err) }

func (e *FatalError) Unwrap() error { return e.Err }

// NewFatalError wraps err as a FatalError.
func NewFatalError(err error) *FatalError {
	return &FatalError{Err: err}
}

// IsDynoError reports whether err is (or wraps) a *DynoError and returns it.
func IsDynoError(err error) (*DynoError, bool) {
	var de *DynoError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
