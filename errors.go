package dyno

import "github.com/gorcz/dyno/poolerrors"

// ErrNoAvailableHosts, DynoError and FatalError are re-exported from
// poolerrors so callers only need to import the root package, while
// selection/health/subpool can produce and classify them without an
// import cycle back here (spec.md §3 "Error classes", §7).
var ErrNoAvailableHosts = poolerrors.ErrNoAvailableHosts

type DynoError = poolerrors.DynoError

type FatalError = poolerrors.FatalError

// IsDynoError reports whether err is (or wraps) a *DynoError and returns it.
func IsDynoError(err error) (*DynoError, bool) {
	return poolerrors.IsDynoError(err)
}
