package portdiff

import "fmt"

// InvalidRewrite is returned by Rewrite when the requested boundary map or
// replacement graph fails validation. The DAG and the view passed in are
// left unmodified.
type InvalidRewrite struct {
	Reason        string
	BoundaryIndex int
}

func (e InvalidRewrite) Error() string {
	if e.BoundaryIndex < 0 {
		return fmt.Sprintf("invalid rewrite: %s", e.Reason)
	}
	return fmt.Sprintf("invalid rewrite at boundary index %d: %s", e.BoundaryIndex, e.Reason)
}

// IncompatibleDiffs is returned by NewView (and so by FromSinksWhile) when
// the requested set of diffs is not a valid antichain, or when two of the
// diffs' replacement regions overlap in a shared ancestor. AreCompatible
// reports the same condition as a bool.
type IncompatibleDiffs struct {
	Reason string
	DiffA  DiffID
	DiffB  DiffID
}

func (e IncompatibleDiffs) Error() string {
	return fmt.Sprintf("diffs %s and %s are incompatible: %s", e.DiffA, e.DiffB, e.Reason)
}

// NotSquashable is returned by TrySquash when a sub-DAG's boundary with the
// outside world is not well-defined.
type NotSquashable struct {
	Reason string
}

func (e NotSquashable) Error() string {
	return fmt.Sprintf("sub-DAG cannot be squashed: %s", e.Reason)
}

// GraphBackendError wraps an error returned unchanged from the graph
// capability: capacity exceeded, unknown node, and so on.
type GraphBackendError struct {
	Err error
}

func (e GraphBackendError) Error() string {
	return fmt.Sprintf("graph backend error: %v", e.Err)
}

// Unwrap allows errors.As/errors.Is to see through to the backend error.
func (e GraphBackendError) Unwrap() error {
	return e.Err
}
