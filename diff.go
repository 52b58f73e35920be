package portdiff

import (
	"github.com/google/uuid"

	"github.com/portdiff/portdiff/graph"
)

// DiffID is the process-unique identity assigned to a Diff at construction
// time. Identities are used as map keys and for equality, and they survive
// a serialization round-trip unchanged.
type DiffID uuid.UUID

// String implements fmt.Stringer.
func (d DiffID) String() string {
	return uuid.UUID(d).String()
}

// IsZero reports whether this is the zero DiffID (no diff).
func (d DiffID) IsZero() bool {
	return d == DiffID{}
}

// MarshalText lets DiffID serialize as a plain UUID string, including as a
// JSON object key.
func (d DiffID) MarshalText() ([]byte, error) {
	return uuid.UUID(d).MarshalText()
}

// UnmarshalText parses a DiffID from a UUID string.
func (d *DiffID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*d = DiffID(u)
	return nil
}

// ParentRef names one parent of a Diff together with the subgraph
// descriptor identifying the region of that parent the diff replaces.
type ParentRef struct {
	diff   *Diff
	region *graph.Region
}

// Diff parent accessors.
func (p ParentRef) Diff() *Diff           { return p.diff }
func (p ParentRef) Region() *graph.Region { return p.region }

// Diff is an immutable record: a replacement graph, an ordered boundary, a
// list of parents with their replacement regions, and a user-supplied
// value. Diffs are never mutated after construction; all fields are read
// through accessor methods to keep that invariant statically enforced
// rather than merely documented.
type Diff struct {
	identity    DiffID
	replacement *graph.Graph
	boundary    []BoundaryEntry
	parents     []ParentRef
	value       int
}

// Identity returns this diff's process-unique identifier.
func (d *Diff) Identity() DiffID {
	return d.identity
}

// Graph returns the diff's replacement fragment.
func (d *Diff) Graph() *graph.Graph {
	return d.replacement
}

// Boundary returns the diff's ordered boundary entries. The slice is
// shared and must not be mutated by callers.
func (d *Diff) Boundary() []BoundaryEntry {
	return d.boundary
}

// NumBoundary returns the number of boundary entries. Boundary indices are
// dense [0..n) and stable for the lifetime of the diff.
func (d *Diff) NumBoundary() int {
	return len(d.boundary)
}

// BoundaryAt returns the boundary entry at the given dense index.
func (d *Diff) BoundaryAt(i int) (BoundaryEntry, bool) {
	if i < 0 || i >= len(d.boundary) {
		return BoundaryEntry{}, false
	}
	return d.boundary[i], true
}

// Parents returns this diff's parent references. The root diff has none.
func (d *Diff) Parents() []ParentRef {
	return d.parents
}

// IsRoot reports whether this diff has no parents.
func (d *Diff) IsRoot() bool {
	return len(d.parents) == 0
}

// Value returns the user-supplied integer tag carried by this diff.
func (d *Diff) Value() int {
	return d.value
}

// Nodes enumerates the nodes of this diff's replacement graph. Useful to
// callers building a boundary map against a freshly constructed
// replacement graph.
func (d *Diff) Nodes() []graph.NodeID {
	return d.replacement.Nodes()
}

// Degree returns the number of internal edges of the replacement graph
// incident to node n.
func (d *Diff) Degree(n graph.NodeID) (int, error) {
	degree := 0
	for _, e := range d.replacement.Edges() {
		a, b, err := d.replacement.Endpoints(e)
		if err != nil {
			return 0, GraphBackendError{Err: err}
		}
		if a.Node == n {
			degree++
		}
		if b.Node == n {
			degree++
		}
	}
	return degree, nil
}

// FindEdge looks up the internal edge between two sites of the replacement
// graph, if any.
func (d *Diff) FindEdge(a, b graph.Site) (graph.EdgeID, bool) {
	for _, e := range d.replacement.Edges() {
		ea, eb, err := d.replacement.Endpoints(e)
		if err != nil {
			continue
		}
		if (ea == a && eb == b) || (ea == b && eb == a) {
			return e, true
		}
	}
	return graph.EdgeID{}, false
}
