package portdiff

import (
	"fmt"

	"github.com/portdiff/portdiff/graph"
)

// BoundaryKind discriminates the two variants of BoundaryPort.
type BoundaryKind int

const (
	// BoundarySite marks a boundary port backed by a real site in the
	// diff's replacement graph.
	BoundarySite BoundaryKind = iota
	// BoundaryWire marks a purely abstract boundary that carries no node:
	// it exists to let a rewrite remove a node-set entirely while keeping
	// the edge that used to pass through it alive.
	BoundaryWire
)

// String implements fmt.Stringer.
func (k BoundaryKind) String() string {
	switch k {
	case BoundarySite:
		return "site"
	case BoundaryWire:
		return "wire"
	default:
		return fmt.Sprintf("boundaryKind(%d)", int(k))
	}
}

// WireID names one of the wire sentinels in a diff's boundary. Two
// boundary entries with the same WireID within one diff are the two ends
// of a single pass-through edge.
type WireID string

// BoundaryPort is a tagged variant: either a Site (a port on a node of the
// diff's replacement graph) or a Wire sentinel.
type BoundaryPort struct {
	Kind BoundaryKind `json:"kind" yaml:"kind"`
	Site graph.Site   `json:"site,omitempty" yaml:"site,omitempty"`
	Wire WireID       `json:"wire,omitempty" yaml:"wire,omitempty"`
}

// SitePort builds a BoundaryPort backed by a concrete site.
func SitePort(s graph.Site) BoundaryPort {
	return BoundaryPort{Kind: BoundarySite, Site: s}
}

// WirePort builds a BoundaryPort that is a wire sentinel.
func WirePort(id WireID) BoundaryPort {
	return BoundaryPort{Kind: BoundaryWire, Wire: id}
}

// IsWire reports whether this boundary port is a wire sentinel.
func (b BoundaryPort) IsWire() bool {
	return b.Kind == BoundaryWire
}

// Owned is the canonical way to refer to anything across history: a value
// together with the diff it lives in. Equality on Owned uses diff identity
// plus the value.
type Owned[X comparable] struct {
	Value X     `json:"value" yaml:"value"`
	Diff  DiffID `json:"diff" yaml:"diff"`
}

// NewOwned pairs a value with the diff that owns it.
func NewOwned[X comparable](value X, diff DiffID) Owned[X] {
	return Owned[X]{Value: value, Diff: diff}
}

// Equal reports whether two owned values refer to the same entity in the
// same diff.
func (o Owned[X]) Equal(other Owned[X]) bool {
	return o.Diff == other.Diff && o.Value == other.Value
}

// OwnedSite is the canonical cross-diff reference to a site.
type OwnedSite = Owned[graph.Site]

// OwnedNode is the canonical cross-diff reference to a node.
type OwnedNode = Owned[graph.NodeID]

// OwnedEdge is the canonical cross-diff reference to an edge.
type OwnedEdge = Owned[graph.EdgeID]

// ParentEdgeRef names the edge in a parent diff that a boundary entry
// severs and reroutes through the replacement graph.
type ParentEdgeRef = OwnedEdge

// BoundaryEntry is one entry of a diff's boundary: a port at the diff's
// own boundary, paired with the edge in the parent diff it replaces.
type BoundaryEntry struct {
	Port       BoundaryPort  `json:"port" yaml:"port"`
	ParentEdge ParentEdgeRef `json:"parentEdge" yaml:"parentEdge"`
}
