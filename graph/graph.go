// Package graph implements the abstract port-graph capability: nodes carry
// a growable number of incoming and outgoing ports, edges link exactly two
// sites, and every site carries at most one edge.
//
// This is the concrete backend the rest of portdiff is built against. A
// different backend could replace it as long as it satisfies the same
// Region/Site/capacity contract.
package graph

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// NodeID identifies a node within a single Graph. IDs are never reused.
type NodeID uuid.UUID

// String implements fmt.Stringer.
func (n NodeID) String() string {
	return uuid.UUID(n).String()
}

// EdgeID identifies an edge within a single Graph. IDs are never reused.
type EdgeID uuid.UUID

// String implements fmt.Stringer.
func (e EdgeID) String() string {
	return uuid.UUID(e).String()
}

// Direction distinguishes the two port namespaces a node has.
type Direction int

const (
	// Incoming marks a port that edges terminate at.
	Incoming Direction = iota
	// Outgoing marks a port that edges originate from.
	Outgoing
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Incoming:
		return "incoming"
	case Outgoing:
		return "outgoing"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Port names one of a node's per-direction, zero-indexed ports.
type Port struct {
	Direction Direction `json:"direction" yaml:"direction"`
	Index     int       `json:"index" yaml:"index"`
}

// String implements fmt.Stringer.
func (p Port) String() string {
	return fmt.Sprintf("%s[%d]", p.Direction, p.Index)
}

// Site is a port on a specific node: the unit an edge attaches to.
type Site struct {
	Node NodeID `json:"node" yaml:"node"`
	Port Port   `json:"port" yaml:"port"`
}

// String implements fmt.Stringer.
func (s Site) String() string {
	return fmt.Sprintf("%s@%s", s.Port, s.Node)
}

// Region names a subset of a graph: a set of nodes and a set of edges,
// the shape a diff's replacement-region descriptors need.
type Region struct {
	Nodes map[NodeID]struct{}
	Edges map[EdgeID]struct{}
}

// NewRegion creates an empty region.
func NewRegion() *Region {
	return &Region{Nodes: map[NodeID]struct{}{}, Edges: map[EdgeID]struct{}{}}
}

// Contains reports whether the region contains the given node.
func (r *Region) Contains(n NodeID) bool {
	_, ok := r.Nodes[n]
	return ok
}

// ContainsEdge reports whether the region contains the given edge.
func (r *Region) ContainsEdge(e EdgeID) bool {
	_, ok := r.Edges[e]
	return ok
}

// Intersects reports whether two regions share any node or edge.
func (r *Region) Intersects(other *Region) bool {
	for n := range r.Nodes {
		if other.Contains(n) {
			return true
		}
	}
	for e := range r.Edges {
		if other.ContainsEdge(e) {
			return true
		}
	}
	return false
}

// ContainsAll reports whether other is a subset of r: every node and edge of
// other is also in r.
func (r *Region) ContainsAll(other *Region) bool {
	for n := range other.Nodes {
		if !r.Contains(n) {
			return false
		}
	}
	for e := range other.Edges {
		if !r.ContainsEdge(e) {
			return false
		}
	}
	return true
}

type nodeData struct {
	id       NodeID
	incoming []EdgeID // nil entry (uuid.Nil) = unoccupied
	outgoing []EdgeID
}

func (n *nodeData) ports(dir Direction) []EdgeID {
	if dir == Incoming {
		return n.incoming
	}
	return n.outgoing
}

func (n *nodeData) setPort(dir Direction, index int, edge EdgeID) {
	if dir == Incoming {
		n.incoming[index] = edge
	} else {
		n.outgoing[index] = edge
	}
}

type edgeData struct {
	id   EdgeID
	a, b Site
}

// Graph is a concrete, mutable port graph. All operations are safe for
// concurrent use; mutating operations take an exclusive lock, read-only
// operations take a shared lock, matching the locking discipline
// internal/dag uses for the diff DAG.
type Graph struct {
	mu    sync.RWMutex
	nodes map[NodeID]*nodeData
	edges map[EdgeID]*edgeData
}

// New creates an empty port graph.
func New() *Graph {
	return &Graph{
		nodes: map[NodeID]*nodeData{},
		edges: map[EdgeID]*edgeData{},
	}
}

// AddNode creates a new node with no ports and returns its ID.
func (g *Graph) AddNode() NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := NodeID(uuid.New())
	g.nodes[id] = &nodeData{id: id}
	return id
}

// RemoveNode deletes a node. It is the caller's responsibility to unlink any
// edges incident to it first; RemoveNode refuses to orphan an edge.
func (g *Graph) RemoveNode(n NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	nd, ok := g.nodes[n]
	if !ok {
		return ErrUnknownNode{NodeID: n}
	}
	for _, e := range nd.incoming {
		if e != (EdgeID{}) {
			return fmt.Errorf("cannot remove node %s: port still linked by edge %s", n, e)
		}
	}
	for _, e := range nd.outgoing {
		if e != (EdgeID{}) {
			return fmt.Errorf("cannot remove node %s: port still linked by edge %s", n, e)
		}
	}
	delete(g.nodes, n)
	return nil
}

// AddPort grows a node's port capacity in the given direction by one and
// returns the newly allocated port.
func (g *Graph) AddPort(n NodeID, dir Direction) (Port, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	nd, ok := g.nodes[n]
	if !ok {
		return Port{}, ErrUnknownNode{NodeID: n}
	}
	var index int
	if dir == Incoming {
		index = len(nd.incoming)
		nd.incoming = append(nd.incoming, EdgeID{})
	} else {
		index = len(nd.outgoing)
		nd.outgoing = append(nd.outgoing, EdgeID{})
	}
	return Port{Direction: dir, Index: index}, nil
}

// PortCapacity returns how many ports a node has in a given direction.
func (g *Graph) PortCapacity(n NodeID, dir Direction) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	nd, ok := g.nodes[n]
	if !ok {
		return 0, ErrUnknownNode{NodeID: n}
	}
	return len(nd.ports(dir)), nil
}

func (g *Graph) siteEdge(s Site) (*nodeData, EdgeID, error) {
	nd, ok := g.nodes[s.Node]
	if !ok {
		return nil, EdgeID{}, ErrUnknownNode{NodeID: s.Node}
	}
	ports := nd.ports(s.Port.Direction)
	if s.Port.Index < 0 || s.Port.Index >= len(ports) {
		return nil, EdgeID{}, ErrCapacityExceeded{Site: s, Capacity: len(ports)}
	}
	return nd, ports[s.Port.Index], nil
}

// EdgeAt returns the edge occupying a site, if any.
func (g *Graph) EdgeAt(s Site) (EdgeID, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, e, err := g.siteEdge(s)
	if err != nil {
		return EdgeID{}, false, err
	}
	return e, e != (EdgeID{}), nil
}

// LinkSites establishes an edge between two sites, each of which must
// currently be unoccupied. It does not return the edge: callers who need it
// look it up with EdgeAt.
func (g *Graph) LinkSites(a, b Site) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ndA, edgeA, err := g.siteEdge(a)
	if err != nil {
		return err
	}
	if edgeA != (EdgeID{}) {
		return ErrSiteOccupied{Site: a, Edge: edgeA}
	}
	ndB, edgeB, err := g.siteEdge(b)
	if err != nil {
		return err
	}
	if edgeB != (EdgeID{}) {
		return ErrSiteOccupied{Site: b, Edge: edgeB}
	}

	id := EdgeID(uuid.New())
	g.edges[id] = &edgeData{id: id, a: a, b: b}
	ndA.setPort(a.Port.Direction, a.Port.Index, id)
	ndB.setPort(b.Port.Direction, b.Port.Index, id)
	return nil
}

// UnlinkEdge removes an edge, freeing both of its sites.
func (g *Graph) UnlinkEdge(e EdgeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ed, ok := g.edges[e]
	if !ok {
		return ErrUnknownEdge{EdgeID: e}
	}
	if ndA, ok := g.nodes[ed.a.Node]; ok {
		ndA.setPort(ed.a.Port.Direction, ed.a.Port.Index, EdgeID{})
	}
	if ndB, ok := g.nodes[ed.b.Node]; ok {
		ndB.setPort(ed.b.Port.Direction, ed.b.Port.Index, EdgeID{})
	}
	delete(g.edges, e)
	return nil
}

// Endpoints returns the two sites an edge connects.
func (g *Graph) Endpoints(e EdgeID) (Site, Site, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ed, ok := g.edges[e]
	if !ok {
		return Site{}, Site{}, ErrUnknownEdge{EdgeID: e}
	}
	return ed.a, ed.b, nil
}

// Nodes returns all node IDs, in no particular order.
func (g *Graph) Nodes() []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	result := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		result = append(result, id)
	}
	return result
}

// Edges returns all edge IDs, in no particular order.
func (g *Graph) Edges() []EdgeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	result := make([]EdgeID, 0, len(g.edges))
	for id := range g.edges {
		result = append(result, id)
	}
	return result
}

// Ports returns all allocated ports for a node in a given direction.
func (g *Graph) Ports(n NodeID, dir Direction) ([]Port, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	nd, ok := g.nodes[n]
	if !ok {
		return nil, ErrUnknownNode{NodeID: n}
	}
	ports := nd.ports(dir)
	result := make([]Port, len(ports))
	for i := range ports {
		result[i] = Port{Direction: dir, Index: i}
	}
	return result, nil
}

// HasNode reports whether a node exists in the graph.
func (g *Graph) HasNode(n NodeID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[n]
	return ok
}

// CopyNodeShape creates a new node in g with the same incoming/outgoing port
// capacity as src has for node n, without copying any edges. It returns the
// new node's ID. This is the primitive the extractor uses to materialize
// live nodes into the output graph.
func (g *Graph) CopyNodeShape(src *Graph, n NodeID) (NodeID, error) {
	inCap, err := src.PortCapacity(n, Incoming)
	if err != nil {
		return NodeID{}, err
	}
	outCap, err := src.PortCapacity(n, Outgoing)
	if err != nil {
		return NodeID{}, err
	}
	newID := g.AddNode()
	for i := 0; i < inCap; i++ {
		if _, err := g.AddPort(newID, Incoming); err != nil {
			return NodeID{}, err
		}
	}
	for i := 0; i < outCap; i++ {
		if _, err := g.AddPort(newID, Outgoing); err != nil {
			return NodeID{}, err
		}
	}
	return newID, nil
}

// RegionOf builds a Region from explicit node and edge sets, validating
// that every edge in the set has both endpoints within the node set: a
// replacement region is always an induced subgraph.
func (g *Graph) RegionOf(nodes []NodeID, edges []EdgeID) (*Region, error) {
	r := NewRegion()
	for _, n := range nodes {
		if !g.HasNode(n) {
			return nil, ErrUnknownNode{NodeID: n}
		}
		r.Nodes[n] = struct{}{}
	}
	for _, e := range edges {
		a, b, err := g.Endpoints(e)
		if err != nil {
			return nil, err
		}
		if !r.Contains(a.Node) || !r.Contains(b.Node) {
			return nil, fmt.Errorf("edge %s is not induced by the given node set", e)
		}
		r.Edges[e] = struct{}{}
	}
	return r, nil
}
