package portdiff

import (
	"fmt"

	log "go.arcalot.io/log/v2"

	"github.com/portdiff/portdiff/graph"
)

// GraphView is a finite antichain of diffs: the set that defines the
// "current" graph. Construction fails with IncompatibleDiffs unless the
// set is compatible (see AreCompatible).
type GraphView struct {
	store   *Store
	logger  log.Logger
	members map[DiffID]*Diff
	active  map[DiffID]*Diff // union of AncestorsOf(m) for every member m
	liveSet map[DiffID]map[graph.NodeID]struct{}
}

// NewView builds a view over an explicit set of diffs.
func NewView(store *Store, diffs []*Diff) (*GraphView, error) {
	if ok, a, b := isAntichain(diffs); !ok {
		return nil, IncompatibleDiffs{Reason: "one diff is an ancestor of another", DiffA: a, DiffB: b}
	}
	if !AreCompatible(diffs) {
		var a, b DiffID
		for i := 0; i < len(diffs) && a.IsZero(); i++ {
			for j := i + 1; j < len(diffs); j++ {
				if !AreCompatible([]*Diff{diffs[i], diffs[j]}) {
					a, b = diffs[i].identity, diffs[j].identity
					break
				}
			}
		}
		return nil, IncompatibleDiffs{Reason: "replacement regions overlap in a shared ancestor", DiffA: a, DiffB: b}
	}

	v := &GraphView{
		store:   store,
		logger:  store.logger,
		members: make(map[DiffID]*Diff, len(diffs)),
		active:  map[DiffID]*Diff{},
	}
	for _, d := range diffs {
		v.members[d.identity] = d
		for id, a := range AncestorsOf(d) {
			v.active[id] = a
		}
	}
	v.logger.Debugf("built view over %d member(s), %d diff(s) reachable", len(v.members), len(v.active))
	return v, nil
}

// FromSinksWhile walks upward from the store's current sinks, keeping a
// diff selected only while predicate holds for it, and otherwise
// substituting its parents (repeating the walk on each parent in turn).
// A root is always selected, whether or not predicate holds for it.
// It is used to build a maximal view under a constraint, e.g. "every
// selected diff has value <= N".
func FromSinksWhile(store *Store, predicate func(*Diff) bool) (*GraphView, error) {
	var selected []*Diff
	seen := map[DiffID]struct{}{}

	var walk func(*Diff)
	walk = func(d *Diff) {
		if _, ok := seen[d.identity]; ok {
			return
		}
		seen[d.identity] = struct{}{}
		if predicate(d) || d.IsRoot() {
			selected = append(selected, d)
			return
		}
		for _, p := range d.parents {
			walk(p.diff)
		}
	}
	for _, sink := range store.Sinks() {
		walk(sink)
	}
	return NewView(store, selected)
}

// Members returns the view's selected diffs.
func (v *GraphView) Members() []*Diff {
	result := make([]*Diff, 0, len(v.members))
	for _, d := range v.members {
		result = append(result, d)
	}
	return result
}

func (v *GraphView) isMember(d *Diff) bool {
	_, ok := v.members[d.identity]
	return ok
}

func (v *GraphView) isActive(d *Diff) bool {
	_, ok := v.active[d.identity]
	return ok
}

// reachableDiffs returns every diff the view's materialized graph can
// touch: the members themselves and all of their ancestors.
func (v *GraphView) reachableDiffs() []*Diff {
	result := make([]*Diff, 0, len(v.active))
	for _, d := range v.active {
		result = append(result, d)
	}
	return result
}

// LiveSet returns every (diff, node) pair contributing to the view's
// materialized graph: each member's own nodes, plus, walking up each
// member's ancestor chain, every ancestor node that no diff active in this
// view has replaced. A node of an ancestor diff is excluded as soon as
// some active child's replacement region covers it; everything else
// belonging to a diff reachable from a member stays live.
func (v *GraphView) LiveSet() (map[DiffID]map[graph.NodeID]struct{}, error) {
	if v.liveSet != nil {
		return v.liveSet, nil
	}
	result := map[DiffID]map[graph.NodeID]struct{}{}
	visited := map[DiffID]struct{}{}

	var visit func(d *Diff) error
	visit = func(d *Diff) error {
		if _, ok := visited[d.identity]; ok {
			return nil
		}
		visited[d.identity] = struct{}{}

		consumed := graph.NewRegion()
		children, err := v.store.Children(d)
		if err != nil {
			return err
		}
		for _, c := range children {
			if !v.isActive(c) {
				continue
			}
			r := regionIn(c, d.identity)
			if r == nil {
				continue
			}
			for n := range r.Nodes {
				consumed.Nodes[n] = struct{}{}
			}
		}
		live := map[graph.NodeID]struct{}{}
		for _, n := range d.Nodes() {
			if !consumed.Contains(n) {
				live[n] = struct{}{}
			}
		}
		result[d.identity] = live

		for _, p := range d.parents {
			if err := visit(p.diff); err != nil {
				return err
			}
		}
		return nil
	}
	for _, m := range v.Members() {
		if err := visit(m); err != nil {
			return nil, err
		}
	}
	v.liveSet = result
	return result, nil
}

// LiveNodes returns the live nodes belonging to a single diff reachable
// from this view (a member or one of its ancestors).
func (v *GraphView) LiveNodes(d *Diff) ([]graph.NodeID, error) {
	live, err := v.LiveSet()
	if err != nil {
		return nil, err
	}
	nodes, ok := live[d.identity]
	if !ok {
		return nil, fmt.Errorf("diff %s is not reachable from this view", d.identity)
	}
	result := make([]graph.NodeID, 0, len(nodes))
	for n := range nodes {
		result = append(result, n)
	}
	return result, nil
}

// isLiveSite reports whether the given owned site's node is currently
// live (i.e. not superseded by an active descendant).
func (v *GraphView) isLiveSite(o OwnedSite) (bool, error) {
	live, err := v.LiveSet()
	if err != nil {
		return false, err
	}
	nodes, ok := live[o.Diff]
	if !ok {
		return false, nil
	}
	_, ok = nodes[o.Value.Node]
	return ok, nil
}

func regionIn(d *Diff, parent DiffID) *graph.Region {
	for _, p := range d.parents {
		if p.diff.identity == parent {
			return p.region
		}
	}
	return nil
}

// ResolveBoundary walks outward from a member's boundary entry to the live
// site (in some other member, or an unreplaced ancestor) on the other side
// of that boundary. It never returns a dead node for a well-formed view
// that extends all the way to the diffs it claims to cover.
func (v *GraphView) ResolveBoundary(d *Diff, index int) (OwnedSite, error) {
	return v.resolveEntry(d, index, map[DiffID]struct{}{})
}

func (v *GraphView) resolveEntry(d *Diff, index int, visiting map[DiffID]struct{}) (OwnedSite, error) {
	if _, ok := visiting[d.identity]; ok {
		return OwnedSite{}, fmt.Errorf("boundary resolution cycle detected at diff %s", d.identity)
	}
	visiting[d.identity] = struct{}{}

	entry, ok := d.BoundaryAt(index)
	if !ok {
		return OwnedSite{}, fmt.Errorf("diff %s has no boundary entry %d", d.identity, index)
	}
	v.logger.Debugf("resolving boundary entry %d of diff %s", index, d.identity)
	pe := entry.ParentEdge
	parent, err := v.store.Get(pe.Diff)
	if err != nil {
		return OwnedSite{}, InvalidRewrite{Reason: fmt.Sprintf("boundary parent edge owner %s not found", pe.Diff), BoundaryIndex: index}
	}
	a, b, err := parent.Graph().Endpoints(pe.Value)
	if err != nil {
		return OwnedSite{}, GraphBackendError{Err: err}
	}
	region := regionIn(d, parent.identity)
	far := a
	switch {
	case region != nil && region.Contains(a.Node):
		far = b
	case entry.Port.IsWire() && (region == nil || len(region.Nodes) == 0) && sameEdgeOccurrence(d, index) == 1:
		// A wire pair referencing the identical parent edge on both sides
		// severs an edge with an empty region in between: nothing
		// distinguishes its two endpoints except declaration order, so the
		// first occurrence claims a and the second claims b.
		far = b
	}

	children, err := v.store.Children(parent)
	if err != nil {
		return OwnedSite{}, err
	}
	for _, c := range children {
		if c.identity == d.identity || !v.isActive(c) {
			continue
		}
		for j, cb := range c.boundary {
			if cb.ParentEdge.Diff == pe.Diff && cb.ParentEdge.Value == pe.Value {
				// c severed the same edge from the other side: the far site
				// is c's own boundary port, or, for a wire, whatever lies
				// beyond the wire's partner entry.
				if cb.Port.IsWire() {
					partner, ok := wirePartner(c, j)
					if !ok {
						return OwnedSite{}, fmt.Errorf("wire %q of diff %s has no partner entry", cb.Port.Wire, c.identity)
					}
					return v.resolveEntry(c, partner, visiting)
				}
				return NewOwned(cb.Port.Site, c.identity), nil
			}
		}
	}

	// No active child claims this region: it still belongs to parent.
	return NewOwned(far, parent.identity), nil
}

// sameEdgeOccurrence returns how many boundary entries before index
// reference the identical parent edge as the entry at index: 0 for the
// first occurrence, 1 for the second.
func sameEdgeOccurrence(d *Diff, index int) int {
	target := d.boundary[index].ParentEdge
	count := 0
	for i := 0; i < index; i++ {
		if d.boundary[i].ParentEdge == target {
			count++
		}
	}
	return count
}

// wirePartner finds the other boundary index sharing d's boundary entry's
// WireID, if entry is a wire sentinel.
func wirePartner(d *Diff, index int) (int, bool) {
	entry, ok := d.BoundaryAt(index)
	if !ok || !entry.Port.IsWire() {
		return -1, false
	}
	for j, other := range d.boundary {
		if j == index {
			continue
		}
		if other.Port.IsWire() && other.Port.Wire == entry.Port.Wire {
			return j, true
		}
	}
	return -1, false
}

// OppositePorts returns the set of sites connected to site in the
// materialized graph this view defines, deduplicated.
func (v *GraphView) OppositePorts(site OwnedSite) ([]OwnedSite, error) {
	d, err := v.store.Get(site.Diff)
	if err != nil {
		return nil, err
	}
	if !v.isMember(d) {
		return nil, fmt.Errorf("site's diff %s is not a member of this view", site.Diff)
	}

	result := map[OwnedSite]struct{}{}

	if edgeID, occupied, err := d.replacement.EdgeAt(site.Value); err == nil && occupied {
		ea, eb, err := d.replacement.Endpoints(edgeID)
		if err != nil {
			return nil, GraphBackendError{Err: err}
		}
		other := ea
		if ea == site.Value {
			other = eb
		}
		result[NewOwned(other, d.identity)] = struct{}{}
	}

	for idx, entry := range d.boundary {
		if entry.Port.Kind != BoundarySite || entry.Port.Site != site.Value {
			continue
		}
		resolved, err := v.ResolveBoundary(d, idx)
		if err != nil {
			return nil, err
		}
		result[resolved] = struct{}{}
	}

	out := make([]OwnedSite, 0, len(result))
	for s := range result {
		out = append(out, s)
	}
	return out, nil
}
