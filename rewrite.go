package portdiff

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/portdiff/portdiff/graph"
)

// Rewrite constructs a new diff atop view: replacement becomes the child's
// replacement graph, and boundary ties the replacement's own sites back to
// the edges of view's members (or their live ancestors) that are being
// severed and rerouted.
//
// Rewrite does not take an explicit region per parent: for each parent a
// boundary entry references, it reconstructs the replacement region itself
// as the connected component of that parent's live nodes reachable only
// through non-boundary edges and touching the referenced boundary edges —
// see regionFromCuts.
//
// On any validation failure Rewrite returns InvalidRewrite and leaves the
// store and view untouched.
func (s *Store) Rewrite(view *GraphView, replacement *graph.Graph, boundary []BoundaryEntry, value int) (*Diff, error) {
	if view.store != s {
		return nil, InvalidRewrite{Reason: "view was built against a different store", BoundaryIndex: -1}
	}

	live, err := view.LiveSet()
	if err != nil {
		return nil, err
	}

	parentsReferenced := map[DiffID]*Diff{}
	cutEdges := map[DiffID]map[graph.EdgeID]struct{}{}
	cutOccurrences := map[DiffID]map[graph.EdgeID]int{}
	for i, b := range boundary {
		parent, err := s.Get(b.ParentEdge.Diff)
		if err != nil {
			rerr := InvalidRewrite{Reason: "boundary edge-ref names an unknown diff", BoundaryIndex: i}
			s.logger.Errorf("rewrite rejected: %v", rerr)
			return nil, rerr
		}
		siteA, siteB, err := parent.Graph().Endpoints(b.ParentEdge.Value)
		if err != nil {
			rerr := InvalidRewrite{Reason: fmt.Sprintf("boundary edge-ref edge %s does not exist in diff %s", b.ParentEdge.Value, parent.identity), BoundaryIndex: i}
			s.logger.Errorf("rewrite rejected: %v", rerr)
			return nil, rerr
		}
		liveA, err := view.isLiveSite(NewOwned(siteA, parent.identity))
		if err != nil {
			return nil, err
		}
		liveB, err := view.isLiveSite(NewOwned(siteB, parent.identity))
		if err != nil {
			return nil, err
		}
		if !liveA && !liveB {
			rerr := InvalidRewrite{Reason: fmt.Sprintf("boundary edge-ref diff %s is not live in this view", parent.identity), BoundaryIndex: i}
			s.logger.Errorf("rewrite rejected: %v", rerr)
			return nil, rerr
		}

		parentsReferenced[parent.identity] = parent
		if cutEdges[parent.identity] == nil {
			cutEdges[parent.identity] = map[graph.EdgeID]struct{}{}
			cutOccurrences[parent.identity] = map[graph.EdgeID]int{}
		}
		cutEdges[parent.identity][b.ParentEdge.Value] = struct{}{}
		cutOccurrences[parent.identity][b.ParentEdge.Value]++
	}

	if err := validateWirePairs(boundary); err != nil {
		s.logger.Errorf("rewrite rejected: %v", err)
		return nil, err
	}
	if err := validateBoundaryBijection(replacement, boundary); err != nil {
		s.logger.Errorf("rewrite rejected: %v", err)
		return nil, err
	}

	parentIDs := make([]DiffID, 0, len(parentsReferenced))
	for id := range parentsReferenced {
		parentIDs = append(parentIDs, id)
	}
	sort.Slice(parentIDs, func(i, j int) bool { return parentIDs[i].String() < parentIDs[j].String() })

	parents := make([]ParentRef, 0, len(parentIDs))
	for _, id := range parentIDs {
		parentDiff := parentsReferenced[id]

		// An edge referenced exactly once seeds the region search: whichever
		// of its two endpoints lies in the consumed component. An edge
		// referenced twice by the identical boundary entry pair (a wire
		// sentinel self-paired onto one edge) severs and immediately
		// resplices it with nothing consumed in between, so it contributes
		// no seed at all.
		seedEdges := map[graph.EdgeID]struct{}{}
		for e, count := range cutOccurrences[id] {
			if count == 1 {
				seedEdges[e] = struct{}{}
			}
		}

		region, err := regionFromCuts(parentDiff.Graph(), cutEdges[id], seedEdges, live[id])
		if err != nil {
			return nil, err
		}

		siblings, err := s.Children(parentDiff)
		if err != nil {
			return nil, err
		}
		for _, sib := range siblings {
			sibRegion := regionIn(sib, id)
			if sibRegion == nil {
				continue
			}
			// Sibling regions must be disjoint or one must contain the
			// other (e.g. a squash re-claiming exactly the region an
			// existing descendant already claims). A genuine partial
			// overlap is the only case construction rejects; picking
			// both diffs for the same view is rejected separately by
			// AreCompatible.
			if region.Intersects(sibRegion) && !region.ContainsAll(sibRegion) && !sibRegion.ContainsAll(region) {
				rerr := InvalidRewrite{Reason: fmt.Sprintf("replacement region overlaps sibling diff %s under parent %s", sib.identity, id), BoundaryIndex: -1}
				s.logger.Errorf("rewrite rejected: %v", rerr)
				return nil, rerr
			}
		}

		parents = append(parents, ParentRef{diff: parentDiff, region: region})
	}

	d := &Diff{
		identity:    DiffID(uuid.New()),
		replacement: replacement,
		boundary:    append([]BoundaryEntry(nil), boundary...),
		parents:     parents,
		value:       value,
	}
	if err := s.register(d); err != nil {
		return nil, err
	}
	s.logger.Infof("created diff %s with %d parent(s) and %d boundary entries", d.identity, len(parents), len(boundary))
	return d, nil
}

// regionFromCuts reconstructs the replacement region in parent that a set
// of cut boundary edges severs: the connected component of parent's live
// nodes — following only edges not in cuts — that touches the most
// distinct seedEdges, ties broken in favor of the smaller component.
// seedEdges is the subset of cuts that each name exactly one boundary
// entry (an edge referenced twice by a self-paired wire contributes no
// seed at all: see Rewrite). This is well-defined for the common case of
// two or more seed edges converging on the same severed region; a single
// seed edge ties both of its endpoints at one touched edge each, and the
// size tie-break picks the smaller side. With no seed edges at all (every
// cut is a self-paired wire splice), the region is empty.
func regionFromCuts(parent *graph.Graph, cuts map[graph.EdgeID]struct{}, seedEdges map[graph.EdgeID]struct{}, live map[graph.NodeID]struct{}) (*graph.Region, error) {
	adjacency := map[graph.NodeID][]graph.EdgeID{}
	for _, e := range parent.Edges() {
		if _, cut := cuts[e]; cut {
			continue
		}
		a, b, err := parent.Endpoints(e)
		if err != nil {
			return nil, GraphBackendError{Err: err}
		}
		if _, ok := live[a.Node]; !ok {
			continue
		}
		if _, ok := live[b.Node]; !ok {
			continue
		}
		adjacency[a.Node] = append(adjacency[a.Node], e)
		adjacency[b.Node] = append(adjacency[b.Node], e)
	}

	seeds := map[graph.NodeID]struct{}{}
	for e := range seedEdges {
		a, b, err := parent.Endpoints(e)
		if err != nil {
			return nil, GraphBackendError{Err: err}
		}
		if _, ok := live[a.Node]; ok {
			seeds[a.Node] = struct{}{}
		}
		if _, ok := live[b.Node]; ok {
			seeds[b.Node] = struct{}{}
		}
	}

	visited := map[graph.NodeID]struct{}{}
	var best map[graph.NodeID]struct{}
	bestScore := -1
	for seed := range seeds {
		if _, ok := visited[seed]; ok {
			continue
		}
		component := map[graph.NodeID]struct{}{}
		queue := []graph.NodeID{seed}
		visited[seed] = struct{}{}
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			component[n] = struct{}{}
			for _, e := range adjacency[n] {
				a, b, err := parent.Endpoints(e)
				if err != nil {
					return nil, GraphBackendError{Err: err}
				}
				next := a.Node
				if next == n {
					next = b.Node
				}
				if _, ok := visited[next]; ok {
					continue
				}
				visited[next] = struct{}{}
				queue = append(queue, next)
			}
		}

		score := 0
		for e := range seedEdges {
			a, b, err := parent.Endpoints(e)
			if err != nil {
				return nil, GraphBackendError{Err: err}
			}
			if _, ok := component[a.Node]; ok {
				score++
				continue
			}
			if _, ok := component[b.Node]; ok {
				score++
			}
		}

		if score > bestScore || (score == bestScore && (best == nil || len(component) < len(best))) {
			bestScore = score
			best = component
		}
	}

	region := graph.NewRegion()
	for n := range best {
		region.Nodes[n] = struct{}{}
	}
	for _, e := range parent.Edges() {
		if _, cut := cuts[e]; cut {
			continue
		}
		a, b, err := parent.Endpoints(e)
		if err != nil {
			return nil, GraphBackendError{Err: err}
		}
		if region.Contains(a.Node) && region.Contains(b.Node) {
			region.Edges[e] = struct{}{}
		}
	}
	return region, nil
}

// validateWirePairs enforces that every wire sentinel has exactly one
// partner sharing its WireID. A pair may legitimately name the identical
// parent edge on both sides: that is how a diff severs a single edge with
// nothing in between and splices it back together through an empty
// replacement, with declaration order breaking the tie between the edge's
// two endpoints (see resolveEntry's wire disambiguation).
func validateWirePairs(boundary []BoundaryEntry) error {
	byWire := map[WireID][]int{}
	for i, b := range boundary {
		if b.Port.IsWire() {
			byWire[b.Port.Wire] = append(byWire[b.Port.Wire], i)
		}
	}
	for wire, indices := range byWire {
		if len(indices) != 2 {
			return InvalidRewrite{Reason: fmt.Sprintf("wire %q does not have exactly two boundary entries", wire), BoundaryIndex: indices[0]}
		}
	}
	return nil
}

// validateBoundaryBijection checks that every Site-kind boundary entry
// names a distinct, valid, currently-unoccupied site of replacement, and
// conversely that every unoccupied site of replacement is named by some
// boundary entry. A port that is neither internally linked nor exposed as a
// boundary would leave a node with a permanently unresolved port in every
// future extraction, so the bijection must hold in both directions.
func validateBoundaryBijection(replacement *graph.Graph, boundary []BoundaryEntry) error {
	seen := map[graph.Site]struct{}{}
	for i, b := range boundary {
		if b.Port.Kind != BoundarySite {
			continue
		}
		site := b.Port.Site
		if _, dup := seen[site]; dup {
			return InvalidRewrite{Reason: fmt.Sprintf("boundary site %v is referenced by more than one entry", site), BoundaryIndex: i}
		}
		seen[site] = struct{}{}
		_, occupied, err := replacement.EdgeAt(site)
		if err != nil {
			return InvalidRewrite{Reason: fmt.Sprintf("boundary site %v does not exist in the replacement graph: %v", site, err), BoundaryIndex: i}
		}
		if occupied {
			return InvalidRewrite{Reason: fmt.Sprintf("boundary site %v already carries an internal edge", site), BoundaryIndex: i}
		}
	}

	for _, n := range replacement.Nodes() {
		for _, dir := range []graph.Direction{graph.Incoming, graph.Outgoing} {
			ports, err := replacement.Ports(n, dir)
			if err != nil {
				return GraphBackendError{Err: err}
			}
			for _, p := range ports {
				site := graph.Site{Node: n, Port: p}
				_, occupied, err := replacement.EdgeAt(site)
				if err != nil {
					return GraphBackendError{Err: err}
				}
				if occupied {
					continue
				}
				if _, named := seen[site]; !named {
					return InvalidRewrite{Reason: fmt.Sprintf("replacement site %v is neither internally linked nor named by a boundary entry", site), BoundaryIndex: -1}
				}
			}
		}
	}
	return nil
}
