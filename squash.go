package portdiff

import (
	"fmt"
	"sort"

	"github.com/portdiff/portdiff/graph"
)

// IsSquashable reports whether subDAG forms a single connected region of
// the DAG: every member must be reachable from every other member by
// following only parent/child edges that stay within the set. A sub-DAG
// split across two unrelated branches has no well-defined single outer
// boundary and cannot be squashed into one diff.
func IsSquashable(store *Store, subDAG []*Diff) bool {
	if len(subDAG) == 0 {
		return false
	}
	members := map[DiffID]*Diff{}
	for _, d := range subDAG {
		members[d.identity] = d
	}

	adjacency := map[DiffID][]DiffID{}
	for _, d := range subDAG {
		for _, p := range d.parents {
			if _, ok := members[p.diff.identity]; ok {
				adjacency[d.identity] = append(adjacency[d.identity], p.diff.identity)
				adjacency[p.diff.identity] = append(adjacency[p.diff.identity], d.identity)
			}
		}
	}

	visited := map[DiffID]struct{}{}
	var walk func(DiffID)
	walk = func(id DiffID) {
		if _, ok := visited[id]; ok {
			return
		}
		visited[id] = struct{}{}
		for _, n := range adjacency[id] {
			walk(n)
		}
	}
	walk(subDAG[0].identity)
	return len(visited) == len(members)
}

// TrySquash collapses a connected sub-DAG into one diff equivalent to
// sequentially applying its members atop their shared outer parents.
// combine reduces the member diffs' values into the squashed diff's value;
// pass nil to default to summing them.
func (s *Store) TrySquash(subDAG []*Diff, combine func([]int) int) (*Diff, error) {
	if !IsSquashable(s, subDAG) {
		rerr := NotSquashable{Reason: "sub-DAG's boundary with the outside world is not well-defined"}
		s.logger.Errorf("squash rejected: %v", rerr)
		return nil, rerr
	}

	members := map[DiffID]*Diff{}
	for _, d := range subDAG {
		members[d.identity] = d
	}
	sinks := sinksOf(subDAG, members)
	if len(sinks) == 0 {
		rerr := NotSquashable{Reason: "sub-DAG has no sinks"}
		s.logger.Errorf("squash rejected: %v", rerr)
		return nil, rerr
	}

	innerView, err := NewView(s, sinks)
	if err != nil {
		rerr := NotSquashable{Reason: fmt.Sprintf("sinks do not form a valid view: %v", err)}
		s.logger.Errorf("squash rejected: %v", rerr)
		return nil, rerr
	}

	fragment, boundary, outerParents, err := squashExtract(s, innerView, members)
	if err != nil {
		return nil, err
	}

	outerDiffs := make([]*Diff, 0, len(outerParents))
	for _, id := range outerParents {
		d, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		outerDiffs = append(outerDiffs, d)
	}
	outerView, err := NewView(s, outerDiffs)
	if err != nil {
		rerr := NotSquashable{Reason: fmt.Sprintf("outer parents do not form a valid view: %v", err)}
		s.logger.Errorf("squash rejected: %v", rerr)
		return nil, rerr
	}

	values := make([]int, len(subDAG))
	for i, d := range subDAG {
		values[i] = d.value
	}
	value := 0
	if combine != nil {
		value = combine(values)
	} else {
		for _, v := range values {
			value += v
		}
	}

	squashed, err := s.Rewrite(outerView, fragment, boundary, value)
	if err != nil {
		return nil, err
	}
	s.logger.Infof("squashed %d diff(s) into %s", len(subDAG), squashed.identity)
	return squashed, nil
}

func sinksOf(subDAG []*Diff, members map[DiffID]*Diff) []*Diff {
	hasChildInSet := map[DiffID]bool{}
	for _, d := range subDAG {
		for _, p := range d.parents {
			if _, ok := members[p.diff.identity]; ok {
				hasChildInSet[p.diff.identity] = true
			}
		}
	}
	var sinks []*Diff
	for _, d := range subDAG {
		if !hasChildInSet[d.identity] {
			sinks = append(sinks, d)
		}
	}
	return sinks
}

// squashExtract materializes the sub-DAG's own fragment: only members'
// live nodes and internal edges, not the full ancestor chain Extract would
// walk. A boundary entry whose parent edge belongs to a fellow member is
// resolved (via the view's boundary-resolution walk) to a site inside
// that member's own materialized nodes and wired as a direct edge in the
// fragment; a boundary entry whose parent edge belongs to something
// outside the sub-DAG becomes one of the returned outer boundary entries
// instead. It returns the fragment graph, those outer boundary entries,
// and the sorted list of the outer parents they reference. Rewrite
// recomputes each outer parent's replacement region itself from these
// boundary entries, so squashExtract does not need to track regions.
func squashExtract(s *Store, view *GraphView, members map[DiffID]*Diff) (*graph.Graph, []BoundaryEntry, []DiffID, error) {
	out := graph.New()
	outputOf := map[OwnedNode]graph.NodeID{}

	memberList := make([]*Diff, 0, len(members))
	for _, d := range members {
		memberList = append(memberList, d)
	}
	sort.Slice(memberList, func(i, j int) bool { return memberList[i].identity.String() < memberList[j].identity.String() })

	for _, d := range memberList {
		nodes, err := view.LiveNodes(d)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, n := range nodes {
			newID, err := out.CopyNodeShape(d.Graph(), n)
			if err != nil {
				return nil, nil, nil, GraphBackendError{Err: err}
			}
			outputOf[NewOwned(n, d.identity)] = newID
		}
	}

	type pair struct{ a, b graph.Site }
	seenEdge := map[pair]struct{}{}
	addEdge := func(a, b graph.Site) error {
		if a.Node.String() > b.Node.String() || (a.Node == b.Node && a.Port.String() > b.Port.String()) {
			a, b = b, a
		}
		key := pair{a, b}
		if _, ok := seenEdge[key]; ok {
			return nil
		}
		seenEdge[key] = struct{}{}
		return out.LinkSites(a, b)
	}

	for _, d := range memberList {
		for _, e := range d.Graph().Edges() {
			a, b, err := d.Graph().Endpoints(e)
			if err != nil {
				return nil, nil, nil, GraphBackendError{Err: err}
			}
			outA, okA := outputOf[NewOwned(a.Node, d.identity)]
			outB, okB := outputOf[NewOwned(b.Node, d.identity)]
			if !okA || !okB {
				continue
			}
			if err := addEdge(graph.Site{Node: outA, Port: a.Port}, graph.Site{Node: outB, Port: b.Port}); err != nil {
				return nil, nil, nil, GraphBackendError{Err: err}
			}
		}
	}

	var boundary []BoundaryEntry
	outerParentSet := map[DiffID]struct{}{}
	wireSeq := 0
	type wireKey struct {
		diff DiffID
		wire WireID
	}
	syntheticWire := map[wireKey]WireID{}

	for _, d := range memberList {
		for idx, entry := range d.boundary {
			pe := entry.ParentEdge

			if entry.Port.Kind == BoundaryWire {
				if _, insideSet := members[pe.Diff]; insideSet {
					// A wire pair fully internal to the sub-DAG vanishes:
					// its partner's own entry (or further resolution) is
					// what carries the real connection.
					continue
				}
				outerParentSet[pe.Diff] = struct{}{}
				key := wireKey{diff: d.identity, wire: entry.Port.Wire}
				wireID, ok := syntheticWire[key]
				if !ok {
					wireSeq++
					wireID = WireID(fmt.Sprintf("squash-wire-%d", wireSeq))
					syntheticWire[key] = wireID
				}
				boundary = append(boundary, BoundaryEntry{Port: WirePort(wireID), ParentEdge: pe})
				continue
			}

			near, live := outputOf[NewOwned(entry.Port.Site.Node, d.identity)]
			if !live {
				// A descendant member consumed this site; its own
				// equivalent boundary entry is what gets processed.
				continue
			}
			nearSite := graph.Site{Node: near, Port: entry.Port.Site.Port}

			if _, insideSet := members[pe.Diff]; insideSet {
				far, err := view.ResolveBoundary(d, idx)
				if err != nil {
					return nil, nil, nil, err
				}
				farOut, ok := outputOf[NewOwned(far.Value.Node, far.Diff)]
				if !ok {
					return nil, nil, nil, fmt.Errorf("boundary entry %d of diff %s resolves outside the squashed sub-DAG", idx, d.identity)
				}
				if err := addEdge(nearSite, graph.Site{Node: farOut, Port: far.Value.Port}); err != nil {
					return nil, nil, nil, GraphBackendError{Err: err}
				}
				continue
			}

			outerParentSet[pe.Diff] = struct{}{}
			boundary = append(boundary, BoundaryEntry{Port: SitePort(nearSite), ParentEdge: pe})
		}
	}

	outerParents := make([]DiffID, 0, len(outerParentSet))
	for id := range outerParentSet {
		outerParents = append(outerParents, id)
	}
	sort.Slice(outerParents, func(i, j int) bool { return outerParents[i].String() < outerParents[j].String() })

	return out, boundary, outerParents, nil
}
