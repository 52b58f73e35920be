package portdiff

import (
	"fmt"

	"github.com/portdiff/portdiff/graph"
)

// Extract produces a fresh concrete port graph equivalent to applying
// every rewrite selected by view atop the roots.
func Extract(view *GraphView) (*graph.Graph, error) {
	out := graph.New()
	outputOf := map[OwnedNode]graph.NodeID{}

	reachable := view.reachableDiffs()
	for _, d := range reachable {
		nodes, err := view.LiveNodes(d)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			newID, err := out.CopyNodeShape(d.Graph(), n)
			if err != nil {
				return nil, GraphBackendError{Err: err}
			}
			outputOf[NewOwned(n, d.identity)] = newID
		}
	}

	toOutputSite := func(o OwnedSite) (graph.Site, error) {
		nodeID, ok := outputOf[NewOwned(o.Value.Node, o.Diff)]
		if !ok {
			return graph.Site{}, fmt.Errorf("site %v in diff %s is not live in this view", o.Value, o.Diff)
		}
		return graph.Site{Node: nodeID, Port: o.Value.Port}, nil
	}

	type pair struct{ a, b graph.Site }
	seen := map[pair]struct{}{}
	addEdge := func(a, b graph.Site) error {
		if a.Node.String() > b.Node.String() || (a.Node == b.Node && a.Port.String() > b.Port.String()) {
			a, b = b, a
		}
		key := pair{a, b}
		if _, ok := seen[key]; ok {
			return nil
		}
		seen[key] = struct{}{}
		if err := out.LinkSites(a, b); err != nil {
			return GraphBackendError{Err: err}
		}
		return nil
	}

	for _, d := range reachable {
		for _, e := range d.Graph().Edges() {
			a, b, err := d.Graph().Endpoints(e)
			if err != nil {
				return nil, GraphBackendError{Err: err}
			}
			outA, okA := outputOf[NewOwned(a.Node, d.identity)]
			outB, okB := outputOf[NewOwned(b.Node, d.identity)]
			if !okA || !okB {
				// One or both endpoints were superseded by a descendant
				// diff; that side is stitched in via boundary resolution.
				continue
			}
			if err := addEdge(graph.Site{Node: outA, Port: a.Port}, graph.Site{Node: outB, Port: b.Port}); err != nil {
				return nil, err
			}
		}
	}

	for _, d := range reachable {
		for idx, entry := range d.boundary {
			if entry.Port.Kind == BoundarySite {
				if _, live := outputOf[NewOwned(entry.Port.Site.Node, d.identity)]; !live {
					// A descendant diff consumed this boundary site; it
					// carries its own equivalent boundary entry that will
					// be processed when that diff is visited instead.
					continue
				}
			}
			if entry.Port.Kind == BoundaryWire {
				partner, ok := wirePartner(d, idx)
				if !ok || partner < idx {
					continue
				}
				farA, err := view.ResolveBoundary(d, idx)
				if err != nil {
					return nil, err
				}
				farB, err := view.ResolveBoundary(d, partner)
				if err != nil {
					return nil, err
				}
				outA, err := toOutputSite(farA)
				if err != nil {
					return nil, err
				}
				outB, err := toOutputSite(farB)
				if err != nil {
					return nil, err
				}
				if err := addEdge(outA, outB); err != nil {
					return nil, err
				}
				continue
			}

			far, err := view.ResolveBoundary(d, idx)
			if err != nil {
				return nil, err
			}
			near, err := toOutputSite(NewOwned(entry.Port.Site, d.identity))
			if err != nil {
				return nil, err
			}
			outFar, err := toOutputSite(far)
			if err != nil {
				return nil, err
			}
			if err := addEdge(near, outFar); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}
