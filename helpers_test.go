package portdiff

import (
	"testing"

	log "go.arcalot.io/log/v2"

	"github.com/portdiff/portdiff/graph"
)

func testLogger() log.Logger {
	return log.New(log.Config{
		Level:       log.LevelError,
		Destination: log.DestinationStdout,
	})
}

// linearChain builds a chain of n nodes a -> b -> ... (n-1 edges): the first
// node has one outgoing port, the last one incoming port, and every node in
// between one of each. It returns the node and edge IDs in order.
func linearChain(n int) (*graph.Graph, []graph.NodeID, []graph.EdgeID) {
	g := graph.New()
	nodes := make([]graph.NodeID, n)
	for i := range nodes {
		nodes[i] = g.AddNode()
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			if _, err := g.AddPort(nodes[i], graph.Incoming); err != nil {
				panic(err)
			}
		}
		if i < n-1 {
			if _, err := g.AddPort(nodes[i], graph.Outgoing); err != nil {
				panic(err)
			}
		}
	}
	edges := make([]graph.EdgeID, 0, n-1)
	for i := 0; i < n-1; i++ {
		a := graph.Site{Node: nodes[i], Port: graph.Port{Direction: graph.Outgoing, Index: 0}}
		b := graph.Site{Node: nodes[i+1], Port: graph.Port{Direction: graph.Incoming, Index: 0}}
		if err := g.LinkSites(a, b); err != nil {
			panic(err)
		}
		e, _, err := g.EdgeAt(a)
		if err != nil {
			panic(err)
		}
		edges = append(edges, e)
	}
	return g, nodes, edges
}

// pairGraph builds a -> b, a single edge between two single-port nodes.
func pairGraph() (*graph.Graph, graph.NodeID, graph.NodeID, graph.EdgeID) {
	g, nodes, edges := linearChain(2)
	return g, nodes[0], nodes[1], edges[0]
}

// trivialChild performs the smallest real rewrite possible atop view: it
// severs parent's named edge and replaces the far side with a single node
// carrying one incoming port, wired to that edge via the boundary. This
// gives the result exactly one parent, driven by a genuine boundary entry
// rather than an explicit region — the shape tests that only care about
// store bookkeeping (Sinks/Roots/Children/MapValue) need.
func trivialChild(t *testing.T, s *Store, view *GraphView, parent *Diff, edge graph.EdgeID, value int) *Diff {
	t.Helper()
	rg := graph.New()
	n := rg.AddNode()
	if _, err := rg.AddPort(n, graph.Incoming); err != nil {
		t.Fatalf("trivialChild: %v", err)
	}
	boundary := []BoundaryEntry{
		{Port: SitePort(siteOf(n, graph.Incoming, 0)), ParentEdge: NewOwned(edge, parent.Identity())},
	}
	child, err := s.Rewrite(view, rg, boundary, value)
	if err != nil {
		t.Fatalf("trivialChild: %v", err)
	}
	return child
}
