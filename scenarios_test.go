package portdiff

import (
	"testing"

	"github.com/google/uuid"
	"go.arcalot.io/assert"

	"github.com/portdiff/portdiff/graph"
)

// TestScenarioA_IdentityRewrite: root a->b->c; node b is replaced by an
// isomorphic single node flanked by the same two edges. Extraction yields a
// graph isomorphic to the root.
func TestScenarioA_IdentityRewrite(t *testing.T) {
	s := NewStore(testLogger())
	g, _, edges := linearChain(3)
	root, err := s.NewRoot(g, 0)
	assert.NoError(t, err)
	view, err := NewView(s, []*Diff{root})
	assert.NoError(t, err)

	rg := graph.New()
	b2 := rg.AddNode()
	_, err = rg.AddPort(b2, graph.Incoming)
	assert.NoError(t, err)
	_, err = rg.AddPort(b2, graph.Outgoing)
	assert.NoError(t, err)
	boundary := []BoundaryEntry{
		{Port: SitePort(siteOf(b2, graph.Incoming, 0)), ParentEdge: NewOwned(edges[0], root.Identity())},
		{Port: SitePort(siteOf(b2, graph.Outgoing, 0)), ParentEdge: NewOwned(edges[1], root.Identity())},
	}
	d, err := s.Rewrite(view, rg, boundary, 0)
	assert.NoError(t, err)

	out, err := Extract(mustView(t, s, d))
	assert.NoError(t, err)
	assert.Equals(t, len(out.Nodes()), 3)
	assert.Equals(t, len(out.Edges()), 2)
}

// TestScenarioB_SubstituteSingleNode: root a->b->c; node b is replaced by
// b1->b2, boundary mapping b1.in0 to the edge into b and b2.out0 to the edge
// out of b. Extraction yields a->b1->b2->c.
func TestScenarioB_SubstituteSingleNode(t *testing.T) {
	s := NewStore(testLogger())
	g, _, edges := linearChain(3)
	root, err := s.NewRoot(g, 0)
	assert.NoError(t, err)
	view, err := NewView(s, []*Diff{root})
	assert.NoError(t, err)

	rg := graph.New()
	b1 := rg.AddNode()
	_, err = rg.AddPort(b1, graph.Incoming)
	assert.NoError(t, err)
	_, err = rg.AddPort(b1, graph.Outgoing)
	assert.NoError(t, err)
	b2 := rg.AddNode()
	_, err = rg.AddPort(b2, graph.Incoming)
	assert.NoError(t, err)
	_, err = rg.AddPort(b2, graph.Outgoing)
	assert.NoError(t, err)
	assert.NoError(t, rg.LinkSites(siteOf(b1, graph.Outgoing, 0), siteOf(b2, graph.Incoming, 0)))
	boundary := []BoundaryEntry{
		{Port: SitePort(siteOf(b1, graph.Incoming, 0)), ParentEdge: NewOwned(edges[0], root.Identity())},
		{Port: SitePort(siteOf(b2, graph.Outgoing, 0)), ParentEdge: NewOwned(edges[1], root.Identity())},
	}
	d, err := s.Rewrite(view, rg, boundary, 0)
	assert.NoError(t, err)

	out, err := Extract(mustView(t, s, d))
	assert.NoError(t, err)
	assert.Equals(t, len(out.Nodes()), 4)
	assert.Equals(t, len(out.Edges()), 3)
}

// TestScenarioC_IncompatibleSiblings: two sibling diffs both replace node b
// of the same root. Rewrite accepts the second one, since its region equals
// (and so contains) the first's, but AreCompatible must say false for the
// pair and NewView must refuse it. The same holds for a pair that reaches
// the store without going through Rewrite at all (the path UnmarshalDAG
// takes for untrusted data).
func TestScenarioC_IncompatibleSiblings(t *testing.T) {
	s := NewStore(testLogger())
	g, nodes, edges := linearChain(3)
	root, err := s.NewRoot(g, 0)
	assert.NoError(t, err)
	view, err := NewView(s, []*Diff{root})
	assert.NoError(t, err)

	rg := graph.New()
	b1 := rg.AddNode()
	_, err = rg.AddPort(b1, graph.Incoming)
	assert.NoError(t, err)
	_, err = rg.AddPort(b1, graph.Outgoing)
	assert.NoError(t, err)
	boundary := []BoundaryEntry{
		{Port: SitePort(siteOf(b1, graph.Incoming, 0)), ParentEdge: NewOwned(edges[0], root.Identity())},
		{Port: SitePort(siteOf(b1, graph.Outgoing, 0)), ParentEdge: NewOwned(edges[1], root.Identity())},
	}
	r1, err := s.Rewrite(view, rg, boundary, 0)
	assert.NoError(t, err)
	r2, err := s.Rewrite(view, rg, boundary, 0)
	assert.NoError(t, err)
	assert.Equals(t, AreCompatible([]*Diff{r1, r2}), false)
	_, err = NewView(s, []*Diff{r1, r2})
	assert.Error(t, err)

	regionB, err := g.RegionOf([]graph.NodeID{nodes[1]}, nil)
	assert.NoError(t, err)
	d1 := &Diff{identity: DiffID(uuid.New()), replacement: graph.New(), parents: []ParentRef{{diff: root, region: regionB}}}
	assert.NoError(t, s.register(d1))
	d2 := &Diff{identity: DiffID(uuid.New()), replacement: graph.New(), parents: []ParentRef{{diff: root, region: regionB}}}
	assert.NoError(t, s.register(d2))

	assert.Equals(t, AreCompatible([]*Diff{d1, d2}), false)
	_, err = NewView(s, []*Diff{d1, d2})
	assert.Error(t, err)
}

// TestScenarioD_CompatibleDisjoint: diffs replacing {b} and {c} respectively
// in root a->b->c->d are compatible, and extraction combines both
// replacements into one graph.
func TestScenarioD_CompatibleDisjoint(t *testing.T) {
	s := NewStore(testLogger())
	g, _, edges := linearChain(4)
	root, err := s.NewRoot(g, 0)
	assert.NoError(t, err)
	view, err := NewView(s, []*Diff{root})
	assert.NoError(t, err)

	rgB := graph.New()
	b1 := rgB.AddNode()
	_, err = rgB.AddPort(b1, graph.Incoming)
	assert.NoError(t, err)
	_, err = rgB.AddPort(b1, graph.Outgoing)
	assert.NoError(t, err)
	boundaryB := []BoundaryEntry{
		{Port: SitePort(siteOf(b1, graph.Incoming, 0)), ParentEdge: NewOwned(edges[0], root.Identity())},
		{Port: SitePort(siteOf(b1, graph.Outgoing, 0)), ParentEdge: NewOwned(edges[1], root.Identity())},
	}
	dB, err := s.Rewrite(view, rgB, boundaryB, 0)
	assert.NoError(t, err)

	rgC := graph.New()
	c1 := rgC.AddNode()
	_, err = rgC.AddPort(c1, graph.Incoming)
	assert.NoError(t, err)
	_, err = rgC.AddPort(c1, graph.Outgoing)
	assert.NoError(t, err)
	boundaryC := []BoundaryEntry{
		{Port: SitePort(siteOf(c1, graph.Incoming, 0)), ParentEdge: NewOwned(edges[1], root.Identity())},
		{Port: SitePort(siteOf(c1, graph.Outgoing, 0)), ParentEdge: NewOwned(edges[2], root.Identity())},
	}
	dC, err := s.Rewrite(view, rgC, boundaryC, 0)
	assert.NoError(t, err)

	assert.Equals(t, AreCompatible([]*Diff{dB, dC}), true)

	combined, err := NewView(s, []*Diff{dB, dC})
	assert.NoError(t, err)
	out, err := Extract(combined)
	assert.NoError(t, err)
	assert.Equals(t, len(out.Nodes()), 4)
	assert.Equals(t, len(out.Edges()), 3)
}

// TestScenarioE_EmptyRewriteWithWire: root has a single edge a.out0 ->
// b.in0; a rewrite substitutes the node-set {} between them with a single
// wire boundary pair. Extraction resolves the wire straight through to a
// direct a.out0 -> b.in0 edge.
func TestScenarioE_EmptyRewriteWithWire(t *testing.T) {
	s := NewStore(testLogger())
	g, a, b, e := pairGraph()
	root, err := s.NewRoot(g, 0)
	assert.NoError(t, err)
	view, err := NewView(s, []*Diff{root})
	assert.NoError(t, err)

	boundary := []BoundaryEntry{
		{Port: WirePort("scenario-e"), ParentEdge: NewOwned(e, root.Identity())},
		{Port: WirePort("scenario-e"), ParentEdge: NewOwned(e, root.Identity())},
	}
	d, err := s.Rewrite(view, graph.New(), boundary, 0)
	assert.NoError(t, err)

	out, err := Extract(mustView(t, s, d))
	assert.NoError(t, err)
	assert.Equals(t, len(out.Nodes()), 2)
	assert.Equals(t, len(out.Edges()), 1)

	live, err := mustView(t, s, d).LiveSet()
	assert.NoError(t, err)
	rootLive := live[root.Identity()]
	_, aLive := rootLive[a]
	_, bLive := rootLive[b]
	assert.Equals(t, aLive, true)
	assert.Equals(t, bLive, true)
}

// TestScenarioF_SquashChain: a linear chain of three diffs atop a root
// squashes to a single diff, and extraction with it yields the same graph
// as extraction with the chain's tip. The first two diffs' replacements each
// keep an internal three-node chain so the next diff in the sequence has a genuine
// pair of internal edges to cut into, making it a true child rather than a
// second sibling of the same parent.
func TestScenarioF_SquashChain(t *testing.T) {
	s := NewStore(testLogger())
	g, _, edges := linearChain(3) // a->b->c
	root, err := s.NewRoot(g, 1)
	assert.NoError(t, err)
	rootView, err := NewView(s, []*Diff{root})
	assert.NoError(t, err)

	rg1 := graph.New()
	b1 := rg1.AddNode()
	b2 := rg1.AddNode()
	b3 := rg1.AddNode()
	_, err = rg1.AddPort(b1, graph.Incoming)
	assert.NoError(t, err)
	_, err = rg1.AddPort(b1, graph.Outgoing)
	assert.NoError(t, err)
	_, err = rg1.AddPort(b2, graph.Incoming)
	assert.NoError(t, err)
	_, err = rg1.AddPort(b2, graph.Outgoing)
	assert.NoError(t, err)
	_, err = rg1.AddPort(b3, graph.Incoming)
	assert.NoError(t, err)
	_, err = rg1.AddPort(b3, graph.Outgoing)
	assert.NoError(t, err)
	assert.NoError(t, rg1.LinkSites(siteOf(b1, graph.Outgoing, 0), siteOf(b2, graph.Incoming, 0)))
	assert.NoError(t, rg1.LinkSites(siteOf(b2, graph.Outgoing, 0), siteOf(b3, graph.Incoming, 0)))
	mid1 := soleEdgeOf(rg1, b1)
	mid2 := soleEdgeOf(rg1, b2)
	boundary1 := []BoundaryEntry{
		{Port: SitePort(siteOf(b1, graph.Incoming, 0)), ParentEdge: NewOwned(edges[0], root.Identity())},
		{Port: SitePort(siteOf(b3, graph.Outgoing, 0)), ParentEdge: NewOwned(edges[1], root.Identity())},
	}
	d1, err := s.Rewrite(rootView, rg1, boundary1, 2)
	assert.NoError(t, err)

	d1View, err := NewView(s, []*Diff{d1})
	assert.NoError(t, err)
	rg2 := graph.New()
	c1 := rg2.AddNode()
	c2 := rg2.AddNode()
	c3 := rg2.AddNode()
	_, err = rg2.AddPort(c1, graph.Incoming)
	assert.NoError(t, err)
	_, err = rg2.AddPort(c1, graph.Outgoing)
	assert.NoError(t, err)
	_, err = rg2.AddPort(c2, graph.Incoming)
	assert.NoError(t, err)
	_, err = rg2.AddPort(c2, graph.Outgoing)
	assert.NoError(t, err)
	_, err = rg2.AddPort(c3, graph.Incoming)
	assert.NoError(t, err)
	_, err = rg2.AddPort(c3, graph.Outgoing)
	assert.NoError(t, err)
	assert.NoError(t, rg2.LinkSites(siteOf(c1, graph.Outgoing, 0), siteOf(c2, graph.Incoming, 0)))
	assert.NoError(t, rg2.LinkSites(siteOf(c2, graph.Outgoing, 0), siteOf(c3, graph.Incoming, 0)))
	midA := soleEdgeOf(rg2, c1)
	midB := soleEdgeOf(rg2, c2)
	boundary2 := []BoundaryEntry{
		{Port: SitePort(siteOf(c1, graph.Incoming, 0)), ParentEdge: NewOwned(mid1, d1.Identity())},
		{Port: SitePort(siteOf(c3, graph.Outgoing, 0)), ParentEdge: NewOwned(mid2, d1.Identity())},
	}
	d2, err := s.Rewrite(d1View, rg2, boundary2, 3)
	assert.NoError(t, err)

	d2View, err := NewView(s, []*Diff{d2})
	assert.NoError(t, err)
	rg3 := graph.New()
	n3 := rg3.AddNode()
	_, err = rg3.AddPort(n3, graph.Incoming)
	assert.NoError(t, err)
	_, err = rg3.AddPort(n3, graph.Outgoing)
	assert.NoError(t, err)
	boundary3 := []BoundaryEntry{
		{Port: SitePort(siteOf(n3, graph.Incoming, 0)), ParentEdge: NewOwned(midA, d2.Identity())},
		{Port: SitePort(siteOf(n3, graph.Outgoing, 0)), ParentEdge: NewOwned(midB, d2.Identity())},
	}
	d3, err := s.Rewrite(d2View, rg3, boundary3, 4)
	assert.NoError(t, err)

	chain := []*Diff{d1, d2, d3}
	assert.Equals(t, IsSquashable(s, chain), true)

	squashed, err := s.TrySquash(chain, nil)
	assert.NoError(t, err)
	assert.Equals(t, squashed.Value(), 9)

	tipOut, err := Extract(mustView(t, s, d3))
	assert.NoError(t, err)
	squashedOut, err := Extract(mustView(t, s, squashed))
	assert.NoError(t, err)

	assert.Equals(t, len(squashedOut.Nodes()), len(tipOut.Nodes()))
	assert.Equals(t, len(squashedOut.Edges()), len(tipOut.Edges()))
}

func mustView(t *testing.T, s *Store, d *Diff) *GraphView {
	t.Helper()
	v, err := NewView(s, []*Diff{d})
	assert.NoError(t, err)
	return v
}
