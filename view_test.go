package portdiff

import (
	"testing"

	"github.com/google/uuid"
	"go.arcalot.io/assert"

	"github.com/portdiff/portdiff/graph"
	tassert "github.com/portdiff/portdiff/internal/test/assert"
)

func siteOf(n graph.NodeID, dir graph.Direction, index int) graph.Site {
	return graph.Site{Node: n, Port: graph.Port{Direction: dir, Index: index}}
}

func TestNewView_RejectsNonAntichain(t *testing.T) {
	s := NewStore(testLogger())
	g, _, edges := linearChain(3)
	root, err := s.NewRoot(g, 0)
	assert.NoError(t, err)
	view, err := NewView(s, []*Diff{root})
	assert.NoError(t, err)

	_ = trivialChild(t, s, view, root, edges[0], 0)

	_, err = NewView(s, []*Diff{root, root})
	assert.Error(t, err)
}

func TestLiveSet_ReplacedAncestorNodesAreNotLive(t *testing.T) {
	s := NewStore(testLogger())
	g, nodes, _ := linearChain(3) // a->b->c
	root, err := s.NewRoot(g, 0)
	assert.NoError(t, err)
	rootView, err := NewView(s, []*Diff{root})
	assert.NoError(t, err)

	rg := graph.New()
	b1 := rg.AddNode()
	_, err = rg.AddPort(b1, graph.Incoming)
	assert.NoError(t, err)
	_, err = rg.AddPort(b1, graph.Outgoing)
	assert.NoError(t, err)

	e1 := soleEdgeOf(g, nodes[0])
	e2 := soleEdgeOf(g, nodes[1])
	boundary := []BoundaryEntry{
		{Port: SitePort(siteOf(b1, graph.Incoming, 0)), ParentEdge: NewOwned(e1, root.Identity())},
		{Port: SitePort(siteOf(b1, graph.Outgoing, 0)), ParentEdge: NewOwned(e2, root.Identity())},
	}
	child, err := s.Rewrite(rootView, rg, boundary, 0)
	assert.NoError(t, err)

	view, err := NewView(s, []*Diff{child})
	assert.NoError(t, err)

	rootLive, err := view.LiveNodes(root)
	assert.NoError(t, err)
	tassert.Len(t, rootLive, 2)
	tassert.SameSet(t, rootLive, []graph.NodeID{nodes[0], nodes[2]})

	childLive, err := view.LiveNodes(child)
	assert.NoError(t, err)
	tassert.SameSet(t, childLive, []graph.NodeID{b1})
}

func TestResolveBoundary_FindsLiveAncestorSite(t *testing.T) {
	s := NewStore(testLogger())
	g, nodes, _ := linearChain(3)
	root, err := s.NewRoot(g, 0)
	assert.NoError(t, err)
	rootView, err := NewView(s, []*Diff{root})
	assert.NoError(t, err)

	rg := graph.New()
	b1 := rg.AddNode()
	_, err = rg.AddPort(b1, graph.Incoming)
	assert.NoError(t, err)
	_, err = rg.AddPort(b1, graph.Outgoing)
	assert.NoError(t, err)

	e1 := soleEdgeOf(g, nodes[0])
	e2 := soleEdgeOf(g, nodes[1])
	boundary := []BoundaryEntry{
		{Port: SitePort(siteOf(b1, graph.Incoming, 0)), ParentEdge: NewOwned(e1, root.Identity())},
		{Port: SitePort(siteOf(b1, graph.Outgoing, 0)), ParentEdge: NewOwned(e2, root.Identity())},
	}
	child, err := s.Rewrite(rootView, rg, boundary, 0)
	assert.NoError(t, err)

	view, err := NewView(s, []*Diff{child})
	assert.NoError(t, err)
	far, err := view.ResolveBoundary(child, 0)
	assert.NoError(t, err)
	assert.Equals(t, far.Diff, root.Identity())
	assert.Equals(t, far.Value, siteOf(nodes[0], graph.Outgoing, 0))
}

func TestFromSinksWhile_SubstitutesParentsWhenPredicateFails(t *testing.T) {
	s := NewStore(testLogger())
	g, _, _, edge := pairGraph()
	root, err := s.NewRoot(g, 1)
	assert.NoError(t, err)
	rootView, err := NewView(s, []*Diff{root})
	assert.NoError(t, err)
	_ = trivialChild(t, s, rootView, root, edge, 5)

	view, err := FromSinksWhile(s, func(d *Diff) bool { return d.Value() <= 2 })
	assert.NoError(t, err)

	members := view.Members()
	assert.Equals(t, len(members), 1)
	assert.Equals(t, members[0].Identity(), root.Identity())
}

// TestOppositePorts_ResolvesInternalAndBoundarySites builds the familiar
// b1->b2 replacement chain and checks that querying a site with an
// internal partner returns that partner, while querying a boundary site
// returns the resolved far ancestor site.
func TestOppositePorts_ResolvesInternalAndBoundarySites(t *testing.T) {
	s := NewStore(testLogger())
	g, nodes, edges := linearChain(3)
	root, err := s.NewRoot(g, 0)
	assert.NoError(t, err)
	rootView, err := NewView(s, []*Diff{root})
	assert.NoError(t, err)

	rg := graph.New()
	b1 := rg.AddNode()
	b2 := rg.AddNode()
	_, err = rg.AddPort(b1, graph.Incoming)
	assert.NoError(t, err)
	_, err = rg.AddPort(b1, graph.Outgoing)
	assert.NoError(t, err)
	_, err = rg.AddPort(b2, graph.Incoming)
	assert.NoError(t, err)
	_, err = rg.AddPort(b2, graph.Outgoing)
	assert.NoError(t, err)
	assert.NoError(t, rg.LinkSites(siteOf(b1, graph.Outgoing, 0), siteOf(b2, graph.Incoming, 0)))

	boundary := []BoundaryEntry{
		{Port: SitePort(siteOf(b1, graph.Incoming, 0)), ParentEdge: NewOwned(edges[0], root.Identity())},
		{Port: SitePort(siteOf(b2, graph.Outgoing, 0)), ParentEdge: NewOwned(edges[1], root.Identity())},
	}
	d, err := s.Rewrite(rootView, rg, boundary, 0)
	assert.NoError(t, err)

	view, err := NewView(s, []*Diff{d})
	assert.NoError(t, err)

	internalOpp, err := view.OppositePorts(NewOwned(siteOf(b1, graph.Outgoing, 0), d.identity))
	assert.NoError(t, err)
	tassert.Len(t, internalOpp, 1)
	assert.Equals(t, internalOpp[0], NewOwned(siteOf(b2, graph.Incoming, 0), d.identity))

	boundaryOpp, err := view.OppositePorts(NewOwned(siteOf(b1, graph.Incoming, 0), d.identity))
	assert.NoError(t, err)
	tassert.Len(t, boundaryOpp, 1)
	assert.Equals(t, boundaryOpp[0], NewOwned(siteOf(nodes[0], graph.Outgoing, 0), root.Identity()))
}

// TestOppositePorts_DeduplicatesConvergingEntries exercises the dedup this
// method documents: two boundary entries on the same site that both
// resolve to the identical ancestor site (a diff built directly, since
// Rewrite rejects a site named by two entries) must collapse to a single
// result, not one per entry.
func TestOppositePorts_DeduplicatesConvergingEntries(t *testing.T) {
	s := NewStore(testLogger())
	g, a, _, edge := pairGraph()
	root, err := s.NewRoot(g, 0)
	assert.NoError(t, err)

	rg := graph.New()
	n := rg.AddNode()
	_, err = rg.AddPort(n, graph.Incoming)
	assert.NoError(t, err)
	site := siteOf(n, graph.Incoming, 0)

	d := &Diff{
		identity:    DiffID(uuid.New()),
		replacement: rg,
		boundary: []BoundaryEntry{
			{Port: SitePort(site), ParentEdge: NewOwned(edge, root.Identity())},
			{Port: SitePort(site), ParentEdge: NewOwned(edge, root.Identity())},
		},
		parents: []ParentRef{{diff: root}},
	}
	assert.NoError(t, s.register(d))

	view, err := NewView(s, []*Diff{d})
	assert.NoError(t, err)

	opp, err := view.OppositePorts(NewOwned(site, d.identity))
	assert.NoError(t, err)
	tassert.Len(t, opp, 1)
	assert.Equals(t, opp[0], NewOwned(siteOf(a, graph.Outgoing, 0), root.Identity()))
}

// soleEdgeOf returns the edge occupying a's sole outgoing port.
func soleEdgeOf(g *graph.Graph, a graph.NodeID) graph.EdgeID {
	e, _, err := g.EdgeAt(siteOf(a, graph.Outgoing, 0))
	if err != nil {
		panic(err)
	}
	return e
}
