package portdiff

import (
	"fmt"

	"github.com/google/uuid"
	log "go.arcalot.io/log/v2"

	"github.com/portdiff/portdiff/graph"
	"github.com/portdiff/portdiff/internal/dag"
)

// Store owns a diff DAG: the directed acyclic graph of diffs, with an edge
// child -> parent for each of a diff's parents. Diff.Parents() already
// carries direct pointers to parent diffs for fast upward traversal; the
// internal dag is the reverse (children) index, recomputed on every
// insertion.
type Store struct {
	dag    *dag.Graph[*Diff]
	logger log.Logger
}

// NewStore creates an empty diff store.
func NewStore(logger log.Logger) *Store {
	if logger == nil {
		logger = log.New(log.Config{
			Level:       log.LevelInfo,
			Destination: log.DestinationStdout,
		})
	}
	return &Store{
		dag:    dag.New[*Diff](),
		logger: logger,
	}
}

// NewRoot creates a diff with no boundary and no parents: a root in the
// diff hierarchy, wrapping a concrete graph as-is.
func (s *Store) NewRoot(g *graph.Graph, value int) (*Diff, error) {
	d := &Diff{
		identity:    DiffID(uuid.New()),
		replacement: g,
		value:       value,
	}
	if err := s.register(d); err != nil {
		return nil, err
	}
	s.logger.Debugf("created root diff %s", d.identity)
	return d, nil
}

// register inserts a freshly built diff into the DAG and wires its
// child -> parent connections. It is the only place the DAG is mutated.
func (s *Store) register(d *Diff) error {
	node, err := s.dag.AddNode(d.identity.String(), d)
	if err != nil {
		return fmt.Errorf("bug: diff identity collision on %s (%w)", d.identity, err)
	}
	for _, p := range d.parents {
		if err := node.Connect(p.diff.identity.String()); err != nil {
			return fmt.Errorf("failed to connect diff %s to parent %s (%w)", d.identity, p.diff.identity, err)
		}
	}
	return nil
}

// Get looks up a diff by identity.
func (s *Store) Get(id DiffID) (*Diff, error) {
	n, err := s.dag.GetNodeByID(id.String())
	if err != nil {
		return nil, fmt.Errorf("diff %s not found in store (%w)", id, err)
	}
	return n.Item(), nil
}

// Children returns the diffs that directly replace a region of d.
func (s *Store) Children(d *Diff) ([]*Diff, error) {
	n, err := s.dag.GetNodeByID(d.identity.String())
	if err != nil {
		return nil, fmt.Errorf("diff %s not found in store (%w)", d.identity, err)
	}
	children := n.Children()
	result := make([]*Diff, 0, len(children))
	for _, child := range children {
		result = append(result, child.Item())
	}
	return result, nil
}

// Sinks returns the current leaves of the DAG: the most-rewritten diffs,
// i.e. those with no recorded children.
func (s *Store) Sinks() []*Diff {
	nodes := s.dag.Sinks()
	result := make([]*Diff, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, n.Item())
	}
	return result
}

// Roots returns the original graphs: diffs with no parents.
func (s *Store) Roots() []*Diff {
	nodes := s.dag.Roots()
	result := make([]*Diff, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, n.Item())
	}
	return result
}

// AncestorsOf returns the transitive closure of d's ancestors, including d
// itself, keyed by identity.
func AncestorsOf(d *Diff) map[DiffID]*Diff {
	result := map[DiffID]*Diff{d.identity: d}
	var visit func(*Diff)
	visit = func(cur *Diff) {
		for _, p := range cur.parents {
			if _, seen := result[p.diff.identity]; seen {
				continue
			}
			result[p.diff.identity] = p.diff
			visit(p.diff)
		}
	}
	visit(d)
	return result
}

// DescendantsOf returns the transitive closure of d's descendants in the
// store, including d itself, keyed by identity.
func (s *Store) DescendantsOf(d *Diff) (map[DiffID]*Diff, error) {
	result := map[DiffID]*Diff{d.identity: d}
	var visit func(*Diff) error
	visit = func(cur *Diff) error {
		children, err := s.Children(cur)
		if err != nil {
			return err
		}
		for _, c := range children {
			if _, seen := result[c.identity]; seen {
				continue
			}
			result[c.identity] = c
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(d); err != nil {
		return nil, err
	}
	return result, nil
}

// MapValue produces a new Store with the same DAG structure, but with
// every diff's Value passed through f. Every diff in the result is
// assigned a fresh identity, keeping the invariant that identity implies
// a fixed (graph, boundary, parents) triple.
func (s *Store) MapValue(f func(int) int) (*Store, error) {
	newStore := NewStore(s.logger)
	visited := map[DiffID]*Diff{}

	var visit func(*Diff) (*Diff, error)
	visit = func(d *Diff) (*Diff, error) {
		if nd, ok := visited[d.identity]; ok {
			return nd, nil
		}
		newParents := make([]ParentRef, len(d.parents))
		remap := map[DiffID]DiffID{}
		for i, p := range d.parents {
			np, err := visit(p.diff)
			if err != nil {
				return nil, err
			}
			newParents[i] = ParentRef{diff: np, region: p.region}
			remap[p.diff.identity] = np.identity
		}
		newBoundary := make([]BoundaryEntry, len(d.boundary))
		for i, b := range d.boundary {
			nb := b
			if newID, ok := remap[b.ParentEdge.Diff]; ok {
				nb.ParentEdge.Diff = newID
			}
			newBoundary[i] = nb
		}
		nd := &Diff{
			identity:    DiffID(uuid.New()),
			replacement: d.replacement,
			boundary:    newBoundary,
			parents:     newParents,
			value:       f(d.value),
		}
		if err := newStore.register(nd); err != nil {
			return nil, err
		}
		visited[d.identity] = nd
		return nd, nil
	}

	for _, sink := range s.Sinks() {
		if _, err := visit(sink); err != nil {
			return nil, err
		}
	}
	return newStore, nil
}
