package portdiff

import (
	"encoding/json"
	"fmt"
	"sort"

	log "go.arcalot.io/log/v2"

	"github.com/portdiff/portdiff/graph"
)

// serialParentRef shadows ParentRef: diff references serialize by
// identity and get resolved back to a pointer on load.
type serialParentRef struct {
	Diff   DiffID        `json:"diff"`
	Region *graph.Region `json:"region"`
}

// serialDiff shadows Diff for marshaling.
type serialDiff struct {
	Identity    DiffID            `json:"identity"`
	Replacement *graph.Graph      `json:"replacement"`
	Boundary    []BoundaryEntry   `json:"boundary"`
	Parents     []serialParentRef `json:"parents"`
	Value       int               `json:"value"`
}

type serialStore struct {
	Diffs []serialDiff `json:"diffs"`
}

// MarshalDAG serializes every diff reachable from the store's current
// sinks: their full ancestor closure.
func MarshalDAG(s *Store) ([]byte, error) {
	all := map[DiffID]*Diff{}
	for _, sink := range s.Sinks() {
		for id, d := range AncestorsOf(sink) {
			all[id] = d
		}
	}

	ids := make([]DiffID, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	out := serialStore{Diffs: make([]serialDiff, 0, len(ids))}
	for _, id := range ids {
		d := all[id]
		sd := serialDiff{
			Identity:    d.identity,
			Replacement: d.replacement,
			Boundary:    d.boundary,
			Value:       d.value,
		}
		for _, p := range d.parents {
			sd.Parents = append(sd.Parents, serialParentRef{Diff: p.diff.identity, Region: p.region})
		}
		out.Diffs = append(out.Diffs, sd)
	}
	return json.Marshal(out)
}

// UnmarshalDAG rebuilds a Store from bytes produced by MarshalDAG. Diff
// identities and their (graph, boundary, parents) content survive the
// round-trip unchanged.
func UnmarshalDAG(logger log.Logger, data []byte) (*Store, error) {
	var in serialStore
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}

	byID := make(map[DiffID]*Diff, len(in.Diffs))
	parentSpecs := make(map[DiffID][]serialParentRef, len(in.Diffs))
	for _, sd := range in.Diffs {
		byID[sd.Identity] = &Diff{
			identity:    sd.Identity,
			replacement: sd.Replacement,
			boundary:    sd.Boundary,
			value:       sd.Value,
		}
		parentSpecs[sd.Identity] = sd.Parents
	}
	for id, d := range byID {
		for _, ps := range parentSpecs[id] {
			parentDiff, ok := byID[ps.Diff]
			if !ok {
				return nil, fmt.Errorf("diff %s references unknown parent %s", id, ps.Diff)
			}
			d.parents = append(d.parents, ParentRef{diff: parentDiff, region: ps.Region})
		}
	}

	store := NewStore(logger)
	registered := map[DiffID]struct{}{}
	var register func(d *Diff) error
	register = func(d *Diff) error {
		if _, ok := registered[d.identity]; ok {
			return nil
		}
		for _, p := range d.parents {
			if err := register(p.diff); err != nil {
				return err
			}
		}
		if err := store.register(d); err != nil {
			return err
		}
		registered[d.identity] = struct{}{}
		return nil
	}
	for _, d := range byID {
		if err := register(d); err != nil {
			return nil, err
		}
	}
	return store, nil
}
