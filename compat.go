package portdiff

import (
	"github.com/portdiff/portdiff/graph"
)

// entryRegion names, for some diff d and some ancestor A, the region of A
// consumed on the path from A down towards d, tagged with the identity of
// the direct child of A that path passes through. Two paths that pass
// through the same entry diff are the same branch and never conflict;
// paths through different entry diffs must have disjoint regions. Rewrite
// rejects only partial overlaps between siblings and accepts one region
// containing the other, so AreCompatible checks disjointness itself, for
// siblings and for diffs that meet only in a more distant ancestor.
type entryRegion struct {
	entryDiff DiffID
	region    *graph.Region
}

// regionsInAncestor collects every entryRegion attributing a path from d up
// to ancestor. d == ancestor yields no entries: a diff does not consume
// anything from itself.
func regionsInAncestor(d, ancestor *Diff) []entryRegion {
	if d.identity == ancestor.identity {
		return nil
	}
	var result []entryRegion
	for _, p := range d.parents {
		if p.diff.identity == ancestor.identity {
			result = append(result, entryRegion{entryDiff: d.identity, region: p.region})
			continue
		}
		if _, ok := AncestorsOf(p.diff)[ancestor.identity]; ok {
			for _, sub := range regionsInAncestor(p.diff, ancestor) {
				result = append(result, sub)
			}
		}
	}
	return result
}

// isAntichain reports whether no diff in the set is an ancestor of another.
func isAntichain(diffs []*Diff) (bool, DiffID, DiffID) {
	closures := make([]map[DiffID]*Diff, len(diffs))
	for i, d := range diffs {
		closures[i] = AncestorsOf(d)
	}
	for i := range diffs {
		for j := range diffs {
			if i == j {
				continue
			}
			if _, ok := closures[j][diffs[i].identity]; ok {
				// diffs[i] is an ancestor of diffs[j] (or equal).
				return false, diffs[i].identity, diffs[j].identity
			}
		}
	}
	return true, DiffID{}, DiffID{}
}

// AreCompatible reports whether diffs forms a valid antichain in the
// ancestor order with pairwise-disjoint regions in every shared ancestor,
// checked transitively across the full ancestor closure of the set, not
// just immediate parents.
func AreCompatible(diffs []*Diff) bool {
	ok, _, _ := isAntichain(diffs)
	if !ok {
		return false
	}
	if len(diffs) < 2 {
		return true
	}

	closures := make([]map[DiffID]*Diff, len(diffs))
	for i, d := range diffs {
		closures[i] = AncestorsOf(d)
	}

	// Every diff appearing in two or more closures is a shared ancestor
	// whose regions must be checked.
	sharedCount := map[DiffID]*Diff{}
	seenIn := map[DiffID]int{}
	for _, closure := range closures {
		for id, d := range closure {
			seenIn[id]++
			sharedCount[id] = d
		}
	}

	for id, ancestor := range sharedCount {
		if seenIn[id] < 2 {
			continue
		}
		var entriesPerDiff [][]entryRegion
		for _, d := range diffs {
			if _, has := closures[indexOfDiff(diffs, d)][id]; !has {
				entriesPerDiff = append(entriesPerDiff, nil)
				continue
			}
			entriesPerDiff = append(entriesPerDiff, regionsInAncestor(d, ancestor))
		}
		for i := 0; i < len(entriesPerDiff); i++ {
			for j := i + 1; j < len(entriesPerDiff); j++ {
				if conflicts(entriesPerDiff[i], entriesPerDiff[j]) {
					return false
				}
			}
		}
	}
	return true
}

func indexOfDiff(diffs []*Diff, d *Diff) int {
	for i, candidate := range diffs {
		if candidate.identity == d.identity {
			return i
		}
	}
	return -1
}

func conflicts(a, b []entryRegion) bool {
	for _, ea := range a {
		for _, eb := range b {
			if ea.entryDiff == eb.entryDiff {
				continue
			}
			if ea.region.Intersects(eb.region) {
				return true
			}
		}
	}
	return false
}
