package assert

import (
	"sort"
	"testing"
)

// SameSet checks that got and want contain the same elements, ignoring
// order and duplicates.
func SameSet[T comparable](t *testing.T, got []T, want []T) {
	gotSet := toSet(got)
	wantSet := toSet(want)
	if len(gotSet) != len(wantSet) {
		t.Fatalf("expected %d distinct element(s), got %d (want %v, got %v)", len(wantSet), len(gotSet), want, got)
	}
	for v := range wantSet {
		if _, ok := gotSet[v]; !ok {
			t.Fatalf("missing expected element %v (want %v, got %v)", v, want, got)
		}
	}
}

func toSet[T comparable](items []T) map[T]struct{} {
	s := make(map[T]struct{}, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Subset checks that every element of got appears in want.
func Subset[T comparable](t *testing.T, got []T, want []T) {
	wantSet := toSet(want)
	for _, v := range got {
		if _, ok := wantSet[v]; !ok {
			t.Fatalf("unexpected element %v not in %v", v, want)
		}
	}
}

// Len checks that the given slice has exactly n elements.
func Len[T any](t *testing.T, items []T, n int) {
	if len(items) != n {
		t.Fatalf("expected %d element(s), got %d: %v", n, len(items), items)
	}
}

// SortedStrings returns a sorted copy of ss, for building deterministic
// failure messages and comparisons over otherwise-unordered ID slices.
func SortedStrings(ss []string) []string {
	out := append([]string(nil), ss...)
	sort.Strings(out)
	return out
}
