package aggregate

import (
	"github.com/kb9wtx/spotlake/pkg/spot"
)

// FromSpots groups deduplicated spots by (mode, band, entity) and returns
// one Base row per group, sorted by key for deterministic output. Dedup
// happens in Dedup below, before grouping — this function assumes its input
// already has at most one spot per spotId.
func FromSpots(spots []spot.NormalizedSpot) []Base {
	groups := newGroupIndex()

	for _, s := range spots {
		bd := groups.get(Key{Mode: s.Mode, Band: s.Band, Entity: s.Entity})

		bd.addSpotCount(1)
		bd.addActivator(s.Activator)
		bd.addPark(s.Reference)
		bd.addActivation(s.Activator + "|" + s.Reference)
		if s.State != nil {
			bd.addStateActivator(*s.State + "|" + s.Activator)
		}
	}

	return groups.finishSorted()
}

// Dedup removes duplicate spots by spotId, keeping the first occurrence.
// Upstream spot records are immutable for a given id, so first-wins and
// last-wins are equivalent in practice; first-wins is used here since it
// doesn't require buffering the whole input to find the last occurrence.
func Dedup(spots []spot.NormalizedSpot) []spot.NormalizedSpot {
	seen := make(map[int64]struct{}, len(spots))
	out := make([]spot.NormalizedSpot, 0, len(spots))
	for _, s := range spots {
		if _, ok := seen[s.SpotID]; ok {
			continue
		}
		seen[s.SpotID] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Merge combines child rollup rows into parent rows, grouped by the same
// composite key. spot_count is summed; every set-valued field is unioned;
// cardinalities are always recomputed from the unioned sets, never summed
// from the children — this is what makes the merge commutative, associative,
// and safe to run over children in any order or partition.
func Merge(children ...Base) []Base {
	groups := newGroupIndex()

	for _, child := range children {
		bd := groups.get(child.Key())

		bd.addSpotCount(child.SpotCount)
		for _, a := range child.Activators {
			bd.addActivator(a)
		}
		for _, p := range child.Parks {
			bd.addPark(p)
		}
		for _, a := range child.Activations {
			bd.addActivation(a)
		}
		for _, sa := range child.StateActivators {
			bd.addStateActivator(sa)
		}
	}

	return groups.finishSorted()
}
