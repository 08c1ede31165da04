package index

import "github.com/untoldecay/gram/internal/graph"

// occurrences counts each gram's multiplicity within a vector.
func occurrences(vec []uint32) map[uint32]int {
	out := make(map[uint32]int, len(vec))
	for _, g := range vec {
		out[g]++
	}
	return out
}

// GramDelta is one entry of the diff between an id's old and new block
// vectors: the new occurrence count for gram in id's vector, or 0 if the
// gram no longer appears at all.
type GramDelta struct {
	Gram        uint32
	Id          graph.Id
	Occurrences int
}

// Diff computes the symmetric-difference-by-multiplicity between oldBlocks
// and newBlocks (spec.md §4.6: "for every id whose vector changed, for
// every gram in the symmetric difference by multiplicity, emit (gram, id,
// new_occurrences_or_zero)").
func Diff(oldBlocks, newBlocks map[graph.Id][]uint32) []GramDelta {
	var out []GramDelta
	touched := make(map[graph.Id]bool)
	for id := range oldBlocks {
		touched[id] = true
	}
	for id := range newBlocks {
		touched[id] = true
	}

	for id := range touched {
		oldVec, hadOld := oldBlocks[id]
		newVec, hasNew := newBlocks[id]
		oldOcc := occurrences(oldVec)
		newOcc := occurrences(newVec)
		if hadOld && hasNew && vectorsEqual(oldVec, newVec) {
			continue
		}
		grams := make(map[uint32]bool)
		for g := range oldOcc {
			grams[g] = true
		}
		for g := range newOcc {
			grams[g] = true
		}
		for g := range grams {
			if oldOcc[g] == newOcc[g] {
				continue
			}
			out = append(out, GramDelta{Gram: g, Id: id, Occurrences: newOcc[g]})
		}
	}
	return out
}

func vectorsEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ApplyDiff updates each affected Grams[g] entry and the Count[id] entries
// for every id whose vector changed.
func ApplyDiff(store *graph.Store, deltas []GramDelta, counts map[graph.Id]int) error {
	byGram := make(map[uint32][]GramDelta)
	for _, d := range deltas {
		byGram[d.Gram] = append(byGram[d.Gram], d)
	}
	for g, ds := range byGram {
		occ, err := store.GetGrams(g)
		if err != nil {
			return err
		}
		if occ == nil {
			occ = make(graph.GramOccurrences)
		}
		for _, d := range ds {
			if d.Occurrences == 0 {
				delete(occ, d.Id)
			} else {
				occ[d.Id] = d.Occurrences
			}
		}
		if err := store.PutGrams(g, occ); err != nil {
			return err
		}
	}
	for id, count := range counts {
		if err := store.PutCount(id, count); err != nil {
			return err
		}
	}
	return nil
}
