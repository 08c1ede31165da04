package index

import "github.com/untoldecay/gram/internal/graph"

// Reindex runs the full triggering sequence of spec.md §4.6 for a mutation
// rooted at id: it builds the after-state vectors, diffs them against the
// caller-supplied before-state, updates Count and Grams, recomputes Overlaps
// (with mirror entries) for every id whose vector changed, and then — if
// id's own top-level vector changed — walks upward through id's parents
// re-indexing ancestors up to the enclosing block (spec.md §4.6 "Triggering"
// step 3; assemblage_db/src/index.rs's update_parent_index).
//
// Swap captures before by calling BuildVectors before applying its
// mutation, and passes it here after; add, restore and import pass nil. A
// nil before is treated as id having no prior vector at all.
func Reindex(store *graph.Store, id graph.Id, before *Vectors) error {
	if before == nil {
		before = NewVectors()
	}
	after, err := BuildVectors(store, id)
	if err != nil {
		return err
	}

	if err := applyVectorDiff(store, before, after); err != nil {
		return err
	}

	oldAll, hadAll := before.All[id]
	newAll := after.All[id]
	if hadAll && vectorsEqual(oldAll, newAll) {
		return nil
	}
	return updateParentIndex(store, id, before, after)
}

// applyVectorDiff diffs before.Blocks against after.Blocks, stores the
// resulting Count/Grams deltas, and recomputes Overlaps (with mirrors) for
// every id whose block vector changed. Safe to call repeatedly against a
// growing before/after pair: Diff and ApplyDiff deal in absolute occurrence
// counts, so re-applying an already-applied delta is a no-op.
func applyVectorDiff(store *graph.Store, before, after *Vectors) error {
	deltas := Diff(before.Blocks, after.Blocks)
	if len(deltas) == 0 {
		return nil
	}

	changed := make(map[graph.Id]bool)
	for _, d := range deltas {
		changed[d.Id] = true
	}
	counts := make(map[graph.Id]int, len(changed))
	for cid := range changed {
		if vec, ok := after.Blocks[cid]; ok {
			counts[cid] = len(vec)
		}
	}
	if err := ApplyDiff(store, deltas, counts); err != nil {
		return err
	}

	return recomputeOverlaps(store, after, changed)
}

// updateParentIndex walks upward from id through its current parents,
// extending before/after at each newly-seen parent and re-applying the
// vector diff there. A parent that is itself a block absorbs the change and
// stops the walk along that branch; a parent that is a span just relays the
// mutation further up to its own parents.
func updateParentIndex(store *graph.Store, id graph.Id, before, after *Vectors) error {
	queries := graph.NewQueries(store)
	stack, err := queries.Parents(id)
	if err != nil {
		return err
	}

	for len(stack) > 0 {
		pair := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		pid := pair.Parent

		_, inBefore := before.All[pid]
		_, inAfter := after.All[pid]
		if inBefore && inAfter {
			// Already folded into both accumulators by an earlier branch of
			// this same walk; Diff will no longer report it as changed.
			continue
		}

		if _, err := ExtendVectors(store, before, pid); err != nil {
			return err
		}
		if _, err := ExtendVectors(store, after, pid); err != nil {
			return err
		}
		if err := applyVectorDiff(store, before, after); err != nil {
			return err
		}

		node, ok, err := store.GetNode(pid)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		isBlock, err := queries.IsBlock(node)
		if err != nil {
			return err
		}
		if isBlock {
			continue
		}

		grandparents, err := queries.Parents(pid)
		if err != nil {
			return err
		}
		stack = append(stack, grandparents...)
	}
	return nil
}

// recomputeOverlaps rebuilds Overlaps[id] for every changed id, and keeps
// the mirror entries at the far end of each pair in sync: newly-added pairs
// get a swapped-size mirror inserted, newly-removed pairs get their mirror
// dropped (spec.md I5, §4.6 "Overlap persistence").
func recomputeOverlaps(store *graph.Store, vectors *Vectors, changed map[graph.Id]bool) error {
	for id := range changed {
		vec, ok := vectors.Blocks[id]
		if !ok {
			// id dropped out of the index entirely; its own Overlaps entry no
			// longer applies, but removing every mirror would require a full
			// reverse scan. Its Overlaps entry and the mirrors pointing at it
			// are left as they are.
			continue
		}

		before, err := store.GetOverlaps(id)
		if err != nil {
			return err
		}
		after, err := SymmetricOverlaps(store, id, vec)
		if err != nil {
			return err
		}

		beforeSet := make(map[graph.Id]graph.Overlap, len(before))
		for _, o := range before {
			beforeSet[o.Id] = o
		}
		afterSet := make(map[graph.Id]graph.Overlap, len(after))
		for _, o := range after {
			afterSet[o.Id] = o
		}

		for other, o := range afterSet {
			if _, existed := beforeSet[other]; existed {
				continue
			}
			if err := addMirror(store, other, id, o); err != nil {
				return err
			}
		}
		for other := range beforeSet {
			if _, stillThere := afterSet[other]; stillThere {
				continue
			}
			if err := removeMirror(store, other, id); err != nil {
				return err
			}
		}

		if err := store.PutOverlaps(id, after); err != nil {
			return err
		}
	}
	return nil
}

func addMirror(store *graph.Store, at, source graph.Id, o graph.Overlap) error {
	mirror := graph.Overlap{Id: source, SourceSize: o.MatchSize, MatchSize: o.SourceSize, Intersection: o.Intersection}
	overlaps, err := store.GetOverlaps(at)
	if err != nil {
		return err
	}
	for i, existing := range overlaps {
		if existing.Id == source {
			overlaps[i] = mirror
			return store.PutOverlaps(at, overlaps)
		}
	}
	overlaps = append(overlaps, mirror)
	return store.PutOverlaps(at, overlaps)
}

func removeMirror(store *graph.Store, at, source graph.Id) error {
	overlaps, err := store.GetOverlaps(at)
	if err != nil {
		return err
	}
	out := overlaps[:0:0]
	for _, o := range overlaps {
		if o.Id != source {
			out = append(out, o)
		}
	}
	return store.PutOverlaps(at, out)
}
