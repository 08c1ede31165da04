package index

import (
	"sort"

	"github.com/untoldecay/gram/internal/graph"
)

// candidate accumulates the raw ingredients of an overlap score against one
// other id before the final division.
type candidate struct {
	id           graph.Id
	intersection int
	matchSize    int
}

// lookup finds every id whose stored block vector shares at least one gram
// with q, accumulating intersection = sum over grams of min(q_occurs,
// c_occurs) and each candidate's stored Count (spec.md §4.6, "Symmetric
// overlap").
func lookup(store *graph.Store, q []uint32) (map[graph.Id]*candidate, error) {
	qOcc := occurrences(q)
	out := make(map[graph.Id]*candidate)
	for g, qCount := range qOcc {
		occ, err := store.GetGrams(g)
		if err != nil {
			return nil, err
		}
		for id, cCount := range occ {
			m := qCount
			if cCount < m {
				m = cCount
			}
			c, ok := out[id]
			if !ok {
				c = &candidate{id: id}
				out[id] = c
			}
			c.intersection += m
		}
	}
	for id, c := range out {
		size, ok, err := store.GetCount(id)
		if err != nil {
			return nil, err
		}
		if ok {
			c.matchSize = size
		}
	}
	return out, nil
}

// SymmetricOverlaps scores every candidate sharing a gram with source's
// vector, using score = intersection / min(sourceSize, matchSize). This is
// the form used to maintain stored Overlaps[id] entries.
func SymmetricOverlaps(store *graph.Store, self graph.Id, sourceVec []uint32) ([]graph.Overlap, error) {
	cands, err := lookup(store, sourceVec)
	if err != nil {
		return nil, err
	}
	sourceSize := len(sourceVec)
	var out []graph.Overlap
	for id, c := range cands {
		if id == self {
			continue
		}
		denom := sourceSize
		if c.matchSize < denom {
			denom = c.matchSize
		}
		if denom == 0 {
			continue
		}
		score := float64(c.intersection) / float64(denom)
		if score <= 0.5 {
			continue
		}
		out = append(out, graph.Overlap{Id: id, SourceSize: sourceSize, MatchSize: c.matchSize, Intersection: c.intersection})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Intersection != out[j].Intersection {
			return out[i].Intersection > out[j].Intersection
		}
		return out[i].Id.Less(out[j].Id)
	})
	return out, nil
}

// trimForSearch trims a source vector on both ends by min((len-1)/2, 3)
// grams, matching the leading/trailing zero padding removed for asymmetric
// lookups (spec.md §4.6).
func trimForSearch(vec []uint32) []uint32 {
	n := len(vec)
	if n == 0 {
		return vec
	}
	trim := (n - 1) / 2
	if trim > 3 {
		trim = 3
	}
	if 2*trim >= n {
		return vec
	}
	return vec[trim : n-trim]
}

// SearchResult is one scored hit from Search or AsymmetricOverlaps.
type SearchResult struct {
	Id           graph.Id
	Score        float64
	Intersection int
	SourceSize   int
	MatchSize    int
}

// AsymmetricOverlaps scores candidates with match_count = source_count
// (the query's own size), after trimming the query vector's padding.
func AsymmetricOverlaps(store *graph.Store, sourceVec []uint32) ([]SearchResult, error) {
	trimmed := trimForSearch(sourceVec)
	cands, err := lookup(store, trimmed)
	if err != nil {
		return nil, err
	}
	sourceSize := len(trimmed)
	var out []SearchResult
	for id, c := range cands {
		if sourceSize == 0 {
			continue
		}
		score := float64(c.intersection) / float64(sourceSize)
		out = append(out, SearchResult{Id: id, Score: score, Intersection: c.intersection, SourceSize: sourceSize, MatchSize: c.matchSize})
	}
	return out, nil
}

// Search implements spec.md's search(term): overlaps with score >= 0.3,
// sorted by (intersection desc, source-size desc, match-size desc).
func Search(store *graph.Store, term string) ([]SearchResult, error) {
	vec := Grams([]byte(term))
	results, err := AsymmetricOverlaps(store, vec)
	if err != nil {
		return nil, err
	}
	var out []SearchResult
	for _, r := range results {
		if r.Score >= 0.3 {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Intersection != out[j].Intersection {
			return out[i].Intersection > out[j].Intersection
		}
		if out[i].SourceSize != out[j].SourceSize {
			return out[i].SourceSize > out[j].SourceSize
		}
		return out[i].MatchSize > out[j].MatchSize
	})
	return out, nil
}
