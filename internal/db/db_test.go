package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/untoldecay/gram/internal/graph"
	"github.com/untoldecay/gram/internal/kvstore"
)

// TestAddAndSearch exercises spec.md scenario 3: add(List(Chain, [Text("f"),
// Text("o"), Text("o")])) yields an id; wrapped into a page; search("fo")
// returns a single hit with score > 0.7.
func TestAddAndSearch(t *testing.T) {
	gramdb, err := Open(kvstore.NewMemoryMedium())
	require.NoError(t, err)

	tx := gramdb.Begin()
	fooId, err := tx.Add(graph.NewList(graph.Chain, []graph.Child{
		graph.Eager(mustText(t, "f")),
		graph.Eager(mustText(t, "o")),
		graph.Eager(mustText(t, "o")),
	}))
	require.NoError(t, err)

	_, err = tx.Add(graph.NewList(graph.Page, []graph.Child{graph.Lazy(fooId)}))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx2 := gramdb.Begin()
	results, err := tx2.Search("fo")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, fooId, results[0].Id)
	require.Greater(t, results[0].Score, 0.7)
}

func mustText(t *testing.T, s string) graph.Node {
	t.Helper()
	n, err := graph.TextLine(s)
	require.NoError(t, err)
	return n
}

func TestAddRecordsMirroredOverlaps(t *testing.T) {
	gramdb, err := Open(kvstore.NewMemoryMedium())
	require.NoError(t, err)

	tx := gramdb.Begin()
	aId, err := tx.Add(mustText(t, "hello world"))
	require.NoError(t, err)
	_, err = tx.Add(graph.NewList(graph.Page, []graph.Child{graph.Lazy(aId)}))
	require.NoError(t, err)

	bId, err := tx.Add(mustText(t, "hello world"))
	require.NoError(t, err)
	_, err = tx.Add(graph.NewList(graph.Page, []graph.Child{graph.Lazy(bId)}))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx2 := gramdb.Begin()
	overlaps, err := tx2.Store().GetOverlaps(aId)
	require.NoError(t, err)
	require.Len(t, overlaps, 1)
	require.Equal(t, bId, overlaps[0].Id)
}
