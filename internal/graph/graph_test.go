package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/untoldecay/gram/internal/kvstore"
)

func newGraph(t *testing.T) (*kvstore.Engine, *Store, *Graph) {
	t.Helper()
	medium := kvstore.NewMemoryMedium()
	engine, err := kvstore.Open(medium)
	require.NoError(t, err)
	snap := engine.NewSnapshot()
	store := NewStore(snap)
	g := NewGraph(store)
	require.NoError(t, g.Open())
	require.NoError(t, snap.Commit())
	return engine, store, g
}

func withFreshSnapshot(t *testing.T, engine *kvstore.Engine) (*Store, *Graph) {
	t.Helper()
	snap := engine.NewSnapshot()
	store := NewStore(snap)
	return store, NewGraph(store)
}

func TestOpenWritesEmptyRoot(t *testing.T) {
	engine, _, _ := newGraph(t)
	store, _ := withFreshSnapshot(t, engine)
	root, ok, err := store.GetNode(Root)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, KindList, root.Kind)
	require.Equal(t, Page, root.Layout)
	require.Empty(t, root.Children)
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	id1, err := NewId()
	require.NoError(t, err)
	styled := NewStyled(Styles{Class: SpanStyles, Span: []SpanStyle{Bold, Italic}}, Eager(Node{Kind: KindText, Line: "hi"}))
	// materialize the eager child to lazy, as persistence requires
	styled.Child = &Child{IsLazy: true, Id: id1}

	raw, err := Marshal(styled)
	require.NoError(t, err)
	decoded, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Equal(t, KindStyled, decoded.Kind)
	require.Equal(t, []SpanStyle{Bold, Italic}, decoded.Styles.Span)
	require.Equal(t, id1, decoded.Child.Id)
}

func TestAddBuildsParentsAndChildLookup(t *testing.T) {
	engine, store, g := newGraph(t)
	_ = store

	fooId, err := g.Add(NewList(Chain, []Child{
		Eager(mustText(t, "f")),
		Eager(mustText(t, "o")),
		Eager(mustText(t, "o")),
	}))
	require.NoError(t, err)
	require.NotEqual(t, Id{}, fooId)
	require.NoError(t, store.Snapshot.Commit())

	store2, _ := withFreshSnapshot(t, engine)
	node, ok, err := store2.GetNode(fooId)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, node.Children, 3)

	for _, c := range node.Children {
		require.True(t, c.IsLazy)
		parents, err := store2.GetParents(c.Id)
		require.NoError(t, err)
		require.Len(t, parents, 1)
		require.Equal(t, fooId, parents[0].Parent)
	}
}

func mustText(t *testing.T, s string) Node {
	t.Helper()
	n, err := TextLine(s)
	require.NoError(t, err)
	return n
}

// TestBeforeAfterAcrossMultipleParents exercises spec.md scenario 4: build
// [a,b,c] as children of P1 and [a,b,x] as children of P2; before(b)={a},
// after(b)={c,x}, parents(b)={(P1,1),(P2,1)}.
func TestBeforeAfterAcrossMultipleParents(t *testing.T) {
	engine, store, g := newGraph(t)
	snap := store.Snapshot

	aId, err := g.Add(mustText(t, "a"))
	require.NoError(t, err)
	bId, err := g.Add(mustText(t, "b"))
	require.NoError(t, err)
	cId, err := g.Add(mustText(t, "c"))
	require.NoError(t, err)
	xId, err := g.Add(mustText(t, "x"))
	require.NoError(t, err)

	p1Id, err := g.Add(NewList(Page, []Child{Lazy(aId), Lazy(bId), Lazy(cId)}))
	require.NoError(t, err)
	p2Id, err := g.Add(NewList(Page, []Child{Lazy(aId), Lazy(bId), Lazy(xId)}))
	require.NoError(t, err)
	require.NoError(t, snap.Commit())

	store2, _ := withFreshSnapshot(t, engine)
	q := NewQueries(store2)

	before, err := q.Before(bId)
	require.NoError(t, err)
	require.Equal(t, map[Id]bool{aId: true}, before)

	after, err := q.After(bId)
	require.NoError(t, err)
	require.Equal(t, map[Id]bool{cId: true, xId: true}, after)

	parents, err := q.Parents(bId)
	require.NoError(t, err)
	require.ElementsMatch(t, []ParentPair{{Parent: p1Id, Index: 1}, {Parent: p2Id, Index: 1}}, parents)
}

// TestSwapOrphansAndRestore exercises spec.md scenario 5: swap(P, List(Page,
// [X])) where P previously contained an unshared subtree S; S is
// marked-removed; get_in_trash still resolves it; restore brings it back
// live with an empty parent set (restore re-links children, not parents).
func TestSwapOrphansAndRestore(t *testing.T) {
	engine, store, g := newGraph(t)
	snap := store.Snapshot

	sId, err := g.Add(mustText(t, "s"))
	require.NoError(t, err)
	xId, err := g.Add(mustText(t, "x"))
	require.NoError(t, err)
	pId, err := g.Add(NewList(Page, []Child{Lazy(sId)}))
	require.NoError(t, err)
	require.NoError(t, snap.Commit())

	store2, g2 := withFreshSnapshot(t, engine)
	require.NoError(t, g2.Swap(pId, NewList(Page, []Child{Lazy(xId)})))
	require.NoError(t, store2.Snapshot.Commit())

	store3, _ := withFreshSnapshot(t, engine)
	_, ok, err := store3.GetNode(sId)
	require.NoError(t, err)
	require.False(t, ok)

	trashed, removed, ok, err := store3.GetNodeInTrash(sId)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, removed)
	require.Equal(t, "s", trashed.Line)

	store4, g4 := withFreshSnapshot(t, engine)
	require.NoError(t, g4.Restore(sId))
	require.NoError(t, store4.Snapshot.Commit())

	store5, _ := withFreshSnapshot(t, engine)
	_, ok, err = store5.GetNode(sId)
	require.NoError(t, err)
	require.True(t, ok)
	parents, err := store5.GetParents(sId)
	require.NoError(t, err)
	require.Len(t, parents, 0)
}

func TestRestoreNoNeedWhenLive(t *testing.T) {
	_, store, g := newGraph(t)
	id, err := g.Add(mustText(t, "z"))
	require.NoError(t, err)
	err = g.Restore(id)
	var noNeed *NoNeedToRestoreError
	require.ErrorAs(t, err, &noNeed)
	_ = store
}
