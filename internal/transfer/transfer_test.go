package transfer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/untoldecay/gram/internal/db"
	"github.com/untoldecay/gram/internal/graph"
	"github.com/untoldecay/gram/internal/kvstore"
	"github.com/untoldecay/gram/internal/transfer"
)

func mustText(t *testing.T, s string) graph.Node {
	t.Helper()
	n, err := graph.TextLine(s)
	require.NoError(t, err)
	return n
}

// TestExportImportIdentityRoundtrip exercises spec.md's "export(id) then
// import(bytes, ns) yields ids equal to original XOR ns, and for ns=0
// recovers the original exactly."
func TestExportImportIdentityRoundtrip(t *testing.T) {
	source, err := db.Open(kvstore.NewMemoryMedium())
	require.NoError(t, err)

	tx := source.Begin()
	textId, err := tx.Add(mustText(t, "hello world"))
	require.NoError(t, err)
	pageId, err := tx.Add(graph.NewList(graph.Page, []graph.Child{graph.Lazy(textId)}))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	readTx := source.Begin()
	bytes, err := transfer.Export(readTx.Snapshot, readTx.Store(), pageId)
	require.NoError(t, err)
	require.NotEmpty(t, bytes)

	dest, err := db.Open(kvstore.NewMemoryMedium())
	require.NoError(t, err)
	destTx := dest.Begin()
	require.NoError(t, transfer.Import(destTx.Store(), bytes, graph.Id{}))
	require.NoError(t, destTx.Commit())

	verifyTx := dest.Begin()
	page, ok, err := verifyTx.Store().GetNode(pageId)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, graph.KindList, page.Kind)
	require.Equal(t, graph.Page, page.Layout)
	require.Len(t, page.Children, 1)
	require.Equal(t, textId, page.Children[0].Id)

	text, ok, err := verifyTx.Store().GetNode(textId)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, graph.KindText, text.Kind)
	require.Equal(t, "hello world", text.Line)
}

// TestExportImportNamespacesIds exercises the XOR-namespace remap: imported
// ids equal original XOR namespace, including inside Children/Parents.
func TestExportImportNamespacesIds(t *testing.T) {
	source, err := db.Open(kvstore.NewMemoryMedium())
	require.NoError(t, err)

	tx := source.Begin()
	textId, err := tx.Add(mustText(t, "namespaced"))
	require.NoError(t, err)
	pageId, err := tx.Add(graph.NewList(graph.Page, []graph.Child{graph.Lazy(textId)}))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	readTx := source.Begin()
	bytes, err := transfer.Export(readTx.Snapshot, readTx.Store(), pageId)
	require.NoError(t, err)

	namespace, err := graph.NewId()
	require.NoError(t, err)

	dest, err := db.Open(kvstore.NewMemoryMedium())
	require.NoError(t, err)
	destTx := dest.Begin()
	require.NoError(t, transfer.Import(destTx.Store(), bytes, namespace))
	require.NoError(t, destTx.Commit())

	mappedPage := pageId.Xor(namespace)
	mappedText := textId.Xor(namespace)

	verifyTx := dest.Begin()
	page, ok, err := verifyTx.Store().GetNode(mappedPage)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, page.Children, 1)
	require.Equal(t, mappedText, page.Children[0].Id)

	_, found, err := verifyTx.Store().GetNode(pageId)
	require.NoError(t, err)
	require.False(t, found, "original id must not collide with the namespaced import")
}

// TestExportSinceFiltersByTimestamp exercises the t-parameter: a node not
// modified since t is dropped from the image.
func TestExportSinceFiltersByTimestamp(t *testing.T) {
	source, err := db.Open(kvstore.NewMemoryMedium())
	require.NoError(t, err)

	tx := source.Begin()
	textId, err := tx.Add(mustText(t, "old"))
	require.NoError(t, err)
	pageId, err := tx.Add(graph.NewList(graph.Page, []graph.Child{graph.Lazy(textId)}))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	future := source.Begin()
	bytes, err := transfer.ExportSince(future.Snapshot, future.Store(), pageId, future.Snapshot.LastUpdated()+1)
	require.NoError(t, err)

	dest, err := db.Open(kvstore.NewMemoryMedium())
	require.NoError(t, err)
	destTx := dest.Begin()
	require.NoError(t, transfer.Import(destTx.Store(), bytes, graph.Id{}))
	require.NoError(t, destTx.Commit())

	verifyTx := dest.Begin()
	_, ok, err := verifyTx.Store().GetNode(pageId)
	require.NoError(t, err)
	require.False(t, ok, "a node with no version after the cutoff should be excluded")

	_, rootOk, err := verifyTx.Store().GetNode(graph.Root)
	require.NoError(t, err)
	require.True(t, rootOk, "the synthetic anchor root is still written even when its target is excluded")
}
