// Package transfer builds and consumes the detached KV images described in
// spec.md §4.7 and §6.3: a complete, self-contained log of Node and Parents
// entries that can be shipped as opaque bytes and grafted into another
// instance under a fresh id namespace.
package transfer

import (
	"github.com/untoldecay/gram/internal/graph"
	"github.com/untoldecay/gram/internal/index"
	"github.com/untoldecay/gram/internal/kvstore"
)

// Export is ExportSince with since=0: every reachable node, regardless of
// last-modified time.
func Export(snapshot *kvstore.Snapshot, store *graph.Store, id graph.Id) ([]byte, error) {
	return ExportSince(snapshot, store, id, 0)
}

// ExportSince depth-first walks from id over store, collecting every
// reachable node and its parents set. Nodes whose last-version timestamp is
// at or before since are dropped from the written image; any Parents entry
// pointing outside the surviving set is filtered out; if the set does not
// include the root id, a synthetic List(Page, [id]) root is added so that
// imports always graft under a known anchor (spec.md §4.7).
func ExportSince(snapshot *kvstore.Snapshot, store *graph.Store, id graph.Id, since int64) ([]byte, error) {
	reachable, err := collectReachable(store, id)
	if err != nil {
		return nil, err
	}

	exported := make(map[graph.Id]bool, len(reachable))
	for rid := range reachable {
		if lastModified(snapshot, graph.NodeKey(rid)) > since {
			exported[rid] = true
		}
	}

	medium := kvstore.NewMemoryMedium()
	engine, err := kvstore.Open(medium)
	if err != nil {
		return nil, err
	}
	dst := engine.NewSnapshot()
	dstStore := graph.NewStore(dst)

	for rid := range exported {
		n, ok, err := store.GetNode(rid)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := dstStore.PutNode(rid, n); err != nil {
			return nil, err
		}

		parents, err := store.GetParents(rid)
		if err != nil {
			return nil, err
		}
		kept := parents[:0:0]
		for _, p := range parents {
			if exported[p.Parent] {
				kept = append(kept, p)
			}
		}
		if err := dstStore.PutParents(rid, kept); err != nil {
			return nil, err
		}
	}

	if !exported[graph.Root] {
		anchor := graph.NewList(graph.Page, []graph.Child{graph.Lazy(id)})
		if err := dstStore.PutNode(graph.Root, anchor); err != nil {
			return nil, err
		}
		if err := dstStore.PutParents(graph.Root, nil); err != nil {
			return nil, err
		}
	}

	if err := dst.Commit(); err != nil {
		return nil, err
	}
	return medium.Bytes(), nil
}

// Import opens the detached image in data, remaps every id it carries
// through id' = id XOR namespace, copies the Node and Parents entries under
// their mapped ids into store, and reindexes each imported id exactly as
// add would (spec.md §4.7).
func Import(store *graph.Store, data []byte, namespace graph.Id) error {
	medium := kvstore.NewMemoryMediumFromBytes(data)
	engine, err := kvstore.Open(medium)
	if err != nil {
		return err
	}
	src := engine.NewSnapshot()
	srcStore := graph.NewStore(src)

	ids := imagedIds(src)

	for _, oldId := range ids {
		n, ok, err := srcStore.GetNode(oldId)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		n.Children = remapChildren(n.Children, namespace)
		if n.Child != nil {
			remapped := graph.Lazy(n.Child.Id.Xor(namespace))
			n.Child = &remapped
		}
		mapped := oldId.Xor(namespace)
		if err := store.PutNode(mapped, n); err != nil {
			return err
		}

		parents, err := srcStore.GetParents(oldId)
		if err != nil {
			return err
		}
		remapped := make([]graph.ParentPair, len(parents))
		for i, p := range parents {
			remapped[i] = graph.ParentPair{Parent: p.Parent.Xor(namespace), Index: p.Index}
		}
		if err := store.PutParents(mapped, remapped); err != nil {
			return err
		}
	}

	for _, oldId := range ids {
		mapped := oldId.Xor(namespace)
		if err := index.Reindex(store, mapped, nil); err != nil {
			return err
		}
	}
	return nil
}

func remapChildren(children []graph.Child, namespace graph.Id) []graph.Child {
	if len(children) == 0 {
		return children
	}
	out := make([]graph.Child, len(children))
	for i, c := range children {
		// Every child of a persisted node is Lazy (node.go's Marshal rejects
		// Eager children), so remapping only ever touches c.Id.
		out[i] = graph.Lazy(c.Id.Xor(namespace))
	}
	return out
}

// collectReachable depth-first walks the live node graph from id, following
// Lazy child references, and returns every id visited (including id itself).
func collectReachable(store *graph.Store, id graph.Id) (map[graph.Id]bool, error) {
	seen := make(map[graph.Id]bool)
	var walk func(graph.Id) error
	walk = func(cur graph.Id) error {
		if seen[cur] {
			return nil
		}
		seen[cur] = true
		n, ok, err := store.GetNode(cur)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		for _, c := range n.Children {
			if err := walk(c.Id); err != nil {
				return err
			}
		}
		if n.Child != nil {
			if err := walk(n.Child.Id); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(id); err != nil {
		return nil, err
	}
	return seen, nil
}

// imagedIds returns every id with a non-removed SlotNode version in
// snapshot.
func imagedIds(snapshot *kvstore.Snapshot) []graph.Id {
	var out []graph.Id
	for _, key := range snapshot.Keys() {
		id, ok := graph.DecodeNodeKey(key)
		if !ok {
			continue
		}
		out = append(out, id)
	}
	return out
}

// lastModified returns the most recent timestamp key was written at,
// treating an uncommitted pending write as having happened now (spec.md
// §4.3's snapshot_timestamp/latest_timestamp pairing).
func lastModified(snapshot *kvstore.Snapshot, key []byte) int64 {
	versions := snapshot.Versions(key)
	if len(versions) == 0 {
		return 0
	}
	last := versions[len(versions)-1]
	if !last.IsCommitted {
		return snapshot.LastUpdated()
	}
	return last.Timestamp
}
