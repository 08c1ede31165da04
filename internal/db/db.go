// Package db composes the storage core (kvstore), the node graph (graph),
// and the similarity index (index) into the single transactional surface
// described across spec.md §4.3-§4.6: every mutation runs inside a
// snapshot and triggers a before/after reindex of the ids it touched.
package db

import (
	"github.com/untoldecay/gram/internal/audit"
	"github.com/untoldecay/gram/internal/graph"
	"github.com/untoldecay/gram/internal/index"
	"github.com/untoldecay/gram/internal/kvstore"
	"github.com/untoldecay/gram/internal/transfer"
)

// DB owns a single kvstore.Engine instance.
type DB struct {
	Engine *kvstore.Engine
	Audit  *audit.Log
}

// Open opens medium's log and ensures the root id exists.
func Open(medium kvstore.Medium) (*DB, error) {
	engine, err := kvstore.Open(medium)
	if err != nil {
		return nil, err
	}
	db := &DB{Engine: engine}
	tx := db.Begin()
	if err := tx.graph.Open(); err != nil {
		tx.Abort()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return db, nil
}

// Close releases the underlying medium (e.g. a FileMedium's advisory lock).
func (db *DB) Close() error { return db.Engine.Close() }

// WithAudit attaches a mutation log that every subsequent Tx records
// add/swap/restore/update/import calls to.
func (db *DB) WithAudit(log *audit.Log) *DB {
	db.Audit = log
	return db
}

// Tx is a single mutation/query transaction: one kvstore.Snapshot plus the
// graph and index views layered on top of it.
type Tx struct {
	Snapshot *kvstore.Snapshot
	store    *graph.Store
	graph    *graph.Graph
	queries  *graph.Queries
	audit    *audit.Log
}

// Begin starts a new transaction.
func (db *DB) Begin() *Tx {
	snapshot := db.Engine.NewSnapshot()
	store := graph.NewStore(snapshot)
	return &Tx{
		Snapshot: snapshot,
		store:    store,
		graph:    graph.NewGraph(store),
		queries:  graph.NewQueries(store),
		audit:    db.Audit,
	}
}

// record appends e to the transaction's audit log, if one is attached.
func (tx *Tx) record(e audit.Entry) {
	if tx.audit == nil {
		return
	}
	_ = tx.audit.Record(e)
}

// Commit persists the transaction's buffered writes.
func (tx *Tx) Commit() error { return tx.Snapshot.Commit() }

// Abort discards the transaction's buffered writes.
func (tx *Tx) Abort() { tx.Snapshot.Abort() }

// Store exposes the underlying typed KV view, e.g. for transfer/broadcast
// code that needs to read slots directly.
func (tx *Tx) Store() *graph.Store { return tx.store }

// Queries exposes the derived read-only query set.
func (tx *Tx) Queries() *graph.Queries { return tx.queries }

// Add assigns a fresh id to n and reindexes it.
func (tx *Tx) Add(n graph.Node) (graph.Id, error) {
	id, err := tx.graph.Add(n)
	if err != nil {
		return graph.Id{}, err
	}
	if err := index.Reindex(tx.store, id, nil); err != nil {
		return graph.Id{}, err
	}
	tx.record(audit.Mutation(audit.KindAdd, id))
	return id, nil
}

// Swap replaces id's contents and reindexes the touched subtree.
func (tx *Tx) Swap(id graph.Id, replacement graph.Node) error {
	before, err := index.BuildVectors(tx.store, id)
	if err != nil {
		return err
	}
	if err := tx.graph.Swap(id, replacement); err != nil {
		return err
	}
	if err := index.Reindex(tx.store, id, before); err != nil {
		return err
	}
	tx.record(audit.Mutation(audit.KindSwap, id))
	return nil
}

// Restore undoes a removal and reindexes the restored subtree.
func (tx *Tx) Restore(id graph.Id) error {
	if err := tx.graph.Restore(id); err != nil {
		return err
	}
	if err := index.Reindex(tx.store, id, nil); err != nil {
		return err
	}
	tx.record(audit.Mutation(audit.KindRestore, id))
	return nil
}

// Update, Remove, Replace, Insert, Push mirror graph.Graph's list
// conveniences, each expressed as a reindexed Swap.
func (tx *Tx) Update(id graph.Id, f func([]graph.Child) []graph.Child) error {
	n, ok, err := tx.store.GetNode(id)
	if err != nil {
		return err
	}
	if !ok {
		return &graph.IdNotFoundError{Id: id, Operation: "update", Context: "target missing"}
	}
	if n.Kind != graph.KindList {
		return &graph.WrongNodeTypeError{Expected: "List", Actual: n.Kind}
	}
	replacement := n
	replacement.Children = f(append([]graph.Child(nil), n.Children...))
	return tx.Swap(id, replacement)
}

func (tx *Tx) Remove(id graph.Id, i int) error {
	return tx.Update(id, func(children []graph.Child) []graph.Child {
		if i < 0 || i >= len(children) {
			return children
		}
		return append(append([]graph.Child(nil), children[:i]...), children[i+1:]...)
	})
}

func (tx *Tx) Replace(id graph.Id, i int, c graph.Child) error {
	return tx.Update(id, func(children []graph.Child) []graph.Child {
		if i < 0 || i >= len(children) {
			return children
		}
		out := append([]graph.Child(nil), children...)
		out[i] = c
		return out
	})
}

func (tx *Tx) Insert(id graph.Id, i int, c graph.Child) error {
	return tx.Update(id, func(children []graph.Child) []graph.Child {
		if i < 0 || i > len(children) {
			i = len(children)
		}
		out := make([]graph.Child, 0, len(children)+1)
		out = append(out, children[:i]...)
		out = append(out, c)
		out = append(out, children[i:]...)
		return out
	})
}

func (tx *Tx) Push(id graph.Id, c graph.Child) error {
	return tx.Update(id, func(children []graph.Child) []graph.Child {
		return append(append([]graph.Child(nil), children...), c)
	})
}

// Search implements spec.md's search(term).
func (tx *Tx) Search(term string) ([]index.SearchResult, error) {
	return index.Search(tx.store, term)
}

// Export builds a detached KV image of everything reachable from id.
func (tx *Tx) Export(id graph.Id) ([]byte, error) {
	return transfer.Export(tx.Snapshot, tx.store, id)
}

// ExportSince is Export, limited to nodes modified after since.
func (tx *Tx) ExportSince(id graph.Id, since int64) ([]byte, error) {
	return transfer.ExportSince(tx.Snapshot, tx.store, id, since)
}

// Import grafts a detached KV image into this transaction under namespace,
// reindexing every imported id.
func (tx *Tx) Import(data []byte, namespace graph.Id) error {
	if err := transfer.Import(tx.store, data, namespace); err != nil {
		return err
	}
	tx.record(audit.Mutation(audit.KindImport, namespace))
	return nil
}
