package graph

import (
	"encoding/binary"
	"fmt"

	"github.com/untoldecay/gram/internal/kvstore"
)

// Slot tags the disjoint KV namespaces a node id's data lives in (spec.md
// §3: "Each slot is a disjoint namespace inside the KV engine; a single
// slot tag byte prefixes every KV key").
type Slot byte

const (
	SlotNode Slot = iota
	SlotParents
	SlotGrams
	SlotCount
	SlotOverlaps
	SlotBroadcastPublished
	SlotBroadcastSubscribed
)

func idKey(slot Slot, id Id) []byte {
	key := make([]byte, 1+16)
	key[0] = byte(slot)
	copy(key[1:], id[:])
	return key
}

// NodeKey returns the raw KV key id's Node entry is stored under, for
// callers outside this package that need to inspect version history
// directly (e.g. transfer's last-modified filtering).
func NodeKey(id Id) []byte { return idKey(SlotNode, id) }

// DecodeNodeKey reports whether key is a SlotNode key and, if so, the id it
// names.
func DecodeNodeKey(key []byte) (Id, bool) {
	if len(key) != 1+16 || Slot(key[0]) != SlotNode {
		return Id{}, false
	}
	var id Id
	copy(id[:], key[1:])
	return id, true
}

func gramKey(gram uint32) []byte {
	key := make([]byte, 1+4)
	key[0] = byte(SlotGrams)
	binary.BigEndian.PutUint32(key[1:], gram)
	return key
}

// Store is a typed view over a kvstore.Snapshot, translating graph-level
// slot reads/writes into raw KV operations.
type Store struct {
	Snapshot *kvstore.Snapshot
}

func NewStore(s *kvstore.Snapshot) *Store { return &Store{Snapshot: s} }

// GetNode reads and decodes id's persisted node. ok is false if the id has
// no live Node entry (removed or never existed).
func (st *Store) GetNode(id Id) (Node, bool, error) {
	raw, ok, err := st.Snapshot.Get(idKey(SlotNode, id))
	if err != nil || !ok {
		return Node{}, false, err
	}
	n, err := Unmarshal(raw)
	if err != nil {
		return Node{}, false, fmt.Errorf("graph: decode node %s: %w", id, err)
	}
	return n, true, nil
}

// GetNodeInTrash behaves like GetNode but also resolves tombstoned nodes,
// mirroring kvstore.GetInTrash (spec.md §3 "trash").
func (st *Store) GetNodeInTrash(id Id) (node Node, removed bool, ok bool, err error) {
	raw, removed, ok, err := st.Snapshot.GetInTrash(idKey(SlotNode, id))
	if err != nil || !ok {
		return Node{}, false, false, err
	}
	n, err := Unmarshal(raw)
	if err != nil {
		return Node{}, false, false, fmt.Errorf("graph: decode node %s: %w", id, err)
	}
	return n, removed, true, nil
}

// PutNode writes id's node.
func (st *Store) PutNode(id Id, n Node) error {
	raw, err := Marshal(n)
	if err != nil {
		return fmt.Errorf("graph: encode node %s: %w", id, err)
	}
	st.Snapshot.Insert(idKey(SlotNode, id), raw)
	return nil
}

// RemoveNode tombstones id's node (moves it to trash).
func (st *Store) RemoveNode(id Id) error {
	st.Snapshot.Remove(idKey(SlotNode, id))
	return nil
}

// GetParents reads id's parent set. A missing entry decodes as empty,
// since "Parents" should always exist per persisted node per invariant I1.
func (st *Store) GetParents(id Id) ([]ParentPair, error) {
	raw, ok, err := st.Snapshot.Get(idKey(SlotParents, id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return UnmarshalParents(raw)
}

// PutParents writes id's parent set.
func (st *Store) PutParents(id Id, parents []ParentPair) error {
	st.Snapshot.Insert(idKey(SlotParents, id), MarshalParents(parents))
	return nil
}

// RemoveParents tombstones id's parent set (used alongside RemoveNode when
// an id becomes fully obsolete).
func (st *Store) RemoveParents(id Id) error {
	st.Snapshot.Remove(idKey(SlotParents, id))
	return nil
}

// AddParentPair inserts pair into id's parent set if not already present.
func (st *Store) AddParentPair(id Id, pair ParentPair) error {
	parents, err := st.GetParents(id)
	if err != nil {
		return err
	}
	for _, p := range parents {
		if p == pair {
			return nil
		}
	}
	parents = append(parents, pair)
	return st.PutParents(id, parents)
}

// RemoveParentPairs drops every entry in drop from id's parent set.
func (st *Store) RemoveParentPairs(id Id, drop map[ParentPair]bool) error {
	if len(drop) == 0 {
		return nil
	}
	parents, err := st.GetParents(id)
	if err != nil {
		return err
	}
	out := parents[:0:0]
	for _, p := range parents {
		if !drop[p] {
			out = append(out, p)
		}
	}
	return st.PutParents(id, out)
}

// --- index slots ---------------------------------------------------------
//
// Grams is keyed by gram value alone (not per id): every occurrence map for
// a given gram shares one KV entry, matching spec.md §4.6's "Apply the diff
// by updating each affected Grams[g] entry."

// GramOccurrences is the id->occurrence-count map stored per gram.
type GramOccurrences map[Id]int

// GetGrams reads the occurrence map for gram g.
func (st *Store) GetGrams(g uint32) (GramOccurrences, error) {
	raw, ok, err := st.Snapshot.Get(gramKey(g))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return decodeGramOccurrences(raw)
}

// PutGrams writes (or, if empty, removes) the occurrence map for gram g.
func (st *Store) PutGrams(g uint32, occ GramOccurrences) error {
	if len(occ) == 0 {
		st.Snapshot.Remove(gramKey(g))
		return nil
	}
	st.Snapshot.Insert(gramKey(g), encodeGramOccurrences(occ))
	return nil
}

func encodeGramOccurrences(occ GramOccurrences) []byte {
	var buf []byte
	buf = appendUvarint(buf, uint64(len(occ)))
	for id, count := range occ {
		buf = append(buf, id[:]...)
		buf = appendUvarint(buf, uint64(count))
	}
	return buf
}

func decodeGramOccurrences(data []byte) (GramOccurrences, error) {
	n, rest, err := readUvarint(data)
	if err != nil {
		return nil, err
	}
	out := make(GramOccurrences, n)
	for i := uint64(0); i < n; i++ {
		if len(rest) < 16 {
			return nil, fmt.Errorf("graph: decode grams: truncated id")
		}
		var id Id
		copy(id[:], rest[:16])
		rest = rest[16:]
		count, r2, err := readUvarint(rest)
		if err != nil {
			return nil, err
		}
		rest = r2
		out[id] = int(count)
	}
	return out, nil
}

// GetCount reads the stored block-vector length for id.
func (st *Store) GetCount(id Id) (int, bool, error) {
	raw, ok, err := st.Snapshot.Get(idKey(SlotCount, id))
	if err != nil || !ok {
		return 0, ok, err
	}
	v, _, err := readUvarint(raw)
	return int(v), true, err
}

// PutCount writes id's block-vector length.
func (st *Store) PutCount(id Id, count int) error {
	st.Snapshot.Insert(idKey(SlotCount, id), appendUvarint(nil, uint64(count)))
	return nil
}

// Overlap is one symmetric similarity record (spec.md glossary).
type Overlap struct {
	Id           Id
	SourceSize   int
	MatchSize    int
	Intersection int
}

// GetOverlaps reads id's stored overlap set.
func (st *Store) GetOverlaps(id Id) ([]Overlap, error) {
	raw, ok, err := st.Snapshot.Get(idKey(SlotOverlaps, id))
	if err != nil || !ok {
		return nil, err
	}
	n, rest, err := readUvarint(raw)
	if err != nil {
		return nil, err
	}
	out := make([]Overlap, 0, n)
	for i := uint64(0); i < n; i++ {
		if len(rest) < 16 {
			return nil, fmt.Errorf("graph: decode overlaps: truncated id")
		}
		var oid Id
		copy(oid[:], rest[:16])
		rest = rest[16:]
		src, r2, err := readUvarint(rest)
		if err != nil {
			return nil, err
		}
		match, r3, err := readUvarint(r2)
		if err != nil {
			return nil, err
		}
		inter, r4, err := readUvarint(r3)
		if err != nil {
			return nil, err
		}
		rest = r4
		out = append(out, Overlap{Id: oid, SourceSize: int(src), MatchSize: int(match), Intersection: int(inter)})
	}
	return out, nil
}

// PutOverlaps writes id's overlap set.
func (st *Store) PutOverlaps(id Id, overlaps []Overlap) error {
	if len(overlaps) == 0 {
		st.Snapshot.Remove(idKey(SlotOverlaps, id))
		return nil
	}
	var buf []byte
	buf = appendUvarint(buf, uint64(len(overlaps)))
	for _, o := range overlaps {
		buf = append(buf, o.Id[:]...)
		buf = appendUvarint(buf, uint64(o.SourceSize))
		buf = appendUvarint(buf, uint64(o.MatchSize))
		buf = appendUvarint(buf, uint64(o.Intersection))
	}
	st.Snapshot.Insert(idKey(SlotOverlaps, id), buf)
	return nil
}
