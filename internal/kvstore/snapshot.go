package kvstore

import (
	"encoding/binary"
	"hash/crc32"
)

// Version is an opaque handle to a single persisted or pending write,
// returned by Snapshot.Versions and consumed by Snapshot.GetVersion.
type Version struct {
	Offset      Offset
	IsRemoved   bool
	Timestamp   int64
	IsCommitted bool
}

type pendingWrite struct {
	value   []byte
	removed bool
}

// Snapshot is a transactional view of an Engine, per spec.md §4.3. Reads
// are served from the snapshot's own pending buffer first, then the
// engine's cached offset table filtered to this snapshot's boundary.
type Snapshot struct {
	engine  *Engine
	pending map[string]pendingWrite
	// pendingOrder preserves insertion order so that commit appends writes
	// to the log in the order the caller made them (spec.md §5: "writes
	// within a commit appear in insertion order in the log").
	pendingOrder []string
	readKeys     map[string]struct{}

	snapshotTimestamp int64
	latestTimestamp   int64
	latestOffset      Offset
	useOffsetBoundary bool
}

// NewSnapshot captures (snapshot_timestamp, latest_timestamp, latest_offset)
// at creation time.
func (e *Engine) NewSnapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	ts := nowMs()
	return &Snapshot{
		engine:            e,
		pending:           make(map[string]pendingWrite),
		readKeys:          make(map[string]struct{}),
		snapshotTimestamp: ts,
		latestTimestamp:   e.latestTimestamp,
		latestOffset:      e.writeCursor,
		useOffsetBoundary:  ts == e.latestTimestamp,
	}
}

func (s *Snapshot) visible(bv BlobVersion) bool {
	if s.useOffsetBoundary {
		return bv.Offset < s.latestOffset
	}
	return bv.Timestamp <= s.latestTimestamp
}

// latestEntry returns the most recent version of key visible to this
// snapshot: its own pending write if any, else the latest persisted
// version within the snapshot boundary.
func (s *Snapshot) latestEntry(key string) (isPending bool, bv BlobVersion, pw pendingWrite, ok bool) {
	if p, exists := s.pending[key]; exists {
		return true, BlobVersion{}, p, true
	}
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	versions := s.engine.table[key]
	for i := len(versions) - 1; i >= 0; i-- {
		if s.visible(versions[i]) {
			return false, versions[i], pendingWrite{}, true
		}
	}
	return false, BlobVersion{}, pendingWrite{}, false
}

// Get returns the latest version of key at or before the snapshot
// boundary, or ok=false if that version is removed or no version exists.
func (s *Snapshot) Get(key []byte) (value []byte, ok bool, err error) {
	ks := string(key)
	s.readKeys[ks] = struct{}{}
	isPending, bv, pw, found := s.latestEntry(ks)
	if !found {
		return nil, false, nil
	}
	if isPending {
		if pw.removed {
			return nil, false, nil
		}
		return pw.value, true, nil
	}
	if bv.IsRemoved {
		return nil, false, nil
	}
	val, err := s.engine.readValueAt(bv.Offset)
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// GetUnremoved returns the latest non-removed version at or before the
// boundary, skipping past any tombstones.
func (s *Snapshot) GetUnremoved(key []byte) (value []byte, ok bool, err error) {
	ks := string(key)
	s.readKeys[ks] = struct{}{}
	if pw, exists := s.pending[ks]; exists && !pw.removed {
		return pw.value, true, nil
	}
	s.engine.mu.Lock()
	versions := s.engine.table[ks]
	var found *BlobVersion
	for i := len(versions) - 1; i >= 0; i-- {
		if s.visible(versions[i]) && !versions[i].IsRemoved {
			v := versions[i]
			found = &v
			break
		}
	}
	s.engine.mu.Unlock()
	if found == nil {
		return nil, false, nil
	}
	val, err := s.engine.readValueAt(found.Offset)
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Versions returns every persisted version of key at or before the
// snapshot's latest_timestamp, plus a trailing uncommitted version if this
// snapshot has buffered a write to key.
func (s *Snapshot) Versions(key []byte) []Version {
	ks := string(key)
	s.engine.mu.Lock()
	raw := s.engine.table[ks]
	out := make([]Version, 0, len(raw)+1)
	for _, bv := range raw {
		if bv.Timestamp <= s.latestTimestamp {
			out = append(out, Version{Offset: bv.Offset, IsRemoved: bv.IsRemoved, Timestamp: bv.Timestamp, IsCommitted: true})
		}
	}
	s.engine.mu.Unlock()
	if pw, exists := s.pending[ks]; exists {
		out = append(out, Version{IsRemoved: pw.removed, IsCommitted: false})
	}
	return out
}

// GetVersion resolves an opaque Version handle to its bytes.
func (s *Snapshot) GetVersion(key []byte, ver Version) (value []byte, ok bool, err error) {
	if !ver.IsCommitted {
		pw, exists := s.pending[string(key)]
		if !exists || pw.removed {
			return nil, false, nil
		}
		return pw.value, true, nil
	}
	if ver.IsRemoved {
		return nil, false, nil
	}
	val, err := s.engine.readValueAt(ver.Offset)
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Keys returns every key with at least one non-removed version at or
// before the boundary, adjusted by this snapshot's own pending writes.
func (s *Snapshot) Keys() [][]byte {
	s.engine.mu.Lock()
	set := make(map[string]bool)
	for k, versions := range s.engine.table {
		for i := len(versions) - 1; i >= 0; i-- {
			if versions[i].Timestamp <= s.latestTimestamp && !versions[i].IsRemoved {
				set[k] = true
				break
			}
		}
	}
	s.engine.mu.Unlock()

	for k, pw := range s.pending {
		if pw.removed {
			delete(set, k)
		} else {
			set[k] = true
		}
	}

	out := make([][]byte, 0, len(set))
	for k := range set {
		out = append(out, []byte(k))
	}
	return out
}

// Insert buffers a write; no I/O happens until Commit.
func (s *Snapshot) Insert(key, value []byte) {
	ks := string(key)
	if _, exists := s.pending[ks]; !exists {
		s.pendingOrder = append(s.pendingOrder, ks)
	}
	s.pending[ks] = pendingWrite{value: append([]byte(nil), value...)}
}

// Remove buffers a tombstone write; no I/O happens until Commit.
func (s *Snapshot) Remove(key []byte) {
	ks := string(key)
	if _, exists := s.pending[ks]; !exists {
		s.pendingOrder = append(s.pendingOrder, ks)
	}
	s.pending[ks] = pendingWrite{removed: true}
}

// LastUpdated is the max of this snapshot's own pending-write time (if
// any) and the latest persisted timestamp at or before the boundary.
func (s *Snapshot) LastUpdated() int64 {
	if len(s.pending) > 0 {
		now := nowMs()
		if now > s.latestTimestamp {
			return now
		}
	}
	return s.latestTimestamp
}

// Abort discards the pending write buffer without touching the log.
func (s *Snapshot) Abort() {
	s.pending = make(map[string]pendingWrite)
	s.pendingOrder = nil
}

// Commit persists the pending buffer atomically and serializably, per the
// protocol in spec.md §4.3:
//  1. empty buffer -> no-op
//  2. every key read during this snapshot must still be at its
//     snapshot-time offset, else TransactionConflictError
//  3. t_commit = max(wall clock, engine.latestTimestamp) -- monotonic
//  4. append each write, accumulating a running crc32
//  5. append a commit record carrying t_commit and the crc
//  6. flush
//  7. update the in-memory offset table and advance latestTimestamp
func (s *Snapshot) Commit() error {
	if len(s.pending) == 0 {
		return nil
	}

	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	for rk := range s.readKeys {
		versions := e.table[rk]
		if len(versions) == 0 {
			continue
		}
		latest := versions[len(versions)-1]
		if latest.Offset >= s.latestOffset {
			return &TransactionConflictError{Key: []byte(rk)}
		}
	}

	tCommit := nowMs()
	if e.latestTimestamp > tCommit {
		tCommit = e.latestTimestamp
	}

	h := crc32.NewIEEE()
	type appended struct {
		key string
		bv  BlobVersion
	}
	newVersions := make([]appended, 0, len(s.pendingOrder))

	for _, ks := range s.pendingOrder {
		pw := s.pending[ks]
		var entry Entry
		if pw.removed {
			entry = Entry{Kind: KindRemove, Key: []byte(ks)}
		} else {
			entry = Entry{Kind: KindInsert, Key: []byte(ks), Value: pw.value}
		}
		raw, err := Encode(entry)
		if err != nil {
			return err
		}
		off, err := e.medium.Write(raw)
		if err != nil {
			return err
		}
		h.Write(raw)
		newVersions = append(newVersions, appended{key: ks, bv: BlobVersion{Offset: off, IsRemoved: pw.removed, Timestamp: tCommit}})
	}

	commitRaw, err := Encode(Entry{Kind: KindCommit, Value: EncodeCommitTimestamp(tCommit)})
	if err != nil {
		return err
	}
	bodyLen := len(commitRaw) - crcBytes
	h.Write(commitRaw[:bodyLen])
	binary.BigEndian.PutUint32(commitRaw[bodyLen:], h.Sum32())

	if _, err := e.medium.Write(commitRaw); err != nil {
		return err
	}
	if err := e.medium.Flush(); err != nil {
		return err
	}

	for _, nv := range newVersions {
		e.table[nv.key] = append(e.table[nv.key], nv.bv)
	}
	e.latestTimestamp = tCommit
	cur, err := e.medium.Len()
	if err != nil {
		return err
	}
	e.writeCursor = cur

	s.pending = make(map[string]pendingWrite)
	s.pendingOrder = nil
	return nil
}

// GetInTrash delegates to the underlying engine, bypassing the snapshot
// boundary: trash is a property of the engine's current table, not of any
// particular snapshot view.
func (s *Snapshot) GetInTrash(key []byte) (value []byte, removed bool, ok bool, err error) {
	return s.engine.GetInTrash(key)
}

// readValueAt decodes the entry at offset and returns just its value
// bytes, without re-reading the key (the caller already knows it from the
// offset table).
func (e *Engine) readValueAt(offset Offset) ([]byte, error) {
	hdr, err := e.medium.Read(offset, 1)
	if err != nil {
		return nil, err
	}
	shape, err := DecodeHeader(hdr[0])
	if err != nil {
		return nil, err
	}
	need := 1 + shape.KeyLen + shape.ValLen
	prefix, err := e.medium.Read(offset, need)
	if err != nil {
		return nil, err
	}
	k := int(getFixedUint(prefix[1 : 1+shape.KeyLen]))
	v := int(getFixedUint(prefix[1+shape.KeyLen : 1+shape.KeyLen+shape.ValLen]))
	valStart := offset + Offset(need) + Offset(k)
	return e.medium.Read(valStart, v)
}
