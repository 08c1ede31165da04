package kvstore

import (
	"encoding/binary"
	"hash/crc32"
)

// Merge compacts the log: for every key, only its latest committed,
// non-removed entry survives; tombstones are dropped entirely ("empties
// the trash"), and superseded versions are dropped. Surviving entries are
// rewritten into the medium's shadow log under StartMerge/StopMerge, each
// original transaction's commit record rewritten with a crc recomputed
// over just the entries that survived it.
func (e *Engine) Merge() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	latestOffsetForKey := make(map[string]Offset, len(e.table))
	for k, versions := range e.table {
		if len(versions) == 0 {
			continue
		}
		last := versions[len(versions)-1]
		if !last.IsRemoved {
			latestOffsetForKey[k] = last.Offset
		}
	}

	total, err := e.medium.Len()
	if err != nil {
		return err
	}
	if err := e.medium.StartMerge(); err != nil {
		return err
	}

	newTable := make(map[string][]BlobVersion, len(latestOffsetForKey))

	type kept struct {
		key string
		raw []byte
	}
	var txnKept []kept
	var cursor Offset

	for cursor < total {
		hdr, err := e.medium.Read(cursor, 1)
		if err != nil {
			return err
		}
		shape, err := DecodeHeader(hdr[0])
		if err != nil {
			return err
		}
		need := 1 + shape.KeyLen + shape.ValLen
		prefix, err := e.medium.Read(cursor, need)
		if err != nil {
			return err
		}
		k := int(getFixedUint(prefix[1 : 1+shape.KeyLen]))
		v := int(getFixedUint(prefix[1+shape.KeyLen : 1+shape.KeyLen+shape.ValLen]))
		isCommit := k == 0
		entryLen := need + k + v
		if isCommit {
			entryLen += crcBytes
		}
		full, err := e.medium.Read(cursor, entryLen)
		if err != nil {
			return err
		}

		if isCommit {
			tCommit := CommitTimestamp(full[need : need+v])
			if len(txnKept) > 0 {
				h := crc32.NewIEEE()
				offsets := make([]Offset, len(txnKept))
				for i, ke := range txnKept {
					off, err := e.medium.Write(ke.raw)
					if err != nil {
						return err
					}
					offsets[i] = off
					h.Write(ke.raw)
				}
				newCommit, err := Encode(Entry{Kind: KindCommit, Value: EncodeCommitTimestamp(tCommit)})
				if err != nil {
					return err
				}
				bodyLen := len(newCommit) - crcBytes
				h.Write(newCommit[:bodyLen])
				binary.BigEndian.PutUint32(newCommit[bodyLen:], h.Sum32())
				if _, err := e.medium.Write(newCommit); err != nil {
					return err
				}
				for i, ke := range txnKept {
					newTable[ke.key] = append(newTable[ke.key], BlobVersion{
						Offset:    offsets[i],
						IsRemoved: false,
						Timestamp: tCommit,
					})
				}
			}
			txnKept = txnKept[:0]
			cursor += Offset(entryLen)
			continue
		}

		key := string(full[need : need+k])
		if !shape.IsRemove && latestOffsetForKey[key] == cursor {
			txnKept = append(txnKept, kept{key: key, raw: full})
		}
		cursor += Offset(entryLen)
	}

	if err := e.medium.Flush(); err != nil {
		return err
	}
	if err := e.medium.StopMerge(); err != nil {
		return err
	}

	e.table = newTable
	cur, err := e.medium.Len()
	if err != nil {
		return err
	}
	e.writeCursor = cur
	return nil
}

// GetInTrash resolves key's latest non-removed content even if the key's
// current state is a tombstone, i.e. the node has been orphaned by a swap
// but the log has not yet been compacted. removed reports whether the
// current (latest) version is a tombstone; ok is false only once Merge has
// actually dropped the key from the log.
func (e *Engine) GetInTrash(key []byte) (value []byte, removed bool, ok bool, err error) {
	e.mu.Lock()
	versions := e.table[string(key)]
	if len(versions) == 0 {
		e.mu.Unlock()
		return nil, false, false, nil
	}
	last := versions[len(versions)-1]
	var lastLiveOffset Offset
	haveLive := false
	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].IsRemoved {
			lastLiveOffset = versions[i].Offset
			haveLive = true
			break
		}
	}
	e.mu.Unlock()
	if !haveLive {
		return nil, true, true, nil
	}
	val, err := e.readValueAt(lastLiveOffset)
	if err != nil {
		return nil, false, false, err
	}
	return val, last.IsRemoved, true, nil
}

// IsEmpty reports whether the engine's primary log has no data, matching
// the Medium.IsEmpty caveat in spec.md §9: it never consults a shadow log.
func (e *Engine) IsEmpty() (bool, error) {
	return e.medium.IsEmpty()
}
