package kvstore

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sync"
	"time"
)

// BlobVersion is a single persisted version of a key: the offset of its
// kv-record on the medium, whether that record was a removal, and the
// commit timestamp that made it visible.
type BlobVersion struct {
	Offset    Offset
	IsRemoved bool
	Timestamp int64
}

// Engine is the log-structured KV engine of spec.md §4.3: an append-only
// log on a Medium plus an in-memory offset table rebuilt by a linear scan
// on Open.
type Engine struct {
	mu              sync.Mutex
	medium          Medium
	table           map[string][]BlobVersion
	latestTimestamp int64
	writeCursor     Offset
}

type bufferedWrite struct {
	raw         []byte
	key         []byte
	value       []byte
	isRemove    bool
	entryOffset Offset
}

// Open scans medium from offset 0, replaying committed transactions into
// an in-memory offset table. A transaction left uncommitted at the tail
// (torn write, or a commit record whose crc does not match) is discarded:
// the log is truncated back to the first byte of that transaction.
func Open(medium Medium) (*Engine, error) {
	total, err := medium.Len()
	if err != nil {
		return nil, fmt.Errorf("kvstore: open: %w", err)
	}

	table := make(map[string][]BlobVersion)
	var latestTimestamp int64
	var buffered []bufferedWrite
	var cursor, txnStart Offset

	truncateAndStop := func() error {
		if err := medium.Truncate(txnStart); err != nil {
			return fmt.Errorf("kvstore: open: truncate torn tail: %w", err)
		}
		return medium.Flush()
	}

scan:
	for cursor < total {
		remaining := total - cursor
		if remaining < 1 {
			break
		}
		hdr, err := medium.Read(cursor, 1)
		if err != nil {
			return nil, fmt.Errorf("kvstore: open: read header: %w", err)
		}
		shape, err := DecodeHeader(hdr[0])
		if err != nil {
			if err := truncateAndStop(); err != nil {
				return nil, err
			}
			break scan
		}
		need := Offset(1 + shape.KeyLen + shape.ValLen)
		if remaining < need {
			if err := truncateAndStop(); err != nil {
				return nil, err
			}
			break scan
		}
		prefix, err := medium.Read(cursor, int(need))
		if err != nil {
			return nil, fmt.Errorf("kvstore: open: read prefix: %w", err)
		}
		k := int(getFixedUint(prefix[1 : 1+shape.KeyLen]))
		v := int(getFixedUint(prefix[1+shape.KeyLen : 1+shape.KeyLen+shape.ValLen]))

		isCommit := k == 0
		entryLen := int(need) + k + v
		if isCommit {
			entryLen += crcBytes
		}
		if remaining < Offset(entryLen) {
			if err := truncateAndStop(); err != nil {
				return nil, err
			}
			break scan
		}

		full, err := medium.Read(cursor, entryLen)
		if err != nil {
			return nil, fmt.Errorf("kvstore: open: read entry: %w", err)
		}

		if isCommit {
			if v != bytesTimestampFull {
				if err := truncateAndStop(); err != nil {
					return nil, err
				}
				break scan
			}
			value := full[int(need) : int(need)+v]
			declaredCRC := binary.BigEndian.Uint32(full[entryLen-crcBytes:])

			h := crc32.NewIEEE()
			for _, bw := range buffered {
				h.Write(bw.raw)
			}
			h.Write(full[:entryLen-crcBytes])
			computed := h.Sum32()

			if computed != declaredCRC {
				if err := truncateAndStop(); err != nil {
					return nil, err
				}
				break scan
			}

			tCommit := CommitTimestamp(value)
			for _, bw := range buffered {
				table[string(bw.key)] = append(table[string(bw.key)], BlobVersion{
					Offset:    bw.entryOffset,
					IsRemoved: bw.isRemove,
					Timestamp: tCommit,
				})
			}
			latestTimestamp = tCommit
			buffered = buffered[:0]
			cursor += Offset(entryLen)
			txnStart = cursor
			continue
		}

		key := append([]byte(nil), full[int(need):int(need)+k]...)
		val := append([]byte(nil), full[int(need)+k:int(need)+k+v]...)
		buffered = append(buffered, bufferedWrite{
			raw:         full,
			key:         key,
			value:       val,
			isRemove:    shape.IsRemove,
			entryOffset: cursor,
		})
		cursor += Offset(entryLen)
	}

	if cursor >= total && len(buffered) > 0 {
		// Log ended without a closing commit: discard the dangling transaction.
		if err := truncateAndStop(); err != nil {
			return nil, err
		}
		cursor = txnStart
	}

	return &Engine{
		medium:          medium,
		table:           table,
		latestTimestamp: latestTimestamp,
		writeCursor:     cursor,
	}, nil
}

func nowMs() int64 { return time.Now().UnixMilli() }

// Close releases the underlying medium, if it holds a resource that needs
// releasing (e.g. FileMedium's advisory lock). Media without a Close method
// (MemoryMedium) are a no-op.
func (e *Engine) Close() error {
	if closer, ok := e.medium.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
