package kvstore

import "fmt"

// StorageKind classifies failures surfaced by a Medium implementation.
type StorageKind int

const (
	StorageIO StorageKind = iota
	StorageOffset
	StorageBackend
)

func (k StorageKind) String() string {
	switch k {
	case StorageIO:
		return "io"
	case StorageOffset:
		return "offset"
	case StorageBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// StorageError wraps a failure from the byte-addressable medium (C1).
type StorageError struct {
	Kind      StorageKind
	Operation string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %s: %v", e.Kind, e.Operation, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CorruptDataError describes bytes at an offset that cannot be decoded as
// an entry at all (as opposed to InvalidEntryError, which is a well-formed
// header with out-of-range fields). Open does not return it: its log scan
// truncates at such bytes instead.
type CorruptDataError struct {
	Offset Offset
}

func (e *CorruptDataError) Error() string {
	return fmt.Sprintf("kvstore: corrupt data at offset %d", e.Offset)
}

// InvalidEntryError is raised when an entry header's kk/vvv fields exceed
// their allowed ranges, or a decoded record violates its kind's shape.
type InvalidEntryError struct {
	Reason string
}

func (e *InvalidEntryError) Error() string {
	return fmt.Sprintf("kvstore: invalid entry: %s", e.Reason)
}

// InvalidIntLengthError is raised when a length field's byte count cannot
// represent the integer it is supposed to carry.
type InvalidIntLengthError struct {
	Reason string
}

func (e *InvalidIntLengthError) Error() string {
	return fmt.Sprintf("kvstore: invalid int length: %s", e.Reason)
}

// MaxSizeExceededError is raised by the entry codec when a key or value
// exceeds the maxima fixed in §4.2 (key <= 2^16 bytes, value <= 2^24 bytes).
type MaxSizeExceededError struct {
	Size         int
	MaxBytes     int
	BytesRequired int
}

func (e *MaxSizeExceededError) Error() string {
	return fmt.Sprintf("kvstore: size %d exceeds max %d bytes (needs %d)", e.Size, e.MaxBytes, e.BytesRequired)
}

// TransactionConflictError is returned by Snapshot.Commit when a key read
// during the snapshot's lifetime was written by a commit that landed at or
// after the snapshot's boundary offset.
type TransactionConflictError struct {
	Key []byte
}

func (e *TransactionConflictError) Error() string {
	return fmt.Sprintf("kvstore: transaction conflict on key %x", e.Key)
}
