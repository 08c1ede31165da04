package kvstore

import (
	"fmt"
	"os"
	"sync"

	"github.com/gofrs/flock"
)

// Offset is a byte position in a Medium's log.
type Offset uint64

// Medium is the byte-addressable append-only log described in spec.md
// §4.1. read(offset, len) must zero-fill past the end of the log rather
// than erroring; write(buf) appends and returns the offset writing began
// at; truncate(len) shortens the log; flush persists pending writes.
//
// During compaction the medium enters "merge" mode: writes go to a shadow
// log while reads keep being served from the primary. StopMerge atomically
// replaces the primary with the shadow.
type Medium interface {
	Read(offset Offset, length int) ([]byte, error)
	Write(buf []byte) (Offset, error)
	Truncate(length Offset) error
	Flush() error
	Len() (Offset, error)

	// IsEmpty reports whether the primary log is empty. Per spec.md §9 this
	// must not consult the shadow log while a merge is in progress.
	IsEmpty() (bool, error)

	StartMerge() error
	// StopMerge atomically replaces the primary log with everything written
	// to the shadow log since StartMerge and discards the shadow.
	StopMerge() error
}

// MemoryMedium is an in-process Medium backed by a growable byte slice. It
// is used for the exported/imported detached KV images of C7 and in tests.
type MemoryMedium struct {
	mu       sync.Mutex
	primary  []byte
	shadow   []byte
	merging  bool
}

// NewMemoryMedium returns an empty in-memory medium.
func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{}
}

// NewMemoryMediumFromBytes wraps a previously exported log (see Bytes) as a
// readable medium, for import's "open the detached image" step (spec.md
// §4.7, §6.3).
func NewMemoryMediumFromBytes(data []byte) *MemoryMedium {
	return &MemoryMedium{primary: append([]byte(nil), data...)}
}

// Bytes returns the medium's primary log content, the opaque transport
// format for exported KV images (spec.md §6.3).
func (m *MemoryMedium) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.primary...)
}

func (m *MemoryMedium) Read(offset Offset, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, length)
	if int(offset) >= len(m.primary) {
		return out, nil
	}
	n := copy(out, m.primary[offset:])
	_ = n
	return out, nil
}

func (m *MemoryMedium) Write(buf []byte) (Offset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.merging {
		off := Offset(len(m.shadow))
		m.shadow = append(m.shadow, buf...)
		return off, nil
	}
	off := Offset(len(m.primary))
	m.primary = append(m.primary, buf...)
	return off, nil
}

func (m *MemoryMedium) Truncate(length Offset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(length) > len(m.primary) {
		return &StorageError{Kind: StorageOffset, Operation: "truncate", Err: fmt.Errorf("length %d beyond log size %d", length, len(m.primary))}
	}
	m.primary = m.primary[:length]
	return nil
}

func (m *MemoryMedium) Flush() error { return nil }

func (m *MemoryMedium) Len() (Offset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Offset(len(m.primary)), nil
}

func (m *MemoryMedium) IsEmpty() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.primary) == 0, nil
}

func (m *MemoryMedium) StartMerge() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merging = true
	m.shadow = m.shadow[:0]
	return nil
}

func (m *MemoryMedium) StopMerge() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primary = m.shadow
	m.shadow = nil
	m.merging = false
	return nil
}

// FileMedium is a Medium backed by a local file, flock-guarded for the
// process lifetime so a single instance owns its storage exclusively
// (spec.md §5's "shared-resource policy").
type FileMedium struct {
	mu         sync.Mutex
	path       string
	f          *os.File
	lock       *flock.Flock
	shadowPath string
	shadow     *os.File
	merging    bool
}

// OpenFileMedium opens (creating if necessary) the log file at path and
// takes an advisory exclusive lock on a sibling .lock file.
func OpenFileMedium(path string) (*FileMedium, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, &StorageError{Kind: StorageBackend, Operation: "open", Err: err}
	}
	if !locked {
		return nil, &StorageError{Kind: StorageBackend, Operation: "open", Err: fmt.Errorf("%s is locked by another process", path)}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, &StorageError{Kind: StorageIO, Operation: "open", Err: err}
	}
	return &FileMedium{path: path, f: f, lock: lock, shadowPath: path + ".merged"}, nil
}

func (m *FileMedium) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.f.Close()
	_ = m.lock.Unlock()
	return err
}

func (m *FileMedium) Read(offset Offset, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, length)
	n, err := m.f.ReadAt(out, int64(offset))
	if err != nil && n == 0 {
		// Past end-of-file: zero-fill per spec.md §4.1.
		return out, nil
	}
	return out, nil
}

func (m *FileMedium) Write(buf []byte) (Offset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target := m.f
	if m.merging {
		target = m.shadow
	}
	info, err := target.Stat()
	if err != nil {
		return 0, &StorageError{Kind: StorageIO, Operation: "write", Err: err}
	}
	off := Offset(info.Size())
	if _, err := target.WriteAt(buf, info.Size()); err != nil {
		return 0, &StorageError{Kind: StorageIO, Operation: "write", Err: err}
	}
	return off, nil
}

func (m *FileMedium) Truncate(length Offset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.f.Truncate(int64(length)); err != nil {
		return &StorageError{Kind: StorageIO, Operation: "truncate", Err: err}
	}
	return nil
}

func (m *FileMedium) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.f.Sync(); err != nil {
		return &StorageError{Kind: StorageIO, Operation: "flush", Err: err}
	}
	if m.merging && m.shadow != nil {
		if err := m.shadow.Sync(); err != nil {
			return &StorageError{Kind: StorageIO, Operation: "flush", Err: err}
		}
	}
	return nil
}

func (m *FileMedium) Len() (Offset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, err := m.f.Stat()
	if err != nil {
		return 0, &StorageError{Kind: StorageIO, Operation: "len", Err: err}
	}
	return Offset(info.Size()), nil
}

func (m *FileMedium) IsEmpty() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, err := m.f.Stat()
	if err != nil {
		return false, &StorageError{Kind: StorageIO, Operation: "is_empty", Err: err}
	}
	return info.Size() == 0, nil
}

func (m *FileMedium) StartMerge() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	shadow, err := os.OpenFile(m.shadowPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return &StorageError{Kind: StorageIO, Operation: "start_merge", Err: err}
	}
	m.shadow = shadow
	m.merging = true
	return nil
}

// StopMerge atomically renames the shadow file over the primary, matching
// the ".merged sibling renamed over the primary" recovery story of §6.1.
func (m *FileMedium) StopMerge() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.shadow.Sync(); err != nil {
		return &StorageError{Kind: StorageIO, Operation: "stop_merge", Err: err}
	}
	if err := m.shadow.Close(); err != nil {
		return &StorageError{Kind: StorageIO, Operation: "stop_merge", Err: err}
	}
	if err := m.f.Close(); err != nil {
		return &StorageError{Kind: StorageIO, Operation: "stop_merge", Err: err}
	}
	if err := os.Rename(m.shadowPath, m.path); err != nil {
		return &StorageError{Kind: StorageIO, Operation: "stop_merge", Err: err}
	}
	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return &StorageError{Kind: StorageIO, Operation: "stop_merge", Err: err}
	}
	m.f = f
	m.shadow = nil
	m.merging = false
	return nil
}
