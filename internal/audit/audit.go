// Package audit is the append-only mutation trail: every graph mutation a
// db.Tx applies is recorded as one JSON line when it succeeds, before the
// transaction commits, so mutations of aborted transactions appear too. The file is rotated through
// gopkg.in/natefinch/lumberjack.v2 so it never grows unbounded across a
// long-lived .gram directory.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/untoldecay/gram/internal/graph"
)

// FileName is the audit log file name stored under .gram/.
const FileName = "mutations.jsonl"

// Kind tags the operation an Entry records.
type Kind string

const (
	KindAdd       Kind = "add"
	KindSwap      Kind = "swap"
	KindRestore   Kind = "restore"
	KindRemove    Kind = "remove"
	KindReplace   Kind = "replace"
	KindInsert    Kind = "insert"
	KindPush      Kind = "push"
	KindImport    Kind = "import"
	KindPublish   Kind = "publish"
	KindSubscribe Kind = "subscribe"
	KindFetch     Kind = "fetch"
)

// Entry is a single append-only audit event.
type Entry struct {
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	Actor     string    `json:"actor,omitempty"`

	// The primary id the operation acted on (the node added/swapped/removed
	// from, the export root, the broadcast id...).
	Id string `json:"id,omitempty"`

	// Index, for list conveniences that act at a position.
	Index *int `json:"index,omitempty"`

	Error string `json:"error,omitempty"`
}

// Log is an open handle onto the rotating mutation log.
type Log struct {
	mu     sync.Mutex
	actor  string
	writer *lumberjack.Logger
	enc    *json.Encoder
}

// Open opens (creating if necessary) the mutation log under dir, owned by
// actor (see config.GetIdentity).
func Open(dir, actor string) (*Log, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("audit: create log directory: %w", err)
	}
	lj := &lumberjack.Logger{
		Filename:   filepath.Join(dir, FileName),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     90, // days
		Compress:   true,
	}
	enc := json.NewEncoder(lj)
	enc.SetEscapeHTML(false)
	return &Log{actor: actor, writer: lj, enc: enc}, nil
}

// Close flushes and closes the underlying rotated file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Close()
}

// Record appends e, filling in CreatedAt/Actor if unset.
func (l *Log) Record(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Actor == "" {
		e.Actor = l.actor
	}
	if err := l.enc.Encode(e); err != nil {
		return fmt.Errorf("audit: write mutation log entry: %w", err)
	}
	return nil
}

// Mutation is a convenience constructor for node-mutation entries.
func Mutation(kind Kind, id graph.Id) Entry {
	return Entry{Kind: kind, Id: id.String()}
}

// Failed attaches an error to an entry built by Mutation, for recording
// attempted-but-failed operations without losing the audit trail.
func Failed(e Entry, err error) Entry {
	e.Error = err.Error()
	return e
}
