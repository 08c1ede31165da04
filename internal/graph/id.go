// Package graph implements the node model and mutation engine: typed node
// variants, lazy/eager children, parent back-indexes, and diamond-safe
// orphan collection (spec.md §4.4-§4.5).
package graph

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Id is a 128-bit node identifier. The all-zero Id is reserved for the
// root. Ids are compared lexicographically for stable ordering.
type Id [16]byte

// Root is the reserved all-zero id.
var Root Id

// NewId returns a fresh random 128-bit id.
func NewId() (Id, error) {
	var id Id
	if _, err := rand.Read(id[:]); err != nil {
		return Id{}, fmt.Errorf("graph: new id: %w", err)
	}
	return id, nil
}

// Less reports whether id sorts before other, lexicographically.
func (id Id) Less(other Id) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// Xor returns id XOR other, the namespacing operation used by import/export
// (spec.md §4.7).
func (id Id) Xor(other Id) Id {
	var out Id
	for i := range id {
		out[i] = id[i] ^ other[i]
	}
	return out
}

func (id Id) String() string { return hex.EncodeToString(id[:]) }

// ParseId parses a 32-character hex string into an Id.
func ParseId(s string) (Id, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Id{}, fmt.Errorf("graph: parse id %q: %w", s, err)
	}
	if len(b) != 16 {
		return Id{}, fmt.Errorf("graph: parse id %q: want 16 bytes, got %d", s, len(b))
	}
	var id Id
	copy(id[:], b)
	return id, nil
}

// ParentPair is a (parent, index) back-reference: the containing node and
// the position the child occupies within it.
type ParentPair struct {
	Parent Id
	Index  int
}
