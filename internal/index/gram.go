// Package index builds and maintains the incremental n-gram similarity
// index over the graph: per-block gram vectors, diff-based inverted-index
// updates, and symmetric/asymmetric overlap scoring (spec.md §4.6).
package index

import (
	"encoding/binary"

	"github.com/untoldecay/gram/internal/graph"
)

// Grams extracts the n+3 four-byte grams of s, treating s as padded by
// three zero bytes on each side and read big-endian.
func Grams(s []byte) []uint32 {
	padded := make([]byte, len(s)+6)
	copy(padded[3:], s)
	out := make([]uint32, len(s)+3)
	for i := range out {
		out[i] = binary.BigEndian.Uint32(padded[i : i+4])
	}
	return out
}

// overlapJoin combines an accumulator (itself the overlap-join of the
// children seen so far) with the next child's gram vector: the
// accumulator's trailing three grams are bitwise-ORed with the child's
// leading three, and the child's remaining grams are appended.
func overlapJoin(acc, child []uint32) []uint32 {
	if len(acc) < 3 || len(child) < 3 {
		// Defensive only: every real gram vector has length >= 3 (the empty
		// string already yields [0,0,0]).
		return append(append([]uint32(nil), acc...), child...)
	}
	out := make([]uint32, 0, len(acc)+len(child)-3)
	out = append(out, acc[:len(acc)-3]...)
	for i := 0; i < 3; i++ {
		out = append(out, acc[len(acc)-3+i]|child[i])
	}
	out = append(out, child[3:]...)
	return out
}

// Vectors is the per-run working state described in spec.md §4.6: blocks
// holds the gram vector of every lazy direct child of a Page list or of a
// block-styled node, whatever that child's own kind; all holds the gram
// vector of every visited id, block or not.
type Vectors struct {
	Blocks map[graph.Id][]uint32
	All    map[graph.Id][]uint32
}

// builder computes Vectors for a subtree, resolving lazy children through
// a graph.Store and guarding cycles via a visited-parents stack. The walk
// itself is recursive.
type builder struct {
	store   *graph.Store
	onStack map[graph.Id]bool
	out     *Vectors
}

// NewVectors returns an empty accumulator suitable for ExtendVectors.
func NewVectors() *Vectors {
	return &Vectors{Blocks: make(map[graph.Id][]uint32), All: make(map[graph.Id][]uint32)}
}

// BuildVectors computes the gram vectors for id's subtree from scratch.
func BuildVectors(store *graph.Store, id graph.Id) (*Vectors, error) {
	return ExtendVectors(store, NewVectors(), id)
}

// ExtendVectors extends out in place with id's subtree, reusing any entry
// already present in out.All for an id instead of recomputing it. This lets
// repeated calls against a growing accumulator (the upward parent walk in
// Reindex) avoid rebuilding the same lower subtrees over and over, matching
// the memoized traversal in assemblage_db/src/index.rs's Index::index.
func ExtendVectors(store *graph.Store, out *Vectors, id graph.Id) (*Vectors, error) {
	b := &builder{
		store:   store,
		onStack: make(map[graph.Id]bool),
		out:     out,
	}
	if _, err := b.visit(id); err != nil {
		return nil, err
	}
	return b.out, nil
}

func (b *builder) visit(id graph.Id) ([]uint32, error) {
	if vec, ok := b.out.All[id]; ok {
		return vec, nil
	}
	n, ok, err := b.store.GetNode(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []uint32{0, 0, 0}, nil
	}
	if b.onStack[id] {
		return []uint32{0, 0, 0}, nil
	}
	b.onStack[id] = true
	defer delete(b.onStack, id)

	vec, err := b.visitNode(n)
	if err != nil {
		return nil, err
	}
	b.out.All[id] = vec
	return vec, nil
}

func (b *builder) visitNode(n graph.Node) ([]uint32, error) {
	switch n.Kind {
	case graph.KindText:
		return Grams([]byte(n.Line)), nil
	case graph.KindList:
		if n.Layout == graph.Chain {
			acc := []uint32{0, 0, 0}
			for _, c := range n.Children {
				childVec, err := b.visitChild(c)
				if err != nil {
					return nil, err
				}
				acc = overlapJoin(acc, childVec)
			}
			return acc, nil
		}
		// Page: every direct child is recorded as a block under its own id,
		// regardless of whether the child itself renders as a span or a
		// block; the page node itself contributes only [0,0,0] upward.
		for _, c := range n.Children {
			childVec, err := b.visitChild(c)
			if err != nil {
				return nil, err
			}
			if c.IsLazy {
				b.out.Blocks[c.Id] = childVec
			}
		}
		return []uint32{0, 0, 0}, nil
	case graph.KindStyled:
		childVec, err := b.visitChild(*n.Child)
		if err != nil {
			return nil, err
		}
		if n.Styles.Class == graph.BlockStyles {
			// A styled block behaves like a Page child: its child is
			// recorded as a block under its own id, and the styled node
			// contributes only [0,0,0] upward.
			if n.Child.IsLazy {
				b.out.Blocks[n.Child.Id] = childVec
			}
			return []uint32{0, 0, 0}, nil
		}
		return childVec, nil
	}
	return []uint32{0, 0, 0}, nil
}

func (b *builder) visitChild(c graph.Child) ([]uint32, error) {
	if !c.IsLazy {
		return b.visitNode(c.Node)
	}
	return b.visit(c.Id)
}
