package graph

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

// Kind tags the three node variants of spec.md §3.
type Kind byte

const (
	KindText Kind = iota
	KindList
	KindStyled
)

// Layout is the ordering discipline of a List node.
type Layout byte

const (
	Chain Layout = iota // renders inline; a span
	Page                // renders vertically stacked; a block
)

// StyleClass distinguishes block styles from span styles; a Styled node's
// style set is one or the other, never mixed.
type StyleClass byte

const (
	BlockStyles StyleClass = iota
	SpanStyles
)

// BlockStyle values, in their total enum order (spec.md §9: "Styles are
// kept in deterministic order... so that serialized images are
// byte-reproducible").
type BlockStyle byte

const (
	Heading BlockStyle = iota
	ListStyle
	Quote
	Aside
)

// SpanStyle values, in total enum order.
type SpanStyle byte

const (
	Bold SpanStyle = iota
	Italic
	Struck
	Mono
	Marked
)

// Styles is the (possibly empty, at construction time only) style set
// carried by a Styled node.
type Styles struct {
	Class StyleClass
	Block []BlockStyle
	Span  []SpanStyle
}

func (s Styles) empty() bool {
	return len(s.Block) == 0 && len(s.Span) == 0
}

func (s Styles) sorted() Styles {
	out := Styles{Class: s.Class}
	if s.Class == BlockStyles {
		out.Block = append([]BlockStyle(nil), s.Block...)
		sort.Slice(out.Block, func(i, j int) bool { return out.Block[i] < out.Block[j] })
		out.Block = dedupBlock(out.Block)
	} else {
		out.Span = append([]SpanStyle(nil), s.Span...)
		sort.Slice(out.Span, func(i, j int) bool { return out.Span[i] < out.Span[j] })
		out.Span = dedupSpan(out.Span)
	}
	return out
}

func dedupBlock(s []BlockStyle) []BlockStyle {
	out := s[:0:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}

func dedupSpan(s []SpanStyle) []SpanStyle {
	out := s[:0:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// Child is either a reference to a persisted node (Lazy) or an inlined
// value awaiting its first persistence (Eager). Exactly one of Id/Node is
// meaningful, selected by IsLazy.
type Child struct {
	IsLazy bool
	Id     Id
	Node   Node
}

// Lazy builds a lazy child reference.
func Lazy(id Id) Child { return Child{IsLazy: true, Id: id} }

// Eager builds an inlined child value.
func Eager(n Node) Child { return Child{IsLazy: false, Node: n} }

// Node is a tagged-variant node value, per spec.md §3.
type Node struct {
	Kind Kind

	Line string // KindText

	Layout   Layout // KindList
	Children []Child

	Styles Styles // KindStyled
	Child  *Child
}

// TextLine builds a Text node from a single line. Returns an error if line
// contains a line-feed, preserving the "guaranteed to contain no
// line-feed" invariant.
func TextLine(line string) (Node, error) {
	if strings.ContainsRune(line, '\n') {
		return Node{}, fmt.Errorf("graph: text line must not contain a line-feed")
	}
	return Node{Kind: KindText, Line: line}, nil
}

// Text splits s on line-feeds, returning either a single Text line or a
// List(Page, lines) if s contains more than one line (spec.md §4.4).
func Text(s string) Node {
	lines := strings.Split(s, "\n")
	if len(lines) == 1 {
		return Node{Kind: KindText, Line: lines[0]}
	}
	children := make([]Child, len(lines))
	for i, l := range lines {
		children[i] = Eager(Node{Kind: KindText, Line: l})
	}
	return Node{Kind: KindList, Layout: Page, Children: children}
}

// NewList builds a List node.
func NewList(layout Layout, children []Child) Node {
	return Node{Kind: KindList, Layout: layout, Children: children}
}

// NewStyled builds a Styled node. An empty style set degenerates to the
// raw child (spec.md §4.4), rather than erroring; a lazy child is then
// returned wrapped in a one-child Chain list.
func NewStyled(styles Styles, child Child) Node {
	if styles.empty() {
		if child.IsLazy {
			// A lazy child with no styles still needs materializing into a
			// concrete Node to return by value; callers that hit this with a
			// lazy child should resolve it themselves before calling NewStyled
			// with a style-less set. In practice mutate.go never does.
			return Node{Kind: KindList, Layout: Chain, Children: []Child{child}}
		}
		return child.Node
	}
	s := styles.sorted()
	c := child
	return Node{Kind: KindStyled, Styles: s, Child: &c}
}

// Split extracts n's variant shell (style/layout, no children) and its
// children, per spec.md §4.4. Text yields no children.
func Split(n Node) (shell Node, children []Child) {
	switch n.Kind {
	case KindText:
		return Node{Kind: KindText, Line: n.Line}, nil
	case KindList:
		return Node{Kind: KindList, Layout: n.Layout}, append([]Child(nil), n.Children...)
	case KindStyled:
		return Node{Kind: KindStyled, Styles: n.Styles}, []Child{*n.Child}
	}
	return Node{}, nil
}

// ChildrenMismatchError is raised by With when the supplied children are
// incompatible with the shell's kind (0 for Text, 1 for Styled, any count
// for List).
type ChildrenMismatchError struct {
	Kind     Kind
	Expected string
	Actual   int
}

func (e *ChildrenMismatchError) Error() string {
	return fmt.Sprintf("graph: children mismatch: kind %d expects %s children, got %d", e.Kind, e.Expected, e.Actual)
}

// With rebuilds a node from a shell and a children vector.
func With(shell Node, children []Child) (Node, error) {
	switch shell.Kind {
	case KindText:
		if len(children) != 0 {
			return Node{}, &ChildrenMismatchError{Kind: shell.Kind, Expected: "0", Actual: len(children)}
		}
		return shell, nil
	case KindList:
		out := shell
		out.Children = children
		return out, nil
	case KindStyled:
		if len(children) != 1 {
			return Node{}, &ChildrenMismatchError{Kind: shell.Kind, Expected: "1", Actual: len(children)}
		}
		out := shell
		c := children[0]
		out.Child = &c
		return out, nil
	}
	return Node{}, fmt.Errorf("graph: with: unknown shell kind %d", shell.Kind)
}

// --- wire encoding -------------------------------------------------------
//
// Only the "persisted form" of a node is ever marshaled: every Child must
// be Lazy by the time a node reaches storage (spec.md §3: "Eager children
// must be materialized to Lazy on first persistence").

// Marshal encodes n for storage. It errors if an Eager child is present.
func Marshal(n Node) ([]byte, error) {
	var buf []byte
	var err error
	buf, err = marshalInto(buf, n)
	return buf, err
}

func marshalInto(buf []byte, n Node) ([]byte, error) {
	buf = append(buf, byte(n.Kind))
	switch n.Kind {
	case KindText:
		buf = appendString(buf, n.Line)
	case KindList:
		buf = append(buf, byte(n.Layout))
		buf = appendUvarint(buf, uint64(len(n.Children)))
		for _, c := range n.Children {
			var err error
			buf, err = marshalChild(buf, c)
			if err != nil {
				return nil, err
			}
		}
	case KindStyled:
		buf = append(buf, byte(n.Styles.Class))
		if n.Styles.Class == BlockStyles {
			buf = appendUvarint(buf, uint64(len(n.Styles.Block)))
			for _, s := range n.Styles.Block {
				buf = append(buf, byte(s))
			}
		} else {
			buf = appendUvarint(buf, uint64(len(n.Styles.Span)))
			for _, s := range n.Styles.Span {
				buf = append(buf, byte(s))
			}
		}
		var err error
		buf, err = marshalChild(buf, *n.Child)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("graph: marshal: unknown kind %d", n.Kind)
	}
	return buf, nil
}

func marshalChild(buf []byte, c Child) ([]byte, error) {
	if !c.IsLazy {
		return nil, fmt.Errorf("graph: marshal: eager child not materialized before persistence")
	}
	buf = append(buf, c.Id[:]...)
	return buf, nil
}

func appendString(buf []byte, s string) []byte {
	buf = appendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// Unmarshal decodes a node previously written by Marshal. All children
// decode as Lazy references.
func Unmarshal(data []byte) (Node, error) {
	n, rest, err := unmarshalFrom(data)
	if err != nil {
		return Node{}, err
	}
	if len(rest) != 0 {
		return Node{}, fmt.Errorf("graph: unmarshal: %d trailing bytes", len(rest))
	}
	return n, nil
}

func unmarshalFrom(data []byte) (Node, []byte, error) {
	if len(data) == 0 {
		return Node{}, nil, fmt.Errorf("graph: unmarshal: empty buffer")
	}
	kind := Kind(data[0])
	data = data[1:]
	switch kind {
	case KindText:
		line, rest, err := readString(data)
		if err != nil {
			return Node{}, nil, err
		}
		return Node{Kind: KindText, Line: line}, rest, nil
	case KindList:
		if len(data) < 1 {
			return Node{}, nil, fmt.Errorf("graph: unmarshal: truncated list")
		}
		layout := Layout(data[0])
		data = data[1:]
		count, rest, err := readUvarint(data)
		if err != nil {
			return Node{}, nil, err
		}
		data = rest
		children := make([]Child, 0, count)
		for i := uint64(0); i < count; i++ {
			var c Child
			c, data, err = unmarshalChild(data)
			if err != nil {
				return Node{}, nil, err
			}
			children = append(children, c)
		}
		return Node{Kind: KindList, Layout: layout, Children: children}, data, nil
	case KindStyled:
		if len(data) < 1 {
			return Node{}, nil, fmt.Errorf("graph: unmarshal: truncated styled")
		}
		class := StyleClass(data[0])
		data = data[1:]
		count, rest, err := readUvarint(data)
		if err != nil {
			return Node{}, nil, err
		}
		data = rest
		styles := Styles{Class: class}
		if class == BlockStyles {
			for i := uint64(0); i < count; i++ {
				if len(data) < 1 {
					return Node{}, nil, fmt.Errorf("graph: unmarshal: truncated block styles")
				}
				styles.Block = append(styles.Block, BlockStyle(data[0]))
				data = data[1:]
			}
		} else {
			for i := uint64(0); i < count; i++ {
				if len(data) < 1 {
					return Node{}, nil, fmt.Errorf("graph: unmarshal: truncated span styles")
				}
				styles.Span = append(styles.Span, SpanStyle(data[0]))
				data = data[1:]
			}
		}
		var c Child
		c, data, err = unmarshalChild(data)
		if err != nil {
			return Node{}, nil, err
		}
		return Node{Kind: KindStyled, Styles: styles, Child: &c}, data, nil
	default:
		return Node{}, nil, fmt.Errorf("graph: unmarshal: unknown kind %d", kind)
	}
}

func unmarshalChild(data []byte) (Child, []byte, error) {
	if len(data) < 16 {
		return Child{}, nil, fmt.Errorf("graph: unmarshal: truncated child id")
	}
	var id Id
	copy(id[:], data[:16])
	return Lazy(id), data[16:], nil
}

func readString(data []byte) (string, []byte, error) {
	n, rest, err := readUvarint(data)
	if err != nil {
		return "", nil, err
	}
	if uint64(len(rest)) < n {
		return "", nil, fmt.Errorf("graph: unmarshal: truncated string")
	}
	return string(rest[:n]), rest[n:], nil
}

func readUvarint(data []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, nil, fmt.Errorf("graph: unmarshal: bad varint")
	}
	return v, data[n:], nil
}

// MarshalParents encodes a parent set.
func MarshalParents(parents []ParentPair) []byte {
	var buf []byte
	buf = appendUvarint(buf, uint64(len(parents)))
	for _, p := range parents {
		buf = append(buf, p.Parent[:]...)
		buf = appendUvarint(buf, uint64(p.Index))
	}
	return buf
}

// UnmarshalParents decodes a parent set written by MarshalParents.
func UnmarshalParents(data []byte) ([]ParentPair, error) {
	n, rest, err := readUvarint(data)
	if err != nil {
		return nil, err
	}
	out := make([]ParentPair, 0, n)
	for i := uint64(0); i < n; i++ {
		if len(rest) < 16 {
			return nil, fmt.Errorf("graph: unmarshal parents: truncated id")
		}
		var id Id
		copy(id[:], rest[:16])
		rest = rest[16:]
		idx, r2, err := readUvarint(rest)
		if err != nil {
			return nil, err
		}
		rest = r2
		out = append(out, ParentPair{Parent: id, Index: int(idx)})
	}
	return out, nil
}
