package graph

import "strings"

// Queries is a read-only view over a Store for the derived operations of
// spec.md §4.5 (is_span/is_block/is_blank/is_cyclic/parents/before/after/
// ancestor_path/descendants/preview).
type Queries struct {
	store *Store
}

func NewQueries(store *Store) *Queries { return &Queries{store: store} }

// IsSpan reports whether n renders inline: Text, List(Chain,_), or
// Styled(Span,_) (recursing through its single child).
func (q *Queries) IsSpan(n Node) (bool, error) {
	switch n.Kind {
	case KindText:
		return true, nil
	case KindList:
		return n.Layout == Chain, nil
	case KindStyled:
		if n.Styles.Class == BlockStyles {
			return false, nil
		}
		child, err := q.resolveChild(*n.Child)
		if err != nil {
			return false, err
		}
		return q.IsSpan(child)
	}
	return false, nil
}

// IsBlock is the complement of IsSpan.
func (q *Queries) IsBlock(n Node) (bool, error) {
	isSpan, err := q.IsSpan(n)
	return !isSpan, err
}

func (q *Queries) resolveChild(c Child) (Node, error) {
	if !c.IsLazy {
		return c.Node, nil
	}
	n, ok, err := q.store.GetNode(c.Id)
	if err != nil {
		return Node{}, err
	}
	if !ok {
		return Node{}, &IdNotFoundError{Id: c.Id, Operation: "resolveChild", Context: "lazy child missing"}
	}
	return n, nil
}

// IsBlank reports whether every descendant text line trims to empty.
func (q *Queries) IsBlank(id Id) (bool, error) {
	visited := make(map[Id]bool)
	var walk func(n Node) (bool, error)
	walk = func(n Node) (bool, error) {
		switch n.Kind {
		case KindText:
			return strings.TrimSpace(n.Line) == "", nil
		case KindList:
			for _, c := range n.Children {
				blank, err := q.walkChild(c, visited, walk)
				if err != nil {
					return false, err
				}
				if !blank {
					return false, nil
				}
			}
			return true, nil
		case KindStyled:
			return q.walkChild(*n.Child, visited, walk)
		}
		return true, nil
	}
	n, ok, err := q.store.GetNode(id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, &IdNotFoundError{Id: id, Operation: "is_blank", Context: "root missing"}
	}
	visited[id] = true
	return walk(n)
}

func (q *Queries) walkChild(c Child, visited map[Id]bool, walk func(Node) (bool, error)) (bool, error) {
	if !c.IsLazy {
		return walk(c.Node)
	}
	if visited[c.Id] {
		return true, nil
	}
	visited[c.Id] = true
	n, ok, err := q.store.GetNode(c.Id)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return walk(n)
}

// IsCyclic reports whether id's subtree revisits an id already on the
// current path.
func (q *Queries) IsCyclic(id Id) (bool, error) {
	onPath := make(map[Id]bool)
	var walk func(id Id) (bool, error)
	walk = func(id Id) (bool, error) {
		if onPath[id] {
			return true, nil
		}
		onPath[id] = true
		defer delete(onPath, id)
		n, ok, err := q.store.GetNode(id)
		if err != nil || !ok {
			return false, err
		}
		_, children := Split(n)
		for _, c := range children {
			if !c.IsLazy {
				continue
			}
			cyclic, err := walk(c.Id)
			if err != nil {
				return false, err
			}
			if cyclic {
				return true, nil
			}
		}
		return false, nil
	}
	return walk(id)
}

// Parents returns id's current (parent, index) back-references.
func (q *Queries) Parents(id Id) ([]ParentPair, error) {
	return q.store.GetParents(id)
}

// siblingSearch walks id's parents collecting nodes that immediately
// precede (dir=-1) or follow (dir=+1) id within each parent list, skipping
// blank or Styled(Aside,_) siblings. When a parent list runs out of
// siblings in that direction, the search recurses into that parent's own
// parents, except where id renders as a block inside a span parent (id is
// then a link, and the search stops at that parent).
func (q *Queries) siblingSearch(id Id, dir int, visited map[Id]bool) (map[Id]bool, error) {
	result := make(map[Id]bool)
	if visited[id] {
		return result, nil
	}
	visited[id] = true

	parents, err := q.store.GetParents(id)
	if err != nil {
		return nil, err
	}
	for _, p := range parents {
		parentNode, ok, err := q.store.GetNode(p.Parent)
		if err != nil {
			return nil, err
		}
		if !ok || parentNode.Kind != KindList {
			continue
		}
		j := p.Index + dir
		for j >= 0 && j < len(parentNode.Children) {
			sib := parentNode.Children[j]
			if !sib.IsLazy {
				break
			}
			sibNode, ok, err := q.store.GetNode(sib.Id)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			if isAside(sibNode) {
				j += dir
				continue
			}
			blank, err := q.IsBlank(sib.Id)
			if err != nil {
				return nil, err
			}
			if blank {
				j += dir
				continue
			}
			result[sib.Id] = true
			break
		}

		childIsBlock, err := q.IsBlock(mustResolve(q, id))
		if err != nil {
			return nil, err
		}
		parentIsSpan := parentNode.Layout == Chain
		if childIsBlock && parentIsSpan {
			continue
		}
		if j < 0 || j >= len(parentNode.Children) {
			up, err := q.siblingSearch(p.Parent, dir, visited)
			if err != nil {
				return nil, err
			}
			for k := range up {
				result[k] = true
			}
		}
	}
	return result, nil
}

func mustResolve(q *Queries, id Id) Node {
	n, _, _ := q.store.GetNode(id)
	return n
}

func isAside(n Node) bool {
	if n.Kind != KindStyled || n.Styles.Class != BlockStyles {
		return false
	}
	for _, s := range n.Styles.Block {
		if s == Aside {
			return true
		}
	}
	return false
}

// Before returns the set of ids immediately preceding id across its
// parents.
func (q *Queries) Before(id Id) (map[Id]bool, error) {
	return q.siblingSearch(id, -1, make(map[Id]bool))
}

// After returns the set of ids immediately following id across its
// parents.
func (q *Queries) After(id Id) (map[Id]bool, error) {
	return q.siblingSearch(id, 1, make(map[Id]bool))
}

// AncestorPath walks upward from id while it has exactly one parent,
// returning the chain from id's immediate parent up to the topmost
// single-parented ancestor.
func (q *Queries) AncestorPath(id Id, untilLink bool) ([]Id, error) {
	var path []Id
	current := id
	for {
		parents, err := q.store.GetParents(current)
		if err != nil {
			return nil, err
		}
		if len(parents) != 1 {
			return path, nil
		}
		p := parents[0]
		if untilLink {
			parentNode, ok, err := q.store.GetNode(p.Parent)
			if err != nil {
				return nil, err
			}
			if ok {
				currentBlock, err := q.IsBlock(mustResolve(q, current))
				if err != nil {
					return nil, err
				}
				if currentBlock && parentNode.Layout == Chain {
					return path, nil
				}
			}
		}
		path = append(path, p.Parent)
		current = p.Parent
	}
}

// Descendants walks id's subtree depth-first. When untilLinks is true,
// children rendered as links (a block inside a span parent) are recorded
// but not recursed into.
func (q *Queries) Descendants(id Id, untilLinks bool) ([]Id, error) {
	visited := make(map[Id]bool)
	var out []Id
	var walk func(id Id) error
	walk = func(id Id) error {
		if visited[id] {
			return nil
		}
		visited[id] = true
		n, ok, err := q.store.GetNode(id)
		if err != nil || !ok {
			return err
		}
		isSpanParent, err := q.IsSpan(n)
		if err != nil {
			return err
		}
		_, children := Split(n)
		for _, c := range children {
			if !c.IsLazy {
				continue
			}
			out = append(out, c.Id)
			childNode, ok, err := q.store.GetNode(c.Id)
			if err != nil || !ok {
				continue
			}
			childIsBlock, err := q.IsBlock(childNode)
			if err != nil {
				return err
			}
			if untilLinks && childIsBlock && isSpanParent {
				continue
			}
			if err := walk(c.Id); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(id); err != nil {
		return nil, err
	}
	return out, nil
}

// PreviewKind tags the three outcomes of Preview.
type PreviewKind byte

const (
	PreviewEmpty PreviewKind = iota
	PreviewCyclic
	PreviewBlock
)

// Preview locates id's first non-blank leaf, accumulating all block/span
// styles along the path.
type Preview struct {
	Kind  PreviewKind
	Id    Id
	Node  Node
	Block []BlockStyle
	Span  []SpanStyle
}

// BuildPreview implements spec.md's preview(id).
func (q *Queries) BuildPreview(id Id) (Preview, error) {
	cyclic, err := q.IsCyclic(id)
	if err != nil {
		return Preview{}, err
	}
	if cyclic {
		return Preview{Kind: PreviewCyclic}, nil
	}

	var walk func(id Id, block []BlockStyle, span []SpanStyle) (Preview, bool, error)
	walk = func(id Id, block []BlockStyle, span []SpanStyle) (Preview, bool, error) {
		n, ok, err := q.store.GetNode(id)
		if err != nil {
			return Preview{}, false, err
		}
		if !ok {
			return Preview{}, false, nil
		}
		switch n.Kind {
		case KindText:
			if strings.TrimSpace(n.Line) == "" {
				return Preview{}, false, nil
			}
			return Preview{Kind: PreviewBlock, Id: id, Node: n, Block: block, Span: span}, true, nil
		case KindList:
			for _, c := range n.Children {
				if !c.IsLazy {
					continue
				}
				p, found, err := walk(c.Id, block, span)
				if err != nil {
					return Preview{}, false, err
				}
				if found {
					return p, true, nil
				}
			}
			return Preview{}, false, nil
		case KindStyled:
			nb, ns := block, span
			if n.Styles.Class == BlockStyles {
				nb = append(append([]BlockStyle(nil), block...), n.Styles.Block...)
			} else {
				ns = append(append([]SpanStyle(nil), span...), n.Styles.Span...)
			}
			if !n.Child.IsLazy {
				return walk2(q, n.Child.Node, nb, ns)
			}
			return walk(n.Child.Id, nb, ns)
		}
		return Preview{}, false, nil
	}

	p, found, err := walk(id, nil, nil)
	if err != nil {
		return Preview{}, err
	}
	if !found {
		return Preview{Kind: PreviewEmpty}, nil
	}
	return p, nil
}

func walk2(q *Queries, n Node, block []BlockStyle, span []SpanStyle) (Preview, bool, error) {
	switch n.Kind {
	case KindText:
		if strings.TrimSpace(n.Line) == "" {
			return Preview{}, false, nil
		}
		return Preview{Kind: PreviewBlock, Node: n, Block: block, Span: span}, true, nil
	case KindList:
		for _, c := range n.Children {
			var child Node
			var err error
			if c.IsLazy {
				var ok bool
				child, ok, err = q.store.GetNode(c.Id)
				if err != nil || !ok {
					continue
				}
			} else {
				child = c.Node
			}
			p, found, err := walk2(q, child, block, span)
			if err != nil {
				return Preview{}, false, err
			}
			if found {
				return p, true, nil
			}
		}
		return Preview{}, false, nil
	case KindStyled:
		nb, ns := block, span
		if n.Styles.Class == BlockStyles {
			nb = append(append([]BlockStyle(nil), block...), n.Styles.Block...)
		} else {
			ns = append(append([]SpanStyle(nil), span...), n.Styles.Span...)
		}
		if !n.Child.IsLazy {
			return walk2(q, n.Child.Node, nb, ns)
		}
		child, ok, err := q.store.GetNode(n.Child.Id)
		if err != nil || !ok {
			return Preview{}, false, err
		}
		return walk2(q, child, nb, ns)
	}
	return Preview{}, false, nil
}
