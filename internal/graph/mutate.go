package graph

// Graph is the mutation engine described in spec.md §4.5: add, swap, and
// restore, each expressed against a single Store (and therefore a single
// underlying transactional snapshot — callers commit or abort it).
type Graph struct {
	store *Store
}

// NewGraph wraps a Store for mutation.
func NewGraph(store *Store) *Graph { return &Graph{store: store} }

// Open ensures the root id exists (invariant I4): if the underlying log is
// empty, an empty List(Page, []) is written under Root with empty parents.
func (g *Graph) Open() error {
	_, ok, err := g.store.GetNode(Root)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := g.store.PutNode(Root, NewList(Page, nil)); err != nil {
		return err
	}
	return g.store.PutParents(Root, nil)
}

// Add assigns a fresh id to n, recursively materializing any eager
// children and reparenting any lazy ones, and returns the new id.
func (g *Graph) Add(n Node) (Id, error) {
	return g.add(n)
}

func (g *Graph) add(n Node) (Id, error) {
	id, err := NewId()
	if err != nil {
		return Id{}, err
	}
	shell, children := Split(n)
	lazified := make([]Child, len(children))
	for i, c := range children {
		childId, err := g.adoptChild(id, i, c, nil)
		if err != nil {
			return Id{}, err
		}
		lazified[i] = Lazy(childId)
	}
	full, err := With(shell, lazified)
	if err != nil {
		return Id{}, err
	}
	if err := g.store.PutNode(id, full); err != nil {
		return Id{}, err
	}
	if err := g.store.PutParents(id, nil); err != nil {
		return Id{}, err
	}
	return id, nil
}

// adoptChild makes child appear at (parent, index): if eager it is added
// fresh; if lazy it is restored (no-op if already live) and reparented,
// with any entries named in drop (obsolete parent-pairs being revoked by a
// concurrent swap) removed first.
func (g *Graph) adoptChild(parent Id, index int, c Child, drop map[ParentPair]bool) (Id, error) {
	if !c.IsLazy {
		childId, err := g.add(c.Node)
		if err != nil {
			return Id{}, err
		}
		if err := g.store.AddParentPair(childId, ParentPair{Parent: parent, Index: index}); err != nil {
			return Id{}, err
		}
		return childId, nil
	}

	childId := c.Id
	if err := g.restore(childId); err != nil {
		if _, isNoNeed := err.(*NoNeedToRestoreError); !isNoNeed {
			return Id{}, err
		}
	}
	if err := g.store.RemoveParentPairs(childId, drop); err != nil {
		return Id{}, err
	}
	if err := g.store.AddParentPair(childId, ParentPair{Parent: parent, Index: index}); err != nil {
		return Id{}, err
	}
	return childId, nil
}

// Swap replaces the contents of id in place, garbage-collecting descendants
// that become unreachable and preserving shared subgraphs still reachable
// from the replacement (spec.md §4.5).
func (g *Graph) Swap(id Id, replacement Node) error {
	existing, ok, err := g.store.GetNode(id)
	if err != nil {
		return err
	}
	if !ok {
		return &IdNotFoundError{Id: id, Operation: "swap", Context: "target id missing"}
	}

	_, existingChildren := Split(existing)
	obsoleteParents := make(map[Id]map[ParentPair]bool)
	existingIds := make(map[Id]bool)
	for i, c := range existingChildren {
		if !c.IsLazy {
			continue
		}
		existingIds[c.Id] = true
		if obsoleteParents[c.Id] == nil {
			obsoleteParents[c.Id] = make(map[ParentPair]bool)
		}
		obsoleteParents[c.Id][ParentPair{Parent: id, Index: i}] = true
	}

	_, newChildrenShape := Split(replacement)
	lazyChildIds := make(map[Id]bool)
	newChildren := make([]Child, len(newChildrenShape))
	for i, c := range newChildrenShape {
		var childId Id
		if c.IsLazy {
			cid, err := g.adoptChild(id, i, c, obsoleteParents[c.Id])
			if err != nil {
				return err
			}
			childId = cid
		} else {
			cid, err := g.adoptChild(id, i, c, nil)
			if err != nil {
				return err
			}
			childId = cid
		}
		lazyChildIds[childId] = true
		newChildren[i] = Lazy(childId)
	}

	removed := make(map[Id]bool)
	for cid := range existingIds {
		if !lazyChildIds[cid] {
			removed[cid] = true
		}
	}

	obsolete := make(map[Id]bool)
	remainingChildren := make(map[Id]bool)
	queue := make([]Id, 0, len(removed))
	for cid := range removed {
		queue = append(queue, cid)
	}
	for len(queue) > 0 {
		cid := queue[0]
		queue = queue[1:]
		if lazyChildIds[cid] || obsolete[cid] {
			continue
		}
		parents, err := g.store.GetParents(cid)
		if err != nil {
			return err
		}
		allObsoleteOrSelf := true
		for _, p := range parents {
			if p.Parent == id || obsolete[p.Parent] {
				continue
			}
			allObsoleteOrSelf = false
			break
		}
		if allObsoleteOrSelf {
			obsolete[cid] = true
			delete(remainingChildren, cid)
			node, ok, err := g.store.GetNode(cid)
			if err != nil {
				return err
			}
			if ok {
				_, children := Split(node)
				for _, c := range children {
					if c.IsLazy {
						queue = append(queue, c.Id)
					}
				}
			}
		} else {
			remainingChildren[cid] = true
		}
	}

	for cid := range obsolete {
		if err := g.store.RemoveParents(cid); err != nil {
			return err
		}
		if err := g.store.RemoveNode(cid); err != nil {
			return err
		}
	}

	for cid := range remainingChildren {
		parents, err := g.store.GetParents(cid)
		if err != nil {
			return err
		}
		drop := make(map[ParentPair]bool)
		for _, p := range parents {
			if p.Parent == id || obsolete[p.Parent] {
				drop[p] = true
			}
		}
		if err := g.store.RemoveParentPairs(cid, drop); err != nil {
			return err
		}
	}

	shell, _ := Split(replacement)
	full, err := With(shell, newChildren)
	if err != nil {
		return err
	}
	return g.store.PutNode(id, full)
}

// restore is the internal, idempotent form used by add/swap/Restore: it is
// a no-op if id is already live.
func (g *Graph) restore(id Id) error {
	_, isLive, err := g.store.GetNode(id)
	if err != nil {
		return err
	}
	if isLive {
		return &NoNeedToRestoreError{Id: id}
	}
	node, wasRemoved, exists, err := g.store.GetNodeInTrash(id)
	if err != nil {
		return err
	}
	if !exists {
		return &IdNotFoundError{Id: id, Operation: "restore", Context: "no persisted node, even in trash"}
	}
	if !wasRemoved {
		return &NoNeedToRestoreError{Id: id}
	}

	if err := g.store.PutNode(id, node); err != nil {
		return err
	}
	if err := g.store.PutParents(id, nil); err != nil {
		return err
	}

	_, children := Split(node)
	for i, c := range children {
		if !c.IsLazy {
			continue
		}
		_, childLive, err := g.store.GetNode(c.Id)
		if err != nil {
			return err
		}
		if !childLive {
			if err := g.restore(c.Id); err != nil {
				if _, isNoNeed := err.(*NoNeedToRestoreError); !isNoNeed {
					return err
				}
			}
		}
		if err := g.store.AddParentPair(c.Id, ParentPair{Parent: id, Index: i}); err != nil {
			return err
		}
	}
	return nil
}

// Restore undoes a removal, transitively restoring any descendants that
// were themselves tombstoned. Returns NoNeedToRestoreError, mutating
// nothing, if id is live, and IdNotFoundError if id has no persisted node
// at all.
func (g *Graph) Restore(id Id) error {
	return g.restore(id)
}

// Update rewrites id's List children via f and swaps the result in.
// WrongNodeTypeError if id is not a List.
func (g *Graph) Update(id Id, f func([]Child) []Child) error {
	n, ok, err := g.store.GetNode(id)
	if err != nil {
		return err
	}
	if !ok {
		return &IdNotFoundError{Id: id, Operation: "update", Context: "target missing"}
	}
	if n.Kind != KindList {
		return &WrongNodeTypeError{Expected: "List", Actual: n.Kind}
	}
	replacement := n
	replacement.Children = f(append([]Child(nil), n.Children...))
	return g.Swap(id, replacement)
}

// Remove drops the child at index i from id's List.
func (g *Graph) Remove(id Id, i int) error {
	return g.Update(id, func(children []Child) []Child {
		if i < 0 || i >= len(children) {
			return children
		}
		return append(append([]Child(nil), children[:i]...), children[i+1:]...)
	})
}

// Replace swaps in c at index i of id's List.
func (g *Graph) Replace(id Id, i int, c Child) error {
	return g.Update(id, func(children []Child) []Child {
		if i < 0 || i >= len(children) {
			return children
		}
		out := append([]Child(nil), children...)
		out[i] = c
		return out
	})
}

// Insert places c at index i of id's List, shifting later children right.
func (g *Graph) Insert(id Id, i int, c Child) error {
	return g.Update(id, func(children []Child) []Child {
		if i < 0 || i > len(children) {
			i = len(children)
		}
		out := make([]Child, 0, len(children)+1)
		out = append(out, children[:i]...)
		out = append(out, c)
		out = append(out, children[i:]...)
		return out
	})
}

// Push appends c to id's List.
func (g *Graph) Push(id Id, c Child) error {
	return g.Update(id, func(children []Child) []Child {
		return append(append([]Child(nil), children...), c)
	})
}
