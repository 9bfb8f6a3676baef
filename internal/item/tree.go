package item

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotDirectory is returned when adding a child under a file.
	ErrNotDirectory = errors.New("parent is not a directory")
	// ErrDuplicateIdentifier is returned when a sibling already carries the
	// same identifier.
	ErrDuplicateIdentifier = errors.New("duplicate identifier among siblings")
	// ErrInvalidNode is returned for out-of-range node IDs and malformed trees.
	ErrInvalidNode = errors.New("invalid node")
)

type siblingKey struct {
	identifier uint64
	parent     NodeID
}

// Tree is an arena of Items. The root directory lives at RootID and every
// other node is appended after its parent, so parent IDs are always smaller
// than child IDs.
type Tree struct {
	items    []Item
	parents  []NodeID
	siblings map[siblingKey]NodeID
}

// NewTree creates a tree holding only root. The root is copied; its Children
// are ignored.
func NewTree(root *Directory) *Tree {
	cp := *root
	cp.Children = nil
	return &Tree{
		items:    []Item{&cp},
		parents:  []NodeID{NoParent},
		siblings: make(map[siblingKey]NodeID),
	}
}

// Add copies child into the arena under parent and returns its ID.
func (t *Tree) Add(parent NodeID, child Item) (NodeID, error) {
	if !t.valid(parent) {
		return 0, fmt.Errorf("add under %d: %w", parent, ErrInvalidNode)
	}
	dir, ok := t.items[parent].(*Directory)
	if !ok {
		return 0, fmt.Errorf("add %q under %q: %w", child.Attributes().Name, t.Path(parent), ErrNotDirectory)
	}

	key := siblingKey{identifier: child.Attributes().Identifier, parent: parent}
	if _, dup := t.siblings[key]; dup {
		return 0, fmt.Errorf("add %q under %q: %w", child.Attributes().Name, t.Path(parent), ErrDuplicateIdentifier)
	}

	var stored Item
	switch c := child.(type) {
	case *File:
		cp := *c
		stored = &cp
	case *Directory:
		cp := *c
		cp.Children = nil
		stored = &cp
	default:
		return 0, fmt.Errorf("add %T: %w", child, ErrInvalidNode)
	}

	id := NodeID(len(t.items))
	t.items = append(t.items, stored)
	t.parents = append(t.parents, parent)
	t.siblings[key] = id
	dir.Children = append(dir.Children, id)
	return id, nil
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.items)
}

// Len returns the number of nodes, root included.
func (t *Tree) Len() int { return len(t.items) }

// Root returns the root directory.
func (t *Tree) Root() *Directory {
	return t.items[RootID].(*Directory) //nolint:forcetypeassert // invariant of NewTree
}

// Get returns the item stored at id, or nil if id is out of range.
func (t *Tree) Get(id NodeID) Item {
	if !t.valid(id) {
		return nil
	}
	return t.items[id]
}

// Parent returns the parent of id, or NoParent for the root.
func (t *Tree) Parent(id NodeID) NodeID {
	if !t.valid(id) {
		return NoParent
	}
	return t.parents[id]
}

// Children returns the child IDs of id in insertion order. Files have none.
func (t *Tree) Children(id NodeID) []NodeID {
	if d, ok := t.Get(id).(*Directory); ok {
		return d.Children
	}
	return nil
}

// Child looks up the child of parent carrying identifier.
func (t *Tree) Child(parent NodeID, identifier uint64) (NodeID, bool) {
	id, ok := t.siblings[siblingKey{identifier: identifier, parent: parent}]
	return id, ok
}

// Path returns the slash-separated path of id relative to the root. The
// root's path is "".
func (t *Tree) Path(id NodeID) string {
	if !t.valid(id) || id == RootID {
		return ""
	}
	var parts []string
	for cur := id; cur != RootID && cur != NoParent; cur = t.parents[cur] {
		parts = append(parts, t.items[cur].Attributes().Name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// SetAddPending sets the AddPending flag of the file at id. It is a no-op
// for directories.
func (t *Tree) SetAddPending(id NodeID, pending bool) {
	if f, ok := t.Get(id).(*File); ok {
		f.AddPending = pending
	}
}

// Walk visits from and its descendants in pre-order, children in insertion
// order. depth is 0 for from. Returning an error stops the walk.
func (t *Tree) Walk(from NodeID, fn func(id NodeID, depth int) error) error {
	if !t.valid(from) {
		return fmt.Errorf("walk from %d: %w", from, ErrInvalidNode)
	}
	type frame struct {
		id    NodeID
		depth int
	}
	stack := []frame{{id: from}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := fn(top.id, top.depth); err != nil {
			return err
		}
		children := t.Children(top.id)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: children[i], depth: top.depth + 1})
		}
	}
	return nil
}

// Index maps every file identifier in the tree to its node. When the same
// identifier appears in several directories (hard links) the first one in
// pre-order wins.
func (t *Tree) Index() map[uint64]NodeID {
	idx := make(map[uint64]NodeID, len(t.items))
	_ = t.Walk(RootID, func(id NodeID, _ int) error { //nolint:errcheck // callback never fails
		if _, ok := t.items[id].(*File); !ok {
			return nil
		}
		ident := t.items[id].Attributes().Identifier
		if _, seen := idx[ident]; !seen {
			idx[ident] = id
		}
		return nil
	})
	return idx
}

// Validate checks the structural invariants of the arena: parents precede
// children, only directories have children, every child is listed exactly
// once by its parent, names are leaf components, and sibling identifiers are
// unique.
func (t *Tree) Validate() error {
	if len(t.items) == 0 || len(t.items) != len(t.parents) {
		return fmt.Errorf("arena sizes %d/%d: %w", len(t.items), len(t.parents), ErrInvalidNode)
	}
	if _, ok := t.items[RootID].(*Directory); !ok || t.parents[RootID] != NoParent {
		return fmt.Errorf("root is not a parentless directory: %w", ErrInvalidNode)
	}

	listed := make([]int, len(t.items))
	seen := make(map[siblingKey]struct{}, len(t.items))
	for id, it := range t.items {
		if it == nil {
			return fmt.Errorf("node %d is empty: %w", id, ErrInvalidNode)
		}
		if d, ok := it.(*Directory); ok {
			for _, c := range d.Children {
				if c <= NodeID(id) || int(c) >= len(t.items) || t.parents[c] != NodeID(id) {
					return fmt.Errorf("node %d lists bad child %d: %w", id, c, ErrInvalidNode)
				}
				listed[c]++
			}
		}
		if id == int(RootID) {
			continue
		}
		p := t.parents[id]
		if p < 0 || p >= NodeID(id) {
			return fmt.Errorf("node %d has parent %d: %w", id, p, ErrInvalidNode)
		}
		name := it.Attributes().Name
		if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
			return fmt.Errorf("node %d has name %q: %w", id, name, ErrInvalidNode)
		}
		key := siblingKey{identifier: it.Attributes().Identifier, parent: p}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("node %d: %w", id, ErrDuplicateIdentifier)
		}
		seen[key] = struct{}{}
	}
	for id := 1; id < len(listed); id++ {
		if listed[id] != 1 {
			return fmt.Errorf("node %d listed %d times: %w", id, listed[id], ErrInvalidNode)
		}
	}
	return nil
}

// Clone returns a deep copy of t.
func (t *Tree) Clone() *Tree {
	out := &Tree{
		items:    make([]Item, len(t.items)),
		parents:  append([]NodeID(nil), t.parents...),
		siblings: make(map[siblingKey]NodeID, len(t.siblings)),
	}
	for i, it := range t.items {
		switch v := it.(type) {
		case *File:
			cp := *v
			out.items[i] = &cp
		case *Directory:
			cp := *v
			cp.Children = append([]NodeID(nil), v.Children...)
			out.items[i] = &cp
		}
	}
	for k, v := range t.siblings {
		out.siblings[k] = v
	}
	return out
}
