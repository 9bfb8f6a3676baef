// Package diff computes the ordered change records between two snapshot trees
// of the same root.
package diff

import (
	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/item"
)

// pair is a matched directory in both trees. path is its location in the
// new tree.
type pair struct {
	path     string
	old, new item.NodeID
}

// Compare returns the change records that turn old into cur. old may be nil,
// in which case every entry of cur is Added. The returned events carry Type,
// Path, Item, Old and Fields; the caller stamps Root, ScanID and Timestamp.
//
// Compare marks copying files whose Added record it holds back as AddPending
// in cur, so the next comparison against cur can surface them exactly once.
// old is never modified.
//
// Ordering: at every directory level, Removed records come before Added and
// Modified records, and a directory's own record comes before the records of
// its contents. The roots themselves never produce a record.
func Compare(old, cur *item.Tree) []event.Event {
	c := comparer{old: old, cur: cur}
	if old == nil {
		c.addSubtree(item.RootID, "", false)
		return c.out
	}

	stack := []pair{{old: item.RootID, new: item.RootID}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		descend := c.level(top)
		for i := len(descend) - 1; i >= 0; i-- {
			stack = append(stack, descend[i])
		}
	}
	return c.out
}

type comparer struct {
	old *item.Tree
	cur *item.Tree
	out []event.Event
}

// level emits the records for the children of one matched directory pair and
// returns the matched subdirectory pairs to descend into, in listing order.
func (c *comparer) level(p pair) []pair {
	for _, oid := range c.old.Children(p.old) {
		o := c.old.Get(oid)
		nid, ok := c.cur.Child(p.new, o.Attributes().Identifier)
		if ok && item.SameEntity(o, c.cur.Get(nid)) {
			continue
		}
		c.removeSubtree(oid, p.path)
	}

	var descend []pair
	for _, nid := range c.cur.Children(p.new) {
		n := c.cur.Get(nid)
		oid, ok := c.old.Child(p.old, n.Attributes().Identifier)
		if !ok || !item.SameEntity(c.old.Get(oid), n) {
			c.addSubtree(nid, p.path, true)
			continue
		}
		rel := join(p.path, n.Attributes().Name)
		if _, isDir := n.(*item.Directory); isDir {
			c.compareDir(oid, nid, rel)
			descend = append(descend, pair{old: oid, new: nid, path: rel})
			continue
		}
		c.compareFile(oid, nid, rel)
	}
	return descend
}

// removeSubtree emits Removed for oid and its descendants in pre-order.
// Paths are reported under base, the new-tree location of oid's parent.
// Files whose Added was never surfaced disappear silently.
func (c *comparer) removeSubtree(oid item.NodeID, base string) {
	walkPaths(c.old, oid, base, true, func(id item.NodeID, path string) {
		it := c.old.Get(id)
		if item.PendingOf(it) {
			return
		}
		c.out = append(c.out, event.Event{
			Type: event.Removed,
			Path: path,
			Item: item.Snap(it),
		})
	})
}

// addSubtree emits Added for nid and its descendants in pre-order. When
// includeSelf is false nid itself is skipped (used for the root).
func (c *comparer) addSubtree(nid item.NodeID, base string, includeSelf bool) {
	walkPaths(c.cur, nid, base, includeSelf, func(id item.NodeID, path string) {
		if item.CopyingOf(c.cur.Get(id)) {
			c.cur.SetAddPending(id, true)
			return
		}
		c.cur.SetAddPending(id, false)
		c.out = append(c.out, c.record(event.Added, id, path, nil, 0))
	})
}

// walkPaths visits from and its descendants in pre-order, building each
// node's path incrementally from base. When includeSelf is false from is
// treated as already sitting at base and is not visited.
func walkPaths(tree *item.Tree, from item.NodeID, base string, includeSelf bool, fn func(id item.NodeID, path string)) {
	paths := []string{base}
	_ = tree.Walk(from, func(id item.NodeID, depth int) error { //nolint:errcheck // callback never fails
		if !includeSelf {
			if depth == 0 {
				return nil
			}
			depth--
		}
		paths = append(paths[:depth+1], join(paths[depth], tree.Get(id).Attributes().Name))
		fn(id, paths[depth+1])
		return nil
	})
}

func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func (c *comparer) compareDir(oid, nid item.NodeID, path string) {
	var fields event.Field
	oa, na := c.old.Get(oid).Attributes(), c.cur.Get(nid).Attributes()
	if oa.Name != na.Name {
		fields |= event.FieldName
	}
	if !oa.Modified.Equal(na.Modified) {
		fields |= event.FieldModified
	}
	if fields != 0 {
		c.out = append(c.out, c.record(event.Modified, nid, path, c.old.Get(oid), fields))
	}
}

func (c *comparer) compareFile(oid, nid item.NodeID, path string) {
	o := c.old.Get(oid).(*item.File) //nolint:forcetypeassert // SameEntity checked kind
	n := c.cur.Get(nid).(*item.File) //nolint:forcetypeassert // SameEntity checked kind

	switch {
	case o.AddPending && n.Copying:
		c.cur.SetAddPending(nid, true)
	case o.AddPending:
		c.cur.SetAddPending(nid, false)
		c.out = append(c.out, c.record(event.Added, nid, path, nil, 0))
	case n.Copying:
		// Only a rename is surfaced while the content is in flux.
		if o.Name != n.Name {
			c.out = append(c.out, c.record(event.Modified, nid, path, o, event.FieldName))
		}
	default:
		fields := fileFields(o, n)
		if fields != 0 {
			c.out = append(c.out, c.record(event.Modified, nid, path, o, fields))
		}
	}
}

func fileFields(o, n *item.File) event.Field {
	var fields event.Field
	if o.Name != n.Name {
		fields |= event.FieldName
	}
	if o.Size != n.Size {
		fields |= event.FieldSize
	}
	if !o.Modified.Equal(n.Modified) {
		fields |= event.FieldModified
	}
	if o.Copying != n.Copying {
		fields |= event.FieldCopying
	}
	return fields
}

func (c *comparer) record(typ event.Type, nid item.NodeID, path string, old item.Item, fields event.Field) event.Event {
	ev := event.Event{
		Type:   typ,
		Path:   path,
		Item:   item.Snap(c.cur.Get(nid)),
		Fields: fields,
	}
	if old != nil {
		snap := item.Snap(old)
		ev.Old = &snap
	}
	return ev
}

// Summary counts records by type.
type Summary struct {
	Added    int
	Removed  int
	Modified int
	Renamed  int
}

// Summarize tallies events.
func Summarize(events []event.Event) Summary {
	var s Summary
	for _, ev := range events {
		switch ev.Type {
		case event.Added:
			s.Added++
		case event.Removed:
			s.Removed++
		case event.Modified:
			s.Modified++
			if ev.Renamed() {
				s.Renamed++
			}
		}
	}
	return s
}

// Total returns the number of change records.
func (s Summary) Total() int {
	return s.Added + s.Removed + s.Modified
}
