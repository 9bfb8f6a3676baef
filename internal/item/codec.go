package item

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/tinylib/msgp/msgp"
)

// Compile-time interface checks.
var (
	_ msgp.Marshaler   = (*Tree)(nil)
	_ msgp.Unmarshaler = (*Tree)(nil)
	_ msgp.Sizer       = (*Tree)(nil)
)

// codecVersion is bumped on any change to the node layout below.
const codecVersion = 1

// Each node is a fixed-length msgpack array:
//
//	[parent, kind, identifier, name, size, created, modified, flags]
const nodeFields = 8

const (
	flagCopying uint8 = 1 << iota
	flagAddPending
)

// Nanos converts t to Unix nanoseconds, mapping the zero time to 0.
func Nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// FromNanos is the inverse of Nanos.
func FromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Flags packs the transient file bits of it.
func Flags(it Item) uint8 {
	var flags uint8
	if CopyingOf(it) {
		flags |= flagCopying
	}
	if PendingOf(it) {
		flags |= flagAddPending
	}
	return flags
}

// Decode builds an Item of the given kind from stored columns.
func Decode(kind Kind, identifier uint64, name string, size, created, modified int64, flags uint8) (Item, error) {
	attrs := Attrs{
		Created:    FromNanos(created),
		Modified:   FromNanos(modified),
		Name:       name,
		Identifier: identifier,
	}
	switch kind {
	case KindFile:
		return &File{
			Attrs:      attrs,
			Size:       size,
			Copying:    flags&flagCopying != 0,
			AddPending: flags&flagAddPending != 0,
		}, nil
	case KindDirectory:
		return &Directory{Attrs: attrs}, nil
	default:
		return nil, fmt.Errorf("kind %d: %w", kind, ErrInvalidNode)
	}
}

// Msgsize returns an upper bound on the encoded size of t.
func (t *Tree) Msgsize() int {
	s := msgp.ArrayHeaderSize + msgp.IntSize + msgp.ArrayHeaderSize
	for _, it := range t.items {
		s += msgp.ArrayHeaderSize + msgp.Int32Size + msgp.Uint8Size + msgp.Uint64Size +
			msgp.StringPrefixSize + len(it.Attributes().Name) +
			3*msgp.Int64Size + msgp.Uint8Size
	}
	return s
}

// MarshalMsg appends the canonical msgpack encoding of t to b. Nodes are
// written in arena order, which is also the order UnmarshalMsg re-adds them.
func (t *Tree) MarshalMsg(b []byte) ([]byte, error) {
	if b == nil {
		b = make([]byte, 0, t.Msgsize())
	}
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendInt(b, codecVersion)
	b = msgp.AppendArrayHeader(b, uint32(len(t.items))) //nolint:gosec // G115: arena bounded by NodeID
	for id, it := range t.items {
		a := it.Attributes()
		b = msgp.AppendArrayHeader(b, nodeFields)
		b = msgp.AppendInt32(b, int32(t.parents[id]))
		b = msgp.AppendUint8(b, uint8(it.Kind()))
		b = msgp.AppendUint64(b, a.Identifier)
		b = msgp.AppendString(b, a.Name)
		b = msgp.AppendInt64(b, SizeOf(it))
		b = msgp.AppendInt64(b, Nanos(a.Created))
		b = msgp.AppendInt64(b, Nanos(a.Modified))
		b = msgp.AppendUint8(b, Flags(it))
	}
	return b, nil
}

// UnmarshalMsg replaces t with the tree encoded at the start of b and
// returns the remaining bytes. The decoded tree is validated.
func (t *Tree) UnmarshalMsg(b []byte) ([]byte, error) {
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, fmt.Errorf("tree header: %w", err)
	}
	if sz != 2 {
		return b, fmt.Errorf("tree header has %d fields: %w", sz, ErrInvalidNode)
	}
	version, b, err := msgp.ReadIntBytes(b)
	if err != nil {
		return b, fmt.Errorf("tree version: %w", err)
	}
	if version != codecVersion {
		return b, fmt.Errorf("unsupported tree version %d", version)
	}
	count, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, fmt.Errorf("node count: %w", err)
	}
	if count == 0 {
		return b, fmt.Errorf("empty tree: %w", ErrInvalidNode)
	}

	var out *Tree
	for i := range count {
		var (
			parent     int32
			kind       uint8
			identifier uint64
			name       string
			size       int64
			created    int64
			modified   int64
			flags      uint8
			fields     uint32
		)
		if fields, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
			return b, fmt.Errorf("node %d: %w", i, err)
		}
		if fields != nodeFields {
			return b, fmt.Errorf("node %d has %d fields: %w", i, fields, ErrInvalidNode)
		}
		if parent, b, err = msgp.ReadInt32Bytes(b); err != nil {
			return b, fmt.Errorf("node %d parent: %w", i, err)
		}
		if kind, b, err = msgp.ReadUint8Bytes(b); err != nil {
			return b, fmt.Errorf("node %d kind: %w", i, err)
		}
		if identifier, b, err = msgp.ReadUint64Bytes(b); err != nil {
			return b, fmt.Errorf("node %d identifier: %w", i, err)
		}
		if name, b, err = msgp.ReadStringBytes(b); err != nil {
			return b, fmt.Errorf("node %d name: %w", i, err)
		}
		if size, b, err = msgp.ReadInt64Bytes(b); err != nil {
			return b, fmt.Errorf("node %d size: %w", i, err)
		}
		if created, b, err = msgp.ReadInt64Bytes(b); err != nil {
			return b, fmt.Errorf("node %d created: %w", i, err)
		}
		if modified, b, err = msgp.ReadInt64Bytes(b); err != nil {
			return b, fmt.Errorf("node %d modified: %w", i, err)
		}
		if flags, b, err = msgp.ReadUint8Bytes(b); err != nil {
			return b, fmt.Errorf("node %d flags: %w", i, err)
		}

		it, err := Decode(Kind(kind), identifier, name, size, created, modified, flags)
		if err != nil {
			return b, fmt.Errorf("node %d: %w", i, err)
		}
		if out, err = Rebuild(out, NodeID(i), NodeID(parent), it); err != nil { //nolint:gosec // G115: bounded by count
			return b, err
		}
	}

	if err := out.Validate(); err != nil {
		return b, err
	}
	*t = *out
	return b, nil
}

// Rebuild appends a decoded node to tree, which must be nil for the root.
// Nodes must arrive in arena order with id equal to the next free slot.
func Rebuild(tree *Tree, id, parent NodeID, it Item) (*Tree, error) {
	if tree == nil {
		dir, ok := it.(*Directory)
		if id != RootID || parent != NoParent || !ok {
			return nil, fmt.Errorf("node %d is not a root directory: %w", id, ErrInvalidNode)
		}
		return NewTree(dir), nil
	}
	if int(id) != tree.Len() {
		return nil, fmt.Errorf("node %d out of order (have %d): %w", id, tree.Len(), ErrInvalidNode)
	}
	if _, err := tree.Add(parent, it); err != nil {
		return nil, fmt.Errorf("node %d: %w", id, err)
	}
	return tree, nil
}

// Checksum is the xxhash64 of the canonical encoding of t.
func (t *Tree) Checksum() uint64 {
	b, _ := t.MarshalMsg(nil) //nolint:errcheck // MarshalMsg never fails
	return xxhash.Sum64(b)
}
