package item

import (
	"fmt"
	"time"
)

// Kind identifies the variant of an Item.
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// MarshalText encodes k as its name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a name produced by MarshalText.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "file":
		*k = KindFile
	case "directory":
		*k = KindDirectory
	default:
		return fmt.Errorf("unknown item kind %q", b)
	}
	return nil
}

// NodeID indexes an Item inside a Tree arena.
type NodeID int32

const (
	// RootID is the arena index of every tree's root directory.
	RootID NodeID = 0
	// NoParent is the parent of the root.
	NoParent NodeID = -1
)

// Attrs holds the attributes shared by files and directories.
type Attrs struct {
	Created    time.Time
	Modified   time.Time
	Name       string // leaf component only
	Identifier uint64 // inode number; stable across renames on one volume
}

// Item is one file-system entry. It is implemented only by *File and
// *Directory; use a type switch to reach variant fields.
type Item interface {
	Kind() Kind
	Attributes() *Attrs
	isItem()
}

// File is a regular file, symlink, or any other non-directory entry.
type File struct {
	Attrs
	Size    int64
	Copying bool
	// AddPending marks a copying file whose Added notification has not been
	// surfaced yet.
	AddPending bool
}

// Directory is a directory entry. Children holds arena indices in the order
// entries were discovered.
type Directory struct {
	Attrs
	Children []NodeID
}

// Kind implements Item.
func (*File) Kind() Kind { return KindFile }

// Attributes implements Item.
func (f *File) Attributes() *Attrs { return &f.Attrs }

func (*File) isItem() {}

// Kind implements Item.
func (*Directory) Kind() Kind { return KindDirectory }

// Attributes implements Item.
func (d *Directory) Attributes() *Attrs { return &d.Attrs }

func (*Directory) isItem() {}

// SizeOf returns the byte size of it. Directories are always 0.
func SizeOf(it Item) int64 {
	if f, ok := it.(*File); ok {
		return f.Size
	}
	return 0
}

// CopyingOf reports whether it is still being written. Directories never are.
func CopyingOf(it Item) bool {
	if f, ok := it.(*File); ok {
		return f.Copying
	}
	return false
}

// PendingOf reports whether it is a file whose Added record is still held back.
func PendingOf(it Item) bool {
	if f, ok := it.(*File); ok {
		return f.AddPending
	}
	return false
}

// SameEntity reports whether a and b describe the same on-disk entry.
func SameEntity(a, b Item) bool {
	return a.Kind() == b.Kind() && a.Attributes().Identifier == b.Attributes().Identifier
}

// ContentEqual reports whether a and b are the same entity with identical
// name, size, modification time and copying state.
func ContentEqual(a, b Item) bool {
	if !SameEntity(a, b) {
		return false
	}
	aa, ba := a.Attributes(), b.Attributes()
	return aa.Name == ba.Name &&
		SizeOf(a) == SizeOf(b) &&
		aa.Modified.Equal(ba.Modified) &&
		CopyingOf(a) == CopyingOf(b)
}

// Snapshot is a value copy of one item's attributes, safe to hand to
// consumers without exposing the arena.
type Snapshot struct {
	Created    time.Time `json:"created"`
	Modified   time.Time `json:"modified"`
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	Identifier uint64    `json:"identifier"`
	Size       int64     `json:"size"`
	Copying    bool      `json:"copying,omitempty"`
}

// Snap captures the attributes of it.
func Snap(it Item) Snapshot {
	a := it.Attributes()
	return Snapshot{
		Created:    a.Created,
		Modified:   a.Modified,
		Name:       a.Name,
		Kind:       it.Kind(),
		Identifier: a.Identifier,
		Size:       SizeOf(it),
		Copying:    CopyingOf(it),
	}
}
