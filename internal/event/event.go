package event

import (
	"strings"
	"time"

	"github.com/bamsammich/snapwatch/internal/item"
)

// Type identifies the kind of event.
type Type int

const (
	Added Type = iota + 1
	Removed
	Modified
	ScanStarted
	ScanComplete
	ScanCancelled
	ScanFailed
)

var typeNames = [...]string{
	Added:         "Added",
	Removed:       "Removed",
	Modified:      "Modified",
	ScanStarted:   "ScanStarted",
	ScanComplete:  "ScanComplete",
	ScanCancelled: "ScanCancelled",
	ScanFailed:    "ScanFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// IsChange reports whether t is a change record rather than a cycle
// lifecycle notification.
func (t Type) IsChange() bool {
	return t == Added || t == Removed || t == Modified
}

// MarshalText encodes t as its name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Field is a bit set of attributes that differ in a Modified record.
type Field uint8

const (
	FieldName Field = 1 << iota // rename
	FieldSize
	FieldModified
	FieldCopying
)

var fieldNames = []struct {
	name string
	f    Field
}{
	{name: "name", f: FieldName},
	{name: "size", f: FieldSize},
	{name: "modified", f: FieldModified},
	{name: "copying", f: FieldCopying},
}

// Has reports whether all bits of o are set in f.
func (f Field) Has(o Field) bool { return f&o == o && o != 0 }

// Names lists the set fields in a fixed order.
func (f Field) Names() []string {
	var out []string
	for _, fn := range fieldNames {
		if f&fn.f != 0 {
			out = append(out, fn.name)
		}
	}
	return out
}

func (f Field) String() string {
	return strings.Join(f.Names(), ",")
}

// MarshalText encodes f as a comma-separated list.
func (f Field) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Event is one entry of the change feed: either a change record produced by
// a completed scan cycle, or a cycle lifecycle notification.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Error     error          `json:"-"`
	Old       *item.Snapshot `json:"old,omitempty"` // Modified only
	Item      item.Snapshot  `json:"item"`
	Root      string         `json:"root"`
	Path      string         `json:"path"` // relative to Root, slash-separated
	ScanID    string         `json:"scan_id"`
	Type      Type           `json:"type"`
	Fields    Field          `json:"fields,omitempty"`
	Changes   int            `json:"changes,omitempty"` // ScanComplete only
}

// Renamed reports whether e is a Modified record carrying a rename.
func (e Event) Renamed() bool {
	return e.Type == Modified && e.Fields.Has(FieldName)
}
