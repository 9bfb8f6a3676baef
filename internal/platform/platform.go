// Package platform provides the file-metadata capability the tree builder
// reads from: per-path stat, directory listing, and open-for-write detection.
package platform

import (
	"errors"
	"io/fs"
	"syscall"
	"time"
)

var (
	// ErrNotFound means the entry vanished between listing and stat.
	ErrNotFound = errors.New("entry not found")
	// ErrPermission means the entry exists but cannot be read.
	ErrPermission = errors.New("permission denied")
	// ErrTimeout means metadata retrieval exceeded its bound.
	ErrTimeout = errors.New("metadata timeout")
)

// Info is the metadata of one entry as reported by the platform.
type Info struct {
	Created      time.Time // birth time, or change time where unavailable
	Modified     time.Time
	Identifier   uint64 // inode number
	Device       uint64
	Size         int64
	Dir          bool
	Symlink      bool // opaque: never traversed
	OpenForWrite bool
	WritersKnown bool // OpenForWrite was checked against live writers
}

// Metadata is the capability the tree builder consumes.
type Metadata interface {
	// Stat returns metadata for path without following symlinks.
	Stat(path string) (Info, error)
	// ListChildren returns the entry names of directory path in the order
	// the platform reports them.
	ListChildren(path string) ([]string, error)
}

// Refresher is implemented by Metadata sources holding per-scan state. The
// tree builder calls Refresh once before each walk.
type Refresher interface {
	Refresh() error
}

// IsUnreadable reports whether err is one of the per-entry conditions the
// tree builder treats as "entry absent".
func IsUnreadable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermission) || errors.Is(err, ErrTimeout)
}

// classify maps a raw syscall error onto the package sentinels so callers can
// use errors.Is without caring about the platform.
func classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermission
	default:
		return nil
	}
}
