package platform

import (
	"fmt"
	"os"
	"sync"
)

// Compile-time interface checks.
var (
	_ Metadata  = (*Local)(nil)
	_ Refresher = (*Local)(nil)
)

// DevIno identifies an inode across devices.
type DevIno struct {
	Dev uint64
	Ino uint64
}

// WriterSource reports the set of inodes currently open for writing by any
// process.
type WriterSource interface {
	OpenForWriting() (map[DevIno]struct{}, error)
}

// Local reads metadata from the local file system.
type Local struct {
	writers WriterSource

	mu      sync.RWMutex
	writing map[DevIno]struct{}
	known   bool // writing reflects the last Refresh
}

// NewLocal creates a Local using the platform's default writer detection.
func NewLocal() *Local {
	return &Local{writers: DefaultWriters()}
}

// NewLocalWithWriters creates a Local with a custom writer source. A nil
// source disables open-for-write detection.
func NewLocalWithWriters(ws WriterSource) *Local {
	return &Local{writers: ws}
}

// Refresh re-reads the set of files open for writing.
func (l *Local) Refresh() error {
	if l.writers == nil {
		return nil
	}
	set, err := l.writers.OpenForWriting()
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.writing, l.known = nil, false
		return fmt.Errorf("detect writers: %w", err)
	}
	l.writing, l.known = set, true
	return nil
}

// Stat implements Metadata.
func (l *Local) Stat(path string) (Info, error) {
	info, err := lstat(path)
	if err != nil {
		if kind := classify(err); kind != nil {
			return Info{}, fmt.Errorf("stat %s: %w: %w", path, kind, err)
		}
		return Info{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Dir && !info.Symlink {
		l.mu.RLock()
		_, info.OpenForWrite = l.writing[DevIno{Dev: info.Device, Ino: info.Identifier}]
		info.WritersKnown = l.known
		l.mu.RUnlock()
	}
	return info, nil
}

// ListChildren implements Metadata. Names come back in directory order,
// unsorted.
func (*Local) ListChildren(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if kind := classify(err); kind != nil {
			return nil, fmt.Errorf("list %s: %w: %w", path, kind, err)
		}
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	return names, nil
}
