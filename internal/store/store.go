// Package store persists one baseline snapshot tree per observed root and
// replaces it atomically after each scan.
package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bamsammich/snapwatch/internal/item"
)

var (
	// ErrStorageUnavailable wraps failures of the underlying storage. The
	// current cycle fails; the previous baseline is left untouched.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrCorruptBaseline means a persisted tree failed validation. Callers
	// treat the root as never scanned.
	ErrCorruptBaseline = errors.New("corrupt baseline")
	// ErrUnknownRoot is returned by Forget for a root with no baseline.
	ErrUnknownRoot = errors.New("no baseline for root")
)

// Store holds the baseline of every observed root.
type Store interface {
	// Load returns the baseline for root, or (nil, nil) when root has never
	// been committed. The returned tree is owned by the caller.
	Load(ctx context.Context, root string) (*item.Tree, error)
	// Commit replaces the baseline for root with tree. Either the whole tree
	// becomes the new baseline or the old one survives unchanged. The store
	// keeps no reference to tree.
	Commit(ctx context.Context, root string, tree *item.Tree) error
	// Forget deletes the baseline for root.
	Forget(ctx context.Context, root string) error
	// Roots lists the headers of all baselines, ordered by root path.
	Roots(ctx context.Context) ([]Baseline, error)
	Close() error
}

// Baseline describes one committed tree without loading it.
type Baseline struct {
	ScannedAt  time.Time `json:"scanned_at"`
	Root       string    `json:"root"`
	Key        string    `json:"key"`
	Generation int64     `json:"generation"`
	Nodes      int       `json:"nodes"`
	Checksum   uint64    `json:"checksum"`
}

// CleanRoot returns the absolute, cleaned form of root used as its identity.
func CleanRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}
	return filepath.Clean(abs), nil
}

// RootKey derives the storage key of a cleaned root path.
func RootKey(root string) string {
	h := blake3.New()
	h.Write([]byte(root))
	digest := h.Sum(nil)
	return hex.EncodeToString(digest[:8])
}

// DefaultPath returns the default baseline database location:
// $XDG_STATE_HOME/snapwatch/baselines.db, falling back to
// ~/.local/state/snapwatch/baselines.db.
func DefaultPath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "snapwatch-baselines.db")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "snapwatch", "baselines.db")
}
