package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bamsammich/snapwatch/internal/item"
)

var _ Store = (*Memory)(nil)

// Memory keeps baselines in process memory. Trees are deep-copied on the way
// in and out so callers never share an arena with the store.
type Memory struct {
	mu        sync.RWMutex
	baselines map[string]memEntry
	now       func() time.Time

	// failCommit, when set, makes Commit fail before anything is replaced.
	failCommit error
}

type memEntry struct {
	tree   *item.Tree
	header Baseline
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{baselines: make(map[string]memEntry), now: time.Now}
}

// Load implements Store.
func (m *Memory) Load(_ context.Context, root string) (*item.Tree, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.baselines[RootKey(root)]
	if !ok {
		return nil, nil //nolint:nilnil // never scanned
	}
	return e.tree.Clone(), nil
}

// Commit implements Store.
func (m *Memory) Commit(_ context.Context, root string, tree *item.Tree) error {
	if m.failCommit != nil {
		return fmt.Errorf("commit %s: %w: %w", root, ErrStorageUnavailable, m.failCommit)
	}
	cp := tree.Clone()
	key := RootKey(root)

	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.baselines[key]
	m.baselines[key] = memEntry{
		tree: cp,
		header: Baseline{
			Root:       root,
			Key:        key,
			Generation: prev.header.Generation + 1,
			Nodes:      cp.Len(),
			Checksum:   cp.Checksum(),
			ScannedAt:  m.now(),
		},
	}
	return nil
}

// Forget implements Store.
func (m *Memory) Forget(_ context.Context, root string) error {
	key := RootKey(root)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.baselines[key]; !ok {
		return fmt.Errorf("forget %s: %w", root, ErrUnknownRoot)
	}
	delete(m.baselines, key)
	return nil
}

// Roots implements Store.
func (m *Memory) Roots(context.Context) ([]Baseline, error) {
	m.mu.RLock()
	out := make([]Baseline, 0, len(m.baselines))
	for _, e := range m.baselines {
		out = append(out, e.header)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Root < out[j].Root })
	return out, nil
}

// Close implements Store.
func (*Memory) Close() error { return nil }
