package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/bamsammich/snapwatch/internal/copytrack"
	"github.com/bamsammich/snapwatch/internal/filter"
	"github.com/bamsammich/snapwatch/internal/item"
	"github.com/bamsammich/snapwatch/internal/platform"
	"github.com/bamsammich/snapwatch/internal/stats"
)

// ErrRootUnavailable means the root itself could not be read as a directory.
// The cycle fails and the baseline is left alone.
var ErrRootUnavailable = errors.New("root unavailable")

// ScannerConfig controls tree building.
type ScannerConfig struct {
	Metadata platform.Metadata
	Policy   copytrack.Policy // nil uses copytrack.Default()
	Filter   *filter.Chain    // nil keeps everything
	Baseline *item.Tree       // previous observation, for copy tracking
	Stats    *stats.Collector
	Now      func() time.Time
	Root     string
	Workers  int
}

// Scanner lists a root in parallel and assembles the result into a fresh
// snapshot tree. A Scanner is good for one Build.
type Scanner struct {
	cfg   ScannerConfig
	prev  map[uint64]item.NodeID
	stats *stats.Collector

	mu       sync.Mutex
	listings map[string][]entry // keyed by slash-separated relative dir path
}

// entry is one listed child with its metadata.
type entry struct {
	name string
	rel  string
	info platform.Info
}

// DefaultWorkers returns the default listing concurrency.
func DefaultWorkers() int {
	return min(runtime.NumCPU(), 8)
}

// NewScanner creates a scanner with the given config.
func NewScanner(cfg ScannerConfig) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}
	if cfg.Metadata == nil {
		cfg.Metadata = platform.NewLocal()
	}
	if cfg.Policy == nil {
		cfg.Policy = copytrack.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Scanner{
		cfg:      cfg,
		stats:    cfg.Stats,
		listings: make(map[string][]entry),
	}
	if s.stats == nil {
		s.stats = stats.NewCollector()
	}
	if cfg.Baseline != nil {
		s.prev = cfg.Baseline.Index()
	}
	return s
}

// Build observes the root and returns its snapshot tree. Entries that vanish
// or cannot be read are left out. A cancelled build returns ctx.Err().
func (s *Scanner) Build(ctx context.Context) (*item.Tree, error) {
	if r, ok := s.cfg.Metadata.(platform.Refresher); ok {
		if err := r.Refresh(); err != nil {
			slog.Debug("metadata refresh failed", "root", s.cfg.Root, "error", err)
		}
	}

	rootInfo, err := s.cfg.Metadata.Stat(s.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRootUnavailable, err)
	}
	if !rootInfo.Dir {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootUnavailable, s.cfg.Root)
	}
	rootNames, err := s.cfg.Metadata.ListChildren(s.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRootUnavailable, err)
	}

	s.listAll(ctx, rootNames)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tree := item.NewTree(&item.Directory{Attrs: item.Attrs{
		Created:    rootInfo.Created,
		Modified:   rootInfo.Modified,
		Name:       filepath.Base(s.cfg.Root),
		Identifier: rootInfo.Identifier,
	}})
	s.stats.AddDirsScanned(1)
	s.assemble(tree)
	return tree, nil
}

// listAll fans directory listings out over the worker pool until every
// reachable directory has been listed.
func (s *Scanner) listAll(ctx context.Context, rootNames []string) {
	workQueue := make(chan string, s.cfg.Workers*2)
	var outstanding sync.WaitGroup // directories queued but not yet listed

	enqueue := func(rel string) {
		outstanding.Add(1)
		select {
		case workQueue <- rel:
		default:
			// Queue full: hand off so a busy worker never blocks on itself.
			go func() { workQueue <- rel }()
		}
	}

	var workerWg sync.WaitGroup
	for range s.cfg.Workers {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for rel := range workQueue {
				if ctx.Err() == nil {
					s.listDir(rel, enqueue)
				}
				outstanding.Done()
			}
		}()
	}

	s.statChildren("", rootNames, enqueue)

	outstanding.Wait()
	close(workQueue)
	workerWg.Wait()
}

func (s *Scanner) listDir(rel string, enqueue func(string)) {
	path := s.abs(rel)
	names, err := s.cfg.Metadata.ListChildren(path)
	if err != nil {
		// The directory stays in the tree with no children.
		s.stats.AddUnreadable(1)
		slog.Debug("list directory", "root", s.cfg.Root, "path", rel, "error", err)
		return
	}
	s.statChildren(rel, names, enqueue)
}

func (s *Scanner) statChildren(rel string, names []string, enqueue func(string)) {
	entries := make([]entry, 0, len(names))
	for _, name := range names {
		childRel := join(rel, name)
		info, err := s.cfg.Metadata.Stat(s.abs(childRel))
		if err != nil {
			s.stats.AddUnreadable(1)
			if !platform.IsUnreadable(err) {
				slog.Debug("stat entry", "root", s.cfg.Root, "path", childRel, "error", err)
			}
			continue
		}
		isDir := info.Dir && !info.Symlink
		if !s.cfg.Filter.Match(childRel, isDir) {
			continue
		}
		entries = append(entries, entry{name: name, rel: childRel, info: info})
		if isDir {
			enqueue(childRel)
		}
	}

	s.mu.Lock()
	s.listings[rel] = entries
	s.mu.Unlock()
}

// assemble adds listed entries to tree in depth-first pre-order, children
// in listing order. Uses an explicit stack.
func (s *Scanner) assemble(tree *item.Tree) {
	type frame struct {
		e      entry
		parent item.NodeID
	}

	var stack []frame
	push := func(rel string, parent item.NodeID) {
		entries := s.listings[rel]
		for i := len(entries) - 1; i >= 0; i-- {
			stack = append(stack, frame{e: entries[i], parent: parent})
		}
	}
	push("", item.RootID)

	now := s.cfg.Now()
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		it := s.makeItem(now, top.e)
		id, err := tree.Add(top.parent, it)
		if errors.Is(err, item.ErrDuplicateIdentifier) {
			s.stats.AddDuplicates(1)
			slog.Debug("skipping entry sharing a sibling's identifier",
				"root", s.cfg.Root, "path", top.e.rel, "identifier", top.e.info.Identifier)
			continue
		}
		if err != nil {
			slog.Debug("add entry", "root", s.cfg.Root, "path", top.e.rel, "error", err)
			continue
		}

		if _, ok := it.(*item.Directory); ok {
			s.stats.AddDirsScanned(1)
			push(top.e.rel, id)
			continue
		}
		s.stats.AddFilesScanned(1)
		s.stats.AddBytesObserved(item.SizeOf(it))
		if item.CopyingOf(it) {
			s.stats.AddFilesCopying(1)
		}
	}
}

func (s *Scanner) makeItem(now time.Time, e entry) item.Item {
	attrs := item.Attrs{
		Created:    e.info.Created,
		Modified:   e.info.Modified,
		Name:       e.name,
		Identifier: e.info.Identifier,
	}
	if e.info.Dir && !e.info.Symlink {
		return &item.Directory{Attrs: attrs}
	}

	cur := copytrack.Observation{
		Modified:     e.info.Modified,
		Size:         e.info.Size,
		OpenForWrite: e.info.OpenForWrite,
		WritersKnown: e.info.WritersKnown,
	}
	return &item.File{
		Attrs:   attrs,
		Size:    e.info.Size,
		Copying: s.cfg.Policy.Copying(now, cur, s.previous(e.info.Identifier)),
	}
}

// previous returns the baseline observation of the file carrying identifier.
func (s *Scanner) previous(identifier uint64) *copytrack.Observation {
	id, ok := s.prev[identifier]
	if !ok {
		return nil
	}
	f, ok := s.cfg.Baseline.Get(id).(*item.File)
	if !ok {
		return nil
	}
	return &copytrack.Observation{
		Modified: f.Modified,
		Size:     f.Size,
		Copying:  f.Copying,
	}
}

func (s *Scanner) abs(rel string) string {
	if rel == "" {
		return s.cfg.Root
	}
	return filepath.Join(s.cfg.Root, filepath.FromSlash(rel))
}

func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
