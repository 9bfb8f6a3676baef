// Package watch turns file-system notifications into rescan requests.
//
// Notifications are only a hint: any event under a root schedules a full
// cycle for that root, so lost or imprecise events cost latency, never
// correctness.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/bamsammich/snapwatch/internal/filter"
)

const (
	// DefaultDebounce is how long events are gathered before a rescan.
	DefaultDebounce = 500 * time.Millisecond
	// DefaultMinInterval is the shortest time between two rescans of a root.
	DefaultMinInterval = time.Second
)

// Triggerer receives rescan requests. engine.Observer implements it.
type Triggerer interface {
	Trigger(root string) error
}

// Config configures a Watcher.
type Config struct {
	Target Triggerer
	Filter *filter.Chain // directories it ignores are not watched
	Roots  []string      // cleaned absolute paths
	// Debounce merges events arriving within this window of the first one.
	Debounce time.Duration
	// MinInterval rate-limits rescans per root. Zero uses the default; a
	// negative value disables the limit.
	MinInterval time.Duration
	// PollInterval schedules a rescan of every root on a fixed period.
	// Zero disables polling.
	PollInterval time.Duration
	// Initial triggers one scan of every root when Run starts.
	Initial bool
}

// Watcher watches every directory under its roots.
type Watcher struct {
	cfg       Config
	fsw       *fsnotify.Watcher
	due       chan string
	done      chan struct{}
	roots     map[string]*rootWatch
	watched   int
	exhausted bool
}

type rootWatch struct {
	limiter  *rate.Limiter
	timer    *time.Timer
	armed    bool
	// reserved means the pending timer already holds a limiter token.
	reserved bool
}

// New creates a watcher. Watches are added when Run starts.
func New(cfg Config) (*Watcher, error) {
	if cfg.Target == nil {
		return nil, errors.New("watch: no trigger target")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = DefaultMinInterval
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create notifier: %w", err)
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	w := &Watcher{
		cfg:   cfg,
		fsw:   fsw,
		due:   make(chan string, len(cfg.Roots)+1),
		done:  make(chan struct{}),
		roots: make(map[string]*rootWatch, len(cfg.Roots)),
	}
	for _, r := range cfg.Roots {
		w.roots[r] = &rootWatch{limiter: rate.NewLimiter(limit, 1)}
	}
	return w, nil
}

// Run adds watches and forwards rescan requests until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.done)
	defer w.fsw.Close()

	for root := range w.roots {
		w.addTree(root, root)
		if w.cfg.Initial {
			w.fire(root)
		}
	}
	slog.Debug("watching", "roots", len(w.roots), "dirs", w.watched)

	var poll <-chan time.Time
	if w.cfg.PollInterval > 0 {
		t := time.NewTicker(w.cfg.PollInterval)
		defer t.Stop()
		poll = t.C
	}

	for {
		select {
		case <-ctx.Done():
			for _, rw := range w.roots {
				if rw.timer != nil {
					rw.timer.Stop()
				}
			}
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				slog.Debug("notification overflow, rescanning all roots")
				for root := range w.roots {
					w.schedule(root)
				}
				continue
			}
			slog.Warn("watch error", "error", err)
		case <-poll:
			for root := range w.roots {
				w.schedule(root)
			}
		case root := <-w.due:
			w.fire(root)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	root, rel, ok := w.rootOf(ev.Name)
	if !ok {
		return
	}
	isDir := false
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Lstat(ev.Name); err == nil && fi.IsDir() {
			isDir = true
		}
	}
	if rel != "" && !w.cfg.Filter.Match(rel, isDir) {
		return
	}
	if isDir {
		w.addTree(root, ev.Name)
	}
	slog.Debug("change notification", "root", root, "path", rel, "op", ev.Op.String())
	w.schedule(root)
}

// schedule arms the debounce timer of root unless one is already pending.
func (w *Watcher) schedule(root string) {
	rw := w.roots[root]
	if rw.armed {
		return
	}
	w.arm(root, rw, w.cfg.Debounce)
}

func (w *Watcher) arm(root string, rw *rootWatch, d time.Duration) {
	rw.armed = true
	rw.timer = time.AfterFunc(d, func() {
		select {
		case w.due <- root:
		case <-w.done:
		}
	})
}

// fire triggers root now, or re-arms for the rate limiter's delay.
func (w *Watcher) fire(root string) {
	rw := w.roots[root]
	rw.armed = false
	if !rw.reserved {
		if d := rw.limiter.Reserve().Delay(); d > 0 {
			rw.reserved = true
			w.arm(root, rw, d)
			return
		}
	}
	rw.reserved = false
	if err := w.cfg.Target.Trigger(root); err != nil {
		slog.Warn("trigger rescan", "root", root, "error", err)
	}
}

// rootOf returns the root containing path and the slash-separated path
// relative to it. Nested roots resolve to the innermost one.
func (w *Watcher) rootOf(path string) (root, rel string, ok bool) {
	for r := range w.roots {
		if path != r && !strings.HasPrefix(path, r+string(filepath.Separator)) {
			continue
		}
		if len(r) > len(root) {
			root = r
		}
	}
	if root == "" {
		return "", "", false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", "", false
	}
	if rel == "." {
		rel = ""
	}
	return root, filepath.ToSlash(rel), true
}

// addTree watches dir and every directory below it that the filter keeps.
func (w *Watcher) addTree(root, dir string) {
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(root, p); relErr == nil && rel != "." {
			if !w.cfg.Filter.Match(filepath.ToSlash(rel), true) {
				return filepath.SkipDir
			}
		}
		if err := w.fsw.Add(p); err != nil {
			if !w.exhausted {
				slog.Warn("cannot watch directory, changes below it rely on polling", "path", p, "error", err)
				w.exhausted = true
			}
			return nil
		}
		w.watched++
		return nil
	})
	if err != nil {
		slog.Warn("watch root", "root", root, "path", dir, "error", err)
	}
}
