package engine

import (
	"fmt"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/platform"
)

// t0 is far enough in the past that the default settle policy considers
// every fake file settled.
var t0 = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

const fakeRoot = "/data"

// fakeFS is an in-memory Metadata source. Paths are absolute and
// slash-separated.
type fakeFS struct {
	mu        sync.Mutex
	nodes     map[string]*fakeNode
	statErr   map[string]error
	listErr   map[string]error
	statDelay map[string]time.Duration
	// listHook runs at the start of every ListChildren call, outside the lock.
	listHook func(path string)
}

type fakeNode struct {
	children []string
	info     platform.Info
}

var _ platform.Metadata = (*fakeFS)(nil)

func newFakeFS() *fakeFS {
	f := &fakeFS{
		nodes:     make(map[string]*fakeNode),
		statErr:   make(map[string]error),
		listErr:   make(map[string]error),
		statDelay: make(map[string]time.Duration),
	}
	f.nodes[fakeRoot] = &fakeNode{info: platform.Info{Identifier: 1, Dir: true, Modified: t0, Created: t0}}
	return f
}

func abs(rel string) string {
	if rel == "" {
		return fakeRoot
	}
	return fakeRoot + "/" + rel
}

func (f *fakeFS) add(rel string, info platform.Info) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := abs(rel)
	parent, ok := f.nodes[path.Dir(p)]
	if !ok {
		panic(fmt.Sprintf("fakeFS: no parent for %s", rel))
	}
	parent.children = append(parent.children, path.Base(p))
	if info.Modified.IsZero() {
		info.Modified = t0
	}
	if info.Created.IsZero() {
		info.Created = t0
	}
	f.nodes[p] = &fakeNode{info: info}
}

func (f *fakeFS) file(rel string, id uint64, size int64) {
	f.add(rel, platform.Info{Identifier: id, Size: size})
}

func (f *fakeFS) dir(rel string, id uint64) {
	f.add(rel, platform.Info{Identifier: id, Dir: true})
}

func (f *fakeFS) update(rel string, fn func(*platform.Info)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.nodes[abs(rel)].info)
}

func (f *fakeFS) detach(p string) {
	parent := f.nodes[path.Dir(p)]
	name := path.Base(p)
	for i, c := range parent.children {
		if c == name {
			parent.children = append(parent.children[:i:i], parent.children[i+1:]...)
			break
		}
	}
}

func (f *fakeFS) remove(rel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := abs(rel)
	f.detach(p)
	for k := range f.nodes {
		if k == p || strings.HasPrefix(k, p+"/") {
			delete(f.nodes, k)
		}
	}
}

func (f *fakeFS) rename(from, to string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, dst := abs(from), abs(to)
	f.detach(src)
	moved := make(map[string]*fakeNode)
	for k, n := range f.nodes {
		if k == src || strings.HasPrefix(k, src+"/") {
			moved[dst+strings.TrimPrefix(k, src)] = n
			delete(f.nodes, k)
		}
	}
	for k, n := range moved {
		f.nodes[k] = n
	}
	parent := f.nodes[path.Dir(dst)]
	parent.children = append(parent.children, path.Base(dst))
}

func (f *fakeFS) Stat(p string) (platform.Info, error) {
	f.mu.Lock()
	delay := f.statDelay[p]
	err := f.statErr[p]
	n, ok := f.nodes[p]
	var info platform.Info
	if ok {
		info = n.info
	}
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return platform.Info{}, err
	}
	if !ok {
		return platform.Info{}, fmt.Errorf("stat %s: %w", p, platform.ErrNotFound)
	}
	return info, nil
}

func (f *fakeFS) ListChildren(p string) ([]string, error) {
	if f.listHook != nil {
		f.listHook(p)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[p]; err != nil {
		return nil, err
	}
	n, ok := f.nodes[p]
	if !ok {
		return nil, fmt.Errorf("list %s: %w", p, platform.ErrNotFound)
	}
	if !n.info.Dir {
		return nil, fmt.Errorf("list %s: not a directory", p)
	}
	return append([]string(nil), n.children...), nil
}

// drain collects every event currently buffered on ch.
func drain(ch chan event.Event) []event.Event {
	var out []event.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// changeSummary renders change records as "Type path [fields]" strings.
func changeSummary(t *testing.T, events []event.Event) []string {
	t.Helper()
	var out []string
	for _, ev := range events {
		if !ev.Type.IsChange() {
			continue
		}
		s := ev.Type.String() + " " + ev.Path
		if ev.Fields != 0 {
			s += " [" + ev.Fields.String() + "]"
		}
		out = append(out, s)
	}
	return out
}
