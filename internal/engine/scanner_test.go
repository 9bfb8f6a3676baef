package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/snapwatch/internal/copytrack"
	"github.com/bamsammich/snapwatch/internal/filter"
	"github.com/bamsammich/snapwatch/internal/item"
	"github.com/bamsammich/snapwatch/internal/platform"
	"github.com/bamsammich/snapwatch/internal/stats"
)

func treePaths(t *testing.T, tree *item.Tree) []string {
	t.Helper()
	var out []string
	require.NoError(t, tree.Walk(item.RootID, func(id item.NodeID, _ int) error {
		if id != item.RootID {
			out = append(out, tree.Path(id))
		}
		return nil
	}))
	return out
}

func buildFake(t *testing.T, fs platform.Metadata, mutate func(*ScannerConfig)) (*item.Tree, error) {
	t.Helper()
	cfg := ScannerConfig{Root: fakeRoot, Workers: 3, Metadata: fs}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewScanner(cfg).Build(context.Background())
}

func TestScanner_FlatDir(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.txt"), []byte("BB"), 0o644))

	tree, err := NewScanner(ScannerConfig{
		Root:     src,
		Workers:  2,
		Metadata: platform.NewLocalWithWriters(nil),
		Policy:   copytrack.Never{},
	}).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Base(src), tree.Root().Name)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, treePaths(t, tree))
	require.NoError(t, tree.Validate())
}

func TestScanner_NestedDirs(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub1", "sub2"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "root.txt"), []byte("root"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub1", "s1.txt"), []byte("s1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub1", "sub2", "s2.txt"), []byte("s2"), 0o644))
	require.NoError(t, os.Symlink("root.txt", filepath.Join(src, "link")))

	tree, err := NewScanner(ScannerConfig{
		Root:     src,
		Metadata: platform.NewLocalWithWriters(nil),
		Policy:   copytrack.Never{},
	}).Build(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"root.txt", "link", "sub1", "sub1/s1.txt", "sub1/sub2", "sub1/sub2/s2.txt",
	}, treePaths(t, tree))

	for id := range item.NodeID(tree.Len()) {
		switch tree.Path(id) {
		case "link":
			assert.Equal(t, item.KindFile, tree.Get(id).Kind(), "symlinks are opaque files")
		case "sub1/sub2":
			assert.Equal(t, item.KindDirectory, tree.Get(id).Kind())
		case "sub1/sub2/s2.txt":
			assert.Equal(t, int64(2), item.SizeOf(tree.Get(id)))
		}
	}
}

func TestScanner_PreOrderInListingOrder(t *testing.T) {
	fs := newFakeFS()
	fs.dir("b", 20)
	fs.file("b/x", 21, 1)
	fs.file("a", 10, 1)
	fs.dir("c", 30)
	fs.dir("c/d", 31)
	fs.file("c/d/e", 32, 1)

	tree, err := buildFake(t, fs, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "b/x", "a", "c", "c/d", "c/d/e"}, treePaths(t, tree))

	// Arena order is also pre-order.
	for id := 1; id < tree.Len(); id++ {
		assert.Less(t, int(tree.Parent(item.NodeID(id))), id)
	}
	assert.Equal(t, "data", tree.Root().Name)
	assert.Equal(t, uint64(1), tree.Root().Identifier)
}

func TestScanner_OmitsUnreadableEntries(t *testing.T) {
	fs := newFakeFS()
	fs.file("ok", 10, 1)
	fs.file("locked", 11, 1)
	fs.file("vanished", 12, 1)
	fs.statErr[abs("locked")] = platform.ErrPermission
	fs.statErr[abs("vanished")] = platform.ErrNotFound
	collector := stats.NewCollector()

	tree, err := buildFake(t, fs, func(c *ScannerConfig) { c.Stats = collector })
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, treePaths(t, tree))
	assert.Equal(t, int64(2), collector.Snapshot().Unreadable)
}

func TestScanner_UnlistableDirectoryIsEmpty(t *testing.T) {
	fs := newFakeFS()
	fs.dir("private", 20)
	fs.file("private/secret", 21, 1)
	fs.listErr[abs("private")] = platform.ErrPermission

	tree, err := buildFake(t, fs, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"private"}, treePaths(t, tree))
}

func TestScanner_RootUnavailable(t *testing.T) {
	fs := newFakeFS()
	fs.statErr[fakeRoot] = platform.ErrPermission
	_, err := buildFake(t, fs, nil)
	require.ErrorIs(t, err, ErrRootUnavailable)
	require.ErrorIs(t, err, platform.ErrPermission)

	fs = newFakeFS()
	fs.listErr[fakeRoot] = platform.ErrPermission
	_, err = buildFake(t, fs, nil)
	require.ErrorIs(t, err, ErrRootUnavailable)

	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NewScanner(ScannerConfig{Root: file, Metadata: platform.NewLocalWithWriters(nil)}).Build(context.Background())
	require.ErrorIs(t, err, ErrRootUnavailable)
}

func TestScanner_DropsDuplicateSiblingIdentifier(t *testing.T) {
	fs := newFakeFS()
	fs.file("original", 10, 1)
	fs.file("hardlink", 10, 1)
	fs.dir("sub", 20)
	fs.file("sub/hardlink", 10, 1) // same inode in another directory is kept
	collector := stats.NewCollector()

	tree, err := buildFake(t, fs, func(c *ScannerConfig) { c.Stats = collector })
	require.NoError(t, err)
	assert.Equal(t, []string{"original", "sub", "sub/hardlink"}, treePaths(t, tree))
	assert.Equal(t, int64(1), collector.Snapshot().Duplicates)
}

func TestScanner_FilterOmitsSubtrees(t *testing.T) {
	fs := newFakeFS()
	fs.dir(".git", 20)
	fs.file(".git/HEAD", 21, 1)
	fs.file("notes.txt", 10, 1)
	fs.file("debug.log", 11, 1)
	chain, err := filter.Build([]string{".git/", "*.log"}, "")
	require.NoError(t, err)

	tree, err := buildFake(t, fs, func(c *ScannerConfig) { c.Filter = chain })
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, treePaths(t, tree))
}

func TestScanner_CopyPolicySeesBaseline(t *testing.T) {
	fs := newFakeFS()
	fs.file("growing", 10, 100)
	fs.file("fresh", 11, 5)

	baseline := item.NewTree(&item.Directory{Attrs: item.Attrs{Name: "data", Identifier: 1}})
	_, err := baseline.Add(item.RootID, &item.File{Attrs: item.Attrs{Name: "growing", Identifier: 10, Modified: t0}, Size: 50, Copying: true})
	require.NoError(t, err)

	prevs := map[uint64]*copytrack.Observation{}
	var calls int
	policy := copytrack.FuncPolicy(func(_ time.Time, cur copytrack.Observation, prev *copytrack.Observation) bool {
		calls++
		if prev != nil {
			prevs[uint64(cur.Size)] = prev
		}
		return prev != nil && prev.Copying && prev.Size != cur.Size
	})

	tree, err := buildFake(t, fs, func(c *ScannerConfig) {
		c.Baseline = baseline
		c.Policy = policy
		c.Workers = 1
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Contains(t, prevs, uint64(100))
	assert.Equal(t, int64(50), prevs[100].Size)
	assert.True(t, item.CopyingOf(tree.Get(1)))
	assert.False(t, item.CopyingOf(tree.Get(2)))
}

func TestScanner_OpenForWriteIsCopying(t *testing.T) {
	fs := newFakeFS()
	fs.add("busy", platform.Info{Identifier: 10, Size: 1, OpenForWrite: true})

	tree, err := buildFake(t, fs, nil)
	require.NoError(t, err)
	assert.True(t, item.CopyingOf(tree.Get(1)))
}

func TestScanner_TimeoutOmitsEntry(t *testing.T) {
	fs := newFakeFS()
	fs.file("fast", 10, 1)
	fs.file("hung", 11, 1)
	fs.statDelay[abs("hung")] = 300 * time.Millisecond
	collector := stats.NewCollector()

	tree, err := buildFake(t, platform.WithTimeout(fs, 50*time.Millisecond), func(c *ScannerConfig) { c.Stats = collector })
	require.NoError(t, err)
	assert.Equal(t, []string{"fast"}, treePaths(t, tree))
	assert.Equal(t, int64(1), collector.Snapshot().Unreadable)
}

func TestScanner_Cancelled(t *testing.T) {
	fs := newFakeFS()
	fs.dir("a", 20)
	fs.file("a/b", 21, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewScanner(ScannerConfig{Root: fakeRoot, Metadata: fs}).Build(ctx)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestScanner_DeepTree(t *testing.T) {
	fs := newFakeFS()
	const depth = 2000
	rel := ""
	for i := range depth {
		rel = join(rel, "d")
		fs.dir(rel, uint64(i+100))
	}
	fs.file(join(rel, "leaf"), 5, 1)

	tree, err := buildFake(t, fs, nil)
	require.NoError(t, err)
	assert.Equal(t, depth+2, tree.Len())
	require.NoError(t, tree.Validate())
}

func TestScanner_ManyDirectoriesFewWorkers(t *testing.T) {
	fs := newFakeFS()
	for i := range 200 {
		d := "dir" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		fs.dir(d, uint64(1000+i))
		fs.file(d+"/f", uint64(5000+i), int64(i))
	}

	tree, err := buildFake(t, fs, func(c *ScannerConfig) { c.Workers = 1 })
	require.NoError(t, err)
	assert.Equal(t, 401, tree.Len())
}
