package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/snapwatch/internal/copytrack"
	"github.com/bamsammich/snapwatch/internal/engine"
	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/platform"
	"github.com/bamsammich/snapwatch/internal/store"
)

func TestWatcher_AnnouncesFreshFileOnceSettled(t *testing.T) {
	root := t.TempDir()
	settle := 200 * time.Millisecond

	var (
		mu    sync.Mutex
		added []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	obs := engine.NewObserver(ctx, engine.ObserverConfig{
		Store: store.NewMemory(),
		Scanner: engine.ScannerConfig{
			Metadata: platform.NewLocal(),
			Policy:   copytrack.Settle{Interval: settle},
		},
		Recheck: settle,
		OnResult: func(res engine.CycleResult) {
			mu.Lock()
			defer mu.Unlock()
			for _, ev := range res.Changes {
				if ev.Type == event.Added {
					added = append(added, ev.Path)
				}
			}
		},
	})

	w, err := New(Config{
		Target:      obs,
		Roots:       []string{root},
		Debounce:    50 * time.Millisecond,
		MinInterval: -1,
		Initial:     true,
	})
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		obs.Close()
	})
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.txt"), []byte("hello"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(added) == 1 && added[0] == "new.txt"
	}, 5*time.Second, 20*time.Millisecond, "a file written during watch is announced after it settles")
}
