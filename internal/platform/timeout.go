package platform

import (
	"fmt"
	"time"
)

// WithTimeout bounds every Stat and ListChildren call on m by d. A call that
// outlives d fails with ErrTimeout; its goroutine is left to finish on its
// own. A non-positive d returns m unchanged.
func WithTimeout(m Metadata, d time.Duration) Metadata {
	if d <= 0 {
		return m
	}
	return &timeoutMetadata{inner: m, timeout: d}
}

type timeoutMetadata struct {
	inner   Metadata
	timeout time.Duration
}

type result[T any] struct {
	val T
	err error
}

func bounded[T any](d time.Duration, op, path string, fn func() (T, error)) (T, error) {
	ch := make(chan result[T], 1)
	go func() {
		v, err := fn()
		ch <- result[T]{val: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.val, r.err
	case <-timer.C:
		var zero T
		return zero, fmt.Errorf("%s %s after %s: %w", op, path, d, ErrTimeout)
	}
}

func (t *timeoutMetadata) Stat(path string) (Info, error) {
	return bounded(t.timeout, "stat", path, func() (Info, error) { return t.inner.Stat(path) })
}

func (t *timeoutMetadata) ListChildren(path string) ([]string, error) {
	return bounded(t.timeout, "list", path, func() ([]string, error) { return t.inner.ListChildren(path) })
}

// Refresh forwards to the wrapped source when it holds per-scan state.
func (t *timeoutMetadata) Refresh() error {
	if r, ok := t.inner.(Refresher); ok {
		return r.Refresh()
	}
	return nil
}
