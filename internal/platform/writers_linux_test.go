//go:build linux

package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcWriters_SeesOwnWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	l := NewLocal()
	require.NoError(t, l.Refresh())
	info, err := l.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.OpenForWrite)

	require.NoError(t, f.Close())
	require.NoError(t, l.Refresh())
	info, err = l.Stat(path)
	require.NoError(t, err)
	assert.False(t, info.OpenForWrite)
}

func TestProcWriters_IgnoresReaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "read")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	l := NewLocal()
	require.NoError(t, l.Refresh())
	info, err := l.Stat(path)
	require.NoError(t, err)
	assert.False(t, info.OpenForWrite)
}

func TestOpenedForWrite_ParsesFlags(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name  string
		body  string
		wants bool
	}{
		{name: "rdonly", body: "pos:\t0\nflags:\t0100000\nmnt_id:\t1\n"},
		{name: "wronly", body: "pos:\t0\nflags:\t0100001\n", wants: true},
		{name: "rdwr", body: "flags:\t02\n", wants: true},
		{name: "garbage", body: "flags:\tzz\n"},
		{name: "missing", body: "pos:\t0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			assert.Equal(t, tt.wants, openedForWrite(path))
		})
	}
}
