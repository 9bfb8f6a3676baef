package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImport_RoundTrip(t *testing.T) {
	want := sampleTree(t, 123)
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, want))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), exportMagic))

	got, err := Import(&buf)
	require.NoError(t, err)
	assertSameTree(t, want, got)
}

func TestImport_RejectsForeignFile(t *testing.T) {
	_, err := Import(bytes.NewReader([]byte("PK\x03\x04 definitely a zip file")))
	require.ErrorIs(t, err, ErrCorruptBaseline)

	_, err = Import(bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrCorruptBaseline)
}

func TestImport_RejectsTruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleTree(t, 1)))
	b := buf.Bytes()

	_, err := Import(bytes.NewReader(b[:len(b)/2]))
	require.ErrorIs(t, err, ErrCorruptBaseline)
}
