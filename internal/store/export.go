package store

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/bamsammich/snapwatch/internal/item"
)

// exportMagic prefixes every exported baseline file.
var exportMagic = []byte("SNAPWATCH-BASELINE\x00\x01")

// Export writes tree to w as a zstd-compressed msgpack stream.
func Export(w io.Writer, tree *item.Tree) error {
	if _, err := w.Write(exportMagic); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd encoder: %w", err)
	}
	b, err := tree.MarshalMsg(nil)
	if err != nil {
		enc.Close()
		return fmt.Errorf("encode tree: %w", err)
	}
	if _, err := enc.Write(b); err != nil {
		enc.Close()
		return fmt.Errorf("write tree: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish export: %w", err)
	}
	return nil
}

// Import reads a tree written by Export and validates it. Malformed input
// wraps ErrCorruptBaseline.
func Import(r io.Reader) (*item.Tree, error) {
	magic := make([]byte, len(exportMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read header: %w: %w", ErrCorruptBaseline, err)
	}
	if !bytes.Equal(magic, exportMagic) {
		return nil, fmt.Errorf("not a snapwatch baseline: %w", ErrCorruptBaseline)
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()

	b, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w: %w", ErrCorruptBaseline, err)
	}
	var tree item.Tree
	rest, err := tree.UnmarshalMsg(b)
	if err != nil {
		return nil, fmt.Errorf("decode tree: %w: %w", ErrCorruptBaseline, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%d trailing bytes: %w", len(rest), ErrCorruptBaseline)
	}
	return &tree, nil
}
