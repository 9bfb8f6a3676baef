//go:build linux

package platform

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// ProcWriters finds files open for writing by reading /proc/<pid>/fdinfo.
// Processes whose descriptors cannot be inspected are skipped.
type ProcWriters struct {
	Root string // defaults to /proc
}

// DefaultWriters returns the writer detection for this platform.
func DefaultWriters() WriterSource {
	return &ProcWriters{}
}

// OpenForWriting implements WriterSource.
func (p *ProcWriters) OpenForWriting() (map[DevIno]struct{}, error) {
	root := p.Root
	if root == "" {
		root = "/proc"
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}

	set := make(map[DevIno]struct{})
	for _, e := range entries {
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		pidDir := filepath.Join(root, e.Name())
		fds, err := os.ReadDir(filepath.Join(pidDir, "fdinfo"))
		if err != nil {
			continue // exited or not ours
		}
		for _, fd := range fds {
			if !openedForWrite(filepath.Join(pidDir, "fdinfo", fd.Name())) {
				continue
			}
			var st syscall.Stat_t
			if err := syscall.Stat(filepath.Join(pidDir, "fd", fd.Name()), &st); err != nil {
				continue
			}
			if st.Mode&syscall.S_IFMT != syscall.S_IFREG {
				continue
			}
			set[DevIno{Dev: st.Dev, Ino: st.Ino}] = struct{}{}
		}
	}
	return set, nil
}

// openedForWrite parses the octal "flags:" line of an fdinfo file.
func openedForWrite(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Bytes()
		rest, ok := bytes.CutPrefix(line, []byte("flags:"))
		if !ok {
			continue
		}
		flags, err := strconv.ParseUint(string(bytes.TrimSpace(rest)), 8, 64)
		if err != nil {
			return false
		}
		acc := flags & unix.O_ACCMODE
		return acc == unix.O_WRONLY || acc == unix.O_RDWR
	}
	return false
}
