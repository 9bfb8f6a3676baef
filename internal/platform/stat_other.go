//go:build unix && !linux

package platform

import (
	"os"
	"syscall"
)

func lstat(path string) (Info, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return Info{}, err
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return Info{}, &os.PathError{Op: "lstat", Path: path, Err: syscall.EINVAL}
	}
	info := Info{
		Modified:   fi.ModTime(),
		Created:    fi.ModTime(),
		Identifier: uint64(st.Ino), //nolint:unconvert // width differs across BSDs
		Device:     uint64(st.Dev), //nolint:unconvert,gosec // width differs across BSDs
		Dir:        fi.IsDir(),
		Symlink:    fi.Mode()&os.ModeSymlink != 0,
	}
	if !info.Dir {
		info.Size = fi.Size()
	}
	return info, nil
}
