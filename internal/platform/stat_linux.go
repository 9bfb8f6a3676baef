//go:build linux

package platform

import (
	"errors"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// lstat uses statx(2) so the birth time is available where the file system
// records it.
func lstat(path string) (Info, error) {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW,
		unix.STATX_BASIC_STATS|unix.STATX_BTIME, &stx)
	if errors.Is(err, unix.ENOSYS) {
		return lstatFallback(path)
	}
	if err != nil {
		return Info{}, &os.PathError{Op: "statx", Path: path, Err: err}
	}

	mode := uint32(stx.Mode) & unix.S_IFMT
	info := Info{
		Modified:   statxTime(stx.Mtime),
		Created:    statxTime(stx.Ctime),
		Identifier: stx.Ino,
		Device:     unix.Mkdev(stx.Dev_major, stx.Dev_minor),
		Dir:        mode == unix.S_IFDIR,
		Symlink:    mode == unix.S_IFLNK,
	}
	if stx.Mask&unix.STATX_BTIME != 0 {
		info.Created = statxTime(stx.Btime)
	}
	if !info.Dir {
		info.Size = int64(stx.Size) //nolint:gosec // G115: file sizes fit int64
	}
	return info, nil
}

func statxTime(ts unix.StatxTimestamp) time.Time {
	return time.Unix(ts.Sec, int64(ts.Nsec))
}

// lstatFallback serves kernels without statx.
func lstatFallback(path string) (Info, error) {
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
		Created:    time.Unix(st.Ctim.Sec, st.Ctim.Nsec),
		Identifier: st.Ino,
		Device:     st.Dev,
		Dir:        fi.IsDir(),
		Symlink:    fi.Mode()&os.ModeSymlink != 0,
	}
	if !info.Dir {
		info.Size = fi.Size()
	}
	return info, nil
}
