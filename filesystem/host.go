package filesystem

import (
	"errors"

	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// Thin wrappers over the host calls used for file nodes. Every failure is
// returned as a *HostIOError carrying the host errno unchanged.

func hostOpen(path string, flags int) (int, error) {
	for {
		fd, err := unix.Open(path, flags|unix.O_CLOEXEC, 0)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return -1, hostErr("open", path, err)
		}
		return fd, nil
	}
}

func hostPread(fd int, path string, buf []byte, off int64) (int, error) {
	for {
		n, err := unix.Pread(fd, buf, off)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, hostErr("pread", path, err)
		}
		return n, nil
	}
}

func hostClose(fd int, path string) error {
	if err := unix.Close(fd); err != nil {
		return hostErr("close", path, err)
	}
	return nil
}

// hostStat follows symlinks so a node backed by a link reports its target.
func hostStat(path string) (fuse.Attr, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fuse.Attr{}, hostErr("stat", path, err)
	}
	return attrFromStat(&st), nil
}

func attrFromStat(st *unix.Stat_t) fuse.Attr {
	return fuse.Attr{
		Ino:       st.Ino,
		Size:      uint64(st.Size),
		Blocks:    uint64(st.Blocks),
		Atime:     uint64(st.Atim.Sec),
		Mtime:     uint64(st.Mtim.Sec),
		Ctime:     uint64(st.Ctim.Sec),
		Atimensec: uint32(st.Atim.Nsec),
		Mtimensec: uint32(st.Mtim.Nsec),
		Ctimensec: uint32(st.Ctim.Nsec),
		Mode:      st.Mode,
		Nlink:     uint32(st.Nlink),
		Owner: fuse.Owner{
			Uid: st.Uid,
			Gid: st.Gid,
		},
		Rdev:    uint32(st.Rdev),
		Blksize: uint32(st.Blksize),
	}
}
