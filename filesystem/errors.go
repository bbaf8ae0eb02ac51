package filesystem

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/brettbedarf/treefs/tree"
)

var (
	// ErrNoSuchEntry means a path or node id names nothing that can serve
	// the request.
	ErrNoSuchEntry = errors.New("no such entry")
	// ErrReadOnly rejects every request that would modify a file.
	ErrReadOnly = errors.New("read-only filesystem")
	// ErrBadHandle means the file handle is not an open session.
	ErrBadHandle = errors.New("bad file handle")
	// ErrNotDir means a directory operation was aimed at a file node.
	ErrNotDir = errors.New("not a directory")
	// ErrHandlesExhausted means every file handle id is in use.
	ErrHandlesExhausted = errors.New("no free file handles")
)

// HostIOError is a failed host system call made on behalf of a file node.
// Errno is exactly what the host returned.
type HostIOError struct {
	Op    string // open, pread, stat, close
	Path  string // host path
	Errno syscall.Errno
}

func (e *HostIOError) Error() string {
	return fmt.Sprintf("host %s %s: %v", e.Op, e.Path, e.Errno)
}

func (e *HostIOError) Unwrap() error {
	return e.Errno
}

// hostErr wraps a host call failure. Errors that are not errnos become EIO.
func hostErr(op, path string, err error) error {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		errno = syscall.EIO
	}
	return &HostIOError{Op: op, Path: path, Errno: errno}
}

// Errno maps an error returned by this package to the code reported to
// the kernel. A nil error maps to 0.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var hostIO *HostIOError
	switch {
	case errors.As(err, &hostIO):
		return hostIO.Errno
	case errors.Is(err, ErrNoSuchEntry), errors.Is(err, tree.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, ErrReadOnly):
		return syscall.EROFS
	case errors.Is(err, ErrBadHandle):
		return syscall.EBADF
	case errors.Is(err, ErrNotDir):
		return syscall.ENOTDIR
	case errors.Is(err, ErrHandlesExhausted):
		return syscall.ENFILE
	default:
		return syscall.EIO
	}
}
