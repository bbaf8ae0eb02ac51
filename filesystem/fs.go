// Package filesystem answers the filesystem queries a FUSE session makes
// against a frozen tree: attributes, listings, opens, reads and releases.
// File nodes are served from their host files; directories are synthetic.
package filesystem

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"

	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/brettbedarf/treefs/tree"
)

// Flags that would let an open modify the host file.
const writeFlags = unix.O_TRUNC | unix.O_APPEND | unix.O_CREAT

// FileSystem serves one frozen tree. All methods are safe for concurrent
// use; the tree itself is never locked.
type FileSystem struct {
	cfg       *config.Config
	tree      *tree.Tree
	handles   *handleTable
	mountTime time.Time
	owner     fuse.Owner
}

// New returns a FileSystem serving t. It panics if t is not frozen.
func New(cfg *config.Config, t *tree.Tree) *FileSystem {
	if !t.Frozen() {
		panic("filesystem: tree must be frozen before it is served")
	}
	return &FileSystem{
		cfg:       cfg,
		tree:      t,
		handles:   newHandleTable(cfg.MaxFH),
		mountTime: time.Now(),
		owner: fuse.Owner{
			Uid: uint32(os.Getuid()),
			Gid: uint32(os.Getgid()),
		},
	}
}

// Tree returns the served tree.
func (fs *FileSystem) Tree() *tree.Tree {
	return fs.tree
}

// Node returns the node with the given FUSE node id.
func (fs *FileSystem) Node(id uint64) (*tree.Node, error) {
	n, ok := fs.tree.Node(id)
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrNoSuchEntry)
	}
	return n, nil
}

// Lookup finds name inside the directory with id parentID.
func (fs *FileSystem) Lookup(parentID uint64, name string) (*tree.Node, error) {
	parent, err := fs.Node(parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsDir() {
		return nil, fmt.Errorf("lookup %q in node %d: %w", name, parentID, ErrNotDir)
	}
	n, ok := fs.tree.Lookup(parent, name)
	if !ok {
		return nil, fmt.Errorf("lookup %q in node %d: %w", name, parentID, ErrNoSuchEntry)
	}
	return n, nil
}

func (fs *FileSystem) resolve(path string) (*tree.Node, error) {
	n, err := fs.tree.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNoSuchEntry)
	}
	return n, nil
}

// GetAttr returns the attributes of the node at path.
func (fs *FileSystem) GetAttr(path string) (fuse.Attr, error) {
	n, err := fs.resolve(path)
	if err != nil {
		return fuse.Attr{}, err
	}
	return fs.AttrOf(n)
}

// AttrOf returns n's attributes. File nodes report the host file's stat
// with the inode number replaced by the node id. Directories get fixed
// attributes stamped with the mount time.
func (fs *FileSystem) AttrOf(n *tree.Node) (fuse.Attr, error) {
	hostPath, ok := n.HostPath()
	if !ok {
		return fs.dirAttr(n), nil
	}
	attr, err := hostStat(hostPath)
	if err != nil {
		return fuse.Attr{}, err
	}
	attr.Ino = n.ID()
	return attr, nil
}

func (fs *FileSystem) dirAttr(n *tree.Node) fuse.Attr {
	sec := uint64(fs.mountTime.Unix())
	nsec := uint32(fs.mountTime.Nanosecond())
	return fuse.Attr{
		Ino:       n.ID(),
		Size:      4096,
		Mode:      fuse.S_IFDIR | fs.cfg.DirMode,
		Nlink:     2,
		Owner:     fs.owner,
		Atime:     sec,
		Mtime:     sec,
		Ctime:     sec,
		Atimensec: nsec,
		Mtimensec: nsec,
		Ctimensec: nsec,
		Blksize:   4096,
	}
}

// ReadDir lists the directory at path. See EntriesOf.
func (fs *FileSystem) ReadDir(path string) ([]fuse.DirEntry, error) {
	n, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	return fs.EntriesOf(n)
}

// EntriesOf lists "." and ".." followed by n's children in tree order.
// Each entry's Off is its position in the listing plus one, so a listing
// can be resumed from any previously returned offset.
func (fs *FileSystem) EntriesOf(n *tree.Node) ([]fuse.DirEntry, error) {
	if !n.IsDir() {
		return nil, fmt.Errorf("list node %d: %w", n.ID(), ErrNotDir)
	}
	dirMode := fuse.S_IFDIR | fs.cfg.DirMode

	parentID := n.ParentID()
	if n.IsRoot() {
		parentID = n.ID()
	}
	entries := make([]fuse.DirEntry, 0, 2+n.NumChildren())
	entries = append(entries,
		fuse.DirEntry{Name: ".", Mode: dirMode, Ino: n.ID(), Off: 1},
		fuse.DirEntry{Name: "..", Mode: dirMode, Ino: parentID, Off: 2},
	)
	for i, ch := range n.Children() {
		mode := dirMode
		if ch.IsFile() {
			mode = fuse.S_IFREG | fs.cfg.FileListMode
		}
		entries = append(entries, fuse.DirEntry{
			Name: ch.Name(),
			Mode: mode,
			Ino:  ch.ID(),
			Off:  uint64(i + 3),
		})
	}
	return entries, nil
}

// Open opens the file node at path. See OpenNode.
func (fs *FileSystem) Open(path string, flags uint32) (uint64, error) {
	n, err := fs.resolve(path)
	if err != nil {
		return 0, err
	}
	return fs.OpenNode(n, flags)
}

// OpenNode opens n's host file and returns a handle for Read and Release.
// Only file nodes can be opened and only for reading.
func (fs *FileSystem) OpenNode(n *tree.Node, flags uint32) (uint64, error) {
	logger := util.GetLogger("FS.Open")

	hostPath, ok := n.HostPath()
	if !ok {
		return 0, fmt.Errorf("open directory node %d: %w", n.ID(), ErrNoSuchEntry)
	}
	if flags&syscall.O_ACCMODE != syscall.O_RDONLY || flags&writeFlags != 0 {
		logger.Debug().Uint64("node", n.ID()).Uint32("flags", flags).Msg("Rejected write open")
		return 0, fmt.Errorf("open %s for writing: %w", fs.tree.Path(n), ErrReadOnly)
	}

	fd, err := hostOpen(hostPath, int(flags))
	if err != nil {
		return 0, err
	}
	fh, ok := fs.handles.add(&session{fd: fd, node: n, hostPath: hostPath})
	if !ok {
		_ = hostClose(fd, hostPath)
		return 0, ErrHandlesExhausted
	}
	logger.Trace().Uint64("node", n.ID()).Uint64("fh", fh).Str("host", hostPath).Msg("Opened")
	return fh, nil
}

// Read reads up to len(buf) bytes at off from the session fh. A short
// count means end of file was reached. Reads on one handle may run in
// parallel.
func (fs *FileSystem) Read(fh uint64, buf []byte, off int64) (int, error) {
	s, ok := fs.handles.get(fh)
	if !ok {
		return 0, fmt.Errorf("read fh %d: %w", fh, ErrBadHandle)
	}
	return hostPread(s.fd, s.hostPath, buf, off)
}

// Release closes the session fh.
func (fs *FileSystem) Release(fh uint64) error {
	s, ok := fs.handles.remove(fh)
	if !ok {
		return fmt.Errorf("release fh %d: %w", fh, ErrBadHandle)
	}
	return hostClose(s.fd, s.hostPath)
}

// OpenSessions returns the number of handles not yet released.
func (fs *FileSystem) OpenSessions() int {
	return fs.handles.len()
}

// Close releases every open session. The first close failure is returned
// after all descriptors have been closed.
func (fs *FileSystem) Close() error {
	logger := util.GetLogger("FS.Close")

	var first error
	sessions := fs.handles.drain()
	for _, s := range sessions {
		if err := hostClose(s.fd, s.hostPath); err != nil {
			logger.Warn().Err(err).Uint64("node", s.node.ID()).Msg("Failed to close session")
			if first == nil {
				first = err
			}
		}
	}
	if len(sessions) > 0 {
		logger.Debug().Int("sessions", len(sessions)).Msg("Released open sessions")
	}
	return first
}
