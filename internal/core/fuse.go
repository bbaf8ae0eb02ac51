package core

import (
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/filesystem"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/brettbedarf/treefs/tree"
)

// TreeOperator is the read-only filesystem FuseRaw serves.
// *filesystem.FileSystem implements it.
type TreeOperator interface {
	Tree() *tree.Tree
	Node(id uint64) (*tree.Node, error)
	Lookup(parentID uint64, name string) (*tree.Node, error)
	AttrOf(n *tree.Node) (fuse.Attr, error)
	EntriesOf(n *tree.Node) ([]fuse.DirEntry, error)
	OpenNode(n *tree.Node, flags uint32) (uint64, error)
	Read(fh uint64, buf []byte, off int64) (int, error)
	Release(fh uint64) error
}

var _ TreeOperator = (*filesystem.FileSystem)(nil)

// FuseRaw implements the low-level FUSE wire protocol
// It serves as protocol adapter between the FUSE and core filesystem
// See https://www.man7.org/linux//man-pages/man4/fuse.4.html
//
// Node ids handed to the kernel are tree node ids. Nodes live as long as
// the mount, so lookups are not reference counted and Forget is a no-op.
type FuseRaw struct {
	fuse.RawFileSystem
	cfg    *config.Config
	fs     TreeOperator
	server *fuse.Server
}

func NewFuseRaw(cfg *config.Config, fs TreeOperator) *FuseRaw {
	r := FuseRaw{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		cfg:           cfg,
		fs:            fs,
	}
	return &r
}

// status converts an operation error to the code sent to the kernel.
func status(err error) fuse.Status {
	return fuse.Status(filesystem.Errno(err))
}

func (r *FuseRaw) Init(s *fuse.Server) {
	logger := util.GetLogger("Fuse.Init")
	logger.Debug().Int("nodes", r.fs.Tree().Len()).Msg("FUSE initialized")
	r.server = s
}

func (r *FuseRaw) OnUnmount() {
	logger := util.GetLogger("Fuse.OnUnmount")
	logger.Info().Msg("FUSE unmounted")
}

func (r *FuseRaw) String() string {
	return "FuseRaw"
}

// Access called when the kernel wants to know if the user has permission to access the node.
// If the 'default_permissions' mount option is given, this method is not called.
// Any existing node may be read; nothing may be written.
func (r *FuseRaw) Access(cancel <-chan struct{}, input *fuse.AccessIn) fuse.Status {
	logger := util.GetLogger("Fuse.Access")
	logger.Trace().Uint64("node", input.NodeId).Uint32("mask", input.Mask).Msg("Access called")

	if _, err := r.fs.Node(input.NodeId); err != nil {
		return status(err)
	}
	if input.Mask&accessWrite != 0 {
		return fuse.EROFS
	}
	return fuse.OK
}

// Lookup is called by the kernel when the VFS wants to know
// about a file inside a directory. Many lookup calls can
// occur in parallel, but only one call happens for each (dir,
// name) pair.
func (r *FuseRaw) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	logger := util.GetLogger("Fuse.Lookup")
	logger.Trace().Uint64("parent", header.NodeId).Str("name", name).Msg("Lookup called")

	n, err := r.fs.Lookup(header.NodeId, name)
	if err != nil {
		logger.Debug().Err(err).Uint64("parent", header.NodeId).Str("name", name).Msg("Lookup failed")
		return status(err)
	}
	return r.fillEntry(n, out)
}

func (r *FuseRaw) fillEntry(n *tree.Node, out *fuse.EntryOut) fuse.Status {
	attr, err := r.fs.AttrOf(n)
	if err != nil {
		return status(err)
	}
	out.NodeId = n.ID()
	out.Attr = attr
	out.SetEntryTimeout(r.cfg.EntryTTL())
	out.SetAttrTimeout(r.cfg.AttrTTL())
	return fuse.OK
}

// Forget is called when the kernel discards entries from its
// dentry cache. This happens on unmount, and when the kernel
// is short on memory. Since it is not guaranteed to occur at
// any moment, and since there is no return value, Forget
// should not do I/O, as there is no channel to report back
// I/O errors.
func (r *FuseRaw) Forget(nodeid, nlookup uint64) {}

func (r *FuseRaw) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	logger := util.GetLogger("Fuse.GetAttr")
	logger.Trace().Uint64("node", input.NodeId).Msg("GetAttr called")

	n, err := r.fs.Node(input.NodeId)
	if err != nil {
		return status(err)
	}
	attr, err := r.fs.AttrOf(n)
	if err != nil {
		logger.Debug().Err(err).Uint64("node", input.NodeId).Msg("GetAttr failed")
		return status(err)
	}
	out.Attr = attr
	out.SetTimeout(r.cfg.AttrTTL())
	return fuse.OK
}

func (r *FuseRaw) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	n, err := r.fs.Node(input.NodeId)
	if err != nil {
		return status(err)
	}
	if !n.IsDir() {
		return fuse.ENOTDIR
	}
	if r.cfg.KernelCache {
		out.OpenFlags |= fuse.FOPEN_CACHE_DIR
	}
	return fuse.OK
}

func (r *FuseRaw) ReleaseDir(input *fuse.ReleaseIn) {}

// entriesFrom returns the listing of node id past the kernel's offset.
func (r *FuseRaw) entriesFrom(id, offset uint64) ([]fuse.DirEntry, error) {
	n, err := r.fs.Node(id)
	if err != nil {
		return nil, err
	}
	entries, err := r.fs.EntriesOf(n)
	if err != nil {
		return nil, err
	}
	if offset >= uint64(len(entries)) {
		return nil, nil
	}
	// Entry i carries Off i+1.
	return entries[offset:], nil
}

func (r *FuseRaw) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	logger := util.GetLogger("Fuse.ReadDir")
	logger.Trace().Uint64("node", input.NodeId).Uint64("offset", input.Offset).Msg("ReadDir called")

	entries, err := r.entriesFrom(input.NodeId, input.Offset)
	if err != nil {
		return status(err)
	}
	for _, e := range entries {
		if !out.AddDirEntry(e) {
			// Buffer full; the kernel comes back with a new offset.
			break
		}
	}
	return fuse.OK
}

func (r *FuseRaw) ReadDirPlus(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	logger := util.GetLogger("Fuse.ReadDirPlus")
	logger.Trace().Uint64("node", input.NodeId).Uint64("offset", input.Offset).Msg("ReadDirPlus called")

	entries, err := r.entriesFrom(input.NodeId, input.Offset)
	if err != nil {
		return status(err)
	}
	for _, e := range entries {
		entryOut := out.AddDirLookupEntry(e)
		if entryOut == nil {
			break
		}
		// "." and ".." are never looked up through READDIRPLUS.
		if e.Name == "." || e.Name == ".." {
			continue
		}
		n, err := r.fs.Node(e.Ino)
		if err != nil {
			continue
		}
		if st := r.fillEntry(n, entryOut); !st.Ok() {
			// Leave the entry unresolved; a later Lookup reports the error.
			*entryOut = fuse.EntryOut{}
		}
	}
	return fuse.OK
}

func (r *FuseRaw) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	logger := util.GetLogger("Fuse.Open")
	logger.Trace().Uint64("node", input.NodeId).Uint32("flags", input.Flags).Msg("Open called")

	n, err := r.fs.Node(input.NodeId)
	if err != nil {
		return status(err)
	}
	fh, err := r.fs.OpenNode(n, input.Flags)
	if err != nil {
		logger.Debug().Err(err).Uint64("node", input.NodeId).Msg("Open failed")
		return status(err)
	}
	out.Fh = fh
	if r.cfg.DirectIO {
		out.OpenFlags |= fuse.FOPEN_DIRECT_IO
	} else if r.cfg.KernelCache {
		out.OpenFlags |= fuse.FOPEN_KEEP_CACHE
	}
	return fuse.OK
}

func (r *FuseRaw) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	logger := util.GetLogger("Fuse.Read")
	logger.Trace().
		Uint64("fh", input.Fh).
		Uint64("offset", input.Offset).
		Uint32("size", input.Size).
		Msg("Read called")

	if int(input.Size) < len(buf) {
		buf = buf[:input.Size]
	}
	n, err := r.fs.Read(input.Fh, buf, int64(input.Offset))
	if err != nil {
		logger.Debug().Err(err).Uint64("fh", input.Fh).Msg("Read failed")
		return nil, status(err)
	}
	return fuse.ReadResultData(buf[:n]), fuse.OK
}

func (r *FuseRaw) Release(cancel <-chan struct{}, input *fuse.ReleaseIn) {
	if err := r.fs.Release(input.Fh); err != nil {
		logger := util.GetLogger("Fuse.Release")
		logger.Warn().Err(err).Uint64("fh", input.Fh).Msg("Release failed")
	}
}

// Flush is called on every close(2) of a descriptor. Nothing is buffered.
func (r *FuseRaw) Flush(cancel <-chan struct{}, input *fuse.FlushIn) fuse.Status {
	return fuse.OK
}

func (r *FuseRaw) StatFs(cancel <-chan struct{}, input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	*out = fuse.StatfsOut{
		Files:   uint64(r.fs.Tree().Len()),
		Bsize:   blockSize,
		Frsize:  blockSize,
		NameLen: maxNameLen,
	}
	return fuse.OK
}

/* Mutations: the tree and its host files are never modified */

func readOnly(op string, nodeID uint64) fuse.Status {
	logger := util.GetLogger("Fuse." + op)
	logger.Debug().Uint64("node", nodeID).Msg("Rejected on read-only filesystem")
	return fuse.EROFS
}

func (r *FuseRaw) SetAttr(cancel <-chan struct{}, input *fuse.SetAttrIn, out *fuse.AttrOut) fuse.Status {
	return readOnly("SetAttr", input.NodeId)
}

func (r *FuseRaw) Mknod(cancel <-chan struct{}, input *fuse.MknodIn, name string, out *fuse.EntryOut) fuse.Status {
	return readOnly("Mknod", input.NodeId)
}

func (r *FuseRaw) Mkdir(cancel <-chan struct{}, input *fuse.MkdirIn, name string, out *fuse.EntryOut) fuse.Status {
	return readOnly("Mkdir", input.NodeId)
}

func (r *FuseRaw) Unlink(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	return readOnly("Unlink", header.NodeId)
}

func (r *FuseRaw) Rmdir(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	return readOnly("Rmdir", header.NodeId)
}

func (r *FuseRaw) Rename(cancel <-chan struct{}, input *fuse.RenameIn, oldName string, newName string) fuse.Status {
	return readOnly("Rename", input.NodeId)
}

func (r *FuseRaw) Link(cancel <-chan struct{}, input *fuse.LinkIn, filename string, out *fuse.EntryOut) fuse.Status {
	return readOnly("Link", input.NodeId)
}

func (r *FuseRaw) Symlink(cancel <-chan struct{}, header *fuse.InHeader, pointedTo string, linkName string, out *fuse.EntryOut) fuse.Status {
	return readOnly("Symlink", header.NodeId)
}

func (r *FuseRaw) SetXAttr(cancel <-chan struct{}, input *fuse.SetXAttrIn, attr string, data []byte) fuse.Status {
	return readOnly("SetXAttr", input.NodeId)
}

func (r *FuseRaw) RemoveXAttr(cancel <-chan struct{}, header *fuse.InHeader, attr string) fuse.Status {
	return readOnly("RemoveXAttr", header.NodeId)
}

func (r *FuseRaw) Create(cancel <-chan struct{}, input *fuse.CreateIn, name string, out *fuse.CreateOut) fuse.Status {
	return readOnly("Create", input.NodeId)
}

func (r *FuseRaw) Write(cancel <-chan struct{}, input *fuse.WriteIn, data []byte) (uint32, fuse.Status) {
	return 0, readOnly("Write", input.NodeId)
}

func (r *FuseRaw) CopyFileRange(cancel <-chan struct{}, input *fuse.CopyFileRangeIn) (uint32, fuse.Status) {
	return 0, readOnly("CopyFileRange", input.NodeId)
}

func (r *FuseRaw) Fallocate(cancel <-chan struct{}, input *fuse.FallocateIn) fuse.Status {
	return readOnly("Fallocate", input.NodeId)
}
