package server

import (
	"errors"
	"sync"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/filesystem"
	"github.com/brettbedarf/treefs/internal/core"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/brettbedarf/treefs/tree"
)

// ErrNotMounted is returned by Wait before a successful Serve.
var ErrNotMounted = errors.New("filesystem is not mounted")

// TreeFs serves a frozen tree through FUSE. The embedded FileSystem can be
// used directly for the same queries the kernel makes.
type TreeFs struct {
	*filesystem.FileSystem
	cfg *config.Config

	mu     sync.Mutex
	server *fuse.Server
}

// New creates a TreeFs for t, which must already be frozen.
func New(cfg *config.Config, t *tree.Tree) *TreeFs {
	return &TreeFs{
		FileSystem: filesystem.New(cfg, t),
		cfg:        cfg,
	}
}

// MountOptions returns the go-fuse options Serve mounts with.
func (fs *TreeFs) MountOptions() *fuse.MountOptions {
	opts := fs.cfg.MountOptions
	trace := fs.cfg.LogLvl == util.TraceLevel
	return &fuse.MountOptions{
		Name:         opts.Name,
		FsName:       opts.FsName,
		AllowOther:   opts.AllowOther,
		Options:      []string{"ro"},
		MaxReadAhead: fs.cfg.MaxReadAhead,
		Debug:        opts.Debug || trace,
		Logger:       util.NewLogLogger("FuseServer", util.DebugLevel),
	}
}

// Serve mounts and serves the filesystem at the given mountPoint. It
// returns once the mount is live; requests are handled in the background.
func (fs *TreeFs) Serve(mountPoint string) error {
	logger := util.GetLogger("TreeFs.Serve")

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.server != nil {
		return errors.New("filesystem is already mounted")
	}

	raw := core.NewFuseRaw(fs.cfg, fs.FileSystem)
	srv, err := fuse.NewServer(raw, mountPoint, fs.MountOptions())
	if err != nil {
		return err
	}

	go srv.Serve()
	if err := srv.WaitMount(); err != nil {
		_ = srv.Unmount()
		return err
	}
	fs.server = srv
	logger.Debug().Str("mountpoint", mountPoint).Msg("Mounted")
	return nil
}

func (fs *TreeFs) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- fs.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Wait blocks until the filesystem is unmounted, by Unmount or externally
// with fusermount -u.
func (fs *TreeFs) Wait() error {
	fs.mu.Lock()
	srv := fs.server
	fs.mu.Unlock()
	if srv == nil {
		return ErrNotMounted
	}
	srv.Wait()
	return nil
}

// Unmount cleanly unmounts the filesystem and releases every open file.
func (fs *TreeFs) Unmount() error {
	fs.mu.Lock()
	srv := fs.server
	fs.server = nil
	fs.mu.Unlock()

	if srv == nil {
		return nil
	}
	return errors.Join(srv.Unmount(), fs.Close())
}
