package server

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/brettbedarf/treefs/tree"
)

func frozenTree(t *testing.T, desc map[string]any) *tree.Tree {
	t.Helper()
	res, err := tree.Build(desc)
	require.NoError(t, err)
	return res.Tree
}

func TestMountOptions(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig(&config.ConfigOverride{
		FsName:       util.Pointer("remote"),
		AllowOther:   util.Pointer(true),
		MaxReadAhead: util.Pointer(64 * config.KB),
	})
	fs := New(cfg, frozenTree(t, map[string]any{}))

	opts := fs.MountOptions()
	assert.Equal(t, "remote", opts.FsName)
	assert.Equal(t, config.DefaultName, opts.Name)
	assert.True(t, opts.AllowOther)
	assert.Equal(t, []string{"ro"}, opts.Options)
	assert.Equal(t, 64*config.KB, opts.MaxReadAhead)
	assert.False(t, opts.Debug)
	assert.NotNil(t, opts.Logger)
}

func TestMountOptions_DebugAtTrace(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	cfg.LogLvl = util.TraceLevel
	fs := New(cfg, frozenTree(t, map[string]any{}))

	assert.True(t, fs.MountOptions().Debug)
}

func TestNotMounted(t *testing.T) {
	t.Parallel()

	fs := New(config.NewDefaultConfig(), frozenTree(t, map[string]any{}))

	assert.ErrorIs(t, fs.Wait(), ErrNotMounted)
	assert.NoError(t, fs.Unmount(), "unmounting an unmounted filesystem is a no-op")
}

func TestTreeFs_ServesQueriesWithoutMount(t *testing.T) {
	t.Parallel()

	host := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(host, []byte("abc"), 0o644))
	fs := New(config.NewDefaultConfig(), frozenTree(t, map[string]any{"children": []any{
		map[string]any{"name": "a.txt", "host_path": host},
	}}))

	fh, err := fs.Open("/a.txt", syscall.O_RDONLY)
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := fs.Read(fh, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))
	require.NoError(t, fs.Close())
	assert.Zero(t, fs.OpenSessions())
}
