// Package treefs ties the pieces of a tree mount together: a description is
// fetched through a listing.Registry, built into a frozen tree and served
// by a server.TreeFs.
package treefs

import (
	"context"

	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/listing"
	"github.com/brettbedarf/treefs/server"
	"github.com/brettbedarf/treefs/tree"
)

// NewRegistry returns a registry with every built-in provider registered.
func NewRegistry() *listing.Registry {
	r := listing.NewRegistry()
	listing.RegisterBuiltins(r)
	return r
}

// LoadTree fetches and decodes the description at cfg.Source and builds
// it. A nil registry means NewRegistry().
func LoadTree(ctx context.Context, cfg *config.Config, registry *listing.Registry) (*tree.Result, error) {
	if registry == nil {
		registry = NewRegistry()
	}
	src, err := registry.NewSource(cfg.Source, listing.Options{
		Token:       cfg.Token,
		TokenHeader: cfg.TokenHeader,
		Timeout:     cfg.FetchTTL(),
	})
	if err != nil {
		return nil, err
	}
	desc, err := listing.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return tree.Build(desc)
}

// New creates a TreeFs instance serving t given your config.
func New(cfg *config.Config, t *tree.Tree) *server.TreeFs {
	return server.New(cfg, t)
}
