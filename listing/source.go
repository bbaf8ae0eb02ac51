// Package listing fetches and decodes the description a tree is built from.
//
// A description lives at a location: an http(s) URL, a file:// URL or a
// bare local path. Locations are mapped to a Provider by URL scheme through
// a Registry; the Provider turns the location into a Source that can fetch
// the raw bytes.
package listing

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/brettbedarf/treefs/internal/util"
)

// Format is the encoding of a fetched description.
type Format string

const (
	FormatUnknown Format = ""
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
)

// Source fetches one description.
type Source interface {
	// Fetch returns the raw description and its format when known.
	Fetch(ctx context.Context) ([]byte, Format, error)
	// Location returns where the description is fetched from.
	Location() string
}

// Options tune how a Source fetches. Zero values mean defaults.
type Options struct {
	Token       string            // sent with remote requests when set
	TokenHeader string            // header carrying Token (Default "Authorization" as a bearer token)
	Headers     map[string]string // extra request headers
	Timeout     time.Duration     // per fetch; 0 means no timeout
}

// Provider is a factory for Sources of one location scheme.
type Provider interface {
	NewSource(location string, opts Options) (Source, error)
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(p string) Format {
	switch strings.ToLower(path.Ext(p)) {
	case ".json", ".jsonc":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// Load fetches the description from src and decodes it.
func Load(ctx context.Context, src Source) (any, error) {
	logger := util.GetLogger("listing.Load")

	data, format, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch description from %s: %w", src.Location(), err)
	}
	logger.Debug().
		Str("location", src.Location()).
		Int("bytes", len(data)).
		Str("format", string(format)).
		Msg("Fetched description")

	desc, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("decode description from %s: %w", src.Location(), err)
	}
	return desc, nil
}
