package listing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ErrInvalidPath is returned for locations a FileProvider cannot read.
var ErrInvalidPath = errors.New("invalid description path")

// FileProvider creates FileSources for local paths and file:// URLs.
type FileProvider struct{}

// RegisterFile registers a FileProvider for the file scheme.
func RegisterFile(r *Registry) {
	r.Register(SchemeFile, &FileProvider{})
}

func (p *FileProvider) NewSource(location string, _ Options) (Source, error) {
	path := strings.TrimSpace(location)
	if strings.HasPrefix(strings.ToLower(path), SchemeFile+"://") {
		u, err := url.Parse(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		if u.Host != "" && u.Host != "localhost" {
			return nil, fmt.Errorf("%w: remote host %q in file URL", ErrInvalidPath, u.Host)
		}
		path = u.Path
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	return &FileSource{path: path}, nil
}

// FileSource reads a description from a local file.
type FileSource struct {
	path string
}

func (s *FileSource) Location() string {
	return s.path
}

func (s *FileSource) Fetch(ctx context.Context) ([]byte, Format, error) {
	if err := ctx.Err(); err != nil {
		return nil, FormatUnknown, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, FormatUnknown, err
	}
	return data, FormatFromPath(s.path), nil
}
