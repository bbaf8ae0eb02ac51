package listing

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/brettbedarf/treefs/internal/util"
)

// ErrNoProvider means no Provider is registered for a location's scheme.
var ErrNoProvider = errors.New("no provider registered")

// Registry maps location schemes to Providers. It is safe for concurrent
// use.
type Registry struct {
	providers *xsync.Map[string, Provider]
}

func NewRegistry() *Registry {
	return &Registry{providers: xsync.NewMap[string, Provider]()}
}

// Register ties a provider to a scheme (e.g. "https"). Schemes are case
// insensitive. The first registration for a scheme wins; Register reports
// whether p was stored.
func (r *Registry) Register(scheme string, p Provider) bool {
	_, loaded := r.providers.LoadOrStore(strings.ToLower(scheme), p)
	if loaded {
		logger := util.GetLogger("Registry.Register")
		logger.Debug().Str("scheme", scheme).Msg("Provider already registered; keeping the first")
	}
	return !loaded
}

// GetProvider returns the provider registered for scheme.
func (r *Registry) GetProvider(scheme string) (Provider, error) {
	p, ok := r.providers.Load(strings.ToLower(scheme))
	if !ok {
		return nil, fmt.Errorf("%w for %q", ErrNoProvider, scheme)
	}
	return p, nil
}

// NewSource picks the provider for location's scheme and asks it for a
// Source. Locations without a scheme are local paths.
func (r *Registry) NewSource(location string, opts Options) (Source, error) {
	p, err := r.GetProvider(Scheme(location))
	if err != nil {
		return nil, err
	}
	return p.NewSource(location, opts)
}

// Scheme returns the lowercased URL scheme of location, or SchemeFile for
// plain paths.
func Scheme(location string) string {
	location = strings.TrimSpace(location)
	if !strings.Contains(location, "://") {
		return SchemeFile
	}
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" {
		return SchemeFile
	}
	return strings.ToLower(u.Scheme)
}
