package listing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/brettbedarf/treefs/internal/util"
)

const (
	headerAuthorization = "Authorization"
	headerRequestID     = "X-Request-Id"
	headerAccept        = "Accept"
	acceptDescription   = "application/json, application/yaml;q=0.9, */*;q=0.1"
)

// maxDescriptionSize bounds how much of a response body is read.
const maxDescriptionSize = 64 << 20

// ErrInvalidURL is returned for locations an HTTPProvider cannot fetch.
var ErrInvalidURL = errors.New("invalid description URL")

// HTTPClient is the subset of *http.Client used to fetch descriptions.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is a non-2xx response to a description request.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// HTTPProvider creates HTTPSources sharing one client.
type HTTPProvider struct {
	Client HTTPClient
}

// RegisterHTTP registers an HTTPProvider backed by http.DefaultClient for
// the given schemes, http and https by default.
func RegisterHTTP(r *Registry, schemes ...string) {
	if len(schemes) == 0 {
		schemes = []string{SchemeHTTP, SchemeHTTPS}
	}
	p := &HTTPProvider{Client: http.DefaultClient}
	for _, s := range schemes {
		r.Register(s, p)
	}
}

// NewSource validates location as an absolute http(s) URL without user
// info. Credentials go through Options.Token instead.
func (p *HTTPProvider) NewSource(location string, opts Options) (Source, error) {
	raw := strings.TrimSpace(location)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch {
	case u.Scheme != SchemeHTTP && u.Scheme != SchemeHTTPS:
		return nil, fmt.Errorf("%w: scheme must be http or https: %q", ErrInvalidURL, raw)
	case u.Host == "":
		return nil, fmt.Errorf("%w: missing host: %q", ErrInvalidURL, raw)
	case u.User != nil:
		return nil, fmt.Errorf("%w: user info is not allowed: %q", ErrInvalidURL, raw)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{url: u, opts: opts, client: client}, nil
}

// HTTPSource fetches a description with a GET request.
type HTTPSource struct {
	url    *url.URL
	opts   Options
	client HTTPClient
}

func (s *HTTPSource) Location() string {
	return s.url.String()
}

func (s *HTTPSource) newRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerAccept, acceptDescription)
	req.Header.Set(headerRequestID, uuid.NewString())

	// Add custom headers
	for k, v := range s.opts.Headers {
		req.Header.Set(k, v)
	}

	if s.opts.Token != "" {
		header := s.opts.TokenHeader
		if header == "" {
			header = headerAuthorization
		}
		value := s.opts.Token
		if strings.EqualFold(header, headerAuthorization) {
			value = "Bearer " + value
		}
		req.Header.Set(header, value)
	}
	return req, nil
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, Format, error) {
	logger := util.GetLogger("HTTPSource.Fetch")

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	req, err := s.newRequest(ctx)
	if err != nil {
		return nil, FormatUnknown, err
	}
	logger.Debug().
		Str("url", s.Location()).
		Str("requestID", req.Header.Get(headerRequestID)).
		Msg("Requesting description")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, FormatUnknown, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, FormatUnknown, &StatusError{URL: s.Location(), StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDescriptionSize+1))
	if err != nil {
		return nil, FormatUnknown, fmt.Errorf("read response body: %w", err)
	}
	if len(data) > maxDescriptionSize {
		return nil, FormatUnknown, fmt.Errorf("description larger than %d bytes", maxDescriptionSize)
	}
	return data, s.format(resp.Header.Get("Content-Type")), nil
}

// format prefers the response media type and falls back to the URL path
// extension.
func (s *HTTPSource) format(contentType string) Format {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case strings.Contains(mt, "json"):
			return FormatJSON
		case strings.Contains(mt, "yaml"):
			return FormatYAML
		}
	}
	return FormatFromPath(s.url.Path)
}
