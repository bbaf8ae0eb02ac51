package listing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func TestHTTPProvider_NewSource(t *testing.T) {
	t.Parallel()
	provider := &HTTPProvider{&MockHTTPClient{}}

	tests := []struct {
		url     string
		wantErr bool
		desc    string
	}{
		// Valid cases
		{"http://test.com", false, "basic HTTP URL"},
		{"https://test.com", false, "basic HTTPS URL"},
		{"  http://test.com   ", false, "URL with whitespace"},
		{"http://test.com/path?arg=1&arg2=2", false, "URL with path and query"},
		{"http://test.com:8080", false, "URL with port"},
		{"http://localhost:8080/test", false, "localhost with port"},
		{"http://123.123.123.123/test", false, "IP address"},
		{"http://mylocalnet/test", false, "single label hostname"},

		// Invalid cases
		{"", true, "empty string"},
		{" ", true, "whitespace only"},
		{"_", true, "invalid character"},
		{"ftp://test.com", true, "different scheme rejected"},
		{"test.com", true, "missing scheme"},
		{"http://user@test.com/path", true, "URL with user info"},
		{"http:///path", true, "missing host"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			src, err := provider.NewSource(tt.url, Options{})

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
				assert.Nil(t, src)
			} else {
				require.NoError(t, err)
				require.NotNil(t, src)
				assert.IsType(t, &HTTPSource{}, src)
			}
		})
	}
}

// newDescriptionServer serves body with contentType and records the last
// request headers.
func newDescriptionServer(t *testing.T, contentType, body string) (*httptest.Server, <-chan http.Header) {
	t.Helper()
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, headers
}

func fetch(t *testing.T, location string, opts Options) ([]byte, Format, error) {
	t.Helper()
	src, err := (&HTTPProvider{Client: http.DefaultClient}).NewSource(location, opts)
	require.NoError(t, err)
	return src.Fetch(context.Background())
}

func TestHTTPSource_Fetch(t *testing.T) {
	t.Parallel()
	body := `{"children": [{"name": "docs"}]}`
	srv, headers := newDescriptionServer(t, "application/json; charset=utf-8", body)

	data, format, err := fetch(t, srv.URL+"/tree", Options{})

	require.NoError(t, err)
	assert.Equal(t, body, string(data))
	assert.Equal(t, FormatJSON, format)

	h := <-headers
	assert.Empty(t, h.Get("Authorization"), "no token, no auth header")
	_, err = uuid.Parse(h.Get("X-Request-Id"))
	assert.NoError(t, err, "request id is a uuid")
}

func TestHTTPSource_BearerToken(t *testing.T) {
	t.Parallel()
	srv, headers := newDescriptionServer(t, "application/json", `{}`)

	_, _, err := fetch(t, srv.URL, Options{Token: "s3cret"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer s3cret", (<-headers).Get("Authorization"))
}

func TestHTTPSource_CustomTokenHeader(t *testing.T) {
	t.Parallel()
	srv, headers := newDescriptionServer(t, "application/json", `{}`)

	_, _, err := fetch(t, srv.URL, Options{
		Token:       "s3cret",
		TokenHeader: "Girder-Token",
		Headers:     map[string]string{"X-Tenant": "lab"},
	})
	require.NoError(t, err)

	h := <-headers
	assert.Equal(t, "s3cret", h.Get("Girder-Token"), "custom headers carry the raw token")
	assert.Empty(t, h.Get("Authorization"))
	assert.Equal(t, "lab", h.Get("X-Tenant"))
}

func TestHTTPSource_FormatDetection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc        string
		contentType string
		path        string
		exp         Format
	}{
		{"json media type", "application/json", "/tree", FormatJSON},
		{"yaml media type", "application/yaml", "/tree", FormatYAML},
		{"x-yaml media type", "text/x-yaml", "/tree.json", FormatYAML},
		{"generic media type uses extension", "text/plain", "/tree.yml", FormatYAML},
		{"no media type uses extension", "", "/tree.json", FormatJSON},
		{"nothing known", "application/octet-stream", "/tree", FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			srv, _ := newDescriptionServer(t, tt.contentType, "{}")
			_, format, err := fetch(t, srv.URL+tt.path, Options{})

			require.NoError(t, err)
			assert.Equal(t, tt.exp, format)
		})
	}
}

func TestHTTPSource_StatusError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	data, _, err := fetch(t, srv.URL, Options{Token: "old"})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "401")
	assert.Nil(t, data)
}

func TestHTTPSource_Timeout(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, _, err := fetch(t, srv.URL, Options{Timeout: 50 * time.Millisecond})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestHTTPSource_ClientError(t *testing.T) {
	t.Parallel()

	client := &MockHTTPClient{}
	netErr := errors.New("dial tcp: connection refused")
	client.On("Do", mock.Anything).Return(nil, netErr)

	src, err := (&HTTPProvider{Client: client}).NewSource("https://example.com/tree.json", Options{})
	require.NoError(t, err)

	_, _, err = src.Fetch(context.Background())
	assert.ErrorIs(t, err, netErr)
	client.AssertNumberOfCalls(t, "Do", 1)
}

func TestHTTPSource_MockedResponse(t *testing.T) {
	t.Parallel()

	client := &MockHTTPClient{}
	client.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.Method == http.MethodGet && req.URL.Path == "/api/tree.yaml"
	})).Return(&http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("children: []\n")),
	}, nil)

	src, err := (&HTTPProvider{Client: client}).NewSource("https://example.com/api/tree.yaml", Options{})
	require.NoError(t, err)

	data, format, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "children: []\n", string(data))
	assert.Equal(t, FormatYAML, format)
	client.AssertExpectations(t)
}
