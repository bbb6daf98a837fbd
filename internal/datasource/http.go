package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPSource fetches objects relative to a base URL.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPSource parses base and returns a source using client (or
// http.DefaultClient when nil). Per-request deadlines come from the context.
func NewHTTPSource(base string, client *http.Client) (*HTTPSource, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", base)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{base: u, client: client}, nil
}

// URL returns the absolute URL for key.
func (s *HTTPSource) URL(key string) string {
	ref := &url.URL{Path: strings.TrimPrefix(key, "/")}
	return s.base.ResolveReference(ref).String()
}

// Open issues a GET for key. Non-2xx responses return *HTTPStatusError.
func (s *HTTPSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	target := s.URL(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &HTTPStatusError{URL: target, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

func (s *HTTPSource) Type() SourceType { return SourceTypeHTTP }

func (s *HTTPSource) String() string { return s.base.String() }
