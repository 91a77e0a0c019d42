package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brettbedarf/filetree"
)

type HTTPMethod = string

const (
	HTTPMethodGet    HTTPMethod = "GET"
	HTTPMethodDelete HTTPMethod = "DELETE"
)

// HTTPSource contains http-specific source fields. Listings are fetched
// with GET {URL}?key={key} and must answer with a JSON array of child keys.
type HTTPSource struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// HTTPClient is the subset of [http.Client] used by [HTTPLister]
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPProvider builds [HTTPLister]s sharing one client
type HTTPProvider struct {
	Client HTTPClient
}

func RegisterHTTP(r *Registry) {
	r.Register(HTTPSourceType, &HTTPProvider{Client: http.DefaultClient})
}

func (p *HTTPProvider) NewLister(raw []byte) (filetree.Lister, error) {
	var src HTTPSource
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, err
	}
	u, err := validateURL(src.URL)
	if err != nil {
		return nil, err
	}
	return &HTTPLister{client: p.Client, url: u, headers: src.Headers}, nil
}

func validateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url %q has no host", raw)
	}
	if u.User != nil {
		return nil, fmt.Errorf("url must not contain user info; use headers for credentials")
	}
	return u, nil
}

// HTTPLister implements [filetree.Lister] and [filetree.Deleter] against a
// remote listing endpoint
type HTTPLister struct {
	client  HTTPClient
	url     *url.URL
	headers map[string]string
}

func (h *HTTPLister) newRequest(ctx context.Context, method HTTPMethod, key string) (*http.Request, error) {
	u := *h.url
	q := u.Query()
	q.Set("key", key)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}

	// Add custom headers
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

func (h *HTTPLister) do(ctx context.Context, method HTTPMethod, key string) (*http.Response, error) {
	req, err := h.newRequest(ctx, method, key)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: unexpected status %s", method, key, resp.Status)
	}
	return resp, nil
}

func (h *HTTPLister) List(ctx context.Context, key string) ([]string, error) {
	resp, err := h.do(ctx, HTTPMethodGet, key)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var children []string
	if err := json.NewDecoder(resp.Body).Decode(&children); err != nil {
		return nil, fmt.Errorf("decode listing of %s: %w", key, err)
	}
	for _, child := range children {
		if child == key || !filetree.IsAncestor(key, child) {
			return nil, fmt.Errorf("listing of %s contains foreign key %q", key, child)
		}
	}
	return children, nil
}

func (h *HTTPLister) Delete(ctx context.Context, key string) error {
	resp, err := h.do(ctx, HTTPMethodDelete, key)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

var (
	_ filetree.Lister  = (*HTTPLister)(nil)
	_ filetree.Deleter = (*HTTPLister)(nil)
)
