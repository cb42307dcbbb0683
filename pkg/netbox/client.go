// Package netbox reads the device inventory and cable graph from the NetBox
// REST API.
package netbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/newtron-network/routewatch/pkg/version"
)

// Options tunes the client. Zero values select the defaults.
type Options struct {
	PageSize  int           // default 100
	RateLimit float64       // requests per second, default 20
	Burst     int           // default 5
	Timeout   time.Duration // per request, default 30s
}

// Client is a read-only NetBox API client. It is safe for concurrent use.
type Client struct {
	baseURL  *url.URL
	token    string
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter
}

// New creates a client for the NetBox instance at baseURL
// ("http://netbox.example.net" or a bare "host:port").
func New(baseURL, token string, opts Options) (*Client, error) {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("netbox url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("netbox url %q has no host", baseURL)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  u,
		token:    token,
		pageSize: opts.PageSize,
		http:     &http.Client{Timeout: opts.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
	}, nil
}

// endpoint returns the absolute URL of an API path with the page size set.
func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	u.RawQuery = q.Encode()
	return u.String()
}

// APIError is a non-2xx NetBox response.
type APIError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("GET %s: %d %s: %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func (c *Client) get(ctx context.Context, rawURL string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{URL: rawURL, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

type page[T any] struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}

// list follows the "next" links from the first page of path and calls fn
// for every result.
func list[T any](ctx context.Context, c *Client, path string, fn func(T) error) error {
	next := c.endpoint(path)
	for next != "" {
		var p page[T]
		if err := c.get(ctx, next, &p); err != nil {
			return err
		}
		for _, r := range p.Results {
			if err := fn(r); err != nil {
				return err
			}
		}
		next = ""
		if p.Next != nil {
			next = *p.Next
		}
	}
	return nil
}
