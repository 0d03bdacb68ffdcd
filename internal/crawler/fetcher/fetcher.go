// Package fetcher downloads HTML pages for the crawler. Each request is
// bounded by a timeout, optionally paced per host, capped in size and
// transcoded to UTF-8.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	apperrors "github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/errors"
)

const (
	DefaultTimeout      = 5 * time.Second
	DefaultMaxBodyBytes = 10 << 20
	DefaultUserAgent    = "crawlsearch/1.0"
)

type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	// HostRate is requests per second per host; zero disables pacing.
	HostRate  float64
	HostBurst int
}

// Page is a fetched HTML response with its body decoded to UTF-8.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	Elapsed     time.Duration
}

type Fetcher struct {
	client *http.Client
	cfg    Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	logger *slog.Logger
}

// New builds a Fetcher. A nil client gets a pooled transport; the client's
// own Timeout is left alone and cfg.Timeout is applied per request.
func New(client *http.Client, cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.HostBurst <= 0 {
		cfg.HostBurst = 1
	}
	if client == nil {
		client = NewClient()
	}
	return &Fetcher{
		client:   client,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
		logger:   slog.Default().With("component", "fetcher"),
	}
}

// NewClient returns an http.Client tuned for many short requests across
// hosts.
func NewClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			return nil
		},
	}
}

// Client exposes the underlying HTTP client so the politeness gate can share
// its connection pool.
func (f *Fetcher) Client() *http.Client { return f.client }

// Fetch downloads rawURL. Transport errors, timeouts and non-2xx statuses
// wrap ErrPageFetch; non-HTML content wraps ErrNotHTML.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPageFetch, err)
	}
	if err := f.wait(ctx, u.Host); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", apperrors.ErrPageFetch, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPageFetch, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPageFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s returned status %d", apperrors.ErrPageFetch, rawURL, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return nil, fmt.Errorf("%w: %s is %q", apperrors.ErrNotHTML, rawURL, contentType)
	}

	var body io.Reader = io.LimitReader(resp.Body, f.cfg.MaxBodyBytes)
	if decoded, err := charset.NewReader(body, contentType); err == nil {
		body = decoded
	} else {
		f.logger.Debug("charset detection failed, using raw bytes", "url", rawURL, "error", err)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", apperrors.ErrPageFetch, err)
	}

	return &Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        data,
		Elapsed:     time.Since(start),
	}, nil
}

func (f *Fetcher) wait(ctx context.Context, host string) error {
	if f.cfg.HostRate <= 0 {
		return nil
	}
	f.mu.Lock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(f.cfg.HostRate), f.cfg.HostBurst)
		f.limiters[host] = lim
	}
	f.mu.Unlock()
	return lim.Wait(ctx)
}

// isHTML accepts a missing content type as well as text/html and XHTML.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
