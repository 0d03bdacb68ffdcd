// Package politeness decides whether a URL may be crawled according to its
// site's robots.txt. Anything short of a readable policy or a clean 404 is a
// denial.
package politeness

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/resilience"
)

// DefaultTimeout bounds a single robots.txt fetch.
const DefaultTimeout = 5 * time.Second

const maxPolicyBytes = 512 * 1024

// Policy is the parsed form of one origin's robots.txt.
type Policy struct {
	// Disallow holds path prefixes; nil means everything is allowed.
	Disallow []string
	// Err is set when the policy could not be obtained and the origin is
	// denied outright.
	Err error
}

// Allows reports whether path is outside every disallowed prefix.
func (p *Policy) Allows(path string) bool {
	if p.Err != nil {
		return false
	}
	if path == "" {
		path = "/"
	}
	for _, prefix := range p.Disallow {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// ParsePolicy collects the second whitespace-separated field of every line
// beginning with the case-sensitive prefix "Disallow". "Disallow:/p" has no
// second field and is skipped; "DisallowAll /p" still yields "/p". User-agent
// groups are not distinguished.
func ParsePolicy(r io.Reader) ([]string, error) {
	var prefixes []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxPolicyBytes)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "Disallow") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[1] == "" {
			continue
		}
		prefixes = append(prefixes, fields[1])
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return prefixes, nil
}

// Gate fetches and caches robots policies per origin. Failed lookups are
// cached too, so an origin is asked at most once per Gate.
type Gate struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration

	mu       sync.RWMutex
	policies map[string]*Policy
	group    singleflight.Group

	logger *slog.Logger
}

type Option func(*Gate)

func WithTimeout(d time.Duration) Option {
	return func(g *Gate) { g.timeout = d }
}

func WithUserAgent(ua string) Option {
	return func(g *Gate) { g.userAgent = ua }
}

// NewGate returns a Gate using client for policy requests. A nil client gets
// a default one.
func NewGate(client *http.Client, opts ...Option) *Gate {
	if client == nil {
		client = &http.Client{}
	}
	g := &Gate{
		client:   client,
		timeout:  DefaultTimeout,
		policies: make(map[string]*Policy),
		logger:   slog.Default().With("component", "politeness"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CanCrawl reports whether rawURL may be fetched.
func (g *Gate) CanCrawl(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		g.logger.Debug("unparseable url denied", "url", rawURL)
		return false
	}
	policy := g.policyFor(ctx, u.Scheme+"://"+u.Host)
	allowed := policy.Allows(u.EscapedPath())
	if !allowed && policy.Err == nil {
		g.logger.Debug("disallowed by robots policy", "url", rawURL)
	}
	return allowed
}

// policyFor returns the cached or freshly fetched policy for origin
// (scheme://host).
func (g *Gate) policyFor(ctx context.Context, origin string) *Policy {
	g.mu.RLock()
	p, ok := g.policies[origin]
	g.mu.RUnlock()
	if ok {
		return p
	}

	v, _, _ := g.group.Do(origin, func() (any, error) {
		g.mu.RLock()
		cached, ok := g.policies[origin]
		g.mu.RUnlock()
		if ok {
			return cached, nil
		}
		p := g.fetch(ctx, origin)
		g.mu.Lock()
		g.policies[origin] = p
		g.mu.Unlock()
		return p, nil
	})
	return v.(*Policy)
}

func (g *Gate) fetch(ctx context.Context, origin string) *Policy {
	robotsURL := origin + "/robots.txt"
	var policy *Policy
	err := resilience.WithTimeout(ctx, g.timeout, "robots-fetch", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
		if err != nil {
			return err
		}
		if g.userAgent != "" {
			req.Header.Set("User-Agent", g.userAgent)
		}
		resp, err := g.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			policy = &Policy{}
			return nil
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		prefixes, err := ParsePolicy(io.LimitReader(resp.Body, maxPolicyBytes))
		if err != nil {
			return fmt.Errorf("reading policy: %w", err)
		}
		policy = &Policy{Disallow: prefixes}
		return nil
	})
	if err == nil {
		if len(policy.Disallow) == 0 {
			g.logger.Debug("robots policy allows all", "origin", origin)
		}
		return policy
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		g.logger.Error("failed to resolve domain, skipping", "origin", origin, "error", err)
		return &Policy{Err: fmt.Errorf("%w: %s: %v", apperrors.ErrDNSResolution, origin, err)}
	}
	g.logger.Error("failed to access robots.txt", "url", robotsURL, "error", err)
	return &Policy{Err: fmt.Errorf("%w: %s: %v", apperrors.ErrPolicyFetch, robotsURL, err)}
}

// Reset forgets every cached decision. The crawler calls it at the start of
// each run so a transient failure does not outlive the run that saw it.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.policies = make(map[string]*Policy)
	g.mu.Unlock()
}

// Cached returns the number of origins with a stored decision.
func (g *Gate) Cached() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.policies)
}
