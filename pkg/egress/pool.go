package egress

import (
	"context"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/httputil"
	"github.com/matzehuels/jarprobe/pkg/observability"
)

// Defaults applied by [New] for zero Config fields.
const (
	DefaultLivenessURL     = "https://repo1.maven.org/maven2/"
	DefaultProbeTimeout    = 300 * time.Millisecond
	DefaultConnectTimeout  = 5 * time.Second
	DefaultReadTimeout     = 30 * time.Second
	DefaultAttempts        = 5
	DefaultBackoff         = 2 * time.Second
	DefaultThroughputBytes = 512 << 10

	probeHeaderTimeout = 10 * time.Second
	maxParallelProbes  = 64
)

// Config controls how the pool is built and how requests are retried.
type Config struct {
	Endpoints []Endpoint

	// LivenessURL is probed once per endpoint at startup.
	LivenessURL string
	// ThroughputURL, when set together with MinRate, is partially
	// downloaded by every live endpoint; endpoints slower than MinRate
	// bytes per second are dropped.
	ThroughputURL   string
	MinRate         int64
	ThroughputBytes int64

	ProbeTimeout   time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	Attempts int
	Backoff  time.Duration

	// UserAgent is sent with every request made through Get.
	UserAgent string

	Logger *log.Logger
}

func (c *Config) setDefaults() {
	if len(c.Endpoints) == 0 {
		c.Endpoints = []Endpoint{Direct}
	}
	if c.LivenessURL == "" {
		c.LivenessURL = DefaultLivenessURL
	}
	if c.ThroughputBytes <= 0 {
		c.ThroughputBytes = DefaultThroughputBytes
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard)
	}
}

type client struct {
	endpoint Endpoint
	http     *http.Client
}

// newClient returns a client that gives up dialing after connect and
// fails any read, headers or body, that sees no data for read.
func newClient(e Endpoint, connect, read time.Duration) *client {
	dialer := &net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy: http.ProxyURL(e.Proxy),
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &idleConn{Conn: conn, timeout: read}, nil
		},
		TLSHandshakeTimeout:   connect,
		ResponseHeaderTimeout: read,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
	}
	return &client{endpoint: e, http: &http.Client{Transport: transport}}
}

// idleConn bounds every read by a fresh deadline, so a peer that stalls
// mid-body fails the read instead of holding the caller.
type idleConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

// Pool is the set of live egress clients plus the per-URL affinity memo.
type Pool struct {
	cfg     Config
	logger  *log.Logger
	clients []*client

	mu       sync.RWMutex
	affinity map[string][]*client
	probes   singleflight.Group
}

// New probes every configured endpoint and keeps the ones that respond
// (and, when configured, meet the minimum download rate). The kept
// endpoints are rebuilt with production timeouts. An empty pool is a
// fatal error.
func New(ctx context.Context, cfg Config) (*Pool, error) {
	cfg.setDefaults()
	p := &Pool{
		cfg:      cfg,
		logger:   cfg.Logger,
		affinity: make(map[string][]*client),
	}

	candidates := make([]*client, len(cfg.Endpoints))
	for i, e := range cfg.Endpoints {
		candidates[i] = newClient(e, cfg.ProbeTimeout, probeHeaderTimeout)
	}

	live := p.probeAll(ctx, candidates, cfg.LivenessURL)
	if cfg.ThroughputURL != "" && cfg.MinRate > 0 {
		live = p.filterThroughput(ctx, live)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, errors.New(errors.ErrCodeNoEgress, "no egress endpoint reached %s", cfg.LivenessURL)
	}

	for _, c := range live {
		p.clients = append(p.clients, newClient(c.endpoint, cfg.ConnectTimeout, cfg.ReadTimeout))
	}
	p.logger.Info("egress pool ready", "available", len(p.clients), "configured", len(cfg.Endpoints))
	return p, nil
}

// Endpoints returns the endpoints that survived startup probing.
func (p *Pool) Endpoints() []Endpoint {
	out := make([]Endpoint, len(p.clients))
	for i, c := range p.clients {
		out[i] = c.endpoint
	}
	return out
}

// Size returns the number of live clients.
func (p *Pool) Size() int { return len(p.clients) }

// IsLive reports whether any client in the pool can reach target. The
// first call for a given URL probes the whole pool; the survivors become
// the affinity set for every later request whose URL starts with target.
// Concurrent first calls share one probe, which runs to completion even
// if the caller that started it goes away; a cancelled caller gets false.
func (p *Pool) IsLive(ctx context.Context, target string) bool {
	p.mu.RLock()
	set, ok := p.affinity[target]
	p.mu.RUnlock()
	if ok {
		return len(set) > 0
	}

	probeCtx := context.WithoutCancel(ctx)
	ch := p.probes.DoChan(target, func() (any, error) {
		p.mu.RLock()
		set, ok := p.affinity[target]
		p.mu.RUnlock()
		if ok {
			return set, nil
		}

		live := p.probeAll(probeCtx, p.clients, target)
		p.mu.Lock()
		p.affinity[target] = live
		p.mu.Unlock()
		if len(live) == 0 {
			p.logger.Warn("URL is not live", "url", target)
		} else {
			p.logger.Debug("affinity recorded", "url", target, "clients", len(live))
		}
		return live, nil
	})
	select {
	case <-ctx.Done():
		return false
	case res := <-ch:
		return len(res.Val.([]*client)) > 0
	}
}

// Get fetches target with a client from the longest matching affinity
// set, or the full pool. Transport failures are retried with a fixed
// backoff and a freshly chosen client; any HTTP status is returned to
// the caller. Exhausting the attempts yields ErrCodeRetryExhausted.
// The caller must close the response body.
func (p *Pool) Get(ctx context.Context, target string) (*http.Response, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid URL %q", target)
	}
	hooks := observability.HTTP()

	resp, err := httputil.Do(ctx, p.cfg.Attempts, p.cfg.Backoff, func(attempt int) httputil.Result[*http.Response] {
		c := p.pick(target)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return httputil.Fatal[*http.Response](err)
		}
		if p.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", p.cfg.UserAgent)
		}

		hooks.OnRequest(ctx, req.Method, u.Host, u.Path)
		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return httputil.Fatal[*http.Response](ctx.Err())
			}
			hooks.OnError(ctx, req.Method, u.Host, u.Path, err)
			p.logger.Debug("request failed", "url", target, "via", c.endpoint, "attempt", attempt, "err", err)
			return httputil.Retryable[*http.Response](err)
		}
		hooks.OnResponse(ctx, req.Method, u.Host, u.Path, resp.StatusCode, time.Since(start))
		return httputil.Success(resp)
	})
	if err != nil {
		var ex *httputil.ExhaustedError
		if errors.As(err, &ex) {
			return nil, errors.Wrap(errors.ErrCodeRetryExhausted, ex.Last, "%s failed %d times", target, ex.Attempts)
		}
		return nil, err
	}
	return resp, nil
}

func (p *Pool) pick(target string) *client {
	p.mu.RLock()
	var (
		best    []*client
		bestLen = -1
	)
	for prefix, set := range p.affinity {
		if len(prefix) > bestLen && strings.HasPrefix(target, prefix) {
			best, bestLen = set, len(prefix)
		}
	}
	p.mu.RUnlock()

	if len(best) == 0 {
		best = p.clients
	}
	return best[rand.IntN(len(best))]
}

func (p *Pool) probeAll(ctx context.Context, clients []*client, target string) []*client {
	ok := make([]bool, len(clients))
	var g errgroup.Group
	g.SetLimit(maxParallelProbes)
	for i, c := range clients {
		g.Go(func() error {
			ok[i] = probe(ctx, c, target)
			observability.HTTP().OnProbe(ctx, c.endpoint.String(), target, ok[i])
			return nil
		})
	}
	_ = g.Wait()

	var live []*client
	for i, c := range clients {
		if ok[i] {
			live = append(live, c)
		}
	}
	return live
}

// probe treats any HTTP response as alive.
func probe(ctx context.Context, c *client, target string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func (p *Pool) filterThroughput(ctx context.Context, clients []*client) []*client {
	var kept []*client
	for _, c := range clients {
		rate, err := p.measure(ctx, c)
		if err != nil || rate < float64(p.cfg.MinRate) {
			p.logger.Debug("endpoint too slow", "via", c.endpoint, "rate", int64(rate), "min", p.cfg.MinRate, "err", err)
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// measure downloads up to ThroughputBytes and returns bytes per second.
func (p *Pool) measure(ctx context.Context, c *client) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.ThroughputURL, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, errors.New(errors.ErrCodeNetwork, "throughput reference returned %d", resp.StatusCode)
	}
	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, p.cfg.ThroughputBytes))
	if err != nil {
		return 0, err
	}
	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 {
		elapsed = 1e-9
	}
	return float64(n) / elapsed, nil
}
