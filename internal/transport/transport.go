// Package transport implements the authenticated HTTP transport against the
// portal's API gateway. It satisfies portal.Gateway: JSON in and out, with
// optional GET caching, client-side rate limiting, metrics, and tracing.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/dnscache"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	portal "github.com/mstern/devportal/internal"
	"github.com/mstern/devportal/internal/breaker"
	"github.com/mstern/devportal/internal/cache"
	"github.com/mstern/devportal/internal/telemetry"
)

// Responses are bounded to keep a misbehaving gateway from causing
// unbounded allocation.
const maxResponseBody = 8 << 20

// Options configures a Client. The zero value is usable: a pooled HTTP
// client, no rate limit, no caching, no metrics.
type Options struct {
	// HTTPClient overrides the default pooled client. Auth belongs in its
	// transport chain (see APIKeyTransport, NewOAuth2Client, SigV4Transport).
	HTTPClient *http.Client
	// Limiter throttles outbound requests when non-nil.
	Limiter *rate.Limiter
	// Breaker short-circuits requests while the gateway is degraded.
	Breaker *breaker.Breaker
	// Cache enables GET response caching when non-nil.
	Cache     cache.Cache
	CacheTTL  time.Duration
	Metrics   *telemetry.Metrics
	UserAgent string
}

// Client is the concrete portal.Gateway.
type Client struct {
	base     string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *breaker.Breaker
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	ua       string
}

var _ portal.Gateway = (*Client)(nil)

// New creates a Client for the gateway at baseURL.
func New(baseURL string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: NewPooledTransport(nil)}
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Client{
		base:     strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		limiter:  opts.Limiter,
		breaker:  opts.Breaker,
		cache:    opts.Cache,
		cacheTTL: ttl,
		metrics:  opts.Metrics,
		tracer:   telemetry.Tracer("transport"),
		ua:       opts.UserAgent,
	}
}

// NewPooledTransport returns a tuned *http.Transport with connection pooling
// and optional DNS caching.
func NewPooledTransport(resolver *dnscache.Resolver) *http.Transport {
	t := &http.Transport{
		MaxIdleConnsPerHost: 16,
		MaxConnsPerHost:     32,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		}
	}
	return t
}

// --- portal.Gateway ---

// Get issues a GET and decodes the JSON response into out when non-nil.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Put issues a PUT with a JSON body (nil body sends "{}") and decodes the
// response into out when non-nil.
func (c *Client) Put(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodPut, path, query, body, out)
}

// Delete issues a DELETE. Responses are discarded.
func (c *Client) Delete(ctx context.Context, path string, query url.Values) error {
	return c.do(ctx, http.MethodDelete, path, query, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.base + path
	key := path
	if len(query) > 0 {
		q := query.Encode()
		target += "?" + q
		key += "?" + q
	}

	ctx, span := c.tracer.Start(ctx, method+" "+path)
	defer span.End()

	if method == http.MethodGet && c.cache != nil && !portal.Fresh(ctx) {
		if cached, ok := c.cache.Get(key); ok {
			if c.metrics != nil {
				c.metrics.CacheHits.Inc()
			}
			return decode(cached, out)
		}
		if c.metrics != nil {
			c.metrics.CacheMisses.Inc()
		}
	}

	if c.breaker != nil && !c.breaker.Allow() {
		return fmt.Errorf("transport: %s %s: %w", method, path, breaker.ErrOpen)
	}

	// Every exit below must report an outcome, or a half-open breaker's
	// probe would stay consumed forever.
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.recordOutcome(err)
			return fmt.Errorf("transport: rate limit wait: %w", err)
		}
	}

	var reader io.Reader
	if method == http.MethodPut {
		// The gateway expects a JSON object body on every PUT.
		payload := body
		if payload == nil {
			payload = struct{}{}
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("transport: marshal body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		c.recordOutcome(err)
		return fmt.Errorf("transport: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.Must(uuid.NewV7()).String())
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.recordOutcome(err)
		return fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		c.recordOutcome(err)
		return fmt.Errorf("transport: read response: %w", err)
	}

	if c.metrics != nil {
		c.metrics.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(resp.StatusCode)).Inc()
		c.metrics.RequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, respBody)
		c.recordOutcome(apiErr)
		return apiErr
	}
	c.recordOutcome(nil)

	if method == http.MethodGet && c.cache != nil {
		c.cache.Set(key, respBody, c.cacheTTL)
	}

	return decode(respBody, out)
}

func (c *Client) recordOutcome(err error) {
	if c.breaker != nil {
		c.breaker.Record(classifyWeight(err))
	}
}

func decode(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("transport: decode response: %w", err)
	}
	return nil
}
