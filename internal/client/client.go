// Package client implements the portal's data-access layer: single-flight
// cached fetchers for the catalog, subscriptions, and API key, plus
// subscription and usage operations against the gateway.
package client

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	portal "github.com/mstern/devportal/internal"
	"github.com/mstern/devportal/internal/flight"
	"github.com/mstern/devportal/internal/telemetry"
)

// Client is the data-access layer over a portal gateway. All fetched data
// lands in the shared State; the per-resource slots guarantee that
// concurrent callers share one request and that settled results are reused
// for the life of the process.
type Client struct {
	gw      portal.Gateway
	state   *portal.State
	metrics *telemetry.Metrics // optional

	catalogSlot flight.Slot[[]portal.API]
	subsSlot    flight.Slot[[]portal.Subscription]
	apiKeySlot  flight.Slot[string]
}

// New creates a Client over gw writing into state. metrics may be nil.
func New(gw portal.Gateway, state *portal.State, metrics *telemetry.Metrics) *Client {
	return &Client{gw: gw, state: state, metrics: metrics}
}

// State returns the shared state the client writes into.
func (c *Client) State() *portal.State { return c.state }

// --- response envelopes ---

type catalogEnvelope struct {
	Data portal.APIList `json:"data"`
}

type subscriptionsEnvelope struct {
	Data []portal.Subscription `json:"data"`
}

type apiKeyEnvelope struct {
	Data struct {
		Value string `json:"value"`
	} `json:"data"`
}

// --- cached fetchers ---

// UpdateCatalog returns the catalog, fetching at most once per process
// unless fresh is true. A failed fetch recovers to an empty catalog and a
// nil error: the portal renders an empty catalog rather than failing.
func (c *Client) UpdateCatalog(ctx context.Context, fresh bool) ([]portal.API, error) {
	c.countCall("catalog")
	if !fresh {
		if cat := c.state.Catalog(); len(cat) > 0 {
			return cat, nil
		}
	}
	return c.catalogSlot.Do(ctx, fresh, func() ([]portal.API, error) {
		c.countNetwork("catalog")
		var env catalogEnvelope
		if err := c.gw.Get(c.fetchCtx(ctx, fresh), "/catalog", nil, &env); err != nil {
			slog.Warn("catalog fetch failed, serving empty catalog", "error", err)
			c.state.SetCatalog([]portal.API{}, portal.APIList{})
			return []portal.API{}, nil
		}
		list := env.Data
		catalog := make([]portal.API, 0, len(list.APIGateway)+len(list.Generic))
		catalog = append(catalog, list.APIGateway...)
		catalog = append(catalog, list.Generic...)
		c.state.SetCatalog(catalog, list)
		return catalog, nil
	})
}

// UpdateSubscriptions returns the caller's subscriptions, fetching at most
// once per process unless fresh is true. Fetch errors propagate and stay in
// the slot until the next fresh fetch.
func (c *Client) UpdateSubscriptions(ctx context.Context, fresh bool) ([]portal.Subscription, error) {
	c.countCall("subscriptions")
	if !fresh {
		if subs := c.state.Subscriptions(); len(subs) > 0 {
			return subs, nil
		}
	}
	return c.subsSlot.Do(ctx, fresh, func() ([]portal.Subscription, error) {
		c.countNetwork("subscriptions")
		var env subscriptionsEnvelope
		if err := c.gw.Get(c.fetchCtx(ctx, fresh), "/subscriptions", nil, &env); err != nil {
			return nil, err
		}
		c.state.SetSubscriptions(env.Data)
		return env.Data, nil
	})
}

// UpdateAPIKey returns the caller's API key value, fetching at most once per
// process unless fresh is true. Fetch errors propagate and stay in the slot
// until the next fresh fetch.
func (c *Client) UpdateAPIKey(ctx context.Context, fresh bool) (string, error) {
	c.countCall("apikey")
	if !fresh {
		if key, ok := c.state.APIKey(); ok && key != "" {
			return key, nil
		}
	}
	return c.apiKeySlot.Do(ctx, fresh, func() (string, error) {
		c.countNetwork("apikey")
		var env apiKeyEnvelope
		if err := c.gw.Get(c.fetchCtx(ctx, fresh), "/apikey", nil, &env); err != nil {
			return "", err
		}
		c.state.SetAPIKey(env.Data.Value)
		return env.Data.Value, nil
	})
}

// RefreshUserData re-fetches the catalog, subscriptions, and API key
// concurrently, always fresh. The catalog self-recovers; a subscriptions or
// API key failure fails the whole refresh.
func (c *Client) RefreshUserData(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := c.UpdateCatalog(ctx, true)
		return err
	})
	g.Go(func() error {
		_, err := c.UpdateSubscriptions(ctx, true)
		return err
	})
	g.Go(func() error {
		_, err := c.UpdateAPIKey(ctx, true)
		return err
	})
	return g.Wait()
}

// fetchCtx threads the fresh flag to the transport so a cache-busting fetch
// also bypasses any response cache below us.
func (c *Client) fetchCtx(ctx context.Context, fresh bool) context.Context {
	if fresh {
		return portal.WithFresh(ctx)
	}
	return ctx
}

func (c *Client) countCall(resource string) {
	if c.metrics != nil {
		c.metrics.FetchCalls.WithLabelValues(resource).Inc()
	}
}

func (c *Client) countNetwork(resource string) {
	if c.metrics != nil {
		c.metrics.FetchNetwork.WithLabelValues(resource).Inc()
	}
}
