package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	portal "github.com/mstern/devportal/internal"
	"github.com/mstern/devportal/internal/breaker"
	"github.com/mstern/devportal/internal/cache"
	"github.com/mstern/devportal/internal/client"
	"github.com/mstern/devportal/internal/config"
	"github.com/mstern/devportal/internal/monitor"
	"github.com/mstern/devportal/internal/storage/sqlite"
	"github.com/mstern/devportal/internal/telemetry"
	"github.com/mstern/devportal/internal/transport"
	"github.com/mstern/devportal/internal/usage"
	"github.com/mstern/devportal/internal/worker"
)

func run(configPath, command string, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}
	if cfg.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is not configured")
	}

	ctx := context.Background()

	var metrics *telemetry.Metrics
	reg := prometheus.NewRegistry()
	if cfg.Telemetry.Metrics.Enabled {
		metrics = telemetry.NewMetrics(reg)
	}

	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	gw, err := newGateway(ctx, cfg, metrics)
	if err != nil {
		return err
	}

	state := portal.NewState()
	cl := client.New(gw, state, metrics)

	switch command {
	case "catalog":
		return cmdCatalog(ctx, cl)
	case "apikey":
		return cmdAPIKey(ctx, cl)
	case "subscriptions":
		return cmdSubscriptions(ctx, cl)
	case "subscribe":
		return cmdSubscribe(ctx, cl, args)
	case "unsubscribe":
		return cmdUnsubscribe(ctx, cl, args)
	case "usage":
		return cmdUsage(ctx, cl, args)
	case "watch":
		return cmdWatch(ctx, cfg, cl, state, metrics, reg)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// newGateway builds the transport with the configured auth chain, rate
// limit, and response cache.
func newGateway(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (portal.Gateway, error) {
	baseRT := transport.NewPooledTransport(nil)

	httpClient := &http.Client{
		Transport: baseRT,
		Timeout:   cfg.Gateway.Timeout,
	}

	switch cfg.Auth.Mode {
	case "", "none":
	case "api_key":
		httpClient.Transport = &transport.APIKeyTransport{
			Key:    cfg.Auth.APIKey,
			Header: cfg.Auth.APIKeyHeader,
			Base:   baseRT,
		}
	case "oauth2":
		cc := clientcredentials.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			TokenURL:     cfg.Auth.TokenURL,
		}
		oc := transport.NewOAuth2Client(cc.TokenSource(ctx), baseRT)
		oc.Timeout = cfg.Gateway.Timeout
		httpClient = oc
	case "sigv4":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Auth.Region))
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		httpClient.Transport = transport.NewSigV4Transport(baseRT, awsCfg.Credentials, cfg.Auth.Region, cfg.Auth.Service)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}

	opts := transport.Options{
		HTTPClient: httpClient,
		Breaker:    breaker.New(breaker.DefaultConfig()),
		Metrics:    metrics,
		UserAgent:  cfg.Gateway.UserAgent,
	}
	if cfg.Gateway.MaxRPS > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.Gateway.MaxRPS), 1)
	}
	if cfg.Cache.Enabled {
		mem, err := cache.NewMemory(cfg.Cache.MaxSize, cfg.Cache.DefaultTTL)
		if err != nil {
			return nil, err
		}
		opts.Cache = mem
		opts.CacheTTL = cfg.Cache.DefaultTTL
	}

	return transport.New(cfg.Gateway.BaseURL, opts), nil
}

func cmdCatalog(ctx context.Context, cl *client.Client) error {
	catalog, err := cl.UpdateCatalog(ctx, false)
	if err != nil {
		return err
	}
	for _, api := range catalog {
		fmt.Printf("%s\t%s\t%s\n", api.ID, api.Name, api.UsagePlanID)
	}
	return nil
}

func cmdAPIKey(ctx context.Context, cl *client.Client) error {
	key, err := cl.UpdateAPIKey(ctx, false)
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

func cmdSubscriptions(ctx context.Context, cl *client.Client) error {
	subs, err := cl.UpdateSubscriptions(ctx, false)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		fmt.Printf("%s\t%s\n", sub.ID, sub.Name)
	}
	return nil
}

func cmdSubscribe(ctx context.Context, cl *client.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: subscribe <plan>")
	}
	if _, err := cl.Subscribe(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("subscribed to", args[0])
	return nil
}

func cmdUnsubscribe(ctx context.Context, cl *client.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: unsubscribe <plan>")
	}
	if _, err := cl.Unsubscribe(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("unsubscribed from", args[0])
	return nil
}

func cmdUsage(ctx context.Context, cl *client.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: usage <plan>")
	}
	payload, err := cl.FetchUsage(ctx, args[0])
	if err != nil {
		return err
	}
	series, err := usage.MapByDate(payload, usage.MetricUsed)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(series)
}

// cmdWatch runs the usage poller against the local history store and serves
// the monitor endpoint until interrupted.
func cmdWatch(ctx context.Context, cfg *config.Config, cl *client.Client, state *portal.State, metrics *telemetry.Metrics, reg *prometheus.Registry) error {
	store, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Warm the state before the first poll so the monitor has something to
	// show. A failure here is not fatal; the poller retries.
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := cl.RefreshUserData(warmCtx); err != nil {
		slog.Warn("initial refresh failed", "error", err)
	}
	cancel()

	handler := monitor.New(monitor.Deps{
		State:    state,
		Store:    store,
		Gatherer: reg,
	})

	workers := []worker.Worker{
		worker.NewUsagePoller(cl, store, metrics, cfg.Poller.Interval),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- monitor.Serve(ctx, cfg.Monitor.Addr, handler) }()

	slog.Info("watching", "monitor", cfg.Monitor.Addr, "interval", cfg.Poller.Interval)

	var runErr error
	if cfg.Poller.Enabled {
		runErr = worker.NewRunner(workers...).Run(ctx)
	} else {
		<-ctx.Done()
	}

	if err := <-errCh; err != nil && runErr == nil {
		runErr = err
	}
	slog.Info("stopped")
	return runErr
}
