package worker

import (
	"context"
	"log/slog"
	"time"

	portal "github.com/mstern/devportal/internal"
	"github.com/mstern/devportal/internal/storage"
	"github.com/mstern/devportal/internal/telemetry"
	"github.com/mstern/devportal/internal/usage"
)

// UsageClient is the slice of the data-access layer the poller consumes.
type UsageClient interface {
	UpdateSubscriptions(ctx context.Context, fresh bool) ([]portal.Subscription, error)
	FetchUsage(ctx context.Context, usagePlanID string) (*usage.Payload, error)
}

// UsagePoller periodically fetches month-to-date usage for every subscribed
// usage plan and records a snapshot per day in the local store. A failed
// poll is logged and retried on the next tick; it never stops the worker.
type UsagePoller struct {
	client   UsageClient
	store    storage.SnapshotStore
	metrics  *telemetry.Metrics // optional
	interval time.Duration
	now      func() time.Time
}

// NewUsagePoller creates a UsagePoller. metrics may be nil.
func NewUsagePoller(client UsageClient, store storage.SnapshotStore, metrics *telemetry.Metrics, interval time.Duration) *UsagePoller {
	return &UsagePoller{
		client:   client,
		store:    store,
		metrics:  metrics,
		interval: interval,
		now:      time.Now,
	}
}

// Name returns the worker identifier.
func (p *UsagePoller) Name() string { return "usage_poller" }

// Run performs an initial poll, then polls on the interval until ctx is
// cancelled.
func (p *UsagePoller) Run(ctx context.Context) error {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.poll(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *UsagePoller) poll(ctx context.Context) {
	// Always fresh: plans subscribed after startup must enter the rotation,
	// so the memoized list is never good enough here.
	subs, err := p.client.UpdateSubscriptions(ctx, true)
	if err != nil {
		p.countPoll("error")
		slog.LogAttrs(ctx, slog.LevelError, "usage poll failed",
			slog.String("stage", "subscriptions"),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, sub := range subs {
		if err := p.pollPlan(ctx, sub.ID); err != nil {
			p.countPoll("error")
			slog.LogAttrs(ctx, slog.LevelError, "usage poll failed",
				slog.String("plan", sub.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		p.countPoll("ok")
	}
}

func (p *UsagePoller) pollPlan(ctx context.Context, planID string) error {
	payload, err := p.client.FetchUsage(ctx, planID)
	if err != nil {
		return err
	}

	snaps, err := usage.Snapshots(payload, planID, p.now())
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return nil
	}

	if err := p.store.UpsertSnapshots(ctx, snaps); err != nil {
		return err
	}

	if p.metrics != nil {
		p.metrics.SnapshotsRecorded.Add(float64(len(snaps)))
		// Snapshots are date-ascending; the last one is today.
		latest := snaps[len(snaps)-1]
		p.metrics.UsageUsed.WithLabelValues(planID).Set(float64(latest.Used))
		p.metrics.UsageRemaining.WithLabelValues(planID).Set(float64(latest.Remaining))
	}
	return nil
}

func (p *UsagePoller) countPoll(status string) {
	if p.metrics != nil {
		p.metrics.PollsTotal.WithLabelValues(status).Inc()
	}
}
