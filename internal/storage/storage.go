// Package storage defines persistence interfaces for local usage history.
package storage

import (
	"context"

	portal "github.com/mstern/devportal/internal"
)

// SnapshotStore persists usage snapshots collected by the poller and serves
// aggregate queries over them.
type SnapshotStore interface {
	// UpsertSnapshots inserts or replaces snapshots keyed by (plan, date).
	// Re-polling the same day overwrites with the newer observation.
	UpsertSnapshots(ctx context.Context, snaps []portal.UsageSnapshot) error
	// DailyTotals returns per-day totals for a plan since a YYYY-MM-DD date,
	// ascending. since may be empty for all history.
	DailyTotals(ctx context.Context, usagePlanID, since string) ([]portal.DailyTotal, error)
	Ping(ctx context.Context) error
	Close() error
}
