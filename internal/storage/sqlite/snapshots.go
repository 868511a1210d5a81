package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	portal "github.com/mstern/devportal/internal"
	"github.com/mstern/devportal/internal/storage"
)

var _ storage.SnapshotStore = (*Store)(nil)

// UpsertSnapshots inserts or replaces snapshots keyed by (plan, date).
// A single multi-row statement avoids N round-trips per poll.
func (s *Store) UpsertSnapshots(ctx context.Context, snaps []portal.UsageSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	const cols = 6
	placeholders := make([]string, len(snaps))
	args := make([]any, 0, len(snaps)*cols)

	for i, snap := range snaps {
		id := snap.ID
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}
		placeholders[i] = "(?, ?, ?, ?, ?, ?)"
		args = append(args,
			id, snap.UsagePlanID, snap.Date,
			snap.Used, snap.Remaining,
			snap.CollectedAt.UTC().Format(time.RFC3339),
		)
	}

	query := `INSERT INTO usage_snapshots
		(id, usage_plan_id, date, used, remaining, collected_at)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (usage_plan_id, date) DO UPDATE SET
			used = excluded.used,
			remaining = excluded.remaining,
			collected_at = excluded.collected_at`

	_, err := s.write.ExecContext(ctx, query, args...)
	return err
}

// DailyTotals returns per-day totals for a plan since a YYYY-MM-DD date,
// ascending by date. since may be empty for all history.
func (s *Store) DailyTotals(ctx context.Context, usagePlanID, since string) ([]portal.DailyTotal, error) {
	query := `SELECT date, SUM(used), SUM(remaining) FROM usage_snapshots
		WHERE usage_plan_id = ?`
	args := []any{usagePlanID}
	if since != "" {
		query += ` AND date >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY date ORDER BY date ASC`

	rows, err := s.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []portal.DailyTotal
	for rows.Next() {
		var t portal.DailyTotal
		if err := rows.Scan(&t.Date, &t.Used, &t.Remaining); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
