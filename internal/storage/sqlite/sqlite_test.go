package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	portal "github.com/mstern/devportal/internal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestUpsertAndDailyTotals(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2020, 1, 3, 9, 0, 0, 0, time.UTC)

	err := s.UpsertSnapshots(ctx, []portal.UsageSnapshot{
		{UsagePlanID: "plan-1", Date: "2020-01-01", Used: 5, Remaining: 95, CollectedAt: at},
		{UsagePlanID: "plan-1", Date: "2020-01-02", Used: 3, Remaining: 92, CollectedAt: at},
		{UsagePlanID: "plan-2", Date: "2020-01-01", Used: 7, Remaining: 43, CollectedAt: at},
	})
	if err != nil {
		t.Fatalf("UpsertSnapshots: %v", err)
	}

	totals, err := s.DailyTotals(ctx, "plan-1", "")
	if err != nil {
		t.Fatalf("DailyTotals: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("got %d totals, want 2", len(totals))
	}
	if totals[0].Date != "2020-01-01" || totals[0].Used != 5 {
		t.Errorf("totals[0] = %+v", totals[0])
	}
	if totals[1].Date != "2020-01-02" || totals[1].Used != 3 {
		t.Errorf("totals[1] = %+v", totals[1])
	}
}

func TestUpsertReplacesSameDay(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	first := []portal.UsageSnapshot{
		{UsagePlanID: "plan-1", Date: "2020-01-01", Used: 5, Remaining: 95, CollectedAt: time.Now()},
	}
	if err := s.UpsertSnapshots(ctx, first); err != nil {
		t.Fatalf("UpsertSnapshots: %v", err)
	}

	// A later poll of the same day overwrites, it does not double-count.
	second := []portal.UsageSnapshot{
		{UsagePlanID: "plan-1", Date: "2020-01-01", Used: 9, Remaining: 91, CollectedAt: time.Now()},
	}
	if err := s.UpsertSnapshots(ctx, second); err != nil {
		t.Fatalf("UpsertSnapshots: %v", err)
	}

	totals, err := s.DailyTotals(ctx, "plan-1", "")
	if err != nil {
		t.Fatalf("DailyTotals: %v", err)
	}
	if len(totals) != 1 {
		t.Fatalf("got %d totals, want 1", len(totals))
	}
	if totals[0].Used != 9 || totals[0].Remaining != 91 {
		t.Errorf("totals[0] = %+v, want used 9 remaining 91", totals[0])
	}
}

func TestDailyTotalsSinceFilter(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpsertSnapshots(ctx, []portal.UsageSnapshot{
		{UsagePlanID: "plan-1", Date: "2020-01-01", Used: 1, Remaining: 99, CollectedAt: time.Now()},
		{UsagePlanID: "plan-1", Date: "2020-02-01", Used: 2, Remaining: 98, CollectedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("UpsertSnapshots: %v", err)
	}

	totals, err := s.DailyTotals(ctx, "plan-1", "2020-02-01")
	if err != nil {
		t.Fatalf("DailyTotals: %v", err)
	}
	if len(totals) != 1 || totals[0].Date != "2020-02-01" {
		t.Errorf("totals = %+v, want only 2020-02-01", totals)
	}
}

func TestUpsertEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if err := s.UpsertSnapshots(context.Background(), nil); err != nil {
		t.Fatalf("UpsertSnapshots(nil): %v", err)
	}
}
