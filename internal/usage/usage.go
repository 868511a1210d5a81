// Package usage models per-key usage payloads returned by the gateway and
// aggregates them into date-bucketed series.
package usage

import (
	"fmt"
	"slices"
	"time"

	"github.com/tidwall/gjson"

	portal "github.com/mstern/devportal/internal"
)

const dateLayout = "2006-01-02"

// Metric selects which half of a [used, remaining] pair to aggregate.
type Metric string

const (
	MetricUsed      Metric = "used"
	MetricRemaining Metric = "remaining"
)

// Point is one day's [used, remaining] pair for a single API key.
type Point struct {
	Used      int64
	Remaining int64
}

// Payload is the raw usage response for a usage plan: per-key daily series
// beginning at StartDate. Items is keyed by API key id.
type Payload struct {
	Items     map[string][]Point
	StartDate string // YYYY-MM-DD
}

// UnmarshalJSON accepts both shapes the gateway emits for a key's usage: a
// bare [used, remaining] pair or a list of such pairs, one per day. A bare
// pair normalizes to a one-day list.
func (p *Payload) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	p.StartDate = r.Get("startDate").String()
	p.Items = make(map[string][]Point)

	var err error
	r.Get("items").ForEach(func(k, v gjson.Result) bool {
		pts, perr := parsePoints(v)
		if perr != nil {
			err = fmt.Errorf("usage: key %q: %w", k.String(), perr)
			return false
		}
		p.Items[k.String()] = pts
		return true
	})
	return err
}

func parsePoints(v gjson.Result) ([]Point, error) {
	if !v.IsArray() {
		return nil, fmt.Errorf("unexpected shape %s", v.Type)
	}
	arr := v.Array()
	if len(arr) == 0 {
		return nil, nil
	}
	if !arr[0].IsArray() {
		return []Point{toPoint(arr)}, nil
	}
	pts := make([]Point, len(arr))
	for i, pair := range arr {
		pts[i] = toPoint(pair.Array())
	}
	return pts, nil
}

func toPoint(pair []gjson.Result) Point {
	var pt Point
	if len(pair) > 0 {
		pt.Used = pair[0].Int()
	}
	if len(pair) > 1 {
		pt.Remaining = pair[1].Int()
	}
	return pt
}

// DatePoint is one aggregated day in a usage series.
type DatePoint struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Value int64  `json:"value"`
}

// Series is an ascending-by-date sequence of aggregated values.
type Series []DatePoint

// MapByDate expands each key's points into consecutive calendar days
// starting at the payload's start date (local midnight), sums values landing
// on the same day across keys, and returns the days ascending. Days are
// merged by their local-midnight epoch.
func MapByDate(p *Payload, metric Metric) (Series, error) {
	start, err := time.ParseInLocation(dateLayout, p.StartDate, time.Local)
	if err != nil {
		return nil, fmt.Errorf("usage: parse start date: %w", err)
	}

	totals := make(map[int64]int64)
	for _, pts := range p.Items {
		for i, pt := range pts {
			v := pt.Used
			if metric == MetricRemaining {
				v = pt.Remaining
			}
			totals[start.AddDate(0, 0, i).Unix()] += v
		}
	}

	epochs := make([]int64, 0, len(totals))
	for e := range totals {
		epochs = append(epochs, e)
	}
	slices.Sort(epochs)

	series := make(Series, len(epochs))
	for i, e := range epochs {
		series[i] = DatePoint{
			Date:  time.Unix(e, 0).Format(dateLayout),
			Value: totals[e],
		}
	}
	return series, nil
}

// Snapshots flattens a payload into per-day usage snapshots for the local
// history store, combining the used and remaining aggregates day by day.
func Snapshots(p *Payload, usagePlanID string, collectedAt time.Time) ([]portal.UsageSnapshot, error) {
	used, err := MapByDate(p, MetricUsed)
	if err != nil {
		return nil, err
	}
	remaining, err := MapByDate(p, MetricRemaining)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]*portal.UsageSnapshot, len(used))
	order := make([]string, 0, len(used))
	for _, dp := range used {
		byDate[dp.Date] = &portal.UsageSnapshot{
			UsagePlanID: usagePlanID,
			Date:        dp.Date,
			Used:        dp.Value,
			CollectedAt: collectedAt,
		}
		order = append(order, dp.Date)
	}
	for _, dp := range remaining {
		s, ok := byDate[dp.Date]
		if !ok {
			// Both series come from the same expansion; a date present in
			// one is present in the other.
			continue
		}
		s.Remaining = dp.Value
	}

	out := make([]portal.UsageSnapshot, len(order))
	for i, d := range order {
		out[i] = *byDate[d]
	}
	return out, nil
}

// MonthToDateRange returns the first day of now's month and now's day, both
// formatted YYYY-MM-DD in now's location.
func MonthToDateRange(now time.Time) (start, end string) {
	y, m, _ := now.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	return first.Format(dateLayout), now.Format(dateLayout)
}
