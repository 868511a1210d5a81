// Package portal defines domain types and interfaces for the developer-portal
// gateway client. This package has no project imports -- it is the dependency root.
package portal

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

// --- Catalog ---

// Positional selectors accepted by catalog queries in place of an API id.
// Both resolve to the first gateway-managed API when one exists.
const (
	FirstAPI = "FIRST"
	AnyAPI   = "ANY"
)

// API is a single API descriptor from the portal catalog. Descriptors are
// opaque beyond the fields extracted here; Raw preserves the full document
// for display and round-tripping.
type API struct {
	ID          string
	Name        string
	UsagePlanID string
	Raw         json.RawMessage
}

// UnmarshalJSON extracts the known fields and keeps the raw document.
// Generic catalog entries carry numeric ids; gjson stringifies them so id
// comparison is always string against string.
func (a *API) UnmarshalJSON(data []byte) error {
	a.Raw = append(a.Raw[:0:0], data...)
	r := gjson.ParseBytes(data)
	a.ID = r.Get("id").String()
	a.Name = r.Get("name").String()
	a.UsagePlanID = r.Get("usagePlanId").String()
	return nil
}

// MarshalJSON emits the original descriptor document when present.
func (a API) MarshalJSON() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	return json.Marshal(map[string]string{"id": a.ID, "name": a.Name})
}

// APIList partitions the catalog into gateway-managed APIs and generic
// (externally documented) APIs.
type APIList struct {
	APIGateway []API `json:"apiGateway"`
	Generic    []API `json:"generic"`
}

// --- Subscriptions ---

// Subscription represents the caller's membership in a usage plan.
// ID is the usage plan id.
type Subscription struct {
	ID   string
	Name string
	Raw  json.RawMessage
}

// UnmarshalJSON extracts id and name and keeps the raw document.
func (s *Subscription) UnmarshalJSON(data []byte) error {
	s.Raw = append(s.Raw[:0:0], data...)
	r := gjson.ParseBytes(data)
	s.ID = r.Get("id").String()
	s.Name = r.Get("name").String()
	return nil
}

// MarshalJSON emits the original subscription document when present.
func (s Subscription) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	return json.Marshal(map[string]string{"id": s.ID, "name": s.Name})
}

// --- Usage history ---

// UsageSnapshot is one observed (plan, day) usage data point, recorded by the
// poller for local history.
type UsageSnapshot struct {
	ID          string    `json:"id"`
	UsagePlanID string    `json:"usage_plan_id"`
	Date        string    `json:"date"` // YYYY-MM-DD
	Used        int64     `json:"used"`
	Remaining   int64     `json:"remaining"`
	CollectedAt time.Time `json:"collected_at"`
}

// DailyTotal is an aggregated view over snapshots for a single day.
type DailyTotal struct {
	Date      string `json:"date"`
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining"`
}

// --- Gateway transport ---

// Gateway is the authenticated transport capability against the portal's
// REST API. Implementations decode the response body into out when out is
// non-nil. Paths are gateway-relative (e.g. "/catalog").
type Gateway interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Put(ctx context.Context, path string, query url.Values, body, out any) error
	Delete(ctx context.Context, path string, query url.Values) error
}
