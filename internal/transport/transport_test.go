package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	portal "github.com/mstern/devportal/internal"
	"github.com/mstern/devportal/internal/breaker"
	"github.com/mstern/devportal/internal/cache"
)

func TestGetDecodesEnvelope(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/apikey" {
			t.Errorf("path = %s, want /apikey", r.URL.Path)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Error("missing X-Request-Id header")
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Error("missing Accept header")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"value":"key-123"}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, Options{})
	var out struct {
		Data struct {
			Value string `json:"value"`
		} `json:"data"`
	}
	if err := c.Get(context.Background(), "/apikey", nil, &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out.Data.Value != "key-123" {
		t.Errorf("value = %q, want key-123", out.Data.Value)
	}
}

func TestGetQueryEncoding(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("start"); got != "2020-01-01" {
			t.Errorf("start = %q", got)
		}
		if got := r.URL.Query().Get("end"); got != "2020-01-31" {
			t.Errorf("end = %q", got)
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := New(srv.URL, Options{})
	q := url.Values{"start": {"2020-01-01"}, "end": {"2020-01-31"}}
	if err := c.Get(context.Background(), "/subscriptions/p1/usage", q, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestPutSendsEmptyObjectBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Error("missing Content-Type header")
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "{}" {
			t.Errorf("body = %q, want {}", body)
		}
		fmt.Fprint(w, `{"data":{}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, Options{})
	if err := c.Put(context.Background(), "/subscriptions/p1", nil, nil, nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestPutMarshalsBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"token":"tok-1"}` {
			t.Errorf("body = %q", body)
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := New(srv.URL, Options{})
	payload := map[string]string{"token": "tok-1"}
	if err := c.Put(context.Background(), "/marketplace-subscriptions/p1", nil, payload, nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		fmt.Fprint(w, `{"data":{}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, Options{})
	if err := c.Delete(context.Background(), "/subscriptions/p1", nil); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, portal.ErrUnauthorized},
		{http.StatusForbidden, portal.ErrForbidden},
		{http.StatusNotFound, portal.ErrNotFound},
		{http.StatusConflict, portal.ErrConflict},
		{http.StatusTooManyRequests, portal.ErrRateLimited},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			fmt.Fprint(w, `{"message":"nope"}`)
		}))

		c := New(srv.URL, Options{})
		err := c.Get(context.Background(), "/catalog", nil, nil)
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Errorf("status %d: err is not *APIError", tt.status)
		} else if apiErr.Message != "nope" {
			t.Errorf("status %d: message = %q, want nope", tt.status, apiErr.Message)
		}
		srv.Close()
	}
}

func TestErrorMessageFromNestedEnvelope(t *testing.T) {
	t.Parallel()

	e := newAPIError(500, []byte(`{"error":{"message":"upstream broke"}}`))
	if e.Message != "upstream broke" {
		t.Errorf("message = %q", e.Message)
	}
	if e.Unwrap() != nil {
		t.Errorf("500 should not map to a sentinel, got %v", e.Unwrap())
	}
}

func TestGetCacheHit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"data":{"apiGateway":[],"generic":[]}}`)
	}))
	defer srv.Close()

	mem, err := cache.NewMemory(16, time.Minute)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	c := New(srv.URL, Options{Cache: mem, CacheTTL: time.Minute})

	for range 3 {
		if err := c.Get(context.Background(), "/catalog", nil, nil); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want 1", got)
	}

	// A fresh context bypasses the read path and refreshes the entry.
	if err := c.Get(portal.WithFresh(context.Background()), "/catalog", nil, nil); err != nil {
		t.Fatalf("Get fresh: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server saw %d calls after fresh fetch, want 2", got)
	}
}

func TestAPIKeyTransport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "secret" {
			t.Errorf("x-api-key = %q, want secret", got)
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := New(srv.URL, Options{
		HTTPClient: &http.Client{Transport: &APIKeyTransport{Key: "secret"}},
	})
	if err := c.Get(context.Background(), "/catalog", nil, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"message":"bad gateway"}`, http.StatusBadGateway)
	}))
	defer srv.Close()

	b := breaker.New(breaker.Config{
		ErrorThreshold: 0.5,
		MinSamples:     2,
		Window:         time.Minute,
		OpenTimeout:    time.Minute,
	})
	c := New(srv.URL, Options{Breaker: b})

	for range 2 {
		if err := c.Get(context.Background(), "/catalog", nil, nil); err == nil {
			t.Fatal("expected error from failing gateway")
		}
	}

	// Breaker is open now: the next call short-circuits without a request.
	err := c.Get(context.Background(), "/catalog", nil, nil)
	if !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("err = %v, want breaker.ErrOpen", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server saw %d calls, want 2", got)
	}
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"no such plan"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	b := breaker.New(breaker.Config{
		ErrorThreshold: 0.5,
		MinSamples:     2,
		Window:         time.Minute,
		OpenTimeout:    time.Minute,
	})
	c := New(srv.URL, Options{Breaker: b})

	for range 5 {
		if err := c.Get(context.Background(), "/subscriptions/x", nil, nil); !errors.Is(err, portal.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	}
	if b.State() != breaker.StateClosed {
		t.Errorf("state = %v, want closed after 404s", b.State())
	}
}

func TestBreakerRecoversAfterTruncatedProbe(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1, 2:
			http.Error(w, `{"message":"bad gateway"}`, http.StatusBadGateway)
		case 3:
			// Truncated body: headers promise more bytes than arrive, so
			// the client fails while reading the response.
			w.Header().Set("Content-Length", "100")
			w.Write([]byte(`{"da`))
		default:
			fmt.Fprint(w, `{"data":[]}`)
		}
	}))
	defer srv.Close()

	b := breaker.New(breaker.Config{
		ErrorThreshold: 0.5,
		MinSamples:     2,
		Window:         time.Minute,
		OpenTimeout:    10 * time.Millisecond,
	})
	c := New(srv.URL, Options{Breaker: b})

	for range 2 {
		if err := c.Get(context.Background(), "/catalog", nil, nil); err == nil {
			t.Fatal("expected error from failing gateway")
		}
	}
	if b.State() != breaker.StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	// The half-open probe dies mid-body. Its outcome must still be
	// reported, or the breaker would reject everything from here on.
	time.Sleep(20 * time.Millisecond)
	if err := c.Get(context.Background(), "/catalog", nil, nil); err == nil {
		t.Fatal("expected read error from truncated response")
	}
	if b.State() != breaker.StateOpen {
		t.Fatalf("state = %v, want open after failed probe", b.State())
	}

	time.Sleep(20 * time.Millisecond)
	if err := c.Get(context.Background(), "/catalog", nil, nil); err != nil {
		t.Fatalf("Get after recovery: %v", err)
	}
	if b.State() != breaker.StateClosed {
		t.Fatalf("state = %v, want closed", b.State())
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("server saw %d calls, want 4", got)
	}
}
