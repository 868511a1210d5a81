// Package testutil provides in-memory fakes for tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	portal "github.com/mstern/devportal/internal"
)

// Call records one request seen by the FakeGateway.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// FakeGateway is an in-memory portal.Gateway. Responses and errors are keyed
// by "METHOD path" (e.g. "GET /catalog"). Every request is recorded.
// Safe for concurrent use.
type FakeGateway struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []Call

	// OnRequest, when set, runs before each request resolves; tests use it
	// to block the owner of a single-flight slot.
	OnRequest func(method, path string)
}

// NewFakeGateway returns an empty FakeGateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		responses: make(map[string]string),
		errs:      make(map[string]error),
	}
}

// Respond sets the JSON body returned for "METHOD path".
func (g *FakeGateway) Respond(method, path, body string) {
	g.mu.Lock()
	g.responses[method+" "+path] = body
	delete(g.errs, method+" "+path)
	g.mu.Unlock()
}

// Fail makes "METHOD path" return err.
func (g *FakeGateway) Fail(method, path string, err error) {
	g.mu.Lock()
	g.errs[method+" "+path] = err
	g.mu.Unlock()
}

// Calls returns a copy of all recorded calls.
func (g *FakeGateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Call, len(g.calls))
	copy(out, g.calls)
	return out
}

// CallCount returns how many requests matched "METHOD path".
func (g *FakeGateway) CallCount(method, path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// Get implements portal.Gateway.
func (g *FakeGateway) Get(_ context.Context, path string, query url.Values, out any) error {
	return g.roundTrip("GET", path, query, nil, out)
}

// Put implements portal.Gateway.
func (g *FakeGateway) Put(_ context.Context, path string, query url.Values, body, out any) error {
	return g.roundTrip("PUT", path, query, body, out)
}

// Delete implements portal.Gateway.
func (g *FakeGateway) Delete(_ context.Context, path string, query url.Values) error {
	return g.roundTrip("DELETE", path, query, nil, nil)
}

func (g *FakeGateway) roundTrip(method, path string, query url.Values, body, out any) error {
	g.mu.Lock()
	g.calls = append(g.calls, Call{Method: method, Path: path, Query: query, Body: body})
	hook := g.OnRequest
	err, hasErr := g.errs[method+" "+path]
	resp, hasResp := g.responses[method+" "+path]
	g.mu.Unlock()

	if hook != nil {
		hook(method, path)
	}
	if hasErr {
		return err
	}
	if !hasResp {
		return fmt.Errorf("fake gateway: %s %s: %w", method, path, portal.ErrNotFound)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(resp), out)
}
