package portal

import "sync"

// State is the shared application state for a portal session: the catalog,
// the caller's subscriptions and API key, and the currently selected API.
// One State is created at startup and passed by reference to everything that
// needs it; there is no package-level instance.
//
// State offers no transactional boundaries. Each accessor is individually
// consistent, but unrelated call sites can interleave between a fetch's
// completion and a subsequent read.
type State struct {
	mu            sync.RWMutex
	catalog       []API
	apiList       APIList
	api           *API
	subscriptions []Subscription
	apiKey        string
	apiKeySet     bool
}

// NewState returns an empty State.
func NewState() *State {
	return &State{}
}

// Catalog returns the current catalog. Callers must not mutate the result.
func (s *State) Catalog() []API {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// APIList returns the current partitioned API list.
func (s *State) APIList() APIList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiList
}

// SetCatalog replaces the catalog and its partitioned list in one step so
// readers never observe one without the other.
func (s *State) SetCatalog(catalog []API, list APIList) {
	s.mu.Lock()
	s.catalog = catalog
	s.apiList = list
	s.mu.Unlock()
}

// SelectedAPI returns the currently selected API, or nil.
func (s *State) SelectedAPI() *API {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.api
}

// SelectAPI records api as the current selection. nil clears the selection.
func (s *State) SelectAPI(api *API) {
	s.mu.Lock()
	s.api = api
	s.mu.Unlock()
}

// Subscriptions returns the current subscription list. Callers must not
// mutate the result.
func (s *State) Subscriptions() []Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscriptions
}

// SetSubscriptions replaces the subscription list.
func (s *State) SetSubscriptions(subs []Subscription) {
	s.mu.Lock()
	s.subscriptions = subs
	s.mu.Unlock()
}

// APIKey returns the cached API key value and whether one has been fetched.
// An account without a key yields ("", true) after a successful fetch.
func (s *State) APIKey() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey, s.apiKeySet
}

// SetAPIKey records the fetched API key value.
func (s *State) SetAPIKey(key string) {
	s.mu.Lock()
	s.apiKey = key
	s.apiKeySet = true
	s.mu.Unlock()
}

// Snapshot is a point-in-time JSON view of the state, served by the monitor.
type Snapshot struct {
	Catalog       []API          `json:"catalog"`
	APIList       APIList        `json:"api_list"`
	SelectedAPI   *API           `json:"selected_api,omitempty"`
	Subscriptions []Subscription `json:"subscriptions"`
	HasAPIKey     bool           `json:"has_api_key"`
}

// Snapshot returns a consistent copy of the state. The API key value itself
// is never included, only whether one is present.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Catalog:       s.catalog,
		APIList:       s.apiList,
		SelectedAPI:   s.api,
		Subscriptions: s.subscriptions,
		HasAPIKey:     s.apiKeySet && s.apiKey != "",
	}
}
