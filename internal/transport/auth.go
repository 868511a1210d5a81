package transport

import (
	"net/http"

	"golang.org/x/oauth2"
)

// DefaultAPIKeyHeader is the header used for static key auth when none is
// configured.
const DefaultAPIKeyHeader = "x-api-key"

// APIKeyTransport is an http.RoundTripper that injects a static API key
// header into every outbound request.
type APIKeyTransport struct {
	Key    string
	Header string // defaults to DefaultAPIKeyHeader
	Base   http.RoundTripper
}

// RoundTrip clones the request, sets the key header, and forwards to Base.
func (t *APIKeyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	header := t.Header
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	r2 := r.Clone(r.Context())
	r2.Header.Set(header, t.Key)
	return base(t.Base).RoundTrip(r2)
}

// NewOAuth2Client returns an *http.Client whose transport injects bearer
// tokens from src ahead of base.
func NewOAuth2Client(src oauth2.TokenSource, baseRT http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{Source: src, Base: base(baseRT)},
	}
}

func base(rt http.RoundTripper) http.RoundTripper {
	if rt != nil {
		return rt
	}
	return http.DefaultTransport
}
