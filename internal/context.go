package portal

import "context"

type ctxKey int

const freshKey ctxKey = 0

// WithFresh marks ctx so transports bypass response caching and fetch from
// the gateway, overwriting any cached entry. Cache-busting fetchers and the
// usage endpoint use this.
func WithFresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshKey, true)
}

// Fresh reports whether ctx demands a cache-bypassing fetch.
func Fresh(ctx context.Context) bool {
	v, _ := ctx.Value(freshKey).(bool)
	return v
}
