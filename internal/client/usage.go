package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	portal "github.com/mstern/devportal/internal"
	"github.com/mstern/devportal/internal/usage"
)

// FetchUsage retrieves month-to-date usage for a usage plan: start is the
// first day of the current month, end is today, both local time. The
// response is returned raw -- never cached, never written to state.
func (c *Client) FetchUsage(ctx context.Context, usagePlanID string) (*usage.Payload, error) {
	start, end := usage.MonthToDateRange(time.Now())
	q := url.Values{"start": {start}, "end": {end}}

	var p usage.Payload
	err := c.gw.Get(portal.WithFresh(ctx), "/subscriptions/"+url.PathEscape(usagePlanID)+"/usage", q, &p)
	if err != nil {
		return nil, fmt.Errorf("fetch usage %s: %w", usagePlanID, err)
	}
	return &p, nil
}

// ConfirmMarketplaceSubscription completes a marketplace redirect by posting
// the marketplace token to the gateway. An empty usage plan id is a no-op:
// nothing is sent and nil is returned.
func (c *Client) ConfirmMarketplaceSubscription(ctx context.Context, usagePlanID, token string) error {
	if usagePlanID == "" {
		return nil
	}
	body := map[string]string{"token": token}
	if err := c.gw.Put(ctx, "/marketplace-subscriptions/"+url.PathEscape(usagePlanID), nil, body, nil); err != nil {
		return fmt.Errorf("confirm marketplace subscription %s: %w", usagePlanID, err)
	}
	return nil
}
