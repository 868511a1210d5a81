package client

import (
	"context"
	"fmt"
	"net/url"

	portal "github.com/mstern/devportal/internal"
)

// SubscribedUsagePlan returns the current subscription whose id equals
// usagePlanID, or nil. It reads state only and never touches the network;
// call UpdateSubscriptions first if the list may be stale.
func (c *Client) SubscribedUsagePlan(usagePlanID string) *portal.Subscription {
	subs := c.state.Subscriptions()
	for i := range subs {
		if subs[i].ID == usagePlanID {
			return &subs[i]
		}
	}
	return nil
}

// Subscribe enrolls the caller in a usage plan, then returns a fresh
// subscription list. A failed write returns the error with state untouched;
// no re-fetch is attempted.
func (c *Client) Subscribe(ctx context.Context, usagePlanID string) ([]portal.Subscription, error) {
	if err := c.gw.Put(ctx, "/subscriptions/"+url.PathEscape(usagePlanID), nil, nil, nil); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", usagePlanID, err)
	}
	return c.UpdateSubscriptions(ctx, true)
}

// Unsubscribe removes the caller from a usage plan, then returns a fresh
// subscription list. A failed write returns the error with state untouched;
// no re-fetch is attempted.
func (c *Client) Unsubscribe(ctx context.Context, usagePlanID string) ([]portal.Subscription, error) {
	if err := c.gw.Delete(ctx, "/subscriptions/"+url.PathEscape(usagePlanID), nil); err != nil {
		return nil, fmt.Errorf("unsubscribe %s: %w", usagePlanID, err)
	}
	return c.UpdateSubscriptions(ctx, true)
}
