package client

import (
	"context"

	portal "github.com/mstern/devportal/internal"
)

// GetAPI resolves a single API descriptor from the catalog, loading the
// catalog first if needed (cache-preferring). apiID may be an exact id or
// one of the positional selectors portal.FirstAPI / portal.AnyAPI, which
// pick the first gateway-managed API. Gateway APIs are searched first, then
// the generic list. When selectIt is true the result -- found or nil -- is
// recorded as the current selection.
//
// A missing API is (nil, nil), not an error.
func (c *Client) GetAPI(ctx context.Context, apiID string, selectIt bool) (*portal.API, error) {
	if _, err := c.UpdateCatalog(ctx, false); err != nil {
		return nil, err
	}

	list := c.state.APIList()
	var found *portal.API

	if len(list.APIGateway) > 0 {
		if apiID == portal.FirstAPI || apiID == portal.AnyAPI {
			found = &list.APIGateway[0]
		} else {
			for i := range list.APIGateway {
				if list.APIGateway[i].ID == apiID {
					found = &list.APIGateway[i]
					break
				}
			}
		}
	}

	// Generic entries carry numeric ids; API.UnmarshalJSON already
	// stringified them, so this stays a plain string comparison.
	if found == nil {
		for i := range list.Generic {
			if list.Generic[i].ID == apiID {
				found = &list.Generic[i]
				break
			}
		}
	}

	if selectIt {
		c.state.SelectAPI(found)
	}
	return found, nil
}
