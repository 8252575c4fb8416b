package client

import (
	"context"

	"github.com/catalyst/userkey/internal/api"
	"github.com/catalyst/userkey/internal/core"
	"github.com/catalyst/userkey/internal/service"
)

// RequestLoginURL asks the server for a single-use login URL for the
// user described by the payload. The client's auth token must carry
// the userkey:generatekey capability.
func (c *Client) RequestLoginURL(ctx context.Context, payload core.UserPayload) (string, string, error) {
	var resp service.LoginURLResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.LoginURLRoute).
		build(), payload, &resp)
	return resp.LoginURL, correlation, err
}

// RequestParameters retrieves the payload shape the server expects
// under its current configuration.
func (c *Client) RequestParameters(ctx context.Context) (*service.ParameterSpec, string, error) {
	var resp service.ParameterSpec
	correlation, err := c.get(ctx, c.url().
		setPath(api.ParametersRoute).
		build(), &resp)
	return &resp, correlation, err
}
