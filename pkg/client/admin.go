package client

import (
	"context"

	"github.com/catalyst/userkey/internal/api"
	"github.com/catalyst/userkey/internal/core"
)

// ListActiveKeys retrieves the currently live key records. Key values
// are redacted server-side.
func (c *Client) ListActiveKeys(ctx context.Context) ([]core.KeyRecord, string, error) {
	var resp []core.KeyRecord
	correlation, err := c.get(ctx, c.url().
		setPath(api.ListKeysRoute).
		build(), &resp)
	return resp, correlation, err
}

// RevokeKeys deletes every key for the given subject.
func (c *Client) RevokeKeys(ctx context.Context, subjectID string) (string, error) {
	return c.delete(ctx, c.url().
		setPath(api.RevokeKeysRoute).
		setPathParam("subject", subjectID).
		build(), nil)
}

// PurgeExpiredKeys removes expired key records and reports how many
// were deleted.
func (c *Client) PurgeExpiredKeys(ctx context.Context) (int64, string, error) {
	var resp map[string]int64
	correlation, err := c.post(ctx, c.url().
		setPath(api.PurgeKeysRoute).
		build(), nil, &resp)
	return resp["deleted"], correlation, err
}

type ListAuditsOpts struct {
	Limit uint

	CorrelationID string
	SubjectID     string
	Fingerprint   string
}

// ListAudits retrieves up to limit of the latest audit entries from the server.
func (c *Client) ListAudits(ctx context.Context, opts ListAuditsOpts) ([]core.AuditEntry, string, error) {
	ub := c.url().setPath(api.ListAuditsRoute)
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	if opts.CorrelationID != "" {
		ub = ub.addQueryParam("correlation_id", opts.CorrelationID)
	}
	if opts.SubjectID != "" {
		ub = ub.addQueryParam("subject_id", opts.SubjectID)
	}
	if opts.Fingerprint != "" {
		ub = ub.addQueryParam("fingerprint", opts.Fingerprint)
	}
	var resp []core.AuditEntry
	correlation, err := c.get(ctx, ub.build(), &resp)
	return resp, correlation, err
}
