package completion

import (
	"context"
	"encoding/json"
	"sync/atomic"
)

// CountingClient wraps a Client and counts provider round trips, failed ones
// included. Safe for concurrent use; callers read per-job deltas off the
// running total.
type CountingClient struct {
	inner Client
	calls atomic.Int64
}

func NewCountingClient(inner Client) *CountingClient {
	return &CountingClient{inner: inner}
}

func (c *CountingClient) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	c.calls.Add(1)
	return c.inner.Complete(ctx, req)
}

func (c *CountingClient) Model() string { return c.inner.Model() }

// Calls returns the number of Complete invocations so far.
func (c *CountingClient) Calls() int64 { return c.calls.Load() }
