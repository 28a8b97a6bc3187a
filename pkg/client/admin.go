package client

import (
	"context"
	"time"

	"github.com/rmax-ai/scorelink/pkg/protocol"
	"github.com/rmax-ai/scorelink/pkg/transport"
)

// Reset clears all engine state in every context. It waits for the
// acknowledgment without a receive timeout.
func (c *Client) Reset(ctx context.Context) error {
	_, err := call[protocol.Ack](ctx, c, protocol.Reset(), transport.NoTimeout)
	return err
}

// RecomputeZero triggers recomputation anchored at the zero node. It waits
// without a receive timeout.
func (c *Client) RecomputeZero(ctx context.Context) error {
	_, err := call[protocol.Ack](ctx, c, protocol.RecomputeZero(), transport.NoTimeout)
	return err
}

// Synchronize blocks until the engine has applied every queued mutation.
// Aggregate reads are only guaranteed consistent after it returns.
// A non-positive timeout uses DefaultSyncTimeout.
func (c *Client) Synchronize(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}
	_, err := call[protocol.Ack](ctx, c, protocol.Synchronize(), timeout)
	return err
}

// SetLogLevel changes the engine's log verbosity.
func (c *Client) SetLogLevel(ctx context.Context, level uint32) error {
	_, err := call[protocol.Ack](ctx, c, protocol.SetLogLevel(level), c.cfg.RecvTimeout)
	return err
}
