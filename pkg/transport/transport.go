// Package transport carries one encoded request to the scoring engine and
// returns its single reply.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// NoTimeout makes SendReceive wait for the reply without a deadline.
const NoTimeout time.Duration = 0

// Transport sends exactly one request and waits for exactly one reply.
// Implementations must not retry and must not share channels across calls.
type Transport interface {
	// SendReceive applies timeout to the receive step only. A timeout of
	// NoTimeout waits indefinitely, bounded only by a ctx deadline.
	SendReceive(ctx context.Context, payload []byte, timeout time.Duration) ([]byte, error)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, payload []byte, timeout time.Duration) ([]byte, error)

// SendReceive calls f.
func (f Func) SendReceive(ctx context.Context, payload []byte, timeout time.Duration) ([]byte, error) {
	return f(ctx, payload, timeout)
}

// Error is a channel setup, send or receive failure.
type Error struct {
	// Op is the failing step: "socket", "dial", "send" or "recv".
	Op       string
	Endpoint string
	// Timeout is set when the receive deadline elapsed.
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	if e.Timeout {
		return fmt.Sprintf("transport %s %s: timeout: %v", e.Op, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a transport receive timeout.
func IsTimeout(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Timeout
}

// effectiveTimeout narrows timeout to the ctx deadline, if that is sooner.
func effectiveTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return timeout
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		// Still a bounded wait; mangos treats non-positive as "no deadline".
		remaining = time.Millisecond
	}
	if timeout == NoTimeout || remaining < timeout {
		return remaining
	}
	return timeout
}
