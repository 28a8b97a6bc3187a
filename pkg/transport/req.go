package transport

import (
	"context"
	"errors"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/req"
	"go.uber.org/zap"

	// Register tcp, ipc, inproc, ws and tls+tcp.
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// Req is an NNG REQ transport. Every call opens a new socket, dials the
// endpoint, sends one message, receives one message and closes the socket.
type Req struct {
	endpoint string
	logger   *zap.Logger
}

// NewReq returns a transport bound to endpoint (for example
// "tcp://127.0.0.1:10234"). The endpoint is fixed for the transport's life.
func NewReq(endpoint string, logger *zap.Logger) *Req {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Req{endpoint: endpoint, logger: logger}
}

// Endpoint returns the configured endpoint address.
func (r *Req) Endpoint() string { return r.endpoint }

// SendReceive implements Transport.
func (r *Req) SendReceive(ctx context.Context, payload []byte, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "send", Endpoint: r.endpoint, Err: err}
	}

	sock, err := req.NewSocket()
	if err != nil {
		return nil, &Error{Op: "socket", Endpoint: r.endpoint, Err: err}
	}
	defer func() {
		if err := sock.Close(); err != nil {
			r.logger.Debug("close socket", zap.String("endpoint", r.endpoint), zap.Error(err))
		}
	}()

	// The REQ protocol resends unanswered requests by default; this layer
	// sends exactly once.
	if err := sock.SetOption(mangos.OptionRetryTime, time.Duration(0)); err != nil {
		return nil, &Error{Op: "socket", Endpoint: r.endpoint, Err: err}
	}
	if err := sock.SetOption(mangos.OptionRecvDeadline, effectiveTimeout(ctx, timeout)); err != nil {
		return nil, &Error{Op: "socket", Endpoint: r.endpoint, Err: err}
	}

	if err := sock.Dial(r.endpoint); err != nil {
		return nil, &Error{Op: "dial", Endpoint: r.endpoint, Err: err}
	}
	if err := sock.Send(payload); err != nil {
		return nil, &Error{Op: "send", Endpoint: r.endpoint, Err: err}
	}

	reply, err := sock.Recv()
	if err != nil {
		return nil, &Error{
			Op:       "recv",
			Endpoint: r.endpoint,
			Timeout:  errors.Is(err, mangos.ErrRecvTimeout),
			Err:      err,
		}
	}
	return reply, nil
}
