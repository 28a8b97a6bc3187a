// Package client is the Go SDK for the graph-scoring engine.
//
// Every method is one blocking request/reply round trip: the command is
// validated and encoded, sent over a fresh channel, and the reply is decoded
// as the expected type or, failing that, as the engine's error string.
// Nothing is retried and nothing is cached; a Client holds only immutable
// configuration and is safe for concurrent use.
package client

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rmax-ai/scorelink/pkg/protocol"
	"github.com/rmax-ai/scorelink/pkg/transport"
)

const tracerName = "github.com/rmax-ai/scorelink/pkg/client"

// Client is the scorelink SDK client.
type Client struct {
	cfg       Config
	transport transport.Transport
	logger    *zap.Logger
	tracer    trace.Tracer
}

// Option customizes a Client.
type Option func(*Client)

// WithTransport replaces the NNG transport, e.g. with a test double.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTracer sets the tracer. Default: the global provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// NewClient creates a client for cfg. The configuration is copied.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	if c.transport == nil {
		c.transport = transport.NewReq(cfg.ServiceURL, c.logger)
	}
	return c, nil
}

// Config returns the client's configuration.
func (c *Client) Config() Config { return c.cfg }

// call performs one round trip and decodes the reply as T.
func call[T any](ctx context.Context, c *Client, cmd protocol.Command, timeout time.Duration) (T, error) {
	var zero T
	callID := uuid.NewString()
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "scorelink."+cmd.Op.String(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("scorelink.opcode", cmd.Op.String()),
			attribute.String("scorelink.context", cmd.Context),
			attribute.String("scorelink.call_id", callID),
		))
	defer span.End()

	result, err := func() (T, error) {
		payload, err := c.cfg.Dialect.Encode(cmd)
		if err != nil {
			return zero, err
		}
		reply, err := c.transport.SendReceive(ctx, payload, timeout)
		if err != nil {
			return zero, err
		}
		return protocol.DecodeReply[T](cmd.Op, reply)
	}()

	c.observe(span, cmd, callID, start, err)
	return result, err
}

// reject accounts for a command that failed validation before encoding.
func (c *Client) reject(ctx context.Context, op protocol.Opcode, err error) error {
	_, span := c.tracer.Start(ctx, "scorelink."+op.String(), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	c.observe(span, protocol.Command{Op: op}, uuid.NewString(), time.Now(), err)
	return err
}

func (c *Client) observe(span trace.Span, cmd protocol.Command, callID string, start time.Time, err error) {
	elapsed := time.Since(start)
	outcome := classify(err)

	ScorelinkRequestsTotal.WithLabelValues(cmd.Op.String(), outcome).Inc()
	ScorelinkRequestDuration.WithLabelValues(cmd.Op.String()).Observe(elapsed.Seconds())

	fields := []zap.Field{
		zap.String("call_id", callID),
		zap.Stringer("opcode", cmd.Op),
		zap.String("context", cmd.Context),
		zap.Duration("elapsed", elapsed),
		zap.String("outcome", outcome),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		c.logger.Warn("engine call failed", append(fields, zap.Error(err))...)
		return
	}
	span.SetStatus(codes.Ok, "")
	c.logger.Debug("engine call", fields...)
}

func classify(err error) string {
	var (
		encErr *protocol.EncodeError
		decErr *protocol.DecodeError
		svcErr *protocol.ServiceError
		trErr  *transport.Error
	)
	switch {
	case err == nil:
		return outcomeOK
	case errors.As(err, &encErr):
		return outcomeEncode
	case errors.As(err, &svcErr):
		return outcomeService
	case errors.As(err, &decErr):
		return outcomeDecode
	case errors.As(err, &trErr):
		if trErr.Timeout {
			return outcomeTimeout
		}
		return outcomeTransport
	}
	return outcomeTransport
}

// --- Information ---

// ServiceURL returns the configured engine endpoint.
func (c *Client) ServiceURL() string { return c.cfg.ServiceURL }

// ConnectorVersion returns the version of this SDK.
func (c *Client) ConnectorVersion() string { return Version }

// Ping asks the engine for its version string.
func (c *Client) Ping(ctx context.Context) (string, error) {
	return call[string](ctx, c, protocol.Version(), c.cfg.RecvTimeout)
}

// --- Reads ---

// NodeScore returns the score src assigns dst in target.
func (c *Client) NodeScore(ctx context.Context, src, dst string, target protocol.ReadTarget) ([]ScoreRecord, error) {
	return call[[]ScoreRecord](ctx, c, protocol.NodeScore(src, dst, target), c.cfg.RecvTimeout)
}

// NodeScoreLinearSum returns the pre-summed score with no per-context
// decomposition.
func (c *Client) NodeScoreLinearSum(ctx context.Context, src, dst string) ([]ScoreRecord, error) {
	return call[[]ScoreRecord](ctx, c, protocol.NodeScoreLinearSum(src, dst), c.cfg.RecvTimeout)
}

// Scores returns src's ranked score list filtered by opts. Contradictory
// bounds fail with a *protocol.EncodeError before anything is sent.
func (c *Client) Scores(ctx context.Context, src string, opts ScoresOptions) ([]ScoreRecord, error) {
	cmd, err := protocol.Scores(src, opts.Context, opts.filter())
	if err != nil {
		return nil, c.reject(ctx, protocol.OpScores, err)
	}
	return call[[]ScoreRecord](ctx, c, cmd, c.cfg.RecvTimeout)
}

// ScoresLinearSum returns src's pre-summed score list.
func (c *Client) ScoresLinearSum(ctx context.Context, src string) ([]ScoreRecord, error) {
	return call[[]ScoreRecord](ctx, c, protocol.ScoresLinearSum(src), c.cfg.RecvTimeout)
}

// Graph expands the neighborhood between src and focus.
func (c *Client) Graph(ctx context.Context, src, focus string, opts GraphOptions) ([]ScoreRecord, error) {
	cmd := protocol.Graph(src, focus, opts.Context, opts.PositiveOnly, opts.page())
	return call[[]ScoreRecord](ctx, c, cmd, c.cfg.RecvTimeout)
}

// GravityNodes returns the nodes of the src/focus neighborhood with weights.
func (c *Client) GravityNodes(ctx context.Context, src, focus string, opts GraphOptions) ([]NodeWeight, error) {
	cmd := protocol.GravityNodes(src, focus, opts.Context, opts.PositiveOnly, opts.page())
	return call[[]NodeWeight](ctx, c, cmd, c.cfg.RecvTimeout)
}

// NodeList returns every node id in target.
func (c *Client) NodeList(ctx context.Context, target protocol.ReadTarget) ([]string, error) {
	return call[[]string](ctx, c, protocol.NodeList(target), c.cfg.RecvTimeout)
}

// EdgeList returns every edge in target. For the aggregate target each
// (src, dst) appears once with the summed weight.
func (c *Client) EdgeList(ctx context.Context, target protocol.ReadTarget) ([]EdgeRecord, error) {
	return call[[]EdgeRecord](ctx, c, protocol.EdgeList(target), c.cfg.RecvTimeout)
}

// Connected returns the outgoing connections of src.
func (c *Client) Connected(ctx context.Context, src string, target protocol.ReadTarget) ([]Connection, error) {
	return call[[]Connection](ctx, c, protocol.Connected(src, target), c.cfg.RecvTimeout)
}

// MutualScores returns, for each peer of src, the scores exchanged both ways.
func (c *Client) MutualScores(ctx context.Context, src string, target protocol.ReadTarget) ([]MutualScore, error) {
	return call[[]MutualScore](ctx, c, protocol.MutualScores(src, target), c.cfg.RecvTimeout)
}

// ForBeaconsGlobal returns the engine's global score table: every
// (ego, target, score) of the aggregate graph.
func (c *Client) ForBeaconsGlobal(ctx context.Context) ([]ScoreRecord, error) {
	return call[[]ScoreRecord](ctx, c, protocol.ForBeaconsGlobal(), c.cfg.RecvTimeout)
}

// --- Mutations ---

// PutEdge writes one edge into target and returns the stored edge.
func (c *Client) PutEdge(ctx context.Context, src, dst string, weight float64, target protocol.WriteTarget) (EdgeRecord, error) {
	rows, err := call[[]EdgeRecord](ctx, c, protocol.PutEdge(src, dst, weight, target), c.cfg.RecvTimeout)
	if err != nil {
		return EdgeRecord{}, err
	}
	if len(rows) == 0 {
		return EdgeRecord{Src: src, Dst: dst, Weight: weight}, nil
	}
	return rows[0], nil
}

// DeleteEdge removes the (src, dst) edge from target only. Other contexts
// keep their contribution to the aggregate.
func (c *Client) DeleteEdge(ctx context.Context, src, dst string, target protocol.WriteTarget) error {
	_, err := call[protocol.Ack](ctx, c, protocol.DeleteEdge(src, dst, target), c.cfg.RecvTimeout)
	return err
}

// DeleteNode removes src and its edges from target.
func (c *Client) DeleteNode(ctx context.Context, src string, target protocol.WriteTarget) error {
	_, err := call[protocol.Ack](ctx, c, protocol.DeleteNode(src, target), c.cfg.RecvTimeout)
	return err
}
