package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.nanomsg.org/mangos/v3"

	"github.com/rmax-ai/scorelink/pkg/protocol"
	"github.com/rmax-ai/scorelink/pkg/transport"
)

type sent struct {
	payload []byte
	timeout time.Duration
}

// recorder is a Transport stub that records every request and answers with
// the next queued reply.
type recorder struct {
	mu      sync.Mutex
	calls   []sent
	replies [][]byte
	err     error
}

func (r *recorder) SendReceive(_ context.Context, payload []byte, timeout time.Duration) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, sent{payload: payload, timeout: timeout})
	if r.err != nil {
		return nil, r.err
	}
	if len(r.replies) == 0 {
		return msgpack.Marshal(nil)
	}
	reply := r.replies[0]
	r.replies = r.replies[1:]
	return reply, nil
}

func (r *recorder) reply(t *testing.T, v any) *recorder {
	t.Helper()
	b, err := msgpack.Marshal(v)
	require.NoError(t, err)
	r.replies = append(r.replies, b)
	return r
}

func newTestClient(t *testing.T, tr transport.Transport) *Client {
	t.Helper()
	c, err := NewClient(DefaultConfig(), WithTransport(tr))
	require.NoError(t, err)
	return c
}

func lastEnvelope(t *testing.T, r *recorder) protocol.Envelope {
	t.Helper()
	require.NotEmpty(t, r.calls)
	env, err := protocol.DecodeEnvelope(r.calls[len(r.calls)-1].payload)
	require.NoError(t, err)
	return env
}

func TestNewClient_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceURL = ""
	_, err := NewClient(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.RecvTimeout = -time.Second
	_, err = NewClient(cfg)
	assert.Error(t, err)
}

func TestClient_Information(t *testing.T) {
	r := (&recorder{}).reply(t, "engine 1.2.3")
	c := newTestClient(t, r)

	assert.Equal(t, DefaultServiceURL, c.ServiceURL())
	assert.Equal(t, Version, c.ConnectorVersion())

	got, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "engine 1.2.3", got)
	assert.Equal(t, protocol.OpVersion, lastEnvelope(t, r).Opcode)
}

func TestClient_ContextIsEnvelopeSibling(t *testing.T) {
	r := (&recorder{}).reply(t, []protocol.ScoreRecord{{Src: "U1", Dst: "U2", Score: 1}})
	c := newTestClient(t, r)

	_, err := c.NodeScore(context.Background(), "U1", "U2", protocol.ReadFrom("X"))
	require.NoError(t, err)

	env := lastEnvelope(t, r)
	assert.Equal(t, protocol.OpNodeScore, env.Opcode)
	assert.Equal(t, "X", env.Context)
	args, err := protocol.DecodeArgs[protocol.PairArgs](env.Args)
	require.NoError(t, err)
	assert.Equal(t, "U1", args.Src)
	assert.Equal(t, "U2", args.Dst)
}

func TestClient_ScoresBoundConflictSendsNothing(t *testing.T) {
	tests := []struct {
		name string
		opts ScoresOptions
		want error
	}{
		{"upper", ScoresOptions{Lt: protocol.Float(1), Lte: protocol.Float(2)}, protocol.ErrBothUpperBounds},
		{"lower", ScoresOptions{Gt: protocol.Float(0), Gte: protocol.Float(0)}, protocol.ErrBothLowerBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			c := newTestClient(t, r)
			before := testutil.ToFloat64(ScorelinkRequestsTotal.WithLabelValues("scores", outcomeEncode))

			_, err := c.Scores(context.Background(), "U1", tt.opts)

			var encErr *protocol.EncodeError
			require.True(t, errors.As(err, &encErr))
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, r.calls)
			after := testutil.ToFloat64(ScorelinkRequestsTotal.WithLabelValues("scores", outcomeEncode))
			assert.Equal(t, before+1, after)
		})
	}
}

func TestClient_ServiceErrorString(t *testing.T) {
	r := (&recorder{}).reply(t, "node not found")
	c := newTestClient(t, r)

	_, err := c.NodeScore(context.Background(), "U1", "nobody", protocol.Aggregate())

	var svc *protocol.ServiceError
	require.True(t, errors.As(err, &svc))
	assert.Equal(t, "node not found", svc.Message)
}

func TestClient_UndecodableReply(t *testing.T) {
	r := (&recorder{}).reply(t, map[string]int{"weird": 1})
	c := newTestClient(t, r)

	_, err := c.NodeList(context.Background(), protocol.Aggregate())

	var decErr *protocol.DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, protocol.OpNodeList, decErr.Op)
}

func TestClient_TransportErrorPassesThrough(t *testing.T) {
	cause := &transport.Error{Op: "recv", Endpoint: DefaultServiceURL, Timeout: true, Err: mangos.ErrRecvTimeout}
	r := &recorder{err: cause}
	c := newTestClient(t, r)

	_, err := c.EdgeList(context.Background(), protocol.Aggregate())
	assert.True(t, transport.IsTimeout(err))
	assert.ErrorIs(t, err, mangos.ErrRecvTimeout)
}

func TestClient_TimeoutPerCommand(t *testing.T) {
	r := &recorder{}
	cfg := DefaultConfig()
	cfg.RecvTimeout = 1500 * time.Millisecond
	c, err := NewClient(cfg, WithTransport(r))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Reset(ctx))
	require.NoError(t, c.RecomputeZero(ctx))
	require.NoError(t, c.Synchronize(ctx, 0))
	require.NoError(t, c.Synchronize(ctx, 3*time.Second))
	require.NoError(t, c.SetLogLevel(ctx, 2))
	require.NoError(t, c.DeleteNode(ctx, "U1", protocol.DefaultBucket()))

	require.Len(t, r.calls, 6)
	assert.Equal(t, transport.NoTimeout, r.calls[0].timeout)
	assert.Equal(t, transport.NoTimeout, r.calls[1].timeout)
	assert.Equal(t, DefaultSyncTimeout, r.calls[2].timeout)
	assert.Equal(t, 3*time.Second, r.calls[3].timeout)
	assert.Equal(t, cfg.RecvTimeout, r.calls[4].timeout)
	assert.Equal(t, cfg.RecvTimeout, r.calls[5].timeout)
}

func TestClient_SetLogLevelWire(t *testing.T) {
	r := &recorder{}
	c := newTestClient(t, r)
	require.NoError(t, c.SetLogLevel(context.Background(), 4))

	env := lastEnvelope(t, r)
	assert.Equal(t, protocol.OpLogLevel, env.Opcode)
	level, err := protocol.DecodeArgs[uint32](env.Args)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), level)
}

func TestClient_PutEdgeReturnsFirstOrEcho(t *testing.T) {
	r := (&recorder{}).
		reply(t, []protocol.EdgeRecord{{Src: "U1", Dst: "U2", Weight: 0.5}}).
		reply(t, []protocol.EdgeRecord{})
	c := newTestClient(t, r)
	ctx := context.Background()

	got, err := c.PutEdge(ctx, "U1", "U2", 1.5, protocol.WriteTo("X"))
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.Weight)
	assert.Equal(t, "X", lastEnvelope(t, r).Context)

	got, err = c.PutEdge(ctx, "U1", "U3", 2, protocol.DefaultBucket())
	require.NoError(t, err)
	assert.Equal(t, EdgeRecord{Src: "U1", Dst: "U3", Weight: 2}, got)
	assert.Equal(t, "", lastEnvelope(t, r).Context)
}

func TestClient_AckRejectsString(t *testing.T) {
	r := (&recorder{}).reply(t, "context is read-only")
	c := newTestClient(t, r)

	err := c.DeleteEdge(context.Background(), "U1", "U2", protocol.WriteTo("X"))
	var svc *protocol.ServiceError
	require.True(t, errors.As(err, &svc))
	assert.Equal(t, "context is read-only", svc.Message)
}

func TestClient_ScoresEncodesDefaults(t *testing.T) {
	r := (&recorder{}).reply(t, []protocol.ScoreRecord{})
	c := newTestClient(t, r)

	_, err := c.Scores(context.Background(), "U1", ScoresOptions{Prefix: "U", Lte: protocol.Float(0.9)})
	require.NoError(t, err)

	args, err := protocol.DecodeArgs[protocol.ScoresArgs](lastEnvelope(t, r).Args)
	require.NoError(t, err)
	assert.Equal(t, "U", args.Prefix)
	assert.Equal(t, 0.9, args.Upper)
	assert.True(t, args.UpperIncl)
	assert.Equal(t, protocol.DefaultLower, args.Lower)
	assert.False(t, args.LowerIncl)
	assert.Equal(t, uint32(0), args.Index)
	assert.Equal(t, uint32(protocol.DefaultCount), args.Count)
}

func TestClient_LegacyDialect(t *testing.T) {
	r := (&recorder{}).reply(t, "ver 1")
	cfg := DefaultConfig()
	cfg.Dialect = protocol.DialectLegacy
	c, err := NewClient(cfg, WithTransport(r))
	require.NoError(t, err)

	got, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ver 1", got)

	var raw string
	require.NoError(t, msgpack.Unmarshal(r.calls[0].payload, &raw))
	assert.Equal(t, "ver", raw)

	_, err = c.MutualScores(context.Background(), "U1", protocol.Aggregate())
	var encErr *protocol.EncodeError
	assert.True(t, errors.As(err, &encErr))
	assert.Len(t, r.calls, 1)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, outcomeOK},
		{&protocol.EncodeError{Op: protocol.OpScores, Err: protocol.ErrBothUpperBounds}, outcomeEncode},
		{&protocol.ServiceError{Op: protocol.OpNodeScore, Message: "x"}, outcomeService},
		{&protocol.DecodeError{Op: protocol.OpNodeScore}, outcomeDecode},
		{&transport.Error{Op: "recv", Timeout: true}, outcomeTimeout},
		{&transport.Error{Op: "dial"}, outcomeTransport},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.err))
	}
}
