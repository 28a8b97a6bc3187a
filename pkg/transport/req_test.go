package transport

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"
)

var endpointSeq atomic.Int64

func inprocEndpoint(name string) string {
	return fmt.Sprintf("inproc://transport-%s-%d", name, endpointSeq.Add(1))
}

// serveRep answers every request with handle(request) until the test ends.
func serveRep(t *testing.T, endpoint string, handle func([]byte) ([]byte, bool)) *atomic.Int64 {
	t.Helper()
	sock, err := rep.NewSocket()
	require.NoError(t, err)
	require.NoError(t, sock.Listen(endpoint))

	var received atomic.Int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msg, err := sock.Recv()
			if err != nil {
				return
			}
			received.Add(1)
			reply, ok := handle(msg)
			if !ok {
				continue
			}
			if err := sock.Send(reply); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() {
		sock.Close()
		<-done
	})
	return &received
}

func TestReq_RoundTrip(t *testing.T) {
	endpoint := inprocEndpoint("echo")
	serveRep(t, endpoint, func(msg []byte) ([]byte, bool) {
		return append([]byte("re:"), msg...), true
	})

	tr := NewReq(endpoint, nil)
	assert.Equal(t, endpoint, tr.Endpoint())

	reply, err := tr.SendReceive(context.Background(), []byte("ping"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "re:ping", string(reply))
}

func TestReq_FreshChannelPerCall(t *testing.T) {
	endpoint := inprocEndpoint("calls")
	received := serveRep(t, endpoint, func(msg []byte) ([]byte, bool) { return msg, true })

	tr := NewReq(endpoint, nil)
	for i := 0; i < 5; i++ {
		payload := []byte{byte(i)}
		reply, err := tr.SendReceive(context.Background(), payload, time.Second)
		require.NoError(t, err)
		assert.Equal(t, payload, reply)
	}
	assert.Equal(t, int64(5), received.Load())
}

func TestReq_Timeout(t *testing.T) {
	endpoint := inprocEndpoint("silent")
	received := serveRep(t, endpoint, func([]byte) ([]byte, bool) { return nil, false })

	tr := NewReq(endpoint, nil)
	start := time.Now()
	_, err := tr.SendReceive(context.Background(), []byte("x"), 50*time.Millisecond)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "recv", te.Op)
	assert.True(t, te.Timeout)
	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, mangos.ErrRecvTimeout)

	// No resend while waiting.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), received.Load())
}

func TestReq_ContextDeadlineBoundsWait(t *testing.T) {
	endpoint := inprocEndpoint("ctx")
	serveRep(t, endpoint, func([]byte) ([]byte, bool) { return nil, false })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewReq(endpoint, nil).SendReceive(ctx, []byte("x"), NoTimeout)
	assert.True(t, IsTimeout(err))
}

func TestReq_DialFailure(t *testing.T) {
	_, err := NewReq(inprocEndpoint("nobody"), nil).SendReceive(context.Background(), []byte("x"), time.Second)
	require.Error(t, err)

	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "dial", te.Op)
	assert.False(t, te.Timeout)
}

func TestReq_BadScheme(t *testing.T) {
	_, err := NewReq("bogus://nowhere", nil).SendReceive(context.Background(), []byte("x"), time.Second)
	require.Error(t, err)
	assert.False(t, IsTimeout(err))
}

func TestReq_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewReq(inprocEndpoint("cancel"), nil).SendReceive(ctx, []byte("x"), time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFunc(t *testing.T) {
	var tr Transport = Func(func(_ context.Context, payload []byte, timeout time.Duration) ([]byte, error) {
		assert.Equal(t, NoTimeout, timeout)
		return payload, nil
	})
	reply, err := tr.SendReceive(context.Background(), []byte("a"), NoTimeout)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), reply)
}
