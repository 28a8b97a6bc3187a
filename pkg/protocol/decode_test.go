package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := msgpack.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestDecodeReply_Typed(t *testing.T) {
	payload := mustMarshal(t, []ScoreRecord{{Src: "U1", Dst: "U2", Score: 0.25}})

	got, err := DecodeReply[[]ScoreRecord](OpNodeScore, payload)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "U1", got[0].Src)
	assert.Equal(t, "U2", got[0].Dst)
	assert.Equal(t, 0.25, got[0].Score)
}

func TestDecodeReply_AcceptsIntegerScores(t *testing.T) {
	// Engines may compact whole-number floats.
	payload := mustMarshal(t, []any{[]any{"U1", "U2", 3}})

	got, err := DecodeReply[[]EdgeRecord](OpEdgeList, payload)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3.0, got[0].Weight)
}

func TestDecodeReply_StringSentinel(t *testing.T) {
	payload := mustMarshal(t, "node not found: U9")

	_, err := DecodeReply[[]ScoreRecord](OpNodeScore, payload)
	require.Error(t, err)

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr), "want *ServiceError, got %T", err)
	assert.Equal(t, "node not found: U9", svcErr.Message)
	assert.Equal(t, OpNodeScore, svcErr.Op)
	assert.Equal(t, "server error: node not found: U9", err.Error())
}

func TestDecodeReply_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"integer", mustMarshal(t, 42)},
		{"map", mustMarshal(t, map[string]int{"a": 1})},
		{"wrong arity", mustMarshal(t, []any{[]any{"U1", "U2"}})},
		{"empty row", mustMarshal(t, []any{[]any{}})},
		{"empty row after valid", mustMarshal(t, []any{[]any{"U1", "U2", 0.5}, []any{}})},
		{"truncated", []byte{0x93, 0xa2}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeReply[[]ScoreRecord](OpScores, tt.payload)
			require.Error(t, err)

			var decErr *DecodeError
			assert.True(t, errors.As(err, &decErr), "want *DecodeError, got %T: %v", err, err)
			var svcErr *ServiceError
			assert.False(t, errors.As(err, &svcErr))
		})
	}
}

func TestDecodeReply_RowArityPerRecord(t *testing.T) {
	_, err := DecodeReply[[]Connection](OpConnected, mustMarshal(t, []any{[]any{}}))
	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr), "want *DecodeError, got %T: %v", err, err)

	conns, err := DecodeReply[[]Connection](OpConnected, mustMarshal(t, []any{[]any{"U1", "U2"}}))
	require.NoError(t, err)
	assert.Equal(t, []Connection{{Src: "U1", Dst: "U2"}}, conns)

	// Empty ids are valid values inside a full-width row.
	rows, err := DecodeReply[[]ScoreRecord](OpScores, mustMarshal(t, []any{[]any{"", "", 0.0}}))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	empty, err := DecodeReply[[]ScoreRecord](OpScores, mustMarshal(t, []any{}))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDecodeReply_TypedWinsOverString(t *testing.T) {
	// A bare string is the typed result for the version call; it must not be
	// reported as a service error.
	payload := mustMarshal(t, "0.3.1")

	got, err := DecodeReply[string](OpVersion, payload)
	require.NoError(t, err)
	assert.Equal(t, "0.3.1", got)
}

func TestAck(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		wantSvc bool
	}{
		{"nil", mustMarshal(t, nil), false},
		{"empty list", mustMarshal(t, []any{}), false},
		{"list of units", mustMarshal(t, []any{nil, nil}), false},
		{"error string", mustMarshal(t, "no such context"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeReply[Ack](OpDeleteEdge, tt.payload)
			if !tt.wantSvc {
				assert.NoError(t, err)
				return
			}
			var svcErr *ServiceError
			require.True(t, errors.As(err, &svcErr))
			assert.Equal(t, "no such context", svcErr.Message)
		})
	}
}

func TestEncodeReply_RoundTrip(t *testing.T) {
	in := []MutualScore{{Dst: "U2", DstScore: 0.5, SrcScore: 0.25}}
	payload, err := EncodeReply(in)
	require.NoError(t, err)

	got, err := DecodeReply[[]MutualScore](OpMutualScores, payload)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}
