package protocol

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScores_BoundValidation(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr error
	}{
		{"none", Filter{}, nil},
		{"lt only", Filter{Lt: Float(1)}, nil},
		{"lte only", Filter{Lte: Float(1)}, nil},
		{"gt and lte", Filter{Gt: Float(0), Lte: Float(1)}, nil},
		{"lt and lte", Filter{Lt: Float(1), Lte: Float(1)}, ErrBothUpperBounds},
		{"gt and gte", Filter{Gt: Float(0), Gte: Float(0)}, ErrBothLowerBounds},
		{"all four", Filter{Lt: Float(1), Lte: Float(1), Gt: Float(0), Gte: Float(0)}, ErrBothUpperBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Scores("U1", Aggregate(), tt.filter)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))

			var encErr *EncodeError
			require.True(t, errors.As(err, &encErr))
			assert.Equal(t, OpScores, encErr.Op)
		})
	}
}

func TestScores_BoundMessages(t *testing.T) {
	assert.Equal(t, "either lt or lte allowed", ErrBothUpperBounds.Error())
	assert.Equal(t, "either gt or gte allowed", ErrBothLowerBounds.Error())
}

func TestScores_Defaults(t *testing.T) {
	cmd, err := Scores("U1", ReadFrom("X"), Filter{})
	require.NoError(t, err)
	assert.Equal(t, "X", cmd.Context)

	args := cmd.Args.(ScoresArgs)
	assert.Equal(t, math.MaxFloat64, args.Upper)
	assert.False(t, args.UpperIncl)
	assert.Equal(t, -math.MaxFloat64, args.Lower)
	assert.False(t, args.LowerIncl)
	assert.Equal(t, uint32(0), args.Index)
	assert.Equal(t, uint32(math.MaxUint32), args.Count)
}

func TestScores_Inclusivity(t *testing.T) {
	cmd, err := Scores("U1", Aggregate(), Filter{Lte: Float(0.75), Gt: Float(0.1)})
	require.NoError(t, err)

	args := cmd.Args.(ScoresArgs)
	assert.Equal(t, 0.75, args.Upper)
	assert.True(t, args.UpperIncl)
	assert.Equal(t, 0.1, args.Lower)
	assert.False(t, args.LowerIncl)
}

func TestScoresArgs_Admits(t *testing.T) {
	exclusive := ScoresArgs{Upper: 1, Lower: 0}
	inclusive := ScoresArgs{Upper: 1, UpperIncl: true, Lower: 0, LowerIncl: true}

	for _, tt := range []struct {
		args  ScoresArgs
		score float64
		want  bool
	}{
		{exclusive, 0.5, true},
		{exclusive, 1, false},
		{exclusive, 0, false},
		{inclusive, 1, true},
		{inclusive, 0, true},
		{inclusive, 1.01, false},
		{ScoresArgs{Upper: DefaultUpper, Lower: DefaultLower}, -1e300, true},
	} {
		assert.Equal(t, tt.want, tt.args.Admits(tt.score), "%+v admits %v", tt.args, tt.score)
	}
}

func TestTargets(t *testing.T) {
	assert.True(t, Aggregate().IsAggregate())
	assert.True(t, ReadFrom("").IsAggregate())
	assert.False(t, ReadFrom("X").IsAggregate())
	assert.Equal(t, "X", ReadFrom("X").Wire())
	assert.Equal(t, "", Aggregate().Wire())
	assert.Equal(t, "<aggregate>", Aggregate().String())

	assert.True(t, DefaultBucket().IsDefault())
	assert.False(t, WriteTo("Y").IsDefault())
	assert.Equal(t, "", DefaultBucket().Wire())
	assert.Equal(t, "<default>", WriteTo("").String())
}

func TestOpcode(t *testing.T) {
	assert.Equal(t, "put_edge", OpPutEdge.String())
	assert.Equal(t, "opcode_99", Opcode(99).String())
	assert.True(t, OpDeleteNode.IsMutation())
	assert.False(t, OpEdgeList.IsMutation())
	assert.True(t, OpSynchronize.IsAdmin())
	assert.False(t, Opcode(99).Known())
	assert.Equal(t, "for_beacons_global", OpForBeaconsGlobal.String())
	assert.False(t, OpForBeaconsGlobal.IsMutation())
	assert.False(t, OpForBeaconsGlobal.IsAdmin())
}
