package mockengine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rmax-ai/scorelink/pkg/protocol"
)

// Error strings sent back for rejected requests.
const (
	ErrNodeNotFound   = "node not found"
	ErrInvalidRequest = "invalid request"
)

var errNodeNotFound = errors.New(ErrNodeNotFound)

// Handle answers one request payload. It never fails: problems are reported
// to the caller as an error string reply.
func (e *Engine) Handle(payload []byte) []byte {
	start := time.Now()
	env, err := protocol.DecodeEnvelope(payload)
	if err != nil {
		e.logger.Warn("rejecting request", zap.Error(err))
		return e.encode(fmt.Sprintf("%s: %v", ErrInvalidRequest, err))
	}

	reply, err := e.dispatch(env)
	if err != nil {
		e.logger.Debug("request failed",
			zap.Stringer("opcode", env.Opcode),
			zap.String("context", env.Context),
			zap.Error(err))
		return e.encode(err.Error())
	}

	e.logger.Debug("request served",
		zap.Stringer("opcode", env.Opcode),
		zap.String("context", env.Context),
		zap.Duration("elapsed", time.Since(start)))
	return e.encode(reply)
}

func (e *Engine) encode(v any) []byte {
	out, err := protocol.EncodeReply(v)
	if err != nil {
		e.logger.Error("failed to encode reply", zap.Error(err))
		out, _ = protocol.EncodeReply("internal error")
	}
	return out
}

func (e *Engine) dispatch(env protocol.Envelope) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch env.Opcode {
	case protocol.OpVersion:
		return e.version, nil

	case protocol.OpLogLevel:
		level, err := protocol.DecodeArgs[protocol.LogLevelArgs](env.Args)
		if err != nil {
			return nil, err
		}
		e.logLevel = uint32(level)
		return nil, nil

	case protocol.OpReset:
		e.buckets = map[string]weights{defaultBucket: {}}
		e.pending = nil
		return nil, nil

	case protocol.OpRecomputeZero:
		return nil, nil

	case protocol.OpSynchronize:
		e.flush()
		return nil, nil

	case protocol.OpNodeScore, protocol.OpNodeScoreLinearSum:
		args, err := protocol.DecodeArgs[protocol.PairArgs](env.Args)
		if err != nil {
			return nil, err
		}
		ctx := env.Context
		if env.Opcode == protocol.OpNodeScoreLinearSum {
			ctx = ""
		}
		w := e.view(ctx)
		if !w.hasNode(args.Src) || !w.hasNode(args.Dst) {
			return nil, errNodeNotFound
		}
		return []protocol.ScoreRecord{{Src: args.Src, Dst: args.Dst, Score: w.score(args.Src, args.Dst)}}, nil

	case protocol.OpScores:
		args, err := protocol.DecodeArgs[protocol.ScoresArgs](env.Args)
		if err != nil {
			return nil, err
		}
		return e.scores(e.view(env.Context), args), nil

	case protocol.OpScoresLinearSum:
		args, err := protocol.DecodeArgs[protocol.NodeArgs](env.Args)
		if err != nil {
			return nil, err
		}
		return e.scores(e.view(""), protocol.ScoresArgs{
			Src:   args.Src,
			Upper: protocol.DefaultUpper,
			Lower: protocol.DefaultLower,
			Count: protocol.DefaultCount,
		}), nil

	case protocol.OpForBeaconsGlobal:
		return globalScores(e.view("")), nil

	case protocol.OpGraph:
		args, err := protocol.DecodeArgs[protocol.GraphArgs](env.Args)
		if err != nil {
			return nil, err
		}
		return graph(e.view(env.Context), args), nil

	case protocol.OpGravityNodes:
		args, err := protocol.DecodeArgs[protocol.GraphArgs](env.Args)
		if err != nil {
			return nil, err
		}
		return gravityNodes(e.view(env.Context), args), nil

	case protocol.OpNodeList:
		return e.view(env.Context).nodes(), nil

	case protocol.OpEdgeList:
		w := e.view(env.Context)
		var out []protocol.EdgeRecord
		for _, src := range w.nodes() {
			for _, dst := range w.targets(src) {
				out = append(out, protocol.EdgeRecord{Src: src, Dst: dst, Weight: w[src][dst]})
			}
		}
		return nonNil(out), nil

	case protocol.OpConnected:
		args, err := protocol.DecodeArgs[protocol.NodeArgs](env.Args)
		if err != nil {
			return nil, err
		}
		w := e.view(env.Context)
		if !w.hasNode(args.Src) {
			return nil, errNodeNotFound
		}
		var out []protocol.Connection
		for _, dst := range w.targets(args.Src) {
			out = append(out, protocol.Connection{Src: args.Src, Dst: dst})
		}
		return nonNil(out), nil

	case protocol.OpMutualScores:
		args, err := protocol.DecodeArgs[protocol.NodeArgs](env.Args)
		if err != nil {
			return nil, err
		}
		w := e.view(env.Context)
		var out []protocol.MutualScore
		for _, dst := range w.targets(args.Src) {
			out = append(out, protocol.MutualScore{
				Dst:      dst,
				DstScore: w.score(args.Src, dst),
				SrcScore: w.score(dst, args.Src),
			})
		}
		return nonNil(out), nil

	case protocol.OpPutEdge:
		args, err := protocol.DecodeArgs[protocol.PutEdgeArgs](env.Args)
		if err != nil {
			return nil, err
		}
		e.mutate(env.Context, func(w weights) { w.set(args.Src, args.Dst, args.Weight) })
		return []protocol.EdgeRecord{{Src: args.Src, Dst: args.Dst, Weight: args.Weight}}, nil

	case protocol.OpDeleteEdge:
		args, err := protocol.DecodeArgs[protocol.PairArgs](env.Args)
		if err != nil {
			return nil, err
		}
		e.mutate(env.Context, func(w weights) { w.remove(args.Src, args.Dst) })
		return nil, nil

	case protocol.OpDeleteNode:
		args, err := protocol.DecodeArgs[protocol.NodeArgs](env.Args)
		if err != nil {
			return nil, err
		}
		e.mutate(env.Context, func(w weights) { w.removeNode(args.Src) })
		return nil, nil
	}

	return nil, fmt.Errorf("unknown opcode %d", uint8(env.Opcode))
}

func (e *Engine) scores(w weights, args protocol.ScoresArgs) []protocol.ScoreRecord {
	var out []protocol.ScoreRecord
	for _, dst := range w.targets(args.Src) {
		if !strings.HasPrefix(dst, args.Prefix) {
			continue
		}
		s := w.score(args.Src, dst)
		if !args.Admits(s) {
			continue
		}
		out = append(out, protocol.ScoreRecord{Src: args.Src, Dst: dst, Score: s})
	}
	rank(out)
	return page(out, args.Index, args.Count)
}

// globalScores lists every scored edge of w, ranked per ego.
func globalScores(w weights) []protocol.ScoreRecord {
	out := []protocol.ScoreRecord{}
	for _, src := range w.nodes() {
		rows := make([]protocol.ScoreRecord, 0, len(w.targets(src)))
		for _, dst := range w.targets(src) {
			rows = append(rows, protocol.ScoreRecord{Src: src, Dst: dst, Score: w.score(src, dst)})
		}
		rank(rows)
		out = append(out, rows...)
	}
	return out
}

// neighborhood is src, focus and the direct targets of both.
func neighborhood(w weights, src, focus string) map[string]struct{} {
	set := map[string]struct{}{src: {}, focus: {}}
	for _, n := range []string{src, focus} {
		for _, dst := range w.targets(n) {
			set[dst] = struct{}{}
		}
	}
	return set
}

func graph(w weights, args protocol.GraphArgs) []protocol.ScoreRecord {
	set := neighborhood(w, args.Src, args.Focus)
	var out []protocol.ScoreRecord
	for _, n := range w.nodes() {
		if _, ok := set[n]; !ok {
			continue
		}
		for _, dst := range w.targets(n) {
			if _, ok := set[dst]; !ok {
				continue
			}
			s := w.score(n, dst)
			if args.PositiveOnly && s <= 0 {
				continue
			}
			out = append(out, protocol.ScoreRecord{Src: n, Dst: dst, Score: s})
		}
	}
	return page(out, args.Index, args.Count)
}

func gravityNodes(w weights, args protocol.GraphArgs) []protocol.NodeWeight {
	set := neighborhood(w, args.Src, args.Focus)
	var out []protocol.NodeWeight
	for n := range set {
		if n == args.Src || !w.hasNode(n) {
			continue
		}
		s := w.score(args.Src, n)
		if args.PositiveOnly && s <= 0 {
			continue
		}
		out = append(out, protocol.NodeWeight{Node: n, Weight: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Node < out[j].Node
	})
	return page(out, args.Index, args.Count)
}

// rank orders by descending score, ties by destination.
func rank(rows []protocol.ScoreRecord) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Dst < rows[j].Dst
	})
}

func page[T any](rows []T, index, count uint32) []T {
	if int(index) >= len(rows) {
		return []T{}
	}
	rows = rows[index:]
	if uint64(count) < uint64(len(rows)) {
		rows = rows[:count]
	}
	return rows
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
