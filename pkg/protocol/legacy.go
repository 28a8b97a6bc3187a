package protocol

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Dialect selects how commands are laid out on the wire.
type Dialect string

const (
	// DialectFixed is the (opcode, context, args) envelope.
	DialectFixed Dialect = "fixed"
	// DialectLegacy is the predicate-tuple form understood by engines that
	// predate opcodes. It has no context field; a non-empty context wraps
	// the whole payload as ("context", ctx, payload).
	DialectLegacy Dialect = "legacy"
)

// ParseDialect maps a configuration string to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case "", DialectFixed:
		return DialectFixed, nil
	case DialectLegacy:
		return DialectLegacy, nil
	}
	return "", fmt.Errorf("unknown dialect %q", s)
}

// Encode serializes c in dialect d.
func (d Dialect) Encode(c Command) ([]byte, error) {
	if d == DialectLegacy {
		return EncodeLegacy(c)
	}
	return c.Encode()
}

var errLegacyOffset = errors.New("legacy dialect cannot express a page index")

// EncodeLegacy serializes c in the predicate-tuple dialect.
func EncodeLegacy(c Command) ([]byte, error) {
	q, err := legacyQuery(c)
	if err != nil {
		return nil, &EncodeError{Op: c.Op, Err: err}
	}
	payload, err := msgpack.Marshal(q)
	if err != nil {
		return nil, &EncodeError{Op: c.Op, Err: err}
	}
	if c.Context == "" || c.Op == OpVersion {
		return payload, nil
	}
	wrapped, err := msgpack.Marshal([]any{"context", c.Context, Blob(payload)})
	if err != nil {
		return nil, &EncodeError{Op: c.Op, Err: err}
	}
	return wrapped, nil
}

func legacyQuery(c Command) (any, error) {
	switch c.Op {
	case OpVersion:
		return "ver", nil
	case OpNodeList:
		return []any{"nodes", nil}, nil
	case OpEdgeList:
		return []any{"edges", nil}, nil
	case OpForBeaconsGlobal:
		return []any{"for_beacons_global", nil}, nil
	}

	switch args := c.Args.(type) {
	case PairArgs:
		switch c.Op {
		case OpNodeScore:
			return []any{[]any{pred("src", "=", args.Src), pred("dest", "=", args.Dst)}, nil}, nil
		case OpNodeScoreLinearSum:
			return []any{[]any{pred("src", "=", args.Src), pred("dest", "=", args.Dst)}, nil, "null"}, nil
		case OpDeleteEdge:
			return []any{[]any{pred("src", "delete", args.Src), pred("dest", "delete", args.Dst)}, nil}, nil
		}
	case NodeArgs:
		switch c.Op {
		case OpScoresLinearSum:
			return []any{[]any{pred("src", "=", args.Src)}, nil, "null"}, nil
		case OpConnected:
			return []any{[]any{[]any{args.Src, "connected"}}, nil}, nil
		case OpDeleteNode:
			return []any{[]any{pred("src", "delete", args.Src)}, nil}, nil
		}
	case PutEdgeArgs:
		if c.Op == OpPutEdge {
			return []any{[]any{[]any{args.Src, args.Dst, args.Weight}}, nil}, nil
		}
	case ScoresArgs:
		if c.Op == OpScores {
			return legacyScores(args)
		}
	case GraphArgs:
		if c.Op == OpGraph || c.Op == OpGravityNodes {
			if args.Index != 0 {
				return nil, errLegacyOffset
			}
			verb := "gravity"
			if c.Op == OpGravityNodes {
				verb = "gravity_nodes"
			}
			return []any{[]any{[]any{args.Src, verb, args.Focus}, args.PositiveOnly, legacyLimit(args.Count)}, nil}, nil
		}
	}
	return nil, ErrNoLegacyForm
}

func legacyScores(a ScoresArgs) (any, error) {
	if a.Index != 0 {
		return nil, errLegacyOffset
	}
	lcmp, gcmp := "<", ">"
	if a.UpperIncl {
		lcmp = "<="
	}
	if a.LowerIncl {
		gcmp = ">="
	}
	return []any{[]any{
		pred("src", "=", a.Src),
		pred("target", "like", a.Prefix),
		[]any{"hide_personal", a.HidePersonal},
		pred("score", gcmp, a.Lower),
		pred("score", lcmp, a.Upper),
		[]any{"limit", legacyLimit(a.Count)},
	}, nil}, nil
}

func pred(field, op string, value any) []any {
	return []any{field, op, value}
}

// legacyLimit maps a page count to the optional i32 limit of the old form.
func legacyLimit(count uint32) any {
	if count == DefaultCount {
		return nil
	}
	if count > 1<<31-1 {
		count = 1<<31 - 1
	}
	return int32(count)
}
