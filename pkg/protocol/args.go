package protocol

// Argument tuples, one shape per opcode. Each struct is encoded as a
// positional MessagePack array in field order.

// PairArgs is (src, dst). Used by NodeScore, NodeScoreLinearSum, DeleteEdge.
type PairArgs struct {
	_msgpack struct{} `msgpack:",as_array"`

	Src string
	Dst string
}

// NodeArgs is (src). Used by ScoresLinearSum, Connected, MutualScores,
// DeleteNode.
type NodeArgs struct {
	_msgpack struct{} `msgpack:",as_array"`

	Src string
}

// ScoresArgs is the ranged score list tuple:
// (src, prefix, hide_personal, lt, lt_inclusive, gt, gt_inclusive, index, count).
type ScoresArgs struct {
	_msgpack struct{} `msgpack:",as_array"`

	Src          string
	Prefix       string
	HidePersonal bool
	Upper        float64
	UpperIncl    bool
	Lower        float64
	LowerIncl    bool
	Index        uint32
	Count        uint32
}

// Admits reports whether score falls inside the encoded bounds.
func (a ScoresArgs) Admits(score float64) bool {
	if a.UpperIncl {
		if score > a.Upper {
			return false
		}
	} else if score >= a.Upper {
		return false
	}
	if a.LowerIncl {
		return score >= a.Lower
	}
	return score > a.Lower
}

// GraphArgs is (src, focus, positive_only, index, count). Used by Graph and
// GravityNodes.
type GraphArgs struct {
	_msgpack struct{} `msgpack:",as_array"`

	Src          string
	Focus        string
	PositiveOnly bool
	Index        uint32
	Count        uint32
}

// PutEdgeArgs is (src, dst, weight).
type PutEdgeArgs struct {
	_msgpack struct{} `msgpack:",as_array"`

	Src    string
	Dst    string
	Weight float64
}

// LogLevelArgs is the single scalar sent with OpLogLevel.
type LogLevelArgs uint32

// Command is a fully shaped request before serialization: an opcode, the
// wire context and the argument value that matches the opcode.
type Command struct {
	Op      Opcode
	Context string
	Args    any
}

// Envelope serializes the command arguments and returns the wire envelope.
func (c Command) Envelope() (Envelope, error) {
	return NewEnvelope(c.Op, c.Context, c.Args)
}

// Encode returns the wire bytes of the command.
func (c Command) Encode() ([]byte, error) {
	env, err := c.Envelope()
	if err != nil {
		return nil, err
	}
	return env.Encode()
}

// Constructors. Reads take a ReadTarget and mutations a WriteTarget so the
// two meanings of the empty context cannot be mixed up at call sites.

// Version asks the engine for its version string.
func Version() Command { return Command{Op: OpVersion} }

// SetLogLevel sets the engine's log verbosity.
func SetLogLevel(level uint32) Command {
	return Command{Op: OpLogLevel, Args: LogLevelArgs(level)}
}

// Reset clears every context on the engine.
func Reset() Command { return Command{Op: OpReset} }

// RecomputeZero triggers recomputation anchored at the zero node.
func RecomputeZero() Command { return Command{Op: OpRecomputeZero} }

// Synchronize waits until queued writes are visible to reads.
func Synchronize() Command { return Command{Op: OpSynchronize} }

// NodeScore reads the score src assigns dst.
func NodeScore(src, dst string, t ReadTarget) Command {
	return Command{Op: OpNodeScore, Context: t.Wire(), Args: PairArgs{Src: src, Dst: dst}}
}

// NodeScoreLinearSum reads the pre-summed pairwise score.
func NodeScoreLinearSum(src, dst string) Command {
	return Command{Op: OpNodeScoreLinearSum, Args: PairArgs{Src: src, Dst: dst}}
}

// Scores validates f and builds the ranged score list command.
func Scores(src string, t ReadTarget, f Filter) (Command, error) {
	args, err := f.scoresArgs(src)
	if err != nil {
		return Command{}, &EncodeError{Op: OpScores, Err: err}
	}
	return Command{Op: OpScores, Context: t.Wire(), Args: args}, nil
}

// ScoresLinearSum reads src's pre-summed score list.
func ScoresLinearSum(src string) Command {
	return Command{Op: OpScoresLinearSum, Args: NodeArgs{Src: src}}
}

// Graph reads the scored edges between the src and focus neighborhoods.
func Graph(src, focus string, t ReadTarget, positiveOnly bool, p Page) Command {
	return Command{Op: OpGraph, Context: t.Wire(), Args: graphArgs(src, focus, positiveOnly, p)}
}

// GravityNodes reads the weighted nodes of the src/focus neighborhood.
func GravityNodes(src, focus string, t ReadTarget, positiveOnly bool, p Page) Command {
	return Command{Op: OpGravityNodes, Context: t.Wire(), Args: graphArgs(src, focus, positiveOnly, p)}
}

// NodeList reads every node id.
func NodeList(t ReadTarget) Command {
	return Command{Op: OpNodeList, Context: t.Wire()}
}

// EdgeList reads every edge with its weight.
func EdgeList(t ReadTarget) Command {
	return Command{Op: OpEdgeList, Context: t.Wire()}
}

// Connected reads the outgoing connections of src.
func Connected(src string, t ReadTarget) Command {
	return Command{Op: OpConnected, Context: t.Wire(), Args: NodeArgs{Src: src}}
}

// MutualScores reads the scores src and each peer give each other.
func MutualScores(src string, t ReadTarget) Command {
	return Command{Op: OpMutualScores, Context: t.Wire(), Args: NodeArgs{Src: src}}
}

// PutEdge writes the (src, dst) edge.
func PutEdge(src, dst string, weight float64, t WriteTarget) Command {
	return Command{Op: OpPutEdge, Context: t.Wire(), Args: PutEdgeArgs{Src: src, Dst: dst, Weight: weight}}
}

// DeleteEdge removes the (src, dst) edge.
func DeleteEdge(src, dst string, t WriteTarget) Command {
	return Command{Op: OpDeleteEdge, Context: t.Wire(), Args: PairArgs{Src: src, Dst: dst}}
}

// DeleteNode removes src and its outgoing edges.
func DeleteNode(src string, t WriteTarget) Command {
	return Command{Op: OpDeleteNode, Context: t.Wire(), Args: NodeArgs{Src: src}}
}

// ForBeaconsGlobal reads the global score table over the aggregate graph.
func ForBeaconsGlobal() Command { return Command{Op: OpForBeaconsGlobal} }

func graphArgs(src, focus string, positiveOnly bool, p Page) GraphArgs {
	index, count := p.bounds()
	return GraphArgs{Src: src, Focus: focus, PositiveOnly: positiveOnly, Index: index, Count: count}
}
