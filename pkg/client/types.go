package client

import "github.com/rmax-ai/scorelink/pkg/protocol"

// Version is the connector version reported by ConnectorVersion.
// Overridden at build time with -ldflags "-X".
var Version = "v0.4.0"

// Result rows, re-exported so callers need not import protocol for them.
type (
	ScoreRecord = protocol.ScoreRecord
	EdgeRecord  = protocol.EdgeRecord
	Connection  = protocol.Connection
	MutualScore = protocol.MutualScore
	NodeWeight  = protocol.NodeWeight
)

// ScoresOptions defines the optional arguments of Scores.
type ScoresOptions struct {
	// Context is the read target. Zero value: aggregate over all contexts.
	Context protocol.ReadTarget
	// HidePersonal asks the engine to hide the ego's personal nodes.
	HidePersonal bool
	// Prefix keeps only destinations whose id starts with it.
	Prefix string
	// Lt/Lte bound the score from above; at most one may be set.
	Lt  *float64
	Lte *float64
	// Gt/Gte bound the score from below; at most one may be set.
	Gt  *float64
	Gte *float64
	// Index and Count page through the ranked list.
	Index *uint32
	Count *uint32
}

func (o ScoresOptions) filter() protocol.Filter {
	return protocol.Filter{
		Prefix:       o.Prefix,
		HidePersonal: o.HidePersonal,
		Lt:           o.Lt,
		Lte:          o.Lte,
		Gt:           o.Gt,
		Gte:          o.Gte,
		Page:         protocol.Page{Index: o.Index, Count: o.Count},
	}
}

// GraphOptions defines the optional arguments of Graph and GravityNodes.
type GraphOptions struct {
	Context      protocol.ReadTarget
	PositiveOnly bool
	Index        *uint32
	Count        *uint32
}

func (o GraphOptions) page() protocol.Page {
	return protocol.Page{Index: o.Index, Count: o.Count}
}
