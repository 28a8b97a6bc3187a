// Package protocol defines the scorelink wire protocol: opcodes, the request
// envelope, per-opcode argument tuples, response records and the ordered
// typed-or-error response decoding.
//
// Every request is a MessagePack 3-tuple (opcode, context, args) where args
// is itself the MessagePack encoding of the opcode's argument tuple.
package protocol

import "fmt"

// Opcode identifies the logical operation a request performs.
type Opcode uint8

const (
	OpVersion       Opcode = 0
	OpLogLevel      Opcode = 1
	OpReset         Opcode = 2
	OpRecomputeZero Opcode = 3
	OpSynchronize   Opcode = 4

	OpNodeScore          Opcode = 10
	OpNodeScoreLinearSum Opcode = 11 // pre-summed, no per-context decomposition
	OpScores             Opcode = 12
	OpScoresLinearSum    Opcode = 13
	OpGraph              Opcode = 14
	OpGravityNodes       Opcode = 15
	OpNodeList           Opcode = 16
	OpEdgeList           Opcode = 17
	OpConnected          Opcode = 18
	OpMutualScores       Opcode = 19

	OpPutEdge    Opcode = 20
	OpDeleteEdge Opcode = 21
	OpDeleteNode Opcode = 22

	OpForBeaconsGlobal Opcode = 23 // every (ego, target, score) of the aggregate graph
)

var opcodeNames = map[Opcode]string{
	OpVersion:            "version",
	OpLogLevel:           "log_level",
	OpReset:              "reset",
	OpRecomputeZero:      "recompute_zero",
	OpSynchronize:        "synchronize",
	OpNodeScore:          "node_score",
	OpNodeScoreLinearSum: "node_score_linear_sum",
	OpScores:             "scores",
	OpScoresLinearSum:    "scores_linear_sum",
	OpGraph:              "graph",
	OpGravityNodes:       "gravity_nodes",
	OpNodeList:           "node_list",
	OpEdgeList:           "edge_list",
	OpConnected:          "connected",
	OpMutualScores:       "mutual_scores",
	OpPutEdge:            "put_edge",
	OpDeleteEdge:         "delete_edge",
	OpDeleteNode:         "delete_node",
	OpForBeaconsGlobal:   "for_beacons_global",
}

// String returns the opcode name used in logs and metric labels.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("opcode_%d", uint8(o))
}

// Known reports whether o is part of the protocol.
func (o Opcode) Known() bool {
	_, ok := opcodeNames[o]
	return ok
}

// IsMutation reports whether o changes engine state for a single context.
func (o Opcode) IsMutation() bool {
	switch o {
	case OpPutEdge, OpDeleteEdge, OpDeleteNode:
		return true
	}
	return false
}

// IsAdmin reports whether o is an administrative command.
func (o Opcode) IsAdmin() bool {
	switch o {
	case OpLogLevel, OpReset, OpRecomputeZero, OpSynchronize:
		return true
	}
	return false
}
