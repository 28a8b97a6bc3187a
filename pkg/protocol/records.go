package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// ScoreRecord is one (src, dst, score) row.
type ScoreRecord struct {
	_msgpack struct{} `msgpack:",as_array"`

	Src   string  `json:"src"`
	Dst   string  `json:"dst"`
	Score float64 `json:"score"`
}

// EdgeRecord is one (src, dst, weight) row.
type EdgeRecord struct {
	_msgpack struct{} `msgpack:",as_array"`

	Src    string  `json:"src"`
	Dst    string  `json:"dst"`
	Weight float64 `json:"weight"`
}

// Connection is one (src, dst) row of the connectivity list.
type Connection struct {
	_msgpack struct{} `msgpack:",as_array"`

	Src string `json:"src"`
	Dst string `json:"dst"`
}

// MutualScore is one (dst, dst_score, src_score) row: the score src gives
// dst and the score dst gives back to src.
type MutualScore struct {
	_msgpack struct{} `msgpack:",as_array"`

	Dst      string  `json:"dst"`
	DstScore float64 `json:"dst_score"`
	SrcScore float64 `json:"src_score"`
}

// NodeWeight is one (node, weight) row of a gravity node list.
type NodeWeight struct {
	_msgpack struct{} `msgpack:",as_array"`

	Node   string  `json:"node"`
	Weight float64 `json:"weight"`
}

// Ack is the unit acknowledgment of mutations and administrative commands.
// It decodes from nil or from any array (a list of units); a string is not
// an ack, so an error reply falls through to the sentinel decode.
type Ack struct{}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (Ack) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeNil()
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (a *Ack) DecodeMsgpack(dec *msgpack.Decoder) error {
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}
	if code == msgpcode.Nil {
		return dec.DecodeNil()
	}
	if isArrayCode(code) {
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := dec.Skip(); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("msgpack: invalid code=%x decoding ack", code)
}
