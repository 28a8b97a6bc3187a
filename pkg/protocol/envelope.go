package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Envelope is the outer request tuple. Context is a sibling of Args so the
// engine can route and aggregate without looking inside the arguments.
type Envelope struct {
	_msgpack struct{} `msgpack:",as_array"`

	Opcode  Opcode
	Context string
	Args    Blob
}

// Blob holds the MessagePack bytes of an argument tuple.
//
// It is written as an array of unsigned integers, which is how serde
// represents a byte vector, and read from either that form or bin.
type Blob []byte

// EncodeMsgpack implements msgpack.CustomEncoder.
func (b Blob) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(len(b)); err != nil {
		return err
	}
	for _, c := range b {
		if err := enc.EncodeUint(uint64(c)); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (b *Blob) DecodeMsgpack(dec *msgpack.Decoder) error {
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}
	switch code {
	case msgpcode.Nil:
		*b = nil
		return dec.DecodeNil()
	case msgpcode.Bin8, msgpcode.Bin16, msgpcode.Bin32:
		raw, err := dec.DecodeBytes()
		if err != nil {
			return err
		}
		*b = raw
		return nil
	}

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	out := make([]byte, 0, max(n, 0))
	for i := 0; i < n; i++ {
		v, err := dec.DecodeUint64()
		if err != nil {
			return err
		}
		if v > 0xff {
			return fmt.Errorf("blob element %d out of byte range: %d", i, v)
		}
		out = append(out, byte(v))
	}
	*b = out
	return nil
}

// NewEnvelope serializes args and wraps them with op and the context field.
func NewEnvelope(op Opcode, context string, args any) (Envelope, error) {
	blob, err := msgpack.Marshal(args)
	if err != nil {
		return Envelope{}, &EncodeError{Op: op, Err: err}
	}
	return Envelope{Opcode: op, Context: context, Args: blob}, nil
}

// Encode serializes the envelope for the transport.
func (e Envelope) Encode() ([]byte, error) {
	payload, err := msgpack.Marshal(&e)
	if err != nil {
		return nil, &EncodeError{Op: e.Opcode, Err: err}
	}
	return payload, nil
}

// DecodeEnvelope parses a request payload. It is the engine-side inverse of
// Envelope.Encode.
func DecodeEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// DecodeArgs parses the argument blob of an envelope into T.
func DecodeArgs[T any](blob Blob) (T, error) {
	var args T
	if err := msgpack.Unmarshal(blob, &args); err != nil {
		return args, fmt.Errorf("decode args: %w", err)
	}
	return args, nil
}
