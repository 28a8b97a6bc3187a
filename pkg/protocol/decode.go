package protocol

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// DecodeReply decodes a reply payload for op in a fixed priority order:
//
//  1. as the expected type T; success returns the value;
//  2. as a single string; success returns a *ServiceError with that message;
//  3. otherwise a *DecodeError.
//
// The typed attempt must come first: a string is a plausible misreading of
// many payloads, while a typed shape rarely is.
func DecodeReply[T any](op Opcode, payload []byte) (T, error) {
	var typed T
	typedErr := checkRowArity(payload, rowArity(&typed))
	if typedErr == nil {
		typedErr = msgpack.Unmarshal(payload, &typed)
	}
	if typedErr == nil {
		return typed, nil
	}

	var zero T
	var message string
	if err := msgpack.Unmarshal(payload, &message); err != nil {
		return zero, &DecodeError{Op: op, Typed: typedErr, Sentinel: err}
	}
	return zero, &ServiceError{Op: op, Message: message}
}

// rowArity is the field count of each row when v points to a list of
// records, or 0 for any other reply shape.
func rowArity(v any) int {
	switch v.(type) {
	case *[]ScoreRecord, *[]EdgeRecord, *[]MutualScore:
		return 3
	case *[]Connection, *[]NodeWeight:
		return 2
	}
	return 0
}

// checkRowArity rejects a list whose array rows do not carry exactly arity
// fields; msgpack alone decodes a [] row into a zero-value record. Payloads
// that are not a list are left to the typed decode.
func checkRowArity(payload []byte, arity int) error {
	if arity == 0 {
		return nil
	}
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	code, err := dec.PeekCode()
	if err != nil || !isArrayCode(code) {
		return nil
	}
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil
	}
	for i := 0; i < n; i++ {
		code, err := dec.PeekCode()
		if err != nil {
			return nil
		}
		if !isArrayCode(code) {
			if err := dec.Skip(); err != nil {
				return nil
			}
			continue
		}
		fields, err := dec.DecodeArrayLen()
		if err != nil {
			return nil
		}
		if fields != arity {
			return fmt.Errorf("msgpack: row %d has %d fields, want %d", i, fields, arity)
		}
		for j := 0; j < fields; j++ {
			if err := dec.Skip(); err != nil {
				return nil
			}
		}
	}
	return nil
}

func isArrayCode(code byte) bool {
	return msgpcode.IsFixedArray(code) || code == msgpcode.Array16 || code == msgpcode.Array32
}

// EncodeReply serializes a reply value. It is the engine-side counterpart of
// DecodeReply; an engine reporting an error sends the message string itself.
func EncodeReply(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}
