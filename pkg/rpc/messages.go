package rpc

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// The wasm query messages are encoded by hand: wasmd's generated types pull in the whole
// cosmos-sdk module graph for two fields.

// QuerySmartContractStateRequest is cosmwasm.wasm.v1.QuerySmartContractStateRequest.
// QueryData holds the raw JSON query.
type QuerySmartContractStateRequest struct {
	Address   string
	QueryData []byte
}

func (r *QuerySmartContractStateRequest) Marshal() []byte {
	var b []byte
	if r.Address != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, r.Address)
	}
	return appendBytes(b, 2, r.QueryData)
}

func (r *QuerySmartContractStateRequest) Unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, v []byte) {
		switch num {
		case 1:
			r.Address = string(v)
		case 2:
			r.QueryData = append([]byte(nil), v...)
		}
	})
}

// QuerySmartContractStateResponse is cosmwasm.wasm.v1.QuerySmartContractStateResponse.
type QuerySmartContractStateResponse struct {
	Data []byte
}

func (r *QuerySmartContractStateResponse) Marshal() []byte {
	return appendBytes(nil, 1, r.Data)
}

func (r *QuerySmartContractStateResponse) Unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, v []byte) {
		if num == 1 {
			r.Data = append([]byte(nil), v...)
		}
	})
}

// walk hands every length-delimited field of b to fn in wire order. Fields of other
// wire types are skipped unless their number is one fn reads, which is an error.
func walk(b []byte, fn func(num protowire.Number, v []byte)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if typ != protowire.BytesType {
			if num <= 2 {
				return fmt.Errorf("field %d: wire type %d, want %d", num, typ, protowire.BytesType)
			}
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		fn(num, v)
	}
	return nil
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}
