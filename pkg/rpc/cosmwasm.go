package rpc

import (
	"context"
	"encoding/json"

	"github.com/canopy-network/dropcamp/pkg/errs"
)

// RawQuerier runs a single ABCI query on encoded bytes. *Client implements it.
type RawQuerier interface {
	QueryRaw(ctx context.Context, service, method string, data []byte) ([]byte, error)
}

// CosmWasm reads cosmwasm.wasm.v1.
type CosmWasm struct {
	q RawQuerier
}

// NewCosmWasm returns a wasm query client.
func NewCosmWasm(q RawQuerier) *CosmWasm { return &CosmWasm{q: q} }

// SmartContractState sends raw query bytes to a contract and returns the raw reply.
func (w *CosmWasm) SmartContractState(ctx context.Context, address string, query []byte) ([]byte, error) {
	req := QuerySmartContractStateRequest{Address: address, QueryData: query}
	value, err := w.q.QueryRaw(ctx, CosmWasmService, SmartContractStateMethod, req.Marshal())
	if err != nil {
		return nil, err
	}
	var resp QuerySmartContractStateResponse
	if err := resp.Unmarshal(value); err != nil {
		return nil, errs.E(errs.ErrDecode, QueryPath(CosmWasmService, SmartContractStateMethod), err)
	}
	return resp.Data, nil
}

// QueryContract marshals payload to JSON, runs it against the contract at address and
// decodes the JSON reply into out.
func (w *CosmWasm) QueryContract(ctx context.Context, address string, payload any, out any) error {
	query, err := json.Marshal(payload)
	if err != nil {
		return errs.E(errs.ErrEncode, "query contract "+address, err)
	}
	data, err := w.SmartContractState(ctx, address, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errs.E(errs.ErrDecode, "query contract "+address, err)
	}
	return nil
}
