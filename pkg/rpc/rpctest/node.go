// Package rpctest runs an in-process CometBFT node that answers the queries the exporter makes.
package rpctest

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	bankv1beta1 "cosmossdk.io/api/cosmos/bank/v1beta1"
	stakingv1beta1 "cosmossdk.io/api/cosmos/staking/v1beta1"
	"github.com/canopy-network/dropcamp/pkg/rpc"
	"google.golang.org/protobuf/proto"
)

// Handler answers a raw ABCI query. A returned error becomes a non-zero response code.
type Handler func(req []byte) ([]byte, error)

// ContractHandler answers a smart query. The result is marshalled to JSON.
type ContractHandler func(query json.RawMessage) (any, error)

// Node is a fake chain node backed by httptest.
type Node struct {
	*httptest.Server

	mu          sync.Mutex
	chainID     string
	tip         uint64
	tipTime     time.Time
	heights     []uint64
	handlers    map[string]Handler
	contracts   map[string]ContractHandler
	balances    map[string][]*rpc.Coin
	delegations map[string][]*rpc.DelegationResponse
}

// NewNode starts a node at tip height 100 and stops it when the test ends.
func NewNode(t testing.TB) *Node {
	t.Helper()
	n := &Node{
		chainID:     "archway-1",
		tip:         100,
		tipTime:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		handlers:    map[string]Handler{},
		contracts:   map[string]ContractHandler{},
		balances:    map[string][]*rpc.Coin{},
		delegations: map[string][]*rpc.DelegationResponse{},
	}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.Close)
	return n
}

// SetTip moves the chain tip.
func (n *Node) SetTip(height uint64, at time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tip, n.tipTime = height, at
}

// SetChainID changes the chain id reported in block headers.
func (n *Node) SetChainID(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chainID = id
}

// Handle routes an ABCI path to h, overriding the built-in bank, staking and wasm handlers.
func (n *Node) Handle(path string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[path] = h
}

// HandleContract routes smart queries for address to h.
func (n *Node) HandleContract(address string, h ContractHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.contracts[address] = h
}

// SetBalances sets the bank balances returned for address.
func (n *Node) SetBalances(address string, coins ...*rpc.Coin) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[address] = coins
}

// SetDelegations sets the delegations returned for delegator.
func (n *Node) SetDelegations(delegator string, d ...*rpc.DelegationResponse) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delegations[delegator] = d
}

// QueryHeights returns the height carried by every abci_query, in arrival order.
func (n *Node) QueryHeights() []uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uint64(nil), n.heights...)
}

// Queries returns how many abci_query calls were served.
func (n *Node) Queries() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.heights)
}

type request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		result any
		rerr   *rpcError
	)
	switch req.Method {
	case "block":
		result, rerr = n.block(req.Params)
	case "abci_query":
		result, rerr = n.abciQuery(req.Params)
	default:
		rerr = &rpcError{Code: -32601, Message: "Method not found"}
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rerr != nil {
		resp["error"] = rerr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *Node) block(raw json.RawMessage) (any, *rpcError) {
	var params struct {
		Height string `json:"height"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, &rpcError{Code: -32602, Message: "Invalid params", Data: err.Error()}
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	height := n.tip
	if params.Height != "" {
		h, err := strconv.ParseUint(params.Height, 10, 64)
		if err != nil {
			return nil, &rpcError{Code: -32602, Message: "Invalid params", Data: err.Error()}
		}
		if h > n.tip {
			return nil, &rpcError{Code: -32603, Message: "Internal error",
				Data: fmt.Sprintf("height %d must be less than or equal to the current blockchain height %d", h, n.tip)}
		}
		height = h
	}
	// Blocks are spaced 6s apart below the tip.
	at := n.tipTime.Add(-time.Duration(n.tip-height) * 6 * time.Second)

	header := map[string]any{
		"chain_id": n.chainID,
		"height":   strconv.FormatUint(height, 10),
		"time":     at.Format(time.RFC3339Nano),
	}
	return map[string]any{"block": map[string]any{"header": header}}, nil
}

func (n *Node) abciQuery(raw json.RawMessage) (any, *rpcError) {
	var params struct {
		Path   string `json:"path"`
		Data   string `json:"data"`
		Height string `json:"height"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &rpcError{Code: -32602, Message: "Invalid params", Data: err.Error()}
	}
	height, _ := strconv.ParseUint(params.Height, 10, 64)
	data, err := hex.DecodeString(params.Data)
	if err != nil {
		return nil, &rpcError{Code: -32602, Message: "Invalid params", Data: err.Error()}
	}

	n.mu.Lock()
	n.heights = append(n.heights, height)
	h, ok := n.handlers[params.Path]
	n.mu.Unlock()
	if !ok {
		h = n.builtin(params.Path)
	}

	response := map[string]any{"height": params.Height}
	if h == nil {
		response["code"] = 6
		response["codespace"] = "sdk"
		response["log"] = "unknown query path " + params.Path
		return map[string]any{"response": response}, nil
	}

	value, err := h(data)
	if err != nil {
		response["code"] = 1
		response["codespace"] = "wasm"
		response["log"] = err.Error()
		return map[string]any{"response": response}, nil
	}
	response["code"] = 0
	response["value"] = base64.StdEncoding.EncodeToString(value)
	return map[string]any{"response": response}, nil
}

func (n *Node) builtin(path string) Handler {
	switch path {
	case rpc.QueryPath(rpc.BankService, rpc.AllBalancesMethod):
		return n.allBalances
	case rpc.QueryPath(rpc.StakingService, rpc.DelegatorDelegationsMethod):
		return n.delegatorDelegations
	case rpc.QueryPath(rpc.CosmWasmService, rpc.SmartContractStateMethod):
		return n.smartContractState
	}
	return nil
}

func (n *Node) allBalances(data []byte) ([]byte, error) {
	var req bankv1beta1.QueryAllBalancesRequest
	if err := proto.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	n.mu.Lock()
	resp := &bankv1beta1.QueryAllBalancesResponse{Balances: n.balances[req.Address]}
	n.mu.Unlock()
	return proto.Marshal(resp)
}

func (n *Node) delegatorDelegations(data []byte) ([]byte, error) {
	var req stakingv1beta1.QueryDelegatorDelegationsRequest
	if err := proto.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	n.mu.Lock()
	resp := &stakingv1beta1.QueryDelegatorDelegationsResponse{DelegationResponses: n.delegations[req.DelegatorAddr]}
	n.mu.Unlock()
	return proto.Marshal(resp)
}

func (n *Node) smartContractState(data []byte) ([]byte, error) {
	var req rpc.QuerySmartContractStateRequest
	if err := req.Unmarshal(data); err != nil {
		return nil, err
	}
	n.mu.Lock()
	h, ok := n.contracts[req.Address]
	n.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no such contract: %s", req.Address)
	}

	out, err := h(req.QueryData)
	if err != nil {
		return nil, err
	}
	reply, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	resp := rpc.QuerySmartContractStateResponse{Data: reply}
	return resp.Marshal(), nil
}
