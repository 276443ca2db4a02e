package rpc

import (
	"context"

	bankv1beta1 "cosmossdk.io/api/cosmos/bank/v1beta1"
	queryv1beta1 "cosmossdk.io/api/cosmos/base/query/v1beta1"
	basev1beta1 "cosmossdk.io/api/cosmos/base/v1beta1"
	"google.golang.org/protobuf/proto"
)

// PageLimit is the page size for bank and staking queries. A single page is assumed to hold
// every entry for one address.
const PageLimit = 1000

// Coin is cosmos.base.v1beta1.Coin. Amount is the raw integer string.
type Coin = basev1beta1.Coin

// Querier runs a single ABCI query. *Client implements it.
type Querier interface {
	Query(ctx context.Context, service, method string, req, resp proto.Message) error
}

// Bank reads cosmos.bank.v1beta1.
type Bank struct {
	q Querier
}

// NewBank returns a bank query client.
func NewBank(q Querier) *Bank { return &Bank{q: q} }

// AllBalances returns every coin held by address, raw amounts, chain order.
func (b *Bank) AllBalances(ctx context.Context, address string) ([]*Coin, error) {
	req := &bankv1beta1.QueryAllBalancesRequest{
		Address:    address,
		Pagination: &queryv1beta1.PageRequest{Limit: PageLimit},
	}
	var resp bankv1beta1.QueryAllBalancesResponse
	if err := b.q.Query(ctx, BankService, AllBalancesMethod, req, &resp); err != nil {
		return nil, err
	}
	return resp.Balances, nil
}
