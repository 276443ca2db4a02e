package exporters

import (
	"context"

	"github.com/canopy-network/dropcamp/pkg/astrovault"
	"github.com/canopy-network/dropcamp/pkg/coingecko"
	"github.com/canopy-network/dropcamp/pkg/contracts/liquid"
	"github.com/canopy-network/dropcamp/pkg/rpc"
	"github.com/shopspring/decimal"
)

// BankReader is the bank query the balances exporter needs.
type BankReader interface {
	AllBalances(ctx context.Context, address string) ([]*rpc.Coin, error)
}

// PriceSource resolves USD prices by id.
type PriceSource interface {
	Prices(ctx context.Context, ids []string) (map[string]coingecko.Price, error)
}

// DelegationReader is the staking query the staking exporter needs.
type DelegationReader interface {
	Delegations(ctx context.Context, delegator string) ([]*rpc.DelegationResponse, error)
}

// NameResolver lists the registry names owned by an address.
type NameResolver interface {
	Names(ctx context.Context, address string) ([]string, error)
}

// CW20 is the token the liquid exporter reads.
type CW20 interface {
	TokenInfo(ctx context.Context) (liquid.TokenInfo, error)
	Balance(ctx context.Context, address string, decimals uint8) (decimal.Decimal, error)
}

// WalletStats is the DEX stats service.
type WalletStats interface {
	Stats(ctx context.Context, address string) (astrovault.Stats, error)
	TVL(ctx context.Context, address string) (astrovault.TVL, error)
}
