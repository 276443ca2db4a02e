// Package liquid reads the Liquid Finance cw20 token.
package liquid

import (
	"context"
	"fmt"

	"github.com/canopy-network/dropcamp/pkg/coin"
	"github.com/canopy-network/dropcamp/pkg/contracts"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceQuery struct {
	Balance struct {
		Address string `json:"address"`
	} `json:"balance"`
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

type tokenInfoQuery struct {
	TokenInfo struct{} `json:"token_info"`
}

// TokenInfo is the cw20 token_info reply.
type TokenInfo struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"total_supply"`
}

// Token queries one cw20 contract.
type Token struct {
	q       contracts.Querier
	address string
	logger  *zap.Logger
}

// New returns a cw20 querier for the contract at address.
func New(logger *zap.Logger, q contracts.Querier, address string) *Token {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Token{q: q, address: address, logger: logger}
}

// TokenInfo returns the token metadata.
func (t *Token) TokenInfo(ctx context.Context) (TokenInfo, error) {
	var info TokenInfo
	if err := t.q.QueryContract(ctx, t.address, tokenInfoQuery{}, &info); err != nil {
		return TokenInfo{}, fmt.Errorf("cw20 token_info: %w", err)
	}
	t.logger.Debug("cw20 token info",
		zap.String("symbol", info.Symbol),
		zap.Uint8("decimals", info.Decimals),
		zap.String("totalSupply", info.TotalSupply),
	)
	return info, nil
}

// RawBalance returns the unscaled balance of address as reported by the contract.
func (t *Token) RawBalance(ctx context.Context, address string) (string, error) {
	var q balanceQuery
	q.Balance.Address = address

	var resp balanceResponse
	if err := t.q.QueryContract(ctx, t.address, q, &resp); err != nil {
		return "", fmt.Errorf("cw20 balance: %w", err)
	}
	return resp.Balance, nil
}

// Balance returns the balance of address scaled by decimals.
func (t *Token) Balance(ctx context.Context, address string, decimals uint8) (decimal.Decimal, error) {
	raw, err := t.RawBalance(ctx, address)
	if err != nil {
		return decimal.Decimal{}, err
	}
	amount, err := coin.Scale(raw, int32(decimals))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("cw20 balance: %w", err)
	}
	t.logger.Debug("cw20 token balance", zap.String("address", address), zap.String("balance", amount.String()))
	return amount, nil
}
