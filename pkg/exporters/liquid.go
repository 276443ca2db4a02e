package exporters

import (
	"context"
	"fmt"

	"github.com/canopy-network/dropcamp/pkg/coin"
	"github.com/canopy-network/dropcamp/pkg/contracts/soulbound"
	"github.com/canopy-network/dropcamp/pkg/ranking"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LiquidFinanceName is the liquid staking exporter and file name.
const LiquidFinanceName = "liquid-finance"

// LiquidFinance reads each holder's liquid staking token balance.
type LiquidFinance struct {
	sink[liquidRow]
	token    CW20
	decimals uint8
	ranking  *ranking.Ranking
}

// NewLiquidFinance reads the token's decimals once, then opens liquid-finance.csv in dir.
func NewLiquidFinance(ctx context.Context, logger *zap.Logger, dir string, r *ranking.Ranking, token CW20) (*LiquidFinance, error) {
	info, err := token.TokenInfo(ctx)
	if err != nil {
		return nil, err
	}
	s, err := openSink[liquidRow](logger, dir, LiquidFinanceName)
	if err != nil {
		return nil, err
	}
	s.logger.Info("liquid token", zap.String("symbol", info.Symbol), zap.Uint8("decimals", info.Decimals))
	return &LiquidFinance{sink: s, token: token, decimals: info.Decimals, ranking: r}, nil
}

// Export implements Exporter.
func (e *LiquidFinance) Export(ctx context.Context, h soulbound.Holder) error {
	balance, err := e.token.Balance(ctx, h.Owner, e.decimals)
	if err != nil {
		return fmt.Errorf("liquid balance of %s: %w", h.Owner, err)
	}
	score, err := coin.Float64(balance)
	if err != nil {
		return err
	}
	return e.write(ctx, liquidRow{
		address: h.Owner,
		ranking: e.ranking.Ecosystem.Activities.LiquidFinance.Ranking(score),
		balance: balance,
	})
}

type liquidRow struct {
	address string
	ranking float64
	balance decimal.Decimal
}

func (liquidRow) Header() []string {
	return []string{"address", "ranking", "balance"}
}

func (r liquidRow) Rows() [][]string {
	return [][]string{{r.address, ranking.Format(r.ranking), r.balance.String()}}
}
