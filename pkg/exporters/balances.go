package exporters

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/canopy-network/dropcamp/pkg/coin"
	"github.com/canopy-network/dropcamp/pkg/contracts/soulbound"
	"github.com/canopy-network/dropcamp/pkg/errs"
	"github.com/canopy-network/dropcamp/pkg/ranking"
	"github.com/canopy-network/dropcamp/pkg/utils"
	"go.uber.org/zap"
)

// BalancesName is the balances exporter and file name.
const BalancesName = "balances"

// Balances values every priced bank balance in USD and ranks the total.
type Balances struct {
	sink[balanceRow]
	bank    BankReader
	prices  PriceSource
	tokens  coin.TokenMap
	ranking *ranking.Ranking
}

// NewBalances opens balances.csv in dir.
func NewBalances(logger *zap.Logger, dir string, r *ranking.Ranking, bank BankReader, prices PriceSource, tokens coin.TokenMap) (*Balances, error) {
	s, err := openSink[balanceRow](logger, dir, BalancesName)
	if err != nil {
		return nil, err
	}
	return &Balances{sink: s, bank: bank, prices: prices, tokens: tokens, ranking: r}, nil
}

// Export implements Exporter.
func (e *Balances) Export(ctx context.Context, h soulbound.Holder) error {
	raw, err := e.bank.AllBalances(ctx, h.Owner)
	if err != nil {
		return fmt.Errorf("balances of %s: %w", h.Owner, err)
	}

	coins := make([]coin.Coin, 0, len(raw))
	for _, rc := range raw {
		c, ok, err := e.tokens.Coin(rc.Denom, rc.Amount)
		if err != nil {
			return fmt.Errorf("balances of %s: %w", h.Owner, err)
		}
		if !ok {
			e.logger.Debug("dropping unknown denom", zap.String("address", h.Owner), zap.String("denom", rc.Denom))
			continue
		}
		if c.PriceID == "" {
			e.logger.Debug("dropping unpriced denom", zap.String("address", h.Owner), zap.String("denom", rc.Denom))
			continue
		}
		coins = append(coins, c)
	}

	ids := make([]string, 0, len(coins))
	for _, c := range coins {
		ids = append(ids, c.PriceID)
	}
	prices, err := e.prices.Prices(ctx, utils.Dedup(ids))
	if err != nil {
		return fmt.Errorf("balances of %s: %w", h.Owner, err)
	}

	var usd float64
	for _, c := range coins {
		p, ok := prices[c.PriceID]
		if !ok {
			return errs.MissingPrice(c.PriceID)
		}
		v, err := c.Value(p.USD)
		if err != nil {
			return err
		}
		usd += v
	}
	if math.IsInf(usd, 0) {
		return errs.Ef(errs.ErrArithmetic, "usd total", "overflow for %s", h.Owner)
	}

	return e.write(ctx, balanceRow{
		address: h.Owner,
		ranking: e.ranking.Archway.Activities.IBC.Ranking(usd),
		usd:     usd,
		coins:   coins,
	})
}

type balanceRow struct {
	address string
	ranking float64
	usd     float64
	coins   []coin.Coin
}

func (balanceRow) Header() []string {
	return []string{"address", "ranking", "usd_total", "balances"}
}

func (r balanceRow) Rows() [][]string {
	coins := make([]string, len(r.coins))
	for i, c := range r.coins {
		coins[i] = c.String()
	}
	return [][]string{{
		r.address,
		ranking.Format(r.ranking),
		fmt.Sprintf("%.2f", r.usd),
		strings.Join(coins, ","),
	}}
}
