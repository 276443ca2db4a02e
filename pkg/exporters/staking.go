package exporters

import (
	"context"
	"fmt"
	"strings"

	"github.com/canopy-network/dropcamp/pkg/coin"
	"github.com/canopy-network/dropcamp/pkg/contracts/soulbound"
	"github.com/canopy-network/dropcamp/pkg/ranking"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StakingName is the staking exporter and file name.
const StakingName = "staking"

// Staking sums native-token delegations and ranks the total.
type Staking struct {
	sink[stakingRow]
	staking  DelegationReader
	decimals uint8
	ranking  *ranking.Ranking
}

// NewStaking opens staking.csv in dir. decimals is the native token's exponent.
func NewStaking(logger *zap.Logger, dir string, r *ranking.Ranking, staking DelegationReader, decimals uint8) (*Staking, error) {
	s, err := openSink[stakingRow](logger, dir, StakingName)
	if err != nil {
		return nil, err
	}
	return &Staking{sink: s, staking: staking, decimals: decimals, ranking: r}, nil
}

// Export implements Exporter.
func (e *Staking) Export(ctx context.Context, h soulbound.Holder) error {
	resps, err := e.staking.Delegations(ctx, h.Owner)
	if err != nil {
		return fmt.Errorf("delegations of %s: %w", h.Owner, err)
	}

	total := decimal.Zero
	validators := make([]string, 0, len(resps))
	for _, d := range resps {
		if d.Delegation == nil || d.Balance == nil {
			continue
		}
		amount, err := coin.Scale(d.Balance.Amount, int32(e.decimals))
		if err != nil {
			return fmt.Errorf("delegations of %s: %w", h.Owner, err)
		}
		validators = append(validators, d.Delegation.ValidatorAddress)
		total = total.Add(amount.Truncate(2))
	}

	score, err := coin.Float64(total)
	if err != nil {
		return err
	}
	e.logger.Debug("total delegations",
		zap.String("address", h.Owner),
		zap.String("delegated", total.String()),
		zap.Strings("validators", validators),
	)

	return e.write(ctx, stakingRow{
		address:    h.Owner,
		ranking:    e.ranking.Archway.Activities.Stake.Ranking(score),
		delegated:  total,
		validators: validators,
	})
}

type stakingRow struct {
	address    string
	ranking    float64
	delegated  decimal.Decimal
	validators []string
}

func (stakingRow) Header() []string {
	return []string{"address", "ranking", "total_delegated", "validators"}
}

func (r stakingRow) Rows() [][]string {
	return [][]string{{
		r.address,
		ranking.Format(r.ranking),
		r.delegated.StringFixed(2),
		strings.Join(r.validators, ","),
	}}
}
