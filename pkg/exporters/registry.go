package exporters

import (
	"context"
	"errors"
	"slices"

	"github.com/canopy-network/dropcamp/pkg/coin"
	"github.com/canopy-network/dropcamp/pkg/errs"
	"github.com/canopy-network/dropcamp/pkg/ranking"
	"go.uber.org/zap"
)

// All lists every exporter in output order.
var All = []string{SocialsName, BalancesName, StakingName, ArchIDName, LiquidFinanceName, AstrovaultName}

// Known reports whether name is an exporter.
func Known(name string) bool { return slices.Contains(All, name) }

// Deps are the collaborators exporters draw from. Only the ones the selected exporters use must be set.
type Deps struct {
	Dir     string
	Logger  *zap.Logger
	Ranking *ranking.Ranking
	// Decimals of the native staking token.
	Decimals uint8

	Bank       BankReader
	Prices     PriceSource
	Tokens     coin.TokenMap
	Staking    DelegationReader
	Names      NameResolver
	Liquid     CW20
	Astrovault WalletStats
}

// Open builds the named exporters, each creating its file in d.Dir. On error every exporter
// opened so far is closed.
func Open(ctx context.Context, names []string, d Deps) (out []Exporter, err error) {
	if d.Ranking == nil {
		return nil, errs.Ef(errs.ErrConfig, "exporters", "missing ranking")
	}
	defer func() {
		if err != nil {
			for _, e := range out {
				_ = e.Close()
			}
			out = nil
		}
	}()

	for _, name := range names {
		e, err := open(ctx, name, d)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

func open(ctx context.Context, name string, d Deps) (Exporter, error) {
	missing := func(dep string) error {
		return errs.Ef(errs.ErrConfig, "exporter "+name, "missing %s", dep)
	}

	switch name {
	case SocialsName:
		return NewSocials(d.Logger, d.Dir, d.Ranking)
	case BalancesName:
		if d.Bank == nil || d.Prices == nil {
			return nil, missing("bank or price source")
		}
		return NewBalances(d.Logger, d.Dir, d.Ranking, d.Bank, d.Prices, d.Tokens)
	case StakingName:
		if d.Staking == nil {
			return nil, missing("staking")
		}
		return NewStaking(d.Logger, d.Dir, d.Ranking, d.Staking, d.Decimals)
	case ArchIDName:
		if d.Names == nil {
			return nil, missing("name registry")
		}
		return NewArchID(d.Logger, d.Dir, d.Ranking, d.Names)
	case LiquidFinanceName:
		if d.Liquid == nil {
			return nil, missing("liquid token")
		}
		return NewLiquidFinance(ctx, d.Logger, d.Dir, d.Ranking, d.Liquid)
	case AstrovaultName:
		if d.Astrovault == nil {
			return nil, missing("astrovault")
		}
		return NewAstrovault(d.Logger, d.Dir, d.Ranking, d.Astrovault)
	}
	return nil, errs.E(errs.ErrConfig, "exporter "+name, errors.New("unknown exporter"))
}
