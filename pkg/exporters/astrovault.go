package exporters

import (
	"context"
	"fmt"
	"strconv"

	"github.com/canopy-network/dropcamp/pkg/contracts/soulbound"
	"github.com/canopy-network/dropcamp/pkg/ranking"
	"go.uber.org/zap"
)

// AstrovaultName is the astrovault exporter and file name.
const AstrovaultName = "astrovault"

// Astrovault records DEX activity and ranks the holder's TVL.
type Astrovault struct {
	sink[astrovaultRow]
	stats   WalletStats
	ranking *ranking.Ranking
}

// NewAstrovault opens astrovault.csv in dir.
func NewAstrovault(logger *zap.Logger, dir string, r *ranking.Ranking, stats WalletStats) (*Astrovault, error) {
	s, err := openSink[astrovaultRow](logger, dir, AstrovaultName)
	if err != nil {
		return nil, err
	}
	return &Astrovault{sink: s, stats: stats, ranking: r}, nil
}

// Export implements Exporter.
func (e *Astrovault) Export(ctx context.Context, h soulbound.Holder) error {
	stats, err := e.stats.Stats(ctx, h.Owner)
	if err != nil {
		return fmt.Errorf("astrovault stats of %s: %w", h.Owner, err)
	}
	tvl, err := e.stats.TVL(ctx, h.Owner)
	if err != nil {
		return fmt.Errorf("astrovault tvl of %s: %w", h.Owner, err)
	}
	return e.write(ctx, astrovaultRow{
		address:   h.Owner,
		ranking:   e.ranking.Ecosystem.Activities.Astrovault.Ranking(tvl.TVL),
		hasLPd:    stats.HasLPd,
		hasTraded: stats.HasTraded,
		tvl:       tvl.TVL,
	})
}

type astrovaultRow struct {
	address   string
	ranking   float64
	hasLPd    bool
	hasTraded bool
	tvl       float64
}

func (astrovaultRow) Header() []string {
	return []string{"address", "ranking", "has_lpd", "has_traded", "tvl"}
}

func (r astrovaultRow) Rows() [][]string {
	return [][]string{{
		r.address,
		ranking.Format(r.ranking),
		strconv.FormatBool(r.hasLPd),
		strconv.FormatBool(r.hasTraded),
		strconv.FormatFloat(r.tvl, 'f', -1, 64),
	}}
}
