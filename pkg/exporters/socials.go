package exporters

import (
	"context"
	"strconv"

	"github.com/canopy-network/dropcamp/pkg/contracts/soulbound"
	"github.com/canopy-network/dropcamp/pkg/ranking"
	"go.uber.org/zap"
)

// SocialsName is the socials exporter and file name.
const SocialsName = "socials"

// Socials writes the soulbound patch and social score of every holder.
type Socials struct {
	sink[socialRow]
	ranking *ranking.Ranking
}

// NewSocials opens socials.csv in dir.
func NewSocials(logger *zap.Logger, dir string, r *ranking.Ranking) (*Socials, error) {
	s, err := openSink[socialRow](logger, dir, SocialsName)
	if err != nil {
		return nil, err
	}
	return &Socials{sink: s, ranking: r}, nil
}

// Export implements Exporter.
func (e *Socials) Export(ctx context.Context, h soulbound.Holder) error {
	row := socialRow{
		address:     h.Owner,
		ranking:     e.ranking.SocialRanking(h.SocialScore),
		patchName:   h.PatchName,
		socialScore: h.SocialScore,
	}
	e.logger.Debug("soulbound patch", zap.String("address", h.Owner), zap.String("tokenId", h.TokenID))
	return e.write(ctx, row)
}

type socialRow struct {
	address     string
	ranking     float64
	patchName   string
	socialScore uint16
}

func (socialRow) Header() []string {
	return []string{"address", "ranking", "patch_name", "social_score"}
}

func (r socialRow) Rows() [][]string {
	return [][]string{{
		r.address,
		ranking.Format(r.ranking),
		r.patchName,
		strconv.FormatUint(uint64(r.socialScore), 10),
	}}
}
