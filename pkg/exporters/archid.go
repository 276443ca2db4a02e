package exporters

import (
	"context"
	"strconv"
	"strings"

	"github.com/canopy-network/dropcamp/pkg/contracts/soulbound"
	"github.com/canopy-network/dropcamp/pkg/ranking"
	"go.uber.org/zap"
)

// ArchIDName is the archid exporter and file name.
const ArchIDName = "archid"

// ArchID counts the registry names owned by each holder.
type ArchID struct {
	sink[archIDRow]
	names   NameResolver
	ranking *ranking.Ranking
}

// NewArchID opens archid.csv in dir.
func NewArchID(logger *zap.Logger, dir string, r *ranking.Ranking, names NameResolver) (*ArchID, error) {
	s, err := openSink[archIDRow](logger, dir, ArchIDName)
	if err != nil {
		return nil, err
	}
	return &ArchID{sink: s, names: names, ranking: r}, nil
}

// Export implements Exporter.
func (e *ArchID) Export(ctx context.Context, h soulbound.Holder) error {
	names, err := e.names.Names(ctx, h.Owner)
	if err != nil {
		return err
	}
	return e.write(ctx, archIDRow{
		address: h.Owner,
		ranking: e.ranking.Ecosystem.Activities.ArchID.Ranking(float64(len(names))),
		names:   names,
	})
}

type archIDRow struct {
	address string
	ranking float64
	names   []string
}

func (archIDRow) Header() []string {
	return []string{"address", "ranking", "name_count", "names"}
}

func (r archIDRow) Rows() [][]string {
	return [][]string{{
		r.address,
		ranking.Format(r.ranking),
		strconv.Itoa(len(r.names)),
		strings.Join(r.names, ","),
	}}
}
