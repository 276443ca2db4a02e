// Package exporters turns soulbound holders into ranked CSV rows, one file per dimension.
package exporters

import (
	"context"
	"path/filepath"

	"github.com/canopy-network/dropcamp/pkg/contracts/soulbound"
	"github.com/canopy-network/dropcamp/pkg/csv"
	"go.uber.org/zap"
)

// Exporter writes the rows of one holder to its own CSV file.
// Export is called concurrently across holders.
type Exporter interface {
	Name() string
	Export(ctx context.Context, h soulbound.Holder) error
	// Rows reports data rows written so far.
	Rows() uint64
	// Close flushes and closes the file. Export must not be running.
	Close() error
}

// sink is the CSV file shared by every exporter implementation.
type sink[T csv.Item] struct {
	name   string
	w      *csv.Writer[T]
	logger *zap.Logger
}

func openSink[T csv.Item](logger *zap.Logger, dir, name string) (sink[T], error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("exporter", name))
	w, err := csv.Create[T](logger, filepath.Join(dir, name+".csv"))
	if err != nil {
		return sink[T]{}, err
	}
	return sink[T]{name: name, w: w, logger: logger}, nil
}

func (s sink[T]) Name() string { return s.name }

func (s sink[T]) Rows() uint64 { return s.w.Rows() }

func (s sink[T]) Close() error { return s.w.Close() }

func (s sink[T]) write(ctx context.Context, item T) error {
	return s.w.Write(ctx, item)
}
