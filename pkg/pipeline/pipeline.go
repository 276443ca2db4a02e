// Package pipeline runs a snapshot: enumerate soulbound holders, then feed every holder
// through every exporter with bounded concurrency, stopping at the first error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/dropcamp/pkg/contracts/soulbound"
	"github.com/canopy-network/dropcamp/pkg/errs"
	"github.com/canopy-network/dropcamp/pkg/exporters"
	"go.uber.org/zap"
)

// DefaultHolderConcurrency is how many holders are exported at once.
const DefaultHolderConcurrency = 32

// Source enumerates holders. *soulbound.Token implements it.
type Source interface {
	Holders(ctx context.Context) ([]soulbound.Holder, error)
}

// Opts is the set of options for Run.
type Opts struct {
	// Output is the directory CSV files are written to. It is created if missing.
	Output string
	// Exporters selects exporters by name; empty means exporters.All.
	Exporters []string
	// HolderConcurrency defaults to DefaultHolderConcurrency.
	HolderConcurrency int
	// Deps supplies the exporters' collaborators. Dir is set from Output.
	Deps exporters.Deps
}

// Summary describes a finished run.
type Summary struct {
	Holders int
	// Rows is the number of data rows per exporter.
	Rows    map[string]uint64
	Elapsed time.Duration
}

// Run executes one snapshot. On failure partially written files stay in Output.
func Run(ctx context.Context, logger *zap.Logger, source Source, o Opts) (sum Summary, err error) {
	start := time.Now()
	if logger == nil {
		logger = zap.NewNop()
	}
	if o.HolderConcurrency <= 0 {
		o.HolderConcurrency = DefaultHolderConcurrency
	}
	if len(o.Exporters) == 0 {
		o.Exporters = exporters.All
	}
	if o.Output == "" {
		return sum, errs.Ef(errs.ErrConfig, "pipeline", "missing output directory")
	}

	if err := os.MkdirAll(o.Output, 0o755); err != nil {
		return sum, errs.E(errs.ErrIO, "create output directory", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deps := o.Deps
	deps.Dir = o.Output
	deps.Logger = logger
	exps, err := exporters.Open(ctx, o.Exporters, deps)
	if err != nil {
		return sum, err
	}
	defer func() {
		// Every Export has returned by now; closing drains the queues to disk.
		for _, e := range exps {
			if cerr := e.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		sum.Rows = make(map[string]uint64, len(exps))
		for _, e := range exps {
			sum.Rows[e.Name()] = e.Rows()
		}
		sum.Elapsed = time.Since(start)
		if err == nil {
			logSummary(logger, sum)
		}
	}()

	holders, err := source.Holders(ctx)
	if err != nil {
		return sum, fmt.Errorf("enumerate holders: %w", err)
	}
	sum.Holders = len(holders)
	logger.Info("exporting holders", zap.Int("holders", len(holders)), zap.Strings("exporters", o.Exporters))

	err = exportAll(ctx, holders, exps, o.HolderConcurrency)
	return sum, err
}

// exportAll runs every exporter for every holder. Holders run on one pool and each holder's
// exporters on a second, so a holder waiting on its exporters never starves them of workers.
func exportAll(ctx context.Context, holders []soulbound.Holder, exps []exporters.Exporter, concurrency int) error {
	if len(holders) == 0 || len(exps) == 0 {
		return nil
	}

	holderPool := pond.NewPool(concurrency, pond.WithQueueSize(len(holders)))
	exportPool := pond.NewPool(concurrency * len(exps))
	defer func() {
		holderPool.StopAndWait()
		exportPool.StopAndWait()
	}()

	group := holderPool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, h := range holders {
		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return exportHolder(groupCtx, exportPool, h, exps)
		})
	}

	err := group.Wait()
	if err == nil {
		return nil
	}
	if errors.Is(err, pond.ErrGroupStopped) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func exportHolder(ctx context.Context, pool pond.Pool, h soulbound.Holder, exps []exporters.Exporter) error {
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, e := range exps {
		group.SubmitErr(func() error {
			if err := e.Export(groupCtx, h); err != nil {
				return fmt.Errorf("%s exporter: %w", e.Name(), err)
			}
			return nil
		})
	}
	return group.Wait()
}

func logSummary(logger *zap.Logger, sum Summary) {
	fields := []zap.Field{
		zap.Int("holders", sum.Holders),
		zap.Duration("elapsed", sum.Elapsed),
	}
	for name, rows := range sum.Rows {
		fields = append(fields, zap.Uint64(name, rows))
	}
	logger.Info("snapshot finished", fields...)
}
