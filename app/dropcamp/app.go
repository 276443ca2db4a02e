package dropcamp

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/canopy-network/dropcamp/pkg/astrovault"
	"github.com/canopy-network/dropcamp/pkg/coin"
	"github.com/canopy-network/dropcamp/pkg/coingecko"
	"github.com/canopy-network/dropcamp/pkg/contracts/archid"
	"github.com/canopy-network/dropcamp/pkg/contracts/liquid"
	"github.com/canopy-network/dropcamp/pkg/contracts/soulbound"
	"github.com/canopy-network/dropcamp/pkg/errs"
	"github.com/canopy-network/dropcamp/pkg/exporters"
	"github.com/canopy-network/dropcamp/pkg/pipeline"
	"github.com/canopy-network/dropcamp/pkg/ranking"
	"github.com/canopy-network/dropcamp/pkg/rpc"
	"go.uber.org/zap"
)

// Config is everything a snapshot run needs.
type Config struct {
	ChainID       string
	AddressPrefix string
	Denom         string
	Decimals      uint8

	RPCURL       string
	RPCRateLimit int
	// Height pins an explicit block; zero pins the tip.
	Height uint64

	SoulboundAddress     string
	ArchIDAddress        string
	LiquidFinanceAddress string

	CoingeckoURL        string
	AstrovaultURL       string
	AstrovaultAPIKey    string
	AstrovaultRateLimit int

	RankingPath string
	TokensPath  string
	Output      string
	LogLevel    string
	// Exporters selects a subset of exporters.All; empty means all.
	Exporters []string
	// HolderConcurrency defaults to pipeline.DefaultHolderConcurrency.
	HolderConcurrency int
}

// DefaultConfig returns the Archway mainnet defaults.
func DefaultConfig() Config {
	return Config{
		ChainID:       "archway-1",
		AddressPrefix: "archway",
		Denom:         "aarch",
		Decimals:      18,
		CoingeckoURL:  coingecko.DefaultURL,
		RankingPath:   "config/ranking.toml",
		TokensPath:    "config/tokens.toml",
		Output:        "output",
		LogLevel:      "info",
	}
}

func (c Config) exporters() []string {
	if len(c.Exporters) == 0 {
		return exporters.All
	}
	return c.Exporters
}

func (c Config) uses(name string) bool {
	return slices.Contains(c.exporters(), name)
}

// Validate checks the config for missing and malformed values. Addresses and endpoints that
// only unselected exporters need are not required.
func (c Config) Validate() error {
	if c.Denom == "" {
		return errs.Ef(errs.ErrConfig, "config", "missing denom")
	}
	if c.Output == "" {
		return errs.Ef(errs.ErrConfig, "config", "missing output directory")
	}
	if c.RankingPath == "" {
		return errs.Ef(errs.ErrConfig, "config", "missing ranking path")
	}
	if err := validURL("rpc url", c.RPCURL); err != nil {
		return err
	}
	for _, name := range c.Exporters {
		if !exporters.Known(name) {
			return errs.Ef(errs.ErrConfig, "config", "unknown exporter %q", name)
		}
	}

	if err := c.validAddress("soulbound address", c.SoulboundAddress); err != nil {
		return err
	}
	if c.uses(exporters.ArchIDName) {
		if err := c.validAddress("archid address", c.ArchIDAddress); err != nil {
			return err
		}
	}
	if c.uses(exporters.LiquidFinanceName) {
		if err := c.validAddress("liquid finance address", c.LiquidFinanceAddress); err != nil {
			return err
		}
	}
	if c.uses(exporters.BalancesName) {
		if c.TokensPath == "" {
			return errs.Ef(errs.ErrConfig, "config", "missing tokens path")
		}
		if err := validURL("coingecko url", c.CoingeckoURL); err != nil {
			return err
		}
	}
	if c.uses(exporters.AstrovaultName) {
		if err := validURL("astrovault url", c.AstrovaultURL); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) validAddress(name, addr string) error {
	if addr == "" {
		return errs.Ef(errs.ErrConfig, "config", "missing %s", name)
	}
	hrp, _, err := bech32.Decode(addr)
	if err != nil {
		return errs.E(errs.ErrConfig, "config "+name, err)
	}
	if c.AddressPrefix != "" && hrp != c.AddressPrefix {
		return errs.Ef(errs.ErrConfig, "config "+name, "prefix %q, want %q", hrp, c.AddressPrefix)
	}
	return nil
}

func validURL(name, raw string) error {
	if raw == "" {
		return errs.Ef(errs.ErrConfig, "config", "missing %s", name)
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		return errs.E(errs.ErrConfig, "config "+name, err)
	}
	return nil
}

// App holds the clients of one snapshot run, all bound to the same block.
type App struct {
	Config Config
	Logger *zap.Logger

	RPC        *rpc.Client
	Source     *soulbound.Token
	Prices     *coingecko.Client
	Astrovault *astrovault.Client
	Deps       exporters.Deps
}

// Initialize validates cfg, pins the block and builds every client the selected exporters need.
func Initialize(ctx context.Context, logger *zap.Logger, cfg Config) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r, err := ranking.Load(cfg.RankingPath)
	if err != nil {
		return nil, err
	}

	client, err := rpc.New(ctx, logger, rpc.Opts{
		URL:       cfg.RPCURL,
		ChainID:   cfg.ChainID,
		RateLimit: cfg.RPCRateLimit,
		Height:    cfg.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("pin block: %w", err)
	}
	wasm := rpc.NewCosmWasm(client)

	app := &App{
		Config: cfg,
		Logger: logger,
		RPC:    client,
		Source: soulbound.New(logger, wasm, cfg.SoulboundAddress),
		Deps: exporters.Deps{
			Ranking:  r,
			Decimals: cfg.Decimals,
			Staking:  rpc.NewStaking(client),
		},
	}

	if cfg.uses(exporters.BalancesName) {
		tokens, err := coin.LoadTokenMap(cfg.TokensPath)
		if err != nil {
			return nil, err
		}
		if info, ok := tokens[cfg.Denom]; ok && info.Decimals != cfg.Decimals {
			return nil, errs.Ef(errs.ErrConfig, "config", "token map gives %s %d decimals, want %d", cfg.Denom, info.Decimals, cfg.Decimals)
		}
		app.Prices = coingecko.New(logger, coingecko.Opts{URL: cfg.CoingeckoURL})
		app.Deps.Bank = rpc.NewBank(client)
		app.Deps.Prices = app.Prices
		app.Deps.Tokens = tokens
	}
	if cfg.uses(exporters.ArchIDName) {
		app.Deps.Names = archid.New(logger, wasm, cfg.ArchIDAddress)
	}
	if cfg.uses(exporters.LiquidFinanceName) {
		app.Deps.Liquid = liquid.New(logger, wasm, cfg.LiquidFinanceAddress)
	}
	if cfg.uses(exporters.AstrovaultName) {
		app.Astrovault, err = astrovault.New(logger, astrovault.Opts{
			URL:       cfg.AstrovaultURL,
			APIKey:    cfg.AstrovaultAPIKey,
			RateLimit: cfg.AstrovaultRateLimit,
		})
		if err != nil {
			return nil, err
		}
		app.Deps.Astrovault = app.Astrovault
	}

	return app, nil
}

// Run takes the snapshot into Config.Output.
func (a *App) Run(ctx context.Context) (pipeline.Summary, error) {
	block := a.RPC.Block()
	a.Logger.Info("starting snapshot",
		zap.String("chainId", block.ChainID),
		zap.String("denom", a.Config.Denom),
		zap.Uint64("height", block.Height),
		zap.String("output", a.Config.Output),
	)

	sum, err := pipeline.Run(ctx, a.Logger, a.Source, pipeline.Opts{
		Output:            a.Config.Output,
		Exporters:         a.Config.exporters(),
		HolderConcurrency: a.Config.HolderConcurrency,
		Deps:              a.Deps,
	})

	fields := []zap.Field{zap.Uint64("rpcRequests", a.RPC.Dispatched())}
	if a.Prices != nil {
		fields = append(fields, zap.Uint64("priceRequests", a.Prices.Requests()))
	}
	if a.Astrovault != nil {
		fields = append(fields, zap.Uint64("astrovaultRequests", a.Astrovault.Requests()))
	}
	a.Logger.Debug("upstream requests", fields...)
	return sum, err
}
