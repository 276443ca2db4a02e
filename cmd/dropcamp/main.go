package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/canopy-network/dropcamp/app/dropcamp"
	"github.com/canopy-network/dropcamp/pkg/errs"
	"github.com/canopy-network/dropcamp/pkg/logging"
	"github.com/canopy-network/dropcamp/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var logger *zap.Logger
	cmd := newRootCommand(&logger)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if logger == nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		} else {
			logger.Error("snapshot failed", zap.Error(err), zap.NamedError("kind", errs.KindOf(err)))
			_ = logger.Sync()
		}
		cancel()
		os.Exit(1)
	}
}

// newRootCommand builds the snapshot command. Every flag defaults to its DROPCAMP_* variable.
func newRootCommand(logger **zap.Logger) *cobra.Command {
	cfg := dropcamp.DefaultConfig()
	decimals, decimalsErr := utils.EnvUint8("DROPCAMP_DECIMALS", cfg.Decimals)

	cmd := &cobra.Command{
		Use:   "dropcamp",
		Short: "Export a height-pinned snapshot of soulbound holders and their on-chain activity",
		Long: `Pins one block, enumerates every holder of the soulbound token and writes one CSV
per exporter (socials, balances, staking, archid, liquid-finance, astrovault) with a
0-100 ranking per activity.`,
		Example: `  dropcamp \
    --rpc-url https://rpc.mainnet.archway.io \
    --soulbound-address archway1... \
    --archid-address archway1... \
    --liquid-finance-address archway1... \
    --astrovault-url https://api.astrovault.io \
    --output snapshot

  # Socials and balances only, at a fixed height
  dropcamp --exporters socials,balances --height 4500000 ...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if decimalsErr != nil && !cmd.Flags().Changed("decimals") {
				return errs.E(errs.ErrConfig, "decimals", decimalsErr)
			}
			l, err := logging.New(cfg.LogLevel)
			if err != nil {
				return errs.E(errs.ErrConfig, "logger", err)
			}
			*logger = l
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Exporters = splitList(cfg.Exporters)

			app, err := dropcamp.Initialize(cmd.Context(), *logger, cfg)
			if err != nil {
				return err
			}
			_, err = app.Run(cmd.Context())
			if err != nil && errors.Is(err, context.Canceled) {
				return fmt.Errorf("interrupted: %w", err)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.ChainID, "chain-id", utils.Env("DROPCAMP_CHAIN_ID", cfg.ChainID), "expected chain id; empty accepts any")
	f.StringVar(&cfg.AddressPrefix, "address-prefix", utils.Env("DROPCAMP_ADDRESS_PREFIX", cfg.AddressPrefix), "bech32 prefix of contract addresses")
	f.StringVar(&cfg.Denom, "denom", utils.Env("DROPCAMP_DENOM", cfg.Denom), "native staking denom")
	f.Uint8Var(&cfg.Decimals, "decimals", decimals, "native denom decimals")

	f.StringVar(&cfg.RPCURL, "rpc-url", utils.Env("DROPCAMP_RPC_URL", ""), "CometBFT RPC endpoint")
	f.IntVar(&cfg.RPCRateLimit, "rpc-rate-limit", utils.EnvInt("DROPCAMP_RPC_RATE_LIMIT", 0), "RPC requests per second (0 = unlimited)")
	f.Uint64Var(&cfg.Height, "height", utils.EnvUint64("DROPCAMP_HEIGHT", 0), "block height to pin (0 = latest)")

	f.StringVar(&cfg.SoulboundAddress, "soulbound-address", utils.Env("DROPCAMP_SOULBOUND_ADDRESS", ""), "soulbound token contract")
	f.StringVar(&cfg.ArchIDAddress, "archid-address", utils.Env("DROPCAMP_ARCHID_ADDRESS", ""), "ArchID registry contract")
	f.StringVar(&cfg.LiquidFinanceAddress, "liquid-finance-address", utils.Env("DROPCAMP_LIQUID_FINANCE_ADDRESS", ""), "Liquid Finance cw20 contract")

	f.StringVar(&cfg.CoingeckoURL, "coingecko-url", utils.Env("DROPCAMP_COINGECKO_URL", cfg.CoingeckoURL), "CoinGecko API base url")
	f.StringVar(&cfg.AstrovaultURL, "astrovault-url", utils.Env("DROPCAMP_ASTROVAULT_URL", ""), "Astrovault API base url")
	f.StringVar(&cfg.AstrovaultAPIKey, "astrovault-api-key", utils.Env("DROPCAMP_ASTROVAULT_API_KEY", ""), "Astrovault API key")
	f.IntVar(&cfg.AstrovaultRateLimit, "astrovault-rate-limit", utils.EnvInt("DROPCAMP_ASTROVAULT_RATE_LIMIT", 0), "Astrovault requests per second (0 = unlimited)")

	f.StringVar(&cfg.RankingPath, "ranking", utils.Env("DROPCAMP_RANKING", cfg.RankingPath), "ranking TOML file")
	f.StringVar(&cfg.TokensPath, "tokens", utils.Env("DROPCAMP_TOKENS", cfg.TokensPath), "denomination table TOML file")
	f.StringVarP(&cfg.Output, "output", "o", utils.Env("DROPCAMP_OUTPUT", cfg.Output), "output directory")
	f.StringVar(&cfg.LogLevel, "log-level", utils.Env("DROPCAMP_LOG_LEVEL", cfg.LogLevel), "debug, info, warn or error")
	f.StringSliceVar(&cfg.Exporters, "exporters", splitList([]string{utils.Env("DROPCAMP_EXPORTERS", "")}), "exporters to run (default all)")
	f.IntVar(&cfg.HolderConcurrency, "holder-concurrency", utils.EnvInt("DROPCAMP_HOLDER_CONCURRENCY", 0), "holders exported at once (0 = default)")

	return cmd
}

// splitList trims entries, drops empty ones and splits any that still hold commas.
func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return utils.Dedup(out)
}
