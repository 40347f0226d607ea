package command

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github/chapool/go-wallet-engine/internal/config"
	"github/chapool/go-wallet-engine/internal/util"
	"github/chapool/go-wallet-engine/internal/wallet"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

const (
	ConfigFlag  string = "config"
	EnvFileFlag string = "env-file"
	ChainFlag   string = "chain"
)

// NewSubcommandGroup returns a command that only groups its subcommands and prints help.
func NewSubcommandGroup(name string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <subcommand>", name),
		Short: fmt.Sprintf("%s related subcommands", name),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cmd.Help(); err != nil {
				return errors.Wrap(err, "failed to print help")
			}
			return nil
		},
	}

	cmd.AddCommand(subcommands...)

	return cmd
}

// LoadConfig reads the env files and the config file named by the persistent root flags.
func LoadConfig(cmd *cobra.Command) (config.Engine, error) {
	envFiles, err := cmd.Flags().GetStringSlice(EnvFileFlag)
	if err != nil {
		envFiles = []string{".env.local", ".env"}
	}
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return config.Engine{}, err
	}

	path, err := cmd.Flags().GetString(ConfigFlag)
	if err != nil {
		path = ""
	}

	return config.Load(path)
}

// WithEngine configures the global logger, assembles an engine from cfg and hands it to f.
// Each invocation gets its own metrics registry.
func WithEngine(ctx context.Context, cfg config.Engine, f func(ctx context.Context, e *wallet.Engine) error) error {
	util.ConfigureLogger(util.LoggerConfig{
		Level:              cfg.Logger.Level,
		PrettyPrintConsole: cfg.Logger.PrettyPrintConsole,
		Caller:             cfg.Logger.Caller,
	})

	e, err := wallet.InitEngine(cfg, prometheus.NewRegistry())
	if err != nil {
		return errors.Wrap(err, "failed to initialize engine")
	}

	ctx = util.WithLogger(ctx, log.Logger)

	return f(ctx, e)
}

// AddChainFlag registers --chain with def as default.
func AddChainFlag(cmd *cobra.Command, def chain.Kind) {
	cmd.Flags().String(ChainFlag, def.String(), "Chain family: evm, bitcoin or solana")
}

// ChainFromFlag parses --chain.
func ChainFromFlag(cmd *cobra.Command) (chain.Kind, error) {
	s, err := cmd.Flags().GetString(ChainFlag)
	if err != nil {
		return "", errors.Wrap(err, "failed to read chain flag")
	}
	return chain.Parse(s)
}

// PrintJSON writes v indented to the command's stdout.
func PrintJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode output")
	}
	return nil
}

// ParseAmount converts a decimal amount such as "1.5" into base units with the given
// number of fractional digits. Amounts with more precision than decimals are rejected.
func ParseAmount(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, werrors.Wrapf(werrors.KindInvalidRequest, err, "invalid amount %q", s)
	}
	if !d.IsPositive() {
		return nil, werrors.Newf(werrors.KindInvalidRequest, "amount must be positive, got %s", s)
	}

	units := d.Shift(decimals)
	if !units.Equal(units.Truncate(0)) {
		return nil, werrors.Newf(werrors.KindInvalidRequest, "amount %s has more than %d decimals", s, decimals)
	}

	return units.BigInt(), nil
}
