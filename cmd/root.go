package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-wallet-engine/cmd/address"
	"github/chapool/go-wallet-engine/cmd/balance"
	"github/chapool/go-wallet-engine/cmd/defi"
	"github/chapool/go-wallet-engine/cmd/mnemonic"
	"github/chapool/go-wallet-engine/cmd/tx"
	"github/chapool/go-wallet-engine/cmd/wallets"
	"github/chapool/go-wallet-engine/internal/config"
	"github/chapool/go-wallet-engine/internal/util/command"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     "app",
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

A multi-chain HD wallet engine for EVM, Bitcoin and Solana.
Configured through WALLET_* ENV, .env files or a config file.`, config.ModuleName),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.PersistentFlags().String(command.ConfigFlag, "", "Config file (toml, yaml or json)")
	rootCmd.PersistentFlags().StringSlice(command.EnvFileFlag, []string{".env.local", ".env"}, "Env files loaded before the config, missing files are skipped")

	// attach the subcommands
	rootCmd.AddCommand(
		address.New(),
		balance.New(),
		defi.New(),
		mnemonic.New(),
		tx.New(),
		wallets.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		os.Exit(1)
	}
}
