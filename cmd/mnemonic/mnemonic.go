package mnemonic

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-wallet-engine/internal/util/command"
	"github/chapool/go-wallet-engine/internal/wallet/seed"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

const (
	bitsFlag string = "bits"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("mnemonic",
		newGenerate(),
		newValidate(),
	)
}

func newGenerate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generates a BIP39 mnemonic without storing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bits, err := cmd.Flags().GetInt(bitsFlag)
			if err != nil {
				return errors.Wrap(err, "failed to read bits flag")
			}

			phrase, err := seed.NewManager().Generate(bits)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), phrase)
			return nil
		},
	}

	cmd.Flags().Int(bitsFlag, 256, "Entropy bits: 128, 160, 192, 224 or 256")

	return cmd
}

func newValidate() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <word>...",
		Short: "Checks the words and checksum of a BIP39 mnemonic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !seed.NewManager().Validate(strings.Join(args, " ")) {
				return werrors.New(werrors.KindInvalidMnemonic, "mnemonic is not valid")
			}

			fmt.Fprintln(cmd.OutOrStdout(), "mnemonic is valid")
			return nil
		},
	}
}
