package address

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-wallet-engine/internal/util/command"
	"github/chapool/go-wallet-engine/internal/wallet"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
)

const (
	accountFlag string = "account"
	allFlag     string = "all"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("address",
		newDerive(),
	)
}

func newDerive() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive <wallet-id>",
		Short: "Derives the default address of a wallet account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := command.ChainFromFlag(cmd)
			if err != nil {
				return err
			}
			account, err := cmd.Flags().GetUint32(accountFlag)
			if err != nil {
				return errors.Wrap(err, "failed to read account flag")
			}
			all, err := cmd.Flags().GetBool(allFlag)
			if err != nil {
				return errors.Wrap(err, "failed to read all flag")
			}

			kinds := []chain.Kind{kind}
			if all {
				kinds = chain.All()
			}

			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			return command.WithEngine(cmd.Context(), cfg, func(ctx context.Context, e *wallet.Engine) error {
				password, err := wallet.PromptPassword("Enter wallet password: ")
				if err != nil {
					return err
				}

				items := make([]*wallet.AddressItem, 0, len(kinds))
				for _, k := range kinds {
					addr, err := e.Wallets.DeriveAddress(ctx, args[0], password, k, account)
					if err != nil {
						return err
					}
					items = append(items, wallet.ToAddressItem(addr))
				}

				return command.PrintJSON(cmd, items)
			})
		},
	}

	command.AddChainFlag(cmd, chain.EVM)
	cmd.Flags().Uint32(accountFlag, 0, "BIP44 account index")
	cmd.Flags().Bool(allFlag, false, "Derive the address on every supported chain")

	return cmd
}
