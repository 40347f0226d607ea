package wallets

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-wallet-engine/internal/util/command"
	"github/chapool/go-wallet-engine/internal/wallet"
	"github/chapool/go-wallet-engine/internal/wallet/address"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
)

const (
	nameFlag    string = "name"
	accountFlag string = "account"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("wallet",
		newCreate(),
		newImport(),
		newList(),
		newBalances(),
	)
}

// createdWallet is printed once; the mnemonic is not shown again.
type createdWallet struct {
	*wallet.WalletItem
	Mnemonic string `json:"mnemonic"`
}

func newCreate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Generates a mnemonic and stores it encrypted in the keystore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := cmd.Flags().GetString(nameFlag)
			if err != nil {
				return errors.Wrap(err, "failed to read name flag")
			}

			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			return command.WithEngine(cmd.Context(), cfg, func(ctx context.Context, e *wallet.Engine) error {
				password, err := wallet.PromptNewPassword(e.Config.Wallet.MinPasswordLength)
				if err != nil {
					return err
				}

				id, mnemonic, err := e.Wallets.CreateWallet(ctx, name, password)
				if err != nil {
					return err
				}

				w, err := e.Wallets.GetWallet(ctx, id)
				if err != nil {
					return err
				}

				return command.PrintJSON(cmd, createdWallet{WalletItem: w.ToWalletItem(), Mnemonic: mnemonic})
			})
		},
	}

	cmd.Flags().String(nameFlag, "default", "Wallet name")

	return cmd
}

func newImport() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Imports an existing BIP39 mnemonic into the keystore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := cmd.Flags().GetString(nameFlag)
			if err != nil {
				return errors.Wrap(err, "failed to read name flag")
			}

			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			return command.WithEngine(cmd.Context(), cfg, func(ctx context.Context, e *wallet.Engine) error {
				mnemonic, err := wallet.PromptPassword("Enter mnemonic: ")
				if err != nil {
					return err
				}

				password, err := wallet.PromptNewPassword(e.Config.Wallet.MinPasswordLength)
				if err != nil {
					return err
				}

				id, err := e.Wallets.ImportWallet(ctx, name, mnemonic, password)
				if err != nil {
					return err
				}

				w, err := e.Wallets.GetWallet(ctx, id)
				if err != nil {
					return err
				}

				return command.PrintJSON(cmd, w.ToWalletItem())
			})
		},
	}

	cmd.Flags().String(nameFlag, "imported", "Wallet name")

	return cmd
}

func newList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists the wallets in the keystore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			return command.WithEngine(cmd.Context(), cfg, func(ctx context.Context, e *wallet.Engine) error {
				list, err := e.Wallets.ListWallets(ctx)
				if err != nil {
					return err
				}

				items := make([]*wallet.WalletItem, 0, len(list))
				for _, w := range list {
					items = append(items, w.ToWalletItem())
				}

				return command.PrintJSON(cmd, items)
			})
		},
	}
}

func newBalances() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balances <wallet-id>",
		Short: "Shows the native balance of a wallet account on every configured chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := cmd.Flags().GetUint32(accountFlag)
			if err != nil {
				return errors.Wrap(err, "failed to read account flag")
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

				var addrs []*address.Address
				for _, kind := range chain.All() {
					if _, err := e.Providers.For(kind); err != nil {
						continue
					}
					addr, err := e.Wallets.DeriveAddress(ctx, args[0], password, kind, account)
					if err != nil {
						return err
					}
					addrs = append(addrs, addr)
				}

				balances, err := e.Balances.GetAccountBalances(ctx, addrs)
				if err != nil {
					return err
				}

				items := make([]*wallet.BalanceItem, 0, len(balances))
				for _, b := range balances {
					items = append(items, wallet.ToBalanceItem(b))
				}
				return command.PrintJSON(cmd, items)
			})
		},
	}

	cmd.Flags().Uint32(accountFlag, 0, "BIP44 account index")

	return cmd
}
