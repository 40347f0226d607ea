package balance

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-wallet-engine/internal/util/command"
	"github/chapool/go-wallet-engine/internal/wallet"
	"github/chapool/go-wallet-engine/internal/wallet/balance"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
)

const (
	tokenFlag    string = "token"
	decimalsFlag string = "decimals"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance <address>",
		Short: "Queries the native balance of an address, or its ERC-20 balances with --token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := command.ChainFromFlag(cmd)
			if err != nil {
				return err
			}
			tokens, err := cmd.Flags().GetStringSlice(tokenFlag)
			if err != nil {
				return errors.Wrap(err, "failed to read token flag")
			}
			decimals, err := cmd.Flags().GetInt32(decimalsFlag)
			if err != nil {
				return errors.Wrap(err, "failed to read decimals flag")
			}

			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			return command.WithEngine(cmd.Context(), cfg, func(ctx context.Context, e *wallet.Engine) error {
				if len(tokens) == 0 {
					b, err := e.Balances.GetNativeBalance(ctx, kind, args[0])
					if err != nil {
						return err
					}
					return command.PrintJSON(cmd, wallet.ToBalanceItem(b))
				}

				list := make([]balance.Token, 0, len(tokens))
				for _, t := range tokens {
					list = append(list, balance.Token{Address: t, Decimals: decimals})
				}
				balances, err := e.Balances.GetBalanceByToken(ctx, args[0], list)
				if err != nil {
					return err
				}

				items := make([]*wallet.TokenBalanceItem, 0, len(balances))
				for _, b := range balances {
					items = append(items, wallet.ToTokenBalanceItem(b))
				}
				return command.PrintJSON(cmd, items)
			})
		},
	}

	command.AddChainFlag(cmd, chain.EVM)
	cmd.Flags().StringSlice(tokenFlag, nil, "ERC-20 token contracts to query (evm only)")
	cmd.Flags().Int32(decimalsFlag, 18, "Decimals of the queried tokens")

	return cmd
}
