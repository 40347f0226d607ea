package tx

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github/chapool/go-wallet-engine/internal/util/command"
	"github/chapool/go-wallet-engine/internal/wallet"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

const (
	accountFlag  string = "account"
	toFlag       string = "to"
	amountFlag   string = "amount"
	tokenFlag    string = "token"
	decimalsFlag string = "decimals"
	feeRateFlag  string = "fee-rate"
	strategyFlag string = "strategy"
	dryRunFlag   string = "dry-run"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("tx",
		newSend(),
		newStatus(),
	)
}

type sendFlags struct {
	account  uint32
	to       string
	amount   string
	token    string
	decimals int32
	feeRate  string
	strategy string
	dryRun   bool
}

func newSend() *cobra.Command {
	var f sendFlags

	cmd := &cobra.Command{
		Use:   "send <wallet-id>",
		Short: "Builds, signs and broadcasts a transfer from a wallet account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := command.ChainFromFlag(cmd)
			if err != nil {
				return err
			}

			req, err := f.request(kind)
			if err != nil {
				return err
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

				return command.Submit(ctx, cmd, e, command.Submission{
					WalletID: args[0],
					Password: password,
					Account:  f.account,
					DryRun:   f.dryRun,
				}, req)
			})
		},
	}

	command.AddChainFlag(cmd, chain.EVM)
	cmd.Flags().Uint32Var(&f.account, accountFlag, 0, "BIP44 account index")
	cmd.Flags().StringVar(&f.to, toFlag, "", "Recipient address")
	cmd.Flags().StringVar(&f.amount, amountFlag, "", "Amount in whole coins, e.g. 0.01")
	cmd.Flags().StringVar(&f.token, tokenFlag, "", "ERC-20 token contract (evm only)")
	cmd.Flags().Int32Var(&f.decimals, decimalsFlag, -1, "Token decimals, defaults to the native coin decimals")
	cmd.Flags().StringVar(&f.feeRate, feeRateFlag, "", "Fee rate in sat/vB (bitcoin only), defaults to the provider estimate")
	cmd.Flags().StringVar(&f.strategy, strategyFlag, string(txbuilder.LargestFirst), "UTXO selection strategy (bitcoin only)")
	cmd.Flags().BoolVar(&f.dryRun, dryRunFlag, false, "Sign without broadcasting")

	if err := cmd.MarkFlagRequired(toFlag); err != nil {
		panic(err)
	}
	if err := cmd.MarkFlagRequired(amountFlag); err != nil {
		panic(err)
	}

	return cmd
}

func (f sendFlags) request(kind chain.Kind) (*txbuilder.Request, error) {
	decimals := f.decimals
	if decimals < 0 {
		decimals = kind.Decimals()
	}
	amount, err := command.ParseAmount(f.amount, decimals)
	if err != nil {
		return nil, err
	}

	if f.token != "" {
		if kind != chain.EVM {
			return nil, werrors.Newf(werrors.KindInvalidRequest, "token transfers are not supported on %s", kind)
		}
		return txbuilder.TokenTransfer(f.token, "", f.to, amount)
	}

	req := &txbuilder.Request{Chain: kind, To: f.to, Amount: amount}

	if kind == chain.Bitcoin {
		strategy, err := txbuilder.ParseStrategy(f.strategy)
		if err != nil {
			return nil, err
		}
		req.Bitcoin = &txbuilder.BitcoinFields{Strategy: strategy}

		if f.feeRate != "" {
			rate, err := decimal.NewFromString(f.feeRate)
			if err != nil {
				return nil, werrors.Wrapf(werrors.KindInvalidRequest, err, "invalid fee rate %q", f.feeRate)
			}
			req.Bitcoin.FeeRate = rate
		}
	}

	return req, nil
}

func newStatus() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <tx-id>",
		Short: "Queries the network state of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := command.ChainFromFlag(cmd)
			if err != nil {
				return err
			}

			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			return command.WithEngine(cmd.Context(), cfg, func(ctx context.Context, e *wallet.Engine) error {
				status, err := e.Wallets.TransactionStatus(ctx, kind, args[0])
				if err != nil {
					return errors.Wrapf(err, "failed to query transaction %s", args[0])
				}

				return command.PrintJSON(cmd, wallet.ToStatusItem(args[0], status))
			})
		},
	}

	command.AddChainFlag(cmd, chain.EVM)

	return cmd
}
