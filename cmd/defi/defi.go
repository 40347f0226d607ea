package defi

import (
	"context"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-wallet-engine/internal/util/command"
	"github/chapool/go-wallet-engine/internal/wallet"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	protocols "github/chapool/go-wallet-engine/internal/wallet/defi"
)

const (
	accountFlag     string = "account"
	protocolFlag    string = "protocol"
	dryRunFlag      string = "dry-run"
	approveFlag     string = "approve"
	amountFlag      string = "amount"
	decimalsFlag    string = "decimals"
	pathFlag        string = "path"
	quoteFlag       string = "quote"
	outDecimalsFlag string = "out-decimals"
	slippageFlag    string = "slippage-bps"
	deadlineFlag    string = "deadline"
	recipientFlag   string = "recipient"
	assetFlag       string = "asset"
	onBehalfOfFlag  string = "on-behalf-of"
	stakeAcctFlag   string = "stake-account"
	seedFlag        string = "seed"
	voteAcctFlag    string = "vote-account"
	referralFlag    string = "referral"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("defi",
		newSwap(),
		newSupply(),
		newWithdraw(),
		newStake(),
		newUnstake(),
	)
}

// commonFlags are shared by every operation.
type commonFlags struct {
	account  uint32
	protocol string
	dryRun   bool
}

func (f *commonFlags) register(cmd *cobra.Command, defaultProtocol protocols.Protocol) {
	cmd.Flags().Uint32Var(&f.account, accountFlag, 0, "BIP44 account index")
	cmd.Flags().StringVar(&f.protocol, protocolFlag, string(defaultProtocol), "Protocol to use")
	cmd.Flags().BoolVar(&f.dryRun, dryRunFlag, false, "Sign without broadcasting")
}

type buildFunc func(b protocols.Builder, from string) (*protocols.Operation, error)

// execute derives the sender of the account, encodes the operation and submits its requests.
func execute(cmd *cobra.Command, walletID string, kind chain.Kind, f commonFlags, build buildFunc) error {
	cfg, err := command.LoadConfig(cmd)
	if err != nil {
		return err
	}

	return command.WithEngine(cmd.Context(), cfg, func(ctx context.Context, e *wallet.Engine) error {
		password, err := wallet.PromptPassword("Enter wallet password: ")
		if err != nil {
			return err
		}

		from, err := e.Wallets.DeriveAddress(ctx, walletID, password, kind, f.account)
		if err != nil {
			return err
		}

		op, err := build(e.DeFi, from.Value)
		if err != nil {
			return err
		}

		return command.Submit(ctx, cmd, e, command.Submission{
			WalletID: walletID,
			Password: password,
			Account:  f.account,
			DryRun:   f.dryRun,
		}, op.Requests()...)
	})
}

func newSwap() *cobra.Command {
	var (
		f           commonFlags
		path        []string
		amountIn    string
		inDecimals  int32
		quote       string
		outDecimals int32
		slippage    uint32
		deadline    time.Duration
		recipient   string
		approve     bool
	)

	cmd := &cobra.Command{
		Use:   "swap <wallet-id>",
		Short: "Swaps an exact input amount along a token path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := command.ParseAmount(amountIn, inDecimals)
			if err != nil {
				return err
			}
			quoted, err := command.ParseAmount(quote, outDecimals)
			if err != nil {
				return errors.Wrap(err, "invalid quote")
			}
			minOut, err := protocols.SlippageFloor(quoted, slippage)
			if err != nil {
				return err
			}

			return execute(cmd, args[0], chain.EVM, f, func(b protocols.Builder, from string) (*protocols.Operation, error) {
				return b.Swap(protocols.SwapParams{
					Chain:           chain.EVM,
					Protocol:        protocols.Protocol(f.protocol),
					From:            from,
					Path:            path,
					AmountIn:        in,
					QuotedAmountOut: quoted,
					MinAmountOut:    minOut,
					Recipient:       recipient,
					Deadline:        time.Now().Add(deadline),
					Approve:         approve,
				})
			})
		},
	}

	f.register(cmd, protocols.Uniswap)
	cmd.Flags().StringSliceVar(&path, pathFlag, nil, "Token addresses from input to output")
	cmd.Flags().StringVar(&amountIn, amountFlag, "", "Input amount in whole tokens")
	cmd.Flags().Int32Var(&inDecimals, decimalsFlag, 18, "Input token decimals")
	cmd.Flags().StringVar(&quote, quoteFlag, "", "Quoted output amount in whole tokens")
	cmd.Flags().Int32Var(&outDecimals, outDecimalsFlag, 18, "Output token decimals")
	cmd.Flags().Uint32Var(&slippage, slippageFlag, 50, "Accepted slippage in basis points")
	cmd.Flags().DurationVar(&deadline, deadlineFlag, 20*time.Minute, "Time until the swap expires")
	cmd.Flags().StringVar(&recipient, recipientFlag, "", "Receiver of the output, defaults to the sender")
	cmd.Flags().BoolVar(&approve, approveFlag, true, "Approve the router for the input amount first")

	for _, name := range []string{pathFlag, amountFlag, quoteFlag} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	return cmd
}

type lendingFlags struct {
	commonFlags
	asset      string
	amount     string
	decimals   int32
	onBehalfOf string
	approve    bool
}

func (f *lendingFlags) register(cmd *cobra.Command) {
	f.commonFlags.register(cmd, protocols.Aave)
	cmd.Flags().StringVar(&f.asset, assetFlag, "", "Asset token address")
	cmd.Flags().StringVar(&f.amount, amountFlag, "", "Amount in whole tokens")
	cmd.Flags().Int32Var(&f.decimals, decimalsFlag, 18, "Asset decimals")
	cmd.Flags().StringVar(&f.onBehalfOf, onBehalfOfFlag, "", "Beneficiary, defaults to the sender")

	for _, name := range []string{assetFlag, amountFlag} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func (f *lendingFlags) params(from string) (protocols.LendingParams, error) {
	amount, err := command.ParseAmount(f.amount, f.decimals)
	if err != nil {
		return protocols.LendingParams{}, err
	}
	return protocols.LendingParams{
		Chain:      chain.EVM,
		Protocol:   protocols.Protocol(f.protocol),
		From:       from,
		Asset:      f.asset,
		Amount:     amount,
		OnBehalfOf: f.onBehalfOf,
		Approve:    f.approve,
	}, nil
}

func newSupply() *cobra.Command {
	var f lendingFlags

	cmd := &cobra.Command{
		Use:   "supply <wallet-id>",
		Short: "Supplies an asset to a lending pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, args[0], chain.EVM, f.commonFlags, func(b protocols.Builder, from string) (*protocols.Operation, error) {
				p, err := f.params(from)
				if err != nil {
					return nil, err
				}
				return b.Supply(p)
			})
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVar(&f.approve, approveFlag, true, "Approve the pool for the amount first")

	return cmd
}

func newWithdraw() *cobra.Command {
	var f lendingFlags

	cmd := &cobra.Command{
		Use:   "withdraw <wallet-id>",
		Short: "Withdraws a supplied asset from a lending pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, args[0], chain.EVM, f.commonFlags, func(b protocols.Builder, from string) (*protocols.Operation, error) {
				p, err := f.params(from)
				if err != nil {
					return nil, err
				}
				return b.Withdraw(p)
			})
		},
	}

	f.register(cmd)

	return cmd
}

type stakeFlags struct {
	commonFlags
	amount       string
	stakeAccount string
	voteAccount  string
	seed         string
	referral     string
}

func (f *stakeFlags) register(cmd *cobra.Command) {
	command.AddChainFlag(cmd, chain.EVM)
	f.commonFlags.register(cmd, "")
	cmd.Flags().StringVar(&f.amount, amountFlag, "", "Amount in whole coins (lido, or a new solana stake account)")
	cmd.Flags().StringVar(&f.stakeAccount, stakeAcctFlag, "", "Stake account (solana)")
	cmd.Flags().StringVar(&f.voteAccount, voteAcctFlag, "", "Validator vote account (solana stake)")
	cmd.Flags().StringVar(&f.seed, seedFlag, protocols.DefaultStakeSeed, "Seed of the stake account created with --amount (solana stake)")
	cmd.Flags().StringVar(&f.referral, referralFlag, "", "Referral address (lido stake)")
}

// params picks the chain's staking protocol when --protocol is empty. The amount is only
// parsed when given: a Solana stake without it delegates an existing stake account.
func (f *stakeFlags) params(cmd *cobra.Command) (chain.Kind, protocols.StakeParams, error) {
	kind, err := command.ChainFromFlag(cmd)
	if err != nil {
		return "", protocols.StakeParams{}, err
	}

	protocol := protocols.Protocol(f.protocol)
	if protocol == "" {
		protocol = protocols.Lido
		if kind == chain.Solana {
			protocol = protocols.NativeStake
		}
	}

	var amount *big.Int
	if f.amount != "" {
		if amount, err = command.ParseAmount(f.amount, kind.Decimals()); err != nil {
			return "", protocols.StakeParams{}, err
		}
	}

	return kind, protocols.StakeParams{
		Chain:        kind,
		Protocol:     protocol,
		Amount:       amount,
		Referral:     f.referral,
		StakeAccount: f.stakeAccount,
		VoteAccount:  f.voteAccount,
		Seed:         f.seed,
	}, nil
}

func newStake() *cobra.Command {
	var f stakeFlags

	cmd := &cobra.Command{
		Use:   "stake <wallet-id>",
		Short: "Stakes with Lido or delegates a Solana stake account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, p, err := f.params(cmd)
			if err != nil {
				return err
			}

			return execute(cmd, args[0], kind, f.commonFlags, func(b protocols.Builder, from string) (*protocols.Operation, error) {
				p.From = from
				return b.Stake(p)
			})
		},
	}

	f.register(cmd)

	return cmd
}

func newUnstake() *cobra.Command {
	var f stakeFlags

	cmd := &cobra.Command{
		Use:   "unstake <wallet-id>",
		Short: "Requests a Lido withdrawal or deactivates a Solana stake account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, p, err := f.params(cmd)
			if err != nil {
				return err
			}

			return execute(cmd, args[0], kind, f.commonFlags, func(b protocols.Builder, from string) (*protocols.Operation, error) {
				p.From = from
				return b.Unstake(p)
			})
		},
	}

	f.register(cmd)

	return cmd
}
