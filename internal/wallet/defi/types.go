// Package defi encodes calls against known protocol entry points into ordinary
// transaction requests for the build -> sign -> broadcast pipeline.
package defi

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
)

// Protocol names a supported DeFi protocol.
type Protocol string

const (
	Uniswap     Protocol = "uniswap"
	SushiSwap   Protocol = "sushiswap"
	Aave        Protocol = "aave"
	Lido        Protocol = "lido"
	NativeStake Protocol = "native_stake"
)

// Builder turns protocol operations into transaction requests.
type Builder interface {
	// Swap encodes an exact-input token swap on a Uniswap V2 style router
	Swap(p SwapParams) (*Operation, error)

	// Supply deposits into a lending pool
	Supply(p LendingParams) (*Operation, error)
	// Withdraw takes a deposit back out of a lending pool
	Withdraw(p LendingParams) (*Operation, error)

	// Stake delegates (Solana) or deposits for liquid staking (Lido)
	Stake(p StakeParams) (*Operation, error)
	// Unstake deactivates a stake account (Solana) or queues a withdrawal (Lido)
	Unstake(p StakeParams) (*Operation, error)
}

// Operation is the request to execute, optionally preceded by an ERC-20 approval.
type Operation struct {
	Protocol Protocol
	Approve  *txbuilder.Request
	Request  *txbuilder.Request

	// StakeAccount is the Solana stake account the operation acts on.
	StakeAccount string
}

// Requests returns the requests in execution order.
func (o *Operation) Requests() []*txbuilder.Request {
	if o.Approve == nil {
		return []*txbuilder.Request{o.Request}
	}
	return []*txbuilder.Request{o.Approve, o.Request}
}

type SwapParams struct {
	Chain    chain.Kind
	Protocol Protocol
	From     string

	// Path lists token addresses from input to output, at least two.
	Path     []string
	AmountIn *big.Int

	// QuotedAmountOut is the router quote; MinAmountOut must be > 0 and <= the quote.
	QuotedAmountOut *big.Int
	MinAmountOut    *big.Int

	// Recipient of the output tokens, defaults to From.
	Recipient string
	Deadline  time.Time

	// Approve adds an approval of AmountIn for the router.
	Approve bool
}

type LendingParams struct {
	Chain    chain.Kind
	Protocol Protocol
	From     string
	Asset    string
	Amount   *big.Int

	// OnBehalfOf receives the aTokens (supply) or the asset (withdraw), defaults to From.
	OnBehalfOf string

	// Approve adds an approval of Amount for the pool (supply only).
	Approve bool
}

type StakeParams struct {
	Chain    chain.Kind
	Protocol Protocol
	From     string
	Amount   *big.Int

	// Referral is passed to Lido submit, zero address when empty.
	Referral string

	// StakeAccount and VoteAccount select the Solana stake account and validator.
	// A Solana stake with Amount creates the account from (From, Seed) instead; StakeAccount is
	// then optional and must match the derived address.
	StakeAccount string
	VoteAccount  string
	Seed         string
}

// Contracts are the protocol entry points of one EVM network.
type Contracts struct {
	UniswapV2Router     common.Address
	SushiSwapRouter     common.Address
	AaveV3Pool          common.Address
	LidoStETH           common.Address
	LidoWithdrawalQueue common.Address
}

// MainnetContracts returns the Ethereum mainnet deployments.
func MainnetContracts() Contracts {
	return Contracts{
		UniswapV2Router:     common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"),
		SushiSwapRouter:     common.HexToAddress("0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F"),
		AaveV3Pool:          common.HexToAddress("0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2"),
		LidoStETH:           common.HexToAddress("0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84"),
		LidoWithdrawalQueue: common.HexToAddress("0x889edC2eDab5f40e902b864aD4d7AdE8E412F9B1"),
	}
}

// Options configures the builder.
type Options struct {
	Contracts Contracts
	// Now is the clock swap deadlines are checked against.
	Now func() time.Time
}
