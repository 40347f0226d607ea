// Package provider adapts chain nodes (EVM JSON-RPC, Esplora, Solana JSON-RPC) behind
// one retrying, classifying interface per chain family.
package provider

import (
	"context"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github/chapool/go-wallet-engine/internal/metrics"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
)

// Operation names used for logging, metrics and error classification.
const (
	OpGetBalance      = "get_balance"
	OpGetTokenBalance = "get_token_balance"
	OpBroadcast       = "broadcast"
	OpGetStatus       = "get_status"
	OpGetNonce        = "get_nonce"
	OpSuggestFees     = "suggest_fees"
	OpEstimateGas     = "estimate_gas"
	OpChainID         = "chain_id"
	OpGetUTXOs        = "get_utxos"
	OpEstimateFeeRate = "estimate_fee_rate"
	OpGetBlockhash    = "get_blockhash"
)

// State is the network-side state of a submitted transaction.
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

// Status is the result of GetTransactionStatus.
type Status struct {
	State         State
	Reason        string
	Confirmations uint64
}

// Provider is the surface common to every chain.
type Provider interface {
	Chain() chain.Kind

	// GetBalance returns the native balance in base units (wei, satoshi, lamport)
	GetBalance(ctx context.Context, address string) (*big.Int, error)

	// BroadcastRaw submits a fully signed transaction and returns its id
	BroadcastRaw(ctx context.Context, raw []byte) (string, error)

	GetTransactionStatus(ctx context.Context, txID string) (*Status, error)
}

// Fees are the fee suggestions of an EVM node. MaxFeePerGas and BaseFee are nil
// on chains without EIP-1559.
type Fees struct {
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	BaseFee              *big.Int
}

// DynamicFeeSupported reports whether the node exposed a base fee.
func (f *Fees) DynamicFeeSupported() bool {
	return f != nil && f.BaseFee != nil && f.MaxFeePerGas != nil
}

type EVM interface {
	Provider

	// GetNonce returns the pending nonce of address
	GetNonce(ctx context.Context, address string) (uint64, error)
	SuggestFees(ctx context.Context) (*Fees, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)

	// GetTokenBalance returns the ERC-20 balanceOf(account) of token
	GetTokenBalance(ctx context.Context, token string, account string) (*big.Int, error)
}

// UTXO is an unspent output owned by a Bitcoin address.
type UTXO struct {
	TxID      string
	Vout      uint32
	Value     int64
	Confirmed bool
	// PkScript is the output script; filled in by the builder when the provider does not return it.
	PkScript []byte
}

// Outpoint renders "txid:vout".
func (u UTXO) Outpoint() string {
	return u.TxID + ":" + strconv.FormatUint(uint64(u.Vout), 10)
}

type Bitcoin interface {
	Provider

	GetUTXOs(ctx context.Context, address string) ([]UTXO, error)

	// EstimateFeeRate returns sat/vB for confirmation within targetBlocks
	EstimateFeeRate(ctx context.Context, targetBlocks int) (decimal.Decimal, error)
}

type Solana interface {
	Provider

	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
}

// Options are shared by every client.
type Options struct {
	Retry       RetryPolicy
	CallTimeout time.Duration
	Metrics     *metrics.Provider
}

// DefaultOptions returns the default retry policy with a 10s per-call timeout.
func DefaultOptions() Options {
	return Options{
		Retry:       DefaultRetryPolicy(),
		CallTimeout: defaultCallTimeout,
	}
}

const defaultCallTimeout = 10 * time.Second
