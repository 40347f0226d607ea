// Package txbuilder turns transaction requests into unsigned, chain-specific payloads
// together with the digests the signer has to sign.
package txbuilder

import (
	"context"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/provider"
)

// Builder builds unsigned transactions.
type Builder interface {
	// Build validates req and assembles the unsigned transaction. Bitcoin builds reserve
	// their inputs and EVM builds consume a nonce until Release is called.
	Build(ctx context.Context, req *Request) (*Unsigned, error)

	// Release gives back the inputs reserved by a transaction that will not reach the network
	// and resets the sender nonce so the next build reads it from the node.
	Release(unsigned *Unsigned)

	// MarkBroadcast records that unsigned reached the network as txID. Its Bitcoin inputs stay
	// reserved until Settle, or until the provider stops listing them as unspent.
	MarkBroadcast(unsigned *Unsigned, txID string)

	// Settle ends the reservations of txID once the network reports it confirmed or failed.
	Settle(txID string)

	Nonces() *NonceTracker
	UTXOs() *UTXOReserver
}

// Request is a chain-agnostic transfer or contract call. Exactly the detail block of
// Chain is consulted; a nil block means defaults.
type Request struct {
	Chain  chain.Kind
	From   string
	To     string
	Amount *big.Int

	EVM     *EVMFields
	Bitcoin *BitcoinFields
	Solana  *SolanaFields
}

// EVMFields overrides values otherwise fetched from the node.
type EVMFields struct {
	// Nonce bypasses the NonceTracker when set
	Nonce    *uint64
	GasLimit uint64

	// GasPrice forces a legacy transaction.
	GasPrice *big.Int

	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int

	Data    []byte
	ChainID *big.Int
}

// BitcoinFields controls coin selection and fees.
type BitcoinFields struct {
	// FeeRate in sat/vB; zero asks the provider.
	FeeRate  decimal.Decimal
	Strategy Strategy

	// UTXOs replaces the provider listing. With CallerSpecified every entry is spent.
	UTXOs []provider.UTXO

	// ChangeAddress defaults to the sender.
	ChangeAddress string
}

// SolanaFields carries custom instructions. Without instructions a system transfer of
// Amount lamports from From to To is built.
type SolanaFields struct {
	Instructions []solana.Instruction
	FeePayer     string
}

// Unsigned is a built transaction waiting for signatures.
type Unsigned struct {
	Chain chain.Kind
	From  string
	To    string

	// Payload is the canonical serialization: the EIP-155 / EIP-2718 signing payload for EVM,
	// the transaction without witnesses for Bitcoin, the serialized message for Solana.
	Payload []byte

	// Digests holds what the signer signs: one hash for EVM, one sighash per input for Bitcoin
	// and the message bytes for Solana.
	Digests [][]byte

	State State

	EVM     *EVMTx
	Bitcoin *BitcoinTx
	Solana  *SolanaTx
}

type EVMTx struct {
	Tx     *types.Transaction
	Signer types.Signer
	Nonce  uint64

	// Tracked is true when the nonce came from the NonceTracker.
	Tracked bool
}

type BitcoinTx struct {
	Tx     *wire.MsgTx
	Inputs []BitcoinInput
	Fee    int64
	Change int64
	// Wallet keys the reservation of the inputs.
	Wallet string
}

func (b *BitcoinTx) outpoints() []string {
	outpoints := make([]string, 0, len(b.Inputs))
	for _, in := range b.Inputs {
		outpoints = append(outpoints, in.UTXO.Outpoint())
	}
	return outpoints
}

// BitcoinInput is a spent output plus how it has to be signed.
type BitcoinInput struct {
	UTXO provider.UTXO
	Type chain.BitcoinAddressType
}

type SolanaTx struct {
	Tx        *solana.Transaction
	Blockhash solana.Hash
	FeePayer  solana.PublicKey
}

// Options configures the builder.
type Options struct {
	// LegacyFees builds EIP-155 transactions even on EIP-1559 chains.
	LegacyFees bool

	// FeeTargetBlocks is the confirmation target used for Bitcoin fee estimates.
	FeeTargetBlocks int

	// ReservationTTL bounds how long inputs of a broadcast Bitcoin transaction stay reserved
	// while the provider still lists them as unspent.
	ReservationTTL time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

const defaultFeeTargetBlocks = 6
