package txbuilder

import (
	"context"
	"math/big"

	"github/chapool/go-wallet-engine/internal/util"
	"github/chapool/go-wallet-engine/internal/wallet/address"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/provider"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

// Providers are the chain clients a builder may consult. A nil entry disables the chain.
type Providers struct {
	EVM     provider.EVM
	Bitcoin provider.Bitcoin
	Solana  provider.Solana
}

// For returns the client of kind, UnsupportedChain when none is configured.
//
//nolint:ireturn // Returning interface is intentional
func (p Providers) For(kind chain.Kind) (provider.Provider, error) {
	var c provider.Provider
	switch kind {
	case chain.EVM:
		if p.EVM != nil {
			c = p.EVM
		}
	case chain.Bitcoin:
		if p.Bitcoin != nil {
			c = p.Bitcoin
		}
	case chain.Solana:
		if p.Solana != nil {
			c = p.Solana
		}
	default:
		return nil, kind.Validate()
	}
	if c == nil {
		return nil, werrors.Newf(werrors.KindUnsupportedChain, "no provider configured for %s", kind)
	}
	return c, nil
}

type service struct {
	codec     address.Codec
	providers Providers
	opts      Options

	nonces *NonceTracker
	utxos  *UTXOReserver
}

// NewBuilder creates a transaction builder
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewBuilder(codec address.Codec, providers Providers, opts Options) Builder {
	if opts.FeeTargetBlocks <= 0 {
		opts.FeeTargetBlocks = defaultFeeTargetBlocks
	}

	return &service{
		codec:     codec,
		providers: providers,
		opts:      opts,
		nonces:    NewNonceTracker(),
		utxos:     NewUTXOReserver(opts.ReservationTTL, opts.Now),
	}
}

func (s *service) Nonces() *NonceTracker {
	return s.nonces
}

func (s *service) UTXOs() *UTXOReserver {
	return s.utxos
}

func (s *service) Build(ctx context.Context, req *Request) (*Unsigned, error) {
	if req == nil {
		return nil, werrors.New(werrors.KindInvalidRequest, "nil request")
	}
	if req.Amount != nil && req.Amount.Sign() < 0 {
		return nil, werrors.New(werrors.KindInvalidRequest, "amount must not be negative")
	}

	log := util.LogFromContext(ctx).With().
		Str("component", "txbuilder").
		Str("chain", req.Chain.String()).
		Str("from", req.From).
		Logger()

	var (
		unsigned *Unsigned
		err      error
	)

	switch req.Chain {
	case chain.EVM:
		unsigned, err = s.buildEVM(ctx, req)
	case chain.Bitcoin:
		unsigned, err = s.buildBitcoin(ctx, req)
	case chain.Solana:
		unsigned, err = s.buildSolana(ctx, req)
	default:
		return nil, req.Chain.Validate()
	}
	if err != nil {
		log.Debug().Err(err).Str("kind", string(werrors.KindOf(err))).Msg("Failed to build transaction")
		return nil, err
	}

	if unsigned.State, err = StateUnsigned.Advance(StateBuilt); err != nil {
		s.Release(unsigned)
		return nil, err
	}

	log.Debug().Str("to", unsigned.To).Int("digests", len(unsigned.Digests)).Msg("Transaction built")

	return unsigned, nil
}

func (s *service) Release(unsigned *Unsigned) {
	if unsigned == nil {
		return
	}

	switch {
	case unsigned.Bitcoin != nil:
		s.utxos.Release(unsigned.Bitcoin.outpoints()...)
	case unsigned.EVM != nil && unsigned.EVM.Tracked:
		s.nonces.Reset(unsigned.From)
	}
}

func (s *service) MarkBroadcast(unsigned *Unsigned, txID string) {
	if unsigned == nil || unsigned.Bitcoin == nil {
		return
	}
	s.utxos.MarkBroadcast(txID, unsigned.Bitcoin.outpoints()...)
}

func (s *service) Settle(txID string) {
	s.utxos.Settle(txID)
}

// decodeRecipient validates To before anything is constructed.
func (s *service) decodeRecipient(req *Request) (*address.Decoded, error) {
	if req.To == "" {
		return nil, werrors.New(werrors.KindInvalidAddress, "recipient address is required")
	}
	return s.codec.Decode(req.To, req.Chain)
}

func (s *service) decodeSender(req *Request) (*address.Decoded, error) {
	if req.From == "" {
		return nil, werrors.New(werrors.KindInvalidAddress, "sender address is required")
	}
	return s.codec.Decode(req.From, req.Chain)
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func unsupported(kind chain.Kind) error {
	return werrors.Newf(werrors.KindUnsupportedChain, "no provider configured for %s", kind)
}
