package signer

import (
	"context"

	"github/chapool/go-wallet-engine/internal/util"
	"github/chapool/go-wallet-engine/internal/wallet/address"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/keys"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

type service struct {
	codec address.Codec
}

// NewService creates a new SignerService
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(codec address.Codec) Service {
	return &service{
		codec: codec,
	}
}

// Sign dispatches on the chain of the unsigned transaction.
func (s *service) Sign(ctx context.Context, unsigned *txbuilder.Unsigned, key *keys.KeyPair) (*Signed, error) {
	if unsigned == nil {
		return nil, werrors.New(werrors.KindInvalidRequest, "nil transaction")
	}
	if key == nil || key.Zeroed() {
		return nil, werrors.New(werrors.KindSigning, "key pair is not available")
	}

	next, err := unsigned.State.Advance(txbuilder.StateSigned)
	if err != nil {
		return nil, err
	}

	curve, err := unsigned.Chain.Curve()
	if err != nil {
		return nil, err
	}
	if key.Curve != curve {
		return nil, werrors.Newf(werrors.KindSigning, "%s key cannot sign %s transactions", key.Curve, unsigned.Chain)
	}

	var signed *Signed
	switch unsigned.Chain {
	case chain.EVM:
		signed, err = s.signEVM(unsigned, key)
	case chain.Bitcoin:
		signed, err = s.signBitcoin(unsigned, key)
	case chain.Solana:
		signed, err = s.signSolana(unsigned, key)
	default:
		return nil, unsigned.Chain.Validate()
	}
	if err != nil {
		if werrors.KindOf(err) == werrors.KindUnknown {
			err = werrors.Wrap(werrors.KindSigning, err, "failed to sign transaction")
		}
		return nil, err
	}

	signed.Chain = unsigned.Chain
	signed.From = unsigned.From
	signed.State = next
	signed.Unsigned = unsigned

	util.LogFromContext(ctx).Debug().
		Str("component", "signer").
		Str("chain", signed.Chain.String()).
		Str("from", signed.From).
		Str("tx_id", signed.TxID).
		Msg("Transaction signed")

	return signed, nil
}

func digestCount(unsigned *txbuilder.Unsigned, want int) error {
	if len(unsigned.Digests) != want {
		return werrors.Newf(werrors.KindSigning, "expected %d digests, got %d", want, len(unsigned.Digests))
	}
	return nil
}
