package signer

import (
	"context"

	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/keys"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
)

// Service provides transaction signing functionality
type Service interface {
	// Sign signs a built transaction with key. key stays owned by the caller, which
	// zeroes it after the call.
	Sign(ctx context.Context, unsigned *txbuilder.Unsigned, key *keys.KeyPair) (*Signed, error)
}

// Signed is a fully signed transaction ready for broadcast.
type Signed struct {
	Chain chain.Kind
	// Raw is the network encoding (typed envelope / RLP, witness serialization, wire transaction)
	Raw  []byte
	TxID string
	From string

	State txbuilder.State

	// Unsigned is kept so a failed broadcast can release what the build reserved
	Unsigned *txbuilder.Unsigned
}
