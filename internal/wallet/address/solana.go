package address

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

func encodeSolana(pub []byte) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", werrors.Newf(werrors.KindInvalidAddress, "solana public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	return base58.Encode(pub), nil
}

func decodeSolana(addr string) (*Decoded, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, werrors.Wrap(werrors.KindInvalidAddress, err, "invalid base58 solana address")
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, werrors.Newf(werrors.KindInvalidAddress, "solana address must decode to %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}

	return &Decoded{Chain: chain.Solana, Canonical: base58.Encode(raw), Bytes: raw}, nil
}
