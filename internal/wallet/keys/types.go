// Package keys implements hierarchical deterministic key derivation for the secp256k1
// (BIP32) and ed25519 (SLIP-0010) trees.
package keys

import (
	"crypto/ed25519"

	"github.com/btcsuite/btcd/btcec/v2"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

const privateKeyLength = 32

// KeyPair is a leaf key. The private scalar is only reachable through Private and is
// wiped by Zero; callers should prefer WithKeyPair over holding a KeyPair directly.
type KeyPair struct {
	Curve chain.Curve
	// Public is the 33-byte compressed point for secp256k1 or the 32-byte ed25519 key.
	Public []byte

	private []byte
}

// NewKeyPair builds a pair from a raw 32-byte private key (copied).
func NewKeyPair(curve chain.Curve, private []byte) (*KeyPair, error) {
	if len(private) != privateKeyLength {
		return nil, werrors.Newf(werrors.KindSigning, "private key must be %d bytes", privateKeyLength)
	}

	priv := make([]byte, privateKeyLength)
	copy(priv, private)

	switch curve {
	case chain.Secp256k1:
		_, pub := btcec.PrivKeyFromBytes(priv)
		return &KeyPair{Curve: curve, Public: pub.SerializeCompressed(), private: priv}, nil
	case chain.Ed25519:
		edKey := ed25519.NewKeyFromSeed(priv)
		pub := make([]byte, ed25519.PublicKeySize)
		copy(pub, edKey[ed25519.SeedSize:])
		zero(edKey)
		return &KeyPair{Curve: curve, Public: pub, private: priv}, nil
	default:
		zero(priv)
		return nil, werrors.Newf(werrors.KindUnsupportedDerivation, "unknown curve %d", curve)
	}
}

// Private returns the raw private key. The slice is wiped by Zero and must not be retained.
func (k *KeyPair) Private() []byte {
	if k == nil {
		return nil
	}
	return k.private
}

// Zeroed reports whether the private material has been wiped.
func (k *KeyPair) Zeroed() bool {
	return k == nil || k.private == nil
}

// Zero wipes the private key.
func (k *KeyPair) Zero() {
	if k == nil {
		return
	}
	zero(k.private)
	k.private = nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
