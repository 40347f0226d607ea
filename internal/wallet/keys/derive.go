package keys

import (
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

const (
	minSeedLength = 16
	maxSeedLength = 64
)

// ExtendedKey is a node of either derivation tree: a key plus its chain code.
type ExtendedKey struct {
	curve chain.Curve
	bip   *bip32.Key
	ed    *slip10Node
}

// MasterKey computes the root of the tree for curve.
// secp256k1 uses HMAC-SHA512 keyed "Bitcoin seed", ed25519 uses "ed25519 seed".
func MasterKey(seed []byte, curve chain.Curve) (*ExtendedKey, error) {
	if len(seed) < minSeedLength || len(seed) > maxSeedLength {
		return nil, werrors.Newf(werrors.KindDerivationPath, "seed must be %d-%d bytes, got %d", minSeedLength, maxSeedLength, len(seed))
	}

	switch curve {
	case chain.Secp256k1:
		master, err := bip32.NewMasterKey(seed)
		if err != nil {
			return nil, werrors.Wrap(werrors.KindDerivationPath, err, "failed to create master key")
		}
		return &ExtendedKey{curve: curve, bip: master}, nil
	case chain.Ed25519:
		return &ExtendedKey{curve: curve, ed: slip10Master(seed)}, nil
	default:
		return nil, werrors.Newf(werrors.KindUnsupportedDerivation, "unknown curve %d", curve)
	}
}

// Curve returns the tree the key belongs to.
func (k *ExtendedKey) Curve() chain.Curve {
	return k.curve
}

// IsPrivate reports whether the node still carries private material.
func (k *ExtendedKey) IsPrivate() bool {
	if k.bip != nil {
		return k.bip.IsPrivate
	}
	return k.ed != nil
}

// Child derives the child at index. Hardened children require a private parent;
// the ed25519 tree only has hardened children.
func (k *ExtendedKey) Child(index uint32, hardened bool) (*ExtendedKey, error) {
	if index >= HardenedOffset {
		return nil, werrors.Newf(werrors.KindDerivationPath, "child index %d out of range", index)
	}

	switch k.curve {
	case chain.Secp256k1:
		if hardened && !k.bip.IsPrivate {
			return nil, werrors.New(werrors.KindUnsupportedDerivation, "hardened derivation requires a private parent")
		}

		idx := index
		if hardened {
			idx += bip32.FirstHardenedChild
		}
		child, err := k.bip.NewChildKey(idx)
		if err != nil {
			return nil, werrors.Wrapf(werrors.KindDerivationPath, err, "failed to derive child key at index %d", idx)
		}
		if child.IsPrivate {
			child.Key = padPrivateKey(child.Key)
		}
		return &ExtendedKey{curve: k.curve, bip: child}, nil
	case chain.Ed25519:
		child, err := k.ed.child(index, hardened)
		if err != nil {
			return nil, err
		}
		return &ExtendedKey{curve: k.curve, ed: child}, nil
	default:
		return nil, werrors.Newf(werrors.KindUnsupportedDerivation, "unknown curve %d", k.curve)
	}
}

// Neuter returns the public-only counterpart (secp256k1 only).
func (k *ExtendedKey) Neuter() (*ExtendedKey, error) {
	if k.curve != chain.Secp256k1 {
		return nil, werrors.New(werrors.KindUnsupportedDerivation, "ed25519 has no public derivation")
	}
	return &ExtendedKey{curve: k.curve, bip: k.bip.PublicKey()}, nil
}

// PublicKey returns the compressed secp256k1 point or the raw ed25519 public key.
func (k *ExtendedKey) PublicKey() ([]byte, error) {
	switch k.curve {
	case chain.Secp256k1:
		pub := k.bip.Key
		if k.bip.IsPrivate {
			pub = k.bip.PublicKey().Key
		}
		out := make([]byte, len(pub))
		copy(out, pub)
		return out, nil
	case chain.Ed25519:
		pair, err := NewKeyPair(k.curve, k.ed.key)
		if err != nil {
			return nil, err
		}
		defer pair.Zero()
		return pair.Public, nil
	default:
		return nil, werrors.Newf(werrors.KindUnsupportedDerivation, "unknown curve %d", k.curve)
	}
}

// PublicBase58 serialises the extended public key (xpub) of a secp256k1 node.
func (k *ExtendedKey) PublicBase58() (string, error) {
	if k.curve != chain.Secp256k1 {
		return "", werrors.New(werrors.KindUnsupportedDerivation, "extended public keys exist for secp256k1 only")
	}
	return k.bip.PublicKey().B58Serialize(), nil
}

// KeyPair extracts the leaf pair. The pair owns a copy of the private key.
func (k *ExtendedKey) KeyPair() (*KeyPair, error) {
	if !k.IsPrivate() {
		return nil, werrors.New(werrors.KindSigning, "public-only key has no key pair")
	}

	switch k.curve {
	case chain.Secp256k1:
		return NewKeyPair(k.curve, k.bip.Key)
	case chain.Ed25519:
		return NewKeyPair(k.curve, k.ed.key)
	default:
		return nil, werrors.Newf(werrors.KindUnsupportedDerivation, "unknown curve %d", k.curve)
	}
}

// Zero wipes key and chain code.
func (k *ExtendedKey) Zero() {
	if k == nil {
		return
	}
	if k.bip != nil {
		zero(k.bip.Key)
		zero(k.bip.ChainCode)
	}
	if k.ed != nil {
		k.ed.zero()
	}
}

// DerivePath walks the tree from the master key along path. Every intermediate
// node is wiped once its child exists.
func DerivePath(seed []byte, curve chain.Curve, path Path) (*KeyPair, error) {
	node, err := MasterKey(seed, curve)
	if err != nil {
		return nil, err
	}

	for _, seg := range path {
		child, err := node.Child(seg.Index, seg.Hardened)
		node.Zero()
		if err != nil {
			return nil, err
		}
		node = child
	}
	defer node.Zero()

	return node.KeyPair()
}

// WithKeyPair derives the pair for path, hands it to fn and wipes it on every exit,
// including a panic inside fn.
func WithKeyPair(seed []byte, curve chain.Curve, path Path, fn func(*KeyPair) error) error {
	pair, err := DerivePath(seed, curve, path)
	if err != nil {
		return err
	}
	defer pair.Zero()

	return fn(pair)
}

// DerivePublic derives a compressed secp256k1 public key from an xpub along a
// non-hardened path. Used for watch-only address generation.
func DerivePublic(xpub string, path Path) ([]byte, error) {
	node, err := bip32.B58Deserialize(xpub)
	if err != nil {
		return nil, werrors.Wrap(werrors.KindDerivationPath, err, "failed to decode extended public key")
	}
	if node.IsPrivate {
		node = node.PublicKey()
	}

	for _, seg := range path {
		if seg.Hardened {
			return nil, werrors.Newf(werrors.KindUnsupportedDerivation, "hardened segment %s below an extended public key", seg)
		}
		node, err = node.NewChildKey(seg.Index)
		if err != nil {
			return nil, werrors.Wrap(werrors.KindDerivationPath, errors.Wrapf(err, "failed to derive child key at index %d", seg.Index), "public derivation failed")
		}
	}

	pub := make([]byte, len(node.Key))
	copy(pub, node.Key)
	return pub, nil
}

// padPrivateKey left-pads scalars that serialised shorter than 32 bytes.
func padPrivateKey(key []byte) []byte {
	if len(key) >= privateKeyLength {
		return key
	}
	out := make([]byte, privateKeyLength)
	copy(out[privateKeyLength-len(key):], key)
	zero(key)
	return out
}
