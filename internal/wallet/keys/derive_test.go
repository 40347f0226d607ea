package keys_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/keys"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

// BIP32 / SLIP-0010 test vector 1 seed
func vectorSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)
	return seed
}

func TestSecp256k1Vector1(t *testing.T) {
	seed := vectorSeed(t)

	master, err := keys.MasterKey(seed, chain.Secp256k1)
	require.NoError(t, err)

	xpub, err := master.PublicBase58()
	require.NoError(t, err)
	assert.Equal(t, "xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8", xpub)

	pair, err := master.KeyPair()
	require.NoError(t, err)
	assert.Equal(t, "e8f32e723decf4051aefac8e2c93c9c5b214313817cdb01a1494b917c8436b35", hex.EncodeToString(pair.Private()))
	assert.Len(t, pair.Public, 33)

	child, err := master.Child(0, true)
	require.NoError(t, err)
	xpub, err = child.PublicBase58()
	require.NoError(t, err)
	assert.Equal(t, "xpub68Gmy5EdvgibQVfPdqkBBCHxA5htiqg55crXYuXoQRKfDBFA1WEjWgP6LHhwBZeNK1VTsfTFUHCdrfp1bgwQ9xv5ski8PX9rL2dZXvgGDnw", xpub)
}

func TestEd25519Vector1(t *testing.T) {
	seed := vectorSeed(t)

	master, err := keys.MasterKey(seed, chain.Ed25519)
	require.NoError(t, err)
	pair, err := master.KeyPair()
	require.NoError(t, err)
	assert.Equal(t, "2b4be7f19ee27bbf30c667b642d5f4aa69fd169872f8fc3059c08ebae2eb19e7", hex.EncodeToString(pair.Private()))
	assert.Equal(t, "a4b2856bfec510abab89753fac1ac0e1112364e7d250545963f135f2a33188ed", hex.EncodeToString(pair.Public))

	child, err := keys.DerivePath(seed, chain.Ed25519, keys.MustParsePath("m/0'"))
	require.NoError(t, err)
	assert.Equal(t, "68e0fe46dfb67e368c75379acec591dad19df3cde26e63b93a8e704f1dade7a3", hex.EncodeToString(child.Private()))
	assert.Equal(t, "8c8a13df77a28f3445213a0f432fde644acaa215fc72dcdf300d5efaa85d350c", hex.EncodeToString(child.Public))
}

func TestEd25519RejectsNonHardened(t *testing.T) {
	_, err := keys.DerivePath(vectorSeed(t), chain.Ed25519, keys.MustParsePath("m/44'/501'/0'/0"))
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindUnsupportedDerivation))

	_, err = (&keys.ExtendedKey{}).Neuter()
	require.Error(t, err)
}

func TestDerivePathDeterministic(t *testing.T) {
	seed := vectorSeed(t)
	path := keys.MustParsePath("m/44'/60'/0'/0/3")

	a, err := keys.DerivePath(seed, chain.Secp256k1, path)
	require.NoError(t, err)
	b, err := keys.DerivePath(seed, chain.Secp256k1, path)
	require.NoError(t, err)
	assert.Equal(t, a.Private(), b.Private())
	assert.Equal(t, a.Public, b.Public)

	other, err := keys.DerivePath(seed, chain.Secp256k1, path[:4].Child(4, false))
	require.NoError(t, err)
	assert.NotEqual(t, a.Public, other.Public)
}

func TestMasterKeyRejectsBadSeed(t *testing.T) {
	_, err := keys.MasterKey(make([]byte, 8), chain.Secp256k1)
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindDerivationPath))

	_, err = keys.MasterKey(make([]byte, 65), chain.Ed25519)
	require.Error(t, err)
}

func TestWithKeyPairZeroes(t *testing.T) {
	seed := vectorSeed(t)
	path := keys.MustParsePath("m/44'/0'/0'/0/0")

	var held *keys.KeyPair
	var priv []byte
	err := keys.WithKeyPair(seed, chain.Secp256k1, path, func(kp *keys.KeyPair) error {
		held = kp
		priv = kp.Private()
		assert.False(t, kp.Zeroed())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, held.Zeroed())
	assert.Equal(t, make([]byte, 32), priv)
}

func TestWithKeyPairZeroesOnPanic(t *testing.T) {
	seed := vectorSeed(t)
	var held *keys.KeyPair

	assert.Panics(t, func() {
		_ = keys.WithKeyPair(seed, chain.Ed25519, keys.MustParsePath("m/44'/501'/0'/0'"), func(kp *keys.KeyPair) error {
			held = kp
			panic("boom")
		})
	})
	require.NotNil(t, held)
	assert.True(t, held.Zeroed())
}

func TestDerivePublicMatchesPrivateDerivation(t *testing.T) {
	seed := vectorSeed(t)

	master, err := keys.MasterKey(seed, chain.Secp256k1)
	require.NoError(t, err)
	account := master
	for _, seg := range keys.MustParsePath("m/44'/0'/0'") {
		account, err = account.Child(seg.Index, seg.Hardened)
		require.NoError(t, err)
	}
	xpub, err := account.PublicBase58()
	require.NoError(t, err)

	pub, err := keys.DerivePublic(xpub, keys.MustParsePath("m/0/5"))
	require.NoError(t, err)

	pair, err := keys.DerivePath(seed, chain.Secp256k1, keys.MustParsePath("m/44'/0'/0'/0/5"))
	require.NoError(t, err)
	assert.Equal(t, pair.Public, pub)

	_, err = keys.DerivePublic(xpub, keys.MustParsePath("m/0'"))
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindUnsupportedDerivation))
}

func TestNeuterBlocksHardened(t *testing.T) {
	master, err := keys.MasterKey(vectorSeed(t), chain.Secp256k1)
	require.NoError(t, err)

	pub, err := master.Neuter()
	require.NoError(t, err)
	assert.False(t, pub.IsPrivate())

	_, err = pub.Child(0, true)
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindUnsupportedDerivation))

	_, err = pub.KeyPair()
	require.Error(t, err)
}

func TestNewKeyPairLength(t *testing.T) {
	_, err := keys.NewKeyPair(chain.Secp256k1, make([]byte, 31))
	require.Error(t, err)
}
