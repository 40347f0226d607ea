package seed_test

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-wallet-engine/internal/wallet/seed"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

//nolint:dupword
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestGenerateValidateRoundTrip(t *testing.T) {
	m := seed.NewManager()

	for _, bits := range []int{128, 160, 192, 224, 256} {
		phrase, err := m.Generate(bits)
		require.NoError(t, err)
		assert.Len(t, strings.Fields(phrase), seed.WordCount(bits))
		assert.True(t, m.Validate(phrase), "bits=%d", bits)
	}
}

func TestGenerateInvalidEntropy(t *testing.T) {
	m := seed.NewManager()

	for _, bits := range []int{0, 64, 129, 288} {
		_, err := m.Generate(bits)
		require.Error(t, err)
		assert.True(t, werrors.Is(err, werrors.KindInvalidMnemonic))
	}
}

func TestValidate(t *testing.T) {
	m := seed.NewManager()

	assert.True(t, m.Validate(testMnemonic))
	assert.True(t, m.Validate("  abandon abandon abandon abandon abandon abandon\tabandon abandon abandon abandon abandon about "))
	// checksum mismatch
	assert.False(t, m.Validate(strings.Replace(testMnemonic, "about", "abandon", 1)))
	// unknown word
	assert.False(t, m.Validate(strings.Replace(testMnemonic, "about", "bitcoin", 1)))
	assert.False(t, m.Validate(""))
}

func TestToSeedVectors(t *testing.T) {
	m := seed.NewManager()

	// BIP39 reference vector (passphrase "TREZOR")
	s, err := m.ToSeed(testMnemonic, "TREZOR")
	require.NoError(t, err)
	assert.Equal(t,
		"c55257c360c07c72029aebc1b53c05ed0362ada38ead3e3e9efa3708e53495531f09a6987599d18264c1e1c92f2cf141630c7a3c4ab7c81b2f001698e7463b04",
		hex.EncodeToString(s.Bytes()))

	plain, err := m.ToSeed(testMnemonic, "")
	require.NoError(t, err)
	assert.Equal(t,
		"5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4",
		hex.EncodeToString(plain.Bytes()))
}

func TestToSeedDeterministicAndZero(t *testing.T) {
	m := seed.NewManager()

	a, err := m.ToSeed(testMnemonic, "x")
	require.NoError(t, err)
	b, err := m.ToSeed(testMnemonic, "x")
	require.NoError(t, err)
	assert.Equal(t, a.Bytes(), b.Bytes())
	assert.Len(t, a.Bytes(), 64)

	buf := a.Bytes()
	a.Zero()
	assert.Nil(t, a.Bytes())
	assert.Equal(t, make([]byte, 64), buf)
}

func TestToSeedInvalidMnemonic(t *testing.T) {
	_, err := seed.NewManager().ToSeed("not a mnemonic", "")
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindInvalidMnemonic))
}
