package txbuilder_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

var oneSegwitInput = []chain.BitcoinAddressType{chain.P2WPKH}

func TestEstimateVSize(t *testing.T) {
	assert.Equal(t, 10+148+34, txbuilder.EstimateVSize([]chain.BitcoinAddressType{chain.P2PKH}, []string{"p2pkh"}))
	assert.Equal(t, 10+68+31+31+1, txbuilder.EstimateVSize(oneSegwitInput, []string{"p2wpkh", "p2wpkh"}))
	assert.Equal(t, 10+2*68+43+1, txbuilder.EstimateVSize(
		[]chain.BitcoinAddressType{chain.P2WPKH, chain.P2WPKH}, []string{"p2tr"}))
}

func TestCalculateFeeWithChange(t *testing.T) {
	info, err := txbuilder.CalculateFee(oneSegwitInput, "p2wpkh", "p2wpkh", 10000, 100000, decimal.NewFromInt(2))
	require.NoError(t, err)

	assert.Equal(t, 141, info.VSize)
	assert.Equal(t, int64(282), info.Fee)
	assert.Equal(t, int64(100000-10000-282), info.Change)
}

func TestCalculateFeeDustChangeGoesToFee(t *testing.T) {
	// 110 vB * 2 = 220 sat without change; 100 sat left over is dust
	info, err := txbuilder.CalculateFee(oneSegwitInput, "p2wpkh", "p2wpkh", 10000, 10320, decimal.NewFromInt(2))
	require.NoError(t, err)

	assert.Equal(t, int64(320), info.Fee)
	assert.Zero(t, info.Change)
	assert.Equal(t, 110, info.VSize)
}

func TestCalculateFeeChangeCannotPayForItself(t *testing.T) {
	// 600 sat left without change, but the change output costs 62 sat and leaves 538 < dust
	info, err := txbuilder.CalculateFee(oneSegwitInput, "p2wpkh", "p2wpkh", 10000, 10820, decimal.NewFromInt(2))
	require.NoError(t, err)

	assert.Equal(t, int64(820), info.Fee)
	assert.Zero(t, info.Change)
}

func TestCalculateFeeFractionalRateRoundsUp(t *testing.T) {
	info, err := txbuilder.CalculateFee(oneSegwitInput, "p2wpkh", "p2wpkh", 10000, 10000+56, decimal.RequireFromString("0.5"))
	require.NoError(t, err)

	// ceil(110 * 0.5) = 55, 1 sat dust folded in
	assert.Equal(t, int64(56), info.Fee)
}

func TestCalculateFeeInsufficient(t *testing.T) {
	_, err := txbuilder.CalculateFee(oneSegwitInput, "p2wpkh", "p2wpkh", 10000, 10219, decimal.NewFromInt(2))
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindInsufficientFunds))
}
