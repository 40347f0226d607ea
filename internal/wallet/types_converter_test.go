package wallet_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-wallet-engine/internal/wallet"
	"github/chapool/go-wallet-engine/internal/wallet/balance"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/provider"
)

func TestToBalanceItem(t *testing.T) {
	item := wallet.ToBalanceItem(&balance.Balance{
		Chain:   chain.Bitcoin,
		Address: "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu",
		Path:    "m/84'/0'/0'/0/0",
		Amount:  big.NewInt(150_000),
		Value:   decimal.NewFromBigInt(big.NewInt(150_000), -8),
	})

	b, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"chain": "bitcoin",
		"address": "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu",
		"derivationPath": "m/84'/0'/0'/0/0",
		"balance": "150000",
		"amount": "0.0015"
	}`, string(b))
}

func TestToTokenBalanceItem(t *testing.T) {
	item := wallet.ToTokenBalanceItem(&balance.TokenBalance{
		Token:   balance.Token{Address: evmRecipient, Symbol: "USDT", Decimals: 6},
		Account: evmGolden,
		Amount:  big.NewInt(2_500_000),
		Value:   decimal.RequireFromString("2.5"),
	})

	assert.Equal(t, evmRecipient, item.Token)
	assert.Equal(t, "USDT", item.Symbol)
	assert.Equal(t, "2500000", item.Balance)
	assert.Equal(t, "2.5", item.Amount)
}

func TestToStatusItem(t *testing.T) {
	item := wallet.ToStatusItem("abc", &provider.Status{State: provider.StateFailed, Reason: "reverted", Confirmations: 3})
	assert.Equal(t, &wallet.StatusItem{TxID: "abc", State: "failed", Reason: "reverted", Confirmations: 3}, item)
}
