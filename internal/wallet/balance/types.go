package balance

import (
	"math/big"

	"github.com/shopspring/decimal"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
)

// Balance 原生币余额
type Balance struct {
	Chain   chain.Kind
	Address string
	// Path 派生路径，仅 GetAccountBalances 填充
	Path   string
	Amount *big.Int        // 最小单位（wei, satoshi, lamport）
	Value  decimal.Decimal // 按链的精度换算后的金额
}

// Token 描述一个 ERC-20 代币
type Token struct {
	Address  string
	Symbol   string
	Decimals int32
}

// TokenBalance 代币余额详情
type TokenBalance struct {
	Token   Token
	Account string
	Amount  *big.Int
	Value   decimal.Decimal
}
