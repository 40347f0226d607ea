package txbuilder

import (
	"github.com/shopspring/decimal"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

// DustThreshold is the smallest change output worth creating; smaller change goes to the fee.
const DustThreshold = 546

// virtual sizes in vbytes
const (
	txOverhead        = 10
	segwitOverhead    = 1 // marker + flag, amortized
	p2pkhInputSize    = 148
	p2wpkhInputSize   = 68
	p2pkhOutputSize   = 34
	p2shOutputSize    = 32
	p2wpkhOutputSize  = 31
	p2wshOutputSize   = 43
	p2trOutputSize    = 43
	unknownOutputSize = p2wshOutputSize
)

// FeeInfo is the outcome of fee estimation for one input set.
type FeeInfo struct {
	Fee    int64
	Change int64
	VSize  int
}

// outputSize returns the vsize of an output paying to the given address type.
func outputSize(addrType string) int {
	switch addrType {
	case string(chain.P2PKH):
		return p2pkhOutputSize
	case "p2sh":
		return p2shOutputSize
	case string(chain.P2WPKH):
		return p2wpkhOutputSize
	case "p2wsh":
		return p2wshOutputSize
	case "p2tr":
		return p2trOutputSize
	default:
		return unknownOutputSize
	}
}

func inputSize(t chain.BitcoinAddressType) int {
	if t == chain.P2WPKH {
		return p2wpkhInputSize
	}
	return p2pkhInputSize
}

// EstimateVSize estimates the virtual size of a transaction.
func EstimateVSize(inputs []chain.BitcoinAddressType, outputs []string) int {
	size := txOverhead
	segwit := false
	for _, in := range inputs {
		size += inputSize(in)
		segwit = segwit || in == chain.P2WPKH
	}
	for _, out := range outputs {
		size += outputSize(out)
	}
	if segwit {
		size += segwitOverhead
	}
	return size
}

// feeFor returns ceil(rate * vsize).
func feeFor(rate decimal.Decimal, vsize int) int64 {
	return rate.Mul(decimal.NewFromInt(int64(vsize))).Ceil().IntPart()
}

// CalculateFee decides fee and change for spending total to amount at rate sat/vB.
// A change output is only added when it stays at or above DustThreshold after paying for
// itself; otherwise the remainder goes to the fee.
func CalculateFee(inputs []chain.BitcoinAddressType, destType, changeType string, amount, total int64, rate decimal.Decimal) (*FeeInfo, error) {
	// 1. 不带找零输出的交易大小
	sizeNoChange := EstimateVSize(inputs, []string{destType})
	feeNoChange := feeFor(rate, sizeNoChange)

	if total < amount+feeNoChange {
		return nil, werrors.Newf(werrors.KindInsufficientFunds,
			"insufficient funds: total %d, amount %d, fee %d", total, amount, feeNoChange)
	}

	change := total - amount - feeNoChange
	if change < DustThreshold {
		// 2. 找零为 0 或为粉尘，计入手续费
		return &FeeInfo{Fee: feeNoChange + change, VSize: sizeNoChange}, nil
	}

	// 3. 带找零输出
	sizeWithChange := EstimateVSize(inputs, []string{destType, changeType})
	feeWithChange := feeFor(rate, sizeWithChange)
	if change = total - amount - feeWithChange; change >= DustThreshold {
		return &FeeInfo{Fee: feeWithChange, Change: change, VSize: sizeWithChange}, nil
	}

	// 4. 找零不足以支付自身，放弃找零
	return &FeeInfo{Fee: total - amount, VSize: sizeNoChange}, nil
}
