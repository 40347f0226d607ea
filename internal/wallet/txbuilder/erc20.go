package txbuilder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

const (
	defaultERC20GasLimit = 100000
	paddedAddressLength  = 32
)

// transfer(address,uint256)
var transferMethodID = common.Hex2Bytes("a9059cbb")

// ERC20TransferData ABI-encodes transfer(to, amount).
func ERC20TransferData(to common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, len(transferMethodID)+2*paddedAddressLength)
	data = append(data, transferMethodID...)
	data = append(data, common.LeftPadBytes(to.Bytes(), paddedAddressLength)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), paddedAddressLength)...)
	return data
}

// TokenTransfer returns the request moving amount of token from -> to. The transaction
// targets the token contract with zero value.
func TokenTransfer(token, from, to string, amount *big.Int) (*Request, error) {
	if !common.IsHexAddress(token) {
		return nil, werrors.Newf(werrors.KindInvalidAddress, "invalid token address %q", token)
	}
	if !common.IsHexAddress(to) {
		return nil, werrors.Newf(werrors.KindInvalidAddress, "invalid recipient address %q", to)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, werrors.New(werrors.KindInvalidRequest, "token amount must be positive")
	}

	return &Request{
		Chain:  chain.EVM,
		From:   from,
		To:     token,
		Amount: new(big.Int),
		EVM: &EVMFields{
			GasLimit: defaultERC20GasLimit,
			Data:     ERC20TransferData(common.HexToAddress(to), amount),
		},
	}, nil
}
