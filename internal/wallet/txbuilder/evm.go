package txbuilder

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

const defaultETHGasLimit = 21000

func (s *service) buildEVM(ctx context.Context, req *Request) (*Unsigned, error) {
	to, err := s.decodeRecipient(req)
	if err != nil {
		return nil, err
	}
	from, err := s.decodeSender(req)
	if err != nil {
		return nil, err
	}

	fields := req.EVM
	if fields == nil {
		fields = &EVMFields{}
	}
	toAddress := common.BytesToAddress(to.Bytes)
	fromAddress := common.BytesToAddress(from.Bytes)
	value := amountOrZero(req.Amount)

	// 1. 链 ID
	chainID := fields.ChainID
	if chainID == nil {
		if s.providers.EVM == nil {
			return nil, unsupported(chain.EVM)
		}
		if chainID, err = s.providers.EVM.ChainID(ctx); err != nil {
			return nil, err
		}
	}

	// 2. Gas 价格
	legacy, gasPrice, feeCap, tipCap, err := s.evmFees(ctx, fields)
	if err != nil {
		return nil, err
	}

	// 3. Gas 用量
	gasLimit := fields.GasLimit
	if gasLimit == 0 {
		if len(fields.Data) == 0 && s.providers.EVM == nil {
			gasLimit = defaultETHGasLimit
		} else {
			if s.providers.EVM == nil {
				return nil, unsupported(chain.EVM)
			}
			gasLimit, err = s.providers.EVM.EstimateGas(ctx, ethereum.CallMsg{
				From:  fromAddress,
				To:    &toAddress,
				Value: value,
				Data:  fields.Data,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	// 4. Nonce，最后获取，避免前面的失败浪费 nonce
	nonce, tracked, err := s.evmNonce(ctx, fields, req.From)
	if err != nil {
		return nil, err
	}

	var (
		//nolint:varnamelen // tx is a common abbreviation for transaction
		tx     *types.Transaction
		signer types.Signer
	)
	if legacy {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			To:       &toAddress,
			Value:    value,
			Data:     fields.Data,
		})
		signer = types.NewEIP155Signer(chainID)
	} else {
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tipCap,
			GasFeeCap: feeCap,
			Gas:       gasLimit,
			To:        &toAddress,
			Value:     value,
			Data:      fields.Data,
		})
		signer = types.NewLondonSigner(chainID)
	}

	payload, err := SigningPayload(tx, chainID)
	if err != nil {
		if tracked {
			s.nonces.Reset(req.From)
		}
		return nil, err
	}

	return &Unsigned{
		Chain:   chain.EVM,
		From:    fromAddress.Hex(),
		To:      toAddress.Hex(),
		Payload: payload,
		Digests: [][]byte{signer.Hash(tx).Bytes()},
		State:   StateUnsigned,
		EVM: &EVMTx{
			Tx:      tx,
			Signer:  signer,
			Nonce:   nonce,
			Tracked: tracked,
		},
	}, nil
}

// evmFees picks legacy or dynamic fees. Explicit request values win over node suggestions.
func (s *service) evmFees(ctx context.Context, fields *EVMFields) (bool, *big.Int, *big.Int, *big.Int, error) {
	switch {
	case fields.GasPrice != nil:
		return true, fields.GasPrice, nil, nil, nil
	case fields.MaxFeePerGas != nil && fields.MaxPriorityFeePerGas != nil:
		if fields.MaxPriorityFeePerGas.Cmp(fields.MaxFeePerGas) > 0 {
			return false, nil, nil, nil, werrors.New(werrors.KindInvalidRequest, "max priority fee exceeds max fee")
		}
		return false, nil, fields.MaxFeePerGas, fields.MaxPriorityFeePerGas, nil
	}

	if s.providers.EVM == nil {
		return false, nil, nil, nil, unsupported(chain.EVM)
	}
	fees, err := s.providers.EVM.SuggestFees(ctx)
	if err != nil {
		return false, nil, nil, nil, err
	}

	if s.opts.LegacyFees || !fees.DynamicFeeSupported() {
		if fees.GasPrice == nil {
			return false, nil, nil, nil, werrors.New(werrors.KindProviderUnavailable, "node returned no gas price")
		}
		return true, fees.GasPrice, nil, nil, nil
	}

	feeCap, tipCap := fees.MaxFeePerGas, fees.MaxPriorityFeePerGas
	if fields.MaxFeePerGas != nil {
		feeCap = fields.MaxFeePerGas
	}
	if fields.MaxPriorityFeePerGas != nil {
		tipCap = fields.MaxPriorityFeePerGas
	}
	if tipCap.Cmp(feeCap) > 0 {
		tipCap = feeCap
	}

	return false, nil, feeCap, tipCap, nil
}

func (s *service) evmNonce(ctx context.Context, fields *EVMFields, from string) (uint64, bool, error) {
	if fields.Nonce != nil {
		return *fields.Nonce, false, nil
	}
	if s.providers.EVM == nil {
		return 0, false, unsupported(chain.EVM)
	}

	nonce, err := s.nonces.Acquire(ctx, from, func(ctx context.Context) (uint64, error) {
		return s.providers.EVM.GetNonce(ctx, from)
	})
	if err != nil {
		return 0, false, err
	}
	return nonce, true, nil
}

// SigningPayload returns the canonical unsigned encoding whose Keccak-256 is the signing hash:
// rlp(nonce, gasPrice, gas, to, value, data, chainId, 0, 0) for legacy transactions and
// 0x02 || rlp(chainId, nonce, tip, feeCap, gas, to, value, data, accessList) for EIP-1559.
func SigningPayload(tx *types.Transaction, chainID *big.Int) ([]byte, error) {
	switch tx.Type() {
	case types.LegacyTxType:
		payload, err := rlp.EncodeToBytes([]interface{}{
			tx.Nonce(), tx.GasPrice(), tx.Gas(), tx.To(), tx.Value(), tx.Data(),
			chainID, uint(0), uint(0),
		})
		return payload, errors.Wrap(err, "failed to encode legacy signing payload")
	case types.DynamicFeeTxType:
		body, err := rlp.EncodeToBytes([]interface{}{
			chainID, tx.Nonce(), tx.GasTipCap(), tx.GasFeeCap(), tx.Gas(), tx.To(), tx.Value(), tx.Data(),
			tx.AccessList(),
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode dynamic fee signing payload")
		}
		return append([]byte{types.DynamicFeeTxType}, body...), nil
	default:
		return nil, werrors.Newf(werrors.KindInvalidRequest, "unsupported transaction type %d", tx.Type())
	}
}
