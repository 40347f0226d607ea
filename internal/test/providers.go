package test

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/provider"
)

// FakeEVM is an in-memory provider.EVM. Zero values answer with sensible defaults.
type FakeEVM struct {
	mu sync.Mutex

	Nonce        uint64
	NonceErr     error
	Fees         *provider.Fees
	Gas          uint64
	ChainIDValue *big.Int
	Balances     map[string]*big.Int
	BroadcastErr error
	Statuses     map[string]*provider.Status

	Broadcasts [][]byte
	NonceCalls int
}

var _ provider.EVM = (*FakeEVM)(nil)

func (f *FakeEVM) Chain() chain.Kind { return chain.EVM }

func (f *FakeEVM) GetBalance(_ context.Context, address string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if b, ok := f.Balances[strings.ToLower(address)]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *FakeEVM) GetTokenBalance(ctx context.Context, _ string, account string) (*big.Int, error) {
	return f.GetBalance(ctx, account)
}

func (f *FakeEVM) GetNonce(context.Context, string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.NonceCalls++
	return f.Nonce, f.NonceErr
}

func (f *FakeEVM) SuggestFees(context.Context) (*provider.Fees, error) {
	if f.Fees != nil {
		return f.Fees, nil
	}
	return &provider.Fees{
		GasPrice:             big.NewInt(2_000_000_000),
		BaseFee:              big.NewInt(1_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(1_000_000_000),
		MaxFeePerGas:         big.NewInt(3_000_000_000),
	}, nil
}

func (f *FakeEVM) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	if f.Gas != 0 {
		return f.Gas, nil
	}
	return 21000, nil
}

func (f *FakeEVM) ChainID(context.Context) (*big.Int, error) {
	if f.ChainIDValue != nil {
		return new(big.Int).Set(f.ChainIDValue), nil
	}
	return big.NewInt(1), nil
}

func (f *FakeEVM) BroadcastRaw(_ context.Context, raw []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.BroadcastErr != nil {
		return "", f.BroadcastErr
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return "", errors.Wrap(err, "failed to decode transaction")
	}
	f.Broadcasts = append(f.Broadcasts, raw)
	return tx.Hash().Hex(), nil
}

func (f *FakeEVM) GetTransactionStatus(_ context.Context, txID string) (*provider.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if st, ok := f.Statuses[txID]; ok {
		return st, nil
	}
	return &provider.Status{State: provider.StatePending}, nil
}

// FakeBitcoin is an in-memory provider.Bitcoin.
type FakeBitcoin struct {
	mu sync.Mutex

	UTXOs        map[string][]provider.UTXO
	FeeRate      decimal.Decimal
	BroadcastErr error
	Statuses     map[string]*provider.Status

	Broadcasts [][]byte
}

var _ provider.Bitcoin = (*FakeBitcoin)(nil)

func (f *FakeBitcoin) Chain() chain.Kind { return chain.Bitcoin }

func (f *FakeBitcoin) GetBalance(_ context.Context, address string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var total int64
	for _, u := range f.UTXOs[address] {
		total += u.Value
	}
	return big.NewInt(total), nil
}

func (f *FakeBitcoin) GetUTXOs(_ context.Context, address string) ([]provider.UTXO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]provider.UTXO(nil), f.UTXOs[address]...), nil
}

func (f *FakeBitcoin) EstimateFeeRate(context.Context, int) (decimal.Decimal, error) {
	if f.FeeRate.IsZero() {
		return decimal.NewFromInt(1), nil
	}
	return f.FeeRate, nil
}

func (f *FakeBitcoin) BroadcastRaw(_ context.Context, raw []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.BroadcastErr != nil {
		return "", f.BroadcastErr
	}
	var msgTx wire.MsgTx
	if err := msgTx.Deserialize(bytes.NewReader(raw)); err != nil {
		return "", errors.Wrap(err, "failed to decode transaction")
	}
	f.Broadcasts = append(f.Broadcasts, raw)
	return msgTx.TxHash().String(), nil
}

func (f *FakeBitcoin) GetTransactionStatus(_ context.Context, txID string) (*provider.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if st, ok := f.Statuses[txID]; ok {
		return st, nil
	}
	return &provider.Status{State: provider.StatePending}, nil
}

// FakeSolana is an in-memory provider.Solana.
type FakeSolana struct {
	mu sync.Mutex

	Blockhash    solana.Hash
	Balances     map[string]uint64
	BroadcastErr error
	Statuses     map[string]*provider.Status

	Broadcasts [][]byte
}

var _ provider.Solana = (*FakeSolana)(nil)

func (f *FakeSolana) Chain() chain.Kind { return chain.Solana }

func (f *FakeSolana) GetBalance(_ context.Context, address string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return new(big.Int).SetUint64(f.Balances[address]), nil
}

func (f *FakeSolana) GetRecentBlockhash(context.Context) (solana.Hash, error) {
	return f.Blockhash, nil
}

func (f *FakeSolana) BroadcastRaw(_ context.Context, raw []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.BroadcastErr != nil {
		return "", f.BroadcastErr
	}
	const signatureLength = 64
	if len(raw) < 1+signatureLength {
		return "", errors.New("short transaction")
	}
	f.Broadcasts = append(f.Broadcasts, raw)
	return solana.SignatureFromBytes(raw[1 : 1+signatureLength]).String(), nil
}

func (f *FakeSolana) GetTransactionStatus(_ context.Context, txID string) (*provider.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if st, ok := f.Statuses[txID]; ok {
		return st, nil
	}
	return &provider.Status{State: provider.StatePending}, nil
}
