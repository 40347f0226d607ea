package defi_test

import (
	"context"
	"encoding/binary"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-wallet-engine/internal/test"
	"github/chapool/go-wallet-engine/internal/wallet/address"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/defi"
	"github/chapool/go-wallet-engine/internal/wallet/seed"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

//nolint:dupword
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

const (
	sender = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	weth   = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	usdt   = "0xdac17f958d2ee523a2206206994597c13d831ec7"
)

var now = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

type fixture struct {
	codec   address.Codec
	builder defi.Builder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	codec, err := address.NewCodec(address.Options{BitcoinNetwork: chain.BitcoinMainnet})
	require.NoError(t, err)

	return &fixture{
		codec: codec,
		builder: defi.NewBuilder(codec, defi.Options{
			Contracts: defi.MainnetContracts(),
			Now:       func() time.Time { return now },
		}),
	}
}

func (f *fixture) solanaAccount(t *testing.T, account uint32) string {
	t.Helper()

	s, err := seed.NewManager().ToSeed(testMnemonic, "")
	require.NoError(t, err)
	defer s.Zero()

	path, err := f.codec.DefaultPath(chain.Solana, account)
	require.NoError(t, err)
	addr, err := f.codec.Derive(s.Bytes(), chain.Solana, path)
	require.NoError(t, err)

	return addr.Value
}

// unpack checks the selector of data against signature and decodes the arguments.
func unpack(t *testing.T, definition, method, signature string, data []byte) []interface{} {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(definition))
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(data), 4)
	assert.Equal(t, crypto.Keccak256([]byte(signature))[:4], data[:4])

	args, err := parsed.Methods[method].Inputs.Unpack(data[4:])
	require.NoError(t, err)

	return args
}

const approveDefinition = `[{"name":"approve","type":"function","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}]`

func swapParams() defi.SwapParams {
	return defi.SwapParams{
		Chain:           chain.EVM,
		Protocol:        defi.Uniswap,
		From:            sender,
		Path:            []string{weth, usdt},
		AmountIn:        big.NewInt(1e18),
		QuotedAmountOut: big.NewInt(3_000_000_000),
		MinAmountOut:    big.NewInt(2_985_000_000),
		Deadline:        now.Add(20 * time.Minute),
	}
}

func TestSupportedProtocols(t *testing.T) {
	protocols, err := defi.SupportedProtocols(chain.EVM)
	require.NoError(t, err)
	assert.Equal(t, []defi.Protocol{defi.Uniswap, defi.SushiSwap, defi.Aave, defi.Lido}, protocols)

	protocols, err = defi.SupportedProtocols(chain.Solana)
	require.NoError(t, err)
	assert.Equal(t, []defi.Protocol{defi.NativeStake}, protocols)

	_, err = defi.SupportedProtocols(chain.Bitcoin)
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindUnsupportedChain))
	assert.Contains(t, err.Error(), "does not support DeFi operations")

	_, err = defi.SupportedProtocols(chain.Kind("dogecoin"))
	require.Error(t, err)
}

func TestSlippageFloor(t *testing.T) {
	floor, err := defi.SlippageFloor(big.NewInt(1_000_000), 50)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(995_000), floor)

	floor, err = defi.SlippageFloor(big.NewInt(333), 100)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(329), floor)

	floor, err = defi.SlippageFloor(big.NewInt(42), 0)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), floor)

	_, err = defi.SlippageFloor(big.NewInt(42), 10000)
	require.Error(t, err)
	_, err = defi.SlippageFloor(nil, 50)
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindInvalidRequest))
}

func TestSwap(t *testing.T) {
	f := newFixture(t)
	contracts := defi.MainnetContracts()

	params := swapParams()
	params.Approve = true

	op, err := f.builder.Swap(params)
	require.NoError(t, err)
	assert.Equal(t, defi.Uniswap, op.Protocol)

	req := op.Request
	assert.Equal(t, chain.EVM, req.Chain)
	assert.Equal(t, sender, req.From)
	assert.Equal(t, contracts.UniswapV2Router.Hex(), req.To)
	assert.Zero(t, req.Amount.Sign())

	args := unpack(t, `[{"name":"swapExactTokensForTokens","type":"function","inputs":[
		{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},
		{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[]}]`,
		"swapExactTokensForTokens", "swapExactTokensForTokens(uint256,uint256,address[],address,uint256)", req.EVM.Data)
	assert.Equal(t, params.AmountIn, args[0])
	assert.Equal(t, params.MinAmountOut, args[1])
	assert.Equal(t, []common.Address{common.HexToAddress(weth), common.HexToAddress(usdt)}, args[2])
	assert.Equal(t, common.HexToAddress(sender), args[3])
	assert.Equal(t, big.NewInt(params.Deadline.Unix()), args[4])

	require.NotNil(t, op.Approve)
	assert.Equal(t, common.HexToAddress(weth).Hex(), op.Approve.To)
	approveArgs := unpack(t, approveDefinition, "approve", "approve(address,uint256)", op.Approve.EVM.Data)
	assert.Equal(t, contracts.UniswapV2Router, approveArgs[0])
	assert.Equal(t, params.AmountIn, approveArgs[1])

	assert.Equal(t, []*txbuilder.Request{op.Approve, op.Request}, op.Requests())
}

func TestSwapRoutesSushiSwapAndRecipient(t *testing.T) {
	f := newFixture(t)

	params := swapParams()
	params.Protocol = defi.SushiSwap
	params.Recipient = usdt

	op, err := f.builder.Swap(params)
	require.NoError(t, err)
	assert.Equal(t, defi.MainnetContracts().SushiSwapRouter.Hex(), op.Request.To)
	assert.Nil(t, op.Approve)
	assert.Len(t, op.Requests(), 1)

	// recipient is the fourth 32 byte word after the selector
	word := op.Request.EVM.Data[4+3*32 : 4+4*32]
	assert.Equal(t, common.HexToAddress(usdt), common.BytesToAddress(word))
}

func TestSwapValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(p *defi.SwapParams)
		kind   werrors.Kind
	}{
		{"zero amount in", func(p *defi.SwapParams) { p.AmountIn = big.NewInt(0) }, werrors.KindInvalidRequest},
		{"missing quote", func(p *defi.SwapParams) { p.QuotedAmountOut = nil }, werrors.KindInvalidRequest},
		{"zero minimum", func(p *defi.SwapParams) { p.MinAmountOut = big.NewInt(0) }, werrors.KindInvalidRequest},
		{"minimum above quote", func(p *defi.SwapParams) { p.MinAmountOut = big.NewInt(3_000_000_001) }, werrors.KindInvalidRequest},
		{"deadline now", func(p *defi.SwapParams) { p.Deadline = now }, werrors.KindInvalidRequest},
		{"deadline passed", func(p *defi.SwapParams) { p.Deadline = now.Add(-time.Second) }, werrors.KindInvalidRequest},
		{"single token path", func(p *defi.SwapParams) { p.Path = []string{weth} }, werrors.KindInvalidRequest},
		{"repeated token", func(p *defi.SwapParams) { p.Path = []string{weth, weth} }, werrors.KindInvalidRequest},
		{"bad token", func(p *defi.SwapParams) { p.Path = []string{weth, "0x1234"} }, werrors.KindInvalidAddress},
		{"bad sender", func(p *defi.SwapParams) { p.From = "0x9858efFD232B4033E47d90003D41EC34EcaEda94" }, werrors.KindInvalidAddress},
		{"lending protocol", func(p *defi.SwapParams) { p.Protocol = defi.Aave }, werrors.KindInvalidRequest},
		{"bitcoin", func(p *defi.SwapParams) { p.Chain = chain.Bitcoin }, werrors.KindUnsupportedChain},
		{"solana", func(p *defi.SwapParams) { p.Chain = chain.Solana }, werrors.KindUnsupportedChain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := swapParams()
			tt.mutate(&params)

			_, err := f.builder.Swap(params)
			require.Error(t, err)
			assert.Equal(t, tt.kind, werrors.KindOf(err), err.Error())
		})
	}
}

func TestSwapBuildsThroughPipeline(t *testing.T) {
	f := newFixture(t)
	evm := &test.FakeEVM{Nonce: 3, Gas: 150000}
	builder := txbuilder.NewBuilder(f.codec, txbuilder.Providers{EVM: evm}, txbuilder.Options{})

	op, err := f.builder.Swap(swapParams())
	require.NoError(t, err)

	unsigned, err := builder.Build(context.Background(), op.Request)
	require.NoError(t, err)
	assert.Equal(t, txbuilder.StateBuilt, unsigned.State)

	tx := unsigned.EVM.Tx
	assert.Equal(t, defi.MainnetContracts().UniswapV2Router, *tx.To())
	assert.Equal(t, op.Request.EVM.Data, tx.Data())
	assert.Equal(t, uint64(150000), tx.Gas())
	assert.Equal(t, uint64(3), tx.Nonce())
}

func TestAaveSupplyAndWithdraw(t *testing.T) {
	f := newFixture(t)
	pool := defi.MainnetContracts().AaveV3Pool

	op, err := f.builder.Supply(defi.LendingParams{
		Chain: chain.EVM, Protocol: defi.Aave, From: sender, Asset: usdt, Amount: big.NewInt(5_000_000), Approve: true,
	})
	require.NoError(t, err)
	assert.Equal(t, pool.Hex(), op.Request.To)

	args := unpack(t, `[{"name":"supply","type":"function","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},
		{"name":"onBehalfOf","type":"address"},{"name":"referralCode","type":"uint16"}],"outputs":[]}]`,
		"supply", "supply(address,uint256,address,uint16)", op.Request.EVM.Data)
	assert.Equal(t, common.HexToAddress(usdt), args[0])
	assert.Equal(t, big.NewInt(5_000_000), args[1])
	assert.Equal(t, common.HexToAddress(sender), args[2])
	assert.Equal(t, uint16(0), args[3])

	require.NotNil(t, op.Approve)
	assert.Equal(t, common.HexToAddress(usdt).Hex(), op.Approve.To)

	op, err = f.builder.Withdraw(defi.LendingParams{
		Chain: chain.EVM, Protocol: defi.Aave, From: sender, Asset: usdt, Amount: big.NewInt(7), OnBehalfOf: weth,
	})
	require.NoError(t, err)
	assert.Nil(t, op.Approve)

	args = unpack(t, `[{"name":"withdraw","type":"function","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},
		{"name":"to","type":"address"}],"outputs":[]}]`,
		"withdraw", "withdraw(address,uint256,address)", op.Request.EVM.Data)
	assert.Equal(t, big.NewInt(7), args[1])
	assert.Equal(t, common.HexToAddress(weth), args[2])

	_, err = f.builder.Supply(defi.LendingParams{Chain: chain.EVM, Protocol: defi.Aave, From: sender, Asset: usdt})
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindInvalidRequest))

	_, err = f.builder.Supply(defi.LendingParams{Chain: chain.EVM, Protocol: defi.Lido, From: sender, Asset: usdt, Amount: big.NewInt(1)})
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindInvalidRequest))
}

func TestLidoStakeAndUnstake(t *testing.T) {
	f := newFixture(t)
	contracts := defi.MainnetContracts()
	amount := big.NewInt(2e18)

	op, err := f.builder.Stake(defi.StakeParams{Chain: chain.EVM, Protocol: defi.Lido, From: sender, Amount: amount})
	require.NoError(t, err)
	assert.Equal(t, contracts.LidoStETH.Hex(), op.Request.To)
	assert.Equal(t, amount, op.Request.Amount)

	args := unpack(t, `[{"name":"submit","type":"function","inputs":[{"name":"_referral","type":"address"}],"outputs":[]}]`,
		"submit", "submit(address)", op.Request.EVM.Data)
	assert.Equal(t, common.Address{}, args[0])

	op, err = f.builder.Unstake(defi.StakeParams{Chain: chain.EVM, Protocol: defi.Lido, From: sender, Amount: amount})
	require.NoError(t, err)
	assert.Equal(t, contracts.LidoWithdrawalQueue.Hex(), op.Request.To)
	assert.Zero(t, op.Request.Amount.Sign())

	require.NotNil(t, op.Approve)
	assert.Equal(t, contracts.LidoStETH.Hex(), op.Approve.To)
	approveArgs := unpack(t, approveDefinition, "approve", "approve(address,uint256)", op.Approve.EVM.Data)
	assert.Equal(t, contracts.LidoWithdrawalQueue, approveArgs[0])

	args = unpack(t, `[{"name":"requestWithdrawals","type":"function","inputs":[{"name":"_amounts","type":"uint256[]"},
		{"name":"_owner","type":"address"}],"outputs":[]}]`,
		"requestWithdrawals", "requestWithdrawals(uint256[],address)", op.Request.EVM.Data)
	assert.Equal(t, []*big.Int{amount}, args[0])
	assert.Equal(t, common.HexToAddress(sender), args[1])

	_, err = f.builder.Stake(defi.StakeParams{Chain: chain.EVM, Protocol: defi.Lido, From: sender})
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindInvalidRequest))

	_, err = f.builder.Stake(defi.StakeParams{Chain: chain.Bitcoin, Protocol: defi.Lido, From: sender, Amount: amount})
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindUnsupportedChain))
}

func TestSolanaStake(t *testing.T) {
	f := newFixture(t)
	authority := f.solanaAccount(t, 0)
	stakeAccount := f.solanaAccount(t, 1)
	vote := f.solanaAccount(t, 2)

	op, err := f.builder.Stake(defi.StakeParams{
		Chain: chain.Solana, Protocol: defi.NativeStake, From: authority, StakeAccount: stakeAccount, VoteAccount: vote,
	})
	require.NoError(t, err)
	assert.Equal(t, defi.NativeStake, op.Protocol)
	assert.Equal(t, authority, op.Request.From)
	require.Len(t, op.Request.Solana.Instructions, 1)

	delegate := op.Request.Solana.Instructions[0]
	assert.Equal(t, solana.StakeProgramID, delegate.ProgramID())
	data, err := delegate.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 0, 0}, data)

	accounts := delegate.Accounts()
	require.Len(t, accounts, 6)
	assert.Equal(t, solana.MustPublicKeyFromBase58(stakeAccount), accounts[0].PublicKey)
	assert.True(t, accounts[0].IsWritable)
	assert.False(t, accounts[0].IsSigner)
	assert.Equal(t, solana.MustPublicKeyFromBase58(vote), accounts[1].PublicKey)
	assert.Equal(t, solana.SysVarClockPubkey, accounts[2].PublicKey)
	assert.Equal(t, solana.SysVarStakeHistoryPubkey, accounts[3].PublicKey)
	assert.Equal(t, solana.SysVarStakeConfigPubkey, accounts[4].PublicKey)
	assert.Equal(t, solana.MustPublicKeyFromBase58(authority), accounts[5].PublicKey)
	assert.True(t, accounts[5].IsSigner)

	op, err = f.builder.Unstake(defi.StakeParams{
		Chain: chain.Solana, Protocol: defi.NativeStake, From: authority, StakeAccount: stakeAccount,
	})
	require.NoError(t, err)

	deactivate := op.Request.Solana.Instructions[0]
	data, err = deactivate.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 0, 0, 0}, data)
	require.Len(t, deactivate.Accounts(), 3)
	assert.True(t, deactivate.Accounts()[2].IsSigner)

	sol := &test.FakeSolana{Blockhash: solana.HashFromBytes(make([]byte, 32))}
	builder := txbuilder.NewBuilder(f.codec, txbuilder.Providers{Solana: sol}, txbuilder.Options{})
	unsigned, err := builder.Build(context.Background(), op.Request)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), unsigned.Solana.Tx.Message.Header.NumRequiredSignatures)
	assert.Equal(t, solana.MustPublicKeyFromBase58(authority), unsigned.Solana.Tx.Message.AccountKeys[0])

	_, err = f.builder.Stake(defi.StakeParams{Chain: chain.Solana, Protocol: defi.NativeStake, From: authority, StakeAccount: stakeAccount})
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindInvalidRequest))

	_, err = f.builder.Unstake(defi.StakeParams{Chain: chain.Solana, Protocol: defi.NativeStake, From: authority, StakeAccount: sender})
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindInvalidAddress))

	_, err = f.builder.Stake(defi.StakeParams{Chain: chain.Solana, Protocol: defi.Lido, From: authority, StakeAccount: stakeAccount})
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindUnsupportedChain))

	_, err = f.builder.Unstake(defi.StakeParams{
		Chain: chain.Solana, Protocol: defi.NativeStake, From: authority, StakeAccount: stakeAccount, Amount: big.NewInt(1),
	})
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindInvalidRequest))
}

func TestSolanaStakeCreatesSeededAccount(t *testing.T) {
	f := newFixture(t)
	authority := f.solanaAccount(t, 0)
	vote := f.solanaAccount(t, 2)
	authorityKey := solana.MustPublicKeyFromBase58(authority)

	expected, err := solana.CreateWithSeed(authorityKey, "stake:7", solana.StakeProgramID)
	require.NoError(t, err)

	op, err := f.builder.Stake(defi.StakeParams{
		Chain: chain.Solana, Protocol: defi.NativeStake, From: authority, VoteAccount: vote, Seed: "stake:7", Amount: big.NewInt(1_000_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, expected.String(), op.StakeAccount)
	require.Len(t, op.Request.Solana.Instructions, 3)

	create := op.Request.Solana.Instructions[0]
	assert.Equal(t, solana.SystemProgramID, create.ProgramID())
	createAccounts := create.Accounts()
	require.Len(t, createAccounts, 3)
	assert.Equal(t, expected, createAccounts[1].PublicKey)
	assert.False(t, createAccounts[1].IsSigner)
	data, err := create.Data()
	require.NoError(t, err)
	// funded with the amount plus the rent-exempt reserve
	lamports := make([]byte, 8)
	binary.LittleEndian.PutUint64(lamports, 1_000_000_000+defi.StakeAccountRent)
	assert.Contains(t, string(data), string(lamports))

	initialize := op.Request.Solana.Instructions[1]
	assert.Equal(t, solana.StakeProgramID, initialize.ProgramID())
	data, err = initialize.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, data[:4])
	assert.Equal(t, expected, initialize.Accounts()[0].PublicKey)
	assert.False(t, initialize.Accounts()[0].IsSigner)

	delegate := op.Request.Solana.Instructions[2]
	assert.Equal(t, expected, delegate.Accounts()[0].PublicKey)

	// the whole transaction still needs one signature only
	sol := &test.FakeSolana{Blockhash: solana.HashFromBytes(make([]byte, 32))}
	builder := txbuilder.NewBuilder(f.codec, txbuilder.Providers{Solana: sol}, txbuilder.Options{})
	unsigned, err := builder.Build(context.Background(), op.Request)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), unsigned.Solana.Tx.Message.Header.NumRequiredSignatures)

	defaultSeed, err := defi.StakeAccountWithSeed(authorityKey, "")
	require.NoError(t, err)
	op, err = f.builder.Stake(defi.StakeParams{
		Chain: chain.Solana, Protocol: defi.NativeStake, From: authority, VoteAccount: vote, Amount: big.NewInt(5), StakeAccount: defaultSeed.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, defaultSeed.String(), op.StakeAccount)

	_, err = f.builder.Stake(defi.StakeParams{
		Chain: chain.Solana, Protocol: defi.NativeStake, From: authority, VoteAccount: vote, Amount: big.NewInt(5), StakeAccount: f.solanaAccount(t, 1),
	})
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindInvalidRequest))

	_, err = f.builder.Stake(defi.StakeParams{
		Chain: chain.Solana, Protocol: defi.NativeStake, From: authority, VoteAccount: vote, Amount: big.NewInt(-5),
	})
	require.Error(t, err)
	assert.True(t, werrors.Is(err, werrors.KindInvalidRequest))
}
