package defi

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

const (
	routerDefinition = `[{"name":"swapExactTokensForTokens","type":"function","stateMutability":"nonpayable",
		"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},
			{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
		"outputs":[{"name":"amounts","type":"uint256[]"}]}]`

	poolDefinition = `[{"name":"supply","type":"function","stateMutability":"nonpayable",
		"inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},
			{"name":"onBehalfOf","type":"address"},{"name":"referralCode","type":"uint16"}],"outputs":[]},
	{"name":"withdraw","type":"function","stateMutability":"nonpayable",
		"inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"to","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]}]`

	lidoDefinition = `[{"name":"submit","type":"function","stateMutability":"payable",
		"inputs":[{"name":"_referral","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`

	withdrawalQueueDefinition = `[{"name":"requestWithdrawals","type":"function","stateMutability":"nonpayable",
		"inputs":[{"name":"_amounts","type":"uint256[]"},{"name":"_owner","type":"address"}],
		"outputs":[{"name":"requestIds","type":"uint256[]"}]}]`

	erc20Definition = `[{"name":"approve","type":"function","stateMutability":"nonpayable",
		"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
		"outputs":[{"name":"","type":"bool"}]}]`
)

var (
	routerABI          = mustParseABI(routerDefinition)
	poolABI            = mustParseABI(poolDefinition)
	lidoABI            = mustParseABI(lidoDefinition)
	withdrawalQueueABI = mustParseABI(withdrawalQueueDefinition)
	erc20ABI           = mustParseABI(erc20Definition)
)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}
	return parsed
}

func (s *service) swap(p SwapParams) (*Operation, error) {
	if err := positive(p.AmountIn, "amount in"); err != nil {
		return nil, err
	}
	if err := positive(p.QuotedAmountOut, "quoted amount out"); err != nil {
		return nil, err
	}
	if err := positive(p.MinAmountOut, "minimum amount out"); err != nil {
		return nil, err
	}
	if p.MinAmountOut.Cmp(p.QuotedAmountOut) > 0 {
		return nil, werrors.New(werrors.KindInvalidRequest, "minimum amount out exceeds the quoted amount")
	}
	if !p.Deadline.After(s.now()) {
		return nil, werrors.New(werrors.KindInvalidRequest, "deadline must be in the future")
	}
	if len(p.Path) < 2 {
		return nil, werrors.New(werrors.KindInvalidRequest, "swap path needs at least two tokens")
	}

	from, err := s.evmAddress(p.From, "", "sender")
	if err != nil {
		return nil, err
	}
	recipient, err := s.evmAddress(p.Recipient, p.From, "recipient")
	if err != nil {
		return nil, err
	}
	path := make([]common.Address, 0, len(p.Path))
	for i, token := range p.Path {
		addr, err := s.evmAddress(token, "", "path token")
		if err != nil {
			return nil, err
		}
		if i > 0 && addr == path[i-1] {
			return nil, werrors.Newf(werrors.KindInvalidRequest, "swap path repeats token %s", addr.Hex())
		}
		path = append(path, addr)
	}

	router := s.contracts.UniswapV2Router
	if p.Protocol == SushiSwap {
		router = s.contracts.SushiSwapRouter
	}
	if router == (common.Address{}) {
		return nil, werrors.Newf(werrors.KindUnsupportedChain, "no %s router configured", p.Protocol)
	}

	data, err := routerABI.Pack("swapExactTokensForTokens",
		p.AmountIn, p.MinAmountOut, path, recipient, big.NewInt(p.Deadline.Unix()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode swap")
	}

	op := &Operation{Protocol: p.Protocol, Request: contractCall(from, router, nil, data)}
	if p.Approve {
		if op.Approve, err = approval(from, path[0], router, p.AmountIn); err != nil {
			return nil, err
		}
	}
	return op, nil
}

func (s *service) aaveSupply(p LendingParams) (*Operation, error) {
	from, asset, onBehalfOf, pool, err := s.lendingAccounts(p)
	if err != nil {
		return nil, err
	}

	data, err := poolABI.Pack("supply", asset, p.Amount, onBehalfOf, uint16(0))
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode supply")
	}

	op := &Operation{Protocol: p.Protocol, Request: contractCall(from, pool, nil, data)}
	if p.Approve {
		if op.Approve, err = approval(from, asset, pool, p.Amount); err != nil {
			return nil, err
		}
	}
	return op, nil
}

func (s *service) aaveWithdraw(p LendingParams) (*Operation, error) {
	from, asset, to, pool, err := s.lendingAccounts(p)
	if err != nil {
		return nil, err
	}

	data, err := poolABI.Pack("withdraw", asset, p.Amount, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode withdraw")
	}

	return &Operation{Protocol: p.Protocol, Request: contractCall(from, pool, nil, data)}, nil
}

func (s *service) lendingAccounts(p LendingParams) (from, asset, beneficiary, pool common.Address, err error) {
	if err = positive(p.Amount, "amount"); err != nil {
		return
	}
	if from, err = s.evmAddress(p.From, "", "sender"); err != nil {
		return
	}
	if asset, err = s.evmAddress(p.Asset, "", "asset"); err != nil {
		return
	}
	if beneficiary, err = s.evmAddress(p.OnBehalfOf, p.From, "beneficiary"); err != nil {
		return
	}
	pool = s.contracts.AaveV3Pool
	if pool == (common.Address{}) {
		err = werrors.New(werrors.KindUnsupportedChain, "no aave pool configured")
	}
	return
}

func (s *service) lidoSubmit(p StakeParams) (*Operation, error) {
	if err := positive(p.Amount, "stake amount"); err != nil {
		return nil, err
	}
	from, err := s.evmAddress(p.From, "", "sender")
	if err != nil {
		return nil, err
	}
	var referral common.Address
	if p.Referral != "" {
		if referral, err = s.evmAddress(p.Referral, "", "referral"); err != nil {
			return nil, err
		}
	}
	if s.contracts.LidoStETH == (common.Address{}) {
		return nil, werrors.New(werrors.KindUnsupportedChain, "no lido contract configured")
	}

	data, err := lidoABI.Pack("submit", referral)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode submit")
	}

	return &Operation{Protocol: Lido, Request: contractCall(from, s.contracts.LidoStETH, p.Amount, data)}, nil
}

// lidoRequestWithdrawal queues amount stETH for withdrawal; the queue pulls the stETH so it is approved first.
func (s *service) lidoRequestWithdrawal(p StakeParams) (*Operation, error) {
	if err := positive(p.Amount, "unstake amount"); err != nil {
		return nil, err
	}
	from, err := s.evmAddress(p.From, "", "sender")
	if err != nil {
		return nil, err
	}
	queue := s.contracts.LidoWithdrawalQueue
	if queue == (common.Address{}) || s.contracts.LidoStETH == (common.Address{}) {
		return nil, werrors.New(werrors.KindUnsupportedChain, "no lido withdrawal queue configured")
	}

	data, err := withdrawalQueueABI.Pack("requestWithdrawals", []*big.Int{p.Amount}, from)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode withdrawal request")
	}

	approve, err := approval(from, s.contracts.LidoStETH, queue, p.Amount)
	if err != nil {
		return nil, err
	}

	return &Operation{Protocol: Lido, Approve: approve, Request: contractCall(from, queue, nil, data)}, nil
}

func approval(owner, token, spender common.Address, amount *big.Int) (*txbuilder.Request, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode approve")
	}
	return contractCall(owner, token, nil, data), nil
}

// contractCall leaves gas to estimation since protocol calls vary widely.
func contractCall(from, to common.Address, value *big.Int, data []byte) *txbuilder.Request {
	if value == nil {
		value = new(big.Int)
	}
	return &txbuilder.Request{
		Chain:  chain.EVM,
		From:   from.Hex(),
		To:     to.Hex(),
		Amount: new(big.Int).Set(value),
		EVM:    &txbuilder.EVMFields{Data: data},
	}
}
