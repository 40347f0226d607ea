//nolint:ireturn // 返回接口类型是预期的设计
package balance

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github/chapool/go-wallet-engine/internal/util"
	"github/chapool/go-wallet-engine/internal/wallet/address"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentQueries 并发查询上限，避免打满节点的限流
const maxConcurrentQueries = 8

// Service 余额服务接口，所有余额都直接从链上读取
type Service interface {
	// GetNativeBalance 获取地址的原生币余额
	GetNativeBalance(ctx context.Context, kind chain.Kind, addr string) (*Balance, error)

	// GetTokenBalance 获取指定 ERC-20 代币的余额
	GetTokenBalance(ctx context.Context, token Token, account string) (*TokenBalance, error)

	// GetBalanceByToken 按代币获取余额列表，顺序与 tokens 一致
	GetBalanceByToken(ctx context.Context, account string, tokens []Token) ([]*TokenBalance, error)

	// GetAccountBalances 并发查询一组派生地址的原生币余额，顺序与 addrs 一致
	GetAccountBalances(ctx context.Context, addrs []*address.Address) ([]*Balance, error)
}

// service 实现 Service 接口
type service struct {
	codec     address.Codec
	providers txbuilder.Providers
}

// NewService 创建余额服务
func NewService(codec address.Codec, providers txbuilder.Providers) Service {
	return &service{
		codec:     codec,
		providers: providers,
	}
}

func (s *service) GetNativeBalance(ctx context.Context, kind chain.Kind, addr string) (*Balance, error) {
	p, err := s.providers.For(kind)
	if err != nil {
		return nil, err
	}
	decoded, err := s.codec.Decode(addr, kind)
	if err != nil {
		return nil, err
	}

	amount, err := p.GetBalance(ctx, decoded.Canonical)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get %s balance of %s", kind, decoded.Canonical)
	}

	return &Balance{
		Chain:   kind,
		Address: decoded.Canonical,
		Amount:  amount,
		Value:   toDecimal(amount, kind.Decimals()),
	}, nil
}

func (s *service) GetTokenBalance(ctx context.Context, token Token, account string) (*TokenBalance, error) {
	if s.providers.EVM == nil {
		return nil, werrors.New(werrors.KindUnsupportedChain, "no provider configured for evm")
	}
	tokenAddr, err := s.codec.Decode(token.Address, chain.EVM)
	if err != nil {
		return nil, werrors.Wrapf(werrors.KindInvalidAddress, err, "invalid token address %q", token.Address)
	}
	holder, err := s.codec.Decode(account, chain.EVM)
	if err != nil {
		return nil, err
	}

	amount, err := s.providers.EVM.GetTokenBalance(ctx, tokenAddr.Canonical, holder.Canonical)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get token balance of %s", holder.Canonical)
	}

	token.Address = tokenAddr.Canonical
	return &TokenBalance{
		Token:   token,
		Account: holder.Canonical,
		Amount:  amount,
		Value:   toDecimal(amount, token.Decimals),
	}, nil
}

func (s *service) GetBalanceByToken(ctx context.Context, account string, tokens []Token) ([]*TokenBalance, error) {
	result := make([]*TokenBalance, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQueries)
	for i, token := range tokens {
		g.Go(func() error {
			b, err := s.GetTokenBalance(gctx, token, account)
			if err != nil {
				return err
			}
			result[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *service) GetAccountBalances(ctx context.Context, addrs []*address.Address) ([]*Balance, error) {
	log := util.LogFromContext(ctx).With().Str("component", "balance").Logger()

	result := make([]*Balance, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQueries)
	for i, addr := range addrs {
		g.Go(func() error {
			b, err := s.GetNativeBalance(gctx, addr.Chain, addr.Value)
			if err != nil {
				log.Warn().Str("chain", addr.Chain.String()).Str("address", addr.Value).Err(err).Msg("Failed to query balance")
				return err
			}
			b.Path = addr.Path.String()
			result[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// toDecimal 将最小单位金额转换为带小数的金额
func toDecimal(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}
