package defi

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github/chapool/go-wallet-engine/internal/wallet/address"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

const maxBasisPoints = 10000

var supported = map[chain.Kind][]Protocol{
	chain.EVM:    {Uniswap, SushiSwap, Aave, Lido},
	chain.Solana: {NativeStake},
}

// SupportedProtocols lists the protocols operations can be built for on kind.
func SupportedProtocols(kind chain.Kind) ([]Protocol, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	protocols, ok := supported[kind]
	if !ok {
		return nil, werrors.Newf(werrors.KindUnsupportedChain, "%s does not support DeFi operations", kind)
	}
	return append([]Protocol(nil), protocols...), nil
}

// SlippageFloor returns the minimum acceptable output for quote with a tolerance of bps basis points.
func SlippageFloor(quote *big.Int, bps uint32) (*big.Int, error) {
	if quote == nil || quote.Sign() <= 0 {
		return nil, werrors.New(werrors.KindInvalidRequest, "quote must be positive")
	}
	if bps >= maxBasisPoints {
		return nil, werrors.Newf(werrors.KindInvalidRequest, "slippage of %d bps leaves no minimum output", bps)
	}

	floor := new(big.Int).Mul(quote, big.NewInt(int64(maxBasisPoints-bps)))
	return floor.Quo(floor, big.NewInt(maxBasisPoints)), nil
}

type service struct {
	codec     address.Codec
	contracts Contracts
	now       func() time.Time
}

// NewBuilder returns a Builder encoding against opts.Contracts.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewBuilder(codec address.Codec, opts Options) Builder {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &service{codec: codec, contracts: opts.Contracts, now: now}
}

func (s *service) Swap(p SwapParams) (*Operation, error) {
	if err := s.checkProtocol(p.Chain, p.Protocol, Uniswap, SushiSwap); err != nil {
		return nil, err
	}
	return s.swap(p)
}

func (s *service) Supply(p LendingParams) (*Operation, error) {
	if err := s.checkProtocol(p.Chain, p.Protocol, Aave); err != nil {
		return nil, err
	}
	return s.aaveSupply(p)
}

func (s *service) Withdraw(p LendingParams) (*Operation, error) {
	if err := s.checkProtocol(p.Chain, p.Protocol, Aave); err != nil {
		return nil, err
	}
	return s.aaveWithdraw(p)
}

func (s *service) Stake(p StakeParams) (*Operation, error) {
	switch p.Chain {
	case chain.Solana:
		if err := s.checkProtocol(p.Chain, p.Protocol, NativeStake); err != nil {
			return nil, err
		}
		return s.delegateStake(p)
	default:
		if err := s.checkProtocol(p.Chain, p.Protocol, Lido); err != nil {
			return nil, err
		}
		return s.lidoSubmit(p)
	}
}

func (s *service) Unstake(p StakeParams) (*Operation, error) {
	switch p.Chain {
	case chain.Solana:
		if err := s.checkProtocol(p.Chain, p.Protocol, NativeStake); err != nil {
			return nil, err
		}
		return s.deactivateStake(p)
	default:
		if err := s.checkProtocol(p.Chain, p.Protocol, Lido); err != nil {
			return nil, err
		}
		return s.lidoRequestWithdrawal(p)
	}
}

// checkProtocol verifies that kind offers protocol and that the operation accepts it.
func (s *service) checkProtocol(kind chain.Kind, protocol Protocol, accepted ...Protocol) error {
	protocols, err := SupportedProtocols(kind)
	if err != nil {
		return err
	}

	offered := false
	for _, p := range protocols {
		if p == protocol {
			offered = true
			break
		}
	}
	if !offered {
		return werrors.Newf(werrors.KindUnsupportedChain, "protocol %q is not available on %s", protocol, kind)
	}

	for _, p := range accepted {
		if p == protocol {
			return nil
		}
	}
	return werrors.Newf(werrors.KindInvalidRequest, "protocol %q does not support this operation", protocol)
}

// evmAddress decodes addr, an empty fallback value means the address is required.
func (s *service) evmAddress(addr, fallback, field string) (common.Address, error) {
	if addr == "" {
		addr = fallback
	}
	if addr == "" {
		return common.Address{}, werrors.Newf(werrors.KindInvalidRequest, "%s is required", field)
	}
	decoded, err := s.codec.Decode(addr, chain.EVM)
	if err != nil {
		return common.Address{}, werrors.Wrapf(werrors.KindInvalidAddress, err, "invalid %s", field)
	}
	return common.BytesToAddress(decoded.Bytes), nil
}

func positive(amount *big.Int, field string) error {
	if amount == nil || amount.Sign() <= 0 {
		return werrors.Newf(werrors.KindInvalidRequest, "%s must be positive", field)
	}
	return nil
}
