package address

import (
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/keys"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

type service struct {
	network      chain.BitcoinNetwork
	addressType  chain.BitcoinAddressType
	allowTaproot bool
}

// NewCodec creates a new address Codec
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewCodec(opts Options) (Codec, error) {
	if opts.BitcoinNetwork == "" {
		return nil, werrors.New(werrors.KindInvalidRequest, "bitcoin network must be configured")
	}
	network, err := chain.ParseBitcoinNetwork(string(opts.BitcoinNetwork))
	if err != nil {
		return nil, err
	}

	addrType := opts.BitcoinAddressType
	if addrType == "" {
		addrType = chain.P2WPKH
	}
	if addrType, err = chain.ParseBitcoinAddressType(string(addrType)); err != nil {
		return nil, err
	}

	return &service{
		network:      network,
		addressType:  addrType,
		allowTaproot: opts.AllowTaproot,
	}, nil
}

func (s *service) BitcoinNetwork() chain.BitcoinNetwork {
	return s.network
}

// Encode dispatches on the chain kind
func (s *service) Encode(kind chain.Kind, pub []byte) (string, error) {
	switch kind {
	case chain.EVM:
		return encodeEVM(pub)
	case chain.Bitcoin:
		return s.EncodeBitcoin(pub, s.addressType)
	case chain.Solana:
		return encodeSolana(pub)
	default:
		return "", kind.Validate()
	}
}

// Decode dispatches on the chain kind
func (s *service) Decode(addr string, kind chain.Kind) (*Decoded, error) {
	switch kind {
	case chain.EVM:
		return decodeEVM(addr)
	case chain.Bitcoin:
		return s.decodeBitcoin(addr)
	case chain.Solana:
		return decodeSolana(addr)
	default:
		return nil, kind.Validate()
	}
}

// Derive derives an address from seed and path
func (s *service) Derive(seed []byte, kind chain.Kind, path keys.Path) (*Address, error) {
	curve, err := kind.Curve()
	if err != nil {
		return nil, err
	}

	var value string
	err = keys.WithKeyPair(seed, curve, path, func(pair *keys.KeyPair) error {
		var encErr error
		value, encErr = s.Encode(kind, pair.Public)
		return encErr
	})
	if err != nil {
		return nil, err
	}

	return &Address{Chain: kind, Path: path, Value: value}, nil
}

// DefaultPath gets the BIP44-style path for account.
// EVM: m/44'/60'/0'/0/{i}; Bitcoin: m/{44|84}'/{0|1}'/0'/0/{i}; Solana: m/44'/501'/{i}'/0'
func (s *service) DefaultPath(kind chain.Kind, account uint32) (keys.Path, error) {
	if account >= keys.HardenedOffset {
		return nil, werrors.Newf(werrors.KindDerivationPath, "account index %d out of range", account)
	}

	switch kind {
	case chain.EVM:
		return keys.Path{{Index: 44, Hardened: true}, {Index: 60, Hardened: true}, {Index: 0, Hardened: true}, {Index: 0}, {Index: account}}, nil
	case chain.Bitcoin:
		return keys.Path{
			{Index: s.addressType.Purpose(), Hardened: true},
			{Index: s.network.CoinType(), Hardened: true},
			{Index: 0, Hardened: true},
			{Index: 0},
			{Index: account},
		}, nil
	case chain.Solana:
		return keys.Path{{Index: 44, Hardened: true}, {Index: 501, Hardened: true}, {Index: account, Hardened: true}, {Index: 0, Hardened: true}}, nil
	default:
		return nil, kind.Validate()
	}
}
