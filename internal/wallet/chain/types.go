package chain

import (
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

// Kind is the closed set of chain families the engine supports.
// Every switch over Kind in this module is exhaustive; adding a chain means
// visiting each of them.
type Kind string

const (
	EVM     Kind = "evm"
	Bitcoin Kind = "bitcoin"
	Solana  Kind = "solana"
)

// All lists every supported chain kind.
func All() []Kind {
	return []Kind{EVM, Bitcoin, Solana}
}

// Curve identifies the signing curve family of a key tree.
type Curve int

const (
	Secp256k1 Curve = iota + 1
	Ed25519
)

func (c Curve) String() string {
	switch c {
	case Secp256k1:
		return "secp256k1"
	case Ed25519:
		return "ed25519"
	default:
		return "unknown"
	}
}

// Parse accepts the canonical names plus a few common aliases ("eth", "btc", "sol").
func Parse(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "evm", "eth", "ethereum":
		return EVM, nil
	case "bitcoin", "btc":
		return Bitcoin, nil
	case "solana", "sol":
		return Solana, nil
	default:
		return "", werrors.Newf(werrors.KindUnsupportedChain, "unsupported chain: %s", s)
	}
}

func (k Kind) String() string {
	return string(k)
}

// Validate returns UnsupportedChain for values outside the closed set.
func (k Kind) Validate() error {
	switch k {
	case EVM, Bitcoin, Solana:
		return nil
	default:
		return werrors.Newf(werrors.KindUnsupportedChain, "unsupported chain: %q", string(k))
	}
}

// Curve returns the curve family that keys of this chain live on.
func (k Kind) Curve() (Curve, error) {
	switch k {
	case EVM, Bitcoin:
		return Secp256k1, nil
	case Solana:
		return Ed25519, nil
	default:
		return 0, k.Validate()
	}
}

// Decimals is the number of fractional digits of the native coin (wei, satoshi, lamport).
func (k Kind) Decimals() int32 {
	switch k {
	case EVM:
		return 18
	case Bitcoin:
		return 8
	case Solana:
		return 9
	default:
		return 0
	}
}

// BitcoinNetwork selects the Bitcoin network parameters.
type BitcoinNetwork string

const (
	BitcoinMainnet  BitcoinNetwork = "mainnet"
	BitcoinTestnet3 BitcoinNetwork = "testnet3"
	BitcoinRegtest  BitcoinNetwork = "regtest"
	BitcoinSignet   BitcoinNetwork = "signet"
)

// ParseBitcoinNetwork maps a config string to a network.
func ParseBitcoinNetwork(s string) (BitcoinNetwork, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mainnet", "main", "bitcoin":
		return BitcoinMainnet, nil
	case "testnet3", "testnet", "test":
		return BitcoinTestnet3, nil
	case "regtest":
		return BitcoinRegtest, nil
	case "signet":
		return BitcoinSignet, nil
	default:
		return "", werrors.Newf(werrors.KindUnsupportedChain, "unknown bitcoin network: %s", s)
	}
}

// Params returns the btcd network parameters.
func (n BitcoinNetwork) Params() *chaincfg.Params {
	switch n {
	case BitcoinMainnet:
		return &chaincfg.MainNetParams
	case BitcoinRegtest:
		return &chaincfg.RegressionNetParams
	case BitcoinSignet:
		return &chaincfg.SigNetParams
	default:
		return &chaincfg.TestNet3Params
	}
}

// CoinType is the BIP44 coin type: 0 on mainnet, 1 on every test network.
func (n BitcoinNetwork) CoinType() uint32 {
	if n == BitcoinMainnet {
		return 0
	}
	return 1
}

// BitcoinAddressType selects the script type of wallet-owned Bitcoin addresses.
type BitcoinAddressType string

const (
	P2PKH  BitcoinAddressType = "p2pkh"
	P2WPKH BitcoinAddressType = "p2wpkh"
)

// ParseBitcoinAddressType maps a config string to an address type.
func ParseBitcoinAddressType(s string) (BitcoinAddressType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "p2pkh", "legacy":
		return P2PKH, nil
	case "p2wpkh", "segwit", "bech32":
		return P2WPKH, nil
	default:
		return "", werrors.Newf(werrors.KindInvalidRequest, "unknown bitcoin address type: %s", s)
	}
}

// Purpose is the BIP43 purpose field used for this address type (BIP44 / BIP84).
func (t BitcoinAddressType) Purpose() uint32 {
	if t == P2WPKH {
		return 84
	}
	return 44
}
