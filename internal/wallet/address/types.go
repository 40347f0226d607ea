package address

import (
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/keys"
)

// Codec converts public keys to chain addresses and validates addresses.
type Codec interface {
	// Encode renders a public key as an address of kind. Bitcoin uses the configured
	// default address type.
	Encode(kind chain.Kind, pub []byte) (string, error)

	// EncodeBitcoin renders pub with an explicit Bitcoin address type
	EncodeBitcoin(pub []byte, addrType chain.BitcoinAddressType) (string, error)

	// Decode is the strict inverse of Encode; any malformed, wrong-network or
	// wrong-checksum input yields InvalidAddress.
	Decode(addr string, kind chain.Kind) (*Decoded, error)

	// Derive derives the key at path and encodes its address; the key pair is wiped before returning
	Derive(seed []byte, kind chain.Kind, path keys.Path) (*Address, error)

	// DefaultPath gets the standard derivation path of account index for kind
	DefaultPath(kind chain.Kind, account uint32) (keys.Path, error)

	// BitcoinNetwork returns the network Bitcoin addresses are encoded for
	BitcoinNetwork() chain.BitcoinNetwork
}

// Options configures a Codec.
type Options struct {
	BitcoinNetwork     chain.BitcoinNetwork
	BitcoinAddressType chain.BitcoinAddressType
	// AllowTaproot accepts P2TR recipients in Decode. Wallet addresses are never P2TR.
	AllowTaproot bool
}

// Address is a derived address: (chain, path, string).
type Address struct {
	Chain chain.Kind
	Path  keys.Path
	Value string
}

func (a Address) String() string {
	return a.Value
}

// Decoded is a validated address in canonical form.
type Decoded struct {
	Chain chain.Kind
	// Canonical is the display form: EIP-55 for EVM, the encoded string otherwise.
	Canonical string
	// Bytes holds the 20-byte EVM address, the Bitcoin program/hash or the 32-byte Solana key.
	Bytes []byte
	// BitcoinType is set for Bitcoin addresses ("p2pkh", "p2sh", "p2wpkh", "p2wsh", "p2tr").
	BitcoinType string
	// PkScript is the Bitcoin output script paying to the address.
	PkScript []byte
}
