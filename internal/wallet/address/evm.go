package address

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

const (
	compressedPubKeyLength   = 33
	uncompressedPubKeyLength = 65
)

// encodeEVM derives the EVM address: last 20 bytes of keccak256(uncompressed[1:]), EIP-55 cased.
func encodeEVM(pub []byte) (string, error) {
	var uncompressed []byte
	switch len(pub) {
	case compressedPubKeyLength:
		key, err := crypto.DecompressPubkey(pub)
		if err != nil {
			return "", werrors.Wrap(werrors.KindInvalidAddress, err, "failed to decompress public key")
		}
		uncompressed = crypto.FromECDSAPub(key)
	case uncompressedPubKeyLength:
		if _, err := crypto.UnmarshalPubkey(pub); err != nil {
			return "", werrors.Wrap(werrors.KindInvalidAddress, err, "invalid public key")
		}
		uncompressed = pub
	default:
		return "", werrors.Newf(werrors.KindInvalidAddress, "unexpected secp256k1 public key length %d", len(pub))
	}

	hash := crypto.Keccak256(uncompressed[1:])

	return common.BytesToAddress(hash[12:]).Hex(), nil
}

func decodeEVM(addr string) (*Decoded, error) {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return nil, werrors.Newf(werrors.KindInvalidAddress, "evm address must be 0x-prefixed: %q", addr)
	}
	if !common.IsHexAddress(addr) {
		return nil, werrors.Newf(werrors.KindInvalidAddress, "evm address must be 20 hex bytes: %q", addr)
	}

	body := addr[2:]
	if hasMixedCase(body) && !ValidateEIP55(addr) {
		return nil, werrors.Newf(werrors.KindInvalidAddress, "evm address checksum mismatch: %q", addr)
	}

	a := common.HexToAddress(addr)

	return &Decoded{Chain: chain.EVM, Canonical: a.Hex(), Bytes: a.Bytes()}, nil
}

// ValidateEIP55 reports whether addr is a 0x-prefixed address in exact EIP-55 checksum case.
func ValidateEIP55(addr string) bool {
	if !strings.HasPrefix(addr, "0x") || !common.IsHexAddress(addr) {
		return false
	}
	return common.HexToAddress(addr).Hex() == addr
}

// ToChecksum converts any well-formed hex address to its EIP-55 form.
func ToChecksum(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", werrors.Newf(werrors.KindInvalidAddress, "not a hex address: %q", addr)
	}
	return common.HexToAddress(addr).Hex(), nil
}

func hasMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}
