package address

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

// EncodeBitcoin renders pub as P2PKH (Base58Check) or P2WPKH (Bech32) on the configured network.
func (s *service) EncodeBitcoin(pub []byte, addrType chain.BitcoinAddressType) (string, error) {
	key, err := btcec.ParsePubKey(pub)
	if err != nil {
		return "", werrors.Wrap(werrors.KindInvalidAddress, err, "invalid secp256k1 public key")
	}

	params := s.network.Params()
	hash := btcutil.Hash160(key.SerializeCompressed())

	var addr btcutil.Address
	switch addrType {
	case chain.P2PKH:
		addr, err = btcutil.NewAddressPubKeyHash(hash, params)
	case chain.P2WPKH:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(hash, params)
	default:
		return "", werrors.Newf(werrors.KindInvalidRequest, "unsupported bitcoin address type %q", addrType)
	}
	if err != nil {
		return "", werrors.Wrap(werrors.KindInvalidAddress, err, "failed to encode bitcoin address")
	}

	return addr.EncodeAddress(), nil
}

func (s *service) decodeBitcoin(addr string) (*Decoded, error) {
	params := s.network.Params()

	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return nil, werrors.Wrapf(werrors.KindInvalidAddress, err, "invalid bitcoin address for %s", s.network)
	}
	if !decoded.IsForNet(params) {
		return nil, werrors.Newf(werrors.KindInvalidAddress, "bitcoin address %q is not for %s", addr, s.network)
	}
	var addrType string
	switch decoded.(type) {
	case *btcutil.AddressPubKeyHash:
		addrType = "p2pkh"
	case *btcutil.AddressScriptHash:
		addrType = "p2sh"
	case *btcutil.AddressWitnessPubKeyHash:
		addrType = "p2wpkh"
	case *btcutil.AddressWitnessScriptHash:
		addrType = "p2wsh"
	case *btcutil.AddressTaproot:
		if !s.allowTaproot {
			return nil, werrors.Newf(werrors.KindInvalidAddress, "taproot address %q not enabled", addr)
		}
		addrType = "p2tr"
	default:
		// DecodeAddress also accepts raw hex public keys; those are not addresses.
		return nil, werrors.Newf(werrors.KindInvalidAddress, "unsupported bitcoin address kind %q", addr)
	}

	script, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, werrors.Wrap(werrors.KindInvalidAddress, err, "failed to build output script")
	}

	return &Decoded{
		Chain:       chain.Bitcoin,
		Canonical:   decoded.EncodeAddress(),
		Bytes:       decoded.ScriptAddress(),
		BitcoinType: addrType,
		PkScript:    script,
	}, nil
}
