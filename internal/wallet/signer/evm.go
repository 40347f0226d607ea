package signer

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github/chapool/go-wallet-engine/internal/wallet/keys"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

// signEVM signs a legacy or EIP-1559 transaction (RFC 6979, 65-byte R || S || V)
func (s *service) signEVM(unsigned *txbuilder.Unsigned, key *keys.KeyPair) (*Signed, error) {
	if unsigned.EVM == nil || unsigned.EVM.Tx == nil {
		return nil, werrors.New(werrors.KindInvalidRequest, "missing evm transaction")
	}
	if err := digestCount(unsigned, 1); err != nil {
		return nil, err
	}

	// Convert private key to ECDSA
	ecdsaPrivateKey, err := crypto.ToECDSA(key.Private())
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert private key to ECDSA")
	}
	defer ecdsaPrivateKey.D.SetInt64(0)

	// Verify from address matches private key
	derivedAddress := crypto.PubkeyToAddress(ecdsaPrivateKey.PublicKey)
	if derivedAddress != common.HexToAddress(unsigned.From) {
		return nil, werrors.New(werrors.KindSigning, "from address does not match private key")
	}

	// Sign transaction
	sig, err := crypto.Sign(unsigned.Digests[0], ecdsaPrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	signedTx, err := unsigned.EVM.Tx.WithSignature(unsigned.EVM.Signer, sig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to attach signature")
	}

	// Encode transaction (typed envelope or RLP)
	txBytes, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal transaction")
	}

	return &Signed{
		Raw:  txBytes,
		TxID: signedTx.Hash().Hex(),
	}, nil
}

// VerifyEVM decodes raw, recovers its sender and compares it with from.
func VerifyEVM(raw []byte, from string) error {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return werrors.Wrap(werrors.KindSigning, err, "failed to decode transaction")
	}

	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return werrors.Wrap(werrors.KindSigning, err, "failed to recover sender")
	}
	if sender != common.HexToAddress(from) {
		return werrors.Newf(werrors.KindSigning, "signature recovers to %s, expected %s", sender.Hex(), from)
	}

	return nil
}
