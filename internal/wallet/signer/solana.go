package signer

import (
	"crypto/ed25519"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github/chapool/go-wallet-engine/internal/wallet/keys"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

// signSolana signs the serialized message with ed25519 and places the signature in the
// slot of the signing account.
func (s *service) signSolana(unsigned *txbuilder.Unsigned, key *keys.KeyPair) (*Signed, error) {
	stx := unsigned.Solana
	if stx == nil || stx.Tx == nil {
		return nil, werrors.New(werrors.KindInvalidRequest, "missing solana transaction")
	}
	if err := digestCount(unsigned, 1); err != nil {
		return nil, err
	}

	message := stx.Tx.Message
	required := int(message.Header.NumRequiredSignatures)
	if required != 1 {
		return nil, werrors.Newf(werrors.KindSigning, "transaction requires %d signers, only one key is available", required)
	}

	signerKey := solana.PublicKeyFromBytes(key.Public)
	if len(message.AccountKeys) == 0 || !message.AccountKeys[0].Equals(signerKey) {
		return nil, werrors.New(werrors.KindSigning, "key is not the required signer of this transaction")
	}

	priv := ed25519.NewKeyFromSeed(key.Private())
	defer func() {
		for i := range priv {
			priv[i] = 0
		}
	}()

	sig := solana.SignatureFromBytes(ed25519.Sign(priv, unsigned.Digests[0]))

	//nolint:varnamelen // tx is a common abbreviation for transaction
	tx := &solana.Transaction{
		Signatures: []solana.Signature{sig},
		Message:    message,
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal transaction")
	}

	return &Signed{
		Raw:  raw,
		TxID: sig.String(),
	}, nil
}

// VerifySolana decodes raw and checks every signature against its signer and the message.
func VerifySolana(raw []byte) error {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return werrors.Wrap(werrors.KindSigning, err, "failed to decode transaction")
	}
	if len(tx.Signatures) == 0 {
		return werrors.New(werrors.KindSigning, "transaction carries no signatures")
	}

	if err := tx.VerifySignatures(); err != nil {
		return werrors.Wrap(werrors.KindSigning, err, "signature verification failed")
	}

	return nil
}
