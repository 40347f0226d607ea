package wallet

import (
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/provider"
	"github/chapool/go-wallet-engine/internal/wallet/signer"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

// verifySigned checks a freshly signed transaction against its sender before it is handed out:
// sender recovery for EVM, script execution for Bitcoin and the ed25519 signatures for Solana.
func verifySigned(signed *signer.Signed) error {
	var err error
	switch signed.Chain {
	case chain.EVM:
		err = signer.VerifyEVM(signed.Raw, signed.From)
	case chain.Bitcoin:
		if signed.Unsigned == nil || signed.Unsigned.Bitcoin == nil {
			return werrors.New(werrors.KindSigning, "bitcoin transaction has no input template")
		}
		prevOuts := make([]provider.UTXO, 0, len(signed.Unsigned.Bitcoin.Inputs))
		for _, in := range signed.Unsigned.Bitcoin.Inputs {
			prevOuts = append(prevOuts, in.UTXO)
		}
		err = signer.VerifyBitcoin(signed.Raw, prevOuts)
	case chain.Solana:
		err = signer.VerifySolana(signed.Raw)
	default:
		return signed.Chain.Validate()
	}
	if err != nil {
		return werrors.Wrap(werrors.KindSigning, err, "signed transaction failed verification")
	}
	return nil
}
