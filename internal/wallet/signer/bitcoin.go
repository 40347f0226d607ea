package signer

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/keys"
	"github/chapool/go-wallet-engine/internal/wallet/provider"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

// signBitcoin signs every input with SIGHASH_ALL: a sigScript for P2PKH inputs and a
// witness for P2WPKH inputs.
func (s *service) signBitcoin(unsigned *txbuilder.Unsigned, key *keys.KeyPair) (*Signed, error) {
	btx := unsigned.Bitcoin
	if btx == nil || btx.Tx == nil {
		return nil, werrors.New(werrors.KindInvalidRequest, "missing bitcoin transaction")
	}
	if err := digestCount(unsigned, len(btx.Inputs)); err != nil {
		return nil, err
	}

	privKey, pubKey := btcec.PrivKeyFromBytes(key.Private())
	defer privKey.Zero()
	pub := pubKey.SerializeCompressed()

	scripts, err := ownScripts(pub, s.codec.BitcoinNetwork().Params())
	if err != nil {
		return nil, err
	}

	msgTx := btx.Tx.Copy()
	for idx, in := range btx.Inputs {
		if !bytes.Equal(in.UTXO.PkScript, scripts[in.Type]) {
			return nil, werrors.Newf(werrors.KindSigning, "input %d is not spendable by this key", idx)
		}

		sig := ecdsa.Sign(privKey, unsigned.Digests[idx])
		sigBytes := append(sig.Serialize(), byte(txscript.SigHashAll))

		switch in.Type {
		case chain.P2PKH:
			sigScript, err := txscript.NewScriptBuilder().AddData(sigBytes).AddData(pub).Script()
			if err != nil {
				return nil, errors.Wrapf(err, "failed to build signature script for input %d", idx)
			}
			msgTx.TxIn[idx].SignatureScript = sigScript
		case chain.P2WPKH:
			msgTx.TxIn[idx].SignatureScript = nil
			msgTx.TxIn[idx].Witness = wire.TxWitness{sigBytes, pub}
		default:
			return nil, werrors.Newf(werrors.KindSigning, "unsupported input type %s", in.Type)
		}
	}

	var raw bytes.Buffer
	if err := msgTx.Serialize(&raw); err != nil {
		return nil, errors.Wrap(err, "failed to serialize transaction")
	}

	return &Signed{
		Raw:  raw.Bytes(),
		TxID: msgTx.TxHash().String(),
	}, nil
}

// ownScripts returns the output scripts a compressed public key can spend.
func ownScripts(pub []byte, params *chaincfg.Params) (map[chain.BitcoinAddressType][]byte, error) {
	hash := btcutil.Hash160(pub)

	p2pkh, err := btcutil.NewAddressPubKeyHash(hash, params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive p2pkh address")
	}
	p2wpkh, err := btcutil.NewAddressWitnessPubKeyHash(hash, params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive p2wpkh address")
	}

	scripts := make(map[chain.BitcoinAddressType][]byte, 2)
	for t, addr := range map[chain.BitcoinAddressType]btcutil.Address{chain.P2PKH: p2pkh, chain.P2WPKH: p2wpkh} {
		script, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to build %s script", t)
		}
		scripts[t] = script
	}

	return scripts, nil
}

// VerifyBitcoin executes every input script of raw against the outputs it spends.
// prevOuts must be in input order and carry PkScript and Value.
func VerifyBitcoin(raw []byte, prevOuts []provider.UTXO) error {
	var msgTx wire.MsgTx
	if err := msgTx.Deserialize(bytes.NewReader(raw)); err != nil {
		return werrors.Wrap(werrors.KindSigning, err, "failed to decode transaction")
	}
	if len(prevOuts) != len(msgTx.TxIn) {
		return werrors.Newf(werrors.KindSigning, "expected %d previous outputs, got %d", len(msgTx.TxIn), len(prevOuts))
	}

	outs := make(map[wire.OutPoint]*wire.TxOut, len(prevOuts))
	for i, u := range prevOuts {
		outs[msgTx.TxIn[i].PreviousOutPoint] = wire.NewTxOut(u.Value, u.PkScript)
	}
	fetcher := txscript.NewMultiPrevOutFetcher(outs)
	hashes := txscript.NewTxSigHashes(&msgTx, fetcher)

	for i, u := range prevOuts {
		engine, err := txscript.NewEngine(u.PkScript, &msgTx, i, txscript.StandardVerifyFlags, nil, hashes, u.Value, fetcher)
		if err != nil {
			return werrors.Wrapf(werrors.KindSigning, err, "failed to create script engine for input %d", i)
		}
		if err := engine.Execute(); err != nil {
			return werrors.Wrapf(werrors.KindSigning, err, "input %d does not verify", i)
		}
	}

	return nil
}
