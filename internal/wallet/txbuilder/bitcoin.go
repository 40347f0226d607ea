package txbuilder

import (
	"bytes"
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/provider"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

func (s *service) buildBitcoin(ctx context.Context, req *Request) (*Unsigned, error) {
	to, err := s.decodeRecipient(req)
	if err != nil {
		return nil, err
	}
	from, err := s.decodeSender(req)
	if err != nil {
		return nil, err
	}

	inputType, err := spendableType(from.BitcoinType)
	if err != nil {
		return nil, err
	}

	fields := req.Bitcoin
	if fields == nil {
		fields = &BitcoinFields{}
	}

	change := from
	if fields.ChangeAddress != "" {
		if change, err = s.codec.Decode(fields.ChangeAddress, chain.Bitcoin); err != nil {
			return nil, err
		}
	}

	if req.Amount == nil || !req.Amount.IsInt64() || req.Amount.Int64() < DustThreshold {
		return nil, werrors.Newf(werrors.KindInvalidRequest, "amount must be at least %d satoshi", DustThreshold)
	}
	amount := req.Amount.Int64()

	strategy := fields.Strategy
	if strategy == "" {
		strategy = LargestFirst
	}
	if strategy == CallerSpecified && len(fields.UTXOs) == 0 {
		return nil, werrors.New(werrors.KindInvalidRequest, "caller specified strategy requires utxos")
	}

	rate, err := s.feeRate(ctx, fields.FeeRate)
	if err != nil {
		return nil, err
	}

	// 同一钱包的选币串行执行
	wallet := from.Canonical
	unlock := s.utxos.Lock(wallet)
	defer unlock()

	candidates := append([]provider.UTXO(nil), fields.UTXOs...)
	if len(candidates) == 0 {
		if s.providers.Bitcoin == nil {
			return nil, unsupported(chain.Bitcoin)
		}
		if candidates, err = s.providers.Bitcoin.GetUTXOs(ctx, req.From); err != nil {
			return nil, err
		}
		s.utxos.Prune(wallet, candidates)
	}

	for i := range candidates {
		if len(candidates[i].PkScript) == 0 {
			candidates[i].PkScript = from.PkScript
		}
		if !bytes.Equal(candidates[i].PkScript, from.PkScript) {
			return nil, werrors.Newf(werrors.KindInvalidRequest, "utxo %s does not belong to %s", candidates[i].Outpoint(), from.Canonical)
		}
	}

	available := s.utxos.Available(candidates)
	if strategy == CallerSpecified && len(available) != len(candidates) {
		return nil, werrors.New(werrors.KindInvalidRequest, "caller specified utxos are already reserved")
	}

	selected, feeInfo, err := selectUTXOs(strategy, available, inputType, to.BitcoinType, change.BitcoinType, amount, rate)
	if err != nil {
		return nil, err
	}

	// 构建交易
	msgTx := wire.NewMsgTx(wire.TxVersion)
	inputs := make([]BitcoinInput, 0, len(selected))
	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(selected))
	var total int64
	for _, u := range selected {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, werrors.Wrapf(werrors.KindInvalidRequest, err, "invalid utxo txid %q", u.TxID)
		}
		outPoint := wire.NewOutPoint(hash, u.Vout)
		msgTx.AddTxIn(wire.NewTxIn(outPoint, nil, nil))
		prevOuts[*outPoint] = wire.NewTxOut(u.Value, u.PkScript)
		inputs = append(inputs, BitcoinInput{UTXO: u, Type: inputType})
		total += u.Value
	}

	msgTx.AddTxOut(wire.NewTxOut(amount, to.PkScript))
	if feeInfo.Change > 0 {
		msgTx.AddTxOut(wire.NewTxOut(feeInfo.Change, change.PkScript))
	}

	var outputs int64
	for _, out := range msgTx.TxOut {
		outputs += out.Value
	}
	if outputs+feeInfo.Fee != total {
		return nil, errors.Errorf("unbalanced transaction: inputs %d, outputs %d, fee %d", total, outputs, feeInfo.Fee)
	}

	digests, err := sigHashes(msgTx, inputs, prevOuts)
	if err != nil {
		return nil, err
	}

	var payload bytes.Buffer
	if err := msgTx.SerializeNoWitness(&payload); err != nil {
		return nil, errors.Wrap(err, "failed to serialize transaction")
	}

	s.utxos.Reserve(wallet, selected)

	return &Unsigned{
		Chain:   chain.Bitcoin,
		From:    from.Canonical,
		To:      to.Canonical,
		Payload: payload.Bytes(),
		Digests: digests,
		State:   StateUnsigned,
		Bitcoin: &BitcoinTx{
			Tx:     msgTx,
			Inputs: inputs,
			Fee:    feeInfo.Fee,
			Change: feeInfo.Change,
			Wallet: wallet,
		},
	}, nil
}

func (s *service) feeRate(ctx context.Context, requested decimal.Decimal) (decimal.Decimal, error) {
	if requested.IsNegative() {
		return decimal.Zero, werrors.New(werrors.KindInvalidRequest, "fee rate must not be negative")
	}
	if requested.IsPositive() {
		return requested, nil
	}
	if s.providers.Bitcoin == nil {
		return decimal.Zero, unsupported(chain.Bitcoin)
	}
	return s.providers.Bitcoin.EstimateFeeRate(ctx, s.opts.FeeTargetBlocks)
}

// selectUTXOs returns the inputs to spend and the resulting fee split. InsufficientFunds is
// returned before any transaction exists.
func selectUTXOs(strategy Strategy, utxos []provider.UTXO, inputType chain.BitcoinAddressType,
	destType, changeType string, amount int64, rate decimal.Decimal,
) ([]provider.UTXO, *FeeInfo, error) {
	if strategy == CallerSpecified {
		info, err := CalculateFee(inputTypes(len(utxos), inputType), destType, changeType, amount, sum(utxos), rate)
		if err != nil {
			return nil, nil, err
		}
		return utxos, info, nil
	}

	sorted := sortLargestFirst(utxos)
	var lastErr error = werrors.Newf(werrors.KindInsufficientFunds, "no spendable utxos for amount %d", amount)
	for n := 1; n <= len(sorted); n++ {
		picked := sorted[:n]
		info, err := CalculateFee(inputTypes(n, inputType), destType, changeType, amount, sum(picked), rate)
		if err == nil {
			return picked, info, nil
		}
		lastErr = err
	}

	return nil, nil, lastErr
}

func sigHashes(msgTx *wire.MsgTx, inputs []BitcoinInput, prevOuts map[wire.OutPoint]*wire.TxOut) ([][]byte, error) {
	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	hashes := txscript.NewTxSigHashes(msgTx, fetcher)

	digests := make([][]byte, 0, len(inputs))
	for idx, in := range inputs {
		var (
			digest []byte
			err    error
		)
		switch in.Type {
		case chain.P2PKH:
			digest, err = txscript.CalcSignatureHash(in.UTXO.PkScript, txscript.SigHashAll, msgTx, idx)
		case chain.P2WPKH:
			digest, err = txscript.CalcWitnessSigHash(in.UTXO.PkScript, hashes, txscript.SigHashAll, msgTx, idx, in.UTXO.Value)
		default:
			err = errors.Errorf("unsupported input type %s", in.Type)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to compute sighash for input %d", idx)
		}
		digests = append(digests, digest)
	}

	return digests, nil
}

// spendableType maps the sender address type to how its outputs are signed.
func spendableType(t string) (chain.BitcoinAddressType, error) {
	switch t {
	case string(chain.P2PKH):
		return chain.P2PKH, nil
	case string(chain.P2WPKH):
		return chain.P2WPKH, nil
	default:
		return "", werrors.Newf(werrors.KindInvalidAddress, "cannot spend from %s addresses", t)
	}
}

func inputTypes(n int, t chain.BitcoinAddressType) []chain.BitcoinAddressType {
	out := make([]chain.BitcoinAddressType, n)
	for i := range out {
		out[i] = t
	}
	return out
}

func sum(utxos []provider.UTXO) int64 {
	var total int64
	for _, u := range utxos {
		total += u.Value
	}
	return total
}
