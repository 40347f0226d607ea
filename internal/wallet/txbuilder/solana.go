package txbuilder

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/pkg/errors"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

func (s *service) buildSolana(ctx context.Context, req *Request) (*Unsigned, error) {
	fields := req.Solana
	if fields == nil {
		fields = &SolanaFields{}
	}

	from, err := s.decodeSender(req)
	if err != nil {
		return nil, err
	}
	sender := solana.PublicKeyFromBytes(from.Bytes)

	feePayer := sender
	if fields.FeePayer != "" {
		payer, err := s.codec.Decode(fields.FeePayer, chain.Solana)
		if err != nil {
			return nil, err
		}
		feePayer = solana.PublicKeyFromBytes(payer.Bytes)
	}

	instructions := fields.Instructions
	recipient := req.To
	if len(instructions) == 0 {
		to, err := s.decodeRecipient(req)
		if err != nil {
			return nil, err
		}
		if req.Amount == nil || req.Amount.Sign() <= 0 || !req.Amount.IsUint64() {
			return nil, werrors.New(werrors.KindInvalidRequest, "amount must be a positive lamport value")
		}

		instructions = []solana.Instruction{
			system.NewTransferInstruction(req.Amount.Uint64(), sender, solana.PublicKeyFromBytes(to.Bytes)).Build(),
		}
		recipient = to.Canonical
	} else if req.To != "" {
		if _, err := s.decodeRecipient(req); err != nil {
			return nil, err
		}
	}

	if s.providers.Solana == nil {
		return nil, unsupported(chain.Solana)
	}
	blockhash, err := s.providers.Solana.GetRecentBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	//nolint:varnamelen // tx is a common abbreviation for transaction
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, werrors.Wrap(werrors.KindInvalidRequest, err, "failed to assemble solana transaction")
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize message")
	}

	return &Unsigned{
		Chain:   chain.Solana,
		From:    from.Canonical,
		To:      recipient,
		Payload: message,
		Digests: [][]byte{message},
		State:   StateUnsigned,
		Solana: &SolanaTx{
			Tx:        tx,
			Blockhash: blockhash,
			FeePayer:  feePayer,
		},
	}, nil
}
