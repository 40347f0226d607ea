package provider

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

const solanaSignatureLength = 64

type solanaClient struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
	caller     *caller
}

// NewSolanaClient creates a Solana provider. commitment is one of processed, confirmed
// or finalized and applies to reads and to what counts as confirmed.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewSolanaClient(endpoint string, commitment string, opts Options) (Solana, error) {
	if endpoint == "" {
		return nil, errors.New("solana rpc url is required")
	}

	c, err := newCaller(chain.Solana, opts)
	if err != nil {
		return nil, err
	}

	ct := rpc.CommitmentType(commitment)
	switch ct {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	case "":
		ct = rpc.CommitmentConfirmed
	default:
		return nil, errors.Errorf("invalid solana commitment %q", commitment)
	}

	return &solanaClient{rpc: rpc.New(endpoint), commitment: ct, caller: c}, nil
}

func (c *solanaClient) Chain() chain.Kind {
	return chain.Solana
}

// GetBalance returns lamports.
func (c *solanaClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	account, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, werrors.Wrapf(werrors.KindInvalidAddress, err, "invalid solana address %q", address)
	}

	var lamports uint64
	err = c.caller.do(ctx, OpGetBalance, func(ctx context.Context, _ int) error {
		res, err := c.rpc.GetBalance(ctx, account, c.commitment)
		if err != nil {
			return errors.Wrap(err, "failed to get balance")
		}
		lamports = res.Value
		return nil
	})
	if err != nil {
		return nil, err
	}

	return new(big.Int).SetUint64(lamports), nil
}

func (c *solanaClient) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	var hash solana.Hash
	err := c.caller.do(ctx, OpGetBlockhash, func(ctx context.Context, _ int) error {
		res, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
		if err != nil {
			return errors.Wrap(err, "failed to get latest blockhash")
		}
		if res == nil || res.Value == nil {
			return errors.New("empty blockhash response")
		}
		hash = res.Value.Blockhash
		return nil
	})

	return hash, err
}

// BroadcastRaw submits a wire-encoded transaction; its id is the fee payer signature.
func (c *solanaClient) BroadcastRaw(ctx context.Context, raw []byte) (string, error) {
	txID, err := firstSignature(raw)
	if err != nil {
		return "", err
	}

	err = c.caller.do(ctx, OpBroadcast, func(ctx context.Context, attempt int) error {
		_, err := c.rpc.SendRawTransaction(ctx, raw)
		if err != nil && attempt > 1 && IsAlreadyKnown(err) {
			return nil
		}
		return errors.Wrap(err, "failed to send transaction")
	})
	if err != nil {
		return "", err
	}

	return txID.String(), nil
}

func (c *solanaClient) GetTransactionStatus(ctx context.Context, txID string) (*Status, error) {
	sig, err := solana.SignatureFromBase58(txID)
	if err != nil {
		return nil, werrors.Wrapf(werrors.KindInvalidRequest, err, "invalid transaction signature %q", txID)
	}

	var status *Status
	err = c.caller.do(ctx, OpGetStatus, func(ctx context.Context, _ int) error {
		res, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			return errors.Wrap(err, "failed to get signature status")
		}
		if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
			status = &Status{State: StatePending, Reason: "unknown to provider"}
			return nil
		}

		st := res.Value[0]
		if st.Err != nil {
			status = &Status{State: StateFailed, Reason: fmt.Sprint(st.Err)}
			return nil
		}

		var confirmations uint64
		if st.Confirmations != nil {
			confirmations = *st.Confirmations
		}
		if c.reached(st.ConfirmationStatus) {
			status = &Status{State: StateConfirmed, Confirmations: confirmations}
		} else {
			status = &Status{State: StatePending, Reason: string(st.ConfirmationStatus), Confirmations: confirmations}
		}
		return nil
	})

	return status, err
}

// reached reports whether got satisfies the configured commitment.
func (c *solanaClient) reached(got rpc.ConfirmationStatusType) bool {
	rank := map[string]int{
		string(rpc.CommitmentProcessed): 1,
		string(rpc.CommitmentConfirmed): 2,
		string(rpc.CommitmentFinalized): 3,
	}
	return rank[string(got)] >= rank[string(c.commitment)] && rank[string(got)] > 0
}

// firstSignature reads the fee payer signature from a wire transaction
// (compact-u16 signature count, then 64-byte signatures).
func firstSignature(raw []byte) (solana.Signature, error) {
	var sig solana.Signature
	if len(raw) < 1+solanaSignatureLength || raw[0] == 0 || raw[0]&0x80 != 0 {
		return sig, werrors.New(werrors.KindInvalidRequest, "malformed solana transaction")
	}
	copy(sig[:], raw[1:1+solanaSignatureLength])

	return sig, nil
}
