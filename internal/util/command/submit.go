package command

import (
	"context"

	"github.com/spf13/cobra"
	"github/chapool/go-wallet-engine/internal/util"
	"github/chapool/go-wallet-engine/internal/wallet"
	"github/chapool/go-wallet-engine/internal/wallet/signer"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
)

// Submission names the wallet account that signs a sequence of requests.
type Submission struct {
	WalletID string
	Password string
	Account  uint32

	// DryRun signs without broadcasting and discards the transactions afterwards.
	DryRun bool
}

// Submit builds, signs and broadcasts reqs in order, printing one TransactionItem per request.
// It stops at the first failure; earlier transactions stay on the network.
func Submit(ctx context.Context, cmd *cobra.Command, e *wallet.Engine, s Submission, reqs ...*txbuilder.Request) error {
	log := util.LogFromContext(ctx).With().Str("wallet", s.WalletID).Logger()

	var signedTxs []*signer.Signed
	if s.DryRun {
		defer func() {
			for _, signed := range signedTxs {
				if err := e.Wallets.Discard(signed); err != nil {
					log.Warn().Err(err).Str("tx_id", signed.TxID).Msg("Failed to discard dry run transaction")
				}
			}
		}()
	}

	for i, req := range reqs {
		signed, err := e.Wallets.BuildAndSignTransaction(ctx, s.WalletID, s.Password, s.Account, req)
		if err != nil {
			return err
		}
		signedTxs = append(signedTxs, signed)

		var result *wallet.BroadcastResult
		if !s.DryRun {
			result, err = e.Wallets.Broadcast(ctx, signed)
			if err != nil {
				return err
			}
			log.Info().Int("step", i+1).Str("chain", signed.Chain.String()).Str("tx_id", result.TxID).Msg("Transaction broadcast")
		}

		if err := PrintJSON(cmd, wallet.ToTransactionItem(signed, result)); err != nil {
			return err
		}
	}

	return nil
}
