package wallet

import (
	"context"
	"math/big"
	"time"

	"github/chapool/go-wallet-engine/internal/wallet/address"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/keystore"
	"github/chapool/go-wallet-engine/internal/wallet/provider"
	"github/chapool/go-wallet-engine/internal/wallet/signer"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
)

// Service provides wallet management functionality
type Service interface {
	// CreateWallet generates a mnemonic, stores it encrypted under password and returns
	// the wallet id with the mnemonic. The mnemonic is not retained anywhere else.
	CreateWallet(ctx context.Context, name string, password string) (string, string, error)

	// ImportWallet validates mnemonic and stores it encrypted under password
	ImportWallet(ctx context.Context, name string, mnemonic string, password string) (string, error)

	// GetWallet returns the wallet metadata
	GetWallet(ctx context.Context, id string) (*Wallet, error)

	// ListWallets lists every stored wallet
	ListWallets(ctx context.Context) ([]*Wallet, error)

	// DeriveAddress derives the default address of account on kind
	DeriveAddress(ctx context.Context, id string, password string, kind chain.Kind, account uint32) (*address.Address, error)

	// GetBalance returns the native balance of addr in base units
	GetBalance(ctx context.Context, addr string, kind chain.Kind) (*big.Int, error)

	// BuildAndSignTransaction builds req from the wallet account and signs it. An empty
	// req.From is filled with the account address.
	BuildAndSignTransaction(ctx context.Context, id string, password string, account uint32, req *txbuilder.Request) (*signer.Signed, error)

	// Broadcast submits signed. A rejection is terminal: signed becomes Failed and the inputs or
	// nonce taken by its build are released. After a retryable error (ProviderUnavailable,
	// Timeout, Unknown) the node may hold the transaction, so signed stays Signed with everything reserved
	// and may be broadcast again or discarded.
	Broadcast(ctx context.Context, signed *signer.Signed) (*BroadcastResult, error)

	// Discard abandons a signed transaction that was not broadcast: it becomes Failed and the
	// inputs or nonce taken by its build are released.
	Discard(signed *signer.Signed) error

	// TransactionStatus queries the network state of txID. A confirmed or failed transaction
	// ends the reservation of its inputs.
	TransactionStatus(ctx context.Context, kind chain.Kind, txID string) (*provider.Status, error)
}

// Store persists encrypted wallets; keystore.MemoryStore and keystore.FileStore implement it.
type Store = keystore.Store

// Wallet is the metadata of a stored wallet. The encrypted mnemonic never leaves the keystore.
type Wallet struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// BroadcastResult is the outcome of a successful broadcast.
type BroadcastResult struct {
	TxID  string
	State txbuilder.State
}

// Options configures the wallet service.
type Options struct {
	// EntropyBits of generated mnemonics, 128 (12 words) to 256 (24 words)
	EntropyBits int
	// MinPasswordLength applies to new wallets
	MinPasswordLength int
}

const (
	defaultEntropyBits       = 256
	defaultMinPasswordLength = 8
)

// DefaultOptions returns 24 word mnemonics and 8 character passwords.
func DefaultOptions() Options {
	return Options{
		EntropyBits:       defaultEntropyBits,
		MinPasswordLength: defaultMinPasswordLength,
	}
}

func fromRecord(r *keystore.Record) *Wallet {
	return &Wallet{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
	}
}
