package wallet

import (
	"encoding/hex"
	"time"

	"github/chapool/go-wallet-engine/internal/wallet/address"
	"github/chapool/go-wallet-engine/internal/wallet/balance"
	"github/chapool/go-wallet-engine/internal/wallet/provider"
	"github/chapool/go-wallet-engine/internal/wallet/signer"
)

// WalletItem is the printable form of a Wallet.
type WalletItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// AddressItem is the printable form of a derived address.
type AddressItem struct {
	Chain          string `json:"chain"`
	Address        string `json:"address"`
	DerivationPath string `json:"derivationPath"`
}

// TransactionItem is the printable form of a signed or broadcast transaction.
type TransactionItem struct {
	Chain string `json:"chain"`
	TxID  string `json:"txId"`
	From  string `json:"from"`
	To    string `json:"to,omitempty"`
	State string `json:"state"`
	Raw   string `json:"raw,omitempty"`
	// Fee is only known up front for Bitcoin (satoshis).
	Fee int64 `json:"fee,omitempty"`
}

// BalanceItem is the printable form of a native balance.
type BalanceItem struct {
	Chain          string `json:"chain"`
	Address        string `json:"address"`
	DerivationPath string `json:"derivationPath,omitempty"`
	// Balance in base units (wei, satoshi, lamport)
	Balance string `json:"balance"`
	Amount  string `json:"amount"`
}

// TokenBalanceItem is the printable form of an ERC-20 balance.
type TokenBalanceItem struct {
	Token   string `json:"token"`
	Symbol  string `json:"symbol,omitempty"`
	Account string `json:"account"`
	Balance string `json:"balance"`
	Amount  string `json:"amount"`
}

// StatusItem is the printable form of a network status.
type StatusItem struct {
	TxID          string `json:"txId"`
	State         string `json:"state"`
	Reason        string `json:"reason,omitempty"`
	Confirmations uint64 `json:"confirmations"`
}

// ToWalletItem converts Wallet to WalletItem
func (w *Wallet) ToWalletItem() *WalletItem {
	return &WalletItem{ID: w.ID, Name: w.Name, CreatedAt: w.CreatedAt}
}

// ToAddressItem converts a derived address to AddressItem
func ToAddressItem(a *address.Address) *AddressItem {
	return &AddressItem{
		Chain:          a.Chain.String(),
		Address:        a.Value,
		DerivationPath: a.Path.String(),
	}
}

// ToTransactionItem converts a signed transaction, optionally after broadcast, to TransactionItem
func ToTransactionItem(signed *signer.Signed, result *BroadcastResult) *TransactionItem {
	item := &TransactionItem{
		Chain: signed.Chain.String(),
		TxID:  signed.TxID,
		From:  signed.From,
		State: string(signed.State),
		Raw:   hex.EncodeToString(signed.Raw),
	}
	if u := signed.Unsigned; u != nil {
		item.To = u.To
		if u.Bitcoin != nil {
			item.Fee = u.Bitcoin.Fee
		}
	}
	if result != nil {
		item.TxID = result.TxID
		item.State = string(result.State)
	}
	return item
}

// ToBalanceItem converts balance.Balance to BalanceItem
func ToBalanceItem(b *balance.Balance) *BalanceItem {
	return &BalanceItem{
		Chain:          b.Chain.String(),
		Address:        b.Address,
		DerivationPath: b.Path,
		Balance:        b.Amount.String(),
		Amount:         b.Value.String(),
	}
}

// ToTokenBalanceItem converts balance.TokenBalance to TokenBalanceItem
func ToTokenBalanceItem(b *balance.TokenBalance) *TokenBalanceItem {
	return &TokenBalanceItem{
		Token:   b.Token.Address,
		Symbol:  b.Token.Symbol,
		Account: b.Account,
		Balance: b.Amount.String(),
		Amount:  b.Value.String(),
	}
}

// ToStatusItem converts a provider status to StatusItem
func ToStatusItem(txID string, status *provider.Status) *StatusItem {
	return &StatusItem{
		TxID:          txID,
		State:         string(status.State),
		Reason:        status.Reason,
		Confirmations: status.Confirmations,
	}
}
