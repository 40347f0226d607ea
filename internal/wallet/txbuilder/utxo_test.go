package txbuilder_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github/chapool/go-wallet-engine/internal/wallet/provider"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
)

func reserverAt(now *time.Time) *txbuilder.UTXOReserver {
	return txbuilder.NewUTXOReserver(time.Hour, func() time.Time { return *now })
}

// lockAndReserve holds the wallet lock around Reserve the way a build does.
func lockAndReserve(r *txbuilder.UTXOReserver, wallet string, utxos ...provider.UTXO) {
	unlock := r.Lock(wallet)
	defer unlock()
	r.Reserve(wallet, utxos)
}

func TestUTXOReserverSettle(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := reserverAt(&now)

	a := provider.UTXO{TxID: "aa", Vout: 0, Value: 1000}
	b := provider.UTXO{TxID: "bb", Vout: 1, Value: 2000}
	lockAndReserve(r, "w", a, b)
	assert.Equal(t, 2, r.Len())

	assert.Equal(t, 0, r.Settle("tx1"), "nothing broadcast yet")
	r.MarkBroadcast("tx1", a.Outpoint())

	assert.Equal(t, 1, r.Settle("tx1"))
	assert.False(t, r.Reserved(a.Outpoint()))
	assert.True(t, r.Reserved(b.Outpoint()))
	assert.Equal(t, 0, r.Settle(""))
}

func TestUTXOReserverPrune(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := reserverAt(&now)

	spent := provider.UTXO{TxID: "aa", Vout: 0, Value: 1000}
	dropped := provider.UTXO{TxID: "bb", Vout: 0, Value: 1000}
	building := provider.UTXO{TxID: "cc", Vout: 0, Value: 1000}
	other := provider.UTXO{TxID: "dd", Vout: 0, Value: 1000}

	lockAndReserve(r, "w", spent, dropped, building)
	lockAndReserve(r, "v", other)
	r.MarkBroadcast("tx1", spent.Outpoint())
	r.MarkBroadcast("tx2", dropped.Outpoint())
	r.MarkBroadcast("tx3", other.Outpoint())

	// the provider no longer lists the spent output
	assert.Equal(t, 1, r.Prune("w", []provider.UTXO{dropped, building}))
	assert.False(t, r.Reserved(spent.Outpoint()))
	assert.True(t, r.Reserved(dropped.Outpoint()))
	assert.True(t, r.Reserved(building.Outpoint()))

	// still unspent after the ttl: the broadcast was dropped
	now = now.Add(time.Hour)
	assert.Equal(t, 1, r.Prune("w", []provider.UTXO{dropped, building}))
	assert.False(t, r.Reserved(dropped.Outpoint()))
	assert.True(t, r.Reserved(building.Outpoint()), "unbroadcast builds are never pruned")

	// other wallets are untouched
	assert.True(t, r.Reserved(other.Outpoint()))
	assert.Equal(t, 2, r.Len())

	available := r.Available([]provider.UTXO{spent, dropped, building})
	assert.Equal(t, []provider.UTXO{spent, dropped}, available)
}

func TestUTXOReserverRelease(t *testing.T) {
	now := time.Now()
	r := reserverAt(&now)

	u := provider.UTXO{TxID: "aa", Vout: 2, Value: 1000}
	lockAndReserve(r, "w", u)
	r.MarkBroadcast("tx1", u.Outpoint())
	r.Release(u.Outpoint())

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.Settle("tx1"))
}
