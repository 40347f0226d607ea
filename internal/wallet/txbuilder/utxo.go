package txbuilder

import (
	"sort"
	"sync"
	"time"

	"github/chapool/go-wallet-engine/internal/wallet/provider"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

// Strategy picks which UTXOs fund a Bitcoin transaction.
type Strategy string

const (
	// LargestFirst adds outputs from the largest value down until amount + fee is covered.
	LargestFirst Strategy = "largest_first"
	// CallerSpecified spends exactly the UTXOs given in the request.
	CallerSpecified Strategy = "caller_specified"
)

// ParseStrategy maps a config or CLI value; empty means LargestFirst.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", LargestFirst:
		return LargestFirst, nil
	case CallerSpecified:
		return CallerSpecified, nil
	default:
		return "", werrors.Newf(werrors.KindInvalidRequest, "unknown utxo strategy %q", s)
	}
}

// UTXOReserver serializes coin selection per wallet and keeps selected outpoints out of
// later selections until they are released.
//
// A reservation belongs to a build until MarkBroadcast ties it to the broadcast txid. Broadcast
// reservations end when the transaction settles, when the provider no longer lists the outpoint
// as unspent, or when the outpoint is still unspent ttl after the broadcast (dropped transaction).
type UTXOReserver struct {
	mu       sync.Mutex
	wallets  map[string]*sync.Mutex
	reserved map[string]*reservation // outpoint -> holder

	ttl time.Duration
	now func() time.Time
}

type reservation struct {
	wallet string
	txID   string
	sentAt time.Time
}

const defaultReservationTTL = 30 * time.Minute

func NewUTXOReserver(ttl time.Duration, now func() time.Time) *UTXOReserver {
	if ttl <= 0 {
		ttl = defaultReservationTTL
	}
	if now == nil {
		now = time.Now
	}
	return &UTXOReserver{
		wallets:  make(map[string]*sync.Mutex),
		reserved: make(map[string]*reservation),
		ttl:      ttl,
		now:      now,
	}
}

// Lock blocks until the wallet's selection lock is held and returns the unlock func.
func (r *UTXOReserver) Lock(wallet string) func() {
	r.mu.Lock()
	m, ok := r.wallets[wallet]
	if !ok {
		m = &sync.Mutex{}
		r.wallets[wallet] = m
	}
	r.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Available filters out reserved outpoints.
func (r *UTXOReserver) Available(utxos []provider.UTXO) []provider.UTXO {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]provider.UTXO, 0, len(utxos))
	for _, u := range utxos {
		if _, taken := r.reserved[u.Outpoint()]; !taken {
			out = append(out, u)
		}
	}
	return out
}

// Reserved reports whether outpoint is held by some build or broadcast transaction.
func (r *UTXOReserver) Reserved(outpoint string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.reserved[outpoint]
	return ok
}

// Len returns the number of reserved outpoints.
func (r *UTXOReserver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.reserved)
}

// Reserve holds utxos for a build of wallet. Callers hold the wallet Lock.
func (r *UTXOReserver) Reserve(wallet string, utxos []provider.UTXO) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range utxos {
		r.reserved[u.Outpoint()] = &reservation{wallet: wallet}
	}
}

// Release makes outpoints selectable again.
func (r *UTXOReserver) Release(outpoints ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range outpoints {
		delete(r.reserved, o)
	}
}

// MarkBroadcast ties the reservations of outpoints to the broadcast transaction txID.
func (r *UTXOReserver) MarkBroadcast(txID string, outpoints ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sentAt := r.now()
	for _, o := range outpoints {
		if res, ok := r.reserved[o]; ok {
			res.txID = txID
			res.sentAt = sentAt
		}
	}
}

// Settle drops every reservation held by the broadcast transaction txID and returns how many.
func (r *UTXOReserver) Settle(txID string) int {
	if txID == "" {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for o, res := range r.reserved {
		if res.txID == txID {
			delete(r.reserved, o)
			n++
		}
	}
	return n
}

// Prune drops the wallet's broadcast reservations that unspent no longer lists, and those still
// listed ttl after their broadcast. Reservations of builds not yet broadcast are kept.
func (r *UTXOReserver) Prune(wallet string, unspent []provider.UTXO) int {
	listed := make(map[string]struct{}, len(unspent))
	for _, u := range unspent {
		listed[u.Outpoint()] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	n := 0
	for o, res := range r.reserved {
		if res.wallet != wallet || res.txID == "" {
			continue
		}
		if _, ok := listed[o]; ok && now.Sub(res.sentAt) < r.ttl {
			continue
		}
		delete(r.reserved, o)
		n++
	}
	return n
}

// sortLargestFirst orders by value descending; ties are broken by outpoint so the
// selection is reproducible.
func sortLargestFirst(utxos []provider.UTXO) []provider.UTXO {
	out := append([]provider.UTXO(nil), utxos...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Outpoint() < out[j].Outpoint()
	})
	return out
}
