package txbuilder

import (
	"context"
	"strings"
	"sync"
)

// NonceTracker hands out EVM nonces. Acquisitions for one address are serialized,
// different addresses proceed in parallel.
type NonceTracker struct {
	mu       sync.Mutex
	accounts map[string]*nonceAccount
}

type nonceAccount struct {
	mu    sync.Mutex
	next  uint64
	known bool
}

func NewNonceTracker() *NonceTracker {
	return &NonceTracker{accounts: make(map[string]*nonceAccount)}
}

// Acquire 获取并锁定下一个 Nonce
// 返回 max(本地缓存, 节点 pending nonce)，并将本地缓存 + 1
func (t *NonceTracker) Acquire(ctx context.Context, address string, remote func(ctx context.Context) (uint64, error)) (uint64, error) {
	acc := t.account(address)

	acc.mu.Lock()
	defer acc.mu.Unlock()

	nonce, err := remote(ctx)
	if err != nil {
		return 0, err
	}

	if acc.known && acc.next > nonce {
		nonce = acc.next
	}
	acc.next = nonce + 1
	acc.known = true

	return nonce, nil
}

// Reset drops the cached nonce; the next Acquire trusts the node again.
func (t *NonceTracker) Reset(address string) {
	acc := t.account(address)

	acc.mu.Lock()
	defer acc.mu.Unlock()

	acc.known = false
	acc.next = 0
}

// Peek returns the next nonce the tracker would hand out without asking the node.
func (t *NonceTracker) Peek(address string) (uint64, bool) {
	acc := t.account(address)

	acc.mu.Lock()
	defer acc.mu.Unlock()

	return acc.next, acc.known
}

func (t *NonceTracker) account(address string) *nonceAccount {
	key := strings.ToLower(address)

	t.mu.Lock()
	defer t.mu.Unlock()

	acc, ok := t.accounts[key]
	if !ok {
		acc = &nonceAccount{}
		t.accounts[key] = acc
	}
	return acc
}
