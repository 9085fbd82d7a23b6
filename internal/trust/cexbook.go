package trust

import (
	"strings"
	"sync"
)

// CEXBook is the registry of known exchange hot wallets. Funding from
// one of these addresses breaks provenance: the real funder hides
// behind the exchange, so trust built on such wallets is discounted.
type CEXBook struct {
	mu        sync.RWMutex
	addresses map[string]string // address -> exchange label
}

// defaultCEXWallets seeds the book with well known Solana hot wallets.
var defaultCEXWallets = map[string]string{
	"5tzFkiKscXHK5ZXCGbXZxdw7gTjjD1mBwuoFbhUvuAi9": "binance_hot_1",
	"2ojv9BAiHUrvsm9gxDe7fJSzbNZSJcxZvf8dqmWGHG8S": "binance_hot_2",
	"H8sMJSCQxfKiFTCfDR3DUMLPwcRbM61LGFJ8N4dK3WjS": "coinbase_hot_1",
	"GJRs4FwHtemZ5ZE9x3FNvJ8TMwitKTh21yxdRPqn7npE": "coinbase_hot_2",
	"AC5RDfQFmDS1deWZos921JfqscXdByf8BKHs5ACWjtW2": "bybit_hot_1",
	"5VCwKtCXgCJ6kit5FybXjvriW3xELsFDhYrPSqtJNmcD": "okx_hot_1",
	"ASTyfSima4LLAdDgoFGkgqoKowG1LZFDr9fAQrg7iaJZ": "mexc_hot_1",
	"u6PJ8DtQuPFnfmwHbGFULQ4u4EgjDiyYKjVEsynXq2w":  "gate_hot_1",
	"9un5wqE3q4oCjyrDkwsdD48KteCJitQX5978Vh7KKxHo": "kucoin_hot_1",
}

// NewCEXBook creates a registry seeded with the default hot wallets.
func NewCEXBook() *CEXBook {
	addresses := make(map[string]string, len(defaultCEXWallets))
	for addr, label := range defaultCEXWallets {
		addresses[addr] = label
	}
	return &CEXBook{addresses: addresses}
}

// IsCEX reports whether the address is a known exchange wallet.
func (b *CEXBook) IsCEX(address string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.addresses[address]
	return ok
}

// Label returns the exchange label for an address, or "".
func (b *CEXBook) Label(address string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.addresses[address]
}

// Add registers an additional exchange wallet.
func (b *CEXBook) Add(address, label string) {
	address = strings.TrimSpace(address)
	if address == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addresses[address] = label
}

// Size returns the number of registered addresses.
func (b *CEXBook) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.addresses)
}
