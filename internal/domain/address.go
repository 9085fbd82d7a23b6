package domain

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidateAddress checks that s is a base58-encoded 32-byte key.
func ValidateAddress(s string) error {
	decoded, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("address is %d bytes, want 32", len(decoded))
	}
	return nil
}

// IsOnCurve reports whether the address decodes to a point on the
// ed25519 curve. Wallet keys are on-curve; program-derived accounts
// (pools, vaults) are not, so this separates people from contracts when
// building funding edges.
func IsOnCurve(address string) bool {
	decoded, err := base58.Decode(address)
	if err != nil || len(decoded) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}
