package testutil

import (
	"lh-go/internal/lh"
	"lh-go/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() lh.Vault {
	return vault.NewMemoryVault("test-vault")
}
