package testutil

import (
	"lh-go/internal/encryption"
	"lh-go/internal/lh"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() lh.Encryptor {
	return encryption.NewTestEncryptor()
}
