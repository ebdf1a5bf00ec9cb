package vault

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned when a key holds no content.
var ErrNotFound = errors.New("content not found")

// validateKey rejects keys that are empty, absolute, or escape the vault.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid vault key: %q", key)
	}
	if path.Clean(key) != key {
		return fmt.Errorf("invalid vault key: %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." {
			return fmt.Errorf("invalid vault key: %q", key)
		}
	}
	return nil
}
