package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// GenerateEncryptionKeyHex returns a fresh random AES-256 key as a
// 64-character hex string, suitable for the configuration singleton.
func GenerateEncryptionKeyHex() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate encryption key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
