package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/connvault/connvault/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Field context labels used as additional authenticated data. Ciphertext
// encrypted under one context fails verification under another.
const (
	ContextComments      = "comments"
	ContextCommentURLs   = "comment_urls"
	ContextIP            = "ip"
	ContextURLType       = "url_type"
	ContextURL           = "url"
	ContextUser          = "user"
	ContextPwd           = "pwd"
	ContextServerComment = "server_comment"
)

// gcmNonceSize is the nonce length in the nonce||ciphertext||tag layout.
const gcmNonceSize = 12

// ErrKeyUnavailable indicates no usable encryption key is configured.
var ErrKeyUnavailable = errors.New("encryption key not available")

// ErrBadKeyFormat indicates a key that is not 64 hex characters.
var ErrBadKeyFormat = errors.New("encryption key must be 64 hex characters")

// Invalidator is notified when the encryption key changes. Key rotation
// changes what every stored ciphertext means, so dependent caches must drop
// their decrypted state.
type Invalidator interface {
	Invalidate()
}

// FieldCipher encrypts and decrypts individual connection fields with
// AES-256-GCM, using the field context label as AAD. The key lives in the
// configuration singleton and is cached in memory after the first load.
type FieldCipher struct {
	db *gorm.DB

	mu  sync.Mutex
	key []byte

	onKeyChange Invalidator
}

// NewFieldCipher constructs a FieldCipher. onKeyChange may be nil.
func NewFieldCipher(db *gorm.DB, onKeyChange Invalidator) *FieldCipher {
	return &FieldCipher{db: db, onKeyChange: onKeyChange}
}

// Key returns the 32-byte encryption key from the configuration singleton,
// caching it after the first successful load.
func (f *FieldCipher) Key() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.key != nil {
		return f.key, nil
	}

	var cfg models.AppConfig
	if errFind := f.db.First(&cfg, models.AppConfigID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrKeyUnavailable
		}
		return nil, fmt.Errorf("load encryption key: %w", errFind)
	}
	if cfg.EncryptionKey == "" {
		return nil, ErrKeyUnavailable
	}

	key, errDecode := hex.DecodeString(cfg.EncryptionKey)
	if errDecode != nil || len(key) != 32 {
		log.Errorf("invalid encryption key in config: %d bytes after decode", len(key))
		return nil, ErrBadKeyFormat
	}

	f.key = key
	return f.key, nil
}

// SetKey validates and persists a new hex-encoded key, then drops the
// in-memory key cache and notifies the invalidator.
func (f *FieldCipher) SetKey(hexKey string) error {
	key, errDecode := hex.DecodeString(hexKey)
	if errDecode != nil || len(key) != 32 {
		return ErrBadKeyFormat
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		var cfg models.AppConfig
		errFind := tx.First(&cfg, models.AppConfigID).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			cfg = models.AppConfig{ID: models.AppConfigID, EnableAuth: true, EncryptionKey: hexKey}
			return tx.Create(&cfg).Error
		}
		if errFind != nil {
			return errFind
		}
		return tx.Model(&cfg).Update("encryption_key", hexKey).Error
	})
	if err != nil {
		return fmt.Errorf("persist encryption key: %w", err)
	}

	f.InvalidateKeyCache()
	if f.onKeyChange != nil {
		f.onKeyChange.Invalidate()
	}
	log.Info("encryption key updated")
	return nil
}

// InvalidateKeyCache forces the next Key call to reload from the database.
func (f *FieldCipher) InvalidateKeyCache() {
	f.mu.Lock()
	f.key = nil
	f.mu.Unlock()
}

// Encrypt seals plaintext under the given field context and returns
// base64(nonce || ciphertext || tag).
func (f *FieldCipher) Encrypt(plaintext, context string) (string, error) {
	key, errKey := f.Key()
	if errKey != nil {
		return "", errKey
	}

	block, errBlock := aes.NewCipher(key)
	if errBlock != nil {
		return "", fmt.Errorf("create cipher: %w", errBlock)
	}
	gcm, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		return "", fmt.Errorf("create gcm: %w", errGCM)
	}

	nonce := make([]byte, gcmNonceSize)
	if _, errNonce := io.ReadFull(rand.Reader, nonce); errNonce != nil {
		return "", fmt.Errorf("generate nonce: %w", errNonce)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), []byte(context))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens base64(nonce || ciphertext || tag) under the given field
// context. It returns nil for empty input and nil (with a logged failure)
// when the authentication tag does not verify, so one corrupted field never
// aborts a whole record.
func (f *FieldCipher) Decrypt(encoded, context string) *string {
	if encoded == "" {
		return nil
	}

	key, errKey := f.Key()
	if errKey != nil {
		log.Errorf("cannot decrypt field %q: %v", context, errKey)
		return nil
	}

	combined, errDecode := base64.StdEncoding.DecodeString(encoded)
	if errDecode != nil {
		log.Errorf("invalid base64 ciphertext for context %q: %v", context, errDecode)
		return nil
	}

	block, errBlock := aes.NewCipher(key)
	if errBlock != nil {
		log.Errorf("create cipher for context %q: %v", context, errBlock)
		return nil
	}
	gcm, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		log.Errorf("create gcm for context %q: %v", context, errGCM)
		return nil
	}
	if len(combined) < gcmNonceSize+gcm.Overhead() {
		log.Errorf("ciphertext too short for context %q", context)
		return nil
	}

	nonce := combined[:gcmNonceSize]
	plaintext, errOpen := gcm.Open(nil, nonce, combined[gcmNonceSize:], []byte(context))
	if errOpen != nil {
		// Tamper, wrong key, or wrong context.
		log.Errorf("decryption authentication failed for context %q", context)
		return nil
	}

	out := string(plaintext)
	return &out
}

// DecryptPtr decrypts an optional ciphertext column.
func (f *FieldCipher) DecryptPtr(encoded *string, context string) *string {
	if encoded == nil {
		return nil
	}
	return f.Decrypt(*encoded, context)
}
