// Package connections implements the encrypted connection catalog: the
// record store, the import/merge pipeline, per-user engagement tracking, and
// the shared decrypted-view cache.
package connections

import (
	"errors"
	"time"

	"github.com/connvault/connvault/internal/cache"
	"github.com/connvault/connvault/internal/security"
	"gorm.io/gorm"
)

// Errors surfaced by the catalog. Handlers map these onto HTTP statuses.
var (
	// ErrNotFound indicates a missing record, archive, or document.
	ErrNotFound = errors.New("connections: not found")
	// ErrBadFormat indicates a document or key that does not parse.
	ErrBadFormat = errors.New("connections: bad format")
	// ErrConflict indicates a write that collides with existing state.
	ErrConflict = errors.New("connections: conflict")
	// ErrInvalidRating indicates a rating value other than up/down.
	ErrInvalidRating = errors.New("connections: rating must be \"up\" or \"down\"")
)

// Service is the catalog core. All mutating operations run inside one
// database transaction and invalidate the decrypted-view cache on success.
type Service struct {
	db     *gorm.DB
	cipher *security.FieldCipher
	view   *cache.Slot[[]DecryptedConnection]
}

// NewService constructs a Service with the given view-cache TTL.
// A non-positive ttl uses cache.DefaultTTL.
func NewService(db *gorm.DB, ttl time.Duration) *Service {
	view := cache.NewSlot[[]DecryptedConnection](ttl)
	return &Service{
		db:     db,
		cipher: security.NewFieldCipher(db, view),
		view:   view,
	}
}

// Cipher exposes the field cipher, e.g. for key administration.
func (s *Service) Cipher() *security.FieldCipher { return s.cipher }

// InvalidateView drops the decrypted-view cache. Best effort; never fails.
func (s *Service) InvalidateView() { s.view.Invalidate() }
