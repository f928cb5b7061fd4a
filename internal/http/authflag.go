package http

import (
	"sync"
	"time"

	"github.com/connvault/connvault/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// authFlagRefreshInterval bounds how often the enforcement flag is re-read,
// so the middleware does not hit the database on every request.
const authFlagRefreshInterval = 60 * time.Second

// authFlag is a cached snapshot of the auth-enforcement flag from the
// configuration singleton.
type authFlag struct {
	db *gorm.DB

	mu        sync.Mutex
	enabled   bool
	refreshed time.Time
}

func newAuthFlag(db *gorm.DB) *authFlag {
	return &authFlag{db: db, enabled: true}
}

// Enabled returns the current enforcement flag, refreshing the snapshot when
// it is older than the refresh interval. Enforcement stays on when the flag
// cannot be read.
func (f *authFlag) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if time.Since(f.refreshed) < authFlagRefreshInterval && !f.refreshed.IsZero() {
		return f.enabled
	}

	var cfg models.AppConfig
	if errFind := f.db.First(&cfg, models.AppConfigID).Error; errFind != nil {
		log.Warnf("could not refresh auth flag: %v", errFind)
		f.refreshed = time.Now()
		return f.enabled
	}
	f.enabled = cfg.EnableAuth
	f.refreshed = time.Now()
	return f.enabled
}

// Invalidate forces the next Enabled call to re-read the flag.
func (f *authFlag) Invalidate() {
	f.mu.Lock()
	f.refreshed = time.Time{}
	f.mu.Unlock()
}
