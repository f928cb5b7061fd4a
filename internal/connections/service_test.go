package connections

import (
	"fmt"
	"testing"
	"time"

	"github.com/connvault/connvault/internal/db"
	"github.com/connvault/connvault/internal/models"
	"github.com/connvault/connvault/internal/security"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// newTestService opens a fresh in-memory database, runs migrations, installs
// a random encryption key, and seeds one user for engagement rows.
func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:connections_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	svc := NewService(conn, time.Minute)
	if errCreate := conn.Create(&models.User{Email: "tester@example.com", PasswordHash: "x"}).Error; errCreate != nil {
		t.Fatalf("seed user: %v", errCreate)
	}
	return svc, conn
}

// installKey generates and installs a fresh encryption key, returning its
// hex form.
func installKey(t *testing.T, svc *Service) string {
	t.Helper()
	hexKey, errGen := security.GenerateEncryptionKeyHex()
	if errGen != nil {
		t.Fatalf("generate key: %v", errGen)
	}
	if errSet := svc.Cipher().SetKey(hexKey); errSet != nil {
		t.Fatalf("set key: %v", errSet)
	}
	return hexKey
}

// seedConnection inserts a plaintext-classified connection directly.
func seedConnection(t *testing.T, conn *gorm.DB, urlID string, mutate func(*models.Connection)) *models.Connection {
	t.Helper()
	record := models.Connection{
		CompanyName:     "Acme",
		SiteName:        "HQ",
		ApplicationName: "Billing",
		URLID:           urlID,
		URLMode:         "classic",
		URLService:      "http",
		URLServerType:   "Production",
	}
	if mutate != nil {
		mutate(&record)
	}
	if errCreate := conn.Create(&record).Error; errCreate != nil {
		t.Fatalf("seed connection %s: %v", urlID, errCreate)
	}
	return &record
}

// encryptField seals a plaintext value under the service's key for seeding
// ciphertext columns in tests.
func encryptField(t *testing.T, svc *Service, plaintext, context string) *string {
	t.Helper()
	encoded, errEnc := svc.Cipher().Encrypt(plaintext, context)
	if errEnc != nil {
		t.Fatalf("encrypt %s: %v", context, errEnc)
	}
	return &encoded
}
