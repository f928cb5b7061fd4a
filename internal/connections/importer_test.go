package connections

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/connvault/connvault/internal/models"
	"github.com/connvault/connvault/internal/security"
)

// buildArchive assembles an import bundle in memory. keyHex is optional.
func buildArchive(t *testing.T, doc any, keyHex string) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)

	docFile, errCreate := writer.Create(documentFileName)
	if errCreate != nil {
		t.Fatalf("create %s: %v", documentFileName, errCreate)
	}
	if errEncode := json.NewEncoder(docFile).Encode(doc); errEncode != nil {
		t.Fatalf("encode document: %v", errEncode)
	}

	if keyHex != "" {
		keyFile, errKey := writer.Create(keyFileName)
		if errKey != nil {
			t.Fatalf("create %s: %v", keyFileName, errKey)
		}
		if _, errWrite := keyFile.Write([]byte(keyHex + "\n")); errWrite != nil {
			t.Fatalf("write key: %v", errWrite)
		}
	}

	if errClose := writer.Close(); errClose != nil {
		t.Fatalf("close archive: %v", errClose)
	}
	return buf.Bytes()
}

// singleLeafDocument builds a document with one company/site/application/
// server and the given url leaves.
func singleLeafDocument(urls ...importURL) importDocument {
	return importDocument{
		Connections: []importCompany{{
			CompanyName: "Acme",
			Sites: []importSite{{
				SiteName: "HQ",
				Applications: []importApplication{{
					ApplicationName:       "Billing",
					ApplicationLastUpdate: "2024-03-01T10:00:00Z",
					ConnectionLastUpdate:  "2024-03-02 11:30:00",
					Servers: []importServer{{
						IP:         "",
						LastUpdate: "None",
						URLs:       urls,
					}},
				}},
			}},
		}},
	}
}

func importBytes(t *testing.T, svc *Service, data []byte) (*ImportReport, error) {
	t.Helper()
	return svc.ImportUpload(bytes.NewReader(data), int64(len(data)))
}

func TestImportSingleLeaf(t *testing.T) {
	svc, conn := newTestService(t)
	installKey(t, svc)

	urlCipher := encryptField(t, svc, "https://billing.acme.test", security.ContextURL)
	doc := singleLeafDocument(importURL{
		ID:         "11111111-1111-1111-1111-111111111111",
		LastUpdate: "2024-03-03T09:00:00Z",
		Mode:       "classic",
		Service:    "http",
		ServerType: "Production",
		URL:        *urlCipher,
	})

	report, errImport := importBytes(t, svc, buildArchive(t, doc, ""))
	if errImport != nil {
		t.Fatalf("import: %v", errImport)
	}
	if report.Imported != 1 || report.Updated != 0 || report.Skipped != 0 || report.Total != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	var stored models.Connection
	if errFind := conn.Where("url_id = ?", "11111111-1111-1111-1111-111111111111").First(&stored).Error; errFind != nil {
		t.Fatalf("load imported row: %v", errFind)
	}
	if stored.CompanyName != "Acme" || stored.URLMode != "classic" {
		t.Fatalf("unexpected row: %+v", stored)
	}
	if stored.ApplicationLastUpdate == nil || stored.ConnectionLastUpdate == nil {
		t.Fatalf("expected parsed document timestamps")
	}
	if stored.ServerLastUpdate != nil {
		t.Fatalf(`expected nil timestamp for "None"`)
	}

	decrypted, errGet := svc.GetDecrypted(stored.ID)
	if errGet != nil {
		t.Fatalf("decrypt imported row: %v", errGet)
	}
	if decrypted.URL == nil || *decrypted.URL != "https://billing.acme.test" {
		t.Fatalf("decrypted url mismatch: %v", decrypted.URL)
	}
}

func TestImportReimportUpdatesByURLID(t *testing.T) {
	svc, conn := newTestService(t)
	installKey(t, svc)

	const urlID = "22222222-2222-2222-2222-222222222222"
	doc := singleLeafDocument(importURL{ID: urlID, Mode: "classic", Service: "http"})

	if _, errImport := importBytes(t, svc, buildArchive(t, doc, "")); errImport != nil {
		t.Fatalf("first import: %v", errImport)
	}

	var stored models.Connection
	if errFind := conn.Where("url_id = ?", urlID).First(&stored).Error; errFind != nil {
		t.Fatalf("load row: %v", errFind)
	}
	firstID := stored.ID
	if errBump := conn.Model(&stored).UpdateColumn("rating_up", 3).Error; errBump != nil {
		t.Fatalf("set counter: %v", errBump)
	}

	doc.Connections[0].Sites[0].Applications[0].Servers[0].URLs[0].Mode = "extrapolated"
	report, errImport := importBytes(t, svc, buildArchive(t, doc, ""))
	if errImport != nil {
		t.Fatalf("second import: %v", errImport)
	}
	if report.Imported != 0 || report.Updated != 1 || report.Total != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	var count int64
	if errCount := conn.Model(&models.Connection{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count rows: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected merge by url_id to keep 1 row, got %d", count)
	}

	if errFind := conn.Where("url_id = ?", urlID).First(&stored).Error; errFind != nil {
		t.Fatalf("reload row: %v", errFind)
	}
	if stored.ID != firstID {
		t.Fatalf("storage id changed on update: %d -> %d", firstID, stored.ID)
	}
	if stored.URLMode != "extrapolated" {
		t.Fatalf("document field not overwritten: %q", stored.URLMode)
	}
	if stored.RatingUp != 3 {
		t.Fatalf("aggregate counter not preserved: %d", stored.RatingUp)
	}
}

func TestImportSkipsLeavesWithoutID(t *testing.T) {
	svc, _ := newTestService(t)
	installKey(t, svc)

	doc := singleLeafDocument(
		importURL{ID: "  ", Mode: "classic"},
		importURL{ID: "33333333-3333-3333-3333-333333333333", Mode: "classic"},
	)
	report, errImport := importBytes(t, svc, buildArchive(t, doc, ""))
	if errImport != nil {
		t.Fatalf("import: %v", errImport)
	}
	if report.Imported != 1 || report.Skipped != 1 || report.Total != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestImportKeyRotationWipesStore(t *testing.T) {
	svc, conn := newTestService(t)
	installKey(t, svc)

	// Pre-existing data under the old key, with an engagement row.
	old := seedConnection(t, conn, "44444444-4444-4444-4444-444444444444", func(c *models.Connection) {
		c.User = encryptField(t, svc, "olduser", security.ContextUser)
		c.Pwd = encryptField(t, svc, "oldpass", security.ContextPwd)
	})
	if _, errRate := svc.Rate(1, old.ID, models.RatingUp); errRate != nil {
		t.Fatalf("seed rating: %v", errRate)
	}

	newKey, errGen := security.GenerateEncryptionKeyHex()
	if errGen != nil {
		t.Fatalf("generate key: %v", errGen)
	}
	doc := singleLeafDocument(importURL{ID: "55555555-5555-5555-5555-555555555555", Mode: "classic"})
	report, errImport := importBytes(t, svc, buildArchive(t, doc, newKey))
	if errImport != nil {
		t.Fatalf("re-key import: %v", errImport)
	}
	if report.Imported != 1 || report.Updated != 0 || report.Total != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	var connCount, engagementCount int64
	conn.Model(&models.Connection{}).Count(&connCount)
	conn.Model(&models.ConnectionUserEngagement{}).Count(&engagementCount)
	if connCount != 1 {
		t.Fatalf("expected only newly imported rows, got %d", connCount)
	}
	if engagementCount != 0 {
		t.Fatalf("expected engagement rows wiped, got %d", engagementCount)
	}

	var cfg models.AppConfig
	if errFind := conn.First(&cfg, models.AppConfigID).Error; errFind != nil {
		t.Fatalf("load config: %v", errFind)
	}
	if cfg.EncryptionKey != newKey {
		t.Fatalf("bundled key not installed")
	}
}

func TestImportInstallsKeyOnMissingConfigRow(t *testing.T) {
	svc, conn := newTestService(t)

	// A store without the configuration singleton must still end up with
	// the bundled key persisted.
	if errDel := conn.Where("id = ?", models.AppConfigID).Delete(&models.AppConfig{}).Error; errDel != nil {
		t.Fatalf("drop config row: %v", errDel)
	}

	newKey, errGen := security.GenerateEncryptionKeyHex()
	if errGen != nil {
		t.Fatalf("generate key: %v", errGen)
	}
	doc := singleLeafDocument(importURL{ID: "99999999-9999-9999-9999-999999999999", Mode: "classic"})
	if _, errImport := importBytes(t, svc, buildArchive(t, doc, newKey)); errImport != nil {
		t.Fatalf("import: %v", errImport)
	}

	var cfg models.AppConfig
	if errFind := conn.First(&cfg, models.AppConfigID).Error; errFind != nil {
		t.Fatalf("config row missing after import: %v", errFind)
	}
	if cfg.EncryptionKey != newKey {
		t.Fatalf("bundled key not persisted")
	}
}

func TestImportSameKeyMergesIncrementally(t *testing.T) {
	svc, conn := newTestService(t)
	currentKey := installKey(t, svc)

	seedConnection(t, conn, "66666666-6666-6666-6666-666666666666", nil)

	doc := singleLeafDocument(importURL{ID: "77777777-7777-7777-7777-777777777777", Mode: "classic"})
	report, errImport := importBytes(t, svc, buildArchive(t, doc, currentKey))
	if errImport != nil {
		t.Fatalf("import: %v", errImport)
	}
	if report.Imported != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	var count int64
	conn.Model(&models.Connection{}).Count(&count)
	if count != 2 {
		t.Fatalf("matching key must not wipe the store, got %d rows", count)
	}
}

func TestImportRejectsBadArchives(t *testing.T) {
	svc, _ := newTestService(t)
	installKey(t, svc)

	// Not a zip at all.
	if _, errImport := importBytes(t, svc, []byte("plain text")); !errors.Is(errImport, ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat for non-zip, got %v", errImport)
	}

	// Zip without the document.
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	other, _ := writer.Create("readme.txt")
	_, _ = other.Write([]byte("hi"))
	_ = writer.Close()
	if _, errImport := importBytes(t, svc, buf.Bytes()); !errors.Is(errImport, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing document, got %v", errImport)
	}

	// Document that is not JSON.
	buf.Reset()
	writer = zip.NewWriter(&buf)
	docFile, _ := writer.Create(documentFileName)
	_, _ = docFile.Write([]byte("{nope"))
	_ = writer.Close()
	if _, errImport := importBytes(t, svc, buf.Bytes()); !errors.Is(errImport, ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat for invalid JSON, got %v", errImport)
	}

	// Malformed bundled key.
	buf.Reset()
	writer = zip.NewWriter(&buf)
	docFile, _ = writer.Create(documentFileName)
	_ = json.NewEncoder(docFile).Encode(singleLeafDocument())
	keyFile, _ := writer.Create(keyFileName)
	_, _ = keyFile.Write([]byte("not-a-key"))
	_ = writer.Close()
	if _, errImport := importBytes(t, svc, buf.Bytes()); !errors.Is(errImport, ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat for bad key, got %v", errImport)
	}
}

func TestImportArchiveFromDisk(t *testing.T) {
	svc, _ := newTestService(t)
	installKey(t, svc)

	if _, errImport := svc.ImportArchive(filepath.Join(t.TempDir(), "missing.zip")); !errors.Is(errImport, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing file, got %v", errImport)
	}

	doc := singleLeafDocument(importURL{ID: "88888888-8888-8888-8888-888888888888", Mode: "classic"})
	path := filepath.Join(t.TempDir(), "connections.zip")
	if errWrite := os.WriteFile(path, buildArchive(t, doc, ""), 0o600); errWrite != nil {
		t.Fatalf("write archive: %v", errWrite)
	}

	report, errImport := svc.ImportArchive(path)
	if errImport != nil {
		t.Fatalf("import: %v", errImport)
	}
	if report.Imported != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, errStat := os.Stat(path); !errors.Is(errStat, os.ErrNotExist) {
		t.Fatalf("expected archive removed after import, stat err: %v", errStat)
	}
}
