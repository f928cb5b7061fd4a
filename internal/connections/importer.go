package connections

import (
	"archive/zip"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/connvault/connvault/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Archive member names expected inside the import bundle.
const (
	documentFileName = "connections.json"
	keyFileName      = "encryption.key"
)

// ImportReport counts the outcome of one import invocation.
type ImportReport struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// Document shapes as delivered by the source system. Sensitive values arrive
// already encrypted under the bundled key and are stored verbatim.
type importDocument struct {
	Connections []importCompany `json:"connections"`
}

type importCompany struct {
	CompanyName string       `json:"company_name"`
	Sites       []importSite `json:"sites"`
}

type importSite struct {
	SiteName     string              `json:"site_name"`
	Applications []importApplication `json:"applications"`
}

type importApplication struct {
	ApplicationName       string         `json:"application_name"`
	ApplicationLastUpdate string         `json:"application_last_update"`
	ConnectionLastUpdate  string         `json:"connection_last_update"`
	Comments              string         `json:"comments"`
	CommentURLs           []string       `json:"comment_urls"`
	Servers               []importServer `json:"servers"`
}

type importServer struct {
	IP         string      `json:"ip"`
	LastUpdate string      `json:"last_update"`
	URLs       []importURL `json:"urls"`
}

type importURL struct {
	ID            string `json:"id"`
	LastUpdate    string `json:"last_update"`
	Mode          string `json:"mode"`
	Service       string `json:"service"`
	ServerType    string `json:"server_type"`
	ServerComment string `json:"server_comment"`
	URLType       string `json:"url_type"`
	URL           string `json:"url"`
	User          string `json:"user"`
	Pwd           string `json:"pwd"`
}

// ImportArchive imports the bundle at path. The file is removed after a
// successful import, matching the drop-directory operational flow.
func (s *Service) ImportArchive(path string) (*ImportReport, error) {
	reader, errOpen := zip.OpenReader(path)
	if errOpen != nil {
		if errors.Is(errOpen, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: archive %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: not a zip archive: %v", ErrBadFormat, errOpen)
	}
	report, errImport := s.importZip(&reader.Reader)
	closeErr := reader.Close()
	if errImport != nil {
		return nil, errImport
	}
	if closeErr == nil {
		if errRemove := os.Remove(path); errRemove != nil {
			log.Warnf("could not remove %s after import: %v", path, errRemove)
		}
	}
	return report, nil
}

// ImportUpload imports a bundle supplied as an in-request reader.
func (s *Service) ImportUpload(r io.ReaderAt, size int64) (*ImportReport, error) {
	reader, errOpen := zip.NewReader(r, size)
	if errOpen != nil {
		return nil, fmt.Errorf("%w: not a zip archive: %v", ErrBadFormat, errOpen)
	}
	return s.importZip(reader)
}

// importZip runs the full import state machine: unpack, key-rotation check,
// flatten, upsert, commit. The whole invocation is one transaction; a
// failure anywhere rolls back everything so callers can retry safely.
//
// A re-key import deletes every existing connection before inserting: old
// ciphertext is unrecoverable under the new key and must not be conflated
// with the new data. Readers concurrent with a re-key import see either the
// pre-import or post-import state, never a half-applied one, but the window
// between commit and their next cache refresh remains an accepted hazard of
// this administrative operation.
func (s *Service) importZip(reader *zip.Reader) (*ImportReport, error) {
	docData, errDoc := readArchiveFile(reader, documentFileName)
	if errDoc != nil {
		return nil, errDoc
	}

	var doc importDocument
	if errParse := json.Unmarshal(docData, &doc); errParse != nil {
		return nil, fmt.Errorf("%w: invalid JSON in %s: %v", ErrBadFormat, documentFileName, errParse)
	}

	bundledKey, errKey := readBundledKey(reader)
	if errKey != nil {
		return nil, errKey
	}

	currentKey, errCurrent := s.currentKeyHex()
	if errCurrent != nil {
		return nil, errCurrent
	}
	keyChanged := bundledKey != "" && bundledKey != currentKey
	if keyChanged {
		log.Info("import bundle carries a new encryption key; existing connections will be discarded")
	}

	report := &ImportReport{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if keyChanged {
			// Ciphertext under the old key is dead weight; drop it together
			// with the per-user engagement rows that hang off it.
			if errDel := tx.Where("1 = 1").Delete(&models.ConnectionUserEngagement{}).Error; errDel != nil {
				return fmt.Errorf("clear engagement rows: %w", errDel)
			}
			if errDel := tx.Where("1 = 1").Delete(&models.Connection{}).Error; errDel != nil {
				return fmt.Errorf("clear connections: %w", errDel)
			}
			if errSet := installKeyHex(tx, bundledKey); errSet != nil {
				return errSet
			}
		}
		return s.upsertDocument(tx, &doc, keyChanged, report)
	})
	if err != nil {
		if errors.Is(err, ErrBadFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("import connections: %w", err)
	}

	if keyChanged {
		s.cipher.InvalidateKeyCache()
	}
	s.view.Invalidate()

	report.Total = report.Imported + report.Updated
	log.WithFields(log.Fields{
		"imported": report.Imported,
		"updated":  report.Updated,
		"skipped":  report.Skipped,
	}).Info("connections import completed")
	return report, nil
}

// upsertDocument flattens the four-level hierarchy and reconciles each url
// leaf against the store, keyed by its external id.
func (s *Service) upsertDocument(tx *gorm.DB, doc *importDocument, insertOnly bool, report *ImportReport) error {
	for _, company := range doc.Connections {
		for _, site := range company.Sites {
			for _, app := range site.Applications {
				commentURLs, errMarshal := marshalCommentURLs(app.CommentURLs)
				if errMarshal != nil {
					return errMarshal
				}
				for _, server := range app.Servers {
					for _, leaf := range server.URLs {
						if strings.TrimSpace(leaf.ID) == "" {
							report.Skipped++
							log.Warnf("skipping url without id in %s/%s/%s",
								company.CompanyName, site.SiteName, app.ApplicationName)
							continue
						}

						record := models.Connection{
							CompanyName:           company.CompanyName,
							SiteName:              site.SiteName,
							ApplicationName:       app.ApplicationName,
							ApplicationLastUpdate: parseDocTime(app.ApplicationLastUpdate),
							ConnectionLastUpdate:  parseDocTime(app.ConnectionLastUpdate),
							Comments:              optional(app.Comments),
							CommentURLs:           commentURLs,
							ServerIP:              optional(server.IP),
							ServerLastUpdate:      parseDocTime(server.LastUpdate),
							URLID:                 leaf.ID,
							URLLastUpdate:         parseDocTime(leaf.LastUpdate),
							URLMode:               leaf.Mode,
							URLService:            leaf.Service,
							URLServerType:         leaf.ServerType,
							URLType:               optional(leaf.URLType),
							URL:                   optional(leaf.URL),
							User:                  optional(leaf.User),
							Pwd:                   optional(leaf.Pwd),
							URLServerComment:      optional(leaf.ServerComment),
						}

						if insertOnly {
							// The table was emptied above; no lookups needed.
							if errCreate := tx.Create(&record).Error; errCreate != nil {
								return fmt.Errorf("insert %s: %w", leaf.ID, errCreate)
							}
							report.Imported++
							continue
						}

						var existing models.Connection
						errFind := tx.Where("url_id = ?", leaf.ID).First(&existing).Error
						switch {
						case errFind == nil:
							// Overwrite every document field; aggregate counters
							// and creation time belong to this store, not the
							// document.
							record.ID = existing.ID
							record.CreatedAt = existing.CreatedAt
							record.RatingUp = existing.RatingUp
							record.RatingDown = existing.RatingDown
							record.UsageCount = existing.UsageCount
							if errSave := tx.Save(&record).Error; errSave != nil {
								return fmt.Errorf("update %s: %w", leaf.ID, errSave)
							}
							report.Updated++
						case errors.Is(errFind, gorm.ErrRecordNotFound):
							if errCreate := tx.Create(&record).Error; errCreate != nil {
								return fmt.Errorf("insert %s: %w", leaf.ID, errCreate)
							}
							report.Imported++
						default:
							return fmt.Errorf("lookup %s: %w", leaf.ID, errFind)
						}
					}
				}
			}
		}
	}
	return nil
}

// installKeyHex persists the bundled key on the configuration singleton,
// creating the row when it is missing so the key never silently fails to
// stick.
func installKeyHex(tx *gorm.DB, keyHex string) error {
	var cfg models.AppConfig
	errFind := tx.First(&cfg, models.AppConfigID).Error
	switch {
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		cfg = models.AppConfig{ID: models.AppConfigID, EnableAuth: true, EncryptionKey: keyHex}
		if errCreate := tx.Create(&cfg).Error; errCreate != nil {
			return fmt.Errorf("install encryption key: %w", errCreate)
		}
	case errFind != nil:
		return fmt.Errorf("install encryption key: %w", errFind)
	default:
		if errSet := tx.Model(&cfg).Update("encryption_key", keyHex).Error; errSet != nil {
			return fmt.Errorf("install encryption key: %w", errSet)
		}
	}
	return nil
}

// currentKeyHex reads the active key from the configuration singleton.
func (s *Service) currentKeyHex() (string, error) {
	var cfg models.AppConfig
	errFind := s.db.First(&cfg, models.AppConfigID).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if errFind != nil {
		return "", fmt.Errorf("load config: %w", errFind)
	}
	return cfg.EncryptionKey, nil
}

// readBundledKey extracts and validates the optional key file.
func readBundledKey(reader *zip.Reader) (string, error) {
	data, err := readArchiveFile(reader, keyFileName)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	keyHex := strings.TrimSpace(string(data))
	if raw, errDecode := hex.DecodeString(keyHex); errDecode != nil || len(raw) != 32 {
		return "", fmt.Errorf("%w: bundled key must be 64 hex characters", ErrBadFormat)
	}
	return keyHex, nil
}

// readArchiveFile returns the named member's contents.
func readArchiveFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, errOpen := file.Open()
		if errOpen != nil {
			return nil, fmt.Errorf("%w: cannot open %s: %v", ErrBadFormat, name, errOpen)
		}
		data, errRead := io.ReadAll(rc)
		_ = rc.Close()
		if errRead != nil {
			return nil, fmt.Errorf("%w: cannot read %s: %v", ErrBadFormat, name, errRead)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s missing from archive", ErrNotFound, name)
}

// marshalCommentURLs stores the raw encrypted list as a JSON column value.
func marshalCommentURLs(urls []string) (datatypes.JSON, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	data, errMarshal := json.Marshal(urls)
	if errMarshal != nil {
		return nil, fmt.Errorf("%w: encode comment_urls: %v", ErrBadFormat, errMarshal)
	}
	return datatypes.JSON(data), nil
}

// optional maps an empty document value to a NULL column.
func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// docTimeLayouts are the timestamp shapes seen in source documents.
var docTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseDocTime parses a document timestamp; unparseable values become nil.
func parseDocTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" || value == "None" {
		return nil
	}
	for _, layout := range docTimeLayouts {
		if parsed, errParse := time.Parse(layout, value); errParse == nil {
			return &parsed
		}
	}
	log.Warnf("could not parse document timestamp %q", value)
	return nil
}
