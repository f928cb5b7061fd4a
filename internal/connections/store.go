package connections

import (
	"errors"
	"fmt"

	"github.com/connvault/connvault/internal/db"
	"github.com/connvault/connvault/internal/models"
	"gorm.io/gorm"
)

// Pagination bounds for the list operation.
const (
	// DefaultPageSize applies when no page size is requested.
	DefaultPageSize = 50
	// MaxPageSize is the hard cap on list page sizes.
	MaxPageSize = 500
)

// ListFilter selects connections by their plaintext classification fields.
// Name filters match case-insensitive substrings; service and mode match
// exactly; HasCredentials filters on credential ciphertext presence.
type ListFilter struct {
	Company     string
	Site        string
	Application string
	ServerType  string
	Service     string
	Mode        string

	HasCredentials *bool

	Page    int
	PerPage int
}

// scope applies the classification filters onto a query.
func (f ListFilter) scope(conn *gorm.DB, query *gorm.DB) *gorm.DB {
	like := func(column, pattern string) {
		query = query.Where(db.CaseInsensitiveLikeExpr(conn, column), db.NormalizeLikePattern(conn, "%"+pattern+"%"))
	}
	if f.Company != "" {
		like("company_name", f.Company)
	}
	if f.Site != "" {
		like("site_name", f.Site)
	}
	if f.Application != "" {
		like("application_name", f.Application)
	}
	if f.ServerType != "" {
		like("url_server_type", f.ServerType)
	}
	if f.Service != "" {
		query = query.Where("url_service = ?", f.Service)
	}
	if f.Mode != "" {
		query = query.Where("url_mode = ?", f.Mode)
	}
	if f.HasCredentials != nil {
		// "user" is reserved in PostgreSQL; the quoted form is valid on
		// SQLite as well.
		if *f.HasCredentials {
			query = query.Where(`"user" IS NOT NULL AND "user" <> '' AND pwd IS NOT NULL AND pwd <> ''`)
		} else {
			query = query.Where(`"user" IS NULL OR "user" = '' OR pwd IS NULL OR pwd = ''`)
		}
	}
	return query
}

// List returns one page of connections matching the filter plus the total
// match count. Sensitive fields stay ciphertext on this path.
func (s *Service) List(filter ListFilter) ([]models.Connection, int64, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = DefaultPageSize
	}
	if perPage > MaxPageSize {
		perPage = MaxPageSize
	}

	query := filter.scope(s.db, s.db.Model(&models.Connection{}))

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("count connections: %w", errCount)
	}

	var rows []models.Connection
	offset := (page - 1) * perPage
	if errFind := query.
		Order("company_name ASC, site_name ASC, application_name ASC, id ASC").
		Offset(offset).Limit(perPage).
		Find(&rows).Error; errFind != nil {
		return nil, 0, fmt.Errorf("list connections: %w", errFind)
	}
	return rows, total, nil
}

// all returns every connection, bypassing pagination. Used for cache warm-up
// and the decrypted search path.
func (s *Service) all() ([]models.Connection, error) {
	var rows []models.Connection
	if errFind := s.db.Order("id ASC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("load connections: %w", errFind)
	}
	return rows, nil
}

// Get returns one connection by storage id with sensitive fields opaque.
func (s *Service) Get(id uint64) (*models.Connection, error) {
	var conn models.Connection
	if errFind := s.db.First(&conn, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load connection: %w", errFind)
	}
	return &conn, nil
}

// Stats summarises the catalog.
type Stats struct {
	TotalConnections   int64 `json:"total_connections"`
	UniqueCompanies    int64 `json:"unique_companies"`
	UniqueSites        int64 `json:"unique_sites"`
	UniqueApplications int64 `json:"unique_applications"`
	UniqueServices     int64 `json:"unique_services"`
}

// Stats returns catalog-level distinct counts.
func (s *Service) Stats() (*Stats, error) {
	var out Stats
	if err := s.db.Model(&models.Connection{}).Count(&out.TotalConnections).Error; err != nil {
		return nil, fmt.Errorf("count connections: %w", err)
	}
	distinct := func(column string, dest *int64) error {
		return s.db.Model(&models.Connection{}).Distinct(column).Count(dest).Error
	}
	if err := distinct("company_name", &out.UniqueCompanies); err != nil {
		return nil, fmt.Errorf("count companies: %w", err)
	}
	if err := distinct("site_name", &out.UniqueSites); err != nil {
		return nil, fmt.Errorf("count sites: %w", err)
	}
	if err := distinct("application_name", &out.UniqueApplications); err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}
	if err := distinct("url_service", &out.UniqueServices); err != nil {
		return nil, fmt.Errorf("count services: %w", err)
	}
	return &out, nil
}
