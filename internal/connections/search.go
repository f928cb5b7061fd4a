package connections

import "strings"

// Pagination bounds for the decrypted search path, kept tighter than the
// plain list because every match costs a decryption.
const (
	// SearchDefaultPageSize applies when no page size is requested.
	SearchDefaultPageSize = 20
	// SearchMaxPageSize is the hard cap on search page sizes.
	SearchMaxPageSize = 100
)

// SearchFilter selects connections by decrypted content and classification.
// All matches are case-insensitive substrings except Service, which is exact.
type SearchFilter struct {
	IP       string
	URL      string
	User     string
	Comments string

	Company     string
	Site        string
	Application string
	Service     string

	Page    int
	PerPage int
}

// Search filters the full decrypted connection set, serving and populating
// the shared view cache, then paginates the matches in memory. This is the
// most expensive operation in the system; the cache bounds it to one bulk
// decryption per TTL window under normal load.
func (s *Service) Search(filter SearchFilter) ([]DecryptedConnection, int, error) {
	all, err := s.DecryptedAll()
	if err != nil {
		return nil, 0, err
	}

	matches := make([]DecryptedConnection, 0)
	for _, conn := range all {
		if filter.matches(&conn) {
			matches = append(matches, conn)
		}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = SearchDefaultPageSize
	}
	if perPage > SearchMaxPageSize {
		perPage = SearchMaxPageSize
	}

	total := len(matches)
	start := (page - 1) * perPage
	if start >= total {
		return []DecryptedConnection{}, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

func (f *SearchFilter) matches(conn *DecryptedConnection) bool {
	if !containsFold(conn.CompanyName, f.Company) {
		return false
	}
	if !containsFold(conn.SiteName, f.Site) {
		return false
	}
	if !containsFold(conn.ApplicationName, f.Application) {
		return false
	}
	if f.Service != "" && conn.URLService != f.Service {
		return false
	}
	if !containsFoldPtr(conn.ServerIP, f.IP) {
		return false
	}
	if !containsFoldPtr(conn.URL, f.URL) {
		return false
	}
	if !containsFoldPtr(conn.User, f.User) {
		return false
	}
	if !containsFoldPtr(conn.Comments, f.Comments) {
		return false
	}
	return true
}

// containsFold reports whether value contains term case-insensitively; an
// empty term always matches.
func containsFold(value, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(term))
}

// containsFoldPtr is containsFold over optional fields; a missing field
// never matches a non-empty term.
func containsFoldPtr(value *string, term string) bool {
	if term == "" {
		return true
	}
	if value == nil {
		return false
	}
	return containsFold(*value, term)
}
