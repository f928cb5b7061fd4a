package connections

import (
	"fmt"
	"testing"

	"github.com/connvault/connvault/internal/models"
	"github.com/connvault/connvault/internal/security"
)

func seedSearchable(t *testing.T, svc *Service) {
	t.Helper()
	seedConnection(t, svc.db, "search-1", func(c *models.Connection) {
		c.CompanyName = "Acme"
		c.URLService = "http"
		c.ServerIP = encryptField(t, svc, "192.168.10.5", security.ContextIP)
		c.URL = encryptField(t, svc, "https://billing.acme.test/login", security.ContextURL)
		c.User = encryptField(t, svc, "svc-billing", security.ContextUser)
		c.Comments = encryptField(t, svc, "Primary billing gateway", security.ContextComments)
	})
	seedConnection(t, svc.db, "search-2", func(c *models.Connection) {
		c.CompanyName = "Globex"
		c.URLService = "ssh"
		c.ServerIP = encryptField(t, svc, "10.0.0.8", security.ContextIP)
	})
}

func TestSearchDecryptedContent(t *testing.T) {
	svc, _ := newTestService(t)
	installKey(t, svc)
	seedSearchable(t, svc)

	matches, total, errSearch := svc.Search(SearchFilter{IP: "168.10"})
	if errSearch != nil {
		t.Fatalf("search: %v", errSearch)
	}
	if total != 1 || matches[0].URLID != "search-1" {
		t.Fatalf("ip substring search: total=%d", total)
	}

	if _, total, _ = svc.Search(SearchFilter{User: "SVC-BILLING"}); total != 1 {
		t.Fatalf("case-insensitive user search: total=%d", total)
	}
	if _, total, _ = svc.Search(SearchFilter{Comments: "gateway"}); total != 1 {
		t.Fatalf("comments search: total=%d", total)
	}
	if _, total, _ = svc.Search(SearchFilter{URL: "login", Company: "acme"}); total != 1 {
		t.Fatalf("combined search: total=%d", total)
	}
	if _, total, _ = svc.Search(SearchFilter{URL: "login", Company: "globex"}); total != 0 {
		t.Fatalf("conjunctive filters must all match: total=%d", total)
	}
}

func TestSearchMissingFieldsNeverMatch(t *testing.T) {
	svc, _ := newTestService(t)
	installKey(t, svc)
	seedSearchable(t, svc)

	// search-2 has no stored user; a user term must not match it.
	matches, total, errSearch := svc.Search(SearchFilter{User: "svc"})
	if errSearch != nil {
		t.Fatalf("search: %v", errSearch)
	}
	if total != 1 || matches[0].URLID != "search-1" {
		t.Fatalf("nil field matched a term: total=%d", total)
	}

	// Empty filter matches everything.
	if _, total, _ = svc.Search(SearchFilter{}); total != 2 {
		t.Fatalf("empty filter: total=%d", total)
	}
}

func TestSearchPagination(t *testing.T) {
	svc, _ := newTestService(t)
	installKey(t, svc)
	for i := 0; i < 5; i++ {
		seedConnection(t, svc.db, fmt.Sprintf("page-%d", i), nil)
	}

	matches, total, errSearch := svc.Search(SearchFilter{Page: 1, PerPage: 2})
	if errSearch != nil {
		t.Fatalf("search: %v", errSearch)
	}
	if total != 5 || len(matches) != 2 {
		t.Fatalf("page 1: total=%d len=%d", total, len(matches))
	}

	matches, _, _ = svc.Search(SearchFilter{Page: 3, PerPage: 2})
	if len(matches) != 1 {
		t.Fatalf("page 3: len=%d", len(matches))
	}

	matches, total, _ = svc.Search(SearchFilter{Page: 9, PerPage: 2})
	if len(matches) != 0 || total != 5 {
		t.Fatalf("past-the-end page: len=%d total=%d", len(matches), total)
	}
}
