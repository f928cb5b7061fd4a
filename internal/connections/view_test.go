package connections

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/connvault/connvault/internal/models"
	"github.com/connvault/connvault/internal/security"
	"gorm.io/datatypes"
)

func TestDecryptedViewFields(t *testing.T) {
	svc, conn := newTestService(t)
	installKey(t, svc)

	urls := []string{
		*encryptField(t, svc, "https://docs.acme.test", security.ContextCommentURLs),
		*encryptField(t, svc, "https://wiki.acme.test", security.ContextCommentURLs),
	}
	rawURLs, _ := json.Marshal(urls)

	row := seedConnection(t, conn, "view-1", func(c *models.Connection) {
		c.Comments = encryptField(t, svc, "gateway box", security.ContextComments)
		c.CommentURLs = datatypes.JSON(rawURLs)
		c.ServerIP = encryptField(t, svc, "10.1.2.3", security.ContextIP)
		c.URLType = encryptField(t, svc, "admin", security.ContextURLType)
		c.URL = encryptField(t, svc, "https://admin.acme.test", security.ContextURL)
		c.User = encryptField(t, svc, "root", security.ContextUser)
		c.Pwd = encryptField(t, svc, "hunter2", security.ContextPwd)
		c.URLServerComment = encryptField(t, svc, "reboot fridays", security.ContextServerComment)
	})

	view, errGet := svc.GetDecrypted(row.ID)
	if errGet != nil {
		t.Fatalf("decrypt: %v", errGet)
	}
	checks := map[string]*string{
		"gateway box":             view.Comments,
		"10.1.2.3":                view.ServerIP,
		"admin":                   view.URLType,
		"https://admin.acme.test": view.URL,
		"root":                    view.User,
		"hunter2":                 view.Pwd,
		"reboot fridays":          view.ServerComment,
	}
	for want, got := range checks {
		if got == nil || *got != want {
			t.Fatalf("field mismatch: want %q got %v", want, got)
		}
	}
	if len(view.CommentURLs) != 2 || view.CommentURLs[0] == nil || *view.CommentURLs[0] != "https://docs.acme.test" {
		t.Fatalf("comment urls mismatch: %v", view.CommentURLs)
	}
	if !view.HasCredentials || !view.HasURL {
		t.Fatalf("expected credential and url flags set")
	}
}

func TestDecryptedViewDegradesPerField(t *testing.T) {
	svc, conn := newTestService(t)
	installKey(t, svc)

	garbage := "bm90IHJlYWwgY2lwaGVydGV4dCBhdCBhbGwsIHNvcnJ5"
	row := seedConnection(t, conn, "view-2", func(c *models.Connection) {
		c.ServerIP = encryptField(t, svc, "10.9.9.9", security.ContextIP)
		c.Comments = &garbage
	})

	view, errGet := svc.GetDecrypted(row.ID)
	if errGet != nil {
		t.Fatalf("decrypt: %v", errGet)
	}
	if view.Comments != nil {
		t.Fatalf("corrupted field must decrypt to nil, got %q", *view.Comments)
	}
	if view.ServerIP == nil || *view.ServerIP != "10.9.9.9" {
		t.Fatalf("healthy field lost: %v", view.ServerIP)
	}
}

func TestGetDecryptedNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	installKey(t, svc)
	if _, errGet := svc.GetDecrypted(404); !errors.Is(errGet, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errGet)
	}
}

func TestDecryptedAllServesCache(t *testing.T) {
	svc, conn := newTestService(t)
	installKey(t, svc)
	seedConnection(t, conn, "view-3", nil)

	first, errAll := svc.DecryptedAll()
	if errAll != nil || len(first) != 1 {
		t.Fatalf("populate: %v len=%d", errAll, len(first))
	}

	// A direct insert is invisible until the view is invalidated.
	seedConnection(t, conn, "view-4", nil)
	cached, _ := svc.DecryptedAll()
	if len(cached) != 1 {
		t.Fatalf("expected cached view, got %d rows", len(cached))
	}

	svc.InvalidateView()
	fresh, _ := svc.DecryptedAll()
	if len(fresh) != 2 {
		t.Fatalf("expected rebuilt view, got %d rows", len(fresh))
	}
}
