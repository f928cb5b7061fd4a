package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMemoLifecycle(t *testing.T) {
	router := newTestRouter(t)
	token := signUpAndIn(t, router, "memos@example.com", "password123")

	rec := doJSON(t, router, http.MethodPost, "/api/categories", token, gin.H{"name": "Runbooks"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category: %d %s", rec.Code, rec.Body.String())
	}
	var category struct {
		ID uint64 `json:"ID"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &category)

	// Duplicate category name conflicts.
	rec = doJSON(t, router, http.MethodPost, "/api/categories", token, gin.H{"name": "Runbooks"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate category, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/memos", token, gin.H{
		"name":        "Restart procedure",
		"content":     "drain, restart, verify",
		"category_id": category.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create memo: %d %s", rec.Code, rec.Body.String())
	}
	var memo struct {
		ID uint64 `json:"ID"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &memo)

	rec = doJSON(t, router, http.MethodGet, "/api/memos?search=restart", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list memos: %d", rec.Code)
	}
	var list struct {
		Total int64 `json:"total"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Total != 1 {
		t.Fatalf("search should find the memo, total=%d", list.Total)
	}

	rec = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/memos/%d", memo.ID), token, gin.H{
		"name":    "Restart procedure v2",
		"content": "drain, restart, verify, log",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update memo: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/memos/%d", memo.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete memo: %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/memos/%d", memo.ID), token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %d", rec.Code)
	}
}

func TestMemoBulkEndpoints(t *testing.T) {
	router := newTestRouter(t)
	token := signUpAndIn(t, router, "bulk@example.com", "password123")

	rec := doJSON(t, router, http.MethodPost, "/api/memos/bulk", token, gin.H{
		"memos": []gin.H{
			{"name": "one", "content": "a"},
			{"name": "two", "content": "b"},
			{"name": "three", "content": "c"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("bulk create: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/api/memos", token, nil)
	var list struct {
		Total int64 `json:"total"`
		Memos []struct {
			ID uint64 `json:"ID"`
		} `json:"memos"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Total != 3 {
		t.Fatalf("expected 3 memos, got %d", list.Total)
	}

	ids := []uint64{list.Memos[0].ID, list.Memos[1].ID}
	rec = doJSON(t, router, http.MethodPost, "/api/memos/bulk-delete", token, gin.H{"ids": ids})
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk delete: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/api/memos", token, nil)
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Total != 1 {
		t.Fatalf("expected 1 memo left, got %d", list.Total)
	}

	// Empty batches are rejected.
	rec = doJSON(t, router, http.MethodPost, "/api/memos/bulk", token, gin.H{"memos": []gin.H{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", rec.Code)
	}
}
