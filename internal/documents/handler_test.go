package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"policy-backend/internal/shared/server/middleware"
	localstore "policy-backend/internal/shared/storage/object/local"
)

func setupDocumentsRouter(t *testing.T) (*gin.Engine, *MemoryRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := NewMemoryRepo()
	svc := &Service{
		Store: localstore.New(t.TempDir()),
		Repo:  repo,
	}
	handler := NewHandler(svc)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Identity())
	api := r.Group("/api/v1")
	handler.RegisterRoutes(api)
	return r, repo
}

func uploadFile(t *testing.T, router *gin.Engine, guestID, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if guestID != "" {
		req.Header.Set("X-Guest-Id", guestID)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestUploadDocument(t *testing.T) {
	router, repo := setupDocumentsRouter(t)

	resp := uploadFile(t, router, "test-guest", "policy.txt", strings.Repeat("policy wording ", 50))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var created DocumentResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.DocumentID == "" || created.FileName != "policy.txt" {
		t.Fatalf("bad response: %+v", created)
	}

	doc, err := repo.GetByID(context.Background(), "guest:test-guest", created.DocumentID)
	if err != nil {
		t.Fatalf("document not persisted: %v", err)
	}
	if doc.StorageKey == "" || doc.SizeBytes == 0 {
		t.Fatalf("bad document record: %+v", doc)
	}
}

func TestUploadDocumentRequiresFile(t *testing.T) {
	router, _ := setupDocumentsRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetDocumentScopedToOwner(t *testing.T) {
	router, repo := setupDocumentsRouter(t)

	resp := uploadFile(t, router, "owner", "policy.pdf", "%PDF-1.4 fake")
	if resp.Code != http.StatusCreated {
		t.Fatalf("upload failed: %d", resp.Code)
	}
	var created DocumentResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if _, err := repo.GetByID(context.Background(), "guest:other", created.DocumentID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+created.DocumentID, nil)
	req.Header.Set("X-Guest-Id", "other")
	getResp := httptest.NewRecorder()
	router.ServeHTTP(getResp, req)
	if getResp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner, got %d", getResp.Code)
	}
}

func TestListDocumentsNewestFirst(t *testing.T) {
	router, _ := setupDocumentsRouter(t)

	for _, name := range []string{"first.txt", "second.txt"} {
		if resp := uploadFile(t, router, "test-guest", name, "policy text"); resp.Code != http.StatusCreated {
			t.Fatalf("upload %s failed: %d", name, resp.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	req.Header.Set("X-Guest-Id", "test-guest")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var docs []DocumentResponse
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
}
