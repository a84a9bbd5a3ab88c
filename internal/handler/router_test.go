package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"testing/fstest"

	"github.com/zhouzirui/calm-companion/backend/internal/analysis/support"
	"github.com/zhouzirui/calm-companion/backend/internal/model/catalog"
	replyService "github.com/zhouzirui/calm-companion/backend/internal/service/reply"
	"github.com/zhouzirui/calm-companion/backend/internal/web"
)

func newTestRouter() http.Handler {
	static := web.SPAHandler(fstest.MapFS{
		"index.html": {Data: []byte("<html>index</html>")},
	}, nil)
	return NewRouter(replyService.NewService(), RouterConfig{Static: static})
}

func TestRouterReplyEndToEnd(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/reply", bytes.NewReader([]byte(`{"text":"need a coping tip"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got struct {
		Reply string `json:"reply"`
		Tag   string `json:"tag"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Tag != "coping" {
		t.Fatalf("expected coping tag, got %q", got.Tag)
	}
	if !slices.Contains(catalog.Default()[support.Coping], got.Reply) {
		t.Fatalf("unexpected reply %q", got.Reply)
	}
}

func TestRouterHealth(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestRouterDeepLinkFallback(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/some/deep/link", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "<html>index</html>" {
		t.Fatalf("expected index fallback, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestRouterDeepLinkOnlyForReads(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/some/deep/link", nil))
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST, got %d %q", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodHead, "/some/deep/link", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for HEAD, got %d", resp.Code)
	}
}

func TestRouterUnknownAPIRoute(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/missing", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestRouterWithoutStatic(t *testing.T) {
	r := NewRouter(replyService.NewService(), RouterConfig{})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without static handler, got %d", resp.Code)
	}
}
