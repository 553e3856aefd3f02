package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hyperjump/lotdocs/internal/cli"
	"github.com/hyperjump/lotdocs/internal/config"
	"github.com/hyperjump/lotdocs/internal/keyword"
	"github.com/hyperjump/lotdocs/internal/models"
	"github.com/hyperjump/lotdocs/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, status StatusFunc) http.Handler {
	t.Helper()
	kw, err := keyword.NewBleveIndex(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kw.Close() })

	ctx := context.Background()
	docs := []*models.TextDocument{
		{ID: "doc:1", LotID: "100", LotName: "Поставка труб", Path: "tz.pdf.txt", Content: "Поставка стальных труб по договору"},
		{ID: "doc:2", LotID: "200", LotName: "Ремонт кровли", Path: "smeta.xls.txt", Content: "Смета на ремонт кровли"},
	}
	require.NoError(t, kw.Apply(ctx, docs, nil))

	engine := search.NewEngine(kw, &config.SearchConfig{DefaultLimit: 10}, search.WithHighlight(keyword.HighlightHTML))
	return NewServer(engine, status, &config.ServerConfig{Host: "127.0.0.1", Port: 8080}, nil).Router()
}

func TestHandleSearch_Post(t *testing.T) {
	h := testServer(t, nil)
	body, _ := json.Marshal(models.SearchQuery{Query: "смета"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var resp models.SearchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "200", resp.Results[0].Document.LotID)
	assert.Equal(t, "smeta.xls.txt", resp.Results[0].Document.Path)
}

func TestHandleSearch_GetWithLotFilter(t *testing.T) {
	h := testServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=%D0%BF%D0%BE%D1%81%D1%82%D0%B0%D0%B2%D0%BA%D0%B0&lot=100&limit=5", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.SearchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "100", resp.Results[0].Document.LotID)
}

func TestHandleSearch_BadRequests(t *testing.T) {
	h := testServer(t, nil)
	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"invalid body", http.MethodPost, "/api/v1/search", "{"},
		{"empty query", http.MethodPost, "/api/v1/search", `{"query": "   "}`},
		{"invalid limit", http.MethodGet, "/api/v1/search?q=x&limit=ten", ""},
		{"invalid fuzzy", http.MethodGet, "/api/v1/search?q=x&fuzzy=maybe", ""},
		{"missing q", http.MethodGet, "/api/v1/search", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var out map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestHandleStatus(t *testing.T) {
	docs := uint64(2)
	h := testServer(t, func(ctx context.Context) (*cli.Status, error) {
		return &cli.Status{Workdir: "/work", IndexedDocs: &docs}, nil
	})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var status cli.Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "/work", status.Workdir)
	require.NotNil(t, status.IndexedDocs)
	assert.Equal(t, uint64(2), *status.IndexedDocs)
}

func TestHandleStatus_Errors(t *testing.T) {
	w := httptest.NewRecorder()
	testServer(t, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = httptest.NewRecorder()
	failing := func(ctx context.Context) (*cli.Status, error) { return nil, errors.New("disk gone") }
	testServer(t, failing).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleHealth(t *testing.T) {
	w := httptest.NewRecorder()
	testServer(t, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServer_Addr(t *testing.T) {
	s := NewServer(nil, nil, &config.ServerConfig{Host: "0.0.0.0", Port: 9000}, nil)
	assert.Equal(t, "0.0.0.0:9000", s.Addr())
}
