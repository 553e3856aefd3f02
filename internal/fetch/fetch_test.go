package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/lotdocs/internal/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("returns body and sends user agent", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "lotdocs-test", r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte("<html>ok</html>"))
		}))
		defer server.Close()

		body, err := fetch.NewClient(fetch.WithUserAgent("lotdocs-test")).Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "<html>ok</html>", string(body))
	})

	t.Run("non-200 is a NetworkError", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		_, err := fetch.NewClient().Fetch(context.Background(), server.URL)
		require.ErrorIs(t, err, fetch.ErrNetwork)
		var nerr *fetch.NetworkError
		require.True(t, errors.As(err, &nerr))
		assert.Equal(t, http.StatusNotFound, nerr.StatusCode)
	})

	t.Run("timeout is a NetworkError", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
		}))
		defer server.Close()

		_, err := fetch.NewClient(fetch.WithTimeout(10*time.Millisecond)).Fetch(context.Background(), server.URL)
		require.ErrorIs(t, err, fetch.ErrNetwork)
	})

	t.Run("cancellation is returned bare", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := fetch.NewClient().Fetch(ctx, server.URL)
		require.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, fetch.ErrNetwork)
	})
}

func TestClient_Download(t *testing.T) {
	t.Parallel()

	t.Run("uses content-disposition name", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Disposition", `attachment; filename*=UTF-8''%D0%94%D0%BE%D0%BA%D1%83%D0%BC%D0%B5%D0%BD%D1%82%D0%B0%D1%86%D0%B8%D1%8F.zip`)
			_, _ = w.Write([]byte("PK"))
		}))
		defer server.Close()

		dir := t.TempDir()
		path, err := fetch.NewClient().Download(context.Background(), server.URL+"/files/42", dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "Документация.zip"), path)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "PK", string(data))
	})

	t.Run("falls back to url segment and overwrites", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("new"))
		}))
		defer server.Close()

		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "spec.pdf"), []byte("old"), 0644))
		path, err := fetch.NewClient().Download(context.Background(), server.URL+"/docs/spec.pdf", dir)
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "new", string(data))
	})

	t.Run("nil logger keeps the default", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("body"))
		}))
		defer server.Close()

		path, err := fetch.NewClient(fetch.WithLogger(nil)).Download(context.Background(), server.URL+"/docs/a.pdf", t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "a.pdf", filepath.Base(path))
	})

	t.Run("error status writes nothing", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		dir := t.TempDir()
		_, err := fetch.NewClient().Download(context.Background(), server.URL+"/a.zip", dir)
		require.ErrorIs(t, err, fetch.ErrNetwork)
		entries, _ := os.ReadDir(dir)
		assert.Empty(t, entries)
	})
}

func TestFilenameFromDisposition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{`attachment; filename="lot.zip"`, "lot.zip", true},
		{`attachment; filename=lot.zip`, "lot.zip", true},
		{`attachment; filename*=UTF-8''%D0%A2%D0%97.docx`, "ТЗ.docx", true},
		{`attachment; filename="a.zip"; filename*=UTF-8''b.zip`, "b.zip", true},
		{`attachment; filename="../../etc/passwd"`, "passwd", true},
		{`inline`, "", false},
		{``, "", false},
	}
	for _, tt := range tests {
		got, ok := fetch.FilenameFromDisposition(tt.header)
		assert.Equal(t, tt.want, got, tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
	}
}
