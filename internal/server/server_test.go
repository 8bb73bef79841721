package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestServer_Health(t *testing.T) {
	t.Run("reports status and uptime", func(t *testing.T) {
		rec := serve(New(Config{}), http.MethodGet, "/api/health")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		body := decodeBody(t, rec)
		assert.Equal(t, "ok", body["status"])
		assert.Contains(t, body, "uptime")
		assert.NotContains(t, body, "clients")
	})

	t.Run("reports websocket clients when a hub is attached", func(t *testing.T) {
		rec := serve(New(Config{Hub: NewHub(nil)}), http.MethodGet, "/api/health")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(0), decodeBody(t, rec)["clients"])
	})

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run("rejects "+method, func(t *testing.T) {
			rec := serve(New(Config{}), method, "/api/health")
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}

func TestServer_Routes(t *testing.T) {
	dir := t.TempDir()
	const index = "<html><body>landmarks</body></html>"
	const css = "canvas { width: 640px; }"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "viewer.css"), []byte(css), 0644))

	tests := []struct {
		name     string
		config   Config
		target   string
		wantCode int
		wantBody string
	}{
		{"unknown api path", Config{}, "/api/nonexistent", http.StatusNotFound, ""},
		{"sessions without store", Config{}, "/api/sessions", http.StatusNotFound, ""},
		{"landmarks without hub", Config{}, "/api/landmarks", http.StatusNotFound, ""},
		{"root without static dir", Config{}, "/", http.StatusNotFound, ""},
		{"index at root", Config{StaticDir: dir}, "/", http.StatusOK, index},
		{"static file", Config{StaticDir: dir}, "/viewer.css", http.StatusOK, css},
		{"missing static file", Config{StaticDir: dir}, "/missing.html", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(New(tt.config), http.MethodGet, tt.target)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestNew(t *testing.T) {
	cfg := Config{StaticDir: "/some/path"}
	s := New(cfg)

	require.NotNil(t, s)
	assert.Equal(t, cfg.StaticDir, s.config.StaticDir)

	var _ http.Handler = s
}
