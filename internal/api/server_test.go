package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecatman/catalog/internal/config"
	"github.com/filecatman/catalog/internal/search"
	"github.com/filecatman/catalog/internal/service"
	"github.com/filecatman/catalog/internal/sse"
	"github.com/filecatman/catalog/internal/store/sqlstore"
)

// testServer wraps the API server with a humatest client.
type testServer struct {
	*Server
	api humatest.TestAPI
}

// testEnvelope mirrors the response envelope for decoding.
type testEnvelope[T any] struct {
	Version int             `json:"v"`
	Success bool            `json:"success"`
	Data    T               `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestServer builds the full server over a temp SQLite catalog and a
// temp search index.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWith(t, config.ServerConfig{})
}

func setupTestServerWith(t *testing.T, cfg config.ServerConfig) *testServer {
	t.Helper()
	dir := t.TempDir()
	logger := discardLogger()

	st, err := sqlstore.OpenSQLite(filepath.Join(dir, "catalog.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	index, err := search.NewSearchIndex(search.Options{Path: filepath.Join(dir, "search.bleve"), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	sseManager := sse.NewManager(logger)
	audits := service.NewAuditService(st, sseManager, logger)
	t.Cleanup(func() { _ = audits.Shutdown(context.Background()) })

	services := &Services{
		Terms:     service.NewTermService(st, sseManager, index, -1, logger),
		Items:     service.NewItemService(st, sseManager, index, logger),
		Relations: service.NewRelationService(st, sseManager, index, logger),
		Trees:     service.NewTreeService(st, -1, "", logger),
		Catalog:   service.NewCatalogService(st, logger),
		Audit:     audits,
		Search:    service.NewSearchService(index, st, logger),
		Transfer:  service.NewTransferService(st, sseManager, index, logger),
	}

	s := NewServer(st, services, sseManager, cfg, logger)
	t.Cleanup(s.Close)

	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.API()),
	}
}

func decodeEnvelope[T any](t *testing.T, resp *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return env
}

func decodeData[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	env := decodeEnvelope[T](t, resp)
	require.True(t, env.Success, resp.Body.String())
	return env.Data
}

// requireError checks the status and error code of a failed response.
func requireError(t *testing.T, resp *httptest.ResponseRecorder, status int, code string) testEnvelope[json.RawMessage] {
	t.Helper()
	require.Equal(t, status, resp.Code, resp.Body.String())
	env := decodeEnvelope[json.RawMessage](t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.Equal(t, code, env.Code)
	return env
}

func TestServer_UnknownRoute(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	requireError(t, w, http.StatusNotFound, "NOT_FOUND")
}

func TestServer_RateLimit(t *testing.T) {
	ts := setupTestServerWith(t, config.ServerConfig{RateLimitRPS: 0.001, RateBurst: 2})

	for range 2 {
		resp := ts.api.Get("/health")
		require.Equal(t, http.StatusOK, resp.Code)
	}

	resp := ts.api.Get("/health")
	requireError(t, resp, http.StatusTooManyRequests, "RATE_LIMITED")
	assert.Equal(t, "1", resp.Header().Get("Retry-After"))
}

func TestServer_CORS(t *testing.T) {
	ts := setupTestServerWith(t, config.ServerConfig{CORSOrigins: []string{"https://catalog.example"}})

	resp := ts.api.Get("/health", "Origin: https://catalog.example")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "https://catalog.example", resp.Header().Get("Access-Control-Allow-Origin"))

	resp = ts.api.Get("/health", "Origin: https://elsewhere.example")
	assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.2.3.4:5", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.9"}, "1.2.3.4:5", "10.0.0.9"},
		{"remote addr", nil, "1.2.3.4:5678", "1.2.3.4"},
		{"ipv6 remote addr", nil, "[::1]:5678", "::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}
