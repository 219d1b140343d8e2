package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmsbot/session-server-go/internal/config"
	"github.com/dmsbot/session-server-go/internal/handler"
	"github.com/dmsbot/session-server-go/internal/repository"
	"github.com/dmsbot/session-server-go/internal/service"
	"github.com/dmsbot/session-server-go/internal/transport/sim"
)

func newTestRouter(t *testing.T, adminToken string) chi.Router {
	t.Helper()

	cfg := &config.Config{
		AdminToken:            adminToken,
		BotName:               "DMS",
		CommandPrefix:         "!",
		SessionsDir:           t.TempDir(),
		StaticDir:             t.TempDir(),
		DefaultAutoChat:       "false",
		DefaultAntiCall:       "true",
		DefaultViewOnceBypass: "true",
		DefaultAntiDelete:     "true",
	}

	repo := repository.NewMemorySessionRepository()
	dialer := sim.NewDialer(sim.Options{})
	sup := service.NewSupervisor(cfg, dialer, repo, service.NewQuoteReplySource("http://localhost:0"), nil)
	manager := service.NewSessionManager(cfg, sup, repo, nil)

	return newRouter(cfg, handler.NewSessionHandler(cfg, manager), handler.NewEventsHandler(nil, manager), nil)
}

func TestPairRouteIsPublic(t *testing.T) {
	router := newTestRouter(t, "secret-token")

	body, err := json.Marshal(map[string]string{"phone": "2349070810971"})
	require.NoError(t, err)

	// No admin token on the request; pairing must still go through.
	req := httptest.NewRequest(http.MethodPost, "/api/pair", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result["code"], 8)
}

func TestSessionRoutesRequireAdminToken(t *testing.T) {
	router := newTestRouter(t, "secret-token")

	for _, path := range []string{"/api/sessions/", "/api/info"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		req = httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Admin-Token", "secret-token")
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestHealthRouteIsOpen(t *testing.T) {
	router := newTestRouter(t, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
