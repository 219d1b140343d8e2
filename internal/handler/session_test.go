package handler

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
	"github.com/dmsbot/session-server-go/internal/repository"
	"github.com/dmsbot/session-server-go/internal/service"
	"github.com/dmsbot/session-server-go/internal/transport/sim"
)

const (
	testPhone     = "2349070810971"
	testAccountID = "2349070810971:5@s.whatsapp.net"
	testIdentity  = "2349070810971@s.whatsapp.net"
)

type testServer struct {
	router chi.Router
	dialer *sim.Dialer
}

func newTestServer(t *testing.T, pairPassword string) *testServer {
	t.Helper()

	cfg := &config.Config{
		PairPassword:          pairPassword,
		BotName:               "DMS",
		CommandPrefix:         "!",
		OwnerNumber:           "2349070810971",
		PaymentInfo:           "support@example.com",
		SessionsDir:           t.TempDir(),
		DefaultAutoChat:       "false",
		DefaultAntiCall:       "true",
		DefaultViewOnceBypass: "true",
		DefaultAntiDelete:     "true",
	}

	dialer := sim.NewDialer(sim.Options{})
	repo := repository.NewMemorySessionRepository()
	sup := service.NewSupervisor(cfg, dialer, repo, service.NewQuoteReplySource("http://localhost:0"), nil)
	manager := service.NewSessionManager(cfg, sup, repo, nil)
	h := NewSessionHandler(cfg, manager)

	r := chi.NewRouter()
	r.Post("/api/pair", h.Pair)
	r.Route("/api/sessions", func(r chi.Router) {
		r.Mount("/", h.Routes())
	})

	return &testServer{router: r, dialer: dialer}
}

func (s *testServer) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) pairAndConnect(t *testing.T) {
	t.Helper()

	rec := s.request(t, http.MethodPost, "/api/pair", map[string]string{"phone": testPhone})
	require.Equal(t, http.StatusOK, rec.Code)
	s.dialer.Conns()[0].CompletePairing(testAccountID)
}

func TestPairEndpoint(t *testing.T) {
	t.Run("returns pairing code", func(t *testing.T) {
		srv := newTestServer(t, "")
		rec := srv.request(t, http.MethodPost, "/api/pair", map[string]string{"phone": "+" + testPhone})

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body["code"], 8)
	})

	t.Run("rejects invalid phone", func(t *testing.T) {
		srv := newTestServer(t, "")
		rec := srv.request(t, http.MethodPost, "/api/pair", map[string]string{"phone": "abc"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		srv := newTestServer(t, "")
		req := httptest.NewRequest(http.MethodPost, "/api/pair", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("enforces pairing password", func(t *testing.T) {
		srv := newTestServer(t, "hunter2")

		rec := srv.request(t, http.MethodPost, "/api/pair", map[string]string{"phone": testPhone, "password": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = srv.request(t, http.MethodPost, "/api/pair", map[string]string{"phone": testPhone, "password": "hunter2"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestListAndGetSessions(t *testing.T) {
	srv := newTestServer(t, "")
	srv.pairAndConnect(t)

	rec := srv.request(t, http.MethodGet, "/api/sessions/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Sessions []map[string]any `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, testIdentity, list.Sessions[0]["identity"])

	rec = srv.request(t, http.MethodGet, "/api/sessions/"+testIdentity, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, true, status["connected"])
	assert.Equal(t, "connected", status["status"])

	rec = srv.request(t, http.MethodGet, "/api/sessions/nobody@s.whatsapp.net", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleEndpoint(t *testing.T) {
	srv := newTestServer(t, "")
	srv.pairAndConnect(t)

	rec := srv.request(t, http.MethodPost, "/api/sessions/"+testIdentity+"/toggle",
		map[string]any{"feature": "autoChat", "on": true})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Flags map[string]bool `json:"flags"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Flags["autoChat"])

	rec = srv.request(t, http.MethodPost, "/api/sessions/"+testIdentity+"/toggle",
		map[string]any{"feature": "turboMode", "on": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.request(t, http.MethodPost, "/api/sessions/"+testIdentity+"/toggle",
		map[string]any{"feature": "autoChat"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReplaceFlagsEndpoint(t *testing.T) {
	srv := newTestServer(t, "")
	srv.pairAndConnect(t)

	rec := srv.request(t, http.MethodPut, "/api/sessions/"+testIdentity+"/flags",
		map[string]any{"autoChat": "true", "antiCall": 1, "bogus": true})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Flags map[string]bool `json:"flags"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Flags["autoChat"])
	assert.True(t, body.Flags["antiCall"])
	assert.False(t, body.Flags["viewOnceBypass"])
	assert.False(t, body.Flags["antiDelete"])
	assert.NotContains(t, body.Flags, "bogus")
}

func TestSendEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	rec := srv.request(t, http.MethodPost, "/api/sessions/"+testIdentity+"/send",
		map[string]string{"to": "15550001111@s.whatsapp.net", "text": "hello"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	srv.pairAndConnect(t)

	rec = srv.request(t, http.MethodPost, "/api/sessions/"+testIdentity+"/send",
		map[string]string{"to": "15550001111@s.whatsapp.net", "text": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	sent := srv.dialer.Conns()[0].Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "hello", sent[0].Content.Conversation)

	rec = srv.request(t, http.MethodPost, "/api/sessions/"+testIdentity+"/send",
		map[string]string{"to": "", "text": "hello"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	srv := newTestServer(t, "")
	srv.pairAndConnect(t)

	rec := srv.request(t, http.MethodPost, "/api/sessions/"+testIdentity+"/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.request(t, http.MethodGet, "/api/sessions/"+testIdentity, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQREndpoint(t *testing.T) {
	srv := newTestServer(t, "")
	srv.pairAndConnect(t)

	rec := srv.request(t, http.MethodGet, "/api/sessions/"+testIdentity+"/qr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = srv.request(t, http.MethodGet, "/api/sessions/nobody@s.whatsapp.net/qr", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
