package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/dmsbot/session-server-go/internal/audit"
	"github.com/dmsbot/session-server-go/internal/config"
	apperrors "github.com/dmsbot/session-server-go/internal/errors"
	"github.com/dmsbot/session-server-go/internal/service"
)

type SessionHandler struct {
	cfg     *config.Config
	manager *service.SessionManager
}

func NewSessionHandler(cfg *config.Config, manager *service.SessionManager) *SessionHandler {
	return &SessionHandler{
		cfg:     cfg,
		manager: manager,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListSessions)
	r.Get("/{identity}", h.GetSession)
	r.Get("/{identity}/qr", h.GetPairingQR)
	r.Post("/{identity}/toggle", h.ToggleFeature)
	r.Put("/{identity}/flags", h.ReplaceFlags)
	r.Post("/{identity}/send", h.SendMessage)
	r.Post("/{identity}/logout", h.Logout)

	return r
}

type pairRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// POST /api/pair
func (h *SessionHandler) Pair(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	if h.cfg.PairPassword != "" &&
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.PairPassword)) != 1 {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure, Details: map[string]any{"path": r.URL.Path}})
		writeError(w, apperrors.Unauthorized("Invalid pairing password"))
		return
	}

	result, err := h.manager.Pair(r.Context(), req.Phone)
	if err != nil {
		log.Error().Err(err).Msg("pairing request failed")
		audit.LogFromRequest(r, audit.Event{Type: audit.EventPairFailed})
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventPairRequested})
	writeJSON(w, http.StatusOK, result)
}

// GET /api/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.manager.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list sessions")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// GET /api/sessions/{identity}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	status, err := h.manager.Status(r.Context(), identity)
	if err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("failed to get session status")
		writeError(w, err)
		return
	}
	if status == nil {
		writeError(w, apperrors.NotFound("Session"))
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// GET /api/sessions/{identity}/qr
//
// Renders the session identity as a QR PNG so a phone can scan it instead of
// typing the full address.
func (h *SessionHandler) GetPairingQR(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	status, err := h.manager.Status(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	if status == nil {
		writeError(w, apperrors.NotFound("Session"))
		return
	}

	png, err := qrcode.Encode(identity, qrcode.Medium, 256)
	if err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("failed to encode qr")
		writeError(w, apperrors.Internal("Failed to render QR code"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

type toggleRequest struct {
	Feature string `json:"feature"`
	On      *bool  `json:"on"`
}

// POST /api/sessions/{identity}/toggle
func (h *SessionHandler) ToggleFeature(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	if req.Feature == "" {
		writeError(w, apperrors.MissingRequired("feature"))
		return
	}
	if req.On == nil {
		writeError(w, apperrors.MissingRequired("on"))
		return
	}

	flags, err := h.manager.Toggle(r.Context(), identity, req.Feature, *req.On)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventFeatureToggle,
		Identity: identity,
		Details:  map[string]any{"feature": req.Feature, "on": *req.On},
	})
	writeJSON(w, http.StatusOK, map[string]any{"identity": identity, "flags": flags})
}

// PUT /api/sessions/{identity}/flags
//
// Replaces the whole flag document. Input is normalized: unknown keys are
// dropped and missing flags come back disabled.
func (h *SessionHandler) ReplaceFlags(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	flags, err := h.manager.ReplaceFlags(r.Context(), identity, raw)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventFeatureToggle,
		Identity: identity,
		Details:  map[string]any{"replaced": true},
	})
	writeJSON(w, http.StatusOK, map[string]any{"identity": identity, "flags": flags})
}

type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// POST /api/sessions/{identity}/send
func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}
	if req.To == "" {
		writeError(w, apperrors.MissingRequired("to"))
		return
	}
	if req.Text == "" {
		writeError(w, apperrors.MissingRequired("text"))
		return
	}

	if err := h.manager.Send(r.Context(), identity, req.To, req.Text); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventMessageSend,
		Identity: identity,
		Details:  map[string]any{"to": req.To},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// POST /api/sessions/{identity}/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	if err := h.manager.Logout(r.Context(), identity); err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("failed to logout session")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventSessionLogout, Identity: identity})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
