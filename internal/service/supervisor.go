package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dmsbot/session-server-go/internal/config"
	apperrors "github.com/dmsbot/session-server-go/internal/errors"
	"github.com/dmsbot/session-server-go/internal/feature"
	"github.com/dmsbot/session-server-go/internal/model"
	"github.com/dmsbot/session-server-go/internal/repository"
	"github.com/dmsbot/session-server-go/internal/sse"
	"github.com/dmsbot/session-server-go/internal/transport"
)

type PairingResult struct {
	Code string `json:"code"`
}

// Supervisor drives each account from "no connection" to "actively
// connected" and keeps the registry consistent with connection reality. It
// owns the live-connection map; the registry stays the source of truth for
// flags and status, the map is only a derived cache keyed by identity.
type Supervisor struct {
	cfg     *config.Config
	dialer  transport.Dialer
	repo    repository.SessionRepository
	replies ReplySource
	broker  *sse.Broker // nil when event fan-out is disabled

	mu      sync.Mutex // guards conns and routers, including promotion swaps
	conns   map[string]transport.Conn
	routers map[string]*EventRouter

	// flagMu serializes the read-merge-write in SetFlag so two toggles for
	// the same identity cannot lose each other's update.
	flagMu sync.Mutex
}

func NewSupervisor(
	cfg *config.Config,
	dialer transport.Dialer,
	repo repository.SessionRepository,
	replies ReplySource,
	broker *sse.Broker,
) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		dialer:  dialer,
		repo:    repo,
		replies: replies,
		broker:  broker,
		conns:   make(map[string]transport.Conn),
		routers: make(map[string]*EventRouter),
	}
}

// StartPairing opens a fresh transport connection for the dialed number and
// requests a pairing code. The caller relays the code to the user, who enters
// it on their device out-of-band; the connection then opens asynchronously.
//
// The phone number must be pre-validated (digits only, 6-15 characters).
func (s *Supervisor) StartPairing(ctx context.Context, phoneNumber string) (*PairingResult, error) {
	tempID := TempIdentity(phoneNumber)

	conn, err := s.dialer.Connect(ctx, credentialDir(s.cfg.SessionsDir, tempID))
	if err != nil {
		return nil, apperrors.TransportUnavailable(err)
	}

	conn.OnCredentialsUpdate(func() {
		if err := conn.SaveCredentials(); err != nil {
			log.Error().Err(err).Str("identity", tempID).Msg("failed to persist credentials")
		}
	})
	conn.OnConnectionState(func(state transport.ConnectionState) {
		s.handleConnectionState(conn, tempID, phoneNumber, state)
	})

	s.mu.Lock()
	s.conns[tempID] = conn
	s.mu.Unlock()

	code, err := conn.RequestPairingCode(ctx, phoneNumber)
	if err != nil {
		s.mu.Lock()
		delete(s.conns, tempID)
		s.mu.Unlock()
		if endErr := conn.End(); endErr != nil {
			log.Warn().Err(endErr).Str("identity", tempID).Msg("failed to end connection after pairing failure")
		}
		return nil, apperrors.PairingFailed(err)
	}

	_, err = s.repo.Upsert(ctx, model.UpsertSessionParams{
		Identity:    tempID,
		PhoneNumber: &phoneNumber,
	})
	if err != nil {
		log.Error().Err(err).Str("identity", tempID).Msg("failed to record pending session")
	}

	log.Info().Str("phone", phoneNumber).Msg("pairing code issued")
	return &PairingResult{Code: code}, nil
}

// handleConnectionState runs asynchronously on every transport connection
// event for one connection.
func (s *Supervisor) handleConnectionState(conn transport.Conn, tempID, phoneNumber string, state transport.ConnectionState) {
	switch state.State {
	case transport.StateOpen:
		s.handleOpen(conn, tempID, phoneNumber)
	case transport.StateClose:
		s.handleClose(conn, state.Code)
	}
}

func (s *Supervisor) handleOpen(conn transport.Conn, tempID, phoneNumber string) {
	identity, ok := PermanentIdentity(conn.AccountID())
	if !ok {
		// Expected until the network reports the account id; a later open
		// event will carry it.
		log.Debug().Str("tempId", tempID).Msg("open event before identity known, waiting")
		return
	}

	ctx := context.Background()
	now := time.Now().UTC()

	// Promote the temporary key to the permanent one in a single critical
	// section: no event handler may observe both or neither entry.
	s.mu.Lock()
	displaced := s.conns[identity]
	if displaced == conn {
		displaced = nil
	}
	oldRouter := s.routers[identity]
	s.conns[identity] = conn
	delete(s.conns, tempID)
	s.mu.Unlock()

	if err := s.repo.Remove(ctx, tempID); err != nil {
		log.Error().Err(err).Str("identity", tempID).Msg("failed to retire temporary session record")
	}

	flags := feature.Defaults(s.cfg)
	status := model.SessionStatusConnected
	_, err := s.repo.Upsert(ctx, model.UpsertSessionParams{
		Identity:    identity,
		PhoneNumber: &phoneNumber,
		Flags:       &flags,
		Status:      &status,
		CreatedAt:   &now,
		LastOpenAt:  &now,
	})
	if err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("failed to upsert connected session")
	}

	// The router must be bound to the connection now carrying the identity.
	// Re-pairing the same number replaces the connection, so a router left
	// over from the previous one is retired along with it.
	if oldRouter == nil || oldRouter.conn != conn {
		if oldRouter != nil {
			oldRouter.Close()
		}

		router := NewEventRouter(s.cfg, s.repo, s.replies, identity, conn)
		router.Bind()

		s.mu.Lock()
		s.routers[identity] = router
		s.mu.Unlock()
	}

	if displaced != nil {
		if err := displaced.End(); err != nil {
			log.Warn().Err(err).Str("identity", identity).Msg("failed to end replaced connection")
		}
	}

	s.publish(identity, "session_connected", map[string]any{
		"identity":    identity,
		"phoneNumber": phoneNumber,
	})

	log.Info().Str("identity", identity).Msg("session connected")
}

func (s *Supervisor) handleClose(conn transport.Conn, code transport.CloseCode) {
	identity, _ := PermanentIdentity(conn.AccountID())

	if code.LoggedOut() {
		// Terminal for this identity; the record is only removed by an
		// explicit logout action, so it stays as-is here.
		log.Warn().Str("identity", identity).Int("code", int(code)).Msg("connection closed: logged out")
	} else {
		// Transient closure. Reconnection is deliberately not attempted;
		// the close is only reported.
		log.Warn().Str("identity", identity).Int("code", int(code)).Msg("connection closed")
	}

	if identity != "" {
		s.publish(identity, "connection_closed", map[string]any{
			"identity":  identity,
			"code":      int(code),
			"loggedOut": code.LoggedOut(),
		})
	}
}

// LiveConn returns the live connection for identity, or nil.
func (s *Supervisor) LiveConn(identity string) transport.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[identity]
}

// Logout tears a session down: transport logout and connection release are
// best-effort, but the live-map entry and registry record are always removed.
// Calling it twice, or for an unknown identity, is a safe no-op.
func (s *Supervisor) Logout(ctx context.Context, identity string) error {
	s.mu.Lock()
	conn := s.conns[identity]
	router := s.routers[identity]
	delete(s.conns, identity)
	delete(s.routers, identity)
	s.mu.Unlock()

	if router != nil {
		router.Close()
	}

	if conn != nil {
		if err := conn.Logout(ctx); err != nil {
			log.Warn().Err(err).Str("identity", identity).Msg("transport logout failed")
		}
		if err := conn.End(); err != nil {
			log.Warn().Err(err).Str("identity", identity).Msg("failed to end connection")
		}
	}

	if err := s.repo.Remove(ctx, identity); err != nil {
		return apperrors.Database(err)
	}

	s.publish(identity, "session_logged_out", map[string]any{"identity": identity})

	log.Info().Str("identity", identity).Msg("session logged out")
	return nil
}

// SetFlag merges one flag value into the session's flag set and returns the
// full resulting set. An identity with no record gets one with the remaining
// flags at their configured defaults.
func (s *Supervisor) SetFlag(ctx context.Context, identity, name string, on bool) (model.FlagSet, error) {
	s.flagMu.Lock()
	defer s.flagMu.Unlock()

	record, err := s.repo.Get(ctx, identity)
	if err != nil {
		return model.FlagSet{}, apperrors.Database(err)
	}

	flags := feature.Defaults(s.cfg)
	if record != nil {
		flags = record.Flags
	}
	flags.Set(name, on)

	updated, err := s.repo.Upsert(ctx, model.UpsertSessionParams{
		Identity: identity,
		Flags:    &flags,
	})
	if err != nil {
		return model.FlagSet{}, apperrors.Database(err)
	}

	return updated.Flags, nil
}

func (s *Supervisor) publish(identity, eventType string, payload map[string]any) {
	if s.broker == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to marshal lifecycle event")
		return
	}

	if err := s.broker.Publish(context.Background(), identity, sse.Event{Type: eventType, Data: data}); err != nil {
		log.Warn().Err(err).Str("event", eventType).Str("identity", identity).Msg("failed to publish lifecycle event")
	}
}
