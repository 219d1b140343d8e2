package service

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dmsbot/session-server-go/internal/config"
	apperrors "github.com/dmsbot/session-server-go/internal/errors"
	"github.com/dmsbot/session-server-go/internal/feature"
	"github.com/dmsbot/session-server-go/internal/model"
	"github.com/dmsbot/session-server-go/internal/repository"
	"github.com/dmsbot/session-server-go/internal/sse"
	"github.com/dmsbot/session-server-go/internal/transport"
)

var phonePattern = regexp.MustCompile(`^[0-9]{6,15}$`)

// SessionStatus is one session's registry record plus whether a live
// connection currently backs it.
type SessionStatus struct {
	model.Session
	Connected bool `json:"connected"`
}

// SessionManager is the operator-facing facade: it validates boundary input
// and composes the supervisor, registry and event broker.
type SessionManager struct {
	cfg    *config.Config
	sup    *Supervisor
	repo   repository.SessionRepository
	broker *sse.Broker // nil when event fan-out is disabled
}

func NewSessionManager(
	cfg *config.Config,
	sup *Supervisor,
	repo repository.SessionRepository,
	broker *sse.Broker,
) *SessionManager {
	return &SessionManager{
		cfg:    cfg,
		sup:    sup,
		repo:   repo,
		broker: broker,
	}
}

// Pair validates the dialed number and starts a pairing attempt, returning
// the pairing code the user must enter on their device.
func (m *SessionManager) Pair(ctx context.Context, phone string) (*PairingResult, error) {
	normalized := strings.TrimPrefix(strings.TrimSpace(phone), "+")
	if !phonePattern.MatchString(normalized) {
		return nil, apperrors.InvalidInput("phone", "provide the number with country code, digits only (6-15)")
	}

	return m.sup.StartPairing(ctx, normalized)
}

func (m *SessionManager) List(ctx context.Context) ([]model.Session, error) {
	sessions, err := m.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return sessions, nil
}

// Status returns one session's record with its live-connection flag, or nil
// when the identity is unknown.
func (m *SessionManager) Status(ctx context.Context, identity string) (*SessionStatus, error) {
	record, err := m.repo.Get(ctx, identity)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if record == nil {
		return nil, nil
	}

	return &SessionStatus{
		Session:   *record,
		Connected: m.sup.LiveConn(identity) != nil,
	}, nil
}

// Toggle sets one named feature flag and returns the resulting full flag set.
func (m *SessionManager) Toggle(ctx context.Context, identity, name string, on bool) (model.FlagSet, error) {
	if !feature.IsValidName(name) {
		return model.FlagSet{}, apperrors.InvalidInput("feature",
			"must be one of: "+strings.Join(model.FlagNames, ", "))
	}

	flags, err := m.sup.SetFlag(ctx, identity, name, on)
	if err != nil {
		return model.FlagSet{}, err
	}

	m.publishFlags(identity, flags)
	return flags, nil
}

// ReplaceFlags normalizes an arbitrary flag document and stores it as the
// session's complete flag set. Unknown keys are dropped, missing flags come
// back disabled.
func (m *SessionManager) ReplaceFlags(ctx context.Context, identity string, raw map[string]any) (model.FlagSet, error) {
	flags := feature.Normalize(raw)

	updated, err := m.repo.Upsert(ctx, model.UpsertSessionParams{
		Identity: identity,
		Flags:    &flags,
	})
	if err != nil {
		return model.FlagSet{}, apperrors.Database(err)
	}

	m.publishFlags(identity, updated.Flags)
	return updated.Flags, nil
}

// Send delivers an arbitrary text message through a connected session.
func (m *SessionManager) Send(ctx context.Context, identity, to, text string) error {
	conn := m.sup.LiveConn(identity)
	if conn == nil {
		return apperrors.SessionNotConnected(identity)
	}

	if err := conn.SendMessage(ctx, to, transport.TextContent(text), nil); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to send message", err)
	}
	return nil
}

func (m *SessionManager) Logout(ctx context.Context, identity string) error {
	return m.sup.Logout(ctx, identity)
}

func (m *SessionManager) publishFlags(identity string, flags model.FlagSet) {
	if m.broker == nil {
		return
	}

	data, err := json.Marshal(map[string]any{"identity": identity, "flags": flags})
	if err != nil {
		return
	}

	err = m.broker.Publish(context.Background(), identity, sse.Event{Type: "flags_updated", Data: data})
	if err != nil {
		log.Warn().Err(err).Str("identity", identity).Msg("failed to publish flag update")
	}
}
