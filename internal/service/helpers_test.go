package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/dmsbot/session-server-go/internal/config"
	"github.com/dmsbot/session-server-go/internal/transport"
)

func transportClose(code int) transport.ConnectionState {
	return transport.ConnectionState{State: transport.StateClose, Code: transport.CloseCode(code)}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
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
}

type mockReplySource struct {
	mock.Mock
}

func (m *mockReplySource) FetchReply(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// staticReplySource returns the same reply for every prompt.
type staticReplySource struct {
	reply string
}

func (s *staticReplySource) FetchReply(ctx context.Context, prompt string) (string, error) {
	return s.reply, nil
}
