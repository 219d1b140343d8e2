// Package sim is an in-process stand-in for the real messaging network. It
// implements the transport capability without touching the wire, which makes
// it the backbone of the test suite and of demo mode, where the server runs
// end-to-end with simulated pairing and inbound traffic.
package sim

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmsbot/session-server-go/internal/transport"
)

type Options struct {
	// AutoOpenDelay, when positive, completes pairing automatically that long
	// after a pairing-code request, with an account id derived from the
	// dialed number. Zero leaves the connection waiting for CompletePairing.
	AutoOpenDelay time.Duration

	// ConnectErr makes every Connect call fail.
	ConnectErr error
	// PairingErr seeds each new connection's pairing-code failure.
	PairingErr error
}

type Dialer struct {
	opts  Options
	mu    sync.Mutex
	conns []*Conn
}

func NewDialer(opts Options) *Dialer {
	return &Dialer{opts: opts}
}

func (d *Dialer) Connect(ctx context.Context, credentialDir string) (transport.Conn, error) {
	if d.opts.ConnectErr != nil {
		return nil, d.opts.ConnectErr
	}

	if err := os.MkdirAll(credentialDir, 0o755); err != nil {
		return nil, fmt.Errorf("create credential dir: %w", err)
	}

	conn := &Conn{
		PairingErr:    d.opts.PairingErr,
		credentialDir: credentialDir,
		autoOpenDelay: d.opts.AutoOpenDelay,
	}

	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()

	return conn, nil
}

// Conns returns every connection the dialer has produced, oldest first.
func (d *Dialer) Conns() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Conn(nil), d.conns...)
}

type SentMessage struct {
	To      string
	Content *transport.Content
	Quoted  *transport.Message
}

// Conn simulates one account connection. The error fields inject failures for
// the corresponding action; set them before triggering the action.
type Conn struct {
	PairingErr error
	SendErr    error
	RejectErr  error
	LogoutErr  error

	credentialDir string
	autoOpenDelay time.Duration

	mu            sync.Mutex
	accountID     string
	phoneNumber   string
	ended         bool
	sent          []SentMessage
	rejectedCalls []string
	credSaves     int

	credsHandlers  []func()
	stateHandlers  []func(transport.ConnectionState)
	msgHandlers    []func(transport.MessageBatch)
	updateHandlers []func([]transport.MessageUpdate)
	callHandlers   []func([]transport.Call)
}

func (c *Conn) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	if c.PairingErr != nil {
		return "", c.PairingErr
	}

	c.mu.Lock()
	c.phoneNumber = phoneNumber
	delay := c.autoOpenDelay
	c.mu.Unlock()

	if delay > 0 {
		go func() {
			time.Sleep(delay)
			c.CompletePairing(phoneNumber + ":1@s.whatsapp.net")
		}()
	}

	return generateCode(), nil
}

// CompletePairing simulates the user entering the pairing code: the account
// identifier becomes known and an open event fires.
func (c *Conn) CompletePairing(accountID string) {
	c.mu.Lock()
	c.accountID = accountID
	c.mu.Unlock()

	c.UpdateConnection(transport.ConnectionState{State: transport.StateOpen})
}

func (c *Conn) AccountID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountID
}

func (c *Conn) SendMessage(ctx context.Context, to string, content *transport.Content, opts *transport.SendOptions) error {
	if c.SendErr != nil {
		return c.SendErr
	}

	msg := SentMessage{To: to, Content: content}
	if opts != nil {
		msg.Quoted = opts.Quoted
	}

	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return nil
}

func (c *Conn) RejectCall(ctx context.Context, callID string) error {
	c.mu.Lock()
	c.rejectedCalls = append(c.rejectedCalls, callID)
	c.mu.Unlock()

	return c.RejectErr
}

func (c *Conn) Logout(ctx context.Context) error {
	if c.LogoutErr != nil {
		return c.LogoutErr
	}
	c.UpdateConnection(transport.ConnectionState{
		State: transport.StateClose,
		Code:  transport.CloseCodeLoggedOut,
	})
	return nil
}

func (c *Conn) End() error {
	c.mu.Lock()
	c.ended = true
	c.mu.Unlock()
	return nil
}

func (c *Conn) SaveCredentials() error {
	c.mu.Lock()
	c.credSaves++
	c.mu.Unlock()

	path := filepath.Join(c.credentialDir, "creds.json")
	return os.WriteFile(path, []byte(`{"simulated":true}`), 0o600)
}

func (c *Conn) OnCredentialsUpdate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credsHandlers = append(c.credsHandlers, fn)
}

func (c *Conn) OnConnectionState(fn func(transport.ConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandlers = append(c.stateHandlers, fn)
}

func (c *Conn) OnMessageBatch(fn func(transport.MessageBatch)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgHandlers = append(c.msgHandlers, fn)
}

func (c *Conn) OnMessageUpdateBatch(fn func([]transport.MessageUpdate)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateHandlers = append(c.updateHandlers, fn)
}

func (c *Conn) OnCallBatch(fn func([]transport.Call)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callHandlers = append(c.callHandlers, fn)
}

// Event injection, used by tests and the demo traffic generator.

func (c *Conn) UpdateConnection(state transport.ConnectionState) {
	c.mu.Lock()
	handlers := append([]func(transport.ConnectionState){}, c.stateHandlers...)
	c.mu.Unlock()
	for _, fn := range handlers {
		fn(state)
	}
}

func (c *Conn) DeliverMessages(batch transport.MessageBatch) {
	c.mu.Lock()
	handlers := append([]func(transport.MessageBatch){}, c.msgHandlers...)
	c.mu.Unlock()
	for _, fn := range handlers {
		fn(batch)
	}
}

func (c *Conn) DeliverMessageUpdates(updates []transport.MessageUpdate) {
	c.mu.Lock()
	handlers := append([]func([]transport.MessageUpdate){}, c.updateHandlers...)
	c.mu.Unlock()
	for _, fn := range handlers {
		fn(updates)
	}
}

func (c *Conn) DeliverCalls(calls []transport.Call) {
	c.mu.Lock()
	handlers := append([]func([]transport.Call){}, c.callHandlers...)
	c.mu.Unlock()
	for _, fn := range handlers {
		fn(calls)
	}
}

func (c *Conn) TriggerCredentialsUpdate() {
	c.mu.Lock()
	handlers := append([]func(){}, c.credsHandlers...)
	c.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

// Inspection helpers.

func (c *Conn) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SentMessage(nil), c.sent...)
}

func (c *Conn) RejectedCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.rejectedCalls...)
}

func (c *Conn) CredentialSaves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credSaves
}

func (c *Conn) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

func generateCode() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(90000000))
	return fmt.Sprintf("%08d", n.Int64()+10000000)
}
