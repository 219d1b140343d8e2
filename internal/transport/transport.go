// Package transport defines the boundary to the external messaging network.
// The wire protocol itself (pairing handshake, encryption, multi-device sync)
// lives behind these interfaces; this server only consumes the event stream
// and the handful of actions below.
package transport

import "context"

// Dialer opens a fresh connection scoped to a private credential storage
// directory. One connection serves one account.
type Dialer interface {
	Connect(ctx context.Context, credentialDir string) (Conn, error)
}

// Conn is one live connection to the messaging network.
//
// Event subscriptions must be registered before the connection opens; the
// transport invokes handlers asynchronously, one event at a time per
// connection, in delivery order.
type Conn interface {
	// RequestPairingCode asks the network for a pairing code for the dialed
	// number. The code is entered on the user's device out-of-band.
	RequestPairingCode(ctx context.Context, phoneNumber string) (string, error)

	// AccountID reports the network-confirmed account identifier, or "" while
	// the connection has not completed its first open.
	AccountID() string

	SendMessage(ctx context.Context, to string, content *Content, opts *SendOptions) error
	RejectCall(ctx context.Context, callID string) error

	Logout(ctx context.Context) error
	End() error

	// SaveCredentials is the transport's own credential persistence hook,
	// invoked whenever a credentials-update event fires.
	SaveCredentials() error

	OnCredentialsUpdate(fn func())
	OnConnectionState(fn func(ConnectionState))
	OnMessageBatch(fn func(MessageBatch))
	OnMessageUpdateBatch(fn func([]MessageUpdate))
	OnCallBatch(fn func([]Call))
}

type State string

const (
	StateOpen  State = "open"
	StateClose State = "close"
)

// CloseCode is the transport's reason code for a closed connection.
type CloseCode int

// CloseCodeLoggedOut indicates the account was explicitly logged out on the
// network side; the closure is terminal for that identity.
const CloseCodeLoggedOut CloseCode = 401

func (c CloseCode) LoggedOut() bool {
	return c == CloseCodeLoggedOut
}

type ConnectionState struct {
	State State
	Code  CloseCode
}

// DeliveryKind distinguishes live notifications from history-sync replays.
type DeliveryKind string

const (
	DeliveryNotify DeliveryKind = "notify"
	DeliveryAppend DeliveryKind = "append"
)

type MessageBatch struct {
	Messages []*Message
	Kind     DeliveryKind
}

type MessageKey struct {
	ID     string
	ChatID string
	FromMe bool
}

type Message struct {
	Key     MessageKey
	Content *Content
}

// MessageUpdate signals an edit or revocation of an earlier message.
type MessageUpdate struct {
	Key     MessageKey
	Revoked bool
}

type CallKind string

const (
	CallVoice   CallKind = "voice"
	CallVideo   CallKind = "video"
	CallUnknown CallKind = "unknown"
)

type Call struct {
	ID   string
	From string
	Kind CallKind
}

type SendOptions struct {
	// Quoted makes the outbound message a reply quoting the given message.
	Quoted *Message
}
