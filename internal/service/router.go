package service

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dmsbot/session-server-go/internal/config"
	"github.com/dmsbot/session-server-go/internal/feature"
	"github.com/dmsbot/session-server-go/internal/locales"
	"github.com/dmsbot/session-server-go/internal/model"
	"github.com/dmsbot/session-server-go/internal/repository"
	"github.com/dmsbot/session-server-go/internal/transport"
)

const routerQueueSize = 64

// EventRouter consumes the inbound event stream of exactly one connection and
// turns feature flags into actions. Events are queued and handled by a single
// goroutine, so processing for one session never interleaves; different
// sessions run fully independently.
//
// Flags are re-read from the registry for every event batch; they may be
// toggled between events and the latest value always wins.
type EventRouter struct {
	cfg      *config.Config
	repo     repository.SessionRepository
	replies  ReplySource
	identity string
	conn     transport.Conn

	events    chan any
	done      chan struct{}
	closeOnce sync.Once
}

func NewEventRouter(
	cfg *config.Config,
	repo repository.SessionRepository,
	replies ReplySource,
	identity string,
	conn transport.Conn,
) *EventRouter {
	return &EventRouter{
		cfg:      cfg,
		repo:     repo,
		replies:  replies,
		identity: identity,
		conn:     conn,
		events:   make(chan any, routerQueueSize),
		done:     make(chan struct{}),
	}
}

// Bind subscribes to the connection's event stream and starts the processing
// goroutine. Call once, after the connection has opened.
func (r *EventRouter) Bind() {
	r.conn.OnCallBatch(func(calls []transport.Call) {
		r.enqueue(calls)
	})
	r.conn.OnMessageBatch(func(batch transport.MessageBatch) {
		r.enqueue(batch)
	})
	r.conn.OnMessageUpdateBatch(func(updates []transport.MessageUpdate) {
		r.enqueue(updates)
	})
	// Credential updates are forwarded by the subscription the supervisor
	// registers before pairing; they are never flag-gated and never queue
	// behind message work.

	go r.run()
}

// Close stops the processing goroutine. Queued events are dropped.
func (r *EventRouter) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}

func (r *EventRouter) enqueue(event any) {
	select {
	case r.events <- event:
	case <-r.done:
	}
}

func (r *EventRouter) run() {
	for {
		select {
		case <-r.done:
			return
		case event := <-r.events:
			r.dispatch(event)
		}
	}
}

func (r *EventRouter) dispatch(event any) {
	ctx := context.Background()
	flags := r.currentFlags(ctx)

	switch ev := event.(type) {
	case []transport.Call:
		r.handleCalls(ctx, flags, ev)
	case transport.MessageBatch:
		r.handleMessages(ctx, flags, ev)
	case []transport.MessageUpdate:
		r.handleMessageUpdates(flags, ev)
	}
}

func (r *EventRouter) currentFlags(ctx context.Context) model.FlagSet {
	record, err := r.repo.Get(ctx, r.identity)
	if err != nil {
		log.Error().Err(err).Str("identity", r.identity).Msg("failed to read session flags, using defaults")
		return feature.Defaults(r.cfg)
	}
	if record == nil {
		return feature.Defaults(r.cfg)
	}
	return record.Flags
}

// handleCalls rejects every video or voice call in the batch when antiCall is
// set. A failed rejection never aborts the rest of the batch.
func (r *EventRouter) handleCalls(ctx context.Context, flags model.FlagSet, calls []transport.Call) {
	if !flags.AntiCall {
		return
	}

	for _, call := range calls {
		if call.Kind != transport.CallVideo && call.Kind != transport.CallVoice {
			continue
		}
		if err := r.conn.RejectCall(ctx, call.ID); err != nil {
			log.Warn().Err(err).Str("identity", r.identity).Str("callId", call.ID).Msg("failed to reject call")
		}
	}
}

func (r *EventRouter) handleMessages(ctx context.Context, flags model.FlagSet, batch transport.MessageBatch) {
	if batch.Kind != transport.DeliveryNotify {
		return
	}

	for _, msg := range batch.Messages {
		if msg == nil || msg.Content == nil {
			continue
		}

		// Reveal view-once content first so auto-chat and commands see the
		// wrapped payload.
		if flags.ViewOnceBypass && msg.Content.ViewOnce != nil {
			msg.Content = msg.Content.ViewOnce
		}

		if flags.AutoChat && !msg.Key.FromMe {
			r.autoReply(ctx, msg)
		}

		r.dispatchCommand(ctx, msg)
	}
}

func (r *EventRouter) autoReply(ctx context.Context, msg *transport.Message) {
	prompt := msg.Content.Text()

	reply, err := r.replies.FetchReply(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Str("identity", r.identity).Msg("reply source unavailable, using offline reply")
		reply = OfflineReply
	}

	r.send(ctx, msg, reply)
}

// dispatchCommand matches the message body against the command prefix and
// runs the recognized command, independent of autoChat. Unknown command names
// are silently ignored.
func (r *EventRouter) dispatchCommand(ctx context.Context, msg *transport.Message) {
	text := msg.Content.Text()
	prefix := r.cfg.CommandPrefix
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return
	}

	fields := strings.Fields(strings.TrimSpace(text[len(prefix):]))
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "payment":
		r.send(ctx, msg, "Support: "+r.cfg.PaymentInfo)
	case "owner":
		r.send(ctx, msg, "Owner: +"+r.cfg.OwnerNumber)
	case "help":
		lang := locales.DetectByPhone(msg.Key.ChatID)
		r.send(ctx, msg, locales.Help(lang, r.cfg.BotName, prefix))
	}
}

// handleMessageUpdates observes edits and revocations. Deleted-content
// recovery is out of scope: antiDelete gates observation only and produces no
// outbound action.
func (r *EventRouter) handleMessageUpdates(flags model.FlagSet, updates []transport.MessageUpdate) {
	if !flags.AntiDelete {
		return
	}

	for _, update := range updates {
		if update.Revoked {
			log.Info().
				Str("identity", r.identity).
				Str("chatId", update.Key.ChatID).
				Str("messageId", update.Key.ID).
				Msg("message revoked")
		}
	}
}

func (r *EventRouter) send(ctx context.Context, quoted *transport.Message, text string) {
	err := r.conn.SendMessage(ctx, quoted.Key.ChatID, transport.TextContent(text), &transport.SendOptions{
		Quoted: quoted,
	})
	if err != nil {
		log.Warn().Err(err).Str("identity", r.identity).Str("chatId", quoted.Key.ChatID).Msg("failed to send message")
	}
}
