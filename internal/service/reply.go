package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	replyTimeout = 5 * time.Second

	// OfflineReply is sent when the reply source is unreachable. Auto-chat
	// degrades to this fixed text rather than surfacing an error.
	OfflineReply = "🧠 (AI offline) I am here."
)

// ReplySource produces a short reply for an inbound message body.
type ReplySource interface {
	FetchReply(ctx context.Context, prompt string) (string, error)
}

// QuoteReplySource fetches reply text from a quote API over HTTP.
type QuoteReplySource struct {
	url    string
	client *http.Client
}

func NewQuoteReplySource(url string) *QuoteReplySource {
	return &QuoteReplySource{
		url: url,
		client: &http.Client{
			Timeout: replyTimeout,
		},
	}
}

func (s *QuoteReplySource) FetchReply(ctx context.Context, prompt string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reply source request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("reply source returned status %d", resp.StatusCode)
	}

	var body struct {
		Content string `json:"content"`
		Quote   string `json:"quote"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode reply source response: %w", err)
	}

	text := body.Content
	if text == "" {
		text = body.Quote
	}
	if text == "" {
		text = "I am here."
	}

	log.Debug().Str("url", s.url).Msg("reply source fetch successful")
	return "🧠 " + text, nil
}
