// Package notify implements spec §6's abstract Notifier: a side channel for
// activity-log events and operator-facing alerts. SPEC_FULL §C.4 gives it
// two concrete sinks — NATS (grounded on internal/orchestrator/messagebus.go's
// nats.Connect/Publish wiring) and Telegram (grounded on
// internal/alerts/telegram.go's TelegramAlerter) — generalized from the
// teacher's agent-to-agent/operator-alert use cases to publishing
// domain.ActivityEntry records.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// Sink is one notification destination. Notify must not block the caller
// for long; sinks are expected to be fire-and-forget from the scanner's
// perspective.
type Sink interface {
	Notify(ctx context.Context, entry domain.ActivityEntry) error
	Close() error
}

// Notifier fans an ActivityEntry out to every configured sink, logging (not
// propagating) a sink's own failure so one broken channel never blocks
// another or the caller.
type Notifier struct {
	sinks []Sink
	log   zerolog.Logger
}

// New builds a Notifier over the given sinks.
func New(log zerolog.Logger, sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks, log: log.With().Str("component", "notifier").Logger()}
}

// Notify fans entry out to every sink.
func (n *Notifier) Notify(ctx context.Context, entry domain.ActivityEntry) {
	for _, sink := range n.sinks {
		if err := sink.Notify(ctx, entry); err != nil {
			n.log.Warn().Err(err).Msg("notify sink failed")
		}
	}
}

// Close shuts down every sink, collecting (not stopping on) individual
// errors.
func (n *Notifier) Close() error {
	var firstErr error
	for _, sink := range n.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NATSSink publishes activity entries as JSON to a NATS subject, the
// teacher's internal/orchestrator.MessageBus wiring pattern reused for a
// single outbound activity stream instead of bidirectional agent traffic.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSink connects to url and returns a sink publishing to subject.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	if subject == "" {
		subject = "cryptofunk.activity"
	}
	conn, err := nats.Connect(url,
		nats.Name("cryptofunk-scanner"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: connect nats: %w", err)
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

// Notify publishes entry as JSON to the configured subject.
func (s *NATSSink) Notify(_ context.Context, entry domain.ActivityEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("notify: marshal activity entry: %w", err)
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		return fmt.Errorf("notify: publish to %s: %w", s.subject, err)
	}
	return nil
}

// Close closes the NATS connection without draining it first.
func (s *NATSSink) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

// TelegramSink sends high-severity entries (warning/error/trade/summary) as
// formatted Telegram messages, grounded on internal/alerts/telegram.go's
// TelegramAlerter.Send, generalized from Alert to domain.ActivityEntry.
type TelegramSink struct {
	api     *tgbotapi.BotAPI
	chatIDs []int64
}

// NewTelegramSink authenticates botToken and returns a sink that posts to
// every chat in chatIDs.
func NewTelegramSink(botToken string, chatIDs []int64) (*TelegramSink, error) {
	if botToken == "" {
		return nil, fmt.Errorf("notify: telegram bot token is required")
	}
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("notify: create telegram bot: %w", err)
	}
	return &TelegramSink{api: api, chatIDs: chatIDs}, nil
}

// Notify posts entry to every configured chat, skipping routine info/cycle
// entries so the channel isn't flooded with per-cycle noise.
func (s *TelegramSink) Notify(_ context.Context, entry domain.ActivityEntry) error {
	if !worthAlerting(entry.Level) {
		return nil
	}
	if len(s.chatIDs) == 0 {
		return nil
	}

	message := formatEntry(entry)
	var lastErr error
	sent := 0
	for _, chatID := range s.chatIDs {
		msg := tgbotapi.NewMessage(chatID, message)
		msg.ParseMode = "Markdown"
		if _, err := s.api.Send(msg); err != nil {
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 && lastErr != nil {
		return fmt.Errorf("notify: send telegram alert: %w", lastErr)
	}
	return nil
}

// Close is a no-op: the Telegram bot API holds no persistent connection to
// tear down.
func (s *TelegramSink) Close() error { return nil }

func worthAlerting(level domain.ActivityLevel) bool {
	switch level {
	case domain.ActivityWarning, domain.ActivityError, domain.ActivityTrade, domain.ActivitySummary:
		return true
	default:
		return false
	}
}

func formatEntry(entry domain.ActivityEntry) string {
	return fmt.Sprintf("*%s*: %s", entry.Level, entry.Message)
}
