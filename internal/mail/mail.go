// Package mail sends transactional email: registration codes and
// best-effort course notifications.
package mail

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// ErrConnectivity means the mail server could not be reached. Callers
// report it to clients as a temporary outage.
var ErrConnectivity = errors.New("mail: server unreachable")

// Message is a plain-text email. Bcc recipients are hidden from each other
// and from To.
type Message struct {
	Subject string
	Body    string
	From    string
	To      []string
	Bcc     []string
}

// Mailer delivers a message or returns an error wrapping ErrConnectivity
// when the server cannot be reached.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no SMTP server is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail not sent, SMTP disabled",
		slog.String("subject", msg.Subject),
		slog.String("to", strings.Join(msg.To, ",")),
		slog.Int("bcc", len(msg.Bcc)),
		slog.String("body", msg.Body),
	)
	return nil
}
