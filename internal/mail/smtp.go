package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// SMTPMailer delivers mail through an SMTP relay. A new connection is
// dialed per message.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	gm, err := buildMessage(msg)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithTimeout(m.cfg.Timeout),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}

	client, err := gomail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mail: creating SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, gm); err != nil {
		if isConnectivity(err) {
			return fmt.Errorf("%w: %w", ErrConnectivity, err)
		}
		return fmt.Errorf("mail: sending %q: %w", msg.Subject, err)
	}
	return nil
}

func buildMessage(msg Message) (*gomail.Msg, error) {
	if len(msg.To) == 0 && len(msg.Bcc) == 0 {
		return nil, errors.New("mail: message has no recipients")
	}

	gm := gomail.NewMsg()
	if err := gm.From(msg.From); err != nil {
		return nil, fmt.Errorf("mail: invalid from address: %w", err)
	}
	if len(msg.To) > 0 {
		if err := gm.To(msg.To...); err != nil {
			return nil, fmt.Errorf("mail: invalid recipient: %w", err)
		}
	}
	if len(msg.Bcc) > 0 {
		if err := gm.Bcc(msg.Bcc...); err != nil {
			return nil, fmt.Errorf("mail: invalid bcc recipient: %w", err)
		}
	}
	gm.Subject(msg.Subject)
	gm.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return gm, nil
}

func isConnectivity(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
