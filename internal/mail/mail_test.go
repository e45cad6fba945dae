package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"
)

func TestBuildMessage(t *testing.T) {
	gm, err := buildMessage(Message{
		Subject: "OTP Verification",
		Body:    "Your OTP for registration is: 123456",
		From:    "no-reply@example.com",
		To:      []string{"a@x.com"},
		Bcc:     []string{"b@x.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"OTP Verification"}, gm.GetGenHeader(gomail.HeaderSubject))

	rcpts, err := gm.GetRecipients()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a@x.com", "b@x.com"}, rcpts)
}

func TestBuildMessage_Invalid(t *testing.T) {
	_, err := buildMessage(Message{From: "no-reply@example.com"})
	assert.Error(t, err)

	_, err = buildMessage(Message{From: "not an address", To: []string{"a@x.com"}})
	assert.Error(t, err)

	_, err = buildMessage(Message{From: "no-reply@example.com", To: []string{"bad address"}})
	assert.Error(t, err)
}

func TestSMTPMailer_UnreachableIsConnectivity(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: port, Timeout: time.Second})
	err = m.Send(context.Background(), Message{
		Subject: "hi", Body: "body", From: "no-reply@example.com", To: []string{"a@x.com"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnectivity), "got %v", err)
}

func TestIsConnectivity(t *testing.T) {
	assert.True(t, isConnectivity(context.DeadlineExceeded))
	assert.True(t, isConnectivity(fmt.Errorf("dial: %w", &net.OpError{Op: "dial", Err: errors.New("refused")})))
	assert.False(t, isConnectivity(errors.New("550 mailbox unavailable")))
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	err := NewLogMailer(logger).Send(context.Background(), Message{Subject: "OTP Verification", To: []string{"a@x.com"}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "OTP Verification")
	assert.Contains(t, buf.String(), "a@x.com")
}
