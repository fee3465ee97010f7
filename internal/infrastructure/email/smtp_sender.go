package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/saasforge/backend/internal/domain/notification"
	"go.uber.org/zap"
)

// SMTPSender delivers transactional mail over authenticated SMTP
type SMTPSender struct {
	addr   string
	auth   smtp.Auth
	from   string
	logger *zap.Logger
}

// NewSMTPSender creates a sender for the given server. Username may be
// empty for servers that accept unauthenticated relay (local dev).
func NewSMTPSender(host string, port int, username, password, from string, logger *zap.Logger) *SMTPSender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{
		addr:   fmt.Sprintf("%s:%d", host, port),
		auth:   auth,
		from:   from,
		logger: logger,
	}
}

// Send delivers one plain-text message
func (s *SMTPSender) Send(ctx context.Context, mail notification.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", mail.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mail.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(mail.Body)

	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{mail.To}, []byte(msg.String())); err != nil {
		s.logger.Error("Failed to send email",
			zap.String("to", mail.To),
			zap.String("subject", mail.Subject),
			zap.Error(err))
		return fmt.Errorf("smtp: send to %s: %w", mail.To, err)
	}

	s.logger.Info("Sent email",
		zap.String("to", mail.To),
		zap.String("subject", mail.Subject))
	return nil
}

// NoopSender logs messages instead of delivering them. Used when email is
// disabled in configuration.
type NoopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates a sender that only logs
func NewNoopSender(logger *zap.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

// Send logs the message and succeeds
func (s *NoopSender) Send(_ context.Context, mail notification.Email) error {
	s.logger.Info("Email delivery disabled, dropping message",
		zap.String("to", mail.To),
		zap.String("subject", mail.Subject))
	return nil
}

var (
	_ notification.Sender = (*SMTPSender)(nil)
	_ notification.Sender = (*NoopSender)(nil)
)
