package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"pmds/internal/domain/notifications"
	"pmds/internal/platform/config"
)

type noopMailer struct{}

func (noopMailer) Send(ctx context.Context, from, to, subject, body string) error {
	return nil
}

type sendFunc func(addr string, auth sasl.Client, from string, to []string, msg []byte) error

type smtpMailer struct {
	addr     string
	user     string
	password string
	send     sendFunc
	maxWait  time.Duration
}

// New returns a no-op mailer unless email delivery is enabled and configured.
func New(cfg config.Config) notifications.Mailer {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return noopMailer{}
	}
	send := func(addr string, auth sasl.Client, from string, to []string, msg []byte) error {
		return smtp.SendMail(addr, auth, from, to, bytes.NewReader(msg))
	}
	if cfg.SMTPUseTLS {
		send = func(addr string, auth sasl.Client, from string, to []string, msg []byte) error {
			return smtp.SendMailTLS(addr, auth, from, to, bytes.NewReader(msg))
		}
	}
	return &smtpMailer{
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		send:     send,
		maxWait:  10 * time.Second,
	}
}

func (s *smtpMailer) Send(ctx context.Context, from, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return nil
	}
	var auth sasl.Client
	if s.user != "" {
		auth = sasl.NewPlainClient("", s.user, s.password)
	}
	msg := buildMessage(from, to, subject, body, time.Now())

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = s.maxWait
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := s.send(s.addr, auth, from, []string{to}, msg)
		if err == nil {
			return nil
		}
		if smtpErr, ok := err.(*smtp.SMTPError); ok && smtpErr.Code >= 500 {
			return backoff.Permanent(err)
		}
		slog.Warn("smtp send failed", "attempt", attempt, "err", err)
		return err
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string, now time.Time) []byte {
	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", mime.QEncoding.Encode("utf-8", subject)),
		fmt.Sprintf("Date: %s", now.UTC().Format(time.RFC1123Z)),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
	}
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\n", "\r\n")
	return []byte(strings.Join(headers, "\r\n") + "\r\n" + body)
}
