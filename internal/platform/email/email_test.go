package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"pmds/internal/platform/config"
)

func TestNewReturnsNoopWhenDisabled(t *testing.T) {
	mailer := New(config.Config{EmailEnabled: false, SMTPHost: "smtp.example.com"})
	if _, ok := mailer.(noopMailer); !ok {
		t.Fatalf("expected noop mailer, got %T", mailer)
	}
	if err := mailer.Send(context.Background(), "a@example.com", "b@example.com", "s", "b"); err != nil {
		t.Fatalf("noop send: %v", err)
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := string(buildMessage("from@example.com", "to@example.com", "Review due", "line1\nline2", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	for _, want := range []string{
		"From: from@example.com\r\n",
		"To: to@example.com\r\n",
		"Subject: Review due\r\n",
		"MIME-Version: 1.0\r\n",
		"\r\n\r\nline1\r\nline2",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected message to contain %q, got %q", want, msg)
		}
	}
}

func TestSendRetriesTransientFailures(t *testing.T) {
	calls := 0
	m := &smtpMailer{
		addr:    "smtp.test:25",
		maxWait: 5 * time.Second,
		send: func(addr string, auth sasl.Client, from string, to []string, msg []byte) error {
			calls++
			if calls < 2 {
				return errors.New("connection reset")
			}
			return nil
		},
	}
	if err := m.Send(context.Background(), "a@example.com", "b@example.com", "s", "b"); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestSendStopsOnPermanentRejection(t *testing.T) {
	calls := 0
	m := &smtpMailer{
		addr:    "smtp.test:25",
		maxWait: 5 * time.Second,
		send: func(addr string, auth sasl.Client, from string, to []string, msg []byte) error {
			calls++
			return &smtp.SMTPError{Code: 550, Message: "mailbox unavailable"}
		},
	}
	if err := m.Send(context.Background(), "a@example.com", "b@example.com", "s", "b"); err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestSendSkipsEmptyRecipient(t *testing.T) {
	m := &smtpMailer{send: func(string, sasl.Client, string, []string, []byte) error {
		t.Fatalf("send should not be called")
		return nil
	}}
	if err := m.Send(context.Background(), "a@example.com", "  ", "s", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendGivesUpWithinBudget(t *testing.T) {
	m := &smtpMailer{
		addr:    "smtp.test:25",
		maxWait: 200 * time.Millisecond,
		send: func(addr string, auth sasl.Client, from string, to []string, msg []byte) error {
			return errors.New("dial tcp: connection refused")
		},
	}
	started := time.Now()
	err := m.Send(context.Background(), "a@example.com", "b@example.com", "s", "b")
	if err == nil {
		t.Fatalf("expected failure when the server is unreachable")
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("expected send to give up quickly, took %s", elapsed)
	}
}

func TestNewCapsRetryBudget(t *testing.T) {
	m, ok := New(config.Config{EmailEnabled: true, SMTPHost: "smtp.test", SMTPPort: 25}).(*smtpMailer)
	if !ok {
		t.Fatalf("expected smtp mailer when email is enabled")
	}
	if m.maxWait <= 0 || m.maxWait > 10*time.Second {
		t.Fatalf("unexpected retry budget %s", m.maxWait)
	}
}
