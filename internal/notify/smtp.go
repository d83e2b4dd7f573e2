package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"os"
	"strings"
	"time"
)

var (
	// ErrNoRecipients — список получателей пуст.
	ErrNoRecipients = errors.New("no recipients")

	// ErrNotConfigured — не задан SMTP-сервер или отправитель.
	ErrNotConfigured = errors.New("smtp notifier not configured")
)

// Config — параметры SMTP.
type Config struct {
	// Addr — host:port SMTP-сервера.
	Addr     string
	From     string
	Username string
	Password string
	Timeout  time.Duration
}

// ConfigFromEnv читает SMTP_ADDR, SMTP_FROM, SMTP_USERNAME, SMTP_PASSWORD.
func ConfigFromEnv() Config {
	return Config{
		Addr:     os.Getenv("SMTP_ADDR"),
		From:     os.Getenv("SMTP_FROM"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
	}
}

// Enabled возвращает true, если уведомления можно отправлять.
func (c Config) Enabled() bool {
	return c.Addr != "" && c.From != ""
}

// sendFunc — сигнатура smtp.SendMail (подменяется в тестах).
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier отправляет письма через SMTP.
type SMTPNotifier struct {
	cfg  Config
	send sendFunc
}

// NewSMTPNotifier создаёт notifier.
func NewSMTPNotifier(cfg Config) *SMTPNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail}
}

// Send отправляет письмо с HTML-телом.
//
// smtp.SendMail не принимает context, поэтому отправка идёт в отдельной
// горутине, а Send возвращается по ctx или по Timeout.
func (n *SMTPNotifier) Send(ctx context.Context, recipients []string, subject, body string) error {
	if !n.cfg.Enabled() {
		return ErrNotConfigured
	}
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	msg, err := BuildMessage(n.cfg.From, recipients, subject, body, time.Now())
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if n.cfg.Username != "" {
		host, _, err := net.SplitHostPort(n.cfg.Addr)
		if err != nil {
			return fmt.Errorf("smtp addr: %w", err)
		}
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, host)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- n.send(n.cfg.Addr, auth, n.cfg.From, recipients, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail: %w", ctx.Err())
	}
}

// BuildMessage собирает RFC 5322 сообщение с HTML-телом.
func BuildMessage(from string, to []string, subject, htmlBody string, date time.Time) ([]byte, error) {
	if _, err := mail.ParseAddress(from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", from, err)
	}
	for _, addr := range to {
		if _, err := mail.ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", addr, err)
		}
		if strings.ContainsAny(addr, "\r\n") {
			return nil, fmt.Errorf("invalid recipient %q", addr)
		}
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", date.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(htmlBody)
	return buf.Bytes(), nil
}
