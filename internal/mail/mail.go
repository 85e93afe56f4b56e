// Package mail sends the wish email to the card owner over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"lunar-card/internal/apperr"
	"lunar-card/internal/game/fortune"
)

// ErrNotConfigured is returned when SMTP settings are incomplete.
var ErrNotConfigured = fmt.Errorf("%w: email is not configured", apperr.ErrNotification)

// AnonymousSender names the sender when the viewer has neither label nor key.
const AnonymousSender = "Ẩn danh"

// Config holds SMTP settings.
type Config struct {
	Host string
	Port int
	User string
	Pass string
	From string
	To   string
	// Timeout bounds one delivery. Zero uses DefaultSendTimeout.
	Timeout time.Duration
}

// DefaultSendTimeout bounds a delivery when Config.Timeout is zero.
// It must stay below the per-visit lock timeout of the card service.
const DefaultSendTimeout = 8 * time.Second

// Configured reports whether every required field is set.
func (c Config) Configured() bool {
	return c.Host != "" && c.User != "" && c.Pass != "" && c.From != "" && c.To != ""
}

// WishEmail is the content of one wish email.
type WishEmail struct {
	FromName      string
	FromKey       string
	CardTarget    string
	Time          time.Time
	Message       string
	FortuneAmount int64
	BankName      string
	BankAccount   string
}

// SendFunc is smtp.SendMail with a context.
type SendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends wish emails through an SMTP relay.
type SMTPMailer struct {
	cfg  Config
	send SendFunc
}

// NewSMTPMailer creates a mailer. A nil send dials the relay directly.
func NewSMTPMailer(cfg Config, send SendFunc) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSendTimeout
	}
	if send == nil {
		send = sendMail
	}
	return &SMTPMailer{cfg: cfg, send: send}
}

// SendWish delivers e to the configured owner address.
func (m *SMTPMailer) SendWish(ctx context.Context, e WishEmail) error {
	if !m.cfg.Configured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	msg := Compose(m.cfg.From, m.cfg.To, e)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	if err := m.send(ctx, addr, auth, m.cfg.From, []string{m.cfg.To}, msg); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrNotification, err)
	}
	return nil
}

// Compose renders the RFC 5322 message for e.
func Compose(from, to string, e WishEmail) []byte {
	sender := e.FromName
	if sender == "" {
		sender = e.FromKey
	}
	if sender == "" {
		sender = AnonymousSender
	}

	subject := mime.QEncoding.Encode("utf-8", "💌 Lời chúc từ "+sender)

	var body strings.Builder
	fmt.Fprintf(&body, "Người gửi: %s (@%s)\n", sender, e.FromKey)
	fmt.Fprintf(&body, "Thiệp: %s\n", e.CardTarget)
	fmt.Fprintf(&body, "Thời gian: %s\n\n", FormatTime(e.Time))
	fmt.Fprintf(&body, "%s\n\n", e.Message)
	fmt.Fprintf(&body, "Lộc: %s\n", fortune.FormatVND(e.FortuneAmount))
	fmt.Fprintf(&body, "Ngân hàng: %s\n", e.BankName)
	fmt.Fprintf(&body, "Số tài khoản: %s\n", e.BankAccount)

	return []byte(strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body.String(),
	}, "\r\n"))
}

// FormatTime renders t the way Vietnamese locales print a timestamp.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04:05 2/1/2006")
}

// IsNotConfigured reports whether err means email is switched off.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}
