package mail

import (
	"context"
	"errors"
	"net"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunar-card/internal/apperr"
)

var testConfig = Config{
	Host: "smtp.example.com",
	Port: 2525,
	User: "user",
	Pass: "pass",
	From: "card@example.com",
	To:   "owner@example.com",
}

type captured struct {
	addr string
	from string
	to   []string
	msg  string
}

func capture(c *captured, err error) SendFunc {
	return func(_ context.Context, addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		c.addr, c.from, c.to, c.msg = addr, from, to, string(msg)
		return err
	}
}

func TestSendWish(t *testing.T) {
	var c captured
	m := NewSMTPMailer(testConfig, capture(&c, nil))

	err := m.SendWish(context.Background(), WishEmail{
		FromName:      "Mai",
		FromKey:       "mai",
		CardTarget:    "Mai",
		Time:          time.Date(2026, 2, 17, 9, 5, 0, 0, time.UTC),
		Message:       "Happy new year",
		FortuneAmount: 50000,
		BankName:      "VCB",
		BankAccount:   "0123",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:2525", c.addr)
	assert.Equal(t, "card@example.com", c.from)
	assert.Equal(t, []string{"owner@example.com"}, c.to)
	assert.Contains(t, c.msg, "To: owner@example.com\r\n")
	assert.Contains(t, c.msg, "Happy new year")
	assert.Contains(t, c.msg, "50.000đ")
	assert.Contains(t, c.msg, "VCB")
	assert.Contains(t, c.msg, "0123")
	assert.Contains(t, c.msg, "09:05:00 17/2/2026")
}

func TestSendWish_NotConfigured(t *testing.T) {
	called := false
	m := NewSMTPMailer(Config{Host: "h"}, func(context.Context, string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	})

	err := m.SendWish(context.Background(), WishEmail{Message: "x"})
	assert.True(t, IsNotConfigured(err))
	assert.ErrorIs(t, err, apperr.ErrNotification)
	assert.False(t, called)
}

func TestSendWish_RelayFailure(t *testing.T) {
	var c captured
	boom := errors.New("relay down")
	m := NewSMTPMailer(testConfig, capture(&c, boom))

	err := m.SendWish(context.Background(), WishEmail{Message: "x"})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, apperr.ErrNotification)
}

func TestSendWish_TimeoutBoundsSend(t *testing.T) {
	cfg := testConfig
	cfg.Timeout = 20 * time.Millisecond
	m := NewSMTPMailer(cfg, func(ctx context.Context, _ string, _ smtp.Auth, _ string, _ []string, _ []byte) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := m.SendWish(context.Background(), WishEmail{Message: "x"})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, apperr.ErrNotification)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSendMail_SilentRelayHonoursContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = sendMail(ctx, ln.Addr().String(), nil, "f@example.com", []string{"t@example.com"}, []byte("hi"))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	select {
	case conn := <-accepted:
		conn.Close()
	default:
	}
}

func TestSendWish_DefaultPort(t *testing.T) {
	var c captured
	cfg := testConfig
	cfg.Port = 0
	require.NoError(t, NewSMTPMailer(cfg, capture(&c, nil)).SendWish(context.Background(), WishEmail{}))
	assert.True(t, strings.HasSuffix(c.addr, ":587"))
}

func TestCompose_SenderFallbacks(t *testing.T) {
	msg := string(Compose("f", "t", WishEmail{FromKey: "mai"}))
	assert.Contains(t, msg, "Người gửi: mai (@mai)")

	msg = string(Compose("f", "t", WishEmail{}))
	assert.Contains(t, msg, "Người gửi: "+AnonymousSender)
	assert.Contains(t, msg, "Lộc: 0đ")
}
