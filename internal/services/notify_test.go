package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/config"
)

func TestTelegramNotifySweep(t *testing.T) {
	var got telegramMessage
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegramService("tok", "42")
	tg.apiBase = srv.URL

	require.NoError(t, tg.NotifySweep(context.Background(), SweepResult{}))
	assert.Empty(t, path, "no message for an empty sweep")

	require.NoError(t, tg.NotifySweep(context.Background(), SweepResult{UpdatedCount: 2, UpdatedBusinessCards: []uint{3, 9}}))
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.Contains(t, got.Text, "3, 9")
}

func TestTelegramUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tg := NewTelegramService("tok", "42")
	tg.apiBase = srv.URL
	err := tg.NotifyPaymentConfirmed(context.Background(), PaymentConfirmedNotification{BusinessCardID: 1, URLSlug: "00001"})
	assert.ErrorContains(t, err, "502")
}

func TestSMTPMailerDeliver(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Host: "mail.local", Port: 587, User: "u", Password: "p", From: "noreply@example.com"})
	var addr string
	var msg []byte
	m.send = func(a string, _ smtp.Auth, from string, to []string, body []byte) error {
		addr, msg = a, body
		assert.Equal(t, "noreply@example.com", from)
		assert.Equal(t, []string{"agent@example.com"}, to)
		return nil
	}

	require.NoError(t, m.SendVerification(context.Background(), "agent@example.com", "https://card.local/verify?token=abc"))
	assert.Equal(t, "mail.local:587", addr)
	assert.Contains(t, string(msg), "Subject: =?UTF-8?b?")
	assert.Contains(t, string(msg), "https://card.local/verify?token=abc")

	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("relay down") }
	assert.ErrorContains(t, m.SendPasswordReset(context.Background(), "agent@example.com", "x"), "relay down")
}

func TestSMTPMailerWithoutHostOnlyLogs(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{})
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	assert.NoError(t, m.SendPaymentConfirmed(context.Background(), "agent@example.com", "https://card.local/00001"))
}

type countingRunner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRunner) Run(context.Context) (SweepResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return SweepResult{Success: r.err == nil}, r.err
}

func TestSweepScheduler(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	runner := &countingRunner{}
	s := NewSweepScheduler(runner, "", logger)
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	s.runOnce()
	s.Stop()
	s.Stop()
	assert.Equal(t, 1, runner.calls)

	bad := NewSweepScheduler(runner, "not a schedule", logger)
	assert.Error(t, bad.Start())

	runner.err = errors.New("db gone")
	s.runOnce()
	assert.Equal(t, 2, runner.calls)
}
