package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// AdminNotifier pushes operational notices to the admin channel.
type AdminNotifier interface {
	NotifyPaymentConfirmed(ctx context.Context, n PaymentConfirmedNotification) error
	NotifySweep(ctx context.Context, result SweepResult) error
}

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     "https://api.telegram.org",
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		logrus.Debug("telegram bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		logrus.WithError(err).Warn("telegram send failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logrus.WithField("status", resp.StatusCode).Warn("telegram unexpected status")
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		logrus.Debug("telegram admin chat id not configured")
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// PaymentConfirmedNotification describes a confirmed bank transfer or card payment.
type PaymentConfirmedNotification struct {
	BusinessCardID uint
	URLSlug        string
	Name           string
	Email          string
	PaymentStatus  string
	AdminEmail     string
}

// NotifyPaymentConfirmed tells admins a card was confirmed and its QR code issued.
func (s *TelegramService) NotifyPaymentConfirmed(ctx context.Context, n PaymentConfirmedNotification) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>✅ 入金確認</b>
<b>名刺ID:</b> %d
<b>URL:</b> %s
<b>氏名:</b> %s
<b>メール:</b> %s
<b>支払状況:</b> %s
<b>担当:</b> %s`,
		n.BusinessCardID,
		n.URLSlug,
		n.Name,
		n.Email,
		n.PaymentStatus,
		n.AdminEmail,
	)

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}

// NotifySweep summarizes an overdue sweep that changed at least one card.
func (s *TelegramService) NotifySweep(ctx context.Context, result SweepResult) error {
	if s.adminChatID == "" || result.UpdatedCount == 0 {
		return nil
	}

	ids := make([]string, 0, len(result.UpdatedBusinessCards))
	for _, id := range result.UpdatedBusinessCards {
		ids = append(ids, fmt.Sprintf("%d", id))
	}

	message := fmt.Sprintf(`<b>⚠️ 未払いチェック</b>
<b>非公開化:</b> %d件
<b>名刺ID:</b> %s
<b>エラー:</b> %d件`,
		result.UpdatedCount,
		strings.Join(ids, ", "),
		len(result.Errors),
	)

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}
