package services

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/config"
)

// Mailer delivers the transactional mails of the card lifecycle.
type Mailer interface {
	SendVerification(ctx context.Context, to, verifyURL string) error
	SendPasswordReset(ctx context.Context, to, resetURL string) error
	SendPaymentConfirmed(ctx context.Context, to, cardURL string) error
}

// SMTPMailer sends plain-text UTF-8 mail through an SMTP relay. With no host
// configured it only logs the message.
type SMTPMailer struct {
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer constructs an SMTPMailer.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// SendVerification mails the email verification link.
func (m *SMTPMailer) SendVerification(ctx context.Context, to, verifyURL string) error {
	body := "不動産AI名刺にご登録いただきありがとうございます。\n\n" +
		"以下のリンクから15分以内にメールアドレスの認証を完了してください。\n\n" +
		verifyURL + "\n"
	return m.deliver(to, "【不動産AI名刺】メールアドレス認証のお願い", body)
}

// SendPasswordReset mails the password reset link.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	body := "パスワード再設定のリクエストを受け付けました。\n\n" +
		"以下のリンクから15分以内に新しいパスワードを設定してください。\n\n" +
		resetURL + "\n\n" +
		"心当たりがない場合はこのメールを破棄してください。\n"
	return m.deliver(to, "【不動産AI名刺】パスワード再設定", body)
}

// SendPaymentConfirmed tells the user the card is paid and its QR code issued.
func (m *SMTPMailer) SendPaymentConfirmed(ctx context.Context, to, cardURL string) error {
	body := "ご入金を確認いたしました。\n\n" +
		"QRコードを発行しました。名刺は以下のURLから公開できます。\n\n" +
		cardURL + "\n"
	return m.deliver(to, "【不動産AI名刺】お支払い確認のお知らせ", body)
}

func (m *SMTPMailer) deliver(to, subject, body string) error {
	if m.cfg.Host == "" {
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("smtp not configured, mail logged only")
		return nil
	}

	headers := []string{
		fmt.Sprintf("From: %s", m.cfg.From),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", mime.BEncoding.Encode("UTF-8", subject)),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}
	message := strings.Join(headers, "\r\n")

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.From, []string{to}, []byte(message)); err != nil {
		logrus.WithError(err).WithField("to", to).Error("send mail failed")
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
