package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/config"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/services"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/utils"
)

var serviceErrors = []struct {
	err     error
	status  int
	message string
}{
	{services.ErrCardNotFound, fiber.StatusNotFound, "名刺が見つかりません"},
	{services.ErrUserNotFound, fiber.StatusNotFound, "ユーザーが見つかりません"},
	{services.ErrInvalidPayload, fiber.StatusBadRequest, "入力内容が正しくありません"},
	{services.ErrInsufficientTechTools, fiber.StatusBadRequest, "テックツールは2つ以上選択してください"},
	{services.ErrNoActiveSubscription, fiber.StatusNotFound, "有効なサブスクリプションが見つかりません"},
	{services.ErrEmailTaken, fiber.StatusBadRequest, "このメールアドレスは既に登録されています"},
	{services.ErrInvalidCredentials, fiber.StatusUnauthorized, "メールアドレスまたはパスワードが正しくありません"},
	{services.ErrAccountSuspended, fiber.StatusForbidden, "このアカウントは停止されています"},
	{services.ErrTokenInvalid, fiber.StatusNotFound, "無効なトークンです"},
	{services.ErrTokenExpired, fiber.StatusBadRequest, "トークンの有効期限が切れています"},
	{services.ErrTokenConsumed, fiber.StatusBadRequest, "このトークンは既に使用されています"},
	{services.ErrAlreadyVerified, fiber.StatusBadRequest, "メールアドレスは既に認証済みです"},
	{services.ErrQRNotIssued, fiber.StatusBadRequest, "QRコードが発行されていないため公開できません"},
	{services.ErrUnknownAction, fiber.StatusBadRequest, "不正な操作です"},
	{services.ErrInvalidStatus, fiber.StatusBadRequest, "支払いステータスが不正です"},
	{services.ErrUnsupportedFileType, fiber.StatusBadRequest, "ファイル種別が不正です"},
	{services.ErrUnsupportedImage, fiber.StatusBadRequest, "JPEG、PNG、GIF、WebP形式の画像を選択してください"},
	{services.ErrFileTooLarge, fiber.StatusBadRequest, "ファイルサイズが大きすぎます"},
	{services.ErrEmptyFile, fiber.StatusBadRequest, "ファイルが空です"},
}

// serviceError maps service sentinels to client errors. Anything else is
// returned unchanged and rendered as a server error.
func serviceError(err error) error {
	for _, se := range serviceErrors {
		if errors.Is(err, se.err) {
			return fiber.NewError(se.status, se.message)
		}
	}
	return err
}

func parseAndValidate(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "リクエストの形式が正しくありません")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func setSessionCookie(c *fiber.Ctx, cfg *config.Config, name, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		Expires:  time.Now().Add(cfg.TokenExpires),
		Secure:   cfg.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func clearSessionCookie(c *fiber.Ctx, cfg *config.Config, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   cfg.CookieDomain,
		Expires:  time.Unix(0, 0),
		Secure:   cfg.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Empty input yields nil.
func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fiber.NewError(fiber.StatusBadRequest, "日付の形式が正しくありません")
}
