package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/config"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/utils"
)

// Session cookie names.
const (
	UserCookieName  = "auth_token"
	AdminCookieName = "admin_token"
)

const (
	userContextKey  = "currentUserID"
	adminContextKey = "currentAdminID"
)

// AuthMiddleware validates the user session cookie and loads the user ID into context.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := sessionSubject(c, cfg.JWTSecret, UserCookieName, utils.RoleUser)
		if err != nil {
			return err
		}
		c.Locals(userContextKey, id)
		return c.Next()
	}
}

// AdminMiddleware validates the admin session cookie.
func AdminMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := sessionSubject(c, cfg.JWTSecret, AdminCookieName, utils.RoleAdmin)
		if err != nil {
			return err
		}
		c.Locals(adminContextKey, id)
		return c.Next()
	}
}

// sessionSubject reads the token from the cookie, falling back to a bearer header.
func sessionSubject(c *fiber.Ctx, secret, cookieName, role string) (uint, error) {
	token := c.Cookies(cookieName)
	if token == "" {
		parts := strings.SplitN(c.Get("Authorization"), " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = parts[1]
		}
	}
	if token == "" {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "ログインが必要です")
	}

	id, tokenRole, err := utils.ParseToken(secret, token)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "セッションが無効です。再度ログインしてください")
	}
	if tokenRole != role {
		return 0, fiber.NewError(fiber.StatusForbidden, "権限がありません")
	}
	return id, nil
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(userContextKey).(uint)
	return id, ok && id != 0
}

// GetCurrentAdminID extracts the authenticated admin ID from context.
func GetCurrentAdminID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(adminContextKey).(uint)
	return id, ok && id != 0
}
