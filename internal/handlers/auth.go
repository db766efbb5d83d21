package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/config"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/middleware"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/services"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/utils"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	auth *services.AuthService
	cfg  *config.Config
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{auth: auth, cfg: cfg}
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	Phone       string `json:"phone" validate:"omitempty,max=32"`
	UserType    string `json:"user_type" validate:"omitempty,oneof=new existing free"`
	ExistingURL string `json:"existing_url" validate:"omitempty,url"`
}

// Register creates a pending account with a draft card and starts a session.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	user, card, err := h.auth.Register(c.UserContext(), services.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		Phone:       req.Phone,
		UserType:    req.UserType,
		ExistingURL: req.ExistingURL,
	})
	if err != nil {
		return serviceError(err)
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, utils.RoleUser, h.cfg.TokenExpires)
	if err != nil {
		return err
	}
	setSessionCookie(c, h.cfg, middleware.UserCookieName, token)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "登録が完了しました。認証メールをご確認ください",
		"data": fiber.Map{
			"user_id":          user.ID,
			"email":            user.Email,
			"user_type":        user.UserType,
			"status":           user.Status,
			"business_card_id": card.ID,
			"url_slug":         card.URLSlug,
		},
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates an existing user.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return serviceError(err)
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, utils.RoleUser, h.cfg.TokenExpires)
	if err != nil {
		return err
	}
	setSessionCookie(c, h.cfg, middleware.UserCookieName, token)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "ログインしました",
		"data": fiber.Map{
			"user_id":   user.ID,
			"email":     user.Email,
			"user_type": user.UserType,
			"status":    user.Status,
		},
	})
}

// Logout clears the user session cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	clearSessionCookie(c, h.cfg, middleware.UserCookieName)
	return c.JSON(fiber.Map{"success": true, "message": "ログアウトしました"})
}

type verifyRequest struct {
	Token string `json:"token" validate:"required"`
}

// Verify confirms the email address behind a verification token.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if token := c.Query("token"); token != "" {
		req.Token = token
	} else if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.auth.Verify(c.UserContext(), req.Token)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "メールアドレスの認証が完了しました",
		"data": fiber.Map{
			"user_id":   user.ID,
			"user_type": user.UserType,
			"status":    user.Status,
		},
	})
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResendVerification mails a fresh verification link.
func (h *AuthHandler) ResendVerification(c *fiber.Ctx) error {
	var req emailRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.auth.ResendVerification(c.UserContext(), req.Email); err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "認証メールを再送信しました"})
}

// AdminLogin authenticates a dashboard operator.
func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	admin, err := h.auth.AdminLogin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return serviceError(err)
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, admin.ID, utils.RoleAdmin, h.cfg.TokenExpires)
	if err != nil {
		return err
	}
	setSessionCookie(c, h.cfg, middleware.AdminCookieName, token)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "ログインしました",
		"data": fiber.Map{
			"admin_id": admin.ID,
			"email":    admin.Email,
			"role":     admin.Role,
		},
	})
}

// AdminLogout clears the admin session cookie.
func (h *AuthHandler) AdminLogout(c *fiber.Ctx) error {
	clearSessionCookie(c, h.cfg, middleware.AdminCookieName)
	return c.JSON(fiber.Map{"success": true, "message": "ログアウトしました"})
}
