package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/models"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/utils"
)

// TokenLifetime bounds verification and password reset tokens.
const TokenLifetime = 15 * time.Minute

var slugUnsafe = regexp.MustCompile(`[^a-z0-9_-]+`)

// RegisterInput carries the fields of a sign-up request.
type RegisterInput struct {
	Email       string
	Password    string
	Phone       string
	UserType    string
	ExistingURL string
}

// AuthService owns account lifecycle tokens and sequential slug assignment.
type AuthService struct {
	db      *gorm.DB
	mailer  Mailer
	baseURL string
	now     func() time.Time
}

// NewAuthService constructs an AuthService. baseURL prefixes links in mails.
func NewAuthService(db *gorm.DB, mailer Mailer, baseURL string) *AuthService {
	return &AuthService{
		db:      db,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a pending user and its draft card, then mails the
// verification link.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, *models.BusinessCard, error) {
	email := utils.NormalizeEmail(in.Email)
	now := s.now()

	token, err := utils.RandomToken(32)
	if err != nil {
		return nil, nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}

	var user models.User
	var card models.BusinessCard

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}

		userType := normalizeUserType(in.UserType)
		var invitation models.EmailInvitation
		err := tx.Where("email = ? AND used_at IS NULL AND expires_at > ?", email, now).
			Order("id DESC").
			First(&invitation).Error
		if err == nil {
			userType = normalizeUserType(invitation.RoleType)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		expires := now.Add(TokenLifetime)
		user = models.User{
			Email:                      email,
			PasswordHash:               hash,
			Phone:                      strings.TrimSpace(in.Phone),
			UserType:                   userType,
			Status:                     models.UserStatusPending,
			VerificationToken:          &token,
			VerificationTokenExpiresAt: &expires,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		slug, err := AssignSlug(tx, in.ExistingURL)
		if err != nil {
			return err
		}

		card = models.BusinessCard{
			UserID:        user.ID,
			URLSlug:       slug,
			CardStatus:    models.CardStatusDraft,
			PaymentStatus: models.PaymentStatusPending,
		}
		return tx.Create(&card).Error
	})
	if err != nil {
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "user_type": user.UserType, "url_slug": card.URLSlug}).Info("user registered")
	s.sendVerification(ctx, user.Email, token)
	return &user, &card, nil
}

// AssignSlug derives a slug from an existing card URL, or hands out the next
// sequential five-digit slug while holding the counter row lock.
func AssignSlug(tx *gorm.DB, existingURL string) (string, error) {
	if slug := slugFromURL(existingURL); slug != "" {
		var count int64
		if err := tx.Model(&models.BusinessCard{}).Where("url_slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
	}

	var counter models.SlugCounter
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&counter, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		counter = models.SlugCounter{ID: 1, NextValue: 1}
		if err := tx.Create(&counter).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	for {
		slug := fmt.Sprintf("%05d", counter.NextValue)
		counter.NextValue++

		var count int64
		if err := tx.Model(&models.BusinessCard{}).Where("url_slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			if err := tx.Model(&models.SlugCounter{}).Where("id = ?", counter.ID).
				Update("next_value", counter.NextValue).Error; err != nil {
				return "", err
			}
			return slug, nil
		}
	}
}

func slugFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := strings.ToLower(segments[i])
		seg = strings.TrimSuffix(seg, ".html")
		seg = strings.TrimSuffix(seg, ".php")
		if seg == "" || seg == "index" {
			continue
		}
		return strings.Trim(slugUnsafe.ReplaceAllString(seg, "-"), "-")
	}
	return ""
}

func normalizeUserType(userType string) string {
	switch userType {
	case models.UserTypeExisting, models.UserTypeFree:
		return userType
	default:
		return models.UserTypeNew
	}
}

// Login checks credentials and stamps last_login_at.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if user.Status == models.UserStatusSuspended {
		return nil, ErrAccountSuspended
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
		Update("last_login_at", now).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Verify activates the account that owns token and consumes any invitation
// for its email.
func (s *AuthService) Verify(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	now := s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("verification_token = ?", token).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTokenInvalid
		}
		if err != nil {
			return err
		}
		if user.EmailVerifiedAt != nil {
			return ErrTokenConsumed
		}
		if user.VerificationTokenExpiresAt == nil || user.VerificationTokenExpiresAt.Before(now) {
			return ErrTokenExpired
		}

		updates := map[string]interface{}{
			"email_verified_at": now,
		}
		if user.Status == models.UserStatusPending {
			updates["status"] = models.UserStatusActive
		}

		var invitation models.EmailInvitation
		err = tx.Where("email = ? AND used_at IS NULL", user.Email).Order("id DESC").First(&invitation).Error
		if err == nil {
			updates["user_type"] = normalizeUserType(invitation.RoleType)
			if err := tx.Model(&models.EmailInvitation{}).Where("email = ? AND used_at IS NULL", user.Email).
				Update("used_at", now).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&user, user.ID).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithField("user_id", user.ID).Info("email verified")
	return &user, nil
}

// ResendVerification issues a fresh verification token.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if user.EmailVerifiedAt != nil {
		return ErrAlreadyVerified
	}

	token, err := utils.RandomToken(32)
	if err != nil {
		return err
	}
	expires := s.now().Add(TokenLifetime)
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"verification_token":            token,
		"verification_token_expires_at": expires,
	}).Error; err != nil {
		return err
	}

	s.sendVerification(ctx, user.Email, token)
	return nil
}

// ForgotPassword issues a reset token and mails the reset link.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}

	token, err := utils.RandomToken(32)
	if err != nil {
		return err
	}
	expires := s.now().Add(TokenLifetime)
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"reset_token":            token,
		"reset_token_expires_at": expires,
		"reset_token_used_at":    nil,
	}).Error; err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, url.QueryEscape(token))
	if err := s.mailer.SendPasswordReset(ctx, user.Email, resetURL); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("password reset mail failed")
	}
	return nil
}

// ResetPassword replaces the password of the token owner and consumes the token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	now := s.now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Where("reset_token = ?", token).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTokenInvalid
		}
		if err != nil {
			return err
		}
		if user.ResetTokenUsedAt != nil {
			return ErrTokenConsumed
		}
		if user.ResetTokenExpiresAt == nil || user.ResetTokenExpiresAt.Before(now) {
			return ErrTokenExpired
		}

		return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"password_hash":       hash,
			"reset_token_used_at": now,
		}).Error
	})
}

// AdminLogin checks admin credentials and stamps last_login_at.
func (s *AuthService) AdminLogin(ctx context.Context, email, password string) (*models.Admin, error) {
	var admin models.Admin
	err := s.db.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(email)).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(admin.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	admin.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&models.Admin{}).Where("id = ?", admin.ID).
		Update("last_login_at", now).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

func (s *AuthService) sendVerification(ctx context.Context, email, token string) {
	verifyURL := fmt.Sprintf("%s/verify?token=%s", s.baseURL, url.QueryEscape(token))
	if err := s.mailer.SendVerification(ctx, email, verifyURL); err != nil {
		logrus.WithError(err).WithField("email", email).Warn("verification mail failed")
	}
}
