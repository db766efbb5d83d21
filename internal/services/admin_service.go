package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/models"
)

// Admin actions accepted by the users endpoint.
const (
	ActionConfirmPayment  = "confirm_payment"
	ActionCancelPayment   = "cancel_payment"
	ActionUpdatePublished = "update_published"
)

// AdminService applies dashboard actions to cards.
type AdminService struct {
	db       *gorm.DB
	mailer   Mailer
	notifier AdminNotifier
	baseURL  string
	now      func() time.Time
}

// NewAdminService constructs an AdminService. notifier may be nil.
func NewAdminService(db *gorm.DB, mailer Mailer, notifier AdminNotifier, baseURL string) *AdminService {
	return &AdminService{
		db:       db,
		mailer:   mailer,
		notifier: notifier,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PublicCardURL is the address the card QR code points to.
func (s *AdminService) PublicCardURL(slug string) string {
	return s.baseURL + "/cards/" + slug
}

// ConfirmPayment marks the card paid, issues its QR code and completes the
// latest pending payment. CR cards keep CR; everything else becomes BANK_PAID.
func (s *AdminService) ConfirmPayment(ctx context.Context, adminID, cardID uint) (*models.BusinessCard, error) {
	now := s.now()
	var card models.BusinessCard
	var previous string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findCard(tx, cardID, &card); err != nil {
			return err
		}
		previous = card.PaymentStatus

		status := models.PaymentStatusBankPaid
		if card.PaymentStatus == models.PaymentStatusCR {
			status = models.PaymentStatusCR
		}
		if err := markPaid(tx, &card, status, now); err != nil {
			return err
		}
		if err := completeLatestPending(tx, card, now); err != nil {
			return err
		}
		return writeAudit(tx, models.ActorAdmin, adminID, ActionConfirmPayment, "business_card", card.ID, map[string]interface{}{
			"from": previous,
			"to":   card.PaymentStatus,
		})
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"admin_id": adminID, "business_card_id": card.ID, "payment_status": card.PaymentStatus}).Info("payment confirmed")
	s.afterConfirm(ctx, adminID, &card)
	return &card, nil
}

// CancelPayment reverts a confirmation: BANK_PAID goes back to BANK_PENDING,
// other paid statuses to pending. QR and publish flags are cleared.
func (s *AdminService) CancelPayment(ctx context.Context, adminID, cardID uint) (*models.BusinessCard, error) {
	var card models.BusinessCard
	var previous string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findCard(tx, cardID, &card); err != nil {
			return err
		}
		previous = card.PaymentStatus

		status := card.PaymentStatus
		switch card.PaymentStatus {
		case models.PaymentStatusBankPaid:
			status = models.PaymentStatusBankPending
		case models.PaymentStatusCR:
			status = models.PaymentStatusPending
		}
		if err := markUnpaid(tx, &card, status); err != nil {
			return err
		}
		if err := revertLatestCompleted(tx, card.UserID); err != nil {
			return err
		}
		return writeAudit(tx, models.ActorAdmin, adminID, ActionCancelPayment, "business_card", card.ID, map[string]interface{}{
			"from": previous,
			"to":   card.PaymentStatus,
		})
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"admin_id": adminID, "business_card_id": card.ID, "payment_status": card.PaymentStatus}).Info("payment cancelled")
	return &card, nil
}

// UpdatePublished toggles is_published. Publishing requires an issued QR code.
func (s *AdminService) UpdatePublished(ctx context.Context, adminID, cardID uint, published bool) (*models.BusinessCard, error) {
	var card models.BusinessCard

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findCard(tx, cardID, &card); err != nil {
			return err
		}
		if published && !card.QRCodeIssued {
			return ErrQRNotIssued
		}
		if err := tx.Model(&models.BusinessCard{}).Where("id = ?", card.ID).Update("is_published", published).Error; err != nil {
			return err
		}
		card.IsPublished = published
		return writeAudit(tx, models.ActorAdmin, adminID, ActionUpdatePublished, "business_card", card.ID, map[string]interface{}{
			"is_published": published,
		})
	})
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// PaymentStatusUpdate is a bank-transfer status change from the dashboard.
type PaymentStatusUpdate struct {
	BusinessCardID uint
	PaymentStatus  string
	PaidAt         *time.Time
	ExpirationDate *time.Time
}

// UpdatePaymentStatus sets a bank-transfer card to BANK_PAID or BANK_PENDING.
// ExpirationDate becomes the next billing date of the user's subscription.
func (s *AdminService) UpdatePaymentStatus(ctx context.Context, adminID uint, in PaymentStatusUpdate) (*models.BusinessCard, error) {
	if in.PaymentStatus != models.PaymentStatusBankPaid && in.PaymentStatus != models.PaymentStatusBankPending {
		return nil, ErrInvalidStatus
	}

	now := s.now()
	paidAt := now
	if in.PaidAt != nil {
		paidAt = in.PaidAt.UTC()
	}

	var card models.BusinessCard
	var previous string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findCard(tx, in.BusinessCardID, &card); err != nil {
			return err
		}
		previous = card.PaymentStatus

		if in.PaymentStatus == models.PaymentStatusBankPaid {
			if err := markPaid(tx, &card, models.PaymentStatusBankPaid, now); err != nil {
				return err
			}
			if err := completeLatestPending(tx, card, paidAt); err != nil {
				return err
			}
		} else {
			if err := markUnpaid(tx, &card, models.PaymentStatusBankPending); err != nil {
				return err
			}
			if err := revertLatestCompleted(tx, card.UserID); err != nil {
				return err
			}
		}

		if in.ExpirationDate != nil {
			if err := setNextBillingDate(tx, card, in.ExpirationDate.UTC()); err != nil {
				return err
			}
		}

		details := map[string]interface{}{"from": previous, "to": card.PaymentStatus}
		if in.ExpirationDate != nil {
			details["expiration_date"] = in.ExpirationDate.UTC().Format(time.RFC3339)
		}
		return writeAudit(tx, models.ActorAdmin, adminID, "update_payment_status", "business_card", card.ID, details)
	})
	if err != nil {
		return nil, err
	}

	if in.PaymentStatus == models.PaymentStatusBankPaid && previous != models.PaymentStatusBankPaid {
		s.afterConfirm(ctx, adminID, &card)
	}
	return &card, nil
}

func (s *AdminService) afterConfirm(ctx context.Context, adminID uint, card *models.BusinessCard) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, card.UserID).Error; err != nil {
		logrus.WithError(err).WithField("business_card_id", card.ID).Warn("load card owner failed")
		return
	}

	if err := s.mailer.SendPaymentConfirmed(ctx, user.Email, s.PublicCardURL(card.URLSlug)); err != nil {
		logrus.WithError(err).WithField("business_card_id", card.ID).Warn("payment confirmation mail failed")
	}

	if s.notifier == nil {
		return
	}
	var admin models.Admin
	if err := s.db.WithContext(ctx).First(&admin, adminID).Error; err != nil {
		logrus.WithError(err).WithField("admin_id", adminID).Debug("admin lookup for notice failed")
	}
	if err := s.notifier.NotifyPaymentConfirmed(ctx, PaymentConfirmedNotification{
		BusinessCardID: card.ID,
		URLSlug:        card.URLSlug,
		Name:           card.Name,
		Email:          user.Email,
		PaymentStatus:  card.PaymentStatus,
		AdminEmail:     admin.Email,
	}); err != nil {
		logrus.WithError(err).WithField("business_card_id", card.ID).Warn("payment confirmation notice failed")
	}
}

func findCard(tx *gorm.DB, cardID uint, card *models.BusinessCard) error {
	err := tx.First(card, cardID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCardNotFound
	}
	return err
}

func markPaid(tx *gorm.DB, card *models.BusinessCard, status string, now time.Time) error {
	updates := map[string]interface{}{
		"payment_status": status,
		"qr_code_issued": true,
		"card_status":    models.CardStatusActive,
	}
	if card.QRCodeIssuedAt == nil {
		updates["qr_code_issued_at"] = now
		card.QRCodeIssuedAt = &now
	}
	if err := tx.Model(&models.BusinessCard{}).Where("id = ?", card.ID).Updates(updates).Error; err != nil {
		return err
	}
	card.PaymentStatus = status
	card.QRCodeIssued = true
	card.CardStatus = models.CardStatusActive
	return nil
}

func markUnpaid(tx *gorm.DB, card *models.BusinessCard, status string) error {
	if err := tx.Model(&models.BusinessCard{}).Where("id = ?", card.ID).Updates(map[string]interface{}{
		"payment_status":    status,
		"qr_code_issued":    false,
		"qr_code_issued_at": nil,
		"is_published":      false,
	}).Error; err != nil {
		return err
	}
	card.PaymentStatus = status
	card.QRCodeIssued = false
	card.QRCodeIssuedAt = nil
	card.IsPublished = false
	return nil
}

// completeLatestPending completes the newest pending payment of the card owner.
// An owner with no payment history gets a completed bank-transfer record.
func completeLatestPending(tx *gorm.DB, card models.BusinessCard, paidAt time.Time) error {
	var payment models.Payment
	err := tx.Where("user_id = ? AND payment_status = ?", card.UserID, models.PaymentPending).
		Order("id DESC").First(&payment).Error
	if err == nil {
		return tx.Model(&models.Payment{}).Where("id = ?", payment.ID).Updates(map[string]interface{}{
			"payment_status": models.PaymentCompleted,
			"paid_at":        paidAt,
		}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var count int64
	if err := tx.Model(&models.Payment{}).Where("user_id = ?", card.UserID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var user models.User
	if err := tx.First(&user, card.UserID).Error; err != nil {
		return err
	}
	paymentType := models.PaymentTypeNewUser
	if user.UserType == models.UserTypeExisting {
		paymentType = models.PaymentTypeExistingUser
	}
	return tx.Create(&models.Payment{
		UserID:         card.UserID,
		BusinessCardID: card.ID,
		PaymentType:    paymentType,
		PaymentMethod:  models.PaymentMethodBankTransfer,
		PaymentStatus:  models.PaymentCompleted,
		PaidAt:         &paidAt,
	}).Error
}

func revertLatestCompleted(tx *gorm.DB, userID uint) error {
	var payment models.Payment
	err := tx.Where("user_id = ? AND payment_status = ?", userID, models.PaymentCompleted).
		Order("id DESC").First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return tx.Model(&models.Payment{}).Where("id = ?", payment.ID).Updates(map[string]interface{}{
		"payment_status": models.PaymentPending,
		"paid_at":        nil,
	}).Error
}

// setNextBillingDate moves the live subscription forward, creating an active
// one for bank-transfer users that have none.
func setNextBillingDate(tx *gorm.DB, card models.BusinessCard, next time.Time) error {
	var sub models.Subscription
	err := tx.Where("user_id = ? AND status IN ?", card.UserID, models.LiveSubscriptionStatuses).
		Order("id DESC").First(&sub).Error
	if err == nil {
		return tx.Model(&models.Subscription{}).Where("id = ?", sub.ID).Update("next_billing_date", next).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return tx.Create(&models.Subscription{
		UserID:          card.UserID,
		BusinessCardID:  card.ID,
		Status:          models.SubscriptionActive,
		BillingCycle:    "monthly",
		NextBillingDate: &next,
	}).Error
}
