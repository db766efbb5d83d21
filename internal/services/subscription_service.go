package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/models"
)

// SubscriptionService handles user-initiated cancellation.
type SubscriptionService struct {
	db       *gorm.DB
	provider PaymentProvider
	now      func() time.Time
}

// NewSubscriptionService constructs a SubscriptionService.
func NewSubscriptionService(db *gorm.DB, provider PaymentProvider) *SubscriptionService {
	return &SubscriptionService{db: db, provider: provider, now: func() time.Time { return time.Now().UTC() }}
}

// Cancel cancels the user's live subscription at the provider and locally.
// The provider call runs inside the transaction so a provider failure leaves
// the database untouched.
func (s *SubscriptionService) Cancel(ctx context.Context, userID uint, immediately bool) (*models.Subscription, error) {
	var sub models.Subscription
	now := s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND status IN ?", userID, models.LiveSubscriptionStatuses).
			Order("id DESC").
			First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoActiveSubscription
		}
		if err != nil {
			return err
		}

		if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID != "" {
			if err := s.provider.CancelSubscription(ctx, *sub.StripeSubscriptionID, immediately); err != nil {
				return fmt.Errorf("cancel at provider: %w", err)
			}
		}

		sub.Status = models.SubscriptionCanceled
		sub.CancelAtPeriodEnd = !immediately
		sub.CancelledAt = &now
		if err := tx.Model(&models.Subscription{}).Where("id = ?", sub.ID).Updates(map[string]interface{}{
			"status":               sub.Status,
			"cancel_at_period_end": sub.CancelAtPeriodEnd,
			"cancelled_at":         now,
		}).Error; err != nil {
			return err
		}

		cardUpdates := map[string]interface{}{"is_published": false}
		if immediately {
			cardUpdates["card_status"] = models.CardStatusCanceled
		}
		if err := tx.Model(&models.BusinessCard{}).Where("user_id = ?", userID).Updates(cardUpdates).Error; err != nil {
			return err
		}

		if immediately {
			if err := tx.Model(&models.User{}).Where("id = ?", userID).
				Update("status", models.UserStatusCancelled).Error; err != nil {
				return err
			}
		}

		return writeAudit(tx, models.ActorUser, userID, "subscription_cancel", "subscription", sub.ID, map[string]interface{}{
			"cancel_immediately": immediately,
		})
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":         userID,
		"subscription_id": sub.ID,
		"immediately":     immediately,
	}).Info("subscription cancelled")
	return &sub, nil
}
