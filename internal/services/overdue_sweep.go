package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/metrics"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/models"
)

// OverdueGracePeriod is how long a lapsed subscription stays active before it expires.
const OverdueGracePeriod = 30 * 24 * time.Hour

// SweepResult is the JSON summary of one sweep run.
type SweepResult struct {
	Success              bool     `json:"success"`
	UpdatedCount         int      `json:"updated_count"`
	UpdatedBusinessCards []uint   `json:"updated_business_cards"`
	Errors               []string `json:"errors"`
}

// OverdueSweeper unpublishes cards whose billing has lapsed.
type OverdueSweeper struct {
	db       *gorm.DB
	log      *logrus.Logger
	notifier AdminNotifier
	now      func() time.Time
}

// NewOverdueSweeper constructs an OverdueSweeper. notifier may be nil.
func NewOverdueSweeper(db *gorm.DB, log *logrus.Logger, notifier AdminNotifier) *OverdueSweeper {
	return &OverdueSweeper{
		db:       db,
		log:      log,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewSweepLogger returns a text logger writing to a size-rotated file at path.
// An empty path logs to stderr.
func NewSweepLogger(path string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	if path == "" {
		log.SetOutput(os.Stderr)
		return log
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     90,
	})
	return log
}

type legacyCandidate struct {
	BusinessCardID uint
	UserID         uint
}

// Run executes both overdue passes in one transaction. Row failures are
// collected in the result and do not abort the batch.
func (s *OverdueSweeper) Run(ctx context.Context) (SweepResult, error) {
	now := s.now()
	result := SweepResult{UpdatedBusinessCards: []uint{}, Errors: []string{}}
	s.log.WithField("now", now.Format(time.RFC3339)).Info("overdue sweep started")

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		handled := map[uint]bool{}

		subs, err := s.overdueSubscriptions(tx, now)
		if err != nil {
			return fmt.Errorf("select overdue subscriptions: %w", err)
		}
		for _, sub := range subs {
			if err := ctx.Err(); err != nil {
				return err
			}
			cardID, changed, err := s.sweepSubscription(tx, sub, now)
			if err != nil {
				s.recordError(&result, fmt.Sprintf("subscription %d: %v", sub.ID, err), logrus.Fields{"subscription_id": sub.ID, "user_id": sub.UserID})
				continue
			}
			if cardID != 0 {
				handled[cardID] = true
			}
			if changed {
				s.recordUpdate(&result, cardID, "subscription")
			}
		}

		candidates, err := s.legacyCandidates(tx, now)
		if err != nil {
			return fmt.Errorf("select legacy users: %w", err)
		}
		for _, cand := range candidates {
			if err := ctx.Err(); err != nil {
				return err
			}
			if handled[cand.BusinessCardID] {
				continue
			}
			changed, err := s.sweepLegacy(tx, cand)
			if err != nil {
				s.recordError(&result, fmt.Sprintf("business card %d: %v", cand.BusinessCardID, err), logrus.Fields{"business_card_id": cand.BusinessCardID, "user_id": cand.UserID})
				continue
			}
			if changed {
				s.recordUpdate(&result, cand.BusinessCardID, "legacy")
			}
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).Error("overdue sweep rolled back")
		metrics.OverdueSweepRunsTotal.WithLabelValues("error").Inc()
		result.Success = false
		result.UpdatedCount = 0
		result.UpdatedBusinessCards = []uint{}
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}

	result.Success = true
	result.UpdatedCount = len(result.UpdatedBusinessCards)
	metrics.OverdueSweepRunsTotal.WithLabelValues("ok").Inc()
	s.log.WithFields(logrus.Fields{
		"updated_count": result.UpdatedCount,
		"errors":        len(result.Errors),
	}).Info("overdue sweep finished")

	if s.notifier != nil && result.UpdatedCount > 0 {
		if err := s.notifier.NotifySweep(ctx, result); err != nil {
			s.log.WithError(err).Warn("sweep notification failed")
		}
	}

	return result, nil
}

func (s *OverdueSweeper) overdueSubscriptions(tx *gorm.DB, now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := tx.
		Where("status = ?", models.SubscriptionActive).
		Where("next_billing_date IS NOT NULL AND next_billing_date < ?", now).
		Where(`NOT EXISTS (
			SELECT 1 FROM payments p
			WHERE p.user_id = subscriptions.user_id
			AND p.payment_status = ?
			AND p.paid_at IS NOT NULL
			AND p.paid_at >= subscriptions.next_billing_date
		)`, models.PaymentCompleted).
		Order("id ASC").
		Find(&subs).Error
	return subs, err
}

func (s *OverdueSweeper) legacyCandidates(tx *gorm.DB, now time.Time) ([]legacyCandidate, error) {
	var rows []legacyCandidate
	err := tx.Table("business_cards").
		Select("business_cards.id AS business_card_id, business_cards.user_id AS user_id").
		Joins("JOIN users ON users.id = business_cards.user_id").
		Where("users.user_type IN ?", []string{models.UserTypeNew, models.UserTypeExisting}).
		Where(`NOT EXISTS (
			SELECT 1 FROM subscriptions s
			WHERE s.user_id = users.id AND s.status IN ?
		)`, models.LiveSubscriptionStatuses).
		Where(`EXISTS (
			SELECT 1 FROM payments p
			WHERE p.user_id = users.id AND p.payment_type IN ?
		)`, []string{models.PaymentTypeNewUser, models.PaymentTypeExistingUser}).
		Where(`NOT EXISTS (
			SELECT 1 FROM payments p
			WHERE p.user_id = users.id
			AND p.payment_status = ?
			AND p.paid_at IS NOT NULL
			AND p.paid_at >= ?
		)`, models.PaymentCompleted, now.Add(-OverdueGracePeriod)).
		Order("business_cards.id ASC").
		Scan(&rows).Error
	return rows, err
}

func (s *OverdueSweeper) sweepSubscription(tx *gorm.DB, sub models.Subscription, now time.Time) (uint, bool, error) {
	var cardID uint
	changed := false

	err := tx.Transaction(func(rowTx *gorm.DB) error {
		card, err := cardForSubscription(rowTx, sub)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		reverted, err := revertLatestPayment(rowTx, sub.UserID)
		if err != nil {
			return err
		}
		if reverted != 0 {
			changed = true
			s.log.WithFields(logrus.Fields{"user_id": sub.UserID, "payment_id": reverted, "subscription_id": sub.ID}).Info("payment reverted to pending")
		}

		if card != nil {
			cardID = card.ID
			unpublished, err := unpublishCard(rowTx, card)
			if err != nil {
				return err
			}
			if unpublished {
				changed = true
				s.log.WithFields(logrus.Fields{"business_card_id": card.ID, "user_id": sub.UserID}).Info("business card unpublished")
			}
		}

		if now.Sub(*sub.NextBillingDate) > OverdueGracePeriod {
			if err := rowTx.Model(&models.Subscription{}).Where("id = ?", sub.ID).
				Update("status", models.SubscriptionExpired).Error; err != nil {
				return err
			}
			changed = true
			s.log.WithFields(logrus.Fields{"subscription_id": sub.ID, "user_id": sub.UserID}).Info("subscription expired")
		}
		return nil
	})
	return cardID, changed, err
}

func (s *OverdueSweeper) sweepLegacy(tx *gorm.DB, cand legacyCandidate) (bool, error) {
	changed := false

	err := tx.Transaction(func(rowTx *gorm.DB) error {
		reverted, err := revertLatestPayment(rowTx, cand.UserID)
		if err != nil {
			return err
		}
		if reverted != 0 {
			changed = true
			s.log.WithFields(logrus.Fields{"user_id": cand.UserID, "payment_id": reverted, "business_card_id": cand.BusinessCardID}).Info("legacy payment reverted to pending")
		}

		var card models.BusinessCard
		if err := rowTx.First(&card, cand.BusinessCardID).Error; err != nil {
			return err
		}
		unpublished, err := unpublishCard(rowTx, &card)
		if err != nil {
			return err
		}
		if unpublished {
			changed = true
			s.log.WithFields(logrus.Fields{"business_card_id": card.ID, "user_id": cand.UserID}).Info("legacy business card unpublished")
		}
		return nil
	})
	return changed, err
}

func (s *OverdueSweeper) recordUpdate(result *SweepResult, cardID uint, pass string) {
	if cardID == 0 {
		return
	}
	for _, id := range result.UpdatedBusinessCards {
		if id == cardID {
			return
		}
	}
	result.UpdatedBusinessCards = append(result.UpdatedBusinessCards, cardID)
	metrics.OverdueSweepUpdatesTotal.WithLabelValues(pass).Inc()
}

func (s *OverdueSweeper) recordError(result *SweepResult, msg string, fields logrus.Fields) {
	s.log.WithFields(fields).Error(msg)
	result.Errors = append(result.Errors, msg)
}

func cardForSubscription(tx *gorm.DB, sub models.Subscription) (*models.BusinessCard, error) {
	var card models.BusinessCard
	q := tx.Model(&models.BusinessCard{})
	if sub.BusinessCardID != 0 {
		q = q.Where("id = ?", sub.BusinessCardID)
	} else {
		q = q.Where("user_id = ?", sub.UserID)
	}
	if err := q.First(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// revertLatestPayment flips the user's most recent completed payment back to
// pending and returns its id. When a newer pending payment exists (an earlier
// revert or an open invoice) nothing changes and 0 is returned.
func revertLatestPayment(tx *gorm.DB, userID uint) (uint, error) {
	var payment models.Payment
	err := tx.Where("user_id = ? AND payment_status = ?", userID, models.PaymentCompleted).
		Order("id DESC").First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var newerPending int64
	if err := tx.Model(&models.Payment{}).
		Where("user_id = ? AND payment_status = ? AND id > ?", userID, models.PaymentPending, payment.ID).
		Count(&newerPending).Error; err != nil {
		return 0, err
	}
	if newerPending > 0 {
		return 0, nil
	}

	if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).Updates(map[string]interface{}{
		"payment_status": models.PaymentPending,
		"paid_at":        nil,
	}).Error; err != nil {
		return 0, err
	}
	return payment.ID, nil
}

func unpublishCard(tx *gorm.DB, card *models.BusinessCard) (bool, error) {
	if !card.IsPublished {
		return false, nil
	}
	if err := tx.Model(&models.BusinessCard{}).Where("id = ?", card.ID).Update("is_published", false).Error; err != nil {
		return false, err
	}
	card.IsPublished = false
	return true, nil
}
