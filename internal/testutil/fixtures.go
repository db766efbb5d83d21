package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/models"
)

// CreateUserWithCard inserts an active user of userType and a draft card.
func CreateUserWithCard(t *testing.T, db *gorm.DB, email, userType string) (models.User, models.BusinessCard) {
	t.Helper()

	user := models.User{
		Email:        email,
		PasswordHash: "x",
		UserType:     userType,
		Status:       models.UserStatusActive,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	card := models.BusinessCard{
		UserID:        user.ID,
		URLSlug:       fmt.Sprintf("%05d", user.ID),
		Name:          "山田 太郎",
		CardStatus:    models.CardStatusDraft,
		PaymentStatus: models.PaymentStatusPending,
	}
	if err := db.Create(&card).Error; err != nil {
		t.Fatalf("create card: %v", err)
	}

	return user, card
}

// CreatePayment inserts a payment for the user's card. paidAt may be nil.
func CreatePayment(t *testing.T, db *gorm.DB, card models.BusinessCard, paymentType, status string, paidAt *time.Time) models.Payment {
	t.Helper()

	payment := models.Payment{
		UserID:         card.UserID,
		BusinessCardID: card.ID,
		Amount:         5500,
		PaymentType:    paymentType,
		PaymentMethod:  models.PaymentMethodBankTransfer,
		PaymentStatus:  status,
		PaidAt:         paidAt,
	}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("create payment: %v", err)
	}
	return payment
}

// TimePtr returns a pointer to t truncated to the second in UTC.
func TimePtr(t time.Time) *time.Time {
	v := t.UTC().Truncate(time.Second)
	return &v
}
