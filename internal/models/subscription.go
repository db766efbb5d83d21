package models

import (
	"time"

	"gorm.io/datatypes"
)

// Subscription statuses.
const (
	SubscriptionActive     = "active"
	SubscriptionTrialing   = "trialing"
	SubscriptionPastDue    = "past_due"
	SubscriptionIncomplete = "incomplete"
	SubscriptionCanceled   = "canceled"
	SubscriptionExpired    = "expired"
)

// LiveSubscriptionStatuses are the statuses a user can still cancel from.
var LiveSubscriptionStatuses = []string{SubscriptionActive, SubscriptionTrialing, SubscriptionPastDue}

// Subscription is the recurring billing record of a card.
type Subscription struct {
	BaseModel
	UserID               uint       `gorm:"index;not null" json:"user_id"`
	BusinessCardID       uint       `gorm:"index" json:"business_card_id"`
	StripeSubscriptionID *string    `gorm:"size:255;index" json:"stripe_subscription_id"`
	StripeCustomerID     *string    `gorm:"size:255" json:"stripe_customer_id"`
	Status               string     `gorm:"size:16;index;not null" json:"status"`
	Amount               int64      `json:"amount"`
	BillingCycle         string     `gorm:"size:16;default:monthly" json:"billing_cycle"`
	NextBillingDate      *time.Time `gorm:"index" json:"next_billing_date"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	CancelledAt          *time.Time `json:"cancelled_at"`
}

// Payment statuses.
const (
	PaymentCompleted = "completed"
	PaymentPending   = "pending"
)

// Payment types. new_user and existing_user mark initial sign-up payments.
const (
	PaymentTypeNewUser      = "new_user"
	PaymentTypeExistingUser = "existing_user"
	PaymentTypeRenewal      = "renewal"
)

// Payment methods.
const (
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCreditCard   = "credit_card"
)

// Payment is one historical charge or bank transfer.
type Payment struct {
	BaseModel
	UserID                uint       `gorm:"index;not null" json:"user_id"`
	BusinessCardID        uint       `gorm:"index" json:"business_card_id"`
	Amount                int64      `json:"amount"`
	PaymentType           string     `gorm:"size:32" json:"payment_type"`
	PaymentMethod         string     `gorm:"size:32" json:"payment_method"`
	PaymentStatus         string     `gorm:"size:16;index;not null" json:"payment_status"`
	PaidAt                *time.Time `gorm:"index" json:"paid_at"`
	StripePaymentIntentID *string    `gorm:"size:255" json:"stripe_payment_intent_id"`
}

// Audit actor types.
const (
	ActorUser   = "user"
	ActorAdmin  = "admin"
	ActorSystem = "system"
)

// AuditLog records state changes made by users, admins and batch jobs.
type AuditLog struct {
	BaseModel
	ActorType  string         `gorm:"size:16;not null" json:"actor_type"`
	ActorID    uint           `json:"actor_id"`
	Action     string         `gorm:"size:64;index;not null" json:"action"`
	TargetType string         `gorm:"size:32" json:"target_type"`
	TargetID   uint           `json:"target_id"`
	Details    datatypes.JSON `json:"details"`
}
