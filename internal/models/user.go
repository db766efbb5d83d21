package models

import (
	"time"
)

// User types decide pricing and which overdue rules apply.
const (
	UserTypeNew      = "new"
	UserTypeExisting = "existing"
	UserTypeFree     = "free"
)

// User account lifecycle.
const (
	UserStatusPending   = "pending"
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusCancelled = "cancelled"
)

// User represents a registered real-estate agent.
type User struct {
	BaseModel
	Email                      string        `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash               string        `json:"-"`
	Phone                      string        `gorm:"size:32" json:"phone"`
	UserType                   string        `gorm:"size:16;default:new" json:"user_type"`
	Status                     string        `gorm:"size:16;default:pending;index" json:"status"`
	VerificationToken          *string       `gorm:"size:64;index" json:"-"`
	VerificationTokenExpiresAt *time.Time    `json:"-"`
	EmailVerifiedAt            *time.Time    `json:"email_verified_at"`
	ResetToken                 *string       `gorm:"size:64;index" json:"-"`
	ResetTokenExpiresAt        *time.Time    `json:"-"`
	ResetTokenUsedAt           *time.Time    `json:"-"`
	LastLoginAt                *time.Time    `json:"last_login_at"`
	BusinessCard               *BusinessCard `json:"business_card,omitempty"`
}

// EmailInvitation pre-assigns a role to an email address before registration.
type EmailInvitation struct {
	BaseModel
	Email     string     `gorm:"index;size:255;not null" json:"email"`
	Token     string     `gorm:"uniqueIndex;size:64;not null" json:"token"`
	RoleType  string     `gorm:"size:16;not null" json:"role_type"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
}

// Admin roles.
const (
	AdminRoleAdmin  = "admin"
	AdminRoleClient = "client"
)

// Admin is an operator of the admin dashboard.
type Admin struct {
	BaseModel
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `gorm:"size:16;default:admin" json:"role"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}
