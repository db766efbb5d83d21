package models

import (
	"time"

	"gorm.io/datatypes"
)

// Card lifecycle.
const (
	CardStatusDraft    = "draft"
	CardStatusActive   = "active"
	CardStatusCanceled = "canceled"
)

// Card payment statuses. CR and BANK_PAID are the paid variants.
const (
	PaymentStatusCR          = "CR"
	PaymentStatusBankPaid    = "BANK_PAID"
	PaymentStatusBankPending = "BANK_PENDING"
	PaymentStatusPending     = "pending"
)

// IsPaidStatus reports whether a card payment status counts as paid.
func IsPaidStatus(status string) bool {
	return status == PaymentStatusCR || status == PaymentStatusBankPaid
}

// BusinessCard is the public profile of a single user.
type BusinessCard struct {
	BaseModel
	UserID     uint    `gorm:"uniqueIndex;not null" json:"user_id"`
	URLSlug    string  `gorm:"uniqueIndex;size:128;not null" json:"url_slug"`
	Name       string  `gorm:"size:255" json:"name"`
	NameRomaji *string `gorm:"size:255" json:"name_romaji"`

	CompanyName                         *string `gorm:"size:255" json:"company_name"`
	CompanyLogo                         *string `gorm:"size:512" json:"company_logo"`
	CompanyPostalCode                   *string `gorm:"size:16" json:"company_postal_code"`
	CompanyAddress                      *string `gorm:"size:512" json:"company_address"`
	CompanyPhone                        *string `gorm:"size:32" json:"company_phone"`
	CompanyWebsite                      *string `gorm:"size:512" json:"company_website"`
	RealEstateLicensePrefecture         *string `gorm:"size:32" json:"real_estate_license_prefecture"`
	RealEstateLicenseRenewalNumber      *string `gorm:"size:16" json:"real_estate_license_renewal_number"`
	RealEstateLicenseRegistrationNumber *string `gorm:"size:32" json:"real_estate_license_registration_number"`
	BranchDepartment                    *string `gorm:"size:255" json:"branch_department"`
	Position                            *string `gorm:"size:255" json:"position"`

	MobilePhone      string         `gorm:"size:32" json:"mobile_phone"`
	BirthDate        *string        `gorm:"size:10" json:"birth_date"`
	CurrentResidence *string        `gorm:"size:255" json:"current_residence"`
	Hometown         *string        `gorm:"size:255" json:"hometown"`
	AlmaMater        *string        `gorm:"size:255" json:"alma_mater"`
	Qualifications   *string        `gorm:"size:512" json:"qualifications"`
	Hobbies          *string        `gorm:"type:text" json:"hobbies"`
	FreeInput        datatypes.JSON `json:"free_input"`
	ProfilePhoto     *string        `gorm:"size:512" json:"profile_photo"`

	CardStatus     string     `gorm:"size:16;default:draft;index" json:"card_status"`
	PaymentStatus  string     `gorm:"size:16;default:pending;index" json:"payment_status"`
	IsPublished    bool       `gorm:"default:false" json:"is_published"`
	QRCodeIssued   bool       `gorm:"column:qr_code_issued;default:false" json:"qr_code_issued"`
	QRCodeIssuedAt *time.Time `gorm:"column:qr_code_issued_at" json:"qr_code_issued_at"`

	User                 *User                 `json:"user,omitempty"`
	Greetings            []GreetingMessage     `json:"greetings"`
	TechTools            []TechToolSelection   `json:"tech_tools"`
	CommunicationMethods []CommunicationMethod `json:"communication_methods"`
}

// GreetingMessage is one ordered greeting block on the card header.
type GreetingMessage struct {
	BaseModel
	BusinessCardID uint   `gorm:"index;not null" json:"business_card_id"`
	Title          string `gorm:"size:255" json:"title"`
	Content        string `gorm:"type:text" json:"content"`
	DisplayOrder   int    `json:"display_order"`
}

// TechToolSelection links a card to one of the integrated web tools.
type TechToolSelection struct {
	BaseModel
	BusinessCardID uint   `gorm:"index;not null" json:"business_card_id"`
	ToolType       string `gorm:"size:16;not null" json:"tool_type"`
	ToolURL        string `gorm:"size:512" json:"tool_url"`
	DisplayOrder   int    `json:"display_order"`
	IsActive       bool   `json:"is_active"`
}

// CommunicationMethod is a messaging app or SNS entry on the card.
type CommunicationMethod struct {
	BaseModel
	BusinessCardID uint    `gorm:"index;not null" json:"business_card_id"`
	MethodType     string  `gorm:"size:16;not null" json:"method_type"`
	MethodURL      *string `gorm:"size:512" json:"method_url"`
	MethodID       *string `gorm:"size:255" json:"method_id"`
	IsActive       bool    `json:"is_active"`
	DisplayOrder   int     `json:"display_order"`
}

// SlugCounter hands out sequential public slugs. There is a single row.
type SlugCounter struct {
	ID        uint `gorm:"primaryKey"`
	NextValue int  `gorm:"not null"`
}
