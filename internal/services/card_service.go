package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/catalog"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/metrics"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/models"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/utils"
)

// PlaceholderCardName is stored on cards created lazily by autosave.
const PlaceholderCardName = "名称未設定"

// CardPayload is a partial card update keyed by column name. Only keys that
// are present are applied; a JSON null counts as present.
type CardPayload map[string]json.RawMessage

// SaveOptions selects between the update and autosave variants.
type SaveOptions struct {
	CreateIfMissing        bool
	EnforceTechToolMinimum bool
}

// GreetingInput is one greeting entry of a payload.
type GreetingInput struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	DisplayOrder *int   `json:"display_order"`
}

// TechToolInput is one tech tool entry of a payload.
type TechToolInput struct {
	ToolType     string `json:"tool_type"`
	ToolURL      string `json:"tool_url"`
	DisplayOrder *int   `json:"display_order"`
	IsActive     *bool  `json:"is_active"`
}

// CommunicationMethodInput is one messaging app or SNS entry of a payload.
type CommunicationMethodInput struct {
	MethodType   string `json:"method_type"`
	MethodURL    string `json:"method_url"`
	MethodID     string `json:"method_id"`
	DisplayOrder *int   `json:"display_order"`
	IsActive     *bool  `json:"is_active"`
}

var (
	imageFields    = []string{"profile_photo", "company_logo"}
	requiredFields = []string{"name", "mobile_phone"}
	nullableFields = []string{
		"name_romaji",
		"company_name",
		"company_postal_code",
		"company_address",
		"company_phone",
		"company_website",
		"real_estate_license_prefecture",
		"real_estate_license_renewal_number",
		"real_estate_license_registration_number",
		"branch_department",
		"position",
		"birth_date",
		"current_residence",
		"hometown",
		"alma_mater",
		"qualifications",
		"hobbies",
	}
)

// CardService merges partial payloads into a user's business card.
type CardService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCardService constructs a CardService.
func NewCardService(db *gorm.DB) *CardService {
	return &CardService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Load returns the user's card with ordered child collections.
func (s *CardService) Load(ctx context.Context, userID uint) (*models.BusinessCard, error) {
	return loadCard(s.db.WithContext(ctx), "user_id = ?", userID)
}

// LoadPublished returns a published card by slug.
func (s *CardService) LoadPublished(ctx context.Context, slug string) (*models.BusinessCard, error) {
	return loadCard(s.db.WithContext(ctx), "url_slug = ? AND is_published = ?", slug, true)
}

// Save applies payload to the user's card in one transaction and returns the
// stored card.
func (s *CardService) Save(ctx context.Context, userID uint, payload CardPayload, opts SaveOptions) (*models.BusinessCard, error) {
	mode := "update"
	if opts.CreateIfMissing {
		mode = "autosave"
	}

	card, err := s.save(ctx, userID, payload, opts)
	if err != nil {
		metrics.CardSavesTotal.WithLabelValues(mode, "error").Inc()
		return nil, err
	}
	metrics.CardSavesTotal.WithLabelValues(mode, "ok").Inc()
	return card, nil
}

func (s *CardService) save(ctx context.Context, userID uint, payload CardPayload, opts SaveOptions) (*models.BusinessCard, error) {
	updates, err := buildCardUpdates(payload)
	if err != nil {
		return nil, err
	}

	greetings, hasGreetings, err := decodeList[GreetingInput](payload, "greetings")
	if err != nil {
		return nil, err
	}
	tools, hasTools, err := decodeList[TechToolInput](payload, "tech_tools")
	if err != nil {
		return nil, err
	}
	methods, hasMethods, err := decodeList[CommunicationMethodInput](payload, "communication_methods")
	if err != nil {
		return nil, err
	}

	if hasTools && opts.EnforceTechToolMinimum && countActiveTools(tools) < catalog.MinActiveTechTools {
		return nil, ErrInsufficientTechTools
	}

	now := s.now()
	var cardID uint

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var card models.BusinessCard
		err := tx.Where("user_id = ?", userID).First(&card).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if !opts.CreateIfMissing {
				return ErrCardNotFound
			}
			card = models.BusinessCard{
				UserID:        userID,
				URLSlug:       fmt.Sprintf("user_%d_%d", userID, now.Unix()),
				Name:          PlaceholderCardName,
				CardStatus:    models.CardStatusDraft,
				PaymentStatus: models.PaymentStatusPending,
			}
			if err := tx.Create(&card).Error; err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"user_id": userID, "url_slug": card.URLSlug}).Info("business card created by autosave")
		} else if err != nil {
			return err
		}
		cardID = card.ID

		updates["card_status"] = models.CardStatusDraft
		updates["updated_at"] = now
		if err := tx.Model(&models.BusinessCard{}).Where("id = ?", card.ID).Updates(updates).Error; err != nil {
			return err
		}

		if hasGreetings {
			if err := ReplaceGreetings(tx, card.ID, greetings); err != nil {
				return err
			}
		}
		if hasTools {
			if err := ReplaceTechTools(tx, card.ID, card.URLSlug, tools); err != nil {
				return err
			}
		}
		if hasMethods {
			if err := ReplaceCommunicationMethods(tx, card.ID, methods); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return loadCard(s.db.WithContext(ctx), "id = ?", cardID)
}

// ReplaceGreetings deletes every greeting of the card and inserts items in
// order. Entries lacking a title or content are skipped.
func ReplaceGreetings(tx *gorm.DB, cardID uint, items []GreetingInput) error {
	if err := tx.Where("business_card_id = ?", cardID).Delete(&models.GreetingMessage{}).Error; err != nil {
		return err
	}

	rows := make([]models.GreetingMessage, 0, len(items))
	for _, item := range items {
		title := utils.SanitizeText(item.Title)
		content := utils.SanitizeText(item.Content)
		if title == "" || content == "" {
			continue
		}
		rows = append(rows, models.GreetingMessage{
			BusinessCardID: cardID,
			Title:          title,
			Content:        content,
			DisplayOrder:   orderOr(item.DisplayOrder, len(rows)),
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

// ReplaceTechTools deletes every tool of the card and inserts items in order.
// Unknown tool types are skipped and missing URLs are derived from slug.
func ReplaceTechTools(tx *gorm.DB, cardID uint, slug string, items []TechToolInput) error {
	if err := tx.Where("business_card_id = ?", cardID).Delete(&models.TechToolSelection{}).Error; err != nil {
		return err
	}

	rows := make([]models.TechToolSelection, 0, len(items))
	for _, item := range items {
		toolType := strings.TrimSpace(item.ToolType)
		if !catalog.IsTechTool(toolType) {
			continue
		}
		toolURL := strings.TrimSpace(item.ToolURL)
		if toolURL == "" {
			toolURL = catalog.TechToolURL(toolType, slug)
		}
		rows = append(rows, models.TechToolSelection{
			BusinessCardID: cardID,
			ToolType:       toolType,
			ToolURL:        toolURL,
			DisplayOrder:   orderOr(item.DisplayOrder, len(rows)),
			IsActive:       item.IsActive == nil || *item.IsActive,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

// ReplaceCommunicationMethods deletes every method of the card and inserts
// items in order. chatwork keeps only method_id, every other type only method_url.
func ReplaceCommunicationMethods(tx *gorm.DB, cardID uint, items []CommunicationMethodInput) error {
	if err := tx.Where("business_card_id = ?", cardID).Delete(&models.CommunicationMethod{}).Error; err != nil {
		return err
	}

	rows := make([]models.CommunicationMethod, 0, len(items))
	for _, item := range items {
		methodType := strings.TrimSpace(item.MethodType)
		if !catalog.IsCommunicationMethod(methodType) {
			continue
		}
		row := models.CommunicationMethod{
			BusinessCardID: cardID,
			MethodType:     methodType,
			IsActive:       item.IsActive == nil || *item.IsActive,
			DisplayOrder:   orderOr(item.DisplayOrder, len(rows)),
		}
		if catalog.IsIDBasedMethod(methodType) {
			id := utils.SanitizeText(item.MethodID)
			if id == "" {
				id = utils.SanitizeText(item.MethodURL)
			}
			row.MethodID = nonEmpty(id)
		} else {
			row.MethodURL = nonEmpty(utils.SanitizeText(item.MethodURL))
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

func buildCardUpdates(payload CardPayload) (map[string]interface{}, error) {
	updates := map[string]interface{}{}

	for _, field := range imageFields {
		value, present, err := decodeScalar(payload, field)
		if err != nil {
			return nil, err
		}
		if present && value != "" {
			updates[field] = value
		}
	}

	for _, field := range requiredFields {
		value, present, err := decodeScalar(payload, field)
		if err != nil {
			return nil, err
		}
		if value = utils.SanitizeText(value); present && value != "" {
			updates[field] = value
		}
	}

	for _, field := range nullableFields {
		value, present, err := decodeScalar(payload, field)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		if value = utils.SanitizeText(value); value == "" {
			updates[field] = nil
		} else {
			updates[field] = value
		}
	}

	if raw, ok := payload["free_input"]; ok {
		if value, keep := normalizeFreeInput(raw); keep {
			updates["free_input"] = value
		}
	}

	return updates, nil
}

// decodeScalar reads a string-like value. Numbers keep their literal text and
// null reads as "".
func decodeScalar(payload CardPayload, key string) (string, bool, error) {
	raw, ok := payload[key]
	if !ok {
		return "", false, nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", true, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", true, fmt.Errorf("%w: %s", ErrInvalidPayload, key)
		}
		return s, true, nil
	case '{', '[':
		return "", true, fmt.Errorf("%w: %s", ErrInvalidPayload, key)
	default:
		return string(raw), true, nil
	}
}

// normalizeFreeInput accepts an embedded JSON document or a string holding
// one. Empty values clear the column; invalid JSON is ignored.
func normalizeFreeInput(raw json.RawMessage) (interface{}, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, true
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, true
		}
		raw = json.RawMessage(s)
	}

	if !json.Valid(raw) {
		return nil, false
	}
	return datatypes.JSON(raw), true
}

func decodeList[T any](payload CardPayload, key string) ([]T, bool, error) {
	raw, ok := payload[key]
	if !ok {
		return nil, false, nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, true, nil
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, true, fmt.Errorf("%w: %s", ErrInvalidPayload, key)
	}
	return items, true, nil
}

func countActiveTools(items []TechToolInput) int {
	seen := map[string]bool{}
	for _, item := range items {
		toolType := strings.TrimSpace(item.ToolType)
		if !catalog.IsTechTool(toolType) || (item.IsActive != nil && !*item.IsActive) {
			continue
		}
		seen[toolType] = true
	}
	return len(seen)
}

func loadCard(db *gorm.DB, query string, args ...interface{}) (*models.BusinessCard, error) {
	var card models.BusinessCard
	err := db.
		Preload("Greetings", func(db *gorm.DB) *gorm.DB { return db.Order("display_order ASC, id ASC") }).
		Preload("TechTools", func(db *gorm.DB) *gorm.DB { return db.Order("display_order ASC, id ASC") }).
		Preload("CommunicationMethods", func(db *gorm.DB) *gorm.DB { return db.Order("display_order ASC, id ASC") }).
		Where(query, args...).
		First(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func orderOr(order *int, fallback int) int {
	if order != nil {
		return *order
	}
	return fallback
}

func nonEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
