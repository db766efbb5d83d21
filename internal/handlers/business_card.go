package handlers

import (
	"encoding/json"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/catalog"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/middleware"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/services"
)

// BusinessCardHandler serves the card owner's wizard endpoints.
type BusinessCardHandler struct {
	cards   *services.CardService
	uploads *services.UploadService
}

// NewBusinessCardHandler constructs a BusinessCardHandler.
func NewBusinessCardHandler(cards *services.CardService, uploads *services.UploadService) *BusinessCardHandler {
	return &BusinessCardHandler{cards: cards, uploads: uploads}
}

// GetCard returns the current user's card with ordered child collections.
func (h *BusinessCardHandler) GetCard(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "ログインが必要です")
	}

	card, err := h.cards.Load(c.UserContext(), userID)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": card})
}

// UpdateCard merges a partial payload into the card. Sending tech_tools
// requires at least two active tools.
func (h *BusinessCardHandler) UpdateCard(c *fiber.Ctx) error {
	return saveCard(c, h.cards, services.SaveOptions{EnforceTechToolMinimum: true}, "名刺情報を保存しました")
}

// UploadImage stores a logo, profile photo or free-input image.
func (h *BusinessCardHandler) UploadImage(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "ログインが必要です")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "ファイルを選択してください")
	}
	if limit := h.uploads.MaxBytes(); limit > 0 && fileHeader.Size > limit {
		return serviceError(services.ErrFileTooLarge)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	result, err := h.uploads.Upload(c.UserContext(), userID, c.FormValue("file_type"), data)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "アップロードしました",
		"data":    result,
	})
}

type generateURLsRequest struct {
	SelectedTools []string `json:"selected_tools"`
}

// GenerateToolURLs renders tool URLs for the current user's slug.
func (h *BusinessCardHandler) GenerateToolURLs(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "ログインが必要です")
	}

	var req generateURLsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "リクエストの形式が正しくありません")
	}
	if len(req.SelectedTools) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "テックツールを選択してください")
	}

	card, err := h.cards.Load(c.UserContext(), userID)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    catalog.GenerateToolURLs(req.SelectedTools, card.URLSlug),
	})
}

// PublicCard returns a published card by slug.
func (h *BusinessCardHandler) PublicCard(c *fiber.Ctx) error {
	card, err := h.cards.LoadPublished(c.UserContext(), c.Params("slug"))
	if err != nil {
		return serviceError(err)
	}
	card.User = nil

	return c.JSON(fiber.Map{"success": true, "data": card})
}

func saveCard(c *fiber.Ctx, cards *services.CardService, opts services.SaveOptions, message string) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "ログインが必要です")
	}

	var payload services.CardPayload
	if err := json.Unmarshal(c.Body(), &payload); err != nil || payload == nil {
		return fiber.NewError(fiber.StatusBadRequest, "リクエストの形式が正しくありません")
	}

	card, err := cards.Save(c.UserContext(), userID, payload, opts)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"data": fiber.Map{
			"business_card_id": card.ID,
			"url_slug":         card.URLSlug,
			"card_status":      card.CardStatus,
			"updated_at":       card.UpdatedAt,
		},
	})
}
