package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/middleware"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/services"
)

// MyPageHandler serves autosave and self-service cancellation.
type MyPageHandler struct {
	cards         *services.CardService
	subscriptions *services.SubscriptionService
}

// NewMyPageHandler constructs a MyPageHandler.
func NewMyPageHandler(cards *services.CardService, subscriptions *services.SubscriptionService) *MyPageHandler {
	return &MyPageHandler{cards: cards, subscriptions: subscriptions}
}

// Autosave stores a draft, creating the card on first save.
func (h *MyPageHandler) Autosave(c *fiber.Ctx) error {
	return saveCard(c, h.cards, services.SaveOptions{CreateIfMissing: true}, "下書きを保存しました")
}

type cancelRequest struct {
	CancelImmediately bool `json:"cancel_immediately"`
}

// Cancel cancels the current user's subscription.
func (h *MyPageHandler) Cancel(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "ログインが必要です")
	}

	var req cancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "リクエストの形式が正しくありません")
		}
	}

	sub, err := h.subscriptions.Cancel(c.UserContext(), userID, req.CancelImmediately)
	if err != nil {
		return serviceError(err)
	}

	message := "次回更新日に解約されます"
	if req.CancelImmediately {
		message = "解約が完了しました"
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"data": fiber.Map{
			"subscription_id":      sub.ID,
			"status":               sub.Status,
			"cancel_at_period_end": sub.CancelAtPeriodEnd,
			"cancelled_at":         sub.CancelledAt,
		},
	})
}
