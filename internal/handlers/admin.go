package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/middleware"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/models"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/services"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/utils"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db      *gorm.DB
	admin   *services.AdminService
	sweeper services.SweepRunner
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, admin *services.AdminService, sweeper services.SweepRunner) *AdminHandler {
	return &AdminHandler{db: db, admin: admin, sweeper: sweeper}
}

// DashboardStats returns card counts for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}

	var totalCards int64
	if err := db.Model(&models.BusinessCard{}).Count(&totalCards).Error; err != nil {
		return err
	}

	type statusCount struct {
		PaymentStatus string
		Count         int64
	}
	var statusCounts []statusCount
	if err := db.Model(&models.BusinessCard{}).
		Select("payment_status, count(*) as count").
		Group("payment_status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}

	cardsByPaymentStatus := make(map[string]int64)
	for _, sc := range statusCounts {
		cardsByPaymentStatus[sc.PaymentStatus] = sc.Count
	}

	var published int64
	if err := db.Model(&models.BusinessCard{}).Where("is_published = ?", true).Count(&published).Error; err != nil {
		return err
	}

	var qrIssued int64
	if err := db.Model(&models.BusinessCard{}).Where("qr_code_issued = ?", true).Count(&qrIssued).Error; err != nil {
		return err
	}

	var activeSubscriptions int64
	if err := db.Model(&models.Subscription{}).
		Where("status IN ?", models.LiveSubscriptionStatuses).
		Count(&activeSubscriptions).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_users":             totalUsers,
			"total_cards":             totalCards,
			"published_cards":         published,
			"qr_issued_cards":         qrIssued,
			"active_subscriptions":    activeSubscriptions,
			"cards_by_payment_status": cardsByPaymentStatus,
		},
	})
}

type adminCardRow struct {
	BusinessCardID uint       `json:"business_card_id"`
	UserID         uint       `json:"user_id"`
	Email          string     `json:"email"`
	UserType       string     `json:"user_type"`
	UserStatus     string     `json:"user_status"`
	URLSlug        string     `json:"url_slug"`
	Name           string     `json:"name"`
	CompanyName    *string    `json:"company_name"`
	PaymentStatus  string     `json:"payment_status"`
	CardStatus     string     `json:"card_status"`
	IsPublished    bool       `json:"is_published"`
	QRCodeIssued   bool       `json:"qr_code_issued"`
	QRCodeIssuedAt *time.Time `json:"qr_code_issued_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ListUsers returns cards joined with their owners, with pagination, search
// and a payment status filter.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).
		Table("business_cards").
		Joins("JOIN users ON users.id = business_cards.user_id")

	if status := c.Query("payment_status"); status != "" {
		query = query.Where("business_cards.payment_status = ?", status)
	}

	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"LOWER(users.email) LIKE ? OR LOWER(business_cards.name) LIKE ? OR LOWER(business_cards.company_name) LIKE ? OR LOWER(business_cards.url_slug) LIKE ?",
			like, like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var rows []adminCardRow
	if err := query.Select(`business_cards.id AS business_card_id, business_cards.user_id,
		users.email, users.user_type, users.status AS user_status,
		business_cards.url_slug, business_cards.name, business_cards.company_name,
		business_cards.payment_status, business_cards.card_status, business_cards.is_published,
		business_cards.qr_code_issued, business_cards.qr_code_issued_at,
		business_cards.created_at, business_cards.updated_at`).
		Order("business_cards.id desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Scan(&rows).Error; err != nil {
		return err
	}
	if rows == nil {
		rows = []adminCardRow{}
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       rows,
		"pagination": pg.Meta(total),
	})
}

type userActionRequest struct {
	BusinessCardID uint   `json:"business_card_id" validate:"required"`
	Action         string `json:"action" validate:"required,oneof=confirm_payment cancel_payment update_published"`
	IsPublished    *bool  `json:"is_published"`
}

// UsersAction applies a payment or publish action to one card.
func (h *AdminHandler) UsersAction(c *fiber.Ctx) error {
	adminID, ok := middleware.GetCurrentAdminID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "管理者ログインが必要です")
	}

	var req userActionRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.UserContext()
	var (
		card    *models.BusinessCard
		err     error
		message string
	)
	switch req.Action {
	case services.ActionConfirmPayment:
		card, err = h.admin.ConfirmPayment(ctx, adminID, req.BusinessCardID)
		message = "入金を確認しました"
	case services.ActionCancelPayment:
		card, err = h.admin.CancelPayment(ctx, adminID, req.BusinessCardID)
		message = "入金確認を取り消しました"
	case services.ActionUpdatePublished:
		if req.IsPublished == nil {
			return fiber.NewError(fiber.StatusBadRequest, "公開状態を指定してください")
		}
		card, err = h.admin.UpdatePublished(ctx, adminID, req.BusinessCardID, *req.IsPublished)
		message = "公開状態を更新しました"
	default:
		err = services.ErrUnknownAction
	}
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    cardStatusData(card),
	})
}

type paymentStatusRequest struct {
	BusinessCardID uint   `json:"business_card_id" validate:"required"`
	PaymentStatus  string `json:"payment_status" validate:"required,oneof=BANK_PAID BANK_PENDING"`
	PaidAt         string `json:"paid_at"`
	ExpirationDate string `json:"expiration_date"`
}

// UpdatePaymentStatus toggles a bank-transfer card between paid and pending.
func (h *AdminHandler) UpdatePaymentStatus(c *fiber.Ctx) error {
	adminID, ok := middleware.GetCurrentAdminID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "管理者ログインが必要です")
	}

	var req paymentStatusRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	paidAt, err := parseDate(req.PaidAt)
	if err != nil {
		return err
	}
	expiration, err := parseDate(req.ExpirationDate)
	if err != nil {
		return err
	}

	card, err := h.admin.UpdatePaymentStatus(c.UserContext(), adminID, services.PaymentStatusUpdate{
		BusinessCardID: req.BusinessCardID,
		PaymentStatus:  req.PaymentStatus,
		PaidAt:         paidAt,
		ExpirationDate: expiration,
	})
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "支払いステータスを更新しました",
		"data":    cardStatusData(card),
	})
}

// CheckOverduePayments runs the overdue sweep on demand.
func (h *AdminHandler) CheckOverduePayments(c *fiber.Ctx) error {
	result, err := h.sweeper.Run(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "未払いチェックが完了しました",
		"data": fiber.Map{
			"updated_count":          result.UpdatedCount,
			"updated_business_cards": result.UpdatedBusinessCards,
			"errors":                 result.Errors,
		},
	})
}

func cardStatusData(card *models.BusinessCard) fiber.Map {
	return fiber.Map{
		"business_card_id":  card.ID,
		"payment_status":    card.PaymentStatus,
		"card_status":       card.CardStatus,
		"is_published":      card.IsPublished,
		"qr_code_issued":    card.QRCodeIssued,
		"qr_code_issued_at": card.QRCodeIssuedAt,
	}
}
