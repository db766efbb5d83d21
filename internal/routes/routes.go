package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/config"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/handlers"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/middleware"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/services"
)

// Dependencies are the outbound collaborators shared by the handlers.
type Dependencies struct {
	Mailer   services.Mailer
	Notifier services.AdminNotifier
	Storage  services.Storage
	Provider services.PaymentProvider
	Sweeper  services.SweepRunner
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, deps Dependencies) {
	cardService := services.NewCardService(db)
	authService := services.NewAuthService(db, deps.Mailer, cfg.AppBaseURL)
	adminService := services.NewAdminService(db, deps.Mailer, deps.Notifier, cfg.AppBaseURL)
	subscriptionService := services.NewSubscriptionService(db, deps.Provider)
	uploadService := services.NewUploadService(deps.Storage, cfg.Storage.MaxUploadBytes)

	authHandler := handlers.NewAuthHandler(authService, cfg)
	passwordResetHandler := handlers.NewPasswordResetHandler(authService)
	cardHandler := handlers.NewBusinessCardHandler(cardService, uploadService)
	myPageHandler := handlers.NewMyPageHandler(cardService, subscriptionService)
	adminHandler := handlers.NewAdminHandler(db, adminService, deps.Sweeper)

	if cfg.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	if cfg.Storage.Provider != "s3" {
		app.Static("/"+cfg.Storage.PublicPrefix, cfg.Storage.LocalDir)
	}

	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "message": "ok"})
	})

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/logout", authHandler.Logout)
	auth.Get("/verify", authHandler.Verify)
	auth.Post("/verify", authHandler.Verify)
	auth.Post("/resend-verification", authHandler.ResendVerification)
	auth.Post("/forgot-password", passwordResetHandler.ForgotPassword)
	auth.Post("/reset-password", passwordResetHandler.ResetPassword)

	// Public card page behind the QR code
	api.Get("/cards/:slug", cardHandler.PublicCard)

	// Protected routes. The session check is attached per route so it never
	// wraps /api/admin.
	requireUser := middleware.AuthMiddleware(cfg)

	api.Get("/business-card", requireUser, cardHandler.GetCard)
	api.Post("/business-card/update", requireUser, cardHandler.UpdateCard)
	api.Post("/business-card/upload", requireUser, cardHandler.UploadImage)
	api.Post("/tech-tools/generate-urls", requireUser, cardHandler.GenerateToolURLs)

	api.Post("/mypage/autosave", requireUser, myPageHandler.Autosave)
	api.Post("/mypage/cancel", requireUser, myPageHandler.Cancel)

	// Admin routes
	api.Post("/admin/login", authHandler.AdminLogin)
	api.Post("/admin/logout", authHandler.AdminLogout)

	admin := api.Group("/admin", middleware.AdminMiddleware(cfg))
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/users", adminHandler.ListUsers)
	admin.Post("/users", adminHandler.UsersAction)
	admin.Post("/update-payment-status", adminHandler.UpdatePaymentStatus)
	admin.Post("/check-overdue-payments", adminHandler.CheckOverduePayments)
}
