package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/handlers"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	WhatsApp *handlers.WhatsAppHandler
	Chat     *handlers.ChatHandler
	Admin    *handlers.AdminHandler
	Health   *handlers.HealthHandler
}

// Security holds the webhook and admin credentials.
type Security struct {
	ValidateWebhooks bool
	TwilioAuthToken  string
	MetaAppSecret    string
	PublicURL        string
	AdminKey         string
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, h Handlers, sec Security) {
	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Motel Chatbot Backend",
			"version": h.Health.Version,
			"endpoints": fiber.Map{
				"health":  "/health",
				"chat":    "/api/chat",
				"faqs":    "/api/faqs",
				"webhook": "/webhook/whatsapp",
				"twilio":  "/webhook/twilio",
				"admin":   "/admin",
			},
		})
	})

	app.Get("/health", h.Health.Check)

	// Web chat
	api := app.Group("/api")
	api.Post("/chat", h.Chat.Send)
	api.Get("/faqs", h.Chat.ListFaqs)

	// WhatsApp webhooks
	webhook := app.Group("/webhook")
	webhook.Get("/whatsapp", h.WhatsApp.Verify)
	if sec.ValidateWebhooks {
		webhook.Post("/whatsapp", middleware.ValidateMetaSignature(sec.MetaAppSecret), h.WhatsApp.HandleMeta)
		webhook.Post("/twilio", middleware.ValidateTwilioSignature(sec.TwilioAuthToken, sec.PublicURL), h.WhatsApp.HandleTwilio)
	} else {
		webhook.Post("/whatsapp", h.WhatsApp.HandleMeta)
		webhook.Post("/twilio", h.WhatsApp.HandleTwilio)
	}

	// Admin
	admin := app.Group("/admin", middleware.RequireAdminKey(sec.AdminKey))
	admin.Post("/customers/:identity/reset", h.Admin.ResetCustomer)
	admin.Put("/faqs/:id/greeting", h.Admin.SetGreeting)
	admin.Get("/unknown-questions", h.Admin.ListUnknownQuestions)
	admin.Post("/unknown-questions/:id/reviewed", h.Admin.MarkReviewed)
	admin.Get("/reservations", h.Admin.ListReservations)
	admin.Post("/seed/reload", h.Admin.ReloadSeed)
}
