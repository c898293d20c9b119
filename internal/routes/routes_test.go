package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/handlers"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/storage"
)

type echoProcessor struct{}

func (echoProcessor) Process(_ context.Context, in models.InboundMessage) (models.Payload, error) {
	return models.Text(in.Text), nil
}

type noopResetter struct{}

func (noopResetter) ResetCustomer(context.Context, string) error { return nil }

func newApp(sec Security) *fiber.App {
	store := storage.NewMemoryStore()
	app := fiber.New()
	SetupRoutes(app, Handlers{
		WhatsApp: handlers.NewWhatsAppHandler(echoProcessor{}, "verify"),
		Chat:     handlers.NewChatHandler(echoProcessor{}, store, nil),
		Admin:    handlers.NewAdminHandler(store, noopResetter{}, nil),
		Health:   handlers.NewHealthHandler("test", store),
	}, sec)
	return app
}

func TestSetupRoutes(t *testing.T) {
	app := newApp(Security{ValidateWebhooks: true, MetaAppSecret: "secret", TwilioAuthToken: "token", AdminKey: "k3y"})

	jsonPost := func(path, body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
		return req
	}
	withKey := httptest.NewRequest(http.MethodGet, "/admin/unknown-questions", nil)
	withKey.Header.Set("X-Admin-Key", "k3y")

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"root", httptest.NewRequest(http.MethodGet, "/", nil), fiber.StatusOK},
		{"health", httptest.NewRequest(http.MethodGet, "/health", nil), fiber.StatusOK},
		{"faqs", httptest.NewRequest(http.MethodGet, "/api/faqs", nil), fiber.StatusOK},
		{"chat", jsonPost("/api/chat", `{"message":"hola"}`), fiber.StatusOK},
		{"verify", httptest.NewRequest(http.MethodGet, "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=verify&hub.challenge=1", nil), fiber.StatusOK},
		{"unsigned meta", jsonPost("/webhook/whatsapp", `{}`), fiber.StatusUnauthorized},
		{"unsigned twilio", httptest.NewRequest(http.MethodPost, "/webhook/twilio", nil), fiber.StatusUnauthorized},
		{"admin without key", httptest.NewRequest(http.MethodGet, "/admin/unknown-questions", nil), fiber.StatusUnauthorized},
		{"admin with key", withKey, fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(tt.req, -1)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestSetupRoutesWithoutValidation(t *testing.T) {
	app := newApp(Security{})

	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(`{"entry":[]}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("unsigned webhook status = %d, want 200", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/admin/reservations", nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("admin without configured key = %d, want 404", resp.StatusCode)
	}
}
