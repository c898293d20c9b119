package handlers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/storage"
)

// webIdentityPrefix namespaces web sessions so they never collide with phones.
const webIdentityPrefix = "web_"

// ChatHandler serves the web chat widget.
type ChatHandler struct {
	processor MessageProcessor
	store     storage.Store
	validate  *validator.Validate
}

// NewChatHandler creates a web chat handler.
func NewChatHandler(processor MessageProcessor, store storage.Store, validate *validator.Validate) *ChatHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ChatHandler{processor: processor, store: store, validate: validate}
}

// ChatRequest is one web chat turn. An empty SessionID starts a new session.
type ChatRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,uuid"`
	Message   string `json:"message" validate:"required,max=1000"`
	Name      string `json:"name" validate:"omitempty,max=100"`
}

// ChatResponse carries the reply payload and the session to reuse.
type ChatResponse struct {
	SessionID string         `json:"session_id"`
	Reply     models.Payload `json:"reply"`
}

// Send handles POST /api/chat.
func (h *ChatHandler) Send(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation failed",
			"details": validationDetails(err),
		})
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	reply, err := h.processor.Process(c.UserContext(), models.InboundMessage{
		CustomerIdentity: webIdentityPrefix + req.SessionID,
		Text:             req.Message,
		Channel:          models.ChannelWeb,
		Name:             req.Name,
	})
	if err != nil && reply.Body == "" {
		log.Error().Err(err).Str("session", req.SessionID).Msg("❌ Web chat turn failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Chat temporarily unavailable",
		})
	}

	return c.JSON(ChatResponse{SessionID: req.SessionID, Reply: reply})
}

// ListFaqs handles GET /api/faqs: the quick questions shown by the widget.
func (h *ChatHandler) ListFaqs(c *fiber.Ctx) error {
	faqs, err := h.store.ListFaqs(c.UserContext())
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to list FAQs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch FAQs",
		})
	}

	out := make([]fiber.Map, 0, len(faqs))
	for _, f := range faqs {
		if !f.Active || f.IsDefaultGreeting {
			continue
		}
		out = append(out, fiber.Map{
			"id":       f.ID,
			"label":    f.Label,
			"question": f.Question,
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"faqs":    out,
		"count":   len(out),
	})
}

func validationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fe.Field()+": "+fe.Tag())
	}
	return details
}
