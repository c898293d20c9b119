package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/utils"
)

// MessageProcessor answers one inbound message.
type MessageProcessor interface {
	Process(ctx context.Context, in models.InboundMessage) (models.Payload, error)
}

// WhatsAppHandler receives WhatsApp webhooks from Meta and Twilio.
type WhatsAppHandler struct {
	processor   MessageProcessor
	verifyToken string
}

// NewWhatsAppHandler creates a webhook handler. verifyToken answers the Meta
// subscription challenge.
func NewWhatsAppHandler(processor MessageProcessor, verifyToken string) *WhatsAppHandler {
	return &WhatsAppHandler{processor: processor, verifyToken: verifyToken}
}

// Verify answers the Meta webhook subscription handshake.
func (h *WhatsAppHandler) Verify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && h.verifyToken != "" && token == h.verifyToken {
		log.Info().Msg("✅ WhatsApp webhook verified")
		return c.SendString(challenge)
	}
	log.Warn().Str("mode", mode).Msg("🚫 WhatsApp webhook verification failed")
	return c.SendStatus(fiber.StatusForbidden)
}

// MetaWebhookPayload is the WhatsApp Cloud API notification body.
type MetaWebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string    `json:"field"`
			Value MetaValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// MetaValue carries the messages of one change.
type MetaValue struct {
	MessagingProduct string        `json:"messaging_product"`
	Contacts         []MetaContact `json:"contacts"`
	Messages         []MetaMessage `json:"messages"`
}

// MetaContact is the sender profile.
type MetaContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// MetaMessage is one inbound message. Only text and button replies are handled.
type MetaMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button,omitempty"`
}

// content returns the quick-reply token when present, else the typed text.
func (m MetaMessage) content() string {
	switch {
	case m.Interactive != nil && m.Interactive.ButtonReply != nil:
		return m.Interactive.ButtonReply.ID
	case m.Interactive != nil && m.Interactive.ListReply != nil:
		return m.Interactive.ListReply.ID
	case m.Button != nil && m.Button.Payload != "":
		return m.Button.Payload
	case m.Button != nil:
		return m.Button.Text
	case m.Text != nil:
		return m.Text.Body
	}
	return ""
}

// HandleMeta processes WhatsApp Cloud API notifications. Status updates are
// acknowledged and ignored.
func (h *WhatsAppHandler) HandleMeta(c *fiber.Ctx) error {
	var payload MetaWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Warn().Err(err).Msg("Error parsing Meta webhook")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, ct := range change.Value.Contacts {
				names[utils.NormalizePhone(ct.WaID)] = ct.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				text := strings.TrimSpace(msg.content())
				if msg.From == "" || text == "" {
					continue
				}
				from := utils.NormalizePhone(msg.From)
				log.Info().Str("from", utils.MaskPhone(from)).Str("type", msg.Type).Msg("📱 WhatsApp message received")
				h.process(c.UserContext(), models.InboundMessage{
					CustomerIdentity: from,
					Text:             text,
					Channel:          models.ChannelWhatsApp,
					Name:             names[from],
				})
			}
		}
	}

	return c.SendStatus(fiber.StatusOK)
}

// TwilioWebhookPayload represents an incoming WhatsApp message from Twilio.
type TwilioWebhookPayload struct {
	MessageSid    string `form:"MessageSid"`
	AccountSid    string `form:"AccountSid"`
	From          string `form:"From"` // whatsapp:+56912345678
	To            string `form:"To"`
	Body          string `form:"Body"`
	ButtonPayload string `form:"ButtonPayload"`
	ProfileName   string `form:"ProfileName"`
}

// HandleTwilio processes Twilio WhatsApp webhooks.
func (h *WhatsAppHandler) HandleTwilio(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Warn().Err(err).Msg("Error parsing Twilio webhook")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	text := strings.TrimSpace(payload.ButtonPayload)
	if text == "" {
		text = strings.TrimSpace(payload.Body)
	}
	from := ""
	if payload.From != "" {
		from = utils.NormalizePhone(payload.From)
	}

	// Status callbacks carry no body
	if from != "" && text != "" {
		log.Info().Str("from", utils.MaskPhone(from)).Str("sid", payload.MessageSid).Msg("📱 WhatsApp message received via Twilio")
		h.process(c.UserContext(), models.InboundMessage{
			CustomerIdentity: from,
			Text:             text,
			Channel:          models.ChannelWhatsApp,
			Name:             payload.ProfileName,
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

// process runs one turn. Errors are logged; the webhook is always acknowledged
// so the provider does not redeliver.
func (h *WhatsAppHandler) process(ctx context.Context, in models.InboundMessage) {
	if _, err := h.processor.Process(ctx, in); err != nil {
		log.Error().Err(err).Str("from", utils.MaskPhone(in.CustomerIdentity)).Msg("❌ Error processing WhatsApp message")
	}
}
