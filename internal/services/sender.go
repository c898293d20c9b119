package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
)

// Sender delivers one reply payload to a customer.
type Sender interface {
	Send(ctx context.Context, to string, payload models.Payload) error
}

// ReplySender is used for channels where the HTTP response carries the
// reply, so delivery always succeeds.
type ReplySender struct{}

func (ReplySender) Send(context.Context, string, models.Payload) error { return nil }

// LogSender writes replies to the log instead of a provider. Used in
// development when no WhatsApp credentials are configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to string, payload models.Payload) error {
	log.Info().
		Str("to", to).
		Str("type", payload.Type).
		Int("options", len(payload.Options)).
		Msg("📤 " + strings.ReplaceAll(RenderPlain(payload), "\n", " | "))
	return nil
}
