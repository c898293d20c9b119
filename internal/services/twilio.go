package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
)

// TwilioSender sends WhatsApp replies through the Twilio Messages API.
// Quick replies are rendered as bullet text; customers type the option.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioSender creates a sender. from is the WhatsApp number, with or
// without the "whatsapp:" prefix.
func NewTwilioSender(accountSID, authToken, from string) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSender{client: client, from: whatsappAddress(from)}, nil
}

func (t *TwilioSender) Send(ctx context.Context, to string, payload models.Payload) error {
	if err := ctx.Err(); err != nil {
		return &TransportFailure{Channel: "twilio", Err: err}
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsappAddress(to))
	params.SetBody(RenderPlain(payload))

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return &TransportFailure{Channel: "twilio", Err: err}
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return &TransportFailure{Channel: "twilio", Err: fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)}
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	log.Debug().Str("to", to).Str("sid", sid).Msg("✅ WhatsApp message sent via Twilio")
	return nil
}

func whatsappAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
