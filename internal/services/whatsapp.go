package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
)

const graphBaseURL = "https://graph.facebook.com"

// CloudAPISender sends replies through the WhatsApp Cloud API. Choice
// payloads become interactive reply buttons.
type CloudAPISender struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	timeout       time.Duration
}

// NewCloudAPISender creates a sender for one business phone number.
func NewCloudAPISender(accessToken, phoneNumberID, graphVersion string) (*CloudAPISender, error) {
	if accessToken == "" || phoneNumberID == "" {
		return nil, fmt.Errorf("missing WhatsApp Cloud API credentials")
	}
	if graphVersion == "" {
		graphVersion = "v21.0"
	}
	return &CloudAPISender{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		baseURL:       graphBaseURL + "/" + graphVersion,
		timeout:       10 * time.Second,
	}, nil
}

type cloudText struct {
	Body string `json:"body"`
}

type cloudReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type cloudButton struct {
	Type  string     `json:"type"`
	Reply cloudReply `json:"reply"`
}

type cloudInteractive struct {
	Type   string    `json:"type"`
	Body   cloudText `json:"body"`
	Action struct {
		Buttons []cloudButton `json:"buttons"`
	} `json:"action"`
}

type cloudMessage struct {
	MessagingProduct string            `json:"messaging_product"`
	RecipientType    string            `json:"recipient_type"`
	To               string            `json:"to"`
	Type             string            `json:"type"`
	Text             *cloudText        `json:"text,omitempty"`
	Interactive      *cloudInteractive `json:"interactive,omitempty"`
}

// cloudMessageFor builds the Graph API request body for a payload.
func cloudMessageFor(to string, payload models.Payload) cloudMessage {
	msg := cloudMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               strings.TrimPrefix(to, "+"),
	}
	if payload.Type != models.PayloadChoice || len(payload.Options) == 0 {
		msg.Type = "text"
		msg.Text = &cloudText{Body: payload.Body}
		return msg
	}

	interactive := &cloudInteractive{Type: "button", Body: cloudText{Body: payload.Body}}
	for _, o := range payload.Options {
		interactive.Action.Buttons = append(interactive.Action.Buttons, cloudButton{
			Type:  "reply",
			Reply: cloudReply{ID: o.ID, Title: models.TruncateLabel(o.Label)},
		})
	}
	msg.Type = "interactive"
	msg.Interactive = interactive
	return msg
}

func (c *CloudAPISender) Send(ctx context.Context, to string, payload models.Payload) error {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return &TransportFailure{Channel: "whatsapp", Err: context.DeadlineExceeded}
	}

	agent := fiber.Post(c.baseURL + "/" + c.phoneNumberID + "/messages")
	agent.JSONEncoder(sonic.Marshal)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.accessToken)
	agent.Timeout(timeout)
	agent.JSON(cloudMessageFor(to, payload))

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return &TransportFailure{Channel: "whatsapp", Err: errs[0]}
	}
	if code < 200 || code >= 300 {
		return &TransportFailure{Channel: "whatsapp", Err: fmt.Errorf("graph api status %d: %s", code, body)}
	}

	log.Debug().Str("to", to).Str("type", payload.Type).Msg("✅ WhatsApp message sent via Cloud API")
	return nil
}
