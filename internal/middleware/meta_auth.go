package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ValidateMetaSignature checks the X-Hub-Signature-256 header of WhatsApp
// Cloud API webhooks against appSecret.
func ValidateMetaSignature(appSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if appSecret == "" {
			log.Error().Msg("❌ META_APP_SECRET not set, cannot validate webhook")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		header := c.Get("X-Hub-Signature-256")
		got, ok := strings.CutPrefix(header, "sha256=")
		if !ok || got == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing signature",
			})
		}

		if !hmac.Equal([]byte(got), []byte(SignMetaBody(appSecret, c.Body()))) {
			log.Warn().Str("ip", c.IP()).Msg("🚫 Invalid Meta webhook signature")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}

		return c.Next()
	}
}

// SignMetaBody returns the hex HMAC-SHA256 of body, as sent by Meta.
func SignMetaBody(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
