package utils

import (
	"strings"
	"unicode"
)

// NormalizePhone reduces a WhatsApp address to "+<digits>" so the same
// number matches whether it came from Twilio ("whatsapp:+569..."), Meta
// ("569...") or the staff roster ("+56 9 ...."). Input without digits is
// returned trimmed and unchanged.
func NormalizePhone(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "whatsapp:")

	var b strings.Builder
	b.Grow(len(s) + 1)
	b.WriteByte('+')
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 1 {
		return strings.TrimSpace(raw)
	}
	return b.String()
}

// MaskPhone hides all but the last four digits, for logs.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
