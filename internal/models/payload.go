package models

import "unicode/utf8"

// InboundMessage is one customer turn, independent of the channel it arrived on.
type InboundMessage struct {
	CustomerIdentity string  `json:"customer_identity"`
	Text             string  `json:"text"`
	Channel          Channel `json:"channel"`
	Name             string  `json:"name,omitempty"`
}

// Payload types
const (
	PayloadText   = "text"
	PayloadChoice = "choice"
)

// MaxOptions is the number of quick-reply buttons a payload may carry.
const MaxOptions = 3

// Option is one quick-reply button.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Payload is the single outbound reply for a turn.
type Payload struct {
	Type    string   `json:"type"`
	Body    string   `json:"body"`
	Options []Option `json:"options,omitempty"`
}

// Text builds a plain text payload.
func Text(body string) Payload {
	return Payload{Type: PayloadText, Body: body}
}

// Choice builds a payload with quick replies, capped and with labels truncated.
// With no options it degrades to a text payload.
func Choice(body string, options ...Option) Payload {
	if len(options) == 0 {
		return Text(body)
	}
	if len(options) > MaxOptions {
		options = options[:MaxOptions]
	}
	out := make([]Option, len(options))
	for i, o := range options {
		out[i] = Option{ID: o.ID, Label: TruncateLabel(o.Label)}
	}
	return Payload{Type: PayloadChoice, Body: body, Options: out}
}

// TruncateLabel shortens s to MaxLabelLength runes.
func TruncateLabel(s string) string {
	if utf8.RuneCountInString(s) <= MaxLabelLength {
		return s
	}
	r := []rune(s)
	return string(r[:MaxLabelLength])
}
