package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/storage"
)

const (
	minTokenLength = 3
	earlyOffset    = 30
	minQuestionHit = 2
)

// Answer sources
const (
	SourceFAQ       = "faq"
	SourceKnowledge = "knowledge"
)

// Answer is a matched knowledge base reply.
type Answer struct {
	Text   string
	Source string
	ID     uint
}

// IntentResolver scores free text against the FAQ and knowledge tables.
type IntentResolver struct {
	store storage.Store
}

// NewIntentResolver creates a resolver backed by store.
func NewIntentResolver(store storage.Store) *IntentResolver {
	return &IntentResolver{store: store}
}

// Resolve returns the best answer for text, or nil when nothing matches.
func (r *IntentResolver) Resolve(ctx context.Context, text string) (*Answer, error) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	faqs, err := r.store.ListFaqs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list faqs: %w", err)
	}
	var candidates []models.FaqEntry
	for _, f := range faqs {
		if f.Active && !f.IsDefaultGreeting {
			candidates = append(candidates, f)
		}
	}

	if f := matchKeywords(tokens, candidates); f != nil {
		return &Answer{Text: f.Answer, Source: SourceFAQ, ID: f.ID}, nil
	}
	if f := matchQuestions(tokens, candidates); f != nil {
		return &Answer{Text: f.Answer, Source: SourceFAQ, ID: f.ID}, nil
	}

	entries, err := r.store.ListKnowledge(ctx)
	if err != nil {
		return nil, fmt.Errorf("list knowledge: %w", err)
	}
	needle := normalize(text)
	for _, k := range entries {
		if strings.Contains(strings.ToLower(k.Answer), needle) || strings.Contains(strings.ToLower(k.Keywords), needle) {
			return &Answer{Text: k.Answer, Source: SourceKnowledge, ID: k.ID}, nil
		}
	}
	return nil, nil
}

func matchKeywords(tokens []string, faqs []models.FaqEntry) *models.FaqEntry {
	for i := range faqs {
		for _, kw := range faqs[i].KeywordList() {
			for _, tok := range tokens {
				if tok == kw || strings.Contains(kw, tok) || strings.Contains(tok, kw) {
					return &faqs[i]
				}
			}
		}
	}
	return nil
}

func matchQuestions(tokens []string, faqs []models.FaqEntry) *models.FaqEntry {
	var best *models.FaqEntry
	bestScore := 0
	for i := range faqs {
		if score := ScoreQuestion(tokens, faqs[i].Question); score > bestScore {
			best, bestScore = &faqs[i], score
		}
	}
	if bestScore < minQuestionHit {
		return nil
	}
	return best
}

// ScoreQuestion rates how well tokens match a long-form question. A token
// found early scores 3, later 2, plus 1 when it is also a whole word.
func ScoreQuestion(tokens []string, question string) int {
	q := strings.ToLower(question)
	words := make(map[string]bool)
	for _, w := range strings.Fields(q) {
		words[trimPunct(w)] = true
	}

	score := 0
	for _, tok := range tokens {
		idx := strings.Index(q, tok)
		if idx < 0 {
			continue
		}
		if utf8.RuneCountInString(q[:idx]) < earlyOffset {
			score += 3
		} else {
			score += 2
		}
		if words[tok] {
			score++
		}
	}
	return score
}

// Tokenize lowercases text, strips punctuation and drops tokens under three runes.
func Tokenize(text string) []string {
	var out []string
	for _, w := range strings.Fields(normalize(text)) {
		w = trimPunct(w)
		if utf8.RuneCountInString(w) >= minTokenLength {
			out = append(out, w)
		}
	}
	return out
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func trimPunct(w string) string {
	return strings.Trim(w, "¿?¡!.,;:\"'()")
}

var greetingTokens = map[string]bool{
	"hola":    true,
	"buenas":  true,
	"hello":   true,
	"hi":      true,
	"hey":     true,
	"buenos":  true,
	"buen":    true,
	"saludos": true,
	"holis":   true,
	"holaa":   true,
}

// IsGreeting reports whether text opens a conversation. customerMessages counts
// the customer's messages in the open conversation, the current one included.
// Any greeting word counts on the first message; a bare greeting also counts
// on the second.
func IsGreeting(text string, customerMessages int64) bool {
	words := strings.Fields(normalize(text))
	if len(words) == 1 && greetingTokens[trimPunct(words[0])] && customerMessages <= 2 {
		return true
	}
	if customerMessages > 1 {
		return false
	}
	for _, w := range words {
		if greetingTokens[trimPunct(w)] {
			return true
		}
	}
	return false
}

var bookingWords = map[string]bool{
	"reserva":     true,
	"reservar":    true,
	"reservo":     true,
	"reservacion": true,
	"reservación": true,
	"book":        true,
	"booking":     true,
	"agendar":     true,
}

var bookingPhrases = []string{
	"quiero una habitacion",
	"quiero una habitación",
	"necesito una habitacion",
	"necesito una habitación",
	"i want a room",
	"i need a room",
}

// IsBookingRequest reports an explicit wish to start a booking.
func IsBookingRequest(text string) bool {
	t := normalize(text)
	for _, w := range strings.Fields(t) {
		if bookingWords[trimPunct(w)] {
			return true
		}
	}
	for _, p := range bookingPhrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

var availabilityWords = map[string]bool{
	"disponible":     true,
	"disponibles":    true,
	"disponibilidad": true,
	"libre":          true,
	"libres":         true,
	"available":      true,
	"availability":   true,
	"free":           true,
	"habitaciones":   true,
	"rooms":          true,
	"hoy":            true,
	"today":          true,
	"ahora":          true,
	"now":            true,
}

var availabilityPhrases = []string{
	"hay habitaciones",
	"tienen habitaciones",
	"hay pieza",
	"any rooms",
	"rooms available",
}

// IsAvailabilityQuery reports a question about free rooms right now.
func IsAvailabilityQuery(text string) bool {
	t := normalize(text)
	for _, p := range availabilityPhrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	hits := 0
	for _, w := range strings.Fields(t) {
		if availabilityWords[trimPunct(w)] {
			hits++
		}
	}
	return hits >= 2
}
