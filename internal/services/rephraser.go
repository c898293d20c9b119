package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
)

// HistoryWindow is how many earlier messages a rephraser sees.
const HistoryWindow = 4

const personaPrompt = `You are the friendly virtual assistant of a motel. Rewrite the technical answer below so it sounds warm and natural for a chat with a guest.
Rules:
- Keep every piece of information (prices, times, numbers, conditions).
- Be brief: at most 3 short sentences plus the essential data.
- Do not invent anything that is not in the technical answer.
- Answer in the same language the guest writes in.
- Reply with the rewritten text only.`

// Rephraser rewrites a technical answer in a conversational tone.
type Rephraser interface {
	Rephrase(ctx context.Context, technical, userMessage string, history []models.Message) (string, error)
}

// StaticRephraser returns the technical text unchanged.
type StaticRephraser struct{}

func (StaticRephraser) Rephrase(_ context.Context, technical, _ string, _ []models.Message) (string, error) {
	return technical, nil
}

// FallbackRephraser tries each rephraser in order under a timeout. Any
// failure, timeout or empty result falls through; the technical text is the
// last resort, so Rephrase never fails.
type FallbackRephraser struct {
	chain   []Rephraser
	timeout time.Duration
}

// NewFallbackRephraser builds a chain. Nil entries are skipped.
func NewFallbackRephraser(timeout time.Duration, chain ...Rephraser) *FallbackRephraser {
	var kept []Rephraser
	for _, r := range chain {
		if r != nil {
			kept = append(kept, r)
		}
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &FallbackRephraser{chain: kept, timeout: timeout}
}

func (f *FallbackRephraser) Rephrase(ctx context.Context, technical, userMessage string, history []models.Message) (string, error) {
	if strings.TrimSpace(technical) == "" {
		return technical, nil
	}
	for _, r := range f.chain {
		text, err := f.try(ctx, r, technical, userMessage, history)
		if err == nil {
			return text, nil
		}
		var dep *DependencyFailure
		if !errors.As(err, &dep) {
			err = &DependencyFailure{Dependency: fmt.Sprintf("%T", r), Err: err}
		}
		log.Debug().Err(err).Msg("⚠️ Rephraser failed, falling back")
	}
	return technical, nil
}

func (f *FallbackRephraser) try(ctx context.Context, r Rephraser, technical, userMessage string, history []models.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	text, err := r.Rephrase(ctx, technical, userMessage, history)
	if err != nil {
		return "", err
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", errors.New("empty rephrase")
	}
	return text, nil
}

// BuildRephrasePrompt renders the user part of the rephrase request.
func BuildRephrasePrompt(technical, userMessage string, history []models.Message) string {
	var b strings.Builder
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, m := range history {
			who := "Guest"
			if m.Role == models.RoleAgent {
				who = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", who, m.Body)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Guest message: %s\n\nTechnical answer:\n%s", userMessage, technical)
	return b.String()
}
