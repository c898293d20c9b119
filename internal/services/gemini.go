package services

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
)

// GeminiRephraser rephrases with Gemini, trying each model in order.
type GeminiRephraser struct {
	client *genai.Client
	models []string
}

// NewGeminiRephraser creates a Gemini API client.
func NewGeminiRephraser(ctx context.Context, apiKey string, modelNames []string) (*GeminiRephraser, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	var names []string
	for _, m := range modelNames {
		if m = strings.TrimSpace(m); m != "" {
			names = append(names, m)
		}
	}
	if len(names) == 0 {
		names = []string{"gemini-2.0-flash"}
	}
	return &GeminiRephraser{client: client, models: names}, nil
}

func (g *GeminiRephraser) Rephrase(ctx context.Context, technical, userMessage string, history []models.Message) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: personaPrompt}},
		},
		Temperature:     genai.Ptr[float32](0.7),
		MaxOutputTokens: 500,
	}
	prompt := genai.Text(BuildRephrasePrompt(technical, userMessage, history))

	var lastErr error
	for _, model := range g.models {
		resp, err := g.client.Models.GenerateContent(ctx, model, prompt, config)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", model, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if text := strings.TrimSpace(resp.Text()); text != "" {
			return text, nil
		}
		lastErr = fmt.Errorf("%s: empty response", model)
	}
	return "", &DependencyFailure{Dependency: "gemini", Err: lastErr}
}
