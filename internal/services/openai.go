package services

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
)

// OpenAIRephraser rephrases through any OpenAI-compatible chat endpoint.
type OpenAIRephraser struct {
	client *openai.Client
	model  string
}

// NewOpenAIRephraser creates a client. An empty baseURL uses the OpenAI default.
func NewOpenAIRephraser(apiKey, baseURL, model string) *OpenAIRephraser {
	if model == "" {
		model = openai.GPT4oMini
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIRephraser{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (o *OpenAIRephraser) Rephrase(ctx context.Context, technical, userMessage string, history []models.Message) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: personaPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildRephrasePrompt(technical, userMessage, history)},
		},
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return "", &DependencyFailure{Dependency: "openai", Err: fmt.Errorf("chat completion: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return "", &DependencyFailure{Dependency: "openai", Err: fmt.Errorf("no response choices")}
	}
	return resp.Choices[0].Message.Content, nil
}
