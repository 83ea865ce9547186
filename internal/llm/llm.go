// Package llm wraps the chat-completion service behind a small Completer
// interface so the query engine can be tested with a fake.
package llm

import (
	"context"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// The request struct marshals Temperature with omitempty, so a literal 0
// would be dropped and the API would apply its own default. The smallest
// positive float survives serialization and the API treats it as zero.
const zeroTemperature = math.SmallestNonzeroFloat32

// Completer is the answering-service boundary. Implementations make one
// call per request with no retries.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OpenAIClient answers via the OpenAI chat completion API at
// temperature 0 for reproducible answers.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

var _ Completer = (*OpenAIClient)(nil)

func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai api key is not set")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{client: openai.NewClient(apiKey), model: model}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: zeroTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
