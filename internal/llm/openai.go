package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"studypack/internal/models"
)

// OpenAIClient implements Client against an OpenAI-compatible chat
// completions API. It holds no mutable state beyond the underlying SDK
// client, so concurrent calls need no locking. Timeouts are the caller's
// concern: bound the context and exceeding it surfaces as ErrTimeout.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model, apiEndpoint string) *OpenAIClient {
	if apiKey == "" {
		return &OpenAIClient{}
	}

	cfg := openai.DefaultConfig(apiKey)
	if apiEndpoint != "" {
		cfg.BaseURL = apiEndpoint
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *OpenAIClient) disabled() bool {
	return c.client == nil || c.model == ""
}

func (c *OpenAIClient) Generate(ctx context.Context, tmpl Template, vars map[string]string, out any) error {
	if c.disabled() {
		return ErrUnavailable
	}

	prompt, err := tmpl.render(vars)
	if err != nil {
		return fmt.Errorf("render prompt %s: %w", tmpl.Name, err)
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: tmpl.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.4,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return classifyCallError(tmpl.Name, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("%w: no choices returned for %s", ErrUpstreamRejected, tmpl.Name)
	}

	jsonStr := extractJSON(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return fmt.Errorf("%w: unmarshal %s response: %v", ErrSchemaMismatch, tmpl.Name, err)
	}
	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
	}
	return nil
}

func (c *OpenAIClient) Chat(ctx context.Context, system string, history []models.ChatTurn, question string) (string, error) {
	if c.disabled() {
		return "", ErrUnavailable
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if len(history) == 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.3,
	})
	if err != nil {
		return "", classifyCallError("chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned for chat", ErrUpstreamRejected)
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyCallError(name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, name, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstreamRejected, name, err)
}
