package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// chatService is the slice of the OpenAI client used here, so tests can stub it.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIProvider generates replies with the chat completions API.
type OpenAIProvider struct {
	chat        chatService
	model       string
	temperature float64
	maxTokens   int64
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithModel selects the chat model.
func WithModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.temperature = t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int64) OpenAIOption {
	return func(p *OpenAIProvider) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// NewOpenAIProvider creates a provider authenticated with apiKey.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return newOpenAIProvider(&cli.Chat.Completions, opts...), nil
}

func newOpenAIProvider(chat chatService, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		chat:        chat,
		model:       string(openai.ChatModelGPT4oMini),
		temperature: 0.4,
		maxTokens:   200,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the provider in logs.
func (p *OpenAIProvider) Name() string {
	return "openai:" + p.model
}

// Generate sends the system and user prompts and returns the first choice.
func (p *OpenAIProvider) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := p.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(p.temperature),
		MaxTokens:   openai.Int(p.maxTokens),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty completion")
	}
	return text, nil
}
