// Package anthropic implements the model port for the Anthropic provider
// family. Claude models have no json_schema response format, so structured
// output rides on a schema hint in the system prompt plus text-based JSON
// extraction on the way back.
package anthropic

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/llm/jsonextract"
)

var _ output.LLMPort = (*Adapter)(nil)

type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
	Logger    output.LoggerPort
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:    apiKey,
		Model:     model,
		MaxTokens: 4096,
	}
}

type Adapter struct {
	client    *anthropic.LLM
	maxTokens int
	logger    output.LoggerPort
}

func New(cfg Config) (*Adapter, error) {
	client, err := anthropic.New(
		anthropic.WithToken(cfg.APIKey),
		anthropic.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating anthropic client: %w", err)
	}
	return &Adapter{client: client, maxTokens: cfg.MaxTokens, logger: cfg.Logger}, nil
}

func (a *Adapter) CreateChatCompletion(ctx context.Context, req output.CompletionRequest) (*output.CompletionResponse, error) {
	content := convertMessages(req.Messages, req.Schema)

	start := time.Now()
	resp, err := a.client.GenerateContent(ctx, content,
		llms.WithTemperature(float64(req.Temperature)),
		llms.WithMaxTokens(a.maxTokens),
	)
	if err != nil {
		return nil, &entity.ModelInvocationError{Provider: "anthropic", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &entity.ModelInvocationError{Provider: "anthropic", Err: fmt.Errorf("response carries no choices")}
	}

	choice := resp.Choices[0]
	result := &output.CompletionResponse{
		Content: choice.Content,
		Usage: entity.Usage{
			PromptTokens:     intFromInfo(choice.GenerationInfo, "InputTokens"),
			CompletionTokens: intFromInfo(choice.GenerationInfo, "OutputTokens"),
			InferenceTime:    time.Since(start),
		},
	}
	if req.Schema != nil {
		data, err := jsonextract.Extract(choice.Content)
		if err != nil {
			return nil, &entity.SchemaValidationError{
				SchemaName: req.Schema.Name,
				Raw:        choice.Content,
				Err:        err,
			}
		}
		result.Data = data
	}
	return result, nil
}

func convertMessages(messages []entity.Message, schema *entity.ResponseSchema) []llms.MessageContent {
	result := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		role := llms.ChatMessageTypeHuman
		switch msg.Role {
		case entity.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case entity.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}

		text := msg.Content
		if msg.Role == entity.RoleSystem && schema != nil {
			text += jsonextract.SchemaHint(schema.Name, schema.Schema)
		}

		parts := []llms.ContentPart{llms.TextPart(text)}
		for _, img := range msg.Images {
			parts = append(parts, llms.BinaryPart(img.MIME, img.Data))
		}
		result = append(result, llms.MessageContent{Role: role, Parts: parts})
	}
	return result
}

func intFromInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
