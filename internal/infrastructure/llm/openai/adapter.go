// Package openai implements the model port for the OpenAI provider family,
// including OpenRouter and other compatible gateways via a base URL
// override. Structured output uses the provider's native json_schema
// response format.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/llm/jsonextract"
)

var _ output.LLMPort = (*Adapter)(nil)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  output.LoggerPort
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey: apiKey,
		Model:  model,
	}
}

// OpenRouterConfig points the same adapter at the OpenRouter gateway.
func OpenRouterConfig(apiKey, model string) Config {
	cfg := DefaultConfig(apiKey, model)
	cfg.BaseURL = "https://openrouter.ai/api/v1"
	return cfg
}

type Adapter struct {
	client *openai.Client
	model  string
	logger output.LoggerPort
}

type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		t.logger.Debug("HTTP request",
			"method", req.Method,
			"url", req.URL.String(),
			"status", resp.StatusCode,
			"durationMs", time.Since(start).Milliseconds())
	}
	return resp, err
}

func New(cfg Config) *Adapter {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.Logger != nil {
		config.HTTPClient = &http.Client{
			Transport: &loggingTransport{base: http.DefaultTransport, logger: cfg.Logger},
		}
	}
	return &Adapter{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

func (a *Adapter) CreateChatCompletion(ctx context.Context, req output.CompletionRequest) (*output.CompletionResponse, error) {
	request := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    convertMessages(req.Messages),
		Temperature: req.Temperature,
	}
	if req.Schema != nil {
		raw, err := json.Marshal(req.Schema.Schema)
		if err != nil {
			return nil, fmt.Errorf("marshaling schema %q: %w", req.Schema.Name, err)
		}
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Schema.Name,
				Schema: json.RawMessage(raw),
				Strict: true,
			},
		}
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, &entity.ModelInvocationError{Provider: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &entity.ModelInvocationError{Provider: "openai", Err: fmt.Errorf("response carries no choices")}
	}

	content := resp.Choices[0].Message.Content
	result := &output.CompletionResponse{
		Content: content,
		Usage: entity.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			InferenceTime:    time.Since(start),
		},
	}
	if req.Schema != nil {
		data, err := jsonextract.Extract(content)
		if err != nil {
			return nil, &entity.SchemaValidationError{
				SchemaName: req.Schema.Name,
				Raw:        content,
				Err:        err,
			}
		}
		result.Data = data
	}
	return result, nil
}

func convertMessages(messages []entity.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		converted := openai.ChatCompletionMessage{Role: string(msg.Role)}
		if len(msg.Images) == 0 {
			converted.Content = msg.Content
		} else {
			parts := []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: msg.Content},
			}
			for _, img := range msg.Images {
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: fmt.Sprintf("data:%s;base64,%s", img.MIME, base64.StdEncoding.EncodeToString(img.Data)),
					},
				})
			}
			converted.MultiContent = parts
		}
		result = append(result, converted)
	}
	return result
}
