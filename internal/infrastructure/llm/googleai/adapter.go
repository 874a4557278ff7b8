// Package googleai implements the model port for the Gemini provider
// family. Structured output uses the provider's native response schema
// decoding; the reply text is still validated through the shared JSON
// extraction path before it reaches a caller.
package googleai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/llm/jsonextract"
)

var _ output.LLMPort = (*Adapter)(nil)

type Config struct {
	APIKey string
	Model  string
	Logger output.LoggerPort
}

func DefaultConfig(apiKey, model string) Config {
	return Config{APIKey: apiKey, Model: model}
}

type Adapter struct {
	client *genai.Client
	model  string
	logger output.LoggerPort
}

func New(ctx context.Context, cfg Config) (*Adapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Adapter{client: client, model: cfg.Model, logger: cfg.Logger}, nil
}

func (a *Adapter) CreateChatCompletion(ctx context.Context, req output.CompletionRequest) (*output.CompletionResponse, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toSchema(req.Schema.Schema)
	}

	var contents []*genai.Content
	for _, msg := range req.Messages {
		if msg.Role == entity.RoleSystem {
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: msg.Content}}}
			continue
		}
		role := genai.RoleUser
		if msg.Role == entity.RoleAssistant {
			role = genai.RoleModel
		}
		parts := []*genai.Part{{Text: msg.Content}}
		for _, img := range msg.Images {
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: img.MIME, Data: img.Data},
			})
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	start := time.Now()
	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, config)
	if err != nil {
		return nil, &entity.ModelInvocationError{Provider: "googleai", Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &entity.ModelInvocationError{Provider: "googleai", Err: fmt.Errorf("response carries no candidates")}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	content := sb.String()

	usage := entity.Usage{InferenceTime: time.Since(start)}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	result := &output.CompletionResponse{Content: content, Usage: usage}
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

// toSchema translates the wire-format schema map into the provider's typed
// schema. Keys the typed schema does not model (additionalProperties) are
// dropped; the typed fields alone constrain decoding.
func toSchema(m map[string]interface{}) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = toType(t)
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	s.Enum = stringSlice(m["enum"])
	s.Required = stringSlice(m["required"])
	if props, ok := m["properties"].(map[string]interface{}); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]interface{}); ok {
				s.Properties[name] = toSchema(sub)
			}
		}
	}
	if items, ok := m["items"].(map[string]interface{}); ok {
		s.Items = toSchema(items)
	}
	return s
}

func toType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	}
	return genai.TypeUnspecified
}

// stringSlice accepts both []string literals and []interface{} from
// unmarshaled JSON.
func stringSlice(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
