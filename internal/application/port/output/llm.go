package output

import (
	"context"
	"encoding/json"

	"browser-pilot/internal/domain/entity"
)

// CompletionRequest is the uniform contract every provider adapter accepts.
type CompletionRequest struct {
	Messages    []entity.Message
	Schema      *entity.ResponseSchema
	Temperature float32
}

// CompletionResponse carries either free text or, when a schema was
// requested, the raw JSON that satisfied it. Data is never silently empty:
// a provider that cannot produce parseable structured output returns a
// SchemaValidationError instead.
type CompletionResponse struct {
	Content string
	Data    json.RawMessage
	Usage   entity.Usage
}

type LLMPort interface {
	CreateChatCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
