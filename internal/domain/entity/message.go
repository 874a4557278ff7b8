package entity

import "time"

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type ImageAttachment struct {
	MIME string
	Data []byte
}

type Message struct {
	Role    MessageRole
	Content string
	Images  []ImageAttachment
}

// ResponseSchema names the structured shape a model call must produce.
// Schema is a plain JSON-schema object; providers translate it to their
// native structured-output mechanism or fall back to text extraction.
type ResponseSchema struct {
	Name   string
	Schema map[string]interface{}
}

// Usage covers one or more model invocations.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	InferenceTime    time.Duration
}

func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.InferenceTime += other.InferenceTime
}

// Operation partitions metrics by the pipeline stage that paid for a call.
type Operation string

const (
	OpAct     Operation = "act"
	OpExtract Operation = "extract"
	OpObserve Operation = "observe"
	OpAgent   Operation = "agent"
)

// Operations lists every known partition, in reporting order.
func Operations() []Operation {
	return []Operation{OpAct, OpExtract, OpObserve, OpAgent}
}

type OperationMetrics struct {
	PromptTokens     int64
	CompletionTokens int64
	InferenceTimeMs  int64
}

type MetricsSnapshot map[Operation]OperationMetrics
