// Package usecasetest provides in-memory collaborator fakes shared by the
// usecase package tests. Not imported by production code.
package usecasetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
)

// --- LLM -----------------------------------------------------------------

type Reply struct {
	Content string
	Data    json.RawMessage
	Err     error
	Usage   entity.Usage
}

func StructuredReply(raw string) Reply {
	return Reply{
		Data:  json.RawMessage(raw),
		Usage: entity.Usage{PromptTokens: 10, CompletionTokens: 5, InferenceTime: 20 * time.Millisecond},
	}
}

func TextReply(text string) Reply {
	return Reply{
		Content: text,
		Usage:   entity.Usage{PromptTokens: 10, CompletionTokens: 5, InferenceTime: 20 * time.Millisecond},
	}
}

func ErrorReply(err error) Reply {
	return Reply{Err: err}
}

// FakeLLM replays scripted replies in order; once the script is exhausted
// the last reply repeats. Safe for concurrent use.
type FakeLLM struct {
	mu       sync.Mutex
	replies  []Reply
	requests []output.CompletionRequest
}

var _ output.LLMPort = (*FakeLLM)(nil)

func NewFakeLLM(replies ...Reply) *FakeLLM {
	return &FakeLLM{replies: replies}
}

func (f *FakeLLM) Enqueue(replies ...Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, replies...)
}

func (f *FakeLLM) CreateChatCompletion(ctx context.Context, req output.CompletionRequest) (*output.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &entity.ModelInvocationError{Provider: "fake", Err: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.requests)
	f.requests = append(f.requests, req)

	if len(f.replies) == 0 {
		return nil, &entity.ModelInvocationError{Provider: "fake", Err: fmt.Errorf("no scripted reply for call %d", n+1)}
	}
	idx := n
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	r := f.replies[idx]
	if r.Err != nil {
		return nil, r.Err
	}
	return &output.CompletionResponse{Content: r.Content, Data: r.Data, Usage: r.Usage}, nil
}

func (f *FakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *FakeLLM) LastRequest() *output.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	req := f.requests[len(f.requests)-1]
	return &req
}

func (f *FakeLLM) Request(i int) *output.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.requests) {
		return nil
	}
	req := f.requests[i]
	return &req
}

// --- Browser -------------------------------------------------------------

type PerformCall struct {
	Locator string
	Method  entity.InteractionMethod
	Args    []string
}

// FakeBrowser serves a static page; tests mutate Nodes to simulate DOM
// change and script Perform failures through PerformErrs.
type FakeBrowser struct {
	mu sync.Mutex

	Info  entity.PageInfo
	Nodes []entity.RawNode
	Text  string

	Navigated   []string
	Performs    []PerformCall
	PerformErrs []error // consumed one per Perform call; nil means success
	Shot        *entity.Screenshot

	SnapshotErr error
	closed      bool
}

var _ output.BrowserPort = (*FakeBrowser)(nil)

func NewFakeBrowser(info entity.PageInfo, nodes []entity.RawNode) *FakeBrowser {
	return &FakeBrowser{Info: info, Nodes: nodes}
}

func (b *FakeBrowser) Navigate(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Navigated = append(b.Navigated, url)
	b.Info.URL = url
	return nil
}

func (b *FakeBrowser) WaitStable(ctx context.Context) error { return ctx.Err() }

func (b *FakeBrowser) Snapshot(ctx context.Context) ([]entity.RawNode, entity.PageInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SnapshotErr != nil {
		return nil, entity.PageInfo{}, b.SnapshotErr
	}
	nodes := make([]entity.RawNode, len(b.Nodes))
	copy(nodes, b.Nodes)
	return nodes, b.Info, nil
}

func (b *FakeBrowser) PageText(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Text, nil
}

func (b *FakeBrowser) Perform(ctx context.Context, locator string, method entity.InteractionMethod, args []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Performs = append(b.Performs, PerformCall{Locator: locator, Method: method, Args: args})
	if len(b.PerformErrs) > 0 {
		err := b.PerformErrs[0]
		b.PerformErrs = b.PerformErrs[1:]
		return err
	}
	return nil
}

func (b *FakeBrowser) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	if b.Shot == nil {
		return nil, fmt.Errorf("no screenshot configured")
	}
	return b.Shot, nil
}

func (b *FakeBrowser) CurrentURL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Info.URL
}

func (b *FakeBrowser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// AddNode simulates a structural page mutation.
func (b *FakeBrowser) AddNode(n entity.RawNode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Nodes = append(b.Nodes, n)
}

// --- Logger / metrics ----------------------------------------------------

type NopLogger struct{}

var _ output.LoggerPort = NopLogger{}

func (NopLogger) Debug(string, ...any)                          {}
func (NopLogger) Info(string, ...any)                           {}
func (NopLogger) Warn(string, ...any)                           {}
func (NopLogger) Error(string, ...any)                          {}
func (l NopLogger) WithField(string, any) output.LoggerPort     { return l }
func (l NopLogger) WithFields(map[string]any) output.LoggerPort { return l }
func (NopLogger) Close() error                                  { return nil }

type NopMetrics struct{}

var _ output.MetricsPort = NopMetrics{}

func (NopMetrics) Record(entity.Operation, entity.Usage) {}
func (NopMetrics) Snapshot() entity.MetricsSnapshot      { return entity.MetricsSnapshot{} }
func (NopMetrics) Reset()                                {}
