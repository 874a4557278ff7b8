// Package observer grounds natural-language instructions to elements of a
// hybrid tree through a single structured model call.
package observer

import (
	"context"
	"encoding/json"
	"fmt"

	"browser-pilot/internal/application/port/input"
	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/prompts"
	"browser-pilot/internal/usecase/indexer"
)

var _ input.Observer = (*UseCase)(nil)

type UseCase struct {
	llm     output.LLMPort
	indexer *indexer.UseCase
	browser output.BrowserPort
	metrics output.MetricsPort
	logger  output.LoggerPort
}

func New(
	llm output.LLMPort,
	idx *indexer.UseCase,
	browser output.BrowserPort,
	metrics output.MetricsPort,
	logger output.LoggerPort,
) *UseCase {
	return &UseCase{
		llm:     llm,
		indexer: idx,
		browser: browser,
		metrics: metrics,
		logger:  logger,
	}
}

// Observe snapshots the page and grounds instruction against it. An empty
// result means "no match" and is returned to the caller as data.
func (u *UseCase) Observe(ctx context.Context, instruction string, opts entity.ObserveOptions) ([]entity.Element, error) {
	tree, err := u.indexer.Index(ctx)
	if err != nil {
		return nil, fmt.Errorf("observing %q: %w", instruction, err)
	}
	elements, _, err := u.Ground(ctx, instruction, tree, opts, entity.OpObserve)
	return elements, err
}

type observedElement struct {
	ElementID   int      `json:"elementId"`
	Description string   `json:"description"`
	Method      string   `json:"method"`
	Arguments   []string `json:"arguments"`
}

type observeResponse struct {
	Elements []observedElement `json:"elements"`
}

// Ground issues exactly one grounding call against an already-built tree.
// It never retries: absence of matches is the caller's decision to handle.
// Act shares this path with ReturnAction set, billing against its own
// operation kind.
func (u *UseCase) Ground(
	ctx context.Context,
	instruction string,
	tree *entity.HybridTree,
	opts entity.ObserveOptions,
	op entity.Operation,
) ([]entity.Element, entity.Usage, error) {
	pageText := ""
	if opts.FullDOM {
		text, err := u.browser.PageText(ctx)
		if err != nil {
			u.logger.Warn("Page text unavailable, grounding on element listing only", "error", err)
		} else {
			pageText = text
		}
	}

	schema := prompts.ObserveSchema(opts.ReturnAction)
	resp, err := u.llm.CreateChatCompletion(ctx, output.CompletionRequest{
		Messages: prompts.ObserveMessages(instruction, tree.Serialized, pageText, opts.ReturnAction),
		Schema:   schema,
	})
	if err != nil {
		return nil, entity.Usage{}, fmt.Errorf("grounding %q on %s: %w", instruction, pageRef(tree), err)
	}
	u.metrics.Record(op, resp.Usage)

	var parsed observeResponse
	if err := json.Unmarshal(resp.Data, &parsed); err != nil {
		return nil, resp.Usage, &entity.SchemaValidationError{
			Instruction: instruction,
			SchemaName:  schema.Name,
			Raw:         string(resp.Data),
			Page:        pageRef(tree),
			Err:         err,
		}
	}

	elements := make([]entity.Element, 0, len(parsed.Elements))
	for _, obs := range parsed.Elements {
		el, ok := tree.ElementByID(obs.ElementID)
		if !ok {
			u.logger.Warn("Grounding returned unknown element id, dropping",
				"elementId", obs.ElementID, "instruction", instruction)
			continue
		}
		match := *el
		if obs.Description != "" {
			match.Description = obs.Description
		}
		if opts.ReturnAction {
			method := entity.InteractionMethod(obs.Method)
			if !method.Valid() {
				return nil, resp.Usage, &entity.SchemaValidationError{
					Instruction: instruction,
					SchemaName:  schema.Name,
					Raw:         string(resp.Data),
					Page:        pageRef(tree),
					Err:         fmt.Errorf("method %q is not in the interaction verb set", obs.Method),
				}
			}
			match.SuggestedMethod = method
			match.SuggestedArgs = obs.Arguments
		}
		elements = append(elements, match)
	}

	u.logger.Debug("Grounding finished",
		"instruction", instruction, "matches", len(elements), "op", string(op))
	return elements, resp.Usage, nil
}

func pageRef(tree *entity.HybridTree) entity.PageRef {
	return entity.PageRef{URL: tree.URL, Fingerprint: tree.Fingerprint}
}
