// Package extractor runs instruction-driven structured extraction over a
// page, chunk by chunk, refining an accumulated result until a metadata
// judgment reports completion or the chunks run out.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"

	"browser-pilot/internal/application/port/input"
	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/application/service"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/prompts"
	"browser-pilot/internal/usecase/indexer"
)

var _ input.Extractor = (*UseCase)(nil)

type UseCase struct {
	llm     output.LLMPort
	indexer *indexer.UseCase
	cache   *service.ResolutionCache
	metrics output.MetricsPort
	logger  output.LoggerPort
}

func New(
	llm output.LLMPort,
	idx *indexer.UseCase,
	cache *service.ResolutionCache,
	metrics output.MetricsPort,
	logger output.LoggerPort,
) *UseCase {
	return &UseCase{
		llm:     llm,
		indexer: idx,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// Extract snapshots the page and iterates its chunk sequence. Completed
// extractions are memoized against the page fingerprint; concurrent
// identical calls share one pass.
func (u *UseCase) Extract(ctx context.Context, instruction string, schema *entity.ResponseSchema) (*entity.ExtractResult, error) {
	tree, err := u.indexer.Index(ctx)
	if err != nil {
		return nil, fmt.Errorf("extracting %q: %w", instruction, err)
	}

	if entry, ok := u.cache.Get(tree.Fingerprint, instruction, entity.CacheModeExtract); ok && len(entry.Result) > 0 {
		u.logger.Debug("Extract served from cache", "instruction", instruction)
		return &entity.ExtractResult{
			Instruction: instruction,
			Data:        entry.Result,
			Completed:   true,
			ChunkTotal:  len(tree.Chunks),
		}, nil
	}

	key := service.Key(tree.Fingerprint, instruction, entity.CacheModeExtract)
	v, err := u.cache.Do(key, func() (interface{}, error) {
		return u.run(ctx, instruction, schema, tree)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entity.ExtractResult), nil
}

func (u *UseCase) run(ctx context.Context, instruction string, schema *entity.ResponseSchema, tree *entity.HybridTree) (*entity.ExtractResult, error) {
	state := entity.ExtractionState{
		Instruction: instruction,
		Schema:      schema,
		ChunkTotal:  len(tree.Chunks),
	}
	result := &entity.ExtractResult{Instruction: instruction, ChunkTotal: state.ChunkTotal}
	page := entity.PageRef{URL: tree.URL, Fingerprint: tree.Fingerprint}
	var usage entity.Usage

	for _, chunk := range tree.Chunks {
		state.ChunkIndex = chunk.Index
		stepUsage, err := u.processChunk(ctx, &state, chunk, page)
		usage.Add(stepUsage)
		if err != nil {
			if state.Accumulated == nil {
				// No chunk has produced anything valid: nothing best-effort
				// to return.
				result.Usage = usage
				return nil, err
			}
			u.logger.Warn("Chunk pass failed, keeping accumulated result",
				"instruction", instruction, "chunk", chunk.Index, "error", err)
			result.ChunkErr = err
			break
		}
		result.ChunksProcessed = chunk.Index + 1
		if state.Completed {
			break
		}
	}

	result.Data = state.Accumulated
	result.Completed = state.Completed && result.ChunkErr == nil
	result.Progress = state.Progress
	result.Usage = usage

	if result.Completed {
		u.cache.Put(tree.Fingerprint, instruction, entity.CacheModeExtract, nil, result.Data)
	}
	u.logger.Info("Extraction finished",
		"instruction", instruction,
		"chunks", result.ChunksProcessed, "of", result.ChunkTotal,
		"completed", result.Completed)
	return result, nil
}

// processChunk issues the three calls for one chunk: extract a partial,
// refine it into the accumulated result (skipped while there is nothing to
// merge into), and judge completion.
func (u *UseCase) processChunk(ctx context.Context, state *entity.ExtractionState, chunk entity.Chunk, page entity.PageRef) (entity.Usage, error) {
	var usage entity.Usage

	partial, err := u.structuredCall(ctx, &usage,
		prompts.ExtractChunkMessages(state.Instruction, chunk, state.ChunkTotal), state.Schema, state.Instruction, page)
	if err != nil {
		return usage, err
	}

	merged := partial
	if state.Accumulated != nil {
		merged, err = u.structuredCall(ctx, &usage,
			prompts.RefineMessages(state.Instruction, state.Accumulated, partial), state.Schema, state.Instruction, page)
		if err != nil {
			return usage, err
		}
	}
	state.Accumulated = merged

	meta, err := u.structuredCall(ctx, &usage,
		prompts.MetadataMessages(state.Instruction, state.Accumulated, state.ChunkIndex, state.ChunkTotal),
		prompts.MetadataSchema(), state.Instruction, page)
	if err != nil {
		return usage, err
	}
	var parsed struct {
		Progress  string `json:"progress"`
		Completed bool   `json:"completed"`
	}
	if err := json.Unmarshal(meta, &parsed); err != nil {
		return usage, &entity.SchemaValidationError{
			Instruction: state.Instruction,
			SchemaName:  prompts.MetadataSchema().Name,
			Raw:         string(meta),
			Page:        page,
			Err:         err,
		}
	}
	state.Progress = parsed.Progress
	state.Completed = parsed.Completed
	return usage, nil
}

func (u *UseCase) structuredCall(ctx context.Context, usage *entity.Usage, messages []entity.Message, schema *entity.ResponseSchema, instruction string, page entity.PageRef) (json.RawMessage, error) {
	resp, err := u.llm.CreateChatCompletion(ctx, output.CompletionRequest{
		Messages: messages,
		Schema:   schema,
	})
	if err != nil {
		return nil, fmt.Errorf("extracting %q on %s: %w", instruction, page, err)
	}
	u.metrics.Record(entity.OpExtract, resp.Usage)
	usage.Add(resp.Usage)

	if len(resp.Data) == 0 || !json.Valid(resp.Data) {
		return nil, &entity.SchemaValidationError{
			Instruction: instruction,
			SchemaName:  schema.Name,
			Raw:         string(resp.Data),
			Page:        page,
			Err:         fmt.Errorf("response is not valid JSON"),
		}
	}
	return resp.Data, nil
}
