// Package indexer turns the browser's raw node dump into a hybrid tree:
// per-snapshot integer IDs, a bounded serialization, a structural
// fingerprint and, for oversized pages, an ordered chunk sequence.
package indexer

import (
	"context"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
)

type Options struct {
	// MaxElements caps how many nodes are indexed per snapshot.
	MaxElements int
	// MaxDescriptionLen bounds a single element line so chunking never has
	// to split one.
	MaxDescriptionLen int
	// ChunkTokenBudget is the token budget per serialized chunk.
	ChunkTokenBudget int
}

func DefaultOptions() Options {
	return Options{
		MaxElements:       400,
		MaxDescriptionLen: 200,
		ChunkTokenBudget:  4096,
	}
}

type UseCase struct {
	browser output.BrowserPort
	logger  output.LoggerPort
	opts    Options
	tokens  *tokenCounter
}

func New(browser output.BrowserPort, logger output.LoggerPort, opts Options) *UseCase {
	if opts.MaxElements <= 0 {
		opts = DefaultOptions()
	}
	return &UseCase{
		browser: browser,
		logger:  logger,
		opts:    opts,
		tokens:  newTokenCounter(logger),
	}
}

// Index snapshots the live page and builds a fresh hybrid tree. Element IDs
// are only valid against this snapshot.
func (u *UseCase) Index(ctx context.Context) (*entity.HybridTree, error) {
	if err := u.browser.WaitStable(ctx); err != nil {
		return nil, &entity.SessionError{Op: "wait-stable", Page: entity.PageRef{URL: u.browser.CurrentURL()}, Err: err}
	}

	nodes, info, err := u.browser.Snapshot(ctx)
	if err != nil {
		return nil, &entity.SessionError{Op: "snapshot", Page: entity.PageRef{URL: u.browser.CurrentURL()}, Err: err}
	}

	tree := Build(nodes, info, u.opts, u.tokens.Count)
	u.logger.Debug("Page indexed",
		"url", tree.URL,
		"elements", len(tree.Elements),
		"chunks", len(tree.Chunks),
		"fingerprint", tree.Fingerprint)
	return tree, nil
}

// Build is the pure core of the indexer: same nodes in, same tree out.
// Kept free of browser access so snapshots are reproducible in tests.
func Build(nodes []entity.RawNode, info entity.PageInfo, opts Options, countTokens func(string) int) *entity.HybridTree {
	if opts.MaxElements <= 0 {
		opts = DefaultOptions()
	}
	if countTokens == nil {
		countTokens = approxTokens
	}

	elements := make([]entity.Element, 0, len(nodes))
	for _, n := range nodes {
		if len(elements) >= opts.MaxElements {
			break
		}
		desc := describe(n, opts.MaxDescriptionLen)
		if desc == "" && !n.Interactive {
			continue
		}
		elements = append(elements, entity.Element{
			ID:          len(elements),
			Tag:         n.Tag,
			Role:        n.Role,
			Description: desc,
			Locator:     n.Locator,
		})
	}

	fingerprint := fingerprintOf(elements)
	serialized := serialize(info, elements)
	chunks := chunk(info, elements, opts.ChunkTokenBudget, countTokens)

	return entity.NewHybridTree(info, elements, fingerprint, serialized, chunks)
}
