// Package actor resolves one instruction to one interaction and executes it
// against the live page, with a bounded self-heal retry and cache-backed
// replay for unchanged pages.
package actor

import (
	"context"
	"errors"
	"fmt"

	"browser-pilot/internal/application/port/input"
	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/application/service"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/usecase/indexer"
	"browser-pilot/internal/usecase/observer"
)

var _ input.Actor = (*UseCase)(nil)

type Options struct {
	// SelfHeal allows one re-grounding attempt after an execution failure.
	SelfHeal bool
}

func DefaultOptions() Options {
	return Options{SelfHeal: true}
}

type UseCase struct {
	grounder *observer.UseCase
	indexer  *indexer.UseCase
	browser  output.BrowserPort
	cache    *service.ResolutionCache
	logger   output.LoggerPort
	opts     Options
}

func New(
	grounder *observer.UseCase,
	idx *indexer.UseCase,
	browser output.BrowserPort,
	cache *service.ResolutionCache,
	logger output.LoggerPort,
	opts Options,
) *UseCase {
	return &UseCase{
		grounder: grounder,
		indexer:  idx,
		browser:  browser,
		cache:    cache,
		logger:   logger,
		opts:     opts,
	}
}

// Act grounds instruction to exactly one element and interaction method,
// executes it, and memoizes the resolution. A cache hit on an unchanged page
// skips grounding entirely and goes straight to execution.
func (u *UseCase) Act(ctx context.Context, instruction string) (*entity.ActResult, error) {
	tree, err := u.indexer.Index(ctx)
	if err != nil {
		return nil, fmt.Errorf("acting on %q: %w", instruction, err)
	}

	if entry, ok := u.cache.Get(tree.Fingerprint, instruction, entity.CacheModeAct); ok && entry.Action != nil {
		result, err := u.replay(ctx, instruction, tree, entry.Action)
		if err == nil {
			return result, nil
		}
		if !u.opts.SelfHeal || !retryable(ctx, err) {
			return nil, err
		}
		// The one self-heal attempt: the cached resolution stopped working,
		// ground fresh against a new snapshot.
		u.logger.Warn("Cached resolution failed to execute, re-grounding",
			"instruction", instruction, "error", err)
		return u.resolveAndExecute(ctx, instruction, nil, 0, true)
	}

	budget := 0
	if u.opts.SelfHeal {
		budget = 1
	}
	return u.resolveAndExecute(ctx, instruction, tree, budget, false)
}

// replay executes a cached resolution without any model call.
func (u *UseCase) replay(ctx context.Context, instruction string, tree *entity.HybridTree, res *entity.ActResolution) (*entity.ActResult, error) {
	target, ok := tree.ElementByID(res.ElementID)
	if !ok || target.Locator != res.Locator {
		return nil, &entity.ElementNotFoundError{
			Instruction: instruction,
			ElementID:   res.ElementID,
			Page:        entity.PageRef{URL: tree.URL, Fingerprint: tree.Fingerprint},
		}
	}
	if err := u.browser.Perform(ctx, res.Locator, res.Method, res.Arguments); err != nil {
		return nil, fmt.Errorf("executing cached %s on %q: %w", res.Method, res.Description, err)
	}
	u.logger.Debug("Act served from cache", "instruction", instruction, "elementId", res.ElementID)
	return &entity.ActResult{
		Instruction: instruction,
		Target:      *target,
		Method:      res.Method,
		Arguments:   res.Arguments,
		CacheHit:    true,
	}, nil
}

// resolveAndExecute runs ground -> execute, retrying at most healBudget times
// with a fresh snapshot when execution fails for a reason worth retrying.
// tree may be nil to force an initial re-index (used by the cache-heal path).
func (u *UseCase) resolveAndExecute(ctx context.Context, instruction string, tree *entity.HybridTree, healBudget int, healed bool) (*entity.ActResult, error) {
	var usage entity.Usage

	for attempt := 0; ; attempt++ {
		if tree == nil {
			var err error
			tree, err = u.indexer.Index(ctx)
			if err != nil {
				return nil, fmt.Errorf("acting on %q: %w", instruction, err)
			}
		}

		res, target, groundUsage, err := u.ground(ctx, instruction, tree)
		usage.Add(groundUsage)
		if err != nil {
			return nil, err
		}

		execErr := u.browser.Perform(ctx, res.Locator, res.Method, res.Arguments)
		if execErr == nil {
			u.cache.Put(tree.Fingerprint, instruction, entity.CacheModeAct, &res, nil)
			u.logger.Info("Act executed",
				"instruction", instruction, "method", string(res.Method),
				"elementId", res.ElementID, "healed", healed || attempt > 0)
			return &entity.ActResult{
				Instruction: instruction,
				Target:      target,
				Method:      res.Method,
				Arguments:   res.Arguments,
				SelfHealed:  healed || attempt > 0,
				Usage:       usage,
			}, nil
		}

		if attempt >= healBudget || !retryable(ctx, execErr) {
			return nil, fmt.Errorf("executing %s on %q: %w", res.Method, target.Description, execErr)
		}
		u.logger.Warn("Execution failed, self-healing with a fresh snapshot",
			"instruction", instruction, "error", execErr)
		tree = nil
	}
}

type grounded struct {
	res    entity.ActResolution
	target entity.Element
	usage  entity.Usage
}

// ground issues the single structured resolution call. Concurrent identical
// calls against the same page structure are coalesced into one inference.
func (u *UseCase) ground(ctx context.Context, instruction string, tree *entity.HybridTree) (entity.ActResolution, entity.Element, entity.Usage, error) {
	key := service.Key(tree.Fingerprint, instruction, entity.CacheModeAct)
	v, err := u.cache.Do(key, func() (interface{}, error) {
		elements, usage, err := u.grounder.Ground(ctx, instruction, tree,
			entity.ObserveOptions{ReturnAction: true}, entity.OpAct)
		if err != nil {
			return nil, err
		}
		page := entity.PageRef{URL: tree.URL, Fingerprint: tree.Fingerprint}
		if len(elements) == 0 {
			return nil, &entity.ElementNotFoundError{Instruction: instruction, ElementID: -1, Page: page}
		}
		if len(elements) > 1 && !agreeOnMethod(elements) {
			return nil, &entity.AmbiguousInstructionError{Instruction: instruction, Candidates: elements, Page: page}
		}
		target := elements[0]
		return grounded{
			res: entity.ActResolution{
				ElementID:   target.ID,
				Description: target.Description,
				Locator:     target.Locator,
				Method:      target.SuggestedMethod,
				Arguments:   target.SuggestedArgs,
			},
			target: target,
			usage:  usage,
		}, nil
	})
	if err != nil {
		return entity.ActResolution{}, entity.Element{}, entity.Usage{}, err
	}
	g := v.(grounded)
	return g.res, g.target, g.usage, nil
}

// agreeOnMethod reports whether several candidates at least suggest the same
// interaction. The grounding call ranks candidates, so a shared method lets
// the first one win; divergent methods mean the instruction truly is
// ambiguous.
func agreeOnMethod(elements []entity.Element) bool {
	for _, el := range elements[1:] {
		if el.SuggestedMethod != elements[0].SuggestedMethod {
			return false
		}
	}
	return true
}

// retryable excludes timeouts and cancellation from self-heal: those fail
// terminally per the caller's deadline.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled)
}
