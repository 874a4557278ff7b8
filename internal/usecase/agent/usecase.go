// Package agent runs the bounded step loop that chains act, extract,
// observe and navigation toward a caller goal, one planning call per cycle.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"browser-pilot/internal/application/port/input"
	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/prompts"
)

var _ input.GoalRunner = (*UseCase)(nil)

type Options struct {
	// MaxSteps bounds the number of planning/executing cycles per run.
	MaxSteps int
	// Screenshots attaches a viewport capture to each planning call.
	Screenshots bool
}

func DefaultOptions() Options {
	return Options{MaxSteps: 20}
}

type UseCase struct {
	llm       output.LLMPort
	actor     input.Actor
	extractor input.Extractor
	observer  input.Observer
	browser   output.BrowserPort
	metrics   output.MetricsPort
	logger    output.LoggerPort
	opts      Options
}

func New(
	llm output.LLMPort,
	actor input.Actor,
	extractor input.Extractor,
	observer input.Observer,
	browser output.BrowserPort,
	metrics output.MetricsPort,
	logger output.LoggerPort,
	opts Options,
) *UseCase {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultOptions().MaxSteps
	}
	return &UseCase{
		llm:       llm,
		actor:     actor,
		extractor: extractor,
		observer:  observer,
		browser:   browser,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
	}
}

type planDecision struct {
	Tool        entity.AgentTool `json:"tool"`
	Instruction string           `json:"instruction"`
	URL         string           `json:"url"`
	Answer      string           `json:"answer"`
	Reasoning   string           `json:"reasoning"`
}

// Execute drives the run to a terminal state. The step history is returned
// on every path, including failures, so callers can see how far the run got.
func (u *UseCase) Execute(ctx context.Context, goal string) (*entity.AgentResult, error) {
	result := &entity.AgentResult{
		RunID: uuid.NewString(),
		Goal:  goal,
	}
	log := u.logger.WithField("runId", result.RunID)
	log.Info("Agent run started", "goal", goal, "maxSteps", u.opts.MaxSteps)

	state := entity.StateIdle
	for cycle := 0; ; cycle++ {
		if err := ctx.Err(); err != nil {
			u.finish(log, result, entity.StateFailed, state)
			return result, err
		}
		if cycle >= u.opts.MaxSteps {
			u.finish(log, result, entity.StateFailed, state)
			return result, &entity.BudgetExceededError{
				Goal:   goal,
				Budget: u.opts.MaxSteps,
				Page:   entity.PageRef{URL: u.browser.CurrentURL()},
			}
		}

		state = entity.StatePlanning
		plan, err := u.plan(ctx, goal, result)
		if err != nil {
			u.finish(log, result, entity.StateFailed, state)
			return result, err
		}

		state = entity.StateExecuting
		step := entity.AgentStep{
			Index:       cycle,
			Tool:        plan.Tool,
			Instruction: plan.Instruction,
			URL:         plan.URL,
			Reasoning:   plan.Reasoning,
		}

		if plan.Tool == entity.ToolDone {
			step.Outcome = entity.OutcomeSuccess
			result.Steps = append(result.Steps, step)
			result.Success = true
			result.FinalResult = plan.Answer
			u.finish(log, result, entity.StateSucceeded, state)
			return result, nil
		}

		observation, err := u.dispatch(ctx, plan, result)
		if err != nil {
			step.Outcome = entity.OutcomeFailure
			step.Error = err.Error()
			result.Steps = append(result.Steps, step)
			if unrecoverable(ctx, err) {
				u.finish(log, result, entity.StateFailed, state)
				return result, err
			}
			log.Warn("Step failed, replanning", "step", cycle, "tool", string(plan.Tool), "error", err)
			continue
		}

		step.Outcome = entity.OutcomeSuccess
		step.Observation = observation
		result.Steps = append(result.Steps, step)
		log.Debug("Step executed", "step", cycle, "tool", string(plan.Tool))
	}
}

func (u *UseCase) finish(log output.LoggerPort, result *entity.AgentResult, state, from entity.AgentState) {
	log.Info("Agent run finished",
		"state", state.String(), "from", from.String(),
		"steps", len(result.Steps), "success", result.Success)
}

// plan issues the one model call per cycle that selects the next tool.
func (u *UseCase) plan(ctx context.Context, goal string, result *entity.AgentResult) (*planDecision, error) {
	var screenshot *entity.Screenshot
	if u.opts.Screenshots {
		shot, err := u.browser.Screenshot(ctx)
		if err != nil {
			u.logger.Warn("Screenshot unavailable, planning on history only", "error", err)
		} else {
			screenshot = shot
		}
	}

	resp, err := u.llm.CreateChatCompletion(ctx, output.CompletionRequest{
		Messages: prompts.PlanMessages(goal, result.Steps, u.browser.CurrentURL(), screenshot),
		Schema:   prompts.PlanSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("planning %q on %s: %w", goal, entity.PageRef{URL: u.browser.CurrentURL()}, err)
	}
	u.metrics.Record(entity.OpAgent, resp.Usage)
	result.Usage.Add(resp.Usage)

	var plan planDecision
	if err := json.Unmarshal(resp.Data, &plan); err != nil || !plan.Tool.Valid() {
		if err == nil {
			err = fmt.Errorf("tool %q is not available", plan.Tool)
		}
		return nil, &entity.SchemaValidationError{
			Instruction: goal,
			SchemaName:  prompts.PlanSchema().Name,
			Raw:         string(resp.Data),
			Page:        entity.PageRef{URL: u.browser.CurrentURL()},
			Err:         err,
		}
	}
	return &plan, nil
}

func (u *UseCase) dispatch(ctx context.Context, plan *planDecision, result *entity.AgentResult) (string, error) {
	switch plan.Tool {
	case entity.ToolAct:
		actResult, err := u.actor.Act(ctx, plan.Instruction)
		if err != nil {
			return "", err
		}
		result.Usage.Add(actResult.Usage)
		return fmt.Sprintf("%s on %q", actResult.Method, actResult.Target.Description), nil

	case entity.ToolExtract:
		extractResult, err := u.extractor.Extract(ctx, plan.Instruction, agentExtractSchema())
		if err != nil {
			return "", err
		}
		result.Usage.Add(extractResult.Usage)
		return string(extractResult.Data), nil

	case entity.ToolObserve:
		elements, err := u.observer.Observe(ctx, plan.Instruction, entity.ObserveOptions{})
		if err != nil {
			return "", err
		}
		if len(elements) == 0 {
			return "no matching elements", nil
		}
		var sb strings.Builder
		for _, el := range elements {
			fmt.Fprintf(&sb, "[%d] %s; ", el.ID, el.Description)
		}
		return strings.TrimSuffix(sb.String(), "; "), nil

	case entity.ToolNavigate:
		if err := u.browser.Navigate(ctx, plan.URL); err != nil {
			return "", &entity.SessionError{Op: "navigate", Page: entity.PageRef{URL: plan.URL}, Err: err}
		}
		return "navigated to " + plan.URL, nil
	}
	return "", fmt.Errorf("tool %q has no dispatcher", plan.Tool)
}

// agentExtractSchema is the permissive shape for planner-initiated
// extraction, where no caller supplied a schema.
func agentExtractSchema() *entity.ResponseSchema {
	return &entity.ResponseSchema{
		Name: "agent_extract",
		Schema: map[string]interface{}{
			"type":                 "object",
			"additionalProperties": true,
		},
	}
}

// unrecoverable decides whether a step failure ends the run. Collaborator
// outages and exhausted resolutions end it; grounding-quality failures are
// recorded in the history and replanned.
func unrecoverable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	var (
		sessionErr  *entity.SessionError
		modelErr    *entity.ModelInvocationError
		notFoundErr *entity.ElementNotFoundError
	)
	if errors.As(err, &sessionErr) || errors.As(err, &modelErr) || errors.As(err, &notFoundErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
