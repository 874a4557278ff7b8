package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/metrics"
	"browser-pilot/internal/usecase/usecasetest"
)

type stubActor struct {
	errs  []error
	calls int
}

func (s *stubActor) Act(ctx context.Context, instruction string) (*entity.ActResult, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &entity.ActResult{
		Instruction: instruction,
		Target:      entity.Element{ID: 1, Description: "Next page"},
		Method:      entity.MethodClick,
	}, nil
}

type stubExtractor struct {
	data  string
	calls int
}

func (s *stubExtractor) Extract(ctx context.Context, instruction string, schema *entity.ResponseSchema) (*entity.ExtractResult, error) {
	s.calls++
	return &entity.ExtractResult{
		Instruction: instruction,
		Data:        json.RawMessage(s.data),
		Completed:   true,
	}, nil
}

type stubObserver struct {
	elements []entity.Element
}

func (s *stubObserver) Observe(ctx context.Context, instruction string, opts entity.ObserveOptions) ([]entity.Element, error) {
	return s.elements, nil
}

func newRunner(llm *usecasetest.FakeLLM, actor *stubActor, opts Options) (*UseCase, *usecasetest.FakeBrowser) {
	browser := usecasetest.NewFakeBrowser(entity.PageInfo{URL: "https://start.example"}, nil)
	runner := New(llm, actor, &stubExtractor{data: `{"note":"extracted"}`}, &stubObserver{},
		browser, usecasetest.NopMetrics{}, usecasetest.NopLogger{}, opts)
	return runner, browser
}

const actPlan = `{"tool":"act","instruction":"click the next button","reasoning":"keep going"}`

func TestExecute_DoneSucceedsWithFinalAnswer(t *testing.T) {
	llm := usecasetest.NewFakeLLM(
		usecasetest.StructuredReply(actPlan),
		usecasetest.StructuredReply(`{"tool":"done","answer":"the flight costs $120","reasoning":"goal satisfied"}`),
	)
	actor := &stubActor{}
	runner, _ := newRunner(llm, actor, DefaultOptions())

	result, err := runner.Execute(context.Background(), "find the cheapest flight")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "the flight costs $120", result.FinalResult)
	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, entity.ToolAct, result.Steps[0].Tool)
	assert.Equal(t, entity.OutcomeSuccess, result.Steps[0].Outcome)
	assert.Equal(t, entity.ToolDone, result.Steps[1].Tool)
	assert.Equal(t, 1, actor.calls)
}

func TestExecute_BudgetExhaustionFailsAfterExactlyNCycles(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(actPlan))
	actor := &stubActor{}
	browser := usecasetest.NewFakeBrowser(entity.PageInfo{URL: "https://start.example"}, nil)
	agg := metrics.New()
	runner := New(llm, actor, &stubExtractor{data: `{}`}, &stubObserver{},
		browser, agg, usecasetest.NopLogger{}, Options{MaxSteps: 4})

	result, err := runner.Execute(context.Background(), "never finishes")

	var budgetErr *entity.BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, 4, budgetErr.Budget)
	assert.Equal(t, "https://start.example", budgetErr.Page.URL)
	assert.ErrorContains(t, err, "never finishes")
	assert.ErrorContains(t, err, "https://start.example")
	assert.False(t, result.Success)
	assert.Len(t, result.Steps, 4, "exactly N planning/executing cycles")
	assert.Equal(t, 4, llm.Calls())
	assert.Equal(t, 4, actor.calls)

	snapshot := agg.Snapshot()
	assert.Equal(t, int64(40), snapshot[entity.OpAgent].PromptTokens, "each planning call is billed to the agent op")
}

func TestExecute_PlanningFailureCarriesGoalAndPage(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.ErrorReply(
		&entity.ModelInvocationError{Provider: "openai", Err: errors.New("503 overloaded")}))
	runner, _ := newRunner(llm, &stubActor{}, DefaultOptions())

	result, err := runner.Execute(context.Background(), "find the cheapest flight")
	require.Error(t, err)

	var modelErr *entity.ModelInvocationError
	require.ErrorAs(t, err, &modelErr)
	assert.ErrorContains(t, err, "find the cheapest flight")
	assert.ErrorContains(t, err, "https://start.example")
	assert.Empty(t, result.Steps)
}

func TestExecute_RecoverableStepFailureReplans(t *testing.T) {
	llm := usecasetest.NewFakeLLM(
		usecasetest.StructuredReply(actPlan),
		usecasetest.StructuredReply(actPlan),
		usecasetest.StructuredReply(`{"tool":"done","answer":"ok","reasoning":"goal satisfied"}`),
	)
	actor := &stubActor{errs: []error{
		&entity.AmbiguousInstructionError{Instruction: "click the next button"},
	}}
	runner, _ := newRunner(llm, actor, DefaultOptions())

	result, err := runner.Execute(context.Background(), "page through results")
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Len(t, result.Steps, 3)
	assert.Equal(t, entity.OutcomeFailure, result.Steps[0].Outcome)
	assert.NotEmpty(t, result.Steps[0].Error)
	assert.Equal(t, entity.OutcomeSuccess, result.Steps[1].Outcome)
}

func TestExecute_UnrecoverableStepFailureEndsRun(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(actPlan))
	actor := &stubActor{errs: []error{
		&entity.ElementNotFoundError{Instruction: "click the next button", ElementID: 3},
	}}
	runner, _ := newRunner(llm, actor, DefaultOptions())

	result, err := runner.Execute(context.Background(), "page through results")

	var notFound *entity.ElementNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.False(t, result.Success)
	require.Len(t, result.Steps, 1, "the failed step stays in the history")
	assert.Equal(t, entity.OutcomeFailure, result.Steps[0].Outcome)
	assert.Equal(t, 1, llm.Calls(), "no replanning after a terminal failure")
}

func TestExecute_CancellationStopsFurtherCycles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(actPlan))
	runner, _ := newRunner(llm, &stubActor{}, DefaultOptions())

	cancel()

	result, err := runner.Execute(ctx, "anything")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Steps)
	assert.Equal(t, 0, llm.Calls(), "no planning after cancellation")
}

func TestExecute_NavigateDispatchesToBrowser(t *testing.T) {
	llm := usecasetest.NewFakeLLM(
		usecasetest.StructuredReply(`{"tool":"navigate","url":"https://shop.example/cart","reasoning":"go to the cart"}`),
		usecasetest.StructuredReply(`{"tool":"done","answer":"arrived","reasoning":"goal satisfied"}`),
	)
	runner, browser := newRunner(llm, &stubActor{}, DefaultOptions())

	result, err := runner.Execute(context.Background(), "open the cart")
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Len(t, browser.Navigated, 1)
	assert.Equal(t, "https://shop.example/cart", browser.Navigated[0])
	assert.Contains(t, result.Steps[0].Observation, "https://shop.example/cart")
}

func TestExecute_ExtractObservationFeedsHistory(t *testing.T) {
	llm := usecasetest.NewFakeLLM(
		usecasetest.StructuredReply(`{"tool":"extract","instruction":"get the total price","reasoning":"need the price"}`),
		usecasetest.StructuredReply(`{"tool":"done","answer":"done","reasoning":"goal satisfied"}`),
	)
	runner, _ := newRunner(llm, &stubActor{}, DefaultOptions())

	result, err := runner.Execute(context.Background(), "read the total")
	require.NoError(t, err)
	assert.Contains(t, result.Steps[0].Observation, "extracted")

	// The second planning call sees the first step's observation.
	req := llm.LastRequest()
	require.NotNil(t, req)
	found := false
	for _, m := range req.Messages {
		if m.Role == entity.RoleUser {
			found = true
			assert.Contains(t, m.Content, "extracted")
		}
	}
	assert.True(t, found)
}

func TestExecute_InvalidPlanToolIsSchemaValidationError(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(`{"tool":"teleport","reasoning":"?"}`))
	runner, _ := newRunner(llm, &stubActor{}, DefaultOptions())

	result, err := runner.Execute(context.Background(), "anything")

	var schemaErr *entity.SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
	assert.False(t, result.Success)
}

func TestExecute_BudgetErrorIsDistinctFromStepFailure(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(actPlan))
	runner, _ := newRunner(llm, &stubActor{}, Options{MaxSteps: 2})

	_, err := runner.Execute(context.Background(), "never finishes")

	var budgetErr *entity.BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	var notFound *entity.ElementNotFoundError
	assert.False(t, errors.As(err, &notFound))
}
