package actor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/application/service"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/usecase/indexer"
	"browser-pilot/internal/usecase/observer"
	"browser-pilot/internal/usecase/usecasetest"
)

func newActor(llm output.LLMPort, browser output.BrowserPort, opts Options) (*UseCase, *service.ResolutionCache) {
	log := usecasetest.NopLogger{}
	idx := indexer.New(browser, log, indexer.DefaultOptions())
	obs := observer.New(llm, idx, browser, usecasetest.NopMetrics{}, log)
	cache := service.NewResolutionCache()
	return New(obs, idx, browser, cache, log, opts), cache
}

// consentPage has the accept button at index 7.
func consentPage() *usecasetest.FakeBrowser {
	nodes := make([]entity.RawNode, 0, 9)
	for i := 0; i < 7; i++ {
		nodes = append(nodes, entity.RawNode{
			Tag: "a", Text: fmt.Sprintf("Nav link %d", i), Locator: fmt.Sprintf("#nav-%d", i), Interactive: true,
		})
	}
	nodes = append(nodes,
		entity.RawNode{Tag: "button", Role: "button", Name: "Accept cookies button", Locator: "#accept", Interactive: true},
		entity.RawNode{Tag: "button", Role: "button", Name: "Reject all", Locator: "#reject", Interactive: true},
	)
	return usecasetest.NewFakeBrowser(entity.PageInfo{URL: "https://example.com", Title: "Example"}, nodes)
}

const acceptReply = `{"elements":[{"elementId":7,"description":"Accept cookies button","method":"click","arguments":[]}]}`

func TestAct_ResolvesAndExecutes(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(acceptReply))
	browser := consentPage()
	act, _ := newActor(llm, browser, DefaultOptions())

	result, err := act.Act(context.Background(), "click the 'Accept cookies' button")
	require.NoError(t, err)

	assert.Equal(t, 7, result.Target.ID)
	assert.Equal(t, entity.MethodClick, result.Method)
	assert.False(t, result.CacheHit)
	assert.False(t, result.SelfHealed)

	require.Len(t, browser.Performs, 1)
	assert.Equal(t, "#accept", browser.Performs[0].Locator)
	assert.Equal(t, entity.MethodClick, browser.Performs[0].Method)
}

func TestAct_CacheHitSkipsGrounding(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(acceptReply))
	browser := consentPage()
	act, cache := newActor(llm, browser, DefaultOptions())

	first, err := act.Act(context.Background(), "click the 'Accept cookies' button")
	require.NoError(t, err)
	require.Equal(t, 1, llm.Calls())
	require.Equal(t, 1, cache.Len())

	second, err := act.Act(context.Background(), "click the 'Accept cookies' button")
	require.NoError(t, err)

	assert.Equal(t, 1, llm.Calls(), "replay must not invoke the model again")
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Target.ID, second.Target.ID)
	assert.Equal(t, first.Method, second.Method)
	assert.Len(t, browser.Performs, 2)
}

func TestAct_StructuralMutationInvalidatesCache(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(acceptReply))
	browser := consentPage()
	act, _ := newActor(llm, browser, DefaultOptions())

	_, err := act.Act(context.Background(), "click the 'Accept cookies' button")
	require.NoError(t, err)
	require.Equal(t, 1, llm.Calls())

	browser.AddNode(entity.RawNode{Tag: "button", Name: "Subscribe", Locator: "#subscribe", Interactive: true})

	second, err := act.Act(context.Background(), "click the 'Accept cookies' button")
	require.NoError(t, err)
	assert.Equal(t, 2, llm.Calls(), "changed structure must ground afresh")
	assert.False(t, second.CacheHit)
}

func TestAct_SelfHealRetriesExactlyOnce(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(acceptReply))
	browser := consentPage()
	browser.PerformErrs = []error{errors.New("element detached")}
	act, _ := newActor(llm, browser, DefaultOptions())

	result, err := act.Act(context.Background(), "click the 'Accept cookies' button")
	require.NoError(t, err)

	assert.True(t, result.SelfHealed)
	assert.Equal(t, 2, llm.Calls(), "one initial grounding plus one heal")
	assert.Len(t, browser.Performs, 2)
}

func TestAct_SecondConsecutiveFailureSurfaces(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(acceptReply))
	browser := consentPage()
	browser.PerformErrs = []error{errors.New("element detached"), errors.New("still detached")}
	act, _ := newActor(llm, browser, DefaultOptions())

	_, err := act.Act(context.Background(), "click the 'Accept cookies' button")
	require.Error(t, err)
	assert.ErrorContains(t, err, "still detached")
	assert.Equal(t, 2, llm.Calls(), "self-heal is bounded to one extra attempt")
	assert.Len(t, browser.Performs, 2)
}

func TestAct_TimeoutIsNotHealed(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(acceptReply))
	browser := consentPage()
	browser.PerformErrs = []error{fmt.Errorf("dispatch: %w", context.DeadlineExceeded)}
	act, _ := newActor(llm, browser, DefaultOptions())

	_, err := act.Act(context.Background(), "click the 'Accept cookies' button")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, llm.Calls(), "timeouts fail terminally")
}

func TestAct_SelfHealDisabled(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(acceptReply))
	browser := consentPage()
	browser.PerformErrs = []error{errors.New("not interactable")}
	act, _ := newActor(llm, browser, Options{SelfHeal: false})

	_, err := act.Act(context.Background(), "click the 'Accept cookies' button")
	require.Error(t, err)
	assert.Equal(t, 1, llm.Calls())
}

func TestAct_NoMatchIsElementNotFound(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(`{"elements":[]}`))
	act, _ := newActor(llm, consentPage(), DefaultOptions())

	_, err := act.Act(context.Background(), "click the teleport button")
	var notFound *entity.ElementNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "click the teleport button", notFound.Instruction)
	assert.Equal(t, "https://example.com", notFound.Page.URL)
}

func TestAct_DivergentCandidatesAreAmbiguous(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(
		`{"elements":[{"elementId":7,"description":"Accept cookies button","method":"click","arguments":[]},{"elementId":8,"description":"Reject all","method":"hover","arguments":[]}]}`))
	act, _ := newActor(llm, consentPage(), DefaultOptions())

	_, err := act.Act(context.Background(), "handle the cookie banner")
	var ambiguous *entity.AmbiguousInstructionError
	require.ErrorAs(t, err, &ambiguous)
	assert.Len(t, ambiguous.Candidates, 2)
}

func TestAct_AgreeingCandidatesTakeFirst(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(
		`{"elements":[{"elementId":7,"description":"Accept cookies button","method":"click","arguments":[]},{"elementId":8,"description":"Reject all","method":"click","arguments":[]}]}`))
	act, _ := newActor(llm, consentPage(), DefaultOptions())

	result, err := act.Act(context.Background(), "dismiss the cookie banner")
	require.NoError(t, err)
	assert.Equal(t, 7, result.Target.ID)
}

func TestAct_StaleCachedLocatorHealsByRegrounding(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(acceptReply))
	browser := consentPage()
	act, cache := newActor(llm, browser, DefaultOptions())

	_, err := act.Act(context.Background(), "click the 'Accept cookies' button")
	require.NoError(t, err)

	// Same structure, cached locator no longer matches the element: the
	// replay must fall back to one fresh grounding.
	tree := indexer.Build(browser.Nodes, browser.Info, indexer.DefaultOptions(), nil)
	cache.Put(tree.Fingerprint, "click the 'Accept cookies' button", entity.CacheModeAct,
		&entity.ActResolution{ElementID: 7, Description: "Accept cookies button", Locator: "#gone", Method: entity.MethodClick}, nil)

	result, err := act.Act(context.Background(), "click the 'Accept cookies' button")
	require.NoError(t, err)
	assert.True(t, result.SelfHealed)
	assert.Equal(t, 2, llm.Calls())
}

func TestAct_SelfHealDisabledSurfacesStaleCacheFailure(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(acceptReply))
	browser := consentPage()
	act, cache := newActor(llm, browser, Options{SelfHeal: false})

	tree := indexer.Build(browser.Nodes, browser.Info, indexer.DefaultOptions(), nil)
	cache.Put(tree.Fingerprint, "click the 'Accept cookies' button", entity.CacheModeAct,
		&entity.ActResolution{ElementID: 7, Description: "Accept cookies button", Locator: "#gone", Method: entity.MethodClick}, nil)

	_, err := act.Act(context.Background(), "click the 'Accept cookies' button")
	var notFound *entity.ElementNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 0, llm.Calls(), "disabled self-heal must not ground a replacement")
}

func TestAct_ModelFailureCarriesInstructionAndPage(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.ErrorReply(
		&entity.ModelInvocationError{Provider: "openai", Err: errors.New("429 rate limited")}))
	browser := consentPage()
	act, _ := newActor(llm, browser, DefaultOptions())

	_, err := act.Act(context.Background(), "click the 'Accept cookies' button")
	require.Error(t, err)

	var modelErr *entity.ModelInvocationError
	require.ErrorAs(t, err, &modelErr)
	assert.ErrorContains(t, err, "click the 'Accept cookies' button")
	assert.ErrorContains(t, err, "https://example.com")

	tree := indexer.Build(browser.Nodes, browser.Info, indexer.DefaultOptions(), nil)
	assert.ErrorContains(t, err, tree.Fingerprint[:12])
}

func TestAct_SnapshotFailureCarriesInstructionAndPage(t *testing.T) {
	llm := usecasetest.NewFakeLLM(usecasetest.StructuredReply(acceptReply))
	browser := consentPage()
	browser.SnapshotErr = errors.New("target closed")
	act, _ := newActor(llm, browser, DefaultOptions())

	_, err := act.Act(context.Background(), "click the 'Accept cookies' button")
	require.Error(t, err)

	var sessionErr *entity.SessionError
	require.ErrorAs(t, err, &sessionErr)
	assert.Equal(t, "https://example.com", sessionErr.Page.URL)
	assert.ErrorContains(t, err, "click the 'Accept cookies' button")
	assert.ErrorContains(t, err, "https://example.com")
}
