package input

import (
	"context"

	"browser-pilot/internal/domain/entity"
)

// Actor resolves one instruction to one interaction and executes it.
type Actor interface {
	Act(ctx context.Context, instruction string) (*entity.ActResult, error)
}

// Observer grounds an instruction to zero or more elements of the current
// page. An empty result is a valid no-match, not an error.
type Observer interface {
	Observe(ctx context.Context, instruction string, opts entity.ObserveOptions) ([]entity.Element, error)
}

// Extractor runs instruction-driven structured extraction over the page.
type Extractor interface {
	Extract(ctx context.Context, instruction string, schema *entity.ResponseSchema) (*entity.ExtractResult, error)
}

// GoalRunner is the agent surface: a bounded step loop toward a goal.
type GoalRunner interface {
	Execute(ctx context.Context, goal string) (*entity.AgentResult, error)
}
