package entity

import "fmt"

// PageRef identifies the page a failure happened on, for diagnosability.
// Every pipeline error carries one next to the instruction text.
type PageRef struct {
	URL         string
	Fingerprint string
}

func (p PageRef) String() string {
	if p.Fingerprint == "" {
		return p.URL
	}
	return fmt.Sprintf("%s (fp=%.12s)", p.URL, p.Fingerprint)
}

// ElementNotFoundError: a grounded element ID does not resolve on the live
// page, either because the model invented it or the DOM changed underneath.
type ElementNotFoundError struct {
	Instruction string
	ElementID   int
	Page        PageRef
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element %d not found for %q on %s", e.ElementID, e.Instruction, e.Page)
}

// AmbiguousInstructionError: grounding returned several equally plausible
// targets and no suggested method to break the tie.
type AmbiguousInstructionError struct {
	Instruction string
	Candidates  []Element
	Page        PageRef
}

func (e *AmbiguousInstructionError) Error() string {
	return fmt.Sprintf("instruction %q matched %d elements on %s", e.Instruction, len(e.Candidates), e.Page)
}

// SchemaValidationError: model output does not conform to the requested
// schema, after any fallback parsing the provider supports.
type SchemaValidationError struct {
	Instruction string
	SchemaName  string
	Raw         string
	Page        PageRef
	Err         error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("response for %q does not match schema %q on %s: %v", e.Instruction, e.SchemaName, e.Page, e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// ModelInvocationError: the model collaborator itself failed (timeout,
// rate limit, transport).
type ModelInvocationError struct {
	Provider string
	Err      error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model invocation failed (%s): %v", e.Provider, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

// SessionError: the browser collaborator is unavailable or not initialized.
type SessionError struct {
	Op   string
	Page PageRef
	Err  error
}

func (e *SessionError) Error() string {
	if e.Page.URL == "" {
		return fmt.Sprintf("browser session error during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("browser session error during %s on %s: %v", e.Op, e.Page, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// BudgetExceededError: the agent spent its whole step budget without the
// planner selecting done. Distinct from a step-level execution failure.
type BudgetExceededError struct {
	Goal   string
	Budget int
	Page   PageRef
}

func (e *BudgetExceededError) Error() string {
	if e.Page.URL == "" {
		return fmt.Sprintf("step budget of %d exhausted for goal %q", e.Budget, e.Goal)
	}
	return fmt.Sprintf("step budget of %d exhausted for goal %q on %s", e.Budget, e.Goal, e.Page)
}
