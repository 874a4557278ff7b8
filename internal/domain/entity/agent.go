package entity

// AgentTool is one of the moves the planner may choose.
type AgentTool string

const (
	ToolAct      AgentTool = "act"
	ToolExtract  AgentTool = "extract"
	ToolObserve  AgentTool = "observe"
	ToolNavigate AgentTool = "navigate"
	ToolDone     AgentTool = "done"
)

func (t AgentTool) Valid() bool {
	switch t {
	case ToolAct, ToolExtract, ToolObserve, ToolNavigate, ToolDone:
		return true
	}
	return false
}

// AgentState is the controller's position in its lifecycle.
type AgentState int

const (
	StateIdle AgentState = iota
	StatePlanning
	StateExecuting
	StateSucceeded
	StateFailed
)

func (s AgentState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlanning:
		return "planning"
	case StateExecuting:
		return "executing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type StepOutcome string

const (
	OutcomeSuccess StepOutcome = "success"
	OutcomeFailure StepOutcome = "failure"
)

// AgentStep records one Planning->Executing cycle.
type AgentStep struct {
	Index       int
	Tool        AgentTool
	Instruction string
	URL         string
	Reasoning   string
	Outcome     StepOutcome
	Observation string
	Error       string
	// Fingerprint of the snapshot the step observed, when one was taken.
	Fingerprint string
}

type AgentResult struct {
	RunID       string
	Goal        string
	Success     bool
	Steps       []AgentStep
	FinalResult string
	Usage       Usage
}
