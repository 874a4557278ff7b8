package entity

// InteractionMethod is the fixed verb set grounding may choose from.
type InteractionMethod string

const (
	MethodClick   InteractionMethod = "click"
	MethodFill    InteractionMethod = "fill"
	MethodType    InteractionMethod = "type"
	MethodSelect  InteractionMethod = "select"
	MethodCheck   InteractionMethod = "check"
	MethodUncheck InteractionMethod = "uncheck"
	MethodScroll  InteractionMethod = "scroll"
	MethodPress   InteractionMethod = "press"
	MethodHover   InteractionMethod = "hover"
	MethodClear   InteractionMethod = "clear"
)

var interactionMethods = map[InteractionMethod]bool{
	MethodClick:   true,
	MethodFill:    true,
	MethodType:    true,
	MethodSelect:  true,
	MethodCheck:   true,
	MethodUncheck: true,
	MethodScroll:  true,
	MethodPress:   true,
	MethodHover:   true,
	MethodClear:   true,
}

func (m InteractionMethod) Valid() bool {
	return interactionMethods[m]
}

// InteractionMethods lists the verb set in a stable order, for prompts.
func InteractionMethods() []InteractionMethod {
	return []InteractionMethod{
		MethodClick, MethodFill, MethodType, MethodSelect, MethodCheck,
		MethodUncheck, MethodScroll, MethodPress, MethodHover, MethodClear,
	}
}

// ObserveOptions selects the grounding flavour.
type ObserveOptions struct {
	// FullDOM adds page text context to the prompt on top of the
	// accessibility-flavoured element listing.
	FullDOM bool
	// ReturnAction asks grounding to also suggest a method and arguments.
	// Used internally by Act.
	ReturnAction bool
}

// ActResult is the executed-action record returned to Act callers.
type ActResult struct {
	Instruction string
	Target      Element
	Method      InteractionMethod
	Arguments   []string

	CacheHit   bool
	SelfHealed bool
	Usage      Usage
}
