// Package pipeline defines the project sales pipeline and validates
// stage transitions requested by automation steps.
package pipeline

import "fmt"

// Ordered pipeline stages. Transitions may move forward any distance
// or back exactly one stage; lost is reachable from anywhere and both
// terminal stages are final.
var stageOrder = map[string]int{
	"lead":       0,
	"inspection": 1,
	"proposal":   2,
	"contract":   3,
	"production": 4,
	"completed":  5,
	"lost":       6,
}

var terminalStages = map[string]bool{
	"completed": true,
	"lost":      true,
}

// IsKnownStage reports whether the stage name exists in the pipeline.
func IsKnownStage(stage string) bool {
	_, ok := stageOrder[stage]
	return ok
}

// IsTerminal reports whether a project in this stage is closed.
func IsTerminal(stage string) bool {
	return terminalStages[stage]
}

// IsValidTransition reports whether a project may move from one stage
// to another.
func IsValidTransition(from, to string) bool {
	fo, fok := stageOrder[from]
	to2, tok := stageOrder[to]
	if !fok || !tok {
		return false
	}
	if from == to {
		return false
	}
	if terminalStages[from] {
		return false
	}
	if to == "lost" {
		return true
	}
	// forward any distance, backward one stage at most
	return to2 > fo || fo-to2 == 1
}

// TransitionError returns a human-readable reason for an invalid
// transition. Call only when IsValidTransition returned false.
func TransitionError(from, to string) string {
	if !IsKnownStage(from) {
		return fmt.Sprintf("unknown stage %q", from)
	}
	if !IsKnownStage(to) {
		return fmt.Sprintf("unknown stage %q", to)
	}
	if from == to {
		return fmt.Sprintf("project is already in stage %q", from)
	}
	if terminalStages[from] {
		return fmt.Sprintf("stage %q is terminal", from)
	}
	return fmt.Sprintf("cannot move from %q back to %q", from, to)
}
