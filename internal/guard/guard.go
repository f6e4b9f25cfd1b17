// Package guard implements ordered business-rule evaluation for Manifest
// commands.
//
// A Guard is a plain value: a named predicate over the evaluation context
// with a severity and a message function. Guards are composed into ordered
// lists by command definitions; declaration order doubles as priority order
// among competing hard-stop conditions, because evaluation short-circuits on
// the first BLOCK failure.
//
// Guards must be deterministic, side-effect-free functions of the context.
// They never perform I/O; anything a guard needs (current state, proposed
// state, raw input, the evaluation clock) is captured in Context before
// evaluation begins.
package guard

import (
	"time"

	"github.com/angriff36/manifest/internal/model"
)

// Context is the immutable input to a guard predicate.
type Context struct {
	// Current is the entity state loaded under the row lock, or nil for
	// create-style commands.
	Current any
	// Proposed is the merge of Current and Input.
	Proposed any
	// Input is the raw command payload as decoded from the request.
	Input map[string]any
	// Now is the evaluation clock, captured once per command so every guard
	// in the list observes the same instant.
	Now time.Time
}

// Guard is a single named predicate with a severity and a message template.
// Guards are owned by the command definition that declares them and are
// never persisted.
type Guard struct {
	ID        string
	Severity  model.GuardSeverity
	Predicate func(ctx Context) bool
	Message   func(ctx Context) string
}

// Block constructs a hard-stop guard with a fixed message.
func Block(id, message string, pred func(ctx Context) bool) Guard {
	return Guard{
		ID:        id,
		Severity:  model.SeverityBlock,
		Predicate: pred,
		Message:   func(Context) string { return message },
	}
}

// Warn constructs an advisory guard with a fixed message.
func Warn(id, message string, pred func(ctx Context) bool) Guard {
	return Guard{
		ID:        id,
		Severity:  model.SeverityWarn,
		Predicate: pred,
		Message:   func(Context) string { return message },
	}
}

// Outcome is the result of evaluating an ordered guard list.
type Outcome struct {
	Passed   bool
	Failure  *model.GuardFailure
	Warnings []model.GuardWarning
}

// Evaluate runs guards in declaration order against ctx.
//
// A failing BLOCK guard stops evaluation immediately: the outcome carries
// the lowest failing index and no later guard runs. Failing WARN guards are
// collected and never stop evaluation, so a passing outcome reports every
// advisory that fired.
func Evaluate(guards []Guard, ctx Context) Outcome {
	var warnings []model.GuardWarning
	for i, g := range guards {
		if g.Predicate(ctx) {
			continue
		}
		if g.Severity == model.SeverityBlock {
			return Outcome{
				Passed: false,
				Failure: &model.GuardFailure{
					Index:     i,
					GuardID:   g.ID,
					Formatted: g.Message(ctx),
				},
				Warnings: warnings,
			}
		}
		warnings = append(warnings, model.GuardWarning{
			Index:     i,
			GuardID:   g.ID,
			Formatted: g.Message(ctx),
		})
	}
	return Outcome{Passed: true, Warnings: warnings}
}
