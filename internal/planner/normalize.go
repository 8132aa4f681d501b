// internal/planner/normalize.go
package planner

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/EasyByteRu/adpilot/api/schemas"
)

// Clamp bounds for the per-subgoal step budget.
const (
	DefaultMaxSteps = 6
	MinMaxSteps     = 1
	MaxMaxSteps     = 12
)

// maxTitleChars bounds titles synthesized from subgoal text.
const maxTitleChars = 64

// The normalizers below are total: any input, including nil and garbage,
// yields a usable zero-ish value. Model output is untrusted and malformed
// responses are routine, so nothing here returns an error or panics.

// AsStepList coerces a raw decoded JSON value into a validated step list.
// Non-arrays and invalid entries are dropped; the result is never nil.
func AsStepList(raw any) []schemas.Step {
	return schemas.ValidatePlan(raw)
}

// AsStepOrNone coerces a raw decoded JSON value into a single validated step.
// A one-element array is unwrapped; anything else invalid yields nil.
func AsStepOrNone(raw any) schemas.Step {
	if arr, ok := raw.([]any); ok {
		if len(arr) != 1 {
			return nil
		}
		raw = arr[0]
	}
	step, err := schemas.ValidateStep(raw)
	if err != nil {
		return nil
	}
	return step
}

// NormalizeOutline coerces a raw decoded JSON value into an Outline. Accepts
// either {"subgoals": [...]} or a bare array. Entries that are not objects
// are dropped. Missing ids are synthesized as "sgN" (1-based position) and a
// missing title falls back to the leading part of the goal text, then to
// "Subgoal N".
func NormalizeOutline(raw any) schemas.Outline {
	items, ok := raw.([]any)
	if !ok {
		if obj, isObj := raw.(map[string]any); isObj {
			items, _ = obj["subgoals"].([]any)
		}
	}

	out := schemas.Outline{Subgoals: make([]schemas.Subgoal, 0, len(items))}
	for _, item := range items {
		obj, isObj := item.(map[string]any)
		if !isObj {
			continue
		}
		n := len(out.Subgoals) + 1
		sg := schemas.Subgoal{
			ID:       strings.TrimSpace(stringField(obj, "id")),
			Title:    strings.TrimSpace(stringField(obj, "title")),
			Goal:     strings.TrimSpace(stringField(obj, "goal")),
			DoneWhen: strings.TrimSpace(stringField(obj, "done_when")),
			Notes:    strings.TrimSpace(stringField(obj, "notes")),
		}
		if sg.ID == "" {
			sg.ID = fmt.Sprintf("sg%d", n)
		}
		if sg.Title == "" {
			sg.Title = titleFromGoal(sg.Goal, n)
		}
		out.Subgoals = append(out.Subgoals, sg)
	}
	return out
}

// NormalizeVerify coerces a raw decoded JSON value into a VerifyVerdict. Any
// status outside the closed {ok, retry, blocked} set, and any non-object
// input, becomes retry: an unreadable verdict must not terminate a run in
// either direction. FixSteps keeps only valid steps.
func NormalizeVerify(raw any) schemas.VerifyVerdict {
	verdict := schemas.VerifyVerdict{
		Status:   schemas.VerdictRetry,
		FixSteps: []schemas.Step{},
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		verdict.Reason = "verifier returned no usable verdict"
		return verdict
	}

	switch schemas.VerdictStatus(strings.ToLower(strings.TrimSpace(stringField(obj, "status")))) {
	case schemas.VerdictOK:
		verdict.Status = schemas.VerdictOK
	case schemas.VerdictBlocked:
		verdict.Status = schemas.VerdictBlocked
	default:
		verdict.Status = schemas.VerdictRetry
	}

	verdict.Reason = strings.TrimSpace(stringField(obj, "reason"))
	verdict.FixSteps = schemas.ValidatePlan(obj["fix_steps"])
	return verdict
}

// ClampMaxSteps resolves the per-subgoal step budget. Absent, non-numeric or
// non-positive values fall back to the default; values above the ceiling are
// clamped to it.
func ClampMaxSteps(v any) int {
	n, ok := intValue(v)
	if !ok || n <= 0 {
		return DefaultMaxSteps
	}
	if n > MaxMaxSteps {
		return MaxMaxSteps
	}
	return n
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func titleFromGoal(goal string, n int) string {
	if goal == "" {
		return fmt.Sprintf("Subgoal %d", n)
	}
	if len(goal) > maxTitleChars {
		return truncateToRune(goal, maxTitleChars)
	}
	return goal
}

// truncateToRune cuts s to at most max bytes, backing up so the cut lands on
// a rune boundary. Titles and prompt sections flow into JSON output, which
// must stay valid UTF-8.
func truncateToRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}
