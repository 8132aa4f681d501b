// api/schemas/steps.go
package schemas

import (
	"fmt"
	"strconv"
	"strings"
)

// Default timeouts (seconds) applied to steps that omit them.
const (
	DefaultWaitSec     = 12
	DefaultStepTimeout = 35
)

// StepType enumerates the closed vocabulary of executable step types.
// Anything outside this set is rejected at validation time and never
// reaches an executor.
type StepType string

const (
	StepClick        StepType = "click"
	StepDoubleClick  StepType = "double_click"
	StepContextClick StepType = "context_click"

	StepInput    StepType = "input"
	StepPressKey StepType = "press_key"
	StepHotkey   StepType = "hotkey"

	StepWait          StepType = "wait"
	StepWaitVisible   StepType = "wait_visible"
	StepWaitURL       StepType = "wait_url"
	StepWaitDOMStable StepType = "wait_dom_stable"

	StepGoto      StepType = "goto"
	StepGoBack    StepType = "go_back"
	StepGoForward StepType = "go_forward"
	StepRefresh   StepType = "refresh"

	StepCheck     StepType = "check"
	StepLoopUntil StepType = "loop_until"

	StepScroll          StepType = "scroll"
	StepScrollTo        StepType = "scroll_to"
	StepScrollToElement StepType = "scroll_to_element"

	StepHover      StepType = "hover"
	StepSelect     StepType = "select"
	StepFileUpload StepType = "file_upload"
	StepDragDrop   StepType = "drag_and_drop"

	StepSwitchToFrame   StepType = "switch_to_frame"
	StepSwitchToDefault StepType = "switch_to_default"

	StepNewTab      StepType = "new_tab"
	StepSwitchToTab StepType = "switch_to_tab"
	StepCloseTab    StepType = "close_tab"

	StepExtract    StepType = "extract"
	StepAssertText StepType = "assert_text"
	StepEvaluate   StepType = "evaluate"

	StepPauseForHuman StepType = "pause_for_human"
)

// stepAliases folds the vocabulary drift LLMs commonly produce onto the
// canonical types. The alias is normalized before key filtering, so the
// resulting step always carries a canonical "type".
var stepAliases = map[string]StepType{
	"type":     StepInput,
	"navigate": StepGoto,
	"sleep":    StepWait,
}

// allowedStepKeys enumerates the fields accepted per step type; everything
// else the model invents is dropped. "type" is always kept.
var allowedStepKeys = map[StepType][]string{
	StepClick:        {"selector"},
	StepDoubleClick:  {"selector"},
	StepContextClick: {"selector"},

	StepInput:    {"selector", "text", "clear"},
	StepPressKey: {"key"},
	StepHotkey:   {"keys"},

	StepWait:          {"seconds"},
	StepWaitVisible:   {"selector", "timeout"},
	StepWaitURL:       {"pattern", "regex", "timeout"},
	StepWaitDOMStable: {"ms", "timeout"},

	StepGoto:      {"url"},
	StepGoBack:    {},
	StepGoForward: {},
	StepRefresh:   {},

	StepCheck:     {"selector", "present", "timeout"},
	StepLoopUntil: {"selector", "present", "timeout", "tick"},

	StepScroll:          {"direction", "amount"},
	StepScrollTo:        {"to"},
	StepScrollToElement: {"selector"},

	StepHover:      {"selector"},
	StepSelect:     {"selector", "by", "value"},
	StepFileUpload: {"selector", "path"},
	StepDragDrop:   {"source", "target", "to_offset_x", "to_offset_y"},

	StepSwitchToFrame:   {"selector", "index"},
	StepSwitchToDefault: {},

	StepNewTab:      {"url", "foreground"},
	StepSwitchToTab: {"by", "value"},
	StepCloseTab:    {"index"},

	StepExtract:    {"selector", "attr", "var", "all"},
	StepAssertText: {"selector", "attr", "match", "value"},
	StepEvaluate:   {"script", "args", "var"},

	StepPauseForHuman: {"reason"},
}

// requiredStepKeys lists the fields a step must carry to be executable.
var requiredStepKeys = map[StepType][]string{
	StepClick:        {"selector"},
	StepDoubleClick:  {"selector"},
	StepContextClick: {"selector"},

	StepInput:    {"selector", "text"},
	StepPressKey: {"key"},
	StepHotkey:   {"keys"},

	StepWait:          {},
	StepWaitVisible:   {"selector"},
	StepWaitURL:       {"pattern"},
	StepWaitDOMStable: {},

	StepGoto:      {"url"},
	StepGoBack:    {},
	StepGoForward: {},
	StepRefresh:   {},

	StepCheck:     {"selector", "present"},
	StepLoopUntil: {"selector", "present"},

	StepScroll:          {},
	StepScrollTo:        {},
	StepScrollToElement: {"selector"},

	StepHover:      {"selector"},
	StepSelect:     {"selector", "value"},
	StepFileUpload: {"selector", "path"},
	// drag_and_drop additionally needs target or both offsets, checked below.
	StepDragDrop: {"source"},

	StepSwitchToFrame:   {},
	StepSwitchToDefault: {},

	StepNewTab:      {},
	StepSwitchToTab: {"by", "value"},
	StepCloseTab:    {},

	StepExtract:    {"selector", "attr", "var"},
	StepAssertText: {"selector", "value"},
	StepEvaluate:   {"script"},

	StepPauseForHuman: {},
}

// Step is one executable instruction as decoded from untrusted model JSON.
// Values may contain ${name} / ${name:-fallback} references; this layer
// preserves them verbatim, substitution belongs to the executor.
type Step map[string]any

// Type returns the canonical step type, empty when absent.
func (s Step) Type() string {
	t, _ := s["type"].(string)
	return t
}

// Selector returns the step's selector field, empty when absent.
func (s Step) Selector() string {
	sel, _ := s["selector"].(string)
	return sel
}

// ValidateStep checks a raw decoded JSON value against the closed vocabulary
// and returns a cleaned step: unknown fields dropped, aliases folded,
// per-type defaults applied. Unknown types and missing required fields are
// errors; such steps are never executed.
func ValidateStep(raw any) (Step, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		if st, isStep := raw.(Step); isStep {
			obj = map[string]any(st)
		} else {
			return nil, fmt.Errorf("step must be a JSON object, got %T", raw)
		}
	}

	rawType := strings.ToLower(strings.TrimSpace(asString(obj["type"])))
	t := StepType(rawType)
	if alias, found := stepAliases[rawType]; found {
		t = alias
	}
	allowed, known := allowedStepKeys[t]
	if !known {
		return nil, fmt.Errorf("unknown step type: %q", rawType)
	}

	out := Step{"type": string(t)}
	for _, k := range allowed {
		if v, present := obj[k]; present {
			out[k] = v
		}
	}

	// The "sleep" alias carries ms where wait expects seconds.
	if rawType == "sleep" && t == StepWait {
		if _, has := out["seconds"]; !has {
			if ms, has := obj["ms"]; has {
				out["seconds"] = asFloat(ms, 500) / 1000.0
			}
		}
	}

	for _, r := range requiredStepKeys[t] {
		if _, present := out[r]; !present {
			return nil, fmt.Errorf("step %q missing required field %q", t, r)
		}
	}

	applyStepDefaults(t, out)

	if t == StepDragDrop {
		_, hasTarget := out["target"]
		_, hasX := out["to_offset_x"]
		_, hasY := out["to_offset_y"]
		if !hasTarget && !(hasX && hasY) {
			return nil, fmt.Errorf("drag_and_drop requires target or to_offset_x/to_offset_y")
		}
		if hasX {
			out["to_offset_x"] = asInt(out["to_offset_x"], 0)
		}
		if hasY {
			out["to_offset_y"] = asInt(out["to_offset_y"], 0)
		}
	}

	return out, nil
}

// ValidatePlan validates every entry of a raw decoded JSON array, silently
// dropping entries that fail validation. A non-array input yields an empty
// plan. Downstream code can iterate the result without further checks.
func ValidatePlan(raw any) []Step {
	items, ok := raw.([]any)
	if !ok {
		if steps, isSteps := raw.([]Step); isSteps {
			items = make([]any, len(steps))
			for i, s := range steps {
				items[i] = map[string]any(s)
			}
		} else {
			return []Step{}
		}
	}
	plan := make([]Step, 0, len(items))
	for _, item := range items {
		step, err := ValidateStep(item)
		if err != nil {
			continue
		}
		plan = append(plan, step)
	}
	return plan
}

// applyStepDefaults fills in the per-type defaults and normalizations the
// executor relies on.
func applyStepDefaults(t StepType, out Step) {
	switch t {
	case StepWait:
		out["seconds"] = asFloat(out["seconds"], 0.5)
	case StepScroll:
		out["direction"] = strings.ToLower(asStringDefault(out["direction"], "down"))
		out["amount"] = asInt(out["amount"], 600)
	case StepScrollTo:
		out["to"] = strings.ToLower(asStringDefault(out["to"], "bottom"))
	case StepWaitVisible:
		out["timeout"] = asInt(out["timeout"], DefaultWaitSec)
	case StepWaitURL:
		out["regex"] = asBool(out["regex"])
		out["timeout"] = asInt(out["timeout"], DefaultWaitSec)
	case StepWaitDOMStable:
		out["ms"] = asInt(out["ms"], 1000)
		out["timeout"] = asInt(out["timeout"], DefaultWaitSec)
	case StepLoopUntil:
		out["timeout"] = asInt(out["timeout"], DefaultStepTimeout)
		tick, err := ValidateStep(out["tick"])
		if err != nil {
			tick = Step{"type": string(StepWait), "seconds": 1.0}
		}
		out["tick"] = tick
	case StepSelect:
		out["by"] = strings.ToLower(asStringDefault(out["by"], "text"))
	case StepAssertText:
		out["attr"] = strings.ToLower(asStringDefault(out["attr"], "text"))
		out["match"] = strings.ToLower(asStringDefault(out["match"], "contains"))
	case StepHotkey:
		out["keys"] = normalizeKeys(out["keys"])
	}
}

// normalizeKeys accepts ["CTRL","A"], "CTRL+A" or "ENTER" and returns a
// string slice.
func normalizeKeys(v any) []string {
	switch keys := v.(type) {
	case []string:
		return keys
	case []any:
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, asString(k))
		}
		return out
	default:
		s := asString(v)
		if s == "" {
			return []string{}
		}
		if strings.Contains(s, "+") {
			parts := strings.Split(s, "+")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			return out
		}
		return []string{s}
	}
}

// -- loose JSON coercion helpers --

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func asStringDefault(v any, def string) string {
	if s := strings.TrimSpace(asString(v)); s != "" {
		return s
	}
	return def
}

func asInt(v any, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return def
}

func asFloat(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return def
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	default:
		return false
	}
}
