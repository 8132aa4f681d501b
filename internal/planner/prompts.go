// internal/planner/prompts.go
package planner

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/EasyByteRu/adpilot/api/schemas"
	"github.com/EasyByteRu/adpilot/internal/config"
	"github.com/EasyByteRu/adpilot/internal/llmutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// systemRules is the invariant preamble shared by every planning prompt. It
// pins the closed step vocabulary, the variable syntax, and the JSON-only
// output contract. Builders append per-call sections below it; nothing ever
// mutates this text at runtime.
const systemRules = `You are a browser automation planner. You control a real browser through a fixed set of step types and NOTHING else.

STEP VOCABULARY (the only allowed "type" values):
- click / double_click / context_click: {"type": "click", "selector": "#submit"}
- input: {"type": "input", "selector": "#email", "text": "user@example.com", "clear": true}
- press_key: {"type": "press_key", "key": "ENTER"}
- hotkey: {"type": "hotkey", "keys": ["CTRL", "A"]}
- wait: {"type": "wait", "seconds": 2}
- wait_visible: {"type": "wait_visible", "selector": ".results", "timeout": 12}
- wait_url: {"type": "wait_url", "pattern": "dashboard", "regex": false, "timeout": 12}
- wait_dom_stable: {"type": "wait_dom_stable", "ms": 1000, "timeout": 12}
- goto: {"type": "goto", "url": "https://example.com/login"}
- go_back / go_forward / refresh: {"type": "go_back"}
- check: {"type": "check", "selector": ".banner", "present": true}
- loop_until: {"type": "loop_until", "selector": ".done", "present": true, "timeout": 35, "tick": {"type": "wait", "seconds": 1}}
- scroll: {"type": "scroll", "direction": "down", "amount": 600}
- scroll_to: {"type": "scroll_to", "to": "bottom"}
- scroll_to_element: {"type": "scroll_to_element", "selector": "#footer"}
- hover: {"type": "hover", "selector": ".menu"}
- select: {"type": "select", "selector": "#country", "by": "text", "value": "Germany"}
- file_upload: {"type": "file_upload", "selector": "input[type=file]", "path": "/tmp/image.png"}
- drag_and_drop: {"type": "drag_and_drop", "source": "#item", "target": "#bin"}
- switch_to_frame: {"type": "switch_to_frame", "selector": "iframe#editor"} / switch_to_default
- new_tab / switch_to_tab / close_tab: {"type": "switch_to_tab", "by": "index", "value": "1"}
- extract: {"type": "extract", "selector": "h1.title", "attr": "text", "var": "page_title"}
- assert_text: {"type": "assert_text", "selector": ".total", "value": "42", "match": "contains"}
- evaluate: {"type": "evaluate", "script": "return document.title", "var": "title"}
- pause_for_human: {"type": "pause_for_human", "reason": "captcha on screen"}

SELECTOR POLICY:
- Use only selectors that appear in VISIBLE_DOM. Never invent ids, classes or attributes.
- Prefer stable attributes (id, name, data-*) over positional or text-based selectors.
- Never use brittle structural selectors like :nth-child, :nth-of-type or long descendant chains.
- Never submit text into fields whose name, label or placeholder suggests a global search or filter box.
- Never target fields marked readonly or disabled.
- If a needed element is not in VISIBLE_DOM, scroll or wait for it instead of guessing.

VARIABLES:
- Values from earlier "extract"/"evaluate" steps are available as ${name}.
- ${name:-fallback} substitutes the fallback when the variable is unset.
- Reference variables instead of copying their literal values into steps.

OUTPUT CONTRACT:
- Respond with JSON ONLY. No prose, no explanations, no markdown outside a single JSON value.
- Do not repeat steps listed in HISTORY_DONE; they already happened.
- Insert a wait or wait_visible step after navigation and after actions that trigger page updates.`

// PromptBuilder assembles planning prompts with per-section length caps so a
// huge DOM snapshot cannot starve the rest of the prompt.
type PromptBuilder struct {
	maxTaskChars int
	maxDOMChars  int
}

// NewPromptBuilder derives caps from planner configuration.
func NewPromptBuilder(cfg config.PlannerConfig) *PromptBuilder {
	return &PromptBuilder{
		maxTaskChars: cfg.MaxTaskChars,
		maxDOMChars:  cfg.MaxDOMChars,
	}
}

// clip truncates s to at most max bytes, backing up to a rune boundary so
// the cut never leaves invalid UTF-8. Each section is capped independently.
func clip(s string, max int) string {
	s = llmutil.SafeString(s)
	if max > 0 && len(s) > max {
		return truncateToRune(s, max)
	}
	return s
}

// compactJSON renders v as one-line JSON for embedding into a prompt section.
func compactJSON(v any) string {
	out, err := json.MarshalToString(v)
	if err != nil {
		return "[]"
	}
	return out
}

// section appends one labeled block to the prompt body.
func section(b *strings.Builder, label, content string) {
	b.WriteString("\n\n")
	b.WriteString(label)
	b.WriteString(":\n")
	b.WriteString(content)
}

func (p *PromptBuilder) historyJSON(history []schemas.Step) string {
	if len(history) == 0 {
		return "[]"
	}
	return compactJSON(history)
}

func (p *PromptBuilder) varsJSON(vars map[string]any) string {
	if len(vars) == 0 {
		return "{}"
	}
	return compactJSON(vars)
}

// PlanPrompt asks for a complete flat plan for the whole task.
func (p *PromptBuilder) PlanPrompt(env schemas.EnvContext) string {
	var b strings.Builder
	b.WriteString(systemRules)
	section(&b, "TASK", clip(env.Task, p.maxTaskChars))
	section(&b, "KNOWN_VARS", p.varsJSON(env.Vars))
	section(&b, "HISTORY_DONE", p.historyJSON(env.History))
	section(&b, "VISIBLE_DOM", clip(env.DOM, p.maxDOMChars))
	section(&b, "INSTRUCTION", "Produce the full ordered plan that completes TASK from the current page state. Respond with a JSON array of step objects.")
	return b.String()
}

// RepairStepPrompt asks for a single replacement for one failing step. The
// response must be one JSON object, not an array.
func (p *PromptBuilder) RepairStepPrompt(env schemas.EnvContext, failing schemas.Step, execErr string) string {
	var b strings.Builder
	b.WriteString(systemRules)
	section(&b, "TASK", clip(env.Task, p.maxTaskChars))
	section(&b, "KNOWN_VARS", p.varsJSON(env.Vars))
	section(&b, "HISTORY_DONE", p.historyJSON(env.History))
	section(&b, "FAILING_STEP", compactJSON(failing))
	section(&b, "EXECUTION_ERROR", clip(execErr, 2_000))
	section(&b, "VISIBLE_DOM", clip(env.DOM, p.maxDOMChars))
	section(&b, "INSTRUCTION", "Propose ONE replacement step that achieves the same intent as FAILING_STEP on the current page. Respond with a single JSON object, not an array. If the step is no longer needed respond with {\"type\": \"wait\", \"seconds\": 0.5}.")
	return b.String()
}

// OutlinePrompt asks for a high-level subgoal outline of the task.
func (p *PromptBuilder) OutlinePrompt(env schemas.EnvContext) string {
	var b strings.Builder
	b.WriteString(systemRules)
	section(&b, "TASK", clip(env.Task, p.maxTaskChars))
	section(&b, "VISIBLE_DOM", clip(env.DOM, p.maxDOMChars))
	section(&b, "INSTRUCTION", `Break TASK into 2-8 sequential subgoals, each independently verifiable from the page state. Respond with a JSON object: {"subgoals": [{"id": "sg1", "title": "...", "goal": "...", "done_when": "...", "notes": "..."}]}. "done_when" must describe an observable page condition.`)
	return b.String()
}

// SubgoalStepsPrompt asks for the next batch of steps for one subgoal,
// bounded to maxSteps.
func (p *PromptBuilder) SubgoalStepsPrompt(env schemas.EnvContext, sg schemas.Subgoal, maxSteps int) string {
	var b strings.Builder
	b.WriteString(systemRules)
	section(&b, "GLOBAL_TASK", clip(env.Task, p.maxTaskChars))
	section(&b, "SUBGOAL", compactJSON(sg))
	section(&b, "KNOWN_VARS", p.varsJSON(env.Vars))
	section(&b, "HISTORY_DONE", p.historyJSON(env.History))
	section(&b, "VISIBLE_DOM", clip(env.DOM, p.maxDOMChars))
	section(&b, "INSTRUCTION", fmt.Sprintf("Produce the next steps advancing SUBGOAL only, at most %d steps. Stop planning at the subgoal boundary even if the global task continues. Respond with a JSON array of step objects.", maxSteps))
	return b.String()
}

// VerifyOrAdjustPrompt asks for a verdict on whether the subgoal was achieved
// and, on retry, a short corrective step list.
func (p *PromptBuilder) VerifyOrAdjustPrompt(env schemas.EnvContext, sg schemas.Subgoal, lastExecuted []schemas.Step) string {
	var b strings.Builder
	b.WriteString(systemRules)
	section(&b, "GLOBAL_TASK", clip(env.Task, p.maxTaskChars))
	section(&b, "SUBGOAL", compactJSON(sg))
	section(&b, "KNOWN_VARS", p.varsJSON(env.Vars))
	section(&b, "LAST_EXECUTED_STEPS", p.historyJSON(lastExecuted))
	section(&b, "VISIBLE_DOM", clip(env.DOM, p.maxDOMChars))
	section(&b, "INSTRUCTION", `Judge from VISIBLE_DOM whether SUBGOAL's done_when condition holds. Respond with a JSON object: {"status": "ok" | "retry" | "blocked", "reason": "...", "fix_steps": [...]}. Use "ok" when done_when is satisfied, "retry" with up to 3 fix_steps when another attempt can succeed, and "blocked" with an empty fix_steps when no automated action can help.`)
	return b.String()
}
