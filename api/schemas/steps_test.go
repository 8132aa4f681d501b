// api/schemas/steps_test.go
package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStep(t *testing.T) {
	t.Run("canonical step passes with extras dropped", func(t *testing.T) {
		step, err := ValidateStep(map[string]any{
			"type":       "click",
			"selector":   "#submit",
			"confidence": 0.9,
			"thoughts":   "this should work",
		})
		require.NoError(t, err)
		assert.Equal(t, "click", step.Type())
		assert.Equal(t, "#submit", step.Selector())
		assert.NotContains(t, step, "confidence")
		assert.NotContains(t, step, "thoughts")
	})

	t.Run("type is case and whitespace tolerant", func(t *testing.T) {
		step, err := ValidateStep(map[string]any{"type": "  CLICK ", "selector": "#a"})
		require.NoError(t, err)
		assert.Equal(t, "click", step.Type())
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		_, err := ValidateStep(map[string]any{"type": "teleport", "selector": "#a"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown step type")
	})

	t.Run("missing required field is rejected", func(t *testing.T) {
		_, err := ValidateStep(map[string]any{"type": "input", "selector": "#q"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `missing required field "text"`)
	})

	t.Run("non-object input is rejected", func(t *testing.T) {
		_, err := ValidateStep("click the button")
		require.Error(t, err)
	})
}

func TestValidateStepAliases(t *testing.T) {
	t.Run("type becomes input", func(t *testing.T) {
		step, err := ValidateStep(map[string]any{"type": "type", "selector": "#q", "text": "hi"})
		require.NoError(t, err)
		assert.Equal(t, "input", step.Type())
	})

	t.Run("navigate becomes goto", func(t *testing.T) {
		step, err := ValidateStep(map[string]any{"type": "navigate", "url": "https://example.com"})
		require.NoError(t, err)
		assert.Equal(t, "goto", step.Type())
	})

	t.Run("sleep becomes wait with ms converted to seconds", func(t *testing.T) {
		step, err := ValidateStep(map[string]any{"type": "sleep", "ms": float64(2500)})
		require.NoError(t, err)
		assert.Equal(t, "wait", step.Type())
		assert.Equal(t, 2.5, step["seconds"])
	})

	t.Run("sleep with explicit seconds keeps them", func(t *testing.T) {
		step, err := ValidateStep(map[string]any{"type": "sleep", "seconds": float64(3), "ms": float64(100)})
		require.NoError(t, err)
		assert.Equal(t, 3.0, step["seconds"])
	})
}

func TestValidateStepDefaults(t *testing.T) {
	t.Run("scroll gets direction and amount", func(t *testing.T) {
		step, err := ValidateStep(map[string]any{"type": "scroll", "direction": "UP", "amount": float64(300)})
		require.NoError(t, err)
		assert.Equal(t, "up", step["direction"])
		assert.Equal(t, 300, step["amount"])
	})

	t.Run("wait_visible gets default timeout", func(t *testing.T) {
		step, err := ValidateStep(map[string]any{"type": "wait_visible", "selector": ".spinner"})
		require.NoError(t, err)
		assert.Equal(t, DefaultWaitSec, step["timeout"])
	})

	t.Run("select defaults to by text", func(t *testing.T) {
		step, err := ValidateStep(map[string]any{"type": "select", "selector": "#c", "by": "", "value": "DE"})
		require.NoError(t, err)
		assert.Equal(t, "text", step["by"])
	})

	t.Run("assert_text defaults attr and match", func(t *testing.T) {
		step, err := ValidateStep(map[string]any{"type": "assert_text", "selector": ".total", "value": "42"})
		require.NoError(t, err)
		assert.Equal(t, "text", step["attr"])
		assert.Equal(t, "contains", step["match"])
	})

	t.Run("hotkey string forms are normalized", func(t *testing.T) {
		step, err := ValidateStep(map[string]any{"type": "hotkey", "keys": "CTRL+A"})
		require.NoError(t, err)
		assert.Equal(t, []string{"CTRL", "A"}, step["keys"])

		step, err = ValidateStep(map[string]any{"type": "hotkey", "keys": "ENTER"})
		require.NoError(t, err)
		assert.Equal(t, []string{"ENTER"}, step["keys"])

		step, err = ValidateStep(map[string]any{"type": "hotkey", "keys": []any{"CTRL", "SHIFT", "P"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"CTRL", "SHIFT", "P"}, step["keys"])
	})

	t.Run("loop_until validates its tick recursively", func(t *testing.T) {
		step, err := ValidateStep(map[string]any{
			"type":     "loop_until",
			"selector": ".done",
			"present":  true,
			"tick":     map[string]any{"type": "scroll", "direction": "down", "amount": float64(400)},
		})
		require.NoError(t, err)
		tick, ok := step["tick"].(Step)
		require.True(t, ok)
		assert.Equal(t, "scroll", tick.Type())
		assert.Equal(t, DefaultStepTimeout, step["timeout"])
	})

	t.Run("loop_until with invalid tick falls back to wait", func(t *testing.T) {
		step, err := ValidateStep(map[string]any{
			"type":     "loop_until",
			"selector": ".done",
			"present":  true,
			"tick":     "scroll a bit",
		})
		require.NoError(t, err)
		tick := step["tick"].(Step)
		assert.Equal(t, "wait", tick.Type())
		assert.Equal(t, 1.0, tick["seconds"])
	})
}

func TestValidateStepDragAndDrop(t *testing.T) {
	t.Run("target form", func(t *testing.T) {
		step, err := ValidateStep(map[string]any{"type": "drag_and_drop", "source": "#item", "target": "#bin"})
		require.NoError(t, err)
		assert.Equal(t, "#bin", step["target"])
	})

	t.Run("offset form", func(t *testing.T) {
		step, err := ValidateStep(map[string]any{
			"type": "drag_and_drop", "source": "#item",
			"to_offset_x": float64(10), "to_offset_y": float64(-20),
		})
		require.NoError(t, err)
		assert.Equal(t, 10, step["to_offset_x"])
		assert.Equal(t, -20, step["to_offset_y"])
	})

	t.Run("neither target nor offsets is rejected", func(t *testing.T) {
		_, err := ValidateStep(map[string]any{"type": "drag_and_drop", "source": "#item"})
		require.Error(t, err)
	})

	t.Run("one offset only is rejected", func(t *testing.T) {
		_, err := ValidateStep(map[string]any{"type": "drag_and_drop", "source": "#item", "to_offset_x": float64(5)})
		require.Error(t, err)
	})
}

func TestValidatePlan(t *testing.T) {
	t.Run("invalid entries are dropped silently", func(t *testing.T) {
		plan := ValidatePlan([]any{
			map[string]any{"type": "goto", "url": "https://example.com"},
			map[string]any{"type": "fly"},
			42,
			map[string]any{"type": "wait", "seconds": float64(1)},
		})
		require.Len(t, plan, 2)
		assert.Equal(t, "goto", plan[0].Type())
		assert.Equal(t, "wait", plan[1].Type())
	})

	t.Run("non-array yields empty non-nil plan", func(t *testing.T) {
		plan := ValidatePlan(map[string]any{"type": "goto", "url": "x"})
		require.NotNil(t, plan)
		assert.Empty(t, plan)
	})

	t.Run("already-typed steps pass through", func(t *testing.T) {
		plan := ValidatePlan([]Step{{"type": "refresh"}})
		require.Len(t, plan, 1)
	})
}
