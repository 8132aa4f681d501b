// cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootVersion(t *testing.T) {
	out, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestPlanFlagValidation(t *testing.T) {
	t.Run("task is required", func(t *testing.T) {
		_, err := executeCommand(t, "plan")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--task is required")
	})

	t.Run("mode must be outline or flat", func(t *testing.T) {
		_, err := executeCommand(t, "plan", "--task", "do something", "--mode", "bogus")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--mode must be outline or flat")
	})

	t.Run("missing dom file is reported", func(t *testing.T) {
		_, err := executeCommand(t, "plan",
			"--task", "do something",
			"--dom-file", "/nonexistent/dom.html",
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading DOM snapshot")
	})
}

func TestRootRejectsUnknownCommand(t *testing.T) {
	_, err := executeCommand(t, "frobnicate")
	require.Error(t, err)
}
