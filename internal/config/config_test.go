// internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.PrimaryModel)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.FallbackModel)
	assert.Equal(t, 2, cfg.LLM.Retries)
	assert.Equal(t, 60*time.Second, cfg.LLM.APITimeout)
	assert.Equal(t, 200_000, cfg.Planner.MaxDOMChars)
	assert.Equal(t, 8_000, cfg.Planner.MaxTaskChars)
	assert.Equal(t, 6, cfg.Planner.MaxStepsPerSubgoal)
	assert.Equal(t, 3, cfg.Orchestrator.VerifyBudget)
	assert.Equal(t, 3, cfg.Orchestrator.MaxFixSteps)
	assert.Equal(t, 2, cfg.Orchestrator.MaxRepairsPerStep)
	assert.True(t, cfg.Orchestrator.FallbackToFlat)
	assert.True(t, cfg.Orchestrator.PreserveCompletedSubgoals)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	valid := NewDefaultConfig()
	assert.NoError(t, valid.Validate(), "default config should be valid")

	t.Run("missing primary model", func(t *testing.T) {
		cfg := *valid
		cfg.LLM.PrimaryModel = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "llm.primary_model")
	})

	t.Run("negative retries", func(t *testing.T) {
		cfg := *valid
		cfg.LLM.Retries = -1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "llm.retries")
	})

	t.Run("temperature out of range", func(t *testing.T) {
		cfg := *valid
		cfg.LLM.Temperature = 2.5
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "llm.temperature")
	})

	t.Run("nonpositive text caps", func(t *testing.T) {
		cfg := *valid
		cfg.Planner.MaxDOMChars = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "text caps")
	})

	t.Run("verify budget below one", func(t *testing.T) {
		cfg := *valid
		cfg.Orchestrator.VerifyBudget = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "verify_budget")
	})
}

// -- Viper Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("loads yaml overrides on top of defaults", func(t *testing.T) {
		yaml := []byte(`
llm:
  primary_model: gemini-exp
  retries: 5
planner:
  max_steps_per_subgoal: 4
orchestrator:
  verify_budget: 2
  fallback_to_flat: false
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewReader(yaml)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "gemini-exp", cfg.LLM.PrimaryModel)
		assert.Equal(t, 5, cfg.LLM.Retries)
		assert.Equal(t, 4, cfg.Planner.MaxStepsPerSubgoal)
		assert.Equal(t, 2, cfg.Orchestrator.VerifyBudget)
		assert.False(t, cfg.Orchestrator.FallbackToFlat)
		// Untouched fields keep their defaults.
		assert.Equal(t, "gemini-2.5-flash", cfg.LLM.FallbackModel)
		assert.Equal(t, 200_000, cfg.Planner.MaxDOMChars)
	})

	t.Run("api key comes from the environment", func(t *testing.T) {
		t.Setenv("GOOGLE_API_KEY", "test-key-123")

		v := viper.New()
		SetDefaults(v)
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "test-key-123", cfg.LLM.APIKey)
	})

	t.Run("rejects invalid override", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("orchestrator.verify_budget", 0)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
