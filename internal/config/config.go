// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	LLM          LLMConfig          `mapstructure:"llm" yaml:"llm"`
	Planner      PlannerConfig      `mapstructure:"planner" yaml:"planner"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// LLMConfig configures the model gateway: the primary endpoint, an optional
// fallback endpoint, and the bounded retry policy. Constructed once per run
// and treated as immutable afterwards.
type LLMConfig struct {
	PrimaryModel  string            `mapstructure:"primary_model" yaml:"primary_model"`
	FallbackModel string            `mapstructure:"fallback_model" yaml:"fallback_model"`
	APIKey        string            `mapstructure:"api_key" yaml:"-"`
	Endpoint      string            `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float32           `mapstructure:"temperature" yaml:"temperature"`
	Retries       int               `mapstructure:"retries" yaml:"retries"`
	TopP          float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK          int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
}

// PlannerConfig bounds the prompt input budget and per-subgoal plan length.
type PlannerConfig struct {
	MaxDOMChars        int `mapstructure:"max_dom_chars" yaml:"max_dom_chars"`
	MaxTaskChars       int `mapstructure:"max_task_chars" yaml:"max_task_chars"`
	MaxStepsPerSubgoal int `mapstructure:"max_steps_per_subgoal" yaml:"max_steps_per_subgoal"`
}

// OrchestratorConfig tunes the plan/execute/verify loop.
type OrchestratorConfig struct {
	// VerifyBudget caps how many retry verdicts one subgoal may absorb
	// before the run is declared blocked.
	VerifyBudget int `mapstructure:"verify_budget" yaml:"verify_budget"`
	// MaxFixSteps caps how many corrective steps of a retry verdict are
	// executed.
	MaxFixSteps int `mapstructure:"max_fix_steps" yaml:"max_fix_steps"`
	// MaxRepairsPerStep bounds isolated step repair in legacy flat mode.
	MaxRepairsPerStep int `mapstructure:"max_repairs_per_step" yaml:"max_repairs_per_step"`
	// FallbackToFlat switches to one-shot flat planning when the outline
	// comes back empty.
	FallbackToFlat bool `mapstructure:"fallback_to_flat" yaml:"fallback_to_flat"`
	// PreserveCompletedSubgoals keeps already-completed subgoals when an
	// outline is regenerated after a block; when false the whole outline is
	// discarded. Caller-level policy, never guessed by the orchestrator.
	PreserveCompletedSubgoals bool `mapstructure:"preserve_completed_subgoals" yaml:"preserve_completed_subgoals"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "adpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- LLM --
	v.SetDefault("llm.primary_model", "gemini-2.5-pro")
	v.SetDefault("llm.fallback_model", "gemini-2.5-flash")
	v.SetDefault("llm.api_timeout", "60s")
	v.SetDefault("llm.temperature", 0.15)
	v.SetDefault("llm.retries", 2)
	v.SetDefault("llm.max_tokens", 8192)

	// -- Planner --
	v.SetDefault("planner.max_dom_chars", 200_000)
	v.SetDefault("planner.max_task_chars", 8_000)
	v.SetDefault("planner.max_steps_per_subgoal", 6)

	// -- Orchestrator --
	v.SetDefault("orchestrator.verify_budget", 3)
	v.SetDefault("orchestrator.max_fix_steps", 3)
	v.SetDefault("orchestrator.max_repairs_per_step", 2)
	v.SetDefault("orchestrator.fallback_to_flat", true)
	v.SetDefault("orchestrator.preserve_completed_subgoals", true)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// The API key comes from the environment, never from the config file.
	v.BindEnv("llm.api_key", "GOOGLE_API_KEY", "GEMINI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.LLM.PrimaryModel == "" {
		return fmt.Errorf("llm.primary_model is a required configuration field")
	}
	if c.LLM.Retries < 0 {
		return fmt.Errorf("llm.retries must be >= 0")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2]")
	}
	if c.Planner.MaxDOMChars <= 0 || c.Planner.MaxTaskChars <= 0 {
		return fmt.Errorf("planner text caps must be positive")
	}
	if c.Orchestrator.VerifyBudget < 1 {
		return fmt.Errorf("orchestrator.verify_budget must be >= 1")
	}
	if c.Orchestrator.MaxFixSteps < 0 {
		return fmt.Errorf("orchestrator.max_fix_steps must be >= 0")
	}
	if c.Orchestrator.MaxRepairsPerStep < 0 {
		return fmt.Errorf("orchestrator.max_repairs_per_step must be >= 0")
	}
	return nil
}
