// cmd/plan.go
package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/EasyByteRu/adpilot/api/schemas"
	"github.com/EasyByteRu/adpilot/internal/config"
	"github.com/EasyByteRu/adpilot/internal/llmclient"
	"github.com/EasyByteRu/adpilot/internal/llmutil"
	"github.com/EasyByteRu/adpilot/internal/observability"
	"github.com/EasyByteRu/adpilot/internal/planner"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newPlanCommand builds the "plan" subcommand. It produces either a subgoal
// outline or a full flat plan for a task and prints it as JSON; execution is
// left to whatever drives the browser.
func newPlanCommand(v *viper.Viper) *cobra.Command {
	var (
		task    string
		mode    string
		domFile string
	)

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Produce a plan for a browser task and print it as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if task == "" {
				return fmt.Errorf("--task is required")
			}
			if mode != "outline" && mode != "flat" {
				return fmt.Errorf("--mode must be outline or flat, got %q", mode)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			var dom string
			if domFile != "" {
				raw, err := os.ReadFile(domFile)
				if err != nil {
					return fmt.Errorf("reading DOM snapshot: %w", err)
				}
				dom = llmutil.SafeString(string(raw))
			}

			gateway, err := llmclient.NewGatewayFromConfig(cfg.LLM, logger)
			if err != nil {
				return err
			}
			pl := planner.New(gateway, cfg.Planner, logger)

			env := schemas.EnvContext{Task: task, DOM: dom}
			ctx := cmd.Context()

			var out any
			switch mode {
			case "outline":
				outline, err := pl.PlanOutline(ctx, env)
				if err != nil {
					return err
				}
				logger.Info("Outline planned", zap.Int("subgoals", len(outline.Subgoals)))
				out = outline
			case "flat":
				plan, err := pl.PlanFull(ctx, env)
				if err != nil {
					return err
				}
				logger.Info("Flat plan produced", zap.Int("steps", len(plan)))
				out = plan
			}

			encoded, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding plan: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}

	planCmd.Flags().StringVarP(&task, "task", "t", "", "the task to plan (required)")
	planCmd.Flags().StringVarP(&mode, "mode", "m", "outline", "planning mode: outline or flat")
	planCmd.Flags().StringVar(&domFile, "dom-file", "", "file holding the current DOM snapshot")

	return planCmd
}
