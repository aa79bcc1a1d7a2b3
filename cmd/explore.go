package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scout-cli/internal/audit"
	"github.com/xkilldash9x/scout-cli/internal/explorer"
	"github.com/xkilldash9x/scout-cli/internal/observability"
	"github.com/xkilldash9x/scout-cli/internal/report"
)

// newExploreCmd creates and configures the `explore` command.
func newExploreCmd() *cobra.Command {
	exploreCmd := &cobra.Command{
		Use:   "explore <url>",
		Short: "Autonomously explores a web application and reports bugs",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so command-line values override file and env config.
			if err := viper.BindPFlag("explore.max_actions", cmd.Flags().Lookup("max-actions")); err != nil {
				return err
			}
			if err := viper.BindPFlag("explore.max_time", cmd.Flags().Lookup("max-time")); err != nil {
				return err
			}
			if err := viper.BindPFlag("explore.output", cmd.Flags().Lookup("output")); err != nil {
				return err
			}
			if err := viper.BindPFlag("explore.audit_dir", cmd.Flags().Lookup("audit-dir")); err != nil {
				return err
			}
			if err := viper.BindPFlag("explore.wait_for_selector", cmd.Flags().Lookup("wait-for")); err != nil {
				return err
			}
			if err := viper.BindPFlag("explore.max_depth", cmd.Flags().Lookup("max-depth")); err != nil {
				return err
			}
			if err := viper.BindPFlag("explore.app_ready_script", cmd.Flags().Lookup("app-ready")); err != nil {
				return err
			}
			if err := viper.BindPFlag("ai.provider", cmd.Flags().Lookup("provider")); err != nil {
				return err
			}
			if err := viper.BindPFlag("ai.model", cmd.Flags().Lookup("model")); err != nil {
				return err
			}
			return viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg := appConfig
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}

			startURL := args[0]
			rt, err := newRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.close()

			trail := audit.NewTrail(logger)
			exp := explorer.New(rt.session, rt.elements, rt.scout, rt.backend, rt.session.Harvester(), trail, cfg.Explore, logger)

			result, err := exp.Explore(ctx, startURL)
			if err != nil {
				return fmt.Errorf("exploration failed: %w", err)
			}

			if err := report.Write(result, cfg.Explore.Output); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			logger.Info("Exploration complete",
				zap.String("report", cfg.Explore.Output),
				zap.Int("bugs", len(result.Bugs)),
				zap.String("stop_reason", result.StopReason))

			fmt.Fprintf(cmd.OutOrStdout(), "Explored %s: %d actions, %d pages, %d bugs. Report: %s\n",
				startURL, result.ActionsTaken, result.PagesVisited, len(result.Bugs), cfg.Explore.Output)
			return nil
		},
	}

	exploreCmd.Flags().Int("max-actions", 50, "maximum number of actions before stopping")
	exploreCmd.Flags().Duration("max-time", 0, "wall-clock budget for the session (e.g. 5m)")
	exploreCmd.Flags().StringP("output", "o", "", "report path; extension picks the format (.html, .json, other = text)")
	exploreCmd.Flags().String("audit-dir", "", "directory to write the full audit bundle into")
	exploreCmd.Flags().String("wait-for", "", "CSS selector to wait for after navigation")
	exploreCmd.Flags().Int("max-depth", 5, "how many pages deep to wander before returning to the start URL")
	exploreCmd.Flags().String("app-ready", "", "JS predicate that must become true before exploring")
	exploreCmd.Flags().String("provider", "", "vision AI provider (gemini or openai)")
	exploreCmd.Flags().String("model", "", "model name for the primary provider")
	exploreCmd.Flags().Bool("headless", true, "run the browser headless")
	return exploreCmd
}
