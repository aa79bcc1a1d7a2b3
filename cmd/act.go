package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/scout-cli/internal/observability"
)

// newActCmd creates and configures the `act` command.
func newActCmd() *cobra.Command {
	actCmd := &cobra.Command{
		Use:   "act <url> <instruction>",
		Short: "Executes one natural language instruction against a page",
		Long: `Act navigates to the URL and runs a single natural language instruction,
for example: scout act https://app.example.com "click the Login button".`,
		Args: cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("act.retries", cmd.Flags().Lookup("retries")); err != nil {
				return err
			}
			if err := viper.BindPFlag("act.timeout", cmd.Flags().Lookup("timeout")); err != nil {
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

			url, instruction := args[0], args[1]
			rt, err := newRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.session.Navigate(ctx, url); err != nil {
				return fmt.Errorf("failed to navigate to %s: %w", url, err)
			}

			if !rt.scout.Act(ctx, instruction) {
				return fmt.Errorf("instruction failed: %s", instruction)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", instruction)
			return nil
		},
	}

	actCmd.Flags().Int("retries", 1, "number of retries after a failed attempt")
	actCmd.Flags().Duration("timeout", 0, "timeout for each browser operation (e.g. 10s)")
	actCmd.Flags().Bool("headless", true, "run the browser headless")
	return actCmd
}
