package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/scout-cli/internal/observability"
)

// newVerifyCmd creates and configures the `verify` command.
func newVerifyCmd() *cobra.Command {
	verifyCmd := &cobra.Command{
		Use:   "verify <url> <assertion>",
		Short: "Checks a natural language assertion against a page",
		Long: `Verify navigates to the URL and polls until the assertion holds or the
window expires, for example: scout verify https://app.example.com "the cart shows 2 items".`,
		Args: cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("act.verify_window", cmd.Flags().Lookup("window")); err != nil {
				return err
			}
			if err := viper.BindPFlag("act.verify_poll", cmd.Flags().Lookup("poll")); err != nil {
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

			url, assertion := args[0], args[1]
			rt, err := newRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.session.Navigate(ctx, url); err != nil {
				return fmt.Errorf("failed to navigate to %s: %w", url, err)
			}

			if !rt.scout.Verify(ctx, assertion) {
				for _, entry := range rt.scout.VerificationLog() {
					if entry.Reason != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "attempt %d: %s\n", entry.Attempt, entry.Reason)
					}
				}
				return fmt.Errorf("assertion failed: %s", assertion)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PASS: %s\n", assertion)
			return nil
		},
	}

	verifyCmd.Flags().Duration("window", 0, "how long to keep polling before failing (e.g. 30s)")
	verifyCmd.Flags().Duration("poll", 0, "interval between assertion checks (e.g. 2s)")
	verifyCmd.Flags().Bool("headless", true, "run the browser headless")
	return verifyCmd
}
