package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	tlog "go.temporal.io/sdk/log"

	"dev/bravebird/wallet-verify/pkg/browser"
	"dev/bravebird/wallet-verify/pkg/config"
	"dev/bravebird/wallet-verify/pkg/models"
	"dev/bravebird/wallet-verify/pkg/verification"
)

func main() {
	cfg := config.Load()
	code := 0
	cmd := newRootCmd(cfg, os.Stdout, os.Stderr, &code)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(2)
	}
	os.Exit(code)
}

func newRootCmd(cfg config.Config, stdout, stderr io.Writer, code *int) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the Connect Wallet button is visible",
		Long: `verify opens a headless browser on the local web app, checks that the
"Connect Wallet" button is visible and saves a screenshot.

The result is printed to stdout. On success the screenshot goes to
<artifact-dir>/wallet-button-visible.png, otherwise to
<artifact-dir>/verification-error.png. The exit status is 0 either way
unless --strict is given.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := tlog.NewStructuredLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

			driver, err := browser.NewDriver(cfg.Driver, browser.Options{InstallPlaywright: cfg.InstallPlaywright})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result := verification.NewRunner(driver, stdout, logger, cfg.ChromeBin).Run(ctx, cfg.Scenario())

			*code = exitCode(result, cfg.Strict)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.TargetURL, "url", cfg.TargetURL, "address of the running web app")
	flags.StringVar(&cfg.Role, "role", cfg.Role, "accessible role of the element")
	flags.StringVar(&cfg.Name, "name", cfg.Name, "accessible name of the element")
	flags.StringVar(&cfg.ArtifactDir, "artifact-dir", cfg.ArtifactDir, "existing directory for screenshots")
	flags.DurationVar(&cfg.VisibleTimeout, "timeout", cfg.VisibleTimeout, "how long to wait for the element to become visible")
	flags.BoolVar(&cfg.Headless, "headless", cfg.Headless, "run the browser without a window")
	flags.StringVar(&cfg.Driver, "driver", cfg.Driver, "browser driver: rod or playwright")
	flags.BoolVar(&cfg.InstallPlaywright, "install-driver", cfg.InstallPlaywright, "download the playwright driver and chromium before launching")
	flags.BoolVar(&cfg.Strict, "strict", cfg.Strict, "exit with status 1 when the verification fails")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log browser steps to stderr")

	return cmd
}

// exitCode keeps the historical behaviour of always exiting 0 unless strict
// mode asks for failures to be signalled
func exitCode(result models.VerificationResult, strict bool) int {
	if strict && !result.Passed() {
		return 1
	}
	return 0
}
