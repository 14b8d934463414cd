package activities

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"dev/bravebird/wallet-verify/pkg/browser"
	"dev/bravebird/wallet-verify/pkg/models"
	"dev/bravebird/wallet-verify/pkg/verification"
)

const heartbeatInterval = 5 * time.Second

// RunStore persists verification outcomes
type RunStore interface {
	CompleteVerificationRun(ctx context.Context, result models.VerificationResult) error
}

// Activities holds activity implementations
type Activities struct {
	Store         RunStore
	ScreenshotDir string
	ChromeBin     string
	DriverOptions browser.Options

	// NewDriver builds the browser driver for a run
	NewDriver func(name string, opts browser.Options) (browser.Driver, error)
}

// NewActivities creates new activities. store may be nil when running
// without persistence.
func NewActivities(store RunStore, screenshotDir, chromeBin string, driverOpts browser.Options) *Activities {
	return &Activities{
		Store:         store,
		ScreenshotDir: screenshotDir,
		ChromeBin:     chromeBin,
		DriverOptions: driverOpts,
		NewDriver:     browser.NewDriver,
	}
}

// RunVerificationActivity runs one scenario in a fresh browser session.
// Artifacts are written under ScreenshotDir, prefixed with the run ID.
func (a *Activities) RunVerificationActivity(ctx context.Context, input models.VerificationInput) (models.VerificationResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Running verification", "runID", input.RunID, "driver", input.Driver, "url", input.Scenario.URL)

	driver, err := a.NewDriver(input.Driver, a.DriverOptions)
	if err != nil {
		if errors.Is(err, browser.ErrUnknownDriver) {
			return models.VerificationResult{}, temporal.NewNonRetryableApplicationError(err.Error(), "UnknownDriver", err)
		}
		return models.VerificationResult{}, fmt.Errorf("failed to create driver: %w", err)
	}

	sc := input.Scenario.WithDefaults()
	sc.SuccessScreenshot = filepath.Join(a.ScreenshotDir, artifactName(input.RunID, models.SuccessScreenshotName))
	sc.ErrorScreenshot = filepath.Join(a.ScreenshotDir, artifactName(input.RunID, models.ErrorScreenshotName))

	stop := keepAlive(ctx)
	defer stop()

	var out bytes.Buffer
	result := verification.NewRunner(driver, &out, logger, a.ChromeBin).Run(ctx, sc)
	result.RunID = input.RunID

	logger.Info("Verification finished", "runID", input.RunID, "status", result.Status, "output", strings.TrimSpace(out.String()))
	return result, nil
}

// RecordVerificationActivity stores the final result of a run
func (a *Activities) RecordVerificationActivity(ctx context.Context, result models.VerificationResult) error {
	logger := activity.GetLogger(ctx)

	if a.Store == nil {
		logger.Warn("No run store configured, result not persisted", "runID", result.RunID)
		return nil
	}

	if err := a.Store.CompleteVerificationRun(ctx, result); err != nil {
		return fmt.Errorf("failed to record verification run: %w", err)
	}

	logger.Info("Recorded verification result", "runID", result.RunID, "status", result.Status)
	return nil
}

func artifactName(runID, name string) string {
	if runID == "" {
		return name
	}
	return runID + "_" + name
}

// keepAlive heartbeats until stopped so that cancellation reaches the
// activity while the browser is busy
func keepAlive(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, "verifying")
			}
		}
	}()
	return func() { close(done) }
}
