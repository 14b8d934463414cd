// Package verification runs a single visibility check in a real browser and
// reports the outcome through console text, a screenshot and a result value.
package verification

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.temporal.io/sdk/log"

	"dev/bravebird/wallet-verify/pkg/browser"
	"dev/bravebird/wallet-verify/pkg/models"
)

const errorScreenshotTimeout = 10 * time.Second

// Runner drives one browser session through a scenario
type Runner struct {
	driver    browser.Driver
	out       io.Writer
	logger    log.Logger
	chromeBin string
}

// NewRunner creates a runner that prints its verdict to out
func NewRunner(driver browser.Driver, out io.Writer, logger log.Logger, chromeBin string) *Runner {
	return &Runner{
		driver:    driver,
		out:       out,
		logger:    logger,
		chromeBin: chromeBin,
	}
}

// Run executes the scenario. It never returns an error: every failure is
// printed, captured in the error screenshot when a page exists, and
// reported as a failed result. The browser session is closed on every path.
func (r *Runner) Run(ctx context.Context, sc models.Scenario) models.VerificationResult {
	sc = sc.WithDefaults()
	start := time.Now()

	result := models.VerificationResult{
		Status:    models.StatusRunning,
		Driver:    r.driver.Name(),
		TargetURL: sc.URL,
	}

	r.logger.Info("Launching browser", "driver", r.driver.Name(), "headless", sc.Headless)
	session, err := r.driver.Launch(ctx, browser.LaunchOptions{
		Headless:  sc.Headless,
		ChromeBin: r.chromeBin,
	})
	if err != nil {
		return r.fail(ctx, result, start, nil, sc, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.Warn("Failed to close browser session", "error", err)
			return
		}
		r.logger.Debug("Browser session closed")
	}()

	page, err := session.NewPage(ctx)
	if err != nil {
		return r.fail(ctx, result, start, nil, sc, err)
	}

	if err := r.verify(ctx, page, sc); err != nil {
		return r.fail(ctx, result, start, page, sc, err)
	}

	fmt.Fprintf(r.out, "Verification successful: '%s' %s is visible.\n", sc.Name, sc.Role)

	result.Status = models.StatusSuccess
	result.ScreenshotPath = sc.SuccessScreenshot
	result.Duration = time.Since(start).Milliseconds()
	r.logger.Info("Verification passed", "url", sc.URL, "screenshot", sc.SuccessScreenshot, "durationMs", result.Duration)
	return result
}

// verify covers every step whose failure leads to the error screenshot
func (r *Runner) verify(ctx context.Context, page browser.Page, sc models.Scenario) error {
	navCtx, cancel := context.WithTimeout(ctx, sc.NavigationTimeout)
	defer cancel()

	r.logger.Info("Navigating", "url", sc.URL)
	if err := page.Navigate(navCtx, sc.URL); err != nil {
		return err
	}

	locator := page.GetByRole(sc.Role, sc.Name)
	r.logger.Debug("Waiting for element", "locator", locator.String(), "timeout", sc.VisibleTimeout)
	if err := locator.ExpectVisible(ctx, sc.VisibleTimeout); err != nil {
		return err
	}

	return page.Screenshot(ctx, sc.SuccessScreenshot)
}

func (r *Runner) fail(ctx context.Context, result models.VerificationResult, start time.Time, page browser.Page, sc models.Scenario, cause error) models.VerificationResult {
	fmt.Fprintf(r.out, "An error occurred during verification: %v\n", cause)

	result.Status = models.StatusFailed
	result.ErrorMessage = cause.Error()

	if page != nil {
		// The error artifact is still wanted when the run itself was canceled
		shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), errorScreenshotTimeout)
		defer cancel()

		if err := page.Screenshot(shotCtx, sc.ErrorScreenshot); err != nil {
			r.logger.Error("Failed to capture error screenshot", "path", sc.ErrorScreenshot, "error", err)
			result.ErrorMessage = fmt.Sprintf("%s (error screenshot failed: %v)", result.ErrorMessage, err)
		} else {
			result.ScreenshotPath = sc.ErrorScreenshot
		}
	}

	result.Duration = time.Since(start).Milliseconds()
	r.logger.Warn("Verification failed", "url", sc.URL, "error", cause, "screenshot", result.ScreenshotPath)
	return result
}
