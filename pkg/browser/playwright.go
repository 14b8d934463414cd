package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightDriver drives Chromium through the Playwright driver
type PlaywrightDriver struct {
	install bool
}

// NewPlaywrightDriver creates a Playwright driver. When install is set the
// Chromium build and driver are downloaded before the first launch.
func NewPlaywrightDriver(install bool) *PlaywrightDriver {
	return &PlaywrightDriver{install: install}
}

// Name returns the driver name
func (d *PlaywrightDriver) Name() string {
	return DriverPlaywright
}

// Launch starts Playwright and a Chromium instance
func (d *PlaywrightDriver) Launch(ctx context.Context, opts LaunchOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if d.install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("failed to install playwright browsers: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     []string{"--no-sandbox", "--disable-gpu", "--disable-dev-shm-usage"},
	}
	if opts.ChromeBin != "" {
		launchOpts.ExecutablePath = playwright.String(opts.ChromeBin)
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &playwrightSession{pw: pw, browser: browser}, nil
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser

	once     sync.Once
	closeErr error
}

func (s *playwrightSession) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := s.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &playwrightPage{page: page}, nil
}

func (s *playwrightSession) Close() error {
	s.once.Do(func() {
		var errs []error
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

type playwrightPage struct {
	page playwright.Page
}

// Playwright calls are not context aware, so the context deadline is
// translated into the per-call timeout
func timeoutFrom(ctx context.Context, fallback time.Duration) float64 {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < fallback {
			fallback = remaining
		}
	}
	if fallback <= 0 {
		fallback = time.Millisecond
	}
	return float64(fallback.Milliseconds())
}

func (p *playwrightPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(timeoutFrom(ctx, 30*time.Second)),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *playwrightPage) GetByRole(role, name string) Locator {
	opts := playwright.PageGetByRoleOptions{}
	if name != "" {
		opts.Name = name
	}
	return &playwrightLocator{
		locator: p.page.GetByRole(playwright.AriaRole(role), opts),
		role:    role,
		name:    name,
	}
}

func (p *playwrightPage) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
	if err != nil {
		return fmt.Errorf("failed to take screenshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	return nil
}

type playwrightLocator struct {
	locator playwright.Locator
	role    string
	name    string
}

func (l *playwrightLocator) String() string {
	return describeLocator(l.role, l.name)
}

func (l *playwrightLocator) ExpectVisible(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := l.locator.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(timeoutFrom(ctx, timeout)),
	})
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "strict mode violation") {
		return fmt.Errorf("%w: %s: %v", ErrStrictMode, l, err)
	}
	return fmt.Errorf("%w: %s after %s: %v", ErrNotVisible, l, timeout, err)
}
