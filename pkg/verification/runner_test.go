package verification

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/log"

	"dev/bravebird/wallet-verify/pkg/browser"
	"dev/bravebird/wallet-verify/pkg/models"
)

type fakeDriver struct {
	launchErr  error
	pageErr    error
	navErr     error
	visibleErr error
	shotErr    map[string]error
	closeErr   error

	session *fakeSession
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Session, error) {
	if d.launchErr != nil {
		return nil, d.launchErr
	}
	d.session = &fakeSession{driver: d}
	return d.session, nil
}

type fakeSession struct {
	driver *fakeDriver
	closes int
	page   *fakePage
}

func (s *fakeSession) NewPage(ctx context.Context) (browser.Page, error) {
	if s.driver.pageErr != nil {
		return nil, s.driver.pageErr
	}
	s.page = &fakePage{session: s}
	return s.page, nil
}

func (s *fakeSession) Close() error {
	s.closes++
	return s.driver.closeErr
}

type fakePage struct {
	session *fakeSession
	visited []string
	role    string
	name    string
	shots   []string
	shotCtx []error
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.visited = append(p.visited, url)
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.session.driver.navErr
}

func (p *fakePage) GetByRole(role, name string) browser.Locator {
	p.role, p.name = role, name
	return fakeLocator{err: p.session.driver.visibleErr}
}

func (p *fakePage) Screenshot(ctx context.Context, path string) error {
	p.shots = append(p.shots, path)
	p.shotCtx = append(p.shotCtx, ctx.Err())
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.session.driver.shotErr[path]; err != nil {
		return err
	}
	return os.WriteFile(path, []byte("\x89PNG fake"), 0644)
}

type fakeLocator struct {
	err error
}

func (l fakeLocator) ExpectVisible(ctx context.Context, timeout time.Duration) error { return l.err }
func (l fakeLocator) String() string                                                { return "fake" }

func discardLogger() log.Logger {
	return log.NewStructuredLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testScenario(t *testing.T) models.Scenario {
	dir := t.TempDir()
	sc := models.DefaultScenario()
	sc.SuccessScreenshot = filepath.Join(dir, models.SuccessScreenshotName)
	sc.ErrorScreenshot = filepath.Join(dir, models.ErrorScreenshotName)
	return sc
}

func TestRunSuccess(t *testing.T) {
	driver := &fakeDriver{}
	sc := testScenario(t)
	var out bytes.Buffer

	result := NewRunner(driver, &out, discardLogger(), "").Run(context.Background(), sc)

	require.True(t, result.Passed())
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Empty(t, result.ErrorMessage)
	assert.Equal(t, sc.SuccessScreenshot, result.ScreenshotPath)
	assert.Equal(t, "Verification successful: 'Connect Wallet' button is visible.\n", out.String())

	page := driver.session.page
	assert.Equal(t, []string{"http://localhost:5173"}, page.visited)
	assert.Equal(t, "button", page.role)
	assert.Equal(t, "Connect Wallet", page.name)

	assert.FileExists(t, sc.SuccessScreenshot)
	assert.NoFileExists(t, sc.ErrorScreenshot)
	assert.Equal(t, 1, driver.session.closes)
}

func TestRunFailures(t *testing.T) {
	refused := errors.New("net::ERR_CONNECTION_REFUSED at http://localhost:5173")

	tests := []struct {
		name        string
		driver      func(sc models.Scenario) *fakeDriver
		wantMessage string
		wantShot    bool
	}{
		{
			name:        "navigation refused",
			driver:      func(models.Scenario) *fakeDriver { return &fakeDriver{navErr: refused} },
			wantMessage: "net::ERR_CONNECTION_REFUSED",
			wantShot:    true,
		},
		{
			name: "button hidden",
			driver: func(models.Scenario) *fakeDriver {
				return &fakeDriver{visibleErr: browser.ErrNotVisible}
			},
			wantMessage: "element not visible",
			wantShot:    true,
		},
		{
			name: "success screenshot fails",
			driver: func(sc models.Scenario) *fakeDriver {
				return &fakeDriver{shotErr: map[string]error{sc.SuccessScreenshot: errors.New("disk full")}}
			},
			wantMessage: "disk full",
			wantShot:    true,
		},
		{
			name: "error screenshot fails too",
			driver: func(sc models.Scenario) *fakeDriver {
				return &fakeDriver{
					navErr:  refused,
					shotErr: map[string]error{sc.ErrorScreenshot: errors.New("read-only fs")},
				}
			},
			wantMessage: "read-only fs",
			wantShot:    false,
		},
		{
			name:        "page creation fails",
			driver:      func(models.Scenario) *fakeDriver { return &fakeDriver{pageErr: errors.New("target crashed")} },
			wantMessage: "target crashed",
			wantShot:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := testScenario(t)
			driver := tt.driver(sc)
			var out bytes.Buffer

			result := NewRunner(driver, &out, discardLogger(), "").Run(context.Background(), sc)

			require.False(t, result.Passed())
			assert.Equal(t, models.StatusFailed, result.Status)
			assert.Contains(t, result.ErrorMessage, tt.wantMessage)
			assert.Contains(t, out.String(), "An error occurred during verification: ")
			assert.NotContains(t, out.String(), "Verification successful")

			assert.NoFileExists(t, sc.SuccessScreenshot)
			if tt.wantShot {
				assert.FileExists(t, sc.ErrorScreenshot)
				assert.Equal(t, sc.ErrorScreenshot, result.ScreenshotPath)
			} else {
				assert.NoFileExists(t, sc.ErrorScreenshot)
				assert.Empty(t, result.ScreenshotPath)
			}

			require.NotNil(t, driver.session)
			assert.Equal(t, 1, driver.session.closes, "session must be released exactly once")
		})
	}
}

func TestRunLaunchFailure(t *testing.T) {
	driver := &fakeDriver{launchErr: errors.New("chrome not found")}
	sc := testScenario(t)
	var out bytes.Buffer

	result := NewRunner(driver, &out, discardLogger(), "").Run(context.Background(), sc)

	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Equal(t, "An error occurred during verification: chrome not found\n", out.String())
	assert.NoFileExists(t, sc.SuccessScreenshot)
	assert.NoFileExists(t, sc.ErrorScreenshot)
}

func TestRunCloseErrorKeepsVerdict(t *testing.T) {
	driver := &fakeDriver{closeErr: errors.New("already gone")}
	sc := testScenario(t)

	result := NewRunner(driver, io.Discard, discardLogger(), "").Run(context.Background(), sc)

	assert.True(t, result.Passed())
	assert.Equal(t, 1, driver.session.closes)
}

func TestRunTwiceOverwritesArtifact(t *testing.T) {
	sc := testScenario(t)
	runner := NewRunner(&fakeDriver{}, io.Discard, discardLogger(), "")

	first := runner.Run(context.Background(), sc)
	second := runner.Run(context.Background(), sc)

	require.True(t, first.Passed())
	require.True(t, second.Passed())

	entries, err := os.ReadDir(filepath.Dir(sc.SuccessScreenshot))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunMissingArtifactDirIsNotCreated(t *testing.T) {
	sc := testScenario(t)
	missing := filepath.Join(t.TempDir(), "absent")
	sc.SuccessScreenshot = filepath.Join(missing, models.SuccessScreenshotName)
	sc.ErrorScreenshot = filepath.Join(missing, models.ErrorScreenshotName)
	driver := &fakeDriver{}

	result := NewRunner(driver, io.Discard, discardLogger(), "").Run(context.Background(), sc)

	assert.Equal(t, models.StatusFailed, result.Status)
	assert.NoDirExists(t, missing)
	assert.Equal(t, 1, driver.session.closes)
}

func TestRunCanceledStillCapturesErrorScreenshot(t *testing.T) {
	driver := &fakeDriver{}
	sc := testScenario(t)
	var out bytes.Buffer

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewRunner(driver, &out, discardLogger(), "").Run(ctx, sc)

	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, context.Canceled.Error())
	assert.Contains(t, out.String(), "An error occurred during verification: ")

	page := driver.session.page
	require.Equal(t, []string{sc.ErrorScreenshot}, page.shots)
	assert.Equal(t, []error{nil}, page.shotCtx, "error screenshot must not inherit the canceled context")
	assert.FileExists(t, sc.ErrorScreenshot)
	assert.Equal(t, sc.ErrorScreenshot, result.ScreenshotPath)
	assert.Equal(t, 1, driver.session.closes)
}
