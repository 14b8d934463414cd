package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNotVisible is returned when a locator did not become visible in time
	ErrNotVisible = errors.New("element not visible")
	// ErrStrictMode is returned when a locator resolves to more than one element
	ErrStrictMode = errors.New("strict mode violation")
	// ErrUnknownDriver is returned by NewDriver for unsupported names
	ErrUnknownDriver = errors.New("unknown browser driver")
)

// LaunchOptions configures browser startup
type LaunchOptions struct {
	Headless  bool
	ChromeBin string
}

// Driver starts browser sessions
type Driver interface {
	Launch(ctx context.Context, opts LaunchOptions) (Session, error)
	Name() string
}

// Session is an open browser process. Close is safe to call more than once;
// only the first call releases the browser.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab owned by a Session
type Page interface {
	// Navigate loads url and waits for the load event
	Navigate(ctx context.Context, url string) error
	// GetByRole locates an element by accessible role and name
	GetByRole(role, name string) Locator
	// Screenshot captures the viewport as PNG and writes it to path
	Screenshot(ctx context.Context, path string) error
}

// Locator is a lazy reference to an element, resolved on each use
type Locator interface {
	ExpectVisible(ctx context.Context, timeout time.Duration) error
	String() string
}

// Options configures driver construction
type Options struct {
	InstallPlaywright bool
}

// NewDriver returns the driver registered under name
func NewDriver(name string, opts Options) (Driver, error) {
	switch strings.ToLower(name) {
	case "", DriverRod:
		return NewRodDriver(), nil
	case DriverPlaywright:
		return NewPlaywrightDriver(opts.InstallPlaywright), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, name)
	}
}

// Driver names
const (
	DriverRod        = "rod"
	DriverPlaywright = "playwright"
)

var whitespace = regexp.MustCompile(`\s+`)

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(whitespace.ReplaceAllString(s, " ")))
}

// nameMatches reports whether an accessible name matches the wanted name,
// case-insensitively and ignoring surrounding or repeated whitespace.
// An empty wanted name matches everything.
func nameMatches(accessible, want string) bool {
	want = normalizeName(want)
	if want == "" {
		return true
	}
	return strings.Contains(normalizeName(accessible), want)
}

func describeLocator(role, name string) string {
	return fmt.Sprintf("getByRole(%q, name=%q)", role, name)
}
