package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const pollInterval = 100 * time.Millisecond

// RodDriver drives Chromium over CDP with go-rod
type RodDriver struct{}

// NewRodDriver creates a rod driver
func NewRodDriver() *RodDriver {
	return &RodDriver{}
}

// Name returns the driver name
func (d *RodDriver) Name() string {
	return DriverRod
}

// Launch starts a Chromium process and connects to it
func (d *RodDriver) Launch(ctx context.Context, opts LaunchOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Startup is abandoned if ctx ends before Chromium reports its URL
	l := launcher.New().Context(ctx)

	// Use CHROME_BIN if set (Docker environment)
	if opts.ChromeBin != "" {
		l = l.Bin(opts.ChromeBin)
	}
	l = l.Headless(opts.Headless)

	// Additional Chrome flags for Docker compatibility
	l = l.Set("no-sandbox")
	l = l.Set("disable-gpu")
	l = l.Set("disable-dev-shm-usage")

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &rodSession{launcher: l, browser: browser}, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser

	once     sync.Once
	closeErr error
}

func (s *rodSession) NewPage(ctx context.Context) (Page, error) {
	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &rodPage{page: page}, nil
}

func (s *rodSession) Close() error {
	s.once.Do(func() {
		if err := s.browser.Close(); err != nil {
			s.closeErr = fmt.Errorf("failed to close browser: %w", err)
			s.launcher.Kill()
		}
		s.launcher.Cleanup()
	})
	return s.closeErr
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed waiting for %s to load: %w", url, err)
	}
	return nil
}

func (p *rodPage) GetByRole(role, name string) Locator {
	return &rodLocator{page: p.page, role: role, name: name}
}

func (p *rodPage) Screenshot(ctx context.Context, path string) error {
	data, err := p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("failed to take screenshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	return nil
}

type rodLocator struct {
	page *rod.Page
	role string
	name string
}

func (l *rodLocator) String() string {
	return describeLocator(l.role, l.name)
}

// ExpectVisible polls the accessibility tree until exactly one matching
// element is visible or the timeout expires
func (l *rodLocator) ExpectVisible(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := l.page.Context(ctx)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		visible, err := l.check(page)
		if err == nil && visible {
			return nil
		}
		if errors.Is(err, ErrStrictMode) {
			return err
		}
		if err != nil && ctx.Err() == nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("%w: %s after %s: %v", ErrNotVisible, l, timeout, lastErr)
			}
			return fmt.Errorf("%w: %s after %s", ErrNotVisible, l, timeout)
		case <-ticker.C:
		}
	}
}

func (l *rodLocator) check(page *rod.Page) (bool, error) {
	elements, err := l.resolve(page)
	if err != nil {
		return false, err
	}
	switch len(elements) {
	case 0:
		return false, nil
	case 1:
		return elements[0].Visible()
	default:
		return false, fmt.Errorf("%w: %s resolved to %d elements", ErrStrictMode, l, len(elements))
	}
}

func (l *rodLocator) resolve(page *rod.Page) ([]*rod.Element, error) {
	doc, err := proto.DOMGetDocument{}.Call(page)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	res, err := proto.AccessibilityQueryAXTree{
		NodeID: doc.Root.NodeID,
		Role:   l.role,
	}.Call(page)
	if err != nil {
		return nil, fmt.Errorf("failed to query accessibility tree: %w", err)
	}

	seen := make(map[proto.DOMBackendNodeID]bool)
	var elements []*rod.Element
	for _, node := range res.Nodes {
		if node.Ignored || node.BackendDOMNodeID == 0 || seen[node.BackendDOMNodeID] {
			continue
		}
		accessibleName := ""
		if node.Name != nil {
			accessibleName = node.Name.Value.Str()
		}
		if !nameMatches(accessibleName, l.name) {
			continue
		}
		seen[node.BackendDOMNodeID] = true

		el, err := page.ElementFromNode(&proto.DOMNode{BackendNodeID: node.BackendDOMNodeID})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve element: %w", err)
		}
		elements = append(elements, el)
	}
	return elements, nil
}
