package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/require"
)

// skipIfNoBrowser skips the test if Chrome/Chromium is not available
func skipIfNoBrowser(t *testing.T) string {
	t.Helper()

	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}
	path, exists := launcher.LookPath()
	if !exists {
		t.Skip("Skipping browser test: Chrome/Chromium not available")
	}
	return path
}

func servePage(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<!doctype html><html><body>%s</body></html>", body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRodDriverVisibility(t *testing.T) {
	bin := skipIfNoBrowser(t)

	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{name: "visible button", body: `<button>Connect Wallet</button>`},
		{name: "aria label", body: `<div role="button" aria-label="Connect Wallet">W</div>`},
		{name: "hidden button", body: `<button style="display:none">Connect Wallet</button>`, wantErr: ErrNotVisible},
		{name: "missing button", body: `<button>Disconnect</button>`, wantErr: ErrNotVisible},
		{name: "ambiguous", body: `<button>Connect Wallet</button><button>Connect Wallet</button>`, wantErr: ErrStrictMode},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	session, err := NewRodDriver().Launch(ctx, LaunchOptions{Headless: true, ChromeBin: bin})
	require.NoError(t, err)
	defer session.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := session.NewPage(ctx)
			require.NoError(t, err)

			require.NoError(t, page.Navigate(ctx, servePage(t, tt.body)))

			err = page.GetByRole("button", "Connect Wallet").ExpectVisible(ctx, time.Second)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

func TestRodScreenshotAndDoubleClose(t *testing.T) {
	bin := skipIfNoBrowser(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	session, err := NewRodDriver().Launch(ctx, LaunchOptions{Headless: true, ChromeBin: bin})
	require.NoError(t, err)

	page, err := session.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, page.Navigate(ctx, servePage(t, `<button>Connect Wallet</button>`)))

	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, page.Screenshot(ctx, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("\x89PNG"), data[:4])

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
}

func TestRodLaunchStopsWhenContextEnds(t *testing.T) {
	bin := skipIfNoBrowser(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	start := time.Now()
	session, err := NewRodDriver().Launch(ctx, LaunchOptions{Headless: true, ChromeBin: bin})
	if session != nil {
		session.Close()
	}
	require.Error(t, err)
	require.Less(t, time.Since(start), 10*time.Second)
}
