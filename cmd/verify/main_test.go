package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/wallet-verify/pkg/browser"
	"dev/bravebird/wallet-verify/pkg/config"
	"dev/bravebird/wallet-verify/pkg/models"
)

func TestExitCode(t *testing.T) {
	passed := models.VerificationResult{Status: models.StatusSuccess}
	failed := models.VerificationResult{Status: models.StatusFailed, ErrorMessage: "element not visible"}

	tests := []struct {
		name   string
		result models.VerificationResult
		strict bool
		want   int
	}{
		{name: "passed", result: passed, want: 0},
		{name: "failed is silent by default", result: failed, want: 0},
		{name: "passed strict", result: passed, strict: true, want: 0},
		{name: "failed strict", result: failed, strict: true, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.result, tt.strict); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUnknownDriverFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := 0

	cmd := newRootCmd(config.FromEnv(), &stdout, &stderr, &code)
	cmd.SetArgs([]string{"--driver", "lynx"})
	cmd.SetOut(&stderr)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, browser.ErrUnknownDriver))
	assert.Empty(t, stdout.String())
	assert.Equal(t, 0, code)
}
