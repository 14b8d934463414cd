package models

import (
	"time"
)

// ==================== Scenario Types ====================

// Default scenario values for the wallet button check
const (
	DefaultTargetURL         = "http://localhost:5173"
	DefaultRole              = "button"
	DefaultName              = "Connect Wallet"
	DefaultArtifactDir       = "verification"
	SuccessScreenshotName    = "wallet-button-visible.png"
	ErrorScreenshotName      = "verification-error.png"
	DefaultVisibleTimeout    = 5 * time.Second
	DefaultNavigationTimeout = 30 * time.Second
)

// Scenario describes a single visibility check against a running web app
type Scenario struct {
	URL               string        `json:"url"`
	Role              string        `json:"role"`
	Name              string        `json:"name"`
	SuccessScreenshot string        `json:"success_screenshot"`
	ErrorScreenshot   string        `json:"error_screenshot"`
	VisibleTimeout    time.Duration `json:"visible_timeout"`
	NavigationTimeout time.Duration `json:"navigation_timeout"`
	Headless          bool          `json:"headless"`
}

// DefaultScenario returns the Connect Wallet check with artifacts under
// the verification directory
func DefaultScenario() Scenario {
	return Scenario{
		URL:               DefaultTargetURL,
		Role:              DefaultRole,
		Name:              DefaultName,
		SuccessScreenshot: DefaultArtifactDir + "/" + SuccessScreenshotName,
		ErrorScreenshot:   DefaultArtifactDir + "/" + ErrorScreenshotName,
		VisibleTimeout:    DefaultVisibleTimeout,
		NavigationTimeout: DefaultNavigationTimeout,
		Headless:          true,
	}
}

// WithDefaults fills zero fields from DefaultScenario
func (s Scenario) WithDefaults() Scenario {
	def := DefaultScenario()
	if s.URL == "" {
		s.URL = def.URL
	}
	if s.Role == "" {
		s.Role = def.Role
	}
	if s.Name == "" {
		s.Name = def.Name
	}
	if s.SuccessScreenshot == "" {
		s.SuccessScreenshot = def.SuccessScreenshot
	}
	if s.ErrorScreenshot == "" {
		s.ErrorScreenshot = def.ErrorScreenshot
	}
	if s.VisibleTimeout <= 0 {
		s.VisibleTimeout = def.VisibleTimeout
	}
	if s.NavigationTimeout <= 0 {
		s.NavigationTimeout = def.NavigationTimeout
	}
	return s
}

// ==================== Run Types ====================

// RunStatus represents the status of a verification run
type RunStatus string

const (
	StatusPending  RunStatus = "pending"
	StatusRunning  RunStatus = "running"
	StatusSuccess  RunStatus = "success"
	StatusFailed   RunStatus = "failed"
	StatusCanceled RunStatus = "canceled"
)

// IsTerminal reports whether no further transitions are expected
func (s RunStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCanceled
}

// VerificationResult is the outcome of one scenario run.
// A success carries no error message; a failure always does.
type VerificationResult struct {
	RunID          string    `json:"run_id,omitempty"`
	Status         RunStatus `json:"status"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	ScreenshotPath string    `json:"screenshot_path,omitempty"`
	Driver         string    `json:"driver,omitempty"`
	TargetURL      string    `json:"target_url"`
	Duration       int64     `json:"duration_ms"`
}

// Passed reports whether the element was found visible and the success
// screenshot was written
func (r VerificationResult) Passed() bool {
	return r.Status == StatusSuccess
}

// VerificationRun is a persisted verification run
type VerificationRun struct {
	ID                 string     `json:"id" db:"id"`
	TargetURL          string     `json:"target_url" db:"target_url"`
	Role               string     `json:"role" db:"role"`
	Name               string     `json:"name" db:"name"`
	Driver             string     `json:"driver" db:"driver"`
	Status             RunStatus  `json:"status" db:"status"`
	TemporalRunID      string     `json:"temporal_run_id" db:"temporal_run_id"`
	TemporalWorkflowID string     `json:"temporal_workflow_id" db:"temporal_workflow_id"`
	ScreenshotPath     string     `json:"screenshot_path,omitempty" db:"screenshot_path"`
	ErrorMessage       string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	StartedAt          *time.Time `json:"started_at" db:"started_at"`
	CompletedAt        *time.Time `json:"completed_at" db:"completed_at"`
	Duration           int64      `json:"duration_ms" db:"duration_ms"`
}

// ==================== Workflow Types ====================

// VerificationInput is the input for the verification workflow
type VerificationInput struct {
	RunID    string   `json:"run_id"`
	Driver   string   `json:"driver"`
	Scenario Scenario `json:"scenario"`
	Timeout  int      `json:"timeout_seconds"`
}

// ==================== API Request/Response Types ====================

// VerifyRequest represents a request to start a verification run
type VerifyRequest struct {
	URL              string `json:"url"`
	Role             string `json:"role"`
	Name             string `json:"name"`
	Driver           string `json:"driver"`
	Headless         *bool  `json:"headless,omitempty"`
	VisibleTimeoutMS int    `json:"visible_timeout_ms"`
}

// ==================== WebSocket Message Types ====================

// WSMessage represents a WebSocket message for real-time updates
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
