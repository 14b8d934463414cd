package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.temporal.io/sdk/client"

	"dev/bravebird/wallet-verify/pkg/browser"
	"dev/bravebird/wallet-verify/pkg/config"
	"dev/bravebird/wallet-verify/pkg/models"
	"dev/bravebird/wallet-verify/pkg/temporal/workflows"
)

// RunStore is the persistence used by the handlers
type RunStore interface {
	CreateVerificationRun(ctx context.Context, run *models.VerificationRun) error
	AttachTemporalIDs(ctx context.Context, id, workflowID, runID string) error
	GetVerificationRun(ctx context.Context, id string) (*models.VerificationRun, error)
	ListVerificationRuns(ctx context.Context, limit int) ([]models.VerificationRun, error)
	UpdateVerificationRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error
}

// Handlers contains API handlers
type Handlers struct {
	store          RunStore
	temporalClient client.Client
	screenshotDir  string
	pollInterval   time.Duration
	upgrader       websocket.Upgrader
}

// NewHandlers creates new API handlers. store may be nil when the
// database is unavailable.
func NewHandlers(store RunStore, temporalClient client.Client, screenshotDir string) *Handlers {
	return &Handlers{
		store:          store,
		temporalClient: temporalClient,
		screenshotDir:  screenshotDir,
		pollInterval:   500 * time.Millisecond,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP routes
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()

	// Verifications
	apiRouter.HandleFunc("/verifications", h.ListVerifications).Methods("GET")
	apiRouter.HandleFunc("/verifications", h.StartVerification).Methods("POST")
	apiRouter.HandleFunc("/verifications/{id}", h.GetVerification).Methods("GET")
	apiRouter.HandleFunc("/verifications/{id}/cancel", h.CancelVerification).Methods("POST")

	// WebSocket for real-time updates
	apiRouter.HandleFunc("/verifications/{id}/stream", h.StreamVerification).Methods("GET")

	// Screenshots
	apiRouter.HandleFunc("/screenshots/{filename}", h.ServeScreenshot).Methods("GET")

	return router
}

// ==================== Verification Handlers ====================

// StartVerification records a run and starts the verification workflow
func (h *Handlers) StartVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := browser.NewDriver(req.Driver, browser.Options{}); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Driver == "" {
		req.Driver = browser.DriverRod
	}

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	scenario := scenarioFromRequest(req)
	runID := uuid.New().String()

	run := &models.VerificationRun{
		ID:        runID,
		TargetURL: scenario.URL,
		Role:      scenario.Role,
		Name:      scenario.Name,
		Driver:    req.Driver,
		Status:    models.StatusPending,
	}
	if err := h.store.CreateVerificationRun(ctx, run); err != nil {
		http.Error(w, "Failed to create run: "+err.Error(), http.StatusInternalServerError)
		return
	}

	input := models.VerificationInput{
		RunID:    runID,
		Driver:   req.Driver,
		Scenario: scenario,
		Timeout:  120,
	}

	workflowOptions := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("verification-%s", runID),
		TaskQueue: config.TaskQueue,
	}

	we, err := h.temporalClient.ExecuteWorkflow(ctx, workflowOptions, workflows.WorkflowName, input)
	if err != nil {
		msg := "Failed to start workflow: " + err.Error()
		if updateErr := h.store.UpdateVerificationRunStatus(ctx, runID, models.StatusFailed, err.Error()); updateErr != nil {
			log.Printf("Failed to mark run %s as failed: %v", runID, updateErr)
			msg += "; failed to update run: " + updateErr.Error()
		}
		http.Error(w, msg, http.StatusInternalServerError)
		return
	}

	if err := h.store.AttachTemporalIDs(ctx, runID, we.GetID(), we.GetRunID()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id":               runID,
		"temporal_workflow_id": we.GetID(),
		"temporal_run_id":      we.GetRunID(),
		"status":               models.StatusRunning,
	})
}

// ListVerifications lists recent runs
func (h *Handlers) ListVerifications(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	runs, err := h.store.ListVerificationRuns(r.Context(), 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, runs)
}

// GetVerification retrieves a single run
func (h *Handlers) GetVerification(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.store.GetVerificationRun(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// CancelVerification cancels a running verification
func (h *Handlers) CancelVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.store.GetVerificationRun(ctx, id)
	if err != nil || run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if run.Status.IsTerminal() {
		http.Error(w, "Run already finished", http.StatusConflict)
		return
	}

	// Cancel Temporal workflow
	if run.TemporalWorkflowID != "" {
		if err := h.temporalClient.CancelWorkflow(ctx, run.TemporalWorkflowID, run.TemporalRunID); err != nil {
			http.Error(w, "Failed to cancel workflow: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	if err := h.store.UpdateVerificationRunStatus(ctx, id, models.StatusCanceled, "Cancelled by user"); err != nil {
		log.Printf("Failed to mark run %s as canceled: %v", id, err)
		http.Error(w, "Workflow canceled but run status not saved: "+err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": string(models.StatusCanceled)})
}

// StreamVerification streams run updates via WebSocket until the run ends
func (h *Handlers) StreamVerification(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var lastStatus models.RunStatus

	for {
		status, payload, ok := h.currentState(ctx, id)
		if ok && status != lastStatus {
			if err := conn.WriteJSON(models.WSMessage{Type: "run_update", Payload: payload}); err != nil {
				return
			}
			lastStatus = status

			// Close if completed
			if status.IsTerminal() {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// currentState prefers the live workflow progress and falls back to the
// stored run
func (h *Handlers) currentState(ctx context.Context, id string) (models.RunStatus, interface{}, bool) {
	run, err := h.store.GetVerificationRun(ctx, id)
	if err != nil || run == nil {
		return "", nil, false
	}

	if !run.Status.IsTerminal() && run.TemporalWorkflowID != "" && h.temporalClient != nil {
		resp, err := h.temporalClient.QueryWorkflow(ctx, run.TemporalWorkflowID, run.TemporalRunID, "getProgress")
		if err == nil {
			var progress models.VerificationResult
			if resp.Get(&progress) == nil && progress.Status != "" {
				return progress.Status, progress, true
			}
		}
	}

	return run.Status, run, true
}

// ==================== Screenshot Handlers ====================

// ServeScreenshot serves a screenshot file
func (h *Handlers) ServeScreenshot(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	// Only allow files from the screenshots directory
	filePath := filepath.Join(h.screenshotDir, filepath.Base(filename))

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "Screenshot not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, filePath)
}

// ==================== Helpers ====================

func scenarioFromRequest(req models.VerifyRequest) models.Scenario {
	sc := models.Scenario{
		URL:      req.URL,
		Role:     req.Role,
		Name:     req.Name,
		Headless: true,
	}
	if req.Headless != nil {
		sc.Headless = *req.Headless
	}
	if req.VisibleTimeoutMS > 0 {
		sc.VisibleTimeout = time.Duration(req.VisibleTimeoutMS) * time.Millisecond
	}
	return sc.WithDefaults()
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
