package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"dev/bravebird/wallet-verify/pkg/models"
)

// Names registered by the worker
const (
	WorkflowName                   = "VerificationWorkflow"
	RunVerificationActivityName    = "RunVerificationActivity"
	RecordVerificationActivityName = "RecordVerificationActivity"
)

const defaultTimeoutSeconds = 120

// VerificationWorkflow runs one verification and records its outcome.
// A failed check is a successful workflow with a failed result; the
// workflow only errors when the input itself is unusable.
func VerificationWorkflow(ctx workflow.Context, input models.VerificationInput) (models.VerificationResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting verification workflow", "runID", input.RunID, "url", input.Scenario.URL, "driver", input.Driver)

	result := models.VerificationResult{
		RunID:     input.RunID,
		Status:    models.StatusRunning,
		Driver:    input.Driver,
		TargetURL: input.Scenario.URL,
	}

	// Register query handler for real-time progress
	err := workflow.SetQueryHandler(ctx, "getProgress", func() (models.VerificationResult, error) {
		return result, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
	}

	timeout := input.Timeout
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}

	// A verification is never retried
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Duration(timeout) * time.Second,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var runResult models.VerificationResult
	err = workflow.ExecuteActivity(ctx, RunVerificationActivityName, input).Get(ctx, &runResult)
	switch {
	case temporal.IsCanceledError(err):
		result.Status = models.StatusCanceled
		result.ErrorMessage = "Verification canceled"
	case err != nil:
		result.Status = models.StatusFailed
		result.ErrorMessage = "Verification activity failed: " + err.Error()
	default:
		result = runResult
		result.RunID = input.RunID
	}

	// Record even when the workflow was canceled
	recordCtx, cancelRecord := workflow.NewDisconnectedContext(ctx)
	defer cancelRecord()
	if err := workflow.ExecuteActivity(recordCtx, RecordVerificationActivityName, result).Get(recordCtx, nil); err != nil {
		logger.Warn("Failed to record verification result", "runID", input.RunID, "error", err)
	}

	logger.Info("Verification workflow completed", "status", result.Status, "duration", result.Duration)
	return result, nil
}
