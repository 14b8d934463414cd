package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"dev/bravebird/wallet-verify/pkg/browser"
	"dev/bravebird/wallet-verify/pkg/config"
	"dev/bravebird/wallet-verify/pkg/database"
	"dev/bravebird/wallet-verify/pkg/temporal/activities"
	"dev/bravebird/wallet-verify/pkg/temporal/workflows"
)

func main() {
	cfg := config.Load()

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalHost,
		Logger:   tlog.NewStructuredLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))),
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer c.Close()

	// Results are recorded only when the database is reachable
	var store activities.RunStore
	db, err := database.New(cfg.MySQLDSN)
	if err != nil {
		log.Printf("Warning: Failed to connect to database: %v", err)
		log.Println("Running without result persistence")
	} else {
		defer db.Close()
		if err := db.Migrate(context.Background()); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		store = db
	}

	if err := os.MkdirAll(cfg.ScreenshotDir, 0755); err != nil {
		log.Fatalf("Failed to create screenshot dir: %v", err)
	}

	acts := activities.NewActivities(store, cfg.ScreenshotDir, cfg.ChromeBin, browser.Options{
		InstallPlaywright: cfg.InstallPlaywright,
	})

	// One browser per activity; keep the count low
	w := worker.New(c, config.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     2,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	w.RegisterWorkflow(workflows.VerificationWorkflow)
	w.RegisterActivity(acts.RunVerificationActivity)
	w.RegisterActivity(acts.RecordVerificationActivity)

	log.Printf("Starting Temporal worker on task queue: %s", config.TaskQueue)
	log.Printf("Temporal host: %s", cfg.TemporalHost)
	log.Printf("Screenshot directory: %s", cfg.ScreenshotDir)

	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
