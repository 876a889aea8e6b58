// cmd/remind/main.go
package main

import (
	"context"
	"log"

	"readerspace/internal/app"
	"readerspace/internal/config"
)

// Sends the DUE reminder to every member who has not paid for the current
// month. Meant to be run from cron at the start of each fee period.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := app.NewLogger(cfg)
	ctx := context.Background()

	shutdownTracing, err := app.SetupTracing(ctx, cfg, "readerspace-remind")
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open member store: %v", err)
	}
	defer store.Close()

	messenger, err := app.NewMessenger(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to set up messenger: %v", err)
	}

	result, err := app.NewService(cfg, store, messenger, logger).SendDueReminders(ctx)
	if err != nil {
		log.Fatalf("Due reminder sweep failed: %v", err)
	}

	for _, f := range result.Failures {
		logger.Warn("reminder failed", "code", f.Code, "reason", f.Reason)
	}
	logger.Info("due reminders sent", "month", result.Month, "checked", result.Checked, "sent", len(result.Sent))
}
