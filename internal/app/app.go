// Package app assembles the membership service from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"readerspace/internal/config"
	"readerspace/internal/membership"
	"readerspace/internal/membership/postgres"
	"readerspace/internal/membership/sqlite"
	"readerspace/internal/messaging"
	"readerspace/internal/platform/otel"
)

// NewLogger returns the JSON logger used by every binary.
func NewLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// OpenStore opens the member store selected by cfg. The caller owns Close.
func OpenStore(ctx context.Context, cfg *config.Config) (membership.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return store, nil
	default:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", cfg.SQLitePath, err)
		}
		return store, nil
	}
}

// NewMessenger returns the Twilio client, or a logging stand-in when no
// credentials are configured.
func NewMessenger(cfg *config.Config, logger *slog.Logger) (membership.Messenger, error) {
	if !cfg.Twilio.Configured() {
		logger.Warn("twilio credentials not configured, reminders will only be logged")
		return messaging.NewLogMessenger(logger), nil
	}
	client, err := messaging.NewTwilioClient(messaging.TwilioConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		From:       cfg.Twilio.From,
		BaseURL:    cfg.Twilio.BaseURL,
	}, nil, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewService wires store and messenger into the membership service.
func NewService(cfg *config.Config, store membership.Store, messenger membership.Messenger, logger *slog.Logger) membership.Service {
	return membership.NewService(store, messenger,
		membership.WithLogger(logger),
		membership.WithReminderLimit(cfg.ReminderRatePerMinute, cfg.ReminderBurst),
	)
}

// Tracing returns the tracer settings for the named binary.
func Tracing(cfg *config.Config, serviceName string) otel.Tracing {
	return otel.Tracing{
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	}
}

// SetupTracing installs the tracer provider described by cfg.
func SetupTracing(ctx context.Context, cfg *config.Config, serviceName string) (func(context.Context) error, error) {
	return otel.Setup(ctx, Tracing(cfg, serviceName))
}
