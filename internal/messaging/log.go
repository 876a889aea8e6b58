package messaging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"readerspace/internal/membership"
)

// LogMessenger writes messages to the log instead of sending them.
// It stands in for the provider when no credentials are configured.
type LogMessenger struct {
	logger *slog.Logger
}

func NewLogMessenger(logger *slog.Logger) *LogMessenger {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMessenger{logger: logger}
}

func (m *LogMessenger) Send(ctx context.Context, to, body string) (*membership.Delivery, error) {
	id := "dry-run-" + uuid.NewString()
	m.logger.InfoContext(ctx, "dry-run message", "id", id, "to", to, "body", body)
	return &membership.Delivery{ProviderID: id, Status: "logged"}, nil
}

var _ membership.Messenger = (*LogMessenger)(nil)
