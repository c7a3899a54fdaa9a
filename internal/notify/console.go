package notify

import (
	"context"
	"log/slog"
)

// ConsoleSender writes notifications to the structured log. Always safe to
// enable; used as the default channel when no chat integration is configured.
type ConsoleSender struct {
	logger *slog.Logger
}

// NewConsoleSender creates a ConsoleSender writing through the given logger.
func NewConsoleSender(logger *slog.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger.With(slog.String("component", "console_sender"))}
}

// Send logs the notification at info level.
func (c *ConsoleSender) Send(ctx context.Context, title, message string) error {
	c.logger.InfoContext(ctx, title, slog.String("detail", message))
	return nil
}

// Name returns the sender identifier.
func (c *ConsoleSender) Name() string {
	return "console"
}
