package notify

import (
	"context"
	"log/slog"
)

// LogDispatcher writes notifications to the structured log. Default for
// deployments without Redis; also handy in tests.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(ctx context.Context, event Event) error {
	args := []any{
		"kind", string(event.Kind),
		"recipient", event.Recipient,
	}
	for k, v := range event.Payload {
		args = append(args, "payload_"+k, v)
	}
	d.logger.InfoContext(ctx, "notification dispatched", args...)
	return nil
}
