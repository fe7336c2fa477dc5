// Package notify holds notifier implementations. The engine treats delivery
// as fire-and-forget, so the default adapter just logs structured events for
// downstream channels (push, SMS) to replace later.
package notify

import (
	"context"
	"log/slog"

	"ekub/contexts/savings-core/ekub-engine/ports"
)

type LogNotifier struct {
	Logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) Notify(
	_ context.Context,
	memberID string,
	event ports.NotificationEvent,
	detail map[string]string,
) error {
	attrs := []any{
		"event", "ekub_member_notified",
		"module", "savings-core/ekub-engine",
		"layer", "adapter",
		"member_id", memberID,
		"kind", string(event),
	}
	for key, value := range detail {
		attrs = append(attrs, "detail_"+key, value)
	}
	n.Logger.Info("member notification", attrs...)
	return nil
}
