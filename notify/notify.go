package notify

import (
	"context"

	"go.uber.org/zap"
)

// Event types attached to notifications so operators can filter alerts.
const (
	EventOpportunity = "opportunity"
	EventExecution   = "execution"
	EventThrottled   = "throttled"
	EventFailure     = "failure"
	EventPartialFill = "partial_fill"
	EventStats       = "stats"
)

// Notifier delivers operator notifications. Delivery is fire-and-forget:
// failures are swallowed and logged, never propagated into the pipeline.
type Notifier interface {
	Notify(ctx context.Context, event, message string)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) {}

// Log writes notifications to the structured log only. Used when no external
// channel is configured.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a log-only notifier.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, event, message string) {
	l.logger.Info("notification",
		zap.String("event", event),
		zap.String("message", message))
}

// Multi fans a notification out to several channels.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event, message string) {
	for _, n := range m {
		n.Notify(ctx, event, message)
	}
}
