package notify

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level counters so repeated Async construction (tests, restarts of
// wiring) never double-registers collectors.
var (
	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civicflow_notify_dropped_total",
		Help: "Notifications dropped because the dispatch inbox was full",
	})
	failedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civicflow_notify_failed_total",
		Help: "Notification deliveries that returned an error",
	})
	deliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civicflow_notify_delivered_total",
		Help: "Notifications handed to the underlying dispatcher",
	})
)

// Async decorates a Dispatcher with a bounded inbox and a background worker
// so callers never block on delivery. When the inbox is full the event is
// dropped and counted; notifications are best-effort by contract.
type Async struct {
	next   Dispatcher
	inbox  chan Event
	logger *slog.Logger
}

func NewAsync(next Dispatcher, buffer int, logger *slog.Logger) *Async {
	if buffer <= 0 {
		buffer = 256
	}
	return &Async{
		next:   next,
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Send enqueues the event without blocking.
func (a *Async) Send(ctx context.Context, event Event) error {
	select {
	case a.inbox <- event:
		return nil
	default:
		droppedTotal.Inc()
		a.logger.WarnContext(ctx, "notification dropped, inbox full",
			"kind", event.Kind,
			"recipient", event.Recipient,
		)
		return nil
	}
}

// Run drains the inbox until ctx is cancelled. Delivery errors are logged
// and counted; the transport's own retry policy handles redelivery.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-a.inbox:
			if err := a.next.Send(ctx, event); err != nil {
				failedTotal.Inc()
				a.logger.ErrorContext(ctx, "notification delivery failed",
					"kind", event.Kind,
					"recipient", event.Recipient,
					"error", err,
				)
				continue
			}
			deliveredTotal.Inc()
		}
	}
}
