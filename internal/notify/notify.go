// Package notify delivers transition and decision events to interested
// parties. Delivery is fire-and-forget: a dispatch failure is logged and
// counted, never propagated into the state change that triggered it.
package notify

import (
	"context"
	"time"
)

// Kind names a notification event type.
type Kind string

const (
	KindLifecycleAdvanced     Kind = "lifecycle.advanced"
	KindAdmissionSubmitted    Kind = "admission.submitted"
	KindAdmissionAutoApproved Kind = "admission.auto_approved"
	KindAdmissionDecided      Kind = "admission.decided"
)

// Recipient routes an event. Administrators are addressed by the well-known
// group ref; users by their ID.
const RecipientAdmins = "group:administrators"

// Event is one notification. Payload is flat string pairs so adapters can
// serialize it without reflection surprises.
type Event struct {
	Kind      Kind              `json:"kind"`
	Recipient string            `json:"recipient"`
	Payload   map[string]string `json:"payload"`
	At        time.Time         `json:"at"`
}

// Dispatcher is the delivery boundary. Send should return quickly; slow
// transports belong behind the Async wrapper.
type Dispatcher interface {
	Send(ctx context.Context, event Event) error
}
