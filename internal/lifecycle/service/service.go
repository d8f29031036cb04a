// Package service implements the lifecycle state machine: checklist-gated,
// strictly linear stage advancement with optimistic concurrency against the
// instance store.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"civicflow/internal/checklist"
	"civicflow/internal/lifecycle/metrics"
	"civicflow/internal/lifecycle/models"
	"civicflow/internal/lifecycle/store"
	"civicflow/internal/notify"
	id "civicflow/pkg/domain"
	dErrors "civicflow/pkg/domain-errors"
	audit "civicflow/pkg/platform/audit"
	"civicflow/pkg/platform/sentinel"
	"civicflow/pkg/requestcontext"
)

// maxAdvanceRetries bounds conflict retries before the caller sees a
// conflict error. Conflicts mean a concurrent actor advanced the same
// instance; re-reading usually resolves it on the first retry.
const maxAdvanceRetries = 3

// AuditPublisher is the audit trail boundary. Append failures are a
// compliance concern and are escalated, unlike notification failures.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Outcome classifies an advance result. A blocked checklist is a normal
// outcome, not an error.
type Outcome string

const (
	OutcomeAdvanced            Outcome = "advanced"
	OutcomeChecklistIncomplete Outcome = "checklist_incomplete"
)

// AdvanceResult is returned on every non-error advance call.
type AdvanceResult struct {
	Outcome Outcome
	// Instance is the post-advance instance for OutcomeAdvanced, the current
	// instance otherwise.
	Instance *models.Instance
	// MissingRequired lists the unsatisfied required checklist keys when the
	// gate blocked the transition.
	MissingRequired []string
	// Checklist carries the evaluation either way for UI display.
	Checklist checklist.Result
}

// Service orchestrates lifecycle reads and advances.
type Service struct {
	instances   store.InstanceStore
	definitions *models.Registry

	logger      *slog.Logger
	auditor     AuditPublisher
	notifier    notify.Dispatcher
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	strictAudit bool
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(auditor AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

func WithNotifier(notifier notify.Dispatcher) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithStrictAudit makes an audit append failure fail the advance call. The
// append runs inside the store transaction, so on transactional stores strict
// mode rolls the stage change back with it; in-memory stores keep the change.
// Either way the failure is logged as critical.
func WithStrictAudit(strict bool) Option {
	return func(s *Service) {
		s.strictAudit = strict
	}
}

// New constructs a Service.
func New(instances store.InstanceStore, definitions *models.Registry, opts ...Option) *Service {
	s := &Service{
		instances:   instances,
		definitions: definitions,
		logger:      slog.Default(),
		tracer:      otel.Tracer("civicflow/lifecycle"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInstance starts lifecycle tracking for a newly created entity at the
// definition's initial stage.
func (s *Service) CreateInstance(ctx context.Context, entityID id.EntityID, kind id.EntityKind) (*models.Instance, error) {
	def, ok := s.definitions.Get(kind)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown entity kind %q", kind)
	}

	instance := models.NewInstance(entityID, def, requestcontext.Now(ctx))
	if err := s.instances.Create(ctx, instance); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "entity already has a lifecycle instance")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create lifecycle instance")
	}

	s.logAudit(ctx, audit.Event{
		EntityID: entityID.String(),
		Actor:    requestcontext.ActorID(ctx).String(),
		Action:   string(audit.ActionLifecycleCreated),
		ToStage:  instance.CurrentStage,
	})
	return instance, nil
}

// Get returns the instance and its history.
func (s *Service) Get(ctx context.Context, entityID id.EntityID) (*models.Instance, error) {
	instance, err := s.instances.Get(ctx, entityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "lifecycle instance not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lifecycle instance")
	}
	return instance, nil
}

// Advance moves the entity to the next stage if the current stage's checklist
// gate passes. Checklist item values are caller-supplied; the engine never
// infers them. On a version conflict the whole evaluation is retried from
// freshly read state, a bounded number of times.
func (s *Service) Advance(ctx context.Context, entityID id.EntityID, list checklist.Checklist, notes string) (*AdvanceResult, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.advance")
	defer span.End()
	start := time.Now()
	actor := requestcontext.ActorID(ctx)

	for attempt := 0; attempt < maxAdvanceRetries; attempt++ {
		instance, err := s.instances.Get(ctx, entityID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "lifecycle instance not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lifecycle instance")
		}

		def, ok := s.definitions.Get(instance.Kind)
		if !ok {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "no lifecycle definition for kind %q", instance.Kind)
		}

		stage, _, found := def.Find(instance.CurrentStage)
		if !found {
			// Definition/instance drift: the stored stage no longer exists.
			s.metrics.IncrementOutcome(string(instance.Kind), "unknown_stage")
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown stage %q for kind %q", instance.CurrentStage, instance.Kind)
		}
		if stage.Terminal {
			s.metrics.IncrementOutcome(string(instance.Kind), "terminal")
			return nil, dErrors.Newf(dErrors.CodeConflict, "stage %q is terminal", stage.Name)
		}

		evaluation, err := checklist.Evaluate(list)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid checklist")
		}
		s.metrics.IncrementGate(evaluation.GatePassed)
		if !evaluation.GatePassed {
			s.metrics.IncrementOutcome(string(instance.Kind), string(OutcomeChecklistIncomplete))
			return &AdvanceResult{
				Outcome:         OutcomeChecklistIncomplete,
				Instance:        instance,
				MissingRequired: evaluation.MissingRequired,
				Checklist:       evaluation,
			}, nil
		}

		next, ok := def.Next(instance.CurrentStage)
		if !ok {
			// Unreachable for valid definitions: every non-terminal stage has
			// a successor.
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "stage %q has no successor", instance.CurrentStage)
		}

		transition := models.Transition{
			FromStage:  instance.CurrentStage,
			ToStage:    next.Name,
			Actor:      actor,
			OccurredAt: requestcontext.Now(ctx).UTC(),
			Notes:      notes,
		}
		// The stage write and its audit record commit together: on stores
		// with transactions a strict-mode audit failure rolls the advance
		// back, so the trail never misses a committed transition.
		var updated *models.Instance
		err = s.instances.InTx(ctx, func(ctx context.Context) error {
			var advErr error
			updated, advErr = s.instances.AdvanceStage(ctx, entityID, instance.Version, next.Name, transition)
			if advErr != nil {
				return advErr
			}
			return s.appendAudit(ctx, transition, instance.Kind, entityID)
		})
		if errors.Is(err, sentinel.ErrVersionConflict) {
			s.logger.InfoContext(ctx, "advance lost version race, retrying",
				"entity_id", entityID,
				"attempt", attempt+1,
			)
			continue
		}
		if err != nil {
			return nil, asDomainError(err, "failed to advance stage")
		}
		s.dispatchNotification(ctx, entityID, transition)

		s.metrics.IncrementOutcome(string(instance.Kind), string(OutcomeAdvanced))
		s.metrics.ObserveAdvanceLatency(time.Since(start))
		s.logger.InfoContext(ctx, "lifecycle advanced",
			"request_id", requestcontext.RequestID(ctx),
			"entity_id", entityID,
			"kind", instance.Kind,
			"from", transition.FromStage,
			"to", transition.ToStage,
			"actor", actor,
			"version", strconv.Itoa(updated.Version),
		)
		return &AdvanceResult{Outcome: OutcomeAdvanced, Instance: updated, Checklist: evaluation}, nil
	}

	s.metrics.IncrementOutcome("unknown", "conflict")
	return nil, dErrors.New(dErrors.CodeConflict, "concurrent update, please retry")
}

// asDomainError passes already-coded errors through and wraps everything else
// (transaction begin/commit failures, mostly) as internal.
func asDomainError(err error, message string) error {
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}

// appendAudit records the transition inside the advance transaction. Loss of
// the audit trail undermines the compliance purpose of the workflow, so a
// failure here is logged as critical and, in strict mode, fails the call,
// rolling the stage change back on transactional stores.
func (s *Service) appendAudit(ctx context.Context, transition models.Transition, kind id.EntityKind, entityID id.EntityID) error {
	if s.auditor == nil {
		return nil
	}
	err := s.auditor.Emit(ctx, audit.Event{
		EntityID:  entityID.String(),
		Actor:     transition.Actor.String(),
		Action:    string(audit.ActionStageAdvanced),
		FromStage: transition.FromStage,
		ToStage:   transition.ToStage,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    requestcontext.Device(ctx),
		Notes:     transition.Notes,
	})
	if err == nil {
		return nil
	}
	s.logger.ErrorContext(ctx, "CRITICAL: audit append failed for stage transition",
		"entity_id", entityID,
		"kind", kind,
		"from", transition.FromStage,
		"to", transition.ToStage,
		"error", err,
	)
	if s.strictAudit {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit trail append failed")
	}
	return nil
}

// dispatchNotification emits the single best-effort transition event. Failure
// is logged, never propagated: notification is not transactional with the
// state change.
func (s *Service) dispatchNotification(ctx context.Context, entityID id.EntityID, transition models.Transition) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notify.Event{
		Kind:      notify.KindLifecycleAdvanced,
		Recipient: notify.RecipientAdmins,
		Payload: map[string]string{
			"entity_id":  entityID.String(),
			"from_stage": transition.FromStage,
			"to_stage":   transition.ToStage,
		},
		At: transition.OccurredAt,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "transition notification failed",
			"entity_id", entityID,
			"error", err,
		)
	}
}

// logAudit mirrors the audit record into the structured log and forwards it
// to the publisher, tolerating a nil publisher in tests.
func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	s.logger.InfoContext(ctx, event.Action,
		"log_type", "audit",
		"request_id", requestcontext.RequestID(ctx),
		"entity_id", event.EntityID,
	)
	if s.auditor == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	event.ClientIP = requestcontext.ClientIP(ctx)
	event.Device = requestcontext.Device(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
			"entity_id", event.EntityID,
			"action", event.Action,
			"error", err,
		)
	}
}
