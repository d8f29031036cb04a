// Package service implements the admission decision flow: a role request is
// either auto-approved on a domain allow-list match or queued for manual
// review, with exactly one notification and one audit record per outcome.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"civicflow/internal/admission/domainmatch"
	"civicflow/internal/admission/metrics"
	"civicflow/internal/admission/models"
	"civicflow/internal/admission/store"
	"civicflow/internal/notify"
	"civicflow/internal/rolestore"
	id "civicflow/pkg/domain"
	dErrors "civicflow/pkg/domain-errors"
	"civicflow/pkg/email"
	audit "civicflow/pkg/platform/audit"
	"civicflow/pkg/platform/sentinel"
	"civicflow/pkg/requestcontext"
)

// AuditPublisher is the audit trail boundary.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates role request submission and decisions.
type Service struct {
	requests   store.RequestStore
	allowLists store.AllowListStore
	roles      rolestore.Store

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

// WithStrictAudit surfaces audit append failures to the caller instead of
// only logging them. Appends run inside the store transaction, so on
// transactional stores strict mode rolls the state change back with the
// failed append.
func WithStrictAudit(strict bool) Option {
	return func(s *Service) {
		s.strictAudit = strict
	}
}

// New constructs a Service.
func New(requests store.RequestStore, allowLists store.AllowListStore, roles rolestore.Store, opts ...Option) *Service {
	s := &Service{
		requests:   requests,
		allowLists: allowLists,
		roles:      roles,
		logger:     slog.Default(),
		tracer:     otel.Tracer("civicflow/admission"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitParams carries a new role request.
type SubmitParams struct {
	UserID         id.UserID
	UserEmail      string
	Role           id.Role
	OrganizationID id.OrganizationID
	Justification  string
}

// Submit creates a role request and decides its initial status. Baseline-tier
// roles with a domain allow-list match are auto-approved and granted on the
// spot; everything else lands in the pending review queue. Elevated roles are
// rejected before any record is created when the justification is empty.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*models.RoleRequest, error) {
	ctx, span := s.tracer.Start(ctx, "admission.submit")
	defer span.End()
	now := requestcontext.Now(ctx).UTC()

	justification := strings.TrimSpace(params.Justification)
	if params.Role.Tier() == id.TierElevated && justification == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "justification is required for elevated roles")
	}

	domains, err := s.allowLists.DomainsFor(ctx, params.OrganizationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load domain allow-list")
	}
	matchedDomain, matched := domainmatch.MatchedDomain(params.UserEmail, domains)
	s.metrics.IncrementDomainMatch(matched)

	request := &models.RoleRequest{
		ID:             id.NewRequestID(),
		UserID:         params.UserID,
		UserEmail:      params.UserEmail,
		Role:           params.Role,
		OrganizationID: params.OrganizationID,
		Justification:  justification,
		Status:         models.StatusPending,
		CreatedAt:      now,
	}

	if params.Role.AutoApprovable() && matched {
		return s.autoApprove(ctx, request, matchedDomain, now)
	}
	return s.enqueuePending(ctx, request)
}

// autoApprove grants the role, persists the request as auto_approved, and
// notifies the requester. The grant happens first so a grant failure leaves
// no record claiming an approval that never took effect.
func (s *Service) autoApprove(ctx context.Context, request *models.RoleRequest, matchedDomain string, now time.Time) (*models.RoleRequest, error) {
	if err := s.roles.Grant(ctx, request.UserID, request.Role, request.OrganizationID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant role")
	}

	request.Status = models.StatusAutoApproved
	request.DecidedBy = models.DecidedBySystem
	request.DecidedAt = &now
	// Snapshot of the matched domain: the evidence a later revocation pass
	// would need when the allow-list shrinks.
	request.Reason = "domain:" + matchedDomain

	err := s.requests.InTx(ctx, func(ctx context.Context) error {
		if err := s.requests.Create(ctx, request); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist role request")
		}
		return s.appendAudit(ctx, request, audit.ActionAdmissionAutoApproved)
	})
	if err != nil {
		return nil, asDomainError(err, "failed to persist role request")
	}
	s.dispatchNotification(ctx, notify.Event{
		Kind:      notify.KindAdmissionAutoApproved,
		Recipient: "user:" + request.UserID.String(),
		Payload: map[string]string{
			"request_id":   request.ID.String(),
			"role":         request.Role.String(),
			"status":       string(request.Status),
			"display_name": displayName(request.UserEmail),
		},
		At: now,
	})

	s.metrics.IncrementDecision(string(request.Status), string(request.Role.Tier()))
	s.logger.InfoContext(ctx, "role request auto-approved",
		"request_id", requestcontext.RequestID(ctx),
		"role_request_id", request.ID,
		"user_id", request.UserID,
		"role", request.Role,
		"matched_domain", matchedDomain,
	)
	return request, nil
}

// enqueuePending persists the request in the review queue and notifies
// administrators.
func (s *Service) enqueuePending(ctx context.Context, request *models.RoleRequest) (*models.RoleRequest, error) {
	err := s.requests.InTx(ctx, func(ctx context.Context) error {
		if err := s.requests.Create(ctx, request); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist role request")
		}
		return s.appendAudit(ctx, request, audit.ActionAdmissionSubmitted)
	})
	if err != nil {
		return nil, asDomainError(err, "failed to persist role request")
	}
	s.dispatchNotification(ctx, notify.Event{
		Kind:      notify.KindAdmissionSubmitted,
		Recipient: notify.RecipientAdmins,
		Payload: map[string]string{
			"request_id":   request.ID.String(),
			"role":         request.Role.String(),
			"user_email":   request.UserEmail,
			"display_name": displayName(request.UserEmail),
		},
		At: request.CreatedAt,
	})

	s.metrics.IncrementDecision(string(request.Status), string(request.Role.Tier()))
	s.logger.InfoContext(ctx, "role request queued for review",
		"request_id", requestcontext.RequestID(ctx),
		"role_request_id", request.ID,
		"user_id", request.UserID,
		"role", request.Role,
	)
	return request, nil
}

// Decide applies a manual reviewer decision to a pending request. Approval
// grants the role; both outcomes notify the requester and append an audit
// record. An already-decided request is a conflict.
func (s *Service) Decide(ctx context.Context, requestID id.RequestID, approve bool, reason string) (*models.RoleRequest, error) {
	ctx, span := s.tracer.Start(ctx, "admission.decide")
	defer span.End()

	reviewer := requestcontext.ActorID(ctx)
	now := requestcontext.Now(ctx).UTC()

	status := models.StatusRejected
	action := audit.ActionAdmissionRejected
	if approve {
		status = models.StatusApproved
		action = audit.ActionAdmissionApproved
	}

	// Decision, grant, and audit record commit as one unit: on transactional
	// stores a grant or strict-mode audit failure rolls the decision back and
	// the request stays pending for a retry.
	var request *models.RoleRequest
	err := s.requests.InTx(ctx, func(ctx context.Context) error {
		var decideErr error
		request, decideErr = s.requests.Decide(ctx, requestID, status, reviewer.String(), strings.TrimSpace(reason), now)
		if decideErr != nil {
			switch {
			case errors.Is(decideErr, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "role request not found")
			case errors.Is(decideErr, sentinel.ErrInvalidState):
				return dErrors.New(dErrors.CodeConflict, "role request already decided")
			default:
				return dErrors.Wrap(decideErr, dErrors.CodeInternal, "failed to decide role request")
			}
		}

		if approve {
			if grantErr := s.roles.Grant(ctx, request.UserID, request.Role, request.OrganizationID); grantErr != nil {
				s.logger.ErrorContext(ctx, "CRITICAL: role grant failed after approval",
					"role_request_id", request.ID,
					"user_id", request.UserID,
					"role", request.Role,
					"error", grantErr,
				)
				return dErrors.Wrap(grantErr, dErrors.CodeInternal, "role grant failed")
			}
		}

		return s.appendAudit(ctx, request, action)
	})
	if err != nil {
		return nil, asDomainError(err, "failed to decide role request")
	}
	s.dispatchNotification(ctx, notify.Event{
		Kind:      notify.KindAdmissionDecided,
		Recipient: "user:" + request.UserID.String(),
		Payload: map[string]string{
			"request_id":   request.ID.String(),
			"role":         request.Role.String(),
			"status":       string(request.Status),
			"display_name": displayName(request.UserEmail),
		},
		At: now,
	})

	s.metrics.IncrementDecision(string(request.Status), string(request.Role.Tier()))
	s.logger.InfoContext(ctx, "role request decided",
		"request_id", requestcontext.RequestID(ctx),
		"role_request_id", request.ID,
		"status", request.Status,
		"decided_by", reviewer,
	)
	return request, nil
}

// Get returns one role request.
func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*models.RoleRequest, error) {
	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "role request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load role request")
	}
	return request, nil
}

// ListByStatus returns the review queue (or any other status slice), oldest
// first.
func (s *Service) ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.RoleRequest, error) {
	requests, err := s.requests.ListByStatus(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list role requests")
	}
	return requests, nil
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

// appendAudit records an admission event inside the caller's store
// transaction; failures are logged as critical and fail the call in strict
// mode, rolling the state change back on transactional stores.
func (s *Service) appendAudit(ctx context.Context, request *models.RoleRequest, action audit.Action) error {
	if s.auditor == nil {
		return nil
	}
	actor := request.DecidedBy
	if actor == "" {
		actor = request.UserID.String()
	}
	err := s.auditor.Emit(ctx, audit.Event{
		EntityID:  request.ID.String(),
		Actor:     actor,
		Action:    string(action),
		Decision:  string(request.Status),
		Reason:    request.Reason,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    requestcontext.Device(ctx),
	})
	if err == nil {
		return nil
	}
	s.logger.ErrorContext(ctx, "CRITICAL: audit append failed for admission decision",
		"role_request_id", request.ID,
		"action", action,
		"error", err,
	)
	if s.strictAudit {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit trail append failed")
	}
	return nil
}

// displayName derives "First Last" from the request email. The engine has no
// profile store, so the local part of the address is the best name available
// for notification rendering.
func displayName(address string) string {
	first, last := email.DeriveNameFromEmail(address)
	return first + " " + last
}

// dispatchNotification sends the branch's single best-effort notification.
func (s *Service) dispatchNotification(ctx context.Context, event notify.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "admission notification failed",
			"kind", event.Kind,
			"recipient", event.Recipient,
			"error", err,
		)
	}
}
