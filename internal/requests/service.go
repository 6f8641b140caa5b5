package requests

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/resqlink/resqlink-backend/pkg/db/models"
	"github.com/resqlink/resqlink-backend/pkg/enums"
	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
	"github.com/resqlink/resqlink-backend/pkg/geo"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/maps"
	"github.com/resqlink/resqlink-backend/pkg/metrics"
	"github.com/resqlink/resqlink-backend/pkg/outbox"
	"github.com/resqlink/resqlink-backend/pkg/outbox/payloads"
	"github.com/resqlink/resqlink-backend/pkg/pagination"
)

const defaultGeocodeTimeout = 2 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type membership interface {
	FindGroup(ctx context.Context, id uuid.UUID) (*models.Group, error)
	VerifiedMember(ctx context.Context, groupID uuid.UUID, phone string) (*models.GroupMember, error)
}

type subscriptionChecker interface {
	RequireUsable(ctx context.Context, groupID uuid.UUID) (*models.Subscription, error)
}

type coverageResolver interface {
	Resolve(ctx context.Context, firmID uuid.UUID, point geo.Point) (*models.Firm, error)
}

type rateLimiter interface {
	Allow(ctx context.Context, phone string) error
}

type duplicateGuard interface {
	Check(ctx context.Context, phone string, point geo.Point) error
	Remember(ctx context.Context, phone string, requestID uuid.UUID, point geo.Point) error
}

type geocoder interface {
	ReverseGeocode(ctx context.Context, point geo.Point) (*maps.Address, error)
}

type assignmentTracker interface {
	Progress(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, status enums.AssignmentStatus, at time.Time) error
	Release(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, terminal enums.RequestStatus, at time.Time) error
}

// ServiceParams groups dependencies for the intake and lifecycle service.
type ServiceParams struct {
	DB             txRunner
	Repo           Repository
	Members        membership
	Subscriptions  subscriptionChecker
	Coverage       coverageResolver
	RateLimit      rateLimiter
	Duplicates     duplicateGuard
	Dispatch       assignmentTracker
	Outbox         outboxEmitter
	Geocoder       geocoder
	Metrics        *metrics.DispatchMetrics
	Logger         *logger.Logger
	GeocodeTimeout time.Duration
}

// Service owns panic intake and the request status lifecycle.
type Service struct {
	db             txRunner
	repo           Repository
	members        membership
	subscriptions  subscriptionChecker
	coverage       coverageResolver
	rateLimit      rateLimiter
	duplicates     duplicateGuard
	dispatch       assignmentTracker
	outbox         outboxEmitter
	geocoder       geocoder
	metrics        *metrics.DispatchMetrics
	logg           *logger.Logger
	geocodeTimeout time.Duration
	now            func() time.Time
}

// NewService builds the panic request service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db runner is required")
	}
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Members == nil {
		return nil, errors.New("membership service is required")
	}
	if params.Subscriptions == nil {
		return nil, errors.New("subscription service is required")
	}
	if params.Coverage == nil {
		return nil, errors.New("coverage service is required")
	}
	if params.RateLimit == nil {
		return nil, errors.New("rate limiter is required")
	}
	if params.Duplicates == nil {
		return nil, errors.New("duplicate guard is required")
	}
	if params.Dispatch == nil {
		return nil, errors.New("dispatch service is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	timeout := params.GeocodeTimeout
	if timeout <= 0 {
		timeout = defaultGeocodeTimeout
	}
	return &Service{
		db:             params.DB,
		repo:           params.Repo,
		members:        params.Members,
		subscriptions:  params.Subscriptions,
		coverage:       params.Coverage,
		rateLimit:      params.RateLimit,
		duplicates:     params.Duplicates,
		dispatch:       params.Dispatch,
		outbox:         params.Outbox,
		geocoder:       params.Geocoder,
		metrics:        params.Metrics,
		logg:           params.Logger,
		geocodeTimeout: timeout,
		now:            time.Now,
	}, nil
}

// SubmitParams carries an incoming panic submission.
type SubmitParams struct {
	GroupID     uuid.UUID
	Phone       string
	ServiceType enums.ServiceType
	Lat         float64
	Lng         float64
	Description string
	Address     string
}

// Submit runs the intake pipeline and persists the accepted request as
// pending. Guards run in a fixed order so a caller always sees the same
// rejection for the same bad input: service type, membership, rate limit,
// duplicate proximity, subscription, coverage. Coverage is judged at the
// group's registered location, not the panic coordinates.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*models.PanicRequest, error) {
	request, err := s.submit(ctx, params)
	if err != nil {
		s.metrics.IncSubmission(submitOutcome(err))
		return nil, err
	}
	s.metrics.IncSubmission("accepted")

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"panic_id":     request.ID.String(),
		"group_id":     request.GroupID.String(),
		"firm_id":      request.FirmID.String(),
		"service_type": request.ServiceType.String(),
	})
	s.logg.Info(logCtx, "panic request accepted")
	return request, nil
}

func (s *Service) submit(ctx context.Context, params SubmitParams) (*models.PanicRequest, error) {
	if !params.ServiceType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidServiceType, "unknown service type").
			WithDetails(map[string]any{"service_type": string(params.ServiceType)})
	}
	if err := geo.ValidateCoordinates(params.Lat, params.Lng); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid panic location")
	}
	phone := strings.TrimSpace(params.Phone)
	point := geo.Point{Lat: params.Lat, Lng: params.Lng}

	group, err := s.members.FindGroup(ctx, params.GroupID)
	if err != nil {
		return nil, err
	}
	if _, err := s.members.VerifiedMember(ctx, params.GroupID, phone); err != nil {
		return nil, err
	}
	if err := s.rateLimit.Allow(ctx, phone); err != nil {
		return nil, err
	}
	if err := s.duplicates.Check(ctx, phone, point); err != nil {
		return nil, err
	}
	subscription, err := s.subscriptions.RequireUsable(ctx, params.GroupID)
	if err != nil {
		return nil, err
	}
	// Coverage is admissible only through the firm the subscription pays for.
	firm, err := s.coverage.Resolve(ctx, subscription.FirmID, geo.Point{Lat: group.Lat, Lng: group.Lng})
	if err != nil {
		return nil, err
	}

	address := strings.TrimSpace(params.Address)
	if address == "" {
		address = s.lookupAddress(ctx, point)
	}

	now := s.now().UTC()
	request := &models.PanicRequest{
		GroupID:     params.GroupID,
		FirmID:      firm.ID,
		Phone:       phone,
		ServiceType: params.ServiceType,
		Status:      enums.RequestStatusPending,
		Lat:         params.Lat,
		Lng:         params.Lng,
		Address:     address,
		Description: strings.TrimSpace(params.Description),
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create panic request")
		}

		pending := enums.RequestStatusPending
		audit := &models.RequestStatusUpdate{
			RequestID: request.ID,
			NewStatus: pending,
			Actor:     phone,
			Lat:       &params.Lat,
			Lng:       &params.Lng,
		}
		if err := repo.AppendStatusUpdate(ctx, audit); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append status update")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPanicRaised,
			AggregateType: enums.AggregatePanicRequest,
			AggregateID:   request.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.PanicRaisedEvent{
				RequestID:   request.ID,
				GroupID:     request.GroupID,
				FirmID:      request.FirmID,
				Phone:       phone,
				ServiceType: request.ServiceType,
				Lat:         request.Lat,
				Lng:         request.Lng,
				RaisedAt:    now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit panic raised event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Remember only committed submissions; a failed write must not poison
	// the duplicate window.
	if err := s.duplicates.Remember(ctx, phone, request.ID, point); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"panic_id": request.ID.String(),
		}), "failed to record submission in duplicate window")
	}
	return request, nil
}

// lookupAddress backfills a human-readable address. Strictly best effort:
// geocoding gets a short deadline and any failure leaves the address empty.
func (s *Service) lookupAddress(ctx context.Context, point geo.Point) string {
	if s.geocoder == nil {
		return ""
	}
	geocodeCtx, cancel := context.WithTimeout(ctx, s.geocodeTimeout)
	defer cancel()

	address, err := s.geocoder.ReverseGeocode(geocodeCtx, point)
	if err != nil || address == nil {
		return ""
	}
	return address.FormattedAddress
}

func submitOutcome(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "error"
	}
	switch typed.Code() {
	case pkgerrors.CodeInvalidServiceType, pkgerrors.CodeValidation:
		return "invalid"
	case pkgerrors.CodeUnauthorizedRequest:
		return "unauthorized"
	case pkgerrors.CodeRateLimit:
		return "rate_limited"
	case pkgerrors.CodeDuplicateRequest:
		return "duplicate"
	case pkgerrors.CodeSubscriptionExpired:
		return "subscription_expired"
	case pkgerrors.CodeLocationNotCovered:
		return "not_covered"
	default:
		return "error"
	}
}

// legalTransitions is the lifecycle adjacency table. Cancellation is legal
// from any non-terminal status; terminal statuses allow nothing.
var legalTransitions = map[enums.RequestStatus][]enums.RequestStatus{
	enums.RequestStatusPending:  {enums.RequestStatusAccepted, enums.RequestStatusCancelled},
	enums.RequestStatusAccepted: {enums.RequestStatusEnRoute, enums.RequestStatusCancelled},
	enums.RequestStatusEnRoute:  {enums.RequestStatusArrived, enums.RequestStatusCancelled},
	enums.RequestStatusArrived:  {enums.RequestStatusCompleted, enums.RequestStatusCancelled},
}

func transitionAllowed(from, to enums.RequestStatus) bool {
	for _, candidate := range legalTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// TransitionParams describes a lifecycle move on a request. FirmScope pins
// operators to their own firm's requests; admins pass nil.
type TransitionParams struct {
	RequestID uuid.UUID
	NewStatus enums.RequestStatus
	Actor     string
	Message   *string
	Lat       *float64
	Lng       *float64
	FirmScope *uuid.UUID
}

// TransitionStatus applies one legal lifecycle step, appends the audit row,
// keeps the open assignment in step, and emits the status-changed event, all
// in a single transaction. Terminal transitions release the assigned provider
// back to the pool.
func (s *Service) TransitionStatus(ctx context.Context, params TransitionParams) (*models.PanicRequest, error) {
	if !params.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid request status")
	}
	if strings.TrimSpace(params.Actor) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}

	var request *models.PanicRequest
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		row, err := repo.FindByID(ctx, params.RequestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load panic request")
		}
		if row == nil {
			return pkgerrors.New(pkgerrors.CodeRequestNotFound, "panic request not found")
		}
		if params.FirmScope != nil && row.FirmID != *params.FirmScope {
			return pkgerrors.New(pkgerrors.CodeRequestNotFound, "panic request not found")
		}
		// A second accept is a no-op: the first operator already owns the
		// request, and re-accepting must not rewrite timestamps or the audit
		// trail.
		if row.Status == enums.RequestStatusAccepted && params.NewStatus == enums.RequestStatusAccepted {
			request = row
			return nil
		}
		if !transitionAllowed(row.Status, params.NewStatus) {
			return pkgerrors.New(pkgerrors.CodeIllegalStatusTransition, "status transition disallowed").
				WithDetails(map[string]any{
					"from": row.Status.String(),
					"to":   params.NewStatus.String(),
				})
		}

		now := s.now().UTC()
		oldStatus := row.Status
		row.Status = params.NewStatus
		switch params.NewStatus {
		case enums.RequestStatusAccepted:
			row.AcceptedAt = &now
		case enums.RequestStatusCompleted:
			row.CompletedAt = &now
		case enums.RequestStatusCancelled:
			row.CancelledAt = &now
		}
		if err := repo.Update(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update panic request")
		}

		audit := &models.RequestStatusUpdate{
			RequestID: row.ID,
			OldStatus: &oldStatus,
			NewStatus: params.NewStatus,
			Actor:     strings.TrimSpace(params.Actor),
			Message:   params.Message,
			Lat:       params.Lat,
			Lng:       params.Lng,
		}
		if err := repo.AppendStatusUpdate(ctx, audit); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append status update")
		}

		switch params.NewStatus {
		case enums.RequestStatusEnRoute:
			if err := s.dispatch.Progress(ctx, tx, row.ID, enums.AssignmentStatusEnRoute, now); err != nil {
				return err
			}
		case enums.RequestStatusArrived:
			if err := s.dispatch.Progress(ctx, tx, row.ID, enums.AssignmentStatusArrived, now); err != nil {
				return err
			}
		case enums.RequestStatusCompleted, enums.RequestStatusCancelled:
			if err := s.dispatch.Release(ctx, tx, row.ID, params.NewStatus, now); err != nil {
				return err
			}
		}

		message := ""
		if params.Message != nil {
			message = *params.Message
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventPanicStatusChanged,
			AggregateType: enums.AggregatePanicRequest,
			AggregateID:   row.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.PanicStatusChangedEvent{
				RequestID:  row.ID,
				GroupID:    row.GroupID,
				FirmID:     row.FirmID,
				OldStatus:  &oldStatus,
				NewStatus:  params.NewStatus,
				Actor:      strings.TrimSpace(params.Actor),
				Message:    message,
				OccurredAt: now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit status changed event")
		}

		request = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"panic_id": request.ID.String(),
		"status":   request.Status.String(),
	})
	s.logg.Info(logCtx, "panic request transitioned")
	return request, nil
}

// Get returns the request with its full audit trail.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error) {
	request, err := s.repo.FindByIDWithLog(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load panic request")
	}
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeRequestNotFound, "panic request not found")
	}
	return request, nil
}

// List pages through requests scoped to a group or a firm.
func (s *Service) List(ctx context.Context, params ListQuery) ([]models.PanicRequest, *pagination.Cursor, error) {
	if params.GroupID == nil && params.FirmID == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "group or firm scope is required")
	}
	requests, cursor, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list panic requests")
	}
	return requests, cursor, nil
}
