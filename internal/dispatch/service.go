package dispatch

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/resqlink/resqlink-backend/pkg/config"
	dbpkg "github.com/resqlink/resqlink-backend/pkg/db"
	"github.com/resqlink/resqlink-backend/pkg/db/models"
	"github.com/resqlink/resqlink-backend/pkg/enums"
	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
	"github.com/resqlink/resqlink-backend/pkg/geo"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/metrics"
	"github.com/resqlink/resqlink-backend/pkg/outbox"
	"github.com/resqlink/resqlink-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the dispatch matcher.
type ServiceParams struct {
	DB       txRunner
	Repo     Repository
	Outbox   outboxEmitter
	Metrics  *metrics.DispatchMetrics
	Logger   *logger.Logger
	Defaults config.DispatchConfig
}

// Service matches panic requests to the nearest available provider and owns
// the exclusive-assignment contract.
type Service struct {
	db       txRunner
	repo     Repository
	outbox   outboxEmitter
	metrics  *metrics.DispatchMetrics
	logg     *logger.Logger
	defaults config.DispatchConfig
	now      func() time.Time
}

// NewService builds the dispatch service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db runner is required")
	}
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		db:       params.DB,
		repo:     params.Repo,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
		defaults: params.Defaults,
		now:      time.Now,
	}, nil
}

// NearestQuery describes a nearest-provider search.
type NearestQuery struct {
	Lat           float64
	Lng           float64
	ProviderType  enums.ProviderType
	MaxDistanceKM float64
	Limit         int
	FirmID        *uuid.UUID
}

// Candidate is a ranked match for a nearest-provider search.
type Candidate struct {
	Provider     models.Provider `json:"provider"`
	DistanceKM   float64         `json:"distance_km"`
	ETAMinutes   float64         `json:"eta_minutes"`
	EstimatedFee decimal.Decimal `json:"estimated_fee"`
}

// FindNearest ranks available, active providers of the requested type by
// straight-line distance from their current location. A provider is only a
// candidate within min(query radius, its own coverage radius). Ties on
// distance break on provider id so results are stable.
func (s *Service) FindNearest(ctx context.Context, query NearestQuery) ([]Candidate, error) {
	started := s.now()
	defer func() {
		s.metrics.ObserveSearchDuration(time.Since(started))
	}()

	if err := geo.ValidateCoordinates(query.Lat, query.Lng); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coordinates")
	}
	if !query.ProviderType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid provider type")
	}
	maxDistance := query.MaxDistanceKM
	if maxDistance <= 0 {
		maxDistance = s.defaults.DefaultSearchKM
	}
	limit := query.Limit
	if limit <= 0 {
		limit = s.defaults.DefaultSearchLimit
	}

	providers, err := s.repo.ListAvailableCandidates(ctx, query.ProviderType, query.FirmID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list candidates")
	}

	origin := geo.Point{Lat: query.Lat, Lng: query.Lng}
	candidates := make([]Candidate, 0, len(providers))
	for i := range providers {
		provider := providers[i]
		distance := geo.Distance(origin, geo.Point{Lat: provider.CurrentLat, Lng: provider.CurrentLng})
		reach := maxDistance
		if provider.CoverageRadiusKM < reach {
			reach = provider.CoverageRadiusKM
		}
		if distance > reach {
			continue
		}
		candidates = append(candidates, Candidate{
			Provider:     provider,
			DistanceKM:   distance,
			ETAMinutes:   geo.EstimateETAMinutes(distance),
			EstimatedFee: estimateFee(provider, distance),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].DistanceKM != candidates[j].DistanceKM {
			return candidates[i].DistanceKM < candidates[j].DistanceKM
		}
		return strings.Compare(candidates[i].Provider.ID.String(), candidates[j].Provider.ID.String()) < 0
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func estimateFee(provider models.Provider, distanceKM float64) decimal.Decimal {
	return provider.CalloutFee.Add(provider.PerKMRate.Mul(decimal.NewFromFloat(distanceKM))).Round(2)
}

// AssignParams describes an exclusive claim of a provider for a request.
// FirmScope pins operators to their own firm's providers and requests; admins
// pass nil.
type AssignParams struct {
	ProviderID uuid.UUID
	RequestID  uuid.UUID
	ETAMinutes *float64
	FirmScope  *uuid.UUID
}

// Assign claims the provider for the request in one transaction: the
// assignment row is written and the provider is flipped available -> busy via
// a conditional update. Exactly one of any set of concurrent claims wins; the
// rest see assignment_conflict.
func (s *Service) Assign(ctx context.Context, params AssignParams) (*models.ProviderAssignment, error) {
	var assignment *models.ProviderAssignment
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		provider, err := repo.FindProviderByID(ctx, params.ProviderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load provider")
		}
		if provider == nil {
			return pkgerrors.New(pkgerrors.CodeProviderNotFound, "provider not found")
		}
		if params.FirmScope != nil && provider.FirmID != *params.FirmScope {
			return pkgerrors.New(pkgerrors.CodeProviderNotFound, "provider not found")
		}
		if !provider.Active {
			return pkgerrors.New(pkgerrors.CodeProviderUnavailable, "provider is deactivated")
		}
		if provider.Status != enums.ProviderStatusAvailable {
			return pkgerrors.New(pkgerrors.CodeProviderUnavailable, "provider is not available")
		}

		request, err := repo.FindRequestByID(ctx, params.RequestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load request")
		}
		if request == nil {
			return pkgerrors.New(pkgerrors.CodeRequestNotFound, "panic request not found")
		}
		if params.FirmScope != nil && request.FirmID != *params.FirmScope {
			return pkgerrors.New(pkgerrors.CodeRequestNotFound, "panic request not found")
		}
		if request.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeAssignmentConflict, "request is closed").
				WithDetails(map[string]any{"reason": "request_closed"})
		}
		open, err := repo.FindOpenAssignmentByRequest(ctx, params.RequestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check open assignment")
		}
		if open != nil {
			return pkgerrors.New(pkgerrors.CodeAssignmentConflict, "request already has an open assignment").
				WithDetails(map[string]any{"reason": "request_already_assigned"})
		}

		distance := geo.HaversineKM(provider.CurrentLat, provider.CurrentLng, request.Lat, request.Lng)
		eta := geo.EstimateETAMinutes(distance)
		if params.ETAMinutes != nil && *params.ETAMinutes > 0 {
			eta = *params.ETAMinutes
		}

		claimed, err := repo.ClaimProvider(ctx, params.ProviderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim provider")
		}
		if !claimed {
			s.metrics.IncConflict()
			return pkgerrors.New(pkgerrors.CodeAssignmentConflict, "provider was claimed concurrently").
				WithDetails(map[string]any{"reason": "provider_claimed"})
		}

		now := s.now().UTC()
		arrival := now.Add(time.Duration(eta * float64(time.Minute)))
		row := &models.ProviderAssignment{
			ProviderID:           params.ProviderID,
			RequestID:            params.RequestID,
			Status:               enums.AssignmentStatusAssigned,
			DistanceKM:           distance,
			EstimatedDurationMin: eta,
			EstimatedFee:         estimateFee(*provider, distance),
			AssignedAt:           now,
			EstimatedArrivalAt:   &arrival,
		}
		if err := repo.CreateAssignment(ctx, row); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_provider_assignments_open_provider") ||
				dbpkg.IsUniqueViolation(err, "ux_provider_assignments_open_request") {
				s.metrics.IncConflict()
				return pkgerrors.New(pkgerrors.CodeAssignmentConflict, "assignment lost a concurrent claim").
					WithDetails(map[string]any{"reason": "open_assignment_exists"})
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create assignment")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventProviderAssigned,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   row.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.ProviderAssignedEvent{
				AssignmentID:         row.ID,
				RequestID:            params.RequestID,
				ProviderID:           params.ProviderID,
				FirmID:               provider.FirmID,
				DistanceKM:           distance,
				EstimatedDurationMin: int(eta),
				AssignedAt:           now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit assignment event")
		}

		assignment = row
		return nil
	})
	if err != nil {
		s.metrics.IncAssignment(assignOutcome(err))
		return nil, err
	}
	s.metrics.IncAssignment("assigned")

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"assignment_id": assignment.ID.String(),
		"provider_id":   params.ProviderID.String(),
		"panic_id":      params.RequestID.String(),
		"distance_km":   assignment.DistanceKM,
	})
	s.logg.Info(logCtx, "provider assigned")
	return assignment, nil
}

func assignOutcome(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "error"
	}
	switch typed.Code() {
	case pkgerrors.CodeAssignmentConflict:
		return "conflict"
	case pkgerrors.CodeProviderUnavailable:
		return "provider_unavailable"
	case pkgerrors.CodeProviderNotFound, pkgerrors.CodeRequestNotFound:
		return "not_found"
	default:
		return "error"
	}
}

// Progress moves the open assignment alongside the request's en_route/arrived
// transitions. Runs inside the caller's transaction. No open assignment is
// fine; manual flows may transition without one.
func (s *Service) Progress(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, status enums.AssignmentStatus, at time.Time) error {
	repo := s.repo.WithTx(tx)
	open, err := repo.FindOpenAssignmentByRequest(ctx, requestID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find open assignment")
	}
	if open == nil {
		return nil
	}
	return repo.MarkAssignmentProgress(ctx, open.ID, status, at)
}

// Release closes the request's open assignment and returns its provider to
// the pool. Runs inside the terminal transition's transaction. When the
// provider CAS finds a status other than busy the manual change wins; the
// assignment still closes.
func (s *Service) Release(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, terminal enums.RequestStatus, at time.Time) error {
	repo := s.repo.WithTx(tx)
	open, err := repo.FindOpenAssignmentByRequest(ctx, requestID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find open assignment")
	}
	if open == nil {
		return nil
	}

	closing := enums.AssignmentStatusCancelled
	if terminal == enums.RequestStatusCompleted {
		closing = enums.AssignmentStatusCompleted
	}
	if err := repo.MarkAssignmentProgress(ctx, open.ID, closing, at); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "close assignment")
	}

	released, err := repo.ReleaseProvider(ctx, open.ProviderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release provider")
	}
	if !released {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"provider_id":   open.ProviderID.String(),
			"assignment_id": open.ID.String(),
		})
		s.logg.Warn(logCtx, "provider was not busy at release; leaving status untouched")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventProviderReleased,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   open.ID,
		Version:       1,
		OccurredAt:    at,
		Data: payloads.ProviderReleasedEvent{
			AssignmentID: open.ID,
			RequestID:    requestID,
			ProviderID:   open.ProviderID,
			Reason:       terminal.String(),
			ReleasedAt:   at,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit release event")
	}
	return nil
}
