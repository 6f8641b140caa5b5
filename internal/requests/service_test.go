package requests

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/resqlink/resqlink-backend/pkg/db/models"
	"github.com/resqlink/resqlink-backend/pkg/enums"
	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
	"github.com/resqlink/resqlink-backend/pkg/geo"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/maps"
	"github.com/resqlink/resqlink-backend/pkg/outbox"
	"github.com/resqlink/resqlink-backend/pkg/pagination"
)

type fakeRepo struct {
	create             func(ctx context.Context, request *models.PanicRequest) error
	findByID           func(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error)
	findByIDWithLog    func(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error)
	update             func(ctx context.Context, request *models.PanicRequest) error
	appendStatusUpdate func(ctx context.Context, update *models.RequestStatusUpdate) error
	list               func(ctx context.Context, params ListQuery) ([]models.PanicRequest, *pagination.Cursor, error)
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, request *models.PanicRequest) error {
	return f.create(ctx, request)
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error) {
	return f.findByID(ctx, id)
}

func (f *fakeRepo) FindByIDWithLog(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error) {
	return f.findByIDWithLog(ctx, id)
}

func (f *fakeRepo) Update(ctx context.Context, request *models.PanicRequest) error {
	return f.update(ctx, request)
}

func (f *fakeRepo) AppendStatusUpdate(ctx context.Context, update *models.RequestStatusUpdate) error {
	return f.appendStatusUpdate(ctx, update)
}

func (f *fakeRepo) List(ctx context.Context, params ListQuery) ([]models.PanicRequest, *pagination.Cursor, error) {
	return f.list(ctx, params)
}

func (f *fakeRepo) ListStalePending(ctx context.Context, cutoff time.Time) ([]models.PanicRequest, error) {
	return nil, nil
}

func (f *fakeRepo) MarkEscalated(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeMembership struct {
	findGroup      func(ctx context.Context, id uuid.UUID) (*models.Group, error)
	verifiedMember func(ctx context.Context, groupID uuid.UUID, phone string) (*models.GroupMember, error)
}

func (f *fakeMembership) FindGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	return f.findGroup(ctx, id)
}

func (f *fakeMembership) VerifiedMember(ctx context.Context, groupID uuid.UUID, phone string) (*models.GroupMember, error) {
	return f.verifiedMember(ctx, groupID, phone)
}

type fakeSubscriptions struct {
	requireUsable func(ctx context.Context, groupID uuid.UUID) (*models.Subscription, error)
}

func (f *fakeSubscriptions) RequireUsable(ctx context.Context, groupID uuid.UUID) (*models.Subscription, error) {
	return f.requireUsable(ctx, groupID)
}

type fakeCoverage struct {
	resolve func(ctx context.Context, firmID uuid.UUID, point geo.Point) (*models.Firm, error)
}

func (f *fakeCoverage) Resolve(ctx context.Context, firmID uuid.UUID, point geo.Point) (*models.Firm, error) {
	return f.resolve(ctx, firmID, point)
}

type fakeRateLimiter struct {
	allow func(ctx context.Context, phone string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, phone string) error {
	return f.allow(ctx, phone)
}

type fakeDuplicates struct {
	check    func(ctx context.Context, phone string, point geo.Point) error
	remember func(ctx context.Context, phone string, requestID uuid.UUID, point geo.Point) error
}

func (f *fakeDuplicates) Check(ctx context.Context, phone string, point geo.Point) error {
	return f.check(ctx, phone, point)
}

func (f *fakeDuplicates) Remember(ctx context.Context, phone string, requestID uuid.UUID, point geo.Point) error {
	if f.remember == nil {
		return nil
	}
	return f.remember(ctx, phone, requestID, point)
}

type fakeGeocoder struct {
	reverse func(ctx context.Context, point geo.Point) (*maps.Address, error)
}

func (f *fakeGeocoder) ReverseGeocode(ctx context.Context, point geo.Point) (*maps.Address, error) {
	return f.reverse(ctx, point)
}

type fakeDispatch struct {
	progress func(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, status enums.AssignmentStatus, at time.Time) error
	release  func(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, terminal enums.RequestStatus, at time.Time) error
}

func (f *fakeDispatch) Progress(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, status enums.AssignmentStatus, at time.Time) error {
	if f.progress == nil {
		return nil
	}
	return f.progress(ctx, tx, requestID, status, at)
}

func (f *fakeDispatch) Release(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, terminal enums.RequestStatus, at time.Time) error {
	if f.release == nil {
		return nil
	}
	return f.release(ctx, tx, requestID, terminal, at)
}

type testHarness struct {
	repo          *fakeRepo
	members       *fakeMembership
	subscriptions *fakeSubscriptions
	coverage      *fakeCoverage
	rateLimit     *fakeRateLimiter
	duplicates    *fakeDuplicates
	dispatch      *fakeDispatch
	outbox        *fakeOutbox
	geocoder      *fakeGeocoder
}

func newHarness() *testHarness {
	groupID := uuid.New()
	firmID := uuid.New()
	return &testHarness{
		repo: &fakeRepo{
			create: func(ctx context.Context, request *models.PanicRequest) error {
				request.ID = uuid.New()
				return nil
			},
			appendStatusUpdate: func(ctx context.Context, update *models.RequestStatusUpdate) error {
				return nil
			},
		},
		members: &fakeMembership{
			findGroup: func(ctx context.Context, id uuid.UUID) (*models.Group, error) {
				return &models.Group{ID: groupID, Lat: -33.9249, Lng: 18.4241, Address: "12 Kloof St"}, nil
			},
			verifiedMember: func(ctx context.Context, gid uuid.UUID, phone string) (*models.GroupMember, error) {
				now := time.Now()
				return &models.GroupMember{GroupID: gid, Phone: phone, PhoneVerifiedAt: &now}, nil
			},
		},
		subscriptions: &fakeSubscriptions{
			requireUsable: func(ctx context.Context, gid uuid.UUID) (*models.Subscription, error) {
				return &models.Subscription{GroupID: gid, FirmID: firmID, Status: enums.SubscriptionStatusActive}, nil
			},
		},
		coverage: &fakeCoverage{
			resolve: func(ctx context.Context, fid uuid.UUID, point geo.Point) (*models.Firm, error) {
				return &models.Firm{ID: fid, Name: "Metro Armed Response"}, nil
			},
		},
		rateLimit: &fakeRateLimiter{
			allow: func(ctx context.Context, phone string) error { return nil },
		},
		duplicates: &fakeDuplicates{
			check: func(ctx context.Context, phone string, point geo.Point) error { return nil },
		},
		dispatch: &fakeDispatch{},
		outbox:   &fakeOutbox{},
	}
}

func (h *testHarness) service(t *testing.T) *Service {
	t.Helper()
	params := ServiceParams{
		DB:            fakeTxRunner{},
		Repo:          h.repo,
		Members:       h.members,
		Subscriptions: h.subscriptions,
		Coverage:      h.coverage,
		RateLimit:     h.rateLimit,
		Duplicates:    h.duplicates,
		Dispatch:      h.dispatch,
		Outbox:        h.outbox,
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}
	if h.geocoder != nil {
		params.Geocoder = h.geocoder
	}
	svc, err := NewService(params)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func validSubmit() SubmitParams {
	return SubmitParams{
		GroupID:     uuid.New(),
		Phone:       "+27821234567",
		ServiceType: enums.ServiceTypeSecurity,
		Lat:         -33.93,
		Lng:         18.43,
		Description: "intruder at the gate",
	}
}

func TestSubmitAcceptsAndAuditsRequest(t *testing.T) {
	h := newHarness()
	var audit *models.RequestStatusUpdate
	h.repo.appendStatusUpdate = func(ctx context.Context, update *models.RequestStatusUpdate) error {
		audit = update
		return nil
	}
	var remembered *geo.Point
	var rememberedID uuid.UUID
	h.duplicates.remember = func(ctx context.Context, phone string, requestID uuid.UUID, point geo.Point) error {
		remembered = &point
		rememberedID = requestID
		return nil
	}
	svc := h.service(t)

	request, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if request.Status != enums.RequestStatusPending {
		t.Fatalf("accepted requests start pending, got %s", request.Status)
	}
	if request.FirmID == uuid.Nil {
		t.Fatal("expected resolved firm on the request")
	}
	if audit == nil || audit.NewStatus != enums.RequestStatusPending || audit.OldStatus != nil {
		t.Fatalf("expected initial audit row, got %+v", audit)
	}
	if len(h.outbox.events) != 1 || h.outbox.events[0].EventType != enums.EventPanicRaised {
		t.Fatalf("expected panic_raised event, got %+v", h.outbox.events)
	}
	if remembered == nil || remembered.Lat != -33.93 {
		t.Fatal("accepted submission must enter the duplicate window")
	}
	if rememberedID != request.ID {
		t.Fatalf("duplicate window must record the request id, got %s want %s", rememberedID, request.ID)
	}
}

func TestSubmitRejectsUnknownServiceType(t *testing.T) {
	h := newHarness()
	h.members.findGroup = func(ctx context.Context, id uuid.UUID) (*models.Group, error) {
		t.Fatal("service type must be checked before any lookup")
		return nil, nil
	}
	svc := h.service(t)

	params := validSubmit()
	params.ServiceType = "helicopter"
	_, err := svc.Submit(context.Background(), params)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidServiceType {
		t.Fatalf("expected invalid service type, got %v", err)
	}
}

func TestSubmitRejectsUnverifiedPhone(t *testing.T) {
	h := newHarness()
	h.members.verifiedMember = func(ctx context.Context, gid uuid.UUID, phone string) (*models.GroupMember, error) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorizedRequest, "phone is not a verified member of the group")
	}
	svc := h.service(t)

	_, err := svc.Submit(context.Background(), validSubmit())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorizedRequest {
		t.Fatalf("expected unauthorized request, got %v", err)
	}
}

func TestSubmitRateLimitRunsBeforeSubscription(t *testing.T) {
	h := newHarness()
	h.rateLimit.allow = func(ctx context.Context, phone string) error {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many panic requests for this phone")
	}
	h.subscriptions.requireUsable = func(ctx context.Context, gid uuid.UUID) (*models.Subscription, error) {
		t.Fatal("subscription must not be checked after the rate limit rejects")
		return nil, nil
	}
	svc := h.service(t)

	_, err := svc.Submit(context.Background(), validSubmit())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeRateLimit {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestSubmitCoverageUsesGroupRegisteredLocation(t *testing.T) {
	h := newHarness()
	var checked geo.Point
	h.coverage.resolve = func(ctx context.Context, fid uuid.UUID, point geo.Point) (*models.Firm, error) {
		checked = point
		return &models.Firm{ID: fid}, nil
	}
	svc := h.service(t)

	params := validSubmit()
	// Panic coordinates differ from the registered address.
	params.Lat, params.Lng = -34.1, 18.8
	if _, err := svc.Submit(context.Background(), params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checked.Lat != -33.9249 || checked.Lng != 18.4241 {
		t.Fatalf("coverage must be judged at the registered location, got %+v", checked)
	}
}

func TestSubmitCoverageScopedToSubscribedFirm(t *testing.T) {
	h := newHarness()
	subscribedFirm := uuid.New()
	h.subscriptions.requireUsable = func(ctx context.Context, gid uuid.UUID) (*models.Subscription, error) {
		return &models.Subscription{GroupID: gid, FirmID: subscribedFirm, Status: enums.SubscriptionStatusActive}, nil
	}
	var coverageFirm uuid.UUID
	h.coverage.resolve = func(ctx context.Context, fid uuid.UUID, point geo.Point) (*models.Firm, error) {
		coverageFirm = fid
		return &models.Firm{ID: fid}, nil
	}
	svc := h.service(t)

	request, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coverageFirm != subscribedFirm {
		t.Fatalf("coverage must be judged against the subscribed firm, got %s want %s", coverageFirm, subscribedFirm)
	}
	if request.FirmID != subscribedFirm {
		t.Fatalf("request must be routed to the subscribed firm, got %s", request.FirmID)
	}
}

func TestSubmitRejectedWhenSubscribedFirmDoesNotCover(t *testing.T) {
	h := newHarness()
	h.coverage.resolve = func(ctx context.Context, fid uuid.UUID, point geo.Point) (*models.Firm, error) {
		return nil, pkgerrors.New(pkgerrors.CodeLocationNotCovered, "location is outside the subscribed firm's coverage")
	}
	h.repo.create = func(ctx context.Context, request *models.PanicRequest) error {
		t.Fatal("uncovered locations must never create a request")
		return nil
	}
	svc := h.service(t)

	_, err := svc.Submit(context.Background(), validSubmit())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeLocationNotCovered {
		t.Fatalf("expected location not covered, got %v", err)
	}
}

func TestSubmitExpiredSubscriptionRejected(t *testing.T) {
	h := newHarness()
	h.subscriptions.requireUsable = func(ctx context.Context, gid uuid.UUID) (*models.Subscription, error) {
		return nil, pkgerrors.New(pkgerrors.CodeSubscriptionExpired, "group subscription period has elapsed")
	}
	svc := h.service(t)

	_, err := svc.Submit(context.Background(), validSubmit())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeSubscriptionExpired {
		t.Fatalf("expected subscription expired, got %v", err)
	}
}

func TestSubmitBackfillsAddressFromGeocoder(t *testing.T) {
	h := newHarness()
	h.geocoder = &fakeGeocoder{
		reverse: func(ctx context.Context, point geo.Point) (*maps.Address, error) {
			return &maps.Address{FormattedAddress: "1 Adderley St, Cape Town"}, nil
		},
	}
	svc := h.service(t)

	request, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if request.Address != "1 Adderley St, Cape Town" {
		t.Fatalf("expected backfilled address, got %q", request.Address)
	}
}

func TestSubmitGeocoderFailureDoesNotBlock(t *testing.T) {
	h := newHarness()
	h.geocoder = &fakeGeocoder{
		reverse: func(ctx context.Context, point geo.Point) (*maps.Address, error) {
			return nil, errors.New("upstream down")
		},
	}
	svc := h.service(t)

	request, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("geocoding must be best effort: %v", err)
	}
	if request.Address != "" {
		t.Fatalf("expected empty address, got %q", request.Address)
	}
}

func TestTransitionAcceptStampsTimestamp(t *testing.T) {
	h := newHarness()
	requestID := uuid.New()
	h.repo.findByID = func(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error) {
		return &models.PanicRequest{ID: requestID, Status: enums.RequestStatusPending, GroupID: uuid.New(), FirmID: uuid.New()}, nil
	}
	var saved *models.PanicRequest
	h.repo.update = func(ctx context.Context, request *models.PanicRequest) error {
		saved = request
		return nil
	}
	svc := h.service(t)

	request, err := svc.TransitionStatus(context.Background(), TransitionParams{
		RequestID: requestID,
		NewStatus: enums.RequestStatusAccepted,
		Actor:     "operator:dispatch-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if request.Status != enums.RequestStatusAccepted || saved.AcceptedAt == nil {
		t.Fatalf("expected accepted with timestamp, got %+v", saved)
	}
	if len(h.outbox.events) != 1 || h.outbox.events[0].EventType != enums.EventPanicStatusChanged {
		t.Fatalf("expected status changed event, got %+v", h.outbox.events)
	}
}

func TestTransitionRepeatedAcceptIsNoOp(t *testing.T) {
	h := newHarness()
	requestID := uuid.New()
	acceptedAt := time.Now().Add(-5 * time.Minute)
	h.repo.findByID = func(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error) {
		return &models.PanicRequest{ID: requestID, Status: enums.RequestStatusAccepted, AcceptedAt: &acceptedAt}, nil
	}
	h.repo.update = func(ctx context.Context, request *models.PanicRequest) error {
		t.Fatal("a repeated accept must not rewrite the request")
		return nil
	}
	h.repo.appendStatusUpdate = func(ctx context.Context, update *models.RequestStatusUpdate) error {
		t.Fatal("a repeated accept must not append to the audit log")
		return nil
	}
	svc := h.service(t)

	request, err := svc.TransitionStatus(context.Background(), TransitionParams{
		RequestID: requestID,
		NewStatus: enums.RequestStatusAccepted,
		Actor:     "operator:dispatch-2",
	})
	if err != nil {
		t.Fatalf("repeated accept must succeed: %v", err)
	}
	if request.AcceptedAt == nil || !request.AcceptedAt.Equal(acceptedAt) {
		t.Fatalf("original accept timestamp must survive, got %v", request.AcceptedAt)
	}
	if len(h.outbox.events) != 0 {
		t.Fatalf("repeated accept must not emit events, got %+v", h.outbox.events)
	}
}

func TestTransitionScopedOperatorCannotTouchOtherFirm(t *testing.T) {
	h := newHarness()
	requestID := uuid.New()
	h.repo.findByID = func(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error) {
		return &models.PanicRequest{ID: requestID, Status: enums.RequestStatusPending, FirmID: uuid.New()}, nil
	}
	h.repo.update = func(ctx context.Context, request *models.PanicRequest) error {
		t.Fatal("a foreign firm's request must never be updated")
		return nil
	}
	svc := h.service(t)

	otherFirm := uuid.New()
	_, err := svc.TransitionStatus(context.Background(), TransitionParams{
		RequestID: requestID,
		NewStatus: enums.RequestStatusAccepted,
		Actor:     "operator:dispatch-1",
		FirmScope: &otherFirm,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeRequestNotFound {
		t.Fatalf("foreign firm requests must look not-found, got %v", err)
	}
}

func TestTransitionSkippingStepsIsIllegal(t *testing.T) {
	h := newHarness()
	h.repo.findByID = func(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error) {
		return &models.PanicRequest{ID: id, Status: enums.RequestStatusPending}, nil
	}
	svc := h.service(t)

	_, err := svc.TransitionStatus(context.Background(), TransitionParams{
		RequestID: uuid.New(),
		NewStatus: enums.RequestStatusArrived,
		Actor:     "operator:dispatch-1",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeIllegalStatusTransition {
		t.Fatalf("expected illegal transition, got %v", err)
	}
}

func TestTransitionOutOfTerminalIsIllegal(t *testing.T) {
	h := newHarness()
	h.repo.findByID = func(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error) {
		return &models.PanicRequest{ID: id, Status: enums.RequestStatusCompleted}, nil
	}
	svc := h.service(t)

	_, err := svc.TransitionStatus(context.Background(), TransitionParams{
		RequestID: uuid.New(),
		NewStatus: enums.RequestStatusCancelled,
		Actor:     "operator:dispatch-1",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeIllegalStatusTransition {
		t.Fatalf("expected illegal transition, got %v", err)
	}
}

func TestTransitionEnRouteAdvancesAssignment(t *testing.T) {
	h := newHarness()
	requestID := uuid.New()
	h.repo.findByID = func(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error) {
		return &models.PanicRequest{ID: requestID, Status: enums.RequestStatusAccepted}, nil
	}
	h.repo.update = func(ctx context.Context, request *models.PanicRequest) error { return nil }
	var progressed enums.AssignmentStatus
	h.dispatch.progress = func(ctx context.Context, tx *gorm.DB, rid uuid.UUID, status enums.AssignmentStatus, at time.Time) error {
		progressed = status
		return nil
	}
	svc := h.service(t)

	if _, err := svc.TransitionStatus(context.Background(), TransitionParams{
		RequestID: requestID,
		NewStatus: enums.RequestStatusEnRoute,
		Actor:     "provider:unit-12",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progressed != enums.AssignmentStatusEnRoute {
		t.Fatalf("expected assignment moved en_route, got %s", progressed)
	}
}

func TestTransitionCancelReleasesProvider(t *testing.T) {
	h := newHarness()
	requestID := uuid.New()
	h.repo.findByID = func(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error) {
		return &models.PanicRequest{ID: requestID, Status: enums.RequestStatusEnRoute}, nil
	}
	var saved *models.PanicRequest
	h.repo.update = func(ctx context.Context, request *models.PanicRequest) error {
		saved = request
		return nil
	}
	var released enums.RequestStatus
	h.dispatch.release = func(ctx context.Context, tx *gorm.DB, rid uuid.UUID, terminal enums.RequestStatus, at time.Time) error {
		released = terminal
		return nil
	}
	svc := h.service(t)

	if _, err := svc.TransitionStatus(context.Background(), TransitionParams{
		RequestID: requestID,
		NewStatus: enums.RequestStatusCancelled,
		Actor:     "member:+27821234567",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if released != enums.RequestStatusCancelled {
		t.Fatalf("expected provider released on cancel, got %s", released)
	}
	if saved.CancelledAt == nil {
		t.Fatal("expected cancelled timestamp")
	}
}

func TestTransitionMissingRequest(t *testing.T) {
	h := newHarness()
	h.repo.findByID = func(ctx context.Context, id uuid.UUID) (*models.PanicRequest, error) {
		return nil, nil
	}
	svc := h.service(t)

	_, err := svc.TransitionStatus(context.Background(), TransitionParams{
		RequestID: uuid.New(),
		NewStatus: enums.RequestStatusAccepted,
		Actor:     "operator:dispatch-1",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeRequestNotFound {
		t.Fatalf("expected request not found, got %v", err)
	}
}

func TestListRequiresScope(t *testing.T) {
	h := newHarness()
	svc := h.service(t)

	_, _, err := svc.List(context.Background(), ListQuery{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
