package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/resqlink/resqlink-backend/pkg/db/models"
	"github.com/resqlink/resqlink-backend/pkg/enums"
	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
)

// ServiceParams groups dependencies for the subscription read-model.
type ServiceParams struct {
	Repo Repository
}

// Service answers whether a group's plan entitles it to dispatch. Purchase
// and renewal flows live in the billing subsystem; this is read-only.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the subscription validity service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo, now: time.Now}, nil
}

// RequireUsable fails with subscription_expired unless the group holds an
// active subscription whose current period covers now. past_due does not
// authorize panics.
func (s *Service) RequireUsable(ctx context.Context, groupID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindCurrentByGroup(ctx, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeSubscriptionExpired, "group has no subscription")
	}
	if sub.Status != enums.SubscriptionStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeSubscriptionExpired, "group subscription is not active")
	}
	if !sub.CurrentPeriodEnd.After(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeSubscriptionExpired, "group subscription period has elapsed")
	}
	return sub, nil
}
