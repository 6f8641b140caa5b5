package groups

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/resqlink/resqlink-backend/pkg/db/models"
	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
)

// ServiceParams groups dependencies for the membership service.
type ServiceParams struct {
	Repo Repository
}

// Service answers who may raise panics on behalf of a group.
type Service struct {
	repo Repository
}

// NewService builds the membership service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo}, nil
}

// FindGroup returns the group with its registered location, or request-scoped
// not-found when it does not exist.
func (s *Service) FindGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	group, err := s.repo.FindGroupByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load group")
	}
	if group == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
	}
	return group, nil
}

// VerifiedMember authorizes the phone against the group's roster. The member
// must be active and phone-verified. A lock on the group itself does not
// revoke a verified member's right to raise a panic.
func (s *Service) VerifiedMember(ctx context.Context, groupID uuid.UUID, phone string) (*models.GroupMember, error) {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorizedRequest, "phone is required")
	}
	member, err := s.repo.FindActiveMember(ctx, groupID, trimmed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load group member")
	}
	if member == nil || member.PhoneVerifiedAt == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorizedRequest, "phone is not a verified member of the group")
	}
	return member, nil
}
