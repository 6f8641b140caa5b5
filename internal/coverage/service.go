package coverage

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/resqlink/resqlink-backend/pkg/db/models"
	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
	"github.com/resqlink/resqlink-backend/pkg/geo"
)

const defaultMaxAlternatives = 3

// ServiceParams groups dependencies for the coverage validator.
type ServiceParams struct {
	Repo            Repository
	MaxAlternatives int
}

// Service resolves which firm covers a location.
type Service struct {
	repo            Repository
	maxAlternatives int
}

// NewService builds the coverage validator.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	maxAlternatives := params.MaxAlternatives
	if maxAlternatives <= 0 {
		maxAlternatives = defaultMaxAlternatives
	}
	return &Service{repo: params.Repo, maxAlternatives: maxAlternatives}, nil
}

// AlternativeFirm is a candidate firm near an uncovered location, ranked by
// centroid distance to its closest coverage polygon.
type AlternativeFirm struct {
	FirmID     uuid.UUID `json:"firm_id"`
	Name       string    `json:"name"`
	DistanceKM float64   `json:"distance_km"`
}

// Result reports the coverage decision for a point.
type Result struct {
	Covered      bool              `json:"covered"`
	FirmID       *uuid.UUID        `json:"firm_id,omitempty"`
	FirmName     string            `json:"firm_name,omitempty"`
	AreaName     string            `json:"area_name,omitempty"`
	Alternatives []AlternativeFirm `json:"alternatives,omitempty"`
}

// Resolve checks the point against the polygons of the one firm that holds the
// group's subscription. Coverage by any other firm does not admit the request;
// those firms only show up as ranked alternatives on the rejection.
func (s *Service) Resolve(ctx context.Context, firmID uuid.UUID, point geo.Point) (*models.Firm, error) {
	if err := geo.ValidateCoordinates(point.Lat, point.Lng); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coordinates")
	}

	firms, err := s.repo.ListActiveFirms(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load firms")
	}

	var subscribed *models.Firm
	others := make([]models.Firm, 0, len(firms))
	for i := range firms {
		if firms[i].ID == firmID {
			subscribed = &firms[i]
			continue
		}
		others = append(others, firms[i])
	}

	if subscribed != nil {
		for _, area := range subscribed.CoverageAreas {
			if geo.PointInPolygon(point, area.Boundary) {
				return subscribed, nil
			}
		}
	}

	return nil, pkgerrors.New(pkgerrors.CodeLocationNotCovered, "location is outside the subscribed firm's coverage").
		WithDetails(map[string]any{
			"firm_id":      firmID.String(),
			"alternatives": s.rankAlternatives(point, others),
		})
}

// Check reports which active firm, if any, covers the point. This is the
// informational pre-check; admissibility at submission time is judged against
// the subscribed firm alone via Resolve.
func (s *Service) Check(ctx context.Context, point geo.Point) (*Result, error) {
	if err := geo.ValidateCoordinates(point.Lat, point.Lng); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coordinates")
	}

	firms, err := s.repo.ListActiveFirms(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load firms")
	}

	for i := range firms {
		firm := &firms[i]
		for _, area := range firm.CoverageAreas {
			if geo.PointInPolygon(point, area.Boundary) {
				return &Result{
					Covered:  true,
					FirmID:   &firm.ID,
					FirmName: firm.Name,
					AreaName: area.Name,
				}, nil
			}
		}
	}

	return &Result{
		Covered:      false,
		Alternatives: s.rankAlternatives(point, firms),
	}, nil
}

// rankAlternatives orders firms by the centroid distance of their nearest
// polygon, ascending, capped.
func (s *Service) rankAlternatives(point geo.Point, firms []models.Firm) []AlternativeFirm {
	alternatives := make([]AlternativeFirm, 0, len(firms))
	for i := range firms {
		firm := &firms[i]
		best := -1.0
		for _, area := range firm.CoverageAreas {
			if len(area.Boundary) == 0 {
				continue
			}
			distance := geo.Distance(point, geo.Centroid(area.Boundary))
			if best < 0 || distance < best {
				best = distance
			}
		}
		if best < 0 {
			continue
		}
		alternatives = append(alternatives, AlternativeFirm{
			FirmID:     firm.ID,
			Name:       firm.Name,
			DistanceKM: best,
		})
	}

	sort.SliceStable(alternatives, func(i, j int) bool {
		return alternatives[i].DistanceKM < alternatives[j].DistanceKM
	})
	if len(alternatives) > s.maxAlternatives {
		alternatives = alternatives[:s.maxAlternatives]
	}
	return alternatives
}
