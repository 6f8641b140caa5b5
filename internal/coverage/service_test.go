package coverage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/resqlink/resqlink-backend/pkg/db/models"
	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
	"github.com/resqlink/resqlink-backend/pkg/geo"
)

type fakeRepo struct {
	listActiveFirms func(ctx context.Context) ([]models.Firm, error)
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) ListActiveFirms(ctx context.Context) ([]models.Firm, error) {
	return f.listActiveFirms(ctx)
}

// squareAround returns a closed square ring of the given half-width in degrees.
func squareAround(center geo.Point, half float64) []geo.Point {
	return []geo.Point{
		{Lat: center.Lat - half, Lng: center.Lng - half},
		{Lat: center.Lat - half, Lng: center.Lng + half},
		{Lat: center.Lat + half, Lng: center.Lng + half},
		{Lat: center.Lat + half, Lng: center.Lng - half},
		{Lat: center.Lat - half, Lng: center.Lng - half},
	}
}

func TestResolveAcceptsSubscribedFirmCoverage(t *testing.T) {
	point := geo.Point{Lat: -33.9249, Lng: 18.4241}
	subscribed := models.Firm{ID: uuid.New(), Name: "Metro Armed Response", Priority: 20}
	subscribed.CoverageAreas = []models.CoverageArea{{FirmID: subscribed.ID, Name: "City Bowl", Boundary: squareAround(point, 0.1)}}
	other := models.Firm{ID: uuid.New(), Name: "Coastal Watch", Priority: 10}
	other.CoverageAreas = []models.CoverageArea{{FirmID: other.ID, Name: "Atlantic Seaboard", Boundary: squareAround(point, 0.2)}}

	repo := &fakeRepo{
		listActiveFirms: func(ctx context.Context) ([]models.Firm, error) {
			// Repo returns firms ordered by priority; the other firm sorts
			// first and also covers the point, but the subscription decides.
			return []models.Firm{other, subscribed}, nil
		},
	}
	svc, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	firm, err := svc.Resolve(context.Background(), subscribed.ID, point)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if firm.ID != subscribed.ID {
		t.Fatalf("expected the subscribed firm, got %s", firm.Name)
	}
}

func TestResolveRejectsCoverageByForeignFirm(t *testing.T) {
	point := geo.Point{Lat: -33.9249, Lng: 18.4241}
	subscribed := models.Firm{ID: uuid.New(), Name: "Overberg Response", Priority: 30}
	subscribed.CoverageAreas = []models.CoverageArea{{FirmID: subscribed.ID, Boundary: squareAround(geo.Point{Lat: -34.4, Lng: 19.6}, 0.02)}}
	covering := models.Firm{ID: uuid.New(), Name: "Metro Armed Response", Priority: 10}
	covering.CoverageAreas = []models.CoverageArea{{FirmID: covering.ID, Name: "City Bowl", Boundary: squareAround(point, 0.1)}}

	repo := &fakeRepo{
		listActiveFirms: func(ctx context.Context) ([]models.Firm, error) {
			return []models.Firm{covering, subscribed}, nil
		},
	}
	svc, err := NewService(ServiceParams{Repo: repo, MaxAlternatives: 3})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	// Another firm covers the point, but the group does not pay that firm.
	_, err = svc.Resolve(context.Background(), subscribed.ID, point)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeLocationNotCovered {
		t.Fatalf("expected location not covered error, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	alternatives, ok := details["alternatives"].([]AlternativeFirm)
	if !ok {
		t.Fatalf("expected alternatives slice, got %T", details["alternatives"])
	}
	if len(alternatives) != 1 || alternatives[0].FirmID != covering.ID {
		t.Fatalf("the covering firm belongs in alternatives, got %+v", alternatives)
	}
}

func TestResolveUncoveredCarriesRankedAlternatives(t *testing.T) {
	point := geo.Point{Lat: -34.5, Lng: 19.5}
	subscribed := models.Firm{ID: uuid.New(), Name: "Karoo Medical", Priority: 40}
	subscribed.CoverageAreas = []models.CoverageArea{{FirmID: subscribed.ID, Boundary: squareAround(geo.Point{Lat: -32.2, Lng: 22.5}, 0.02)}}
	near := models.Firm{ID: uuid.New(), Name: "Overberg Response", Priority: 30}
	near.CoverageAreas = []models.CoverageArea{{FirmID: near.ID, Boundary: squareAround(geo.Point{Lat: -34.4, Lng: 19.6}, 0.02)}}
	far := models.Firm{ID: uuid.New(), Name: "Metro Armed Response", Priority: 10}
	far.CoverageAreas = []models.CoverageArea{{FirmID: far.ID, Boundary: squareAround(geo.Point{Lat: -33.9, Lng: 18.4}, 0.02)}}

	repo := &fakeRepo{
		listActiveFirms: func(ctx context.Context) ([]models.Firm, error) {
			return []models.Firm{far, near, subscribed}, nil
		},
	}
	svc, err := NewService(ServiceParams{Repo: repo, MaxAlternatives: 3})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Resolve(context.Background(), subscribed.ID, point)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeLocationNotCovered {
		t.Fatalf("expected location not covered error, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	alternatives, ok := details["alternatives"].([]AlternativeFirm)
	if !ok {
		t.Fatalf("expected alternatives slice, got %T", details["alternatives"])
	}
	if len(alternatives) != 2 {
		t.Fatalf("expected 2 alternatives, got %d", len(alternatives))
	}
	if alternatives[0].FirmID != near.ID {
		t.Fatalf("expected nearest firm first, got %s", alternatives[0].Name)
	}
	if alternatives[0].DistanceKM >= alternatives[1].DistanceKM {
		t.Fatalf("alternatives not sorted ascending: %+v", alternatives)
	}
}

func TestCheckCapsAlternatives(t *testing.T) {
	point := geo.Point{Lat: -30, Lng: 25}
	firms := make([]models.Firm, 0, 5)
	for i := 0; i < 5; i++ {
		firm := models.Firm{ID: uuid.New(), Name: "Firm", Priority: i}
		firm.CoverageAreas = []models.CoverageArea{{
			FirmID:   firm.ID,
			Boundary: squareAround(geo.Point{Lat: -33 - float64(i), Lng: 18}, 0.02),
		}}
		firms = append(firms, firm)
	}
	repo := &fakeRepo{
		listActiveFirms: func(ctx context.Context) ([]models.Firm, error) {
			return firms, nil
		},
	}
	svc, err := NewService(ServiceParams{Repo: repo, MaxAlternatives: 3})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.Check(context.Background(), point)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Covered {
		t.Fatal("expected uncovered result")
	}
	if len(result.Alternatives) != 3 {
		t.Fatalf("expected capped alternatives, got %d", len(result.Alternatives))
	}
}

func TestCheckCoveredResult(t *testing.T) {
	point := geo.Point{Lat: -33.9249, Lng: 18.4241}
	firm := models.Firm{ID: uuid.New(), Name: "Metro Armed Response", Priority: 10}
	firm.CoverageAreas = []models.CoverageArea{{FirmID: firm.ID, Name: "City Bowl", Boundary: squareAround(point, 0.1)}}

	repo := &fakeRepo{
		listActiveFirms: func(ctx context.Context) ([]models.Firm, error) {
			return []models.Firm{firm}, nil
		},
	}
	svc, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.Check(context.Background(), point)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Covered || result.FirmID == nil || *result.FirmID != firm.ID {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.AreaName != "City Bowl" {
		t.Fatalf("unexpected area %q", result.AreaName)
	}
}

func TestCheckRejectsInvalidCoordinates(t *testing.T) {
	svc, err := NewService(ServiceParams{Repo: &fakeRepo{}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Check(context.Background(), geo.Point{Lat: 91, Lng: 0})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
