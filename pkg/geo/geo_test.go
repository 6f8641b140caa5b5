package geo

import (
	"math"
	"testing"
)

func TestValidateCoordinates(t *testing.T) {
	if err := ValidateCoordinates(-33.9249, 18.4241); err != nil {
		t.Fatalf("valid coordinates rejected: %v", err)
	}
	if err := ValidateCoordinates(91, 0); err == nil {
		t.Fatal("expected latitude out of range error")
	}
	if err := ValidateCoordinates(0, -181); err == nil {
		t.Fatal("expected longitude out of range error")
	}
	if err := ValidateCoordinates(math.NaN(), 0); err == nil {
		t.Fatal("expected NaN rejection")
	}
}

func TestHaversineKM(t *testing.T) {
	// Cape Town CBD to Stellenbosch, roughly 41 km apart.
	got := HaversineKM(-33.9249, 18.4241, -33.9321, 18.8602)
	if got < 39 || got > 42 {
		t.Fatalf("expected ~40 km, got %v", got)
	}

	if d := HaversineKM(-33.9249, 18.4241, -33.9249, 18.4241); d != 0 {
		t.Fatalf("identical points should be 0 km apart, got %v", d)
	}
}

func TestHaversineMMatchesKM(t *testing.T) {
	km := HaversineKM(-33.9249, 18.4241, -33.9258, 18.4241)
	m := HaversineM(-33.9249, 18.4241, -33.9258, 18.4241)
	if math.Abs(m-km*1000) > 1e-9 {
		t.Fatalf("meter variant diverged: %v vs %v", m, km*1000)
	}
	// ~0.0009 degrees of latitude is ~100m.
	if m < 90 || m > 110 {
		t.Fatalf("expected ~100 m, got %v", m)
	}
}

func TestEstimateETAMinutes(t *testing.T) {
	cases := []struct {
		distanceKM float64
		want       float64
	}{
		{0, 0},
		{2, 3},     // 2 km at 40 km/h
		{10, 15},   // boundary stays in the city tier
		{30, 30},   // 30 km at 60 km/h
		{80, 60},   // 80 km at 80 km/h
		{-5, 0},    // nonsense distance clamps to zero
	}
	for _, tc := range cases {
		if got := EstimateETAMinutes(tc.distanceKM); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("EstimateETAMinutes(%v) = %v, want %v", tc.distanceKM, got, tc.want)
		}
	}
}

func TestPointInPolygon(t *testing.T) {
	square := []Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 10},
		{Lat: 10, Lng: 10},
		{Lat: 10, Lng: 0},
	}

	if !PointInPolygon(Point{Lat: 5, Lng: 5}, square) {
		t.Fatal("center of square should be inside")
	}
	if PointInPolygon(Point{Lat: 15, Lng: 5}, square) {
		t.Fatal("point above square should be outside")
	}
	if PointInPolygon(Point{Lat: 5, Lng: -1}, square) {
		t.Fatal("point left of square should be outside")
	}
	if PointInPolygon(Point{Lat: 5, Lng: 5}, square[:2]) {
		t.Fatal("degenerate ring can contain nothing")
	}

	closed := append(append([]Point{}, square...), square[0])
	if !PointInPolygon(Point{Lat: 5, Lng: 5}, closed) {
		t.Fatal("explicitly closed ring should behave like the open one")
	}
}

func TestPointInPolygonConcave(t *testing.T) {
	// U-shape: the notch between the arms is outside.
	u := []Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 10},
		{Lat: 10, Lng: 10},
		{Lat: 10, Lng: 6},
		{Lat: 4, Lng: 6},
		{Lat: 4, Lng: 4},
		{Lat: 10, Lng: 4},
		{Lat: 10, Lng: 0},
	}
	if !PointInPolygon(Point{Lat: 2, Lng: 5}, u) {
		t.Fatal("base of the U should be inside")
	}
	if PointInPolygon(Point{Lat: 8, Lng: 5}, u) {
		t.Fatal("notch of the U should be outside")
	}
}

func TestCentroid(t *testing.T) {
	square := []Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 10},
		{Lat: 10, Lng: 10},
		{Lat: 10, Lng: 0},
	}
	c := Centroid(square)
	if c.Lat != 5 || c.Lng != 5 {
		t.Fatalf("expected centroid (5,5), got %+v", c)
	}
	if got := Centroid(nil); got != (Point{}) {
		t.Fatalf("empty ring centroid should be zero, got %+v", got)
	}
}
