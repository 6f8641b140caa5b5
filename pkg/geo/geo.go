package geo

import (
	"fmt"
	"math"
)

// earthRadiusKM is the mean Earth radius used for great-circle math.
const earthRadiusKM = 6371.0

// Point is a WGS84 latitude/longitude pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ValidateCoordinates checks the pair is a representable WGS84 position.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return fmt.Errorf("coordinates must be numeric")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", lng)
	}
	return nil
}

// HaversineKM returns the great-circle distance between two points in kilometers.
func HaversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKM * c
}

// HaversineM returns the great-circle distance between two points in meters.
func HaversineM(lat1, lng1, lat2, lng2 float64) float64 {
	return HaversineKM(lat1, lng1, lat2, lng2) * 1000
}

// Distance returns the great-circle distance between two points in kilometers.
func Distance(a, b Point) float64 {
	return HaversineKM(a.Lat, a.Lng, b.Lat, b.Lng)
}

// EstimateETAMinutes converts straight-line distance into a coarse travel
// estimate using tiered average speeds. Short hops assume city traffic,
// longer legs assume open roads.
func EstimateETAMinutes(distanceKM float64) float64 {
	if distanceKM <= 0 {
		return 0
	}
	speedKMH := 80.0
	switch {
	case distanceKM <= 10:
		speedKMH = 40
	case distanceKM <= 50:
		speedKMH = 60
	}
	return distanceKM / speedKMH * 60
}

// PointInPolygon reports whether p lies inside the polygon ring using the
// ray-casting method. The ring may be open or explicitly closed; fewer than
// three vertices never contains anything. Points exactly on a boundary edge
// follow the crossing parity of the cast ray.
func PointInPolygon(p Point, ring []Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	// Drop an explicit closing vertex so each edge is counted once.
	if ring[0] == ring[n-1] {
		n--
		if n < 3 {
			return false
		}
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi, vj := ring[i], ring[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) {
			crossLng := (vj.Lng-vi.Lng)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lng
			if p.Lng < crossLng {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Centroid returns the arithmetic mean of the ring's vertices. Good enough
// for ranking alternative firms; not an area-weighted centroid.
func Centroid(ring []Point) Point {
	if len(ring) == 0 {
		return Point{}
	}
	n := len(ring)
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}
	var lat, lng float64
	for i := 0; i < n; i++ {
		lat += ring[i].Lat
		lng += ring[i].Lng
	}
	return Point{Lat: lat / float64(n), Lng: lng / float64(n)}
}
