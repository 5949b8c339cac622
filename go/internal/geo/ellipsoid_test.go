package geo

import (
	"math"
	"testing"

	"github.com/mcdev12/globepath/go/internal/models"
)

func TestCartographicRoundTrip(t *testing.T) {
	tests := []models.Cartographic{
		{Longitude: 0, Latitude: 0, Height: 0},
		{Longitude: 0.5, Latitude: 0.7, Height: 1200},
		{Longitude: -2.1, Latitude: -0.9, Height: 35},
		{Longitude: 3.0, Latitude: 1.5, Height: 0},
		{Longitude: 0, Latitude: math.Pi / 2, Height: 10},
	}

	for _, tt := range tests {
		p := WGS84.CartographicToCartesian(tt)
		got, ok := WGS84.CartesianToCartographic(p)
		if !ok {
			t.Fatalf("CartesianToCartographic(%v) reported no position", p)
		}
		if math.Abs(got.Latitude-tt.Latitude) > 1e-9 {
			t.Errorf("latitude = %f, want %f", got.Latitude, tt.Latitude)
		}
		if tt.Latitude != math.Pi/2 && math.Abs(got.Longitude-tt.Longitude) > 1e-9 {
			t.Errorf("longitude = %f, want %f", got.Longitude, tt.Longitude)
		}
		if math.Abs(got.Height-tt.Height) > 1e-3 {
			t.Errorf("height = %f, want %f", got.Height, tt.Height)
		}
	}
}

func TestCartographicToCartesianEquator(t *testing.T) {
	p := WGS84.CartographicToCartesian(models.Cartographic{})
	if math.Abs(p.X-wgs84SemiMajor) > 1e-6 || math.Abs(p.Y) > 1e-6 || math.Abs(p.Z) > 1e-6 {
		t.Errorf("equator/prime meridian = %+v, want (%f, 0, 0)", p, wgs84SemiMajor)
	}

	pole := WGS84.CartographicToCartesian(models.Cartographic{Latitude: math.Pi / 2})
	if math.Abs(pole.Z-wgs84SemiMinor) > 1e-6 {
		t.Errorf("north pole z = %f, want %f", pole.Z, wgs84SemiMinor)
	}
}

func TestCartesianToCartographicCenter(t *testing.T) {
	if _, ok := WGS84.CartesianToCartographic(models.Point{}); ok {
		t.Error("ellipsoid center should not resolve to a position")
	}
}

func TestIntersectRay(t *testing.T) {
	origin := Vec3{X: 2 * wgs84SemiMajor}

	hit, ok := WGS84.IntersectRay(origin, Vec3{X: -1})
	if !ok {
		t.Fatal("ray toward the center should hit")
	}
	if math.Abs(hit.X-wgs84SemiMajor) > 1e-6 {
		t.Errorf("hit x = %f, want %f", hit.X, wgs84SemiMajor)
	}

	if _, ok := WGS84.IntersectRay(origin, Vec3{X: 1}); ok {
		t.Error("ray pointing away should miss")
	}
	if _, ok := WGS84.IntersectRay(origin, Vec3{Z: 1}); ok {
		t.Error("ray passing beside the globe should miss")
	}
}
