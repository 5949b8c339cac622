// Package geo resolves screen picks against the globe and converts between
// geographic and Cartesian coordinates.
package geo

import (
	"math"

	"github.com/mcdev12/globepath/go/internal/models"
)

const (
	wgs84SemiMajor = 6378137.0
	wgs84SemiMinor = 6356752.3142451793

	maxGeodeticIterations = 10
	geodeticTolerance     = 1e-12
)

// Ellipsoid is an oblate spheroid described by its equatorial and polar radii.
type Ellipsoid struct {
	SemiMajor float64
	SemiMinor float64
}

// WGS84 is the reference ellipsoid the globe is rendered on.
var WGS84 = Ellipsoid{SemiMajor: wgs84SemiMajor, SemiMinor: wgs84SemiMinor}

func (e Ellipsoid) eccentricitySquared() float64 {
	return 1 - (e.SemiMinor*e.SemiMinor)/(e.SemiMajor*e.SemiMajor)
}

// CartographicToCartesian projects a geographic position onto the Earth-fixed
// Cartesian frame.
func (e Ellipsoid) CartographicToCartesian(c models.Cartographic) models.Point {
	cosLat := math.Cos(c.Latitude)
	n := Vec3{
		X: cosLat * math.Cos(c.Longitude),
		Y: cosLat * math.Sin(c.Longitude),
		Z: math.Sin(c.Latitude),
	}.Normalize()

	a2 := e.SemiMajor * e.SemiMajor
	b2 := e.SemiMinor * e.SemiMinor
	k := Vec3{X: a2 * n.X, Y: a2 * n.Y, Z: b2 * n.Z}
	gamma := math.Sqrt(n.Dot(k))
	k = k.Scale(1 / gamma)

	return k.Add(n.Scale(c.Height)).Point()
}

// CartesianToCartographic converts an Earth-fixed position back to longitude,
// latitude and height. It reports false for the ellipsoid center, which has no
// geodetic position.
func (e Ellipsoid) CartesianToCartographic(p models.Point) (models.Cartographic, bool) {
	if p.X == 0 && p.Y == 0 && p.Z == 0 {
		return models.Cartographic{}, false
	}

	e2 := e.eccentricitySquared()
	a := e.SemiMajor
	rho := math.Hypot(p.X, p.Y)
	lon := math.Atan2(p.Y, p.X)

	lat := math.Atan2(p.Z, rho*(1-e2))
	var height float64
	for i := 0; i < maxGeodeticIterations; i++ {
		sinLat := math.Sin(lat)
		n := a / math.Sqrt(1-e2*sinLat*sinLat)
		if cosLat := math.Cos(lat); math.Abs(cosLat) > 1e-10 {
			height = rho/cosLat - n
		} else {
			height = math.Abs(p.Z) - e.SemiMinor
		}
		next := math.Atan2(p.Z, rho*(1-e2*n/(n+height)))
		if math.Abs(next-lat) < geodeticTolerance {
			lat = next
			break
		}
		lat = next
	}

	return models.Cartographic{Longitude: lon, Latitude: lat, Height: height}, true
}

// IntersectRay returns the nearest point where the ray meets the ellipsoid
// surface in front of the origin.
func (e Ellipsoid) IntersectRay(origin, direction Vec3) (Vec3, bool) {
	inv := Vec3{X: 1 / e.SemiMajor, Y: 1 / e.SemiMajor, Z: 1 / e.SemiMinor}
	o := origin.Mul(inv)
	d := direction.Mul(inv)

	qa := d.Dot(d)
	qb := 2 * o.Dot(d)
	qc := o.Dot(o) - 1
	if qa == 0 {
		return Vec3{}, false
	}

	disc := qb*qb - 4*qa*qc
	if disc < 0 {
		return Vec3{}, false
	}

	root := math.Sqrt(disc)
	near := (-qb - root) / (2 * qa)
	far := (-qb + root) / (2 * qa)
	if far < 0 {
		return Vec3{}, false
	}

	t := near
	if t < 0 {
		t = far
	}
	return origin.Add(direction.Scale(t)), true
}
