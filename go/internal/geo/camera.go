package geo

import (
	"fmt"
	"math"

	"github.com/mcdev12/globepath/go/internal/models"
)

// Camera is a perspective camera looking at the globe.
type Camera struct {
	Position  Vec3
	Direction Vec3
	Up        Vec3
	FovY      float64 // radians
	Width     int     // viewport pixels
	Height    int
}

// DefaultCamera looks at the ellipsoid center from three equatorial radii
// away, above longitude 0 / latitude 0.
func DefaultCamera(width, height int) Camera {
	return Camera{
		Position:  Vec3{X: 3 * wgs84SemiMajor},
		Direction: Vec3{X: -1},
		Up:        Vec3{Z: 1},
		FovY:      math.Pi / 3,
		Width:     width,
		Height:    height,
	}
}

// Validate checks the camera can produce rays.
func (c Camera) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.FovY <= 0 || c.FovY >= math.Pi {
		return fmt.Errorf("fov must be in (0, pi), got %f", c.FovY)
	}
	if c.Direction.Cross(c.Up).Length() == 0 {
		return fmt.Errorf("direction and up must not be parallel")
	}
	return nil
}

// Ray returns the world-space ray through a screen position. Screen origin is
// the top-left corner.
func (c Camera) Ray(x, y float64) (origin, direction Vec3) {
	dir := c.Direction.Normalize()
	right := dir.Cross(c.Up).Normalize()
	up := right.Cross(dir)

	tanHalf := math.Tan(c.FovY / 2)
	aspect := float64(c.Width) / float64(c.Height)
	ndcX := 2*x/float64(c.Width) - 1
	ndcY := 1 - 2*y/float64(c.Height)

	direction = dir.
		Add(right.Scale(ndcX * tanHalf * aspect)).
		Add(up.Scale(ndcY * tanHalf)).
		Normalize()
	return c.Position, direction
}

// PickEllipsoid returns the surface point under a screen position.
func (c Camera) PickEllipsoid(x, y float64, e Ellipsoid) (models.Point, bool) {
	origin, direction := c.Ray(x, y)
	hit, ok := e.IntersectRay(origin, direction)
	if !ok {
		return models.Point{}, false
	}
	return hit.Point(), true
}

// ScreenPicker resolves screen positions to geographic coordinates.
type ScreenPicker struct {
	Camera    Camera
	Ellipsoid Ellipsoid
}

// NewScreenPicker builds a picker on WGS84.
func NewScreenPicker(camera Camera) *ScreenPicker {
	return &ScreenPicker{Camera: camera, Ellipsoid: WGS84}
}

// Pick reports false when the position misses the globe.
func (p *ScreenPicker) Pick(x, y float64) (models.Cartographic, bool) {
	hit, ok := p.Camera.PickEllipsoid(x, y, p.Ellipsoid)
	if !ok {
		return models.Cartographic{}, false
	}
	return p.Ellipsoid.CartesianToCartographic(hit)
}
