package models

// Point is a Cartesian coordinate (meters, Earth-fixed frame) projected from a
// picked position on the globe.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Cartographic is a geographic position. Longitude and latitude are radians,
// height is meters above the ellipsoid.
type Cartographic struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Height    float64 `json:"height"`
}

// Path is an ordered list of points in click order.
type Path []Point

// Clone returns a copy that does not share the backing array.
func (p Path) Clone() Path {
	if p == nil {
		return Path{}
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}
