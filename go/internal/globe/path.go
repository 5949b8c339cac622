package globe

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/mcdev12/globepath/go/internal/events"
	"github.com/mcdev12/globepath/go/internal/geo"
	"github.com/mcdev12/globepath/go/internal/models"
	geojson "github.com/paulmach/go.geojson"
)

// Picker resolves a screen position to a position on the globe. ok is false
// when the pick misses.
type Picker interface {
	Pick(x, y float64) (models.Cartographic, bool)
}

// Entity is the marker drawn for one point of the path
type Entity struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Position    models.Point `json:"position"`
}

// PathAccumulator holds the path being drawn, in click order
type PathAccumulator struct {
	picker    Picker
	ellipsoid geo.Ellipsoid

	mu   sync.RWMutex
	path models.Path
	// positions mirrors path in geographic form for export.
	positions []models.Cartographic
}

// NewPathAccumulator creates an empty accumulator projecting onto WGS84.
func NewPathAccumulator(picker Picker) *PathAccumulator {
	return &PathAccumulator{
		picker:    picker,
		ellipsoid: geo.WGS84,
	}
}

// AddPoint resolves the pick at (x, y) and appends the resulting point. A
// miss leaves the path untouched and reports false.
func (a *PathAccumulator) AddPoint(x, y float64) bool {
	position, ok := a.picker.Pick(x, y)
	if !ok {
		return false
	}
	a.AddPosition(position)
	return true
}

// AddPosition appends an already resolved position.
func (a *PathAccumulator) AddPosition(position models.Cartographic) models.Point {
	point := a.ellipsoid.CartographicToCartesian(position)

	a.mu.Lock()
	a.path = append(a.path, point)
	a.positions = append(a.positions, position)
	a.mu.Unlock()

	return point
}

// Reset empties the path.
func (a *PathAccumulator) Reset() {
	a.mu.Lock()
	a.path = nil
	a.positions = nil
	a.mu.Unlock()
}

// Points returns a copy of the current path.
func (a *PathAccumulator) Points() models.Path {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.path.Clone()
}

func (a *PathAccumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.path)
}

// Entities returns one numbered marker per point.
func (a *PathAccumulator) Entities() []Entity {
	points := a.Points()
	entities := make([]Entity, 0, len(points))
	for i, p := range points {
		raw, _ := json.Marshal(p)
		entities = append(entities, Entity{
			Name:        fmt.Sprintf("Position Number %d", i+1),
			Description: "Position: " + string(raw),
			Position:    p,
		})
	}
	return entities
}

// GeoJSON exports the path as a LineString feature (once there are two
// points) followed by one Point feature per position, in degrees.
func (a *PathAccumulator) GeoJSON() *geojson.FeatureCollection {
	a.mu.RLock()
	positions := make([]models.Cartographic, len(a.positions))
	copy(positions, a.positions)
	a.mu.RUnlock()

	fc := geojson.NewFeatureCollection()

	coords := make([][]float64, 0, len(positions))
	for _, p := range positions {
		coords = append(coords, []float64{degrees(p.Longitude), degrees(p.Latitude), p.Height})
	}

	if len(coords) >= 2 {
		line := geojson.NewLineStringFeature(coords)
		line.SetProperty("name", "path")
		line.SetProperty("points", len(coords))
		fc.AddFeature(line)
	}

	for i, c := range coords {
		point := geojson.NewPointFeature(c)
		point.SetProperty("name", fmt.Sprintf("Position Number %d", i+1))
		point.SetProperty("index", i)
		fc.AddFeature(point)
	}

	return fc
}

func degrees(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Emitter sends a frame over the live connection without waiting for it to
// be delivered.
type Emitter interface {
	Emit(frame []byte) error
}

// Submit sends the whole path once when state is Online and the path is not
// empty. The path is kept afterwards. Nothing is sent when either condition
// fails.
func (a *PathAccumulator) Submit(state models.ConnectionState, emitter Emitter) error {
	if state != models.ConnectionStateOnline {
		return ErrNotOnline
	}
	points := a.Points()
	if len(points) == 0 {
		return ErrEmptyPath
	}

	frame, err := events.SavePathFrame(points)
	if err != nil {
		return err
	}
	return emitter.Emit(frame)
}
