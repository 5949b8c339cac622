package geo

import (
	"math"
	"testing"
)

func TestScreenPickerCenterHitsOrigin(t *testing.T) {
	picker := NewScreenPicker(DefaultCamera(800, 600))

	c, ok := picker.Pick(400, 300)
	if !ok {
		t.Fatal("center of the viewport should hit the globe")
	}
	if math.Abs(c.Longitude) > 1e-9 || math.Abs(c.Latitude) > 1e-9 {
		t.Errorf("center pick = (%f, %f), want (0, 0)", c.Longitude, c.Latitude)
	}
	if math.Abs(c.Height) > 1e-3 {
		t.Errorf("center pick height = %f, want 0", c.Height)
	}
}

func TestScreenPickerCornerMisses(t *testing.T) {
	picker := NewScreenPicker(DefaultCamera(800, 600))

	if _, ok := picker.Pick(0, 0); ok {
		t.Error("top-left corner should miss the globe")
	}
}

func TestScreenPickerOrientation(t *testing.T) {
	picker := NewScreenPicker(DefaultCamera(800, 600))

	up, ok := picker.Pick(400, 200)
	if !ok {
		t.Fatal("pick above center should hit")
	}
	if up.Latitude <= 0 {
		t.Errorf("pick above center latitude = %f, want > 0", up.Latitude)
	}

	right, ok := picker.Pick(500, 300)
	if !ok {
		t.Fatal("pick right of center should hit")
	}
	if right.Longitude <= 0 {
		t.Errorf("pick right of center longitude = %f, want > 0", right.Longitude)
	}
}

func TestCameraValidate(t *testing.T) {
	if err := DefaultCamera(800, 600).Validate(); err != nil {
		t.Errorf("default camera invalid: %v", err)
	}

	bad := DefaultCamera(0, 600)
	if err := bad.Validate(); err == nil {
		t.Error("zero-width viewport should be rejected")
	}

	parallel := DefaultCamera(800, 600)
	parallel.Up = parallel.Direction
	if err := parallel.Validate(); err == nil {
		t.Error("parallel up and direction should be rejected")
	}
}
