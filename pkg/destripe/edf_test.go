package destripe

import (
	"errors"
	"math"
	"testing"

	"modisdestripe/internal/models"
)

// newBand builds a band whose pixel values depend on the virtual detector of
// each line and the pixel position.
func newBand(geom Geometry, value func(v, x int) int32) *models.Image {
	img := models.NewImage(geom.Pixels, geom.Lines())
	nDet := geom.Detectors()
	for r := 0; r < geom.Lines(); r++ {
		v := r % nDet
		row := img.Row(r)
		for x := range row {
			row[x] = value(v, x)
		}
	}
	return img
}

func TestBuildEDFValues(t *testing.T) {
	img := models.NewImage(4, 2)
	copy(img.Row(0), []int32{0, 0, 1, 3})
	copy(img.Row(1), []int32{-1, -1, 40000, 9})

	edf := make(EDF, models.CountLevels)
	n, err := BuildEDF(edf, img, []int{0})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n != 4 {
		t.Errorf("Expected 4 valid samples, got %d", n)
	}

	want := map[int]float64{0: 0.5, 1: 0.75, 2: 0.75, 3: 1, 100: 1, models.MaxCount: 1}
	for c, w := range want {
		if math.Abs(edf[c]-w) > 1e-12 {
			t.Errorf("EDF[%d]: expected %g, got %g", c, w, edf[c])
		}
	}
}

func TestBuildEDFSkipsInvalid(t *testing.T) {
	img := models.NewImage(3, 1)
	copy(img.Row(0), []int32{-1, 5, 32768})

	edf := make(EDF, models.CountLevels)
	n, err := BuildEDF(edf, img, []int{0})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 valid sample, got %d", n)
	}
	if edf[4] != 0 || edf[5] != 1 {
		t.Errorf("Expected step at 5, got EDF[4]=%g EDF[5]=%g", edf[4], edf[5])
	}
}

func TestBuildEDFDegenerate(t *testing.T) {
	img := models.NewImage(2, 1)
	img.Fill(-1)
	edf := make(EDF, models.CountLevels)
	if _, err := BuildEDF(edf, img, []int{0}); !errors.Is(err, ErrDegenerateDetector) {
		t.Errorf("Expected ErrDegenerateDetector, got %v", err)
	}
}

// TestEDFSetMonotonic verifies every detector distribution is nondecreasing and ends at 1
func TestEDFSetMonotonic(t *testing.T) {
	geom := Geometry{Pixels: 50, Scans: 5, StripSize: 10}
	img := newBand(geom, func(v, x int) int32 {
		return int32((v*37 + x*101) % 3000)
	})

	set, err := BuildEDFSet(img, geom, nil, 4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for v := 0; v < geom.Detectors(); v++ {
		edf := set.Detector(v)
		for c := 1; c < len(edf); c++ {
			if edf[c] < edf[c-1] {
				t.Fatalf("Detector %d: EDF decreases at %d (%g < %g)", v, c, edf[c], edf[c-1])
			}
		}
		if math.Abs(edf[models.MaxCount]-1) > 1e-12 {
			t.Errorf("Detector %d: expected EDF[%d]=1, got %g", v, models.MaxCount, edf[models.MaxCount])
		}
		if set.Valid[v] == 0 {
			t.Errorf("Detector %d: expected valid samples", v)
		}
	}
}

// TestEDFSetConstantImage verifies a uniform image gives a step function at its value
func TestEDFSetConstantImage(t *testing.T) {
	geom := Geometry{Pixels: 3, Scans: 2, StripSize: 10}
	const value = 1234
	img := newBand(geom, func(v, x int) int32 { return value })

	set, err := BuildEDFSet(img, geom, nil, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for v := 0; v < geom.Detectors(); v++ {
		edf := set.Detector(v)
		if edf[value-1] != 0 {
			t.Errorf("Detector %d: expected EDF[%d]=0, got %g", v, value-1, edf[value-1])
		}
		if edf[value] != 1 {
			t.Errorf("Detector %d: expected EDF[%d]=1, got %g", v, value, edf[value])
		}
	}
}

func TestEDFSetDegenerateDetector(t *testing.T) {
	geom := Geometry{Pixels: 4, Scans: 4, StripSize: 2}
	img := newBand(geom, func(v, x int) int32 {
		if v == 3 {
			return -1
		}
		return 100
	})

	_, err := BuildEDFSet(img, geom, nil, 2)
	if !errors.Is(err, ErrDegenerateDetector) {
		t.Fatalf("Expected ErrDegenerateDetector, got %v", err)
	}

	// Physical detector 1 owns virtual detector 3; flagging it bad tolerates the gap
	set, err := BuildEDFSet(img, geom, []bool{false, true}, 2)
	if err != nil {
		t.Fatalf("Unexpected error with detector flagged bad: %v", err)
	}
	if !set.Empty(3) {
		t.Error("Expected detector 3 to be empty")
	}
	if set.Empty(1) {
		t.Error("Expected detector 1 to hold a distribution")
	}
}
