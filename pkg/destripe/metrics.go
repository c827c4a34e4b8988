package destripe

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"modisdestripe/internal/models"
)

// Metrics summarises how much striping a correction removed.
type Metrics struct {
	// StripingBefore and StripingAfter are the standard deviation of the
	// per-detector mean counts; lower means less detector-to-detector banding
	StripingBefore float64
	StripingAfter  float64

	// RMSE is the root mean square change over pixels valid in both images
	RMSE float64

	// ChangedPixels counts pixels whose value differs between the images
	ChangedPixels int
}

// Reduction returns the fraction of striping removed, in [0,1] when the
// correction helped. Images without measurable striping report 0.
func (m Metrics) Reduction() float64 {
	if m.StripingBefore == 0 {
		return 0
	}
	return 1 - m.StripingAfter/m.StripingBefore
}

// Assess compares a band before and after correction.
func Assess(before, after *models.Image, geom Geometry) Metrics {
	var m Metrics
	m.StripingBefore = stripingIndex(before, geom)
	m.StripingAfter = stripingIndex(after, geom)

	var sse float64
	n := 0
	for i, a := range before.Data {
		b := after.Data[i]
		if a != b {
			m.ChangedPixels++
		}
		if models.Valid(a) && models.Valid(b) {
			d := float64(b - a)
			sse += d * d
			n++
		}
	}
	if n > 0 {
		m.RMSE = math.Sqrt(sse / float64(n))
	}
	return m
}

// stripingIndex is the spread of the detector means. Detectors without valid
// samples do not contribute.
func stripingIndex(img *models.Image, geom Geometry) float64 {
	means := make([]float64, 0, geom.Detectors())
	samples := make([]float64, 0, geom.Pixels*(geom.Scans/2+1))
	for v := 0; v < geom.Detectors(); v++ {
		rows, err := geom.Rows(v)
		if err != nil {
			continue
		}
		samples = samples[:0]
		for _, r := range rows {
			for _, c := range img.Row(r) {
				if models.Valid(c) {
					samples = append(samples, float64(c))
				}
			}
		}
		if len(samples) == 0 {
			continue
		}
		means = append(means, stat.Mean(samples, nil))
	}
	if len(means) < 2 {
		return 0
	}
	return stat.StdDev(means, nil)
}
