package destripe

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"modisdestripe/internal/models"
	"modisdestripe/pkg/interpolation"
)

// LUT maps the raw counts of each virtual detector onto the counts the
// reference detector would have produced at the same quantile. The table of
// the reference detector itself is never populated: it keeps its data.
type LUT struct {
	values    []int32
	detectors int
	ref       int

	// skip marks detectors without a distribution; they keep their data
	skip []bool
}

// Reference returns the virtual index of the reference detector.
func (l *LUT) Reference() int {
	return l.ref
}

// IsIdentity reports whether detector v is left unchanged by the table.
func (l *LUT) IsIdentity(v int) bool {
	return v == l.ref || l.skip[v]
}

// Detector returns the table of virtual detector v as a view into the LUT's
// buffer.
func (l *LUT) Detector(v int) []int32 {
	if v < 0 || v >= l.detectors {
		panic(fmt.Sprintf("destripe: detector %d outside LUT of %d", v, l.detectors))
	}
	start := v * models.CountLevels
	end := start + models.CountLevels
	return l.values[start:end:end]
}

// Map returns the corrected count for a raw count of detector v. Counts of
// the reference detector and invalid counts are returned unchanged.
func (l *LUT) Map(v int, count int32) int32 {
	if l.IsIdentity(v) || !models.Valid(count) {
		return count
	}
	return l.Detector(v)[count]
}

// BuildLUT histogram-matches every non-reference detector of edfs onto the
// reference detector ref. Empty detectors are skipped.
func BuildLUT(edfs *EDFSet, ref int, workers int) (*LUT, error) {
	n := edfs.Detectors()
	if ref < 0 || ref >= n {
		return nil, fmt.Errorf("%w: reference detector %d outside [0,%d)", ErrConfiguration, ref, n)
	}
	if edfs.Empty(ref) {
		return nil, fmt.Errorf("reference detector %d: %w", ref, ErrDegenerateDetector)
	}

	// The reference distribution, keyed by probability level, inverts a
	// quantile back into a reference count.
	refEDF := edfs.Detector(ref)
	counts := make([]float64, models.CountLevels)
	for c := range counts {
		counts[c] = float64(c)
	}
	inverse, err := interpolation.NewLinear(refEDF, counts)
	if err != nil {
		return nil, fmt.Errorf("%w: reference detector %d distribution: %v", ErrDegenerateDetector, ref, err)
	}

	lut := &LUT{
		values:    make([]int32, n*models.CountLevels),
		detectors: n,
		ref:       ref,
		skip:      make([]bool, n),
	}
	for v := 0; v < n; v++ {
		lut.skip[v] = edfs.Empty(v)
	}

	var g errgroup.Group
	g.SetLimit(workerLimit(workers))
	for v := 0; v < n; v++ {
		if lut.IsIdentity(v) {
			continue
		}
		v := v
		g.Go(func() error {
			matchDetector(lut.Detector(v), edfs.Detector(v), inverse)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lut, nil
}

// matchDetector fills one detector's table by looking up its quantile at
// every count in the reference inverse distribution.
func matchDetector(dst []int32, edf EDF, inverse *interpolation.Linear) {
	for c, q := range edf {
		dst[c] = roundCount(inverse.Predict(q))
	}
}

// roundCount rounds half up and keeps the result inside the valid range.
func roundCount(y float64) int32 {
	r := math.Floor(y + 0.5)
	switch {
	case math.IsNaN(r) || r < 0:
		return 0
	case r > models.MaxCount:
		return models.MaxCount
	}
	return int32(r)
}
