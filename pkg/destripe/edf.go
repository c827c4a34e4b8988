package destripe

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"modisdestripe/internal/models"
)

// EDF is the empirical cumulative distribution of one detector: entry c is
// the fraction of valid samples with a count of at most c.
type EDF []float64

// EDFSet holds the distributions of all virtual detectors in one flattened
// buffer of Detectors() x CountLevels levels.
type EDFSet struct {
	levels    []float64
	detectors int

	// Valid holds the number of valid samples behind each distribution
	Valid []int
}

// NewEDFSet allocates an empty set for n detectors.
func NewEDFSet(n int) *EDFSet {
	return &EDFSet{
		levels:    make([]float64, n*models.CountLevels),
		detectors: n,
		Valid:     make([]int, n),
	}
}

// Detectors returns the number of distributions in the set.
func (s *EDFSet) Detectors() int {
	return s.detectors
}

// Detector returns the distribution of virtual detector v as a view into the
// set's buffer.
func (s *EDFSet) Detector(v int) EDF {
	if v < 0 || v >= s.detectors {
		panic(fmt.Sprintf("destripe: detector %d outside EDF set of %d", v, s.detectors))
	}
	start := v * models.CountLevels
	end := start + models.CountLevels
	return EDF(s.levels[start:end:end])
}

// Empty reports whether detector v has no distribution.
func (s *EDFSet) Empty(v int) bool {
	return s.Valid[v] == 0
}

// BuildEDF computes the distribution of the valid samples on the given rows
// into dst, which must hold CountLevels entries. It returns the number of
// valid samples.
func BuildEDF(dst EDF, img *models.Image, rows []int) (int, error) {
	if len(dst) != models.CountLevels {
		return 0, fmt.Errorf("%w: EDF buffer holds %d levels, need %d",
			ErrAllocation, len(dst), models.CountLevels)
	}

	hist := make([]float64, models.CountLevels)
	valid := 0
	for _, r := range rows {
		if r < 0 || r >= img.Height {
			return 0, fmt.Errorf("%w: row %d outside image of %d lines", ErrConfiguration, r, img.Height)
		}
		for _, v := range img.Row(r) {
			if models.Valid(v) {
				hist[v]++
				valid++
			}
		}
	}
	if valid == 0 {
		return 0, ErrDegenerateDetector
	}

	floats.CumSum(dst, hist)
	n := float64(valid)
	for i := range dst {
		dst[i] /= n
	}
	return valid, nil
}

// BuildEDFSet computes the distribution of every virtual detector of the
// image. A detector without valid samples is an error unless its physical
// detector is flagged in bad, in which case it is left empty. Detectors are
// processed concurrently by up to workers goroutines.
func BuildEDFSet(img *models.Image, geom Geometry, bad []bool, workers int) (*EDFSet, error) {
	set := NewEDFSet(geom.Detectors())

	var g errgroup.Group
	g.SetLimit(workerLimit(workers))
	for v := 0; v < geom.Detectors(); v++ {
		v := v
		g.Go(func() error {
			rows, err := geom.Rows(v)
			if err != nil {
				return err
			}
			n, err := BuildEDF(set.Detector(v), img, rows)
			if errors.Is(err, ErrDegenerateDetector) && flagged(bad, geom.Physical(v)) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("virtual detector %d: %w", v, err)
			}
			set.Valid[v] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}

func flagged(bad []bool, d int) bool {
	return d >= 0 && d < len(bad) && bad[d]
}
