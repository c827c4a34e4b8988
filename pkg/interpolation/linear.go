// Package interpolation provides the piecewise-linear table lookup used to
// histogram-match detector distributions.
package interpolation

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyTable is returned when the table holds no points.
	ErrEmptyTable = errors.New("interpolation: empty table")

	// ErrLengthMismatch is returned when x and y tables differ in length.
	ErrLengthMismatch = errors.New("interpolation: x and y tables differ in length")

	// ErrNotMonotonic is returned when table abscissae decrease.
	ErrNotMonotonic = errors.New("interpolation: x values must be nondecreasing")
)

// Linear is a piecewise-linear interpolator over a table of (x, y) points with
// nondecreasing x.
//
// A run of equal x values (a plateau) keeps the y of its first and its last
// entry. A query equal to a plateau level returns the first y of the run. A
// query strictly between two levels is interpolated between the adjacent
// table entries that bracket it: the last point of the lower run and the
// first point of the upper run. Queries outside the table clamp to the first
// y of the boundary level.
//
// A Linear is read-only after construction and safe for concurrent use.
type Linear struct {
	// xs holds the distinct levels in increasing order
	xs []float64

	// first and last are the y values at the two ends of each run
	first []float64
	last  []float64
}

// NewLinear builds an interpolator from a table. The inputs are not retained.
func NewLinear(xs, ys []float64) (*Linear, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: %d x values, %d y values", ErrLengthMismatch, len(xs), len(ys))
	}
	if len(xs) == 0 {
		return nil, ErrEmptyTable
	}

	l := &Linear{
		xs:    make([]float64, 0, len(xs)),
		first: make([]float64, 0, len(xs)),
		last:  make([]float64, 0, len(xs)),
	}
	for i, x := range xs {
		if i > 0 {
			prev := xs[i-1]
			if x < prev {
				return nil, fmt.Errorf("%w: x[%d]=%g < x[%d]=%g", ErrNotMonotonic, i, x, i-1, prev)
			}
			if x == prev {
				l.last[len(l.last)-1] = ys[i]
				continue
			}
		}
		l.xs = append(l.xs, x)
		l.first = append(l.first, ys[i])
		l.last = append(l.last, ys[i])
	}
	return l, nil
}

// Levels returns the number of distinct x levels in the table.
func (l *Linear) Levels() int {
	return len(l.xs)
}

// Predict returns the interpolated y at x.
func (l *Linear) Predict(x float64) float64 {
	n := len(l.xs)
	i := sort.SearchFloat64s(l.xs, x)
	switch {
	case i == 0:
		return l.first[0]
	case i == n:
		return l.first[n-1]
	case l.xs[i] == x:
		return l.first[i]
	}

	x0, x1 := l.xs[i-1], l.xs[i]
	y0, y1 := l.last[i-1], l.first[i]
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// PredictInto evaluates every query in xs and stores the results in dst,
// which must be at least as long as xs.
func (l *Linear) PredictInto(dst, xs []float64) {
	if len(dst) < len(xs) {
		panic(fmt.Sprintf("interpolation: destination holds %d values, need %d", len(dst), len(xs)))
	}
	for i, x := range xs {
		dst[i] = l.Predict(x)
	}
}

// Interp interpolates every value of xNew against the table (xOld, yOld).
func Interp(xOld, yOld, xNew []float64) ([]float64, error) {
	l, err := NewLinear(xOld, yOld)
	if err != nil {
		return nil, err
	}
	yNew := make([]float64, len(xNew))
	l.PredictInto(yNew, xNew)
	return yNew, nil
}
