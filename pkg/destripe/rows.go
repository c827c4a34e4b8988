package destripe

import (
	"fmt"
	"math"
)

// Geometry describes how scan lines of a band image map onto detectors.
//
// Each scan produces StripSize lines, one per physical detector. Every
// physical detector is treated as two virtual detectors, one per scan-mirror
// side, so the image holds Detectors() = 2*StripSize statistical populations.
type Geometry struct {
	// Pixels is the number of pixels per scan line
	Pixels int

	// Scans is the number of scans in the image
	Scans int

	// StripSize is the number of physical detectors per scan
	StripSize int
}

// Detectors returns the number of virtual detectors.
func (g Geometry) Detectors() int {
	return 2 * g.StripSize
}

// Lines returns the number of scan lines in the image.
func (g Geometry) Lines() int {
	return g.Scans * g.StripSize
}

// Samples returns the number of samples in the image.
func (g Geometry) Samples() int {
	return g.Lines() * g.Pixels
}

// Validate checks that the geometry is usable and that its buffers are
// addressable.
func (g Geometry) Validate() error {
	if g.Pixels <= 0 || g.Scans <= 0 || g.StripSize <= 0 {
		return fmt.Errorf("%w: invalid geometry %d pixels, %d scans, strip size %d",
			ErrConfiguration, g.Pixels, g.Scans, g.StripSize)
	}
	if g.Scans > math.MaxInt32/g.StripSize || g.Lines() > math.MaxInt32/g.Pixels {
		return fmt.Errorf("%w: %d pixels x %d lines overflows buffer size",
			ErrAllocation, g.Pixels, g.Lines())
	}
	return nil
}

// Rows returns the scan-line rows produced by virtual detector v, in
// ascending order.
//
// Every pair of scans forms a block of Detectors() consecutive lines and
// detector v owns line b*Detectors()+v of block b. With an odd scan count the
// trailing scan continues the pattern for the detectors of the first scan of
// a pair; detectors of the second scan of a pair have no line there. The rows
// of all detectors partition 0..Lines()-1.
func (g Geometry) Rows(v int) ([]int, error) {
	nDet := g.Detectors()
	if v < 0 || v >= nDet {
		return nil, fmt.Errorf("%w: virtual detector %d outside [0,%d)", ErrConfiguration, v, nDet)
	}

	blocks := g.Scans / 2
	rows := make([]int, 0, blocks+1)
	for b := 0; b < blocks; b++ {
		rows = append(rows, b*nDet+v)
	}
	if g.Scans%2 == 1 && v < g.StripSize {
		rows = append(rows, blocks*nDet+v)
	}
	return rows, nil
}

// Physical returns the physical detector of virtual detector v.
func (g Geometry) Physical(v int) int {
	return v % g.StripSize
}

// ReferenceIndex translates a physical reference detector into the virtual
// detector that sees mirror side 0. Scans are assumed to alternate sides, so
// only the side of the first scan is consulted.
func ReferenceIndex(ref, stripSize int, firstMirrorSide int) (int, error) {
	if ref < 0 || ref >= stripSize {
		return 0, fmt.Errorf("%w: reference detector %d outside [0,%d)", ErrConfiguration, ref, stripSize)
	}
	switch firstMirrorSide {
	case 0:
		return ref, nil
	case 1:
		return ref + stripSize, nil
	default:
		return 0, fmt.Errorf("%w: mirror side %d, want 0 or 1", ErrConfiguration, firstMirrorSide)
	}
}
