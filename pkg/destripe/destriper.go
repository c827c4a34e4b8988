// Package destripe removes detector-to-detector striping from scanning
// radiometer imagery by histogram-matching every detector onto a reference
// detector, following the empirical distribution function (EDF) method of
// Weinreb et al.
//
// The processing of one band is:
//  1. Check that at least one strip's worth of valid pixels exists
//  2. Build the EDF of every virtual detector (physical detector x mirror side)
//  3. Resolve the reference virtual detector from the first scan's mirror side
//  4. Build a lookup table mapping each detector onto the reference
//  5. Apply the table to a copy of the image
//  6. Restore out-of-range results to their original values
//  7. Shift the corrected image so its median matches the original
//
// Bad detector repair runs separately, after destriping.
package destripe

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"modisdestripe/internal/models"
)

// MedianShiftPolicy selects which pixels receive the median restoration shift.
type MedianShiftPolicy int

const (
	// ShiftValidOnly shifts only pixels inside the valid count range.
	ShiftValidOnly MedianShiftPolicy = iota

	// ShiftAll shifts every pixel, fill values included.
	ShiftAll
)

func (p MedianShiftPolicy) String() string {
	switch p {
	case ShiftValidOnly:
		return "valid"
	case ShiftAll:
		return "all"
	default:
		return fmt.Sprintf("MedianShiftPolicy(%d)", int(p))
	}
}

// ParseMedianShiftPolicy parses "valid" or "all". An empty string selects
// ShiftValidOnly.
func ParseMedianShiftPolicy(s string) (MedianShiftPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "valid":
		return ShiftValidOnly, nil
	case "all":
		return ShiftAll, nil
	default:
		return 0, fmt.Errorf("%w: unknown median shift policy %q (want valid or all)", ErrConfiguration, s)
	}
}

// Options tunes a destriping run.
type Options struct {
	// Workers bounds the number of detectors processed concurrently.
	// Zero or less uses GOMAXPROCS.
	Workers int

	// MedianShift selects which pixels the median restoration moves
	MedianShift MedianShiftPolicy

	// MaxBandBytes caps the working memory of one band. Zero disables the cap.
	MaxBandBytes int64

	// BadDetectors flags physical detectors that will be replaced after
	// destriping. Such detectors may lack valid samples; they are then left
	// unmatched instead of failing the band.
	BadDetectors []bool
}

// Result is the outcome of destriping one band.
type Result struct {
	// Image is the corrected band; the input image is left untouched
	Image *models.Image

	// ReferenceIndex is the virtual detector used as reference
	ReferenceIndex int

	// Valid is the number of valid pixels in the input
	Valid int

	// MedianBefore and MedianAfter are the medians of the input and of the
	// corrected image before the restoration shift
	MedianBefore int32
	MedianAfter  int32

	// MedianShift is the amount subtracted during median restoration
	MedianShift int32

	// Restored counts output pixels reset to their input value because the
	// lookup produced an out-of-range count
	Restored int
}

// WorkingBytes estimates the memory needed to destripe a band of the given
// geometry: the output image, the EDF set and the LUT.
func WorkingBytes(geom Geometry) int64 {
	levels := int64(geom.Detectors()) * models.CountLevels
	return int64(geom.Samples())*4 + levels*8 + levels*4
}

// Destripe corrects one band. ref is the physical reference detector and
// mirror the mirror side table of the band's scans.
func Destripe(img *models.Image, geom Geometry, ref int, mirror models.MirrorSides, opts Options) (*Result, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if img == nil || img.Width != geom.Pixels || img.Height != geom.Lines() || len(img.Data) != geom.Samples() {
		return nil, fmt.Errorf("%w: image does not match geometry of %d pixels x %d lines",
			ErrConfiguration, geom.Pixels, geom.Lines())
	}
	if len(mirror) == 0 {
		return nil, fmt.Errorf("%w: empty mirror side table", ErrConfiguration)
	}
	if opts.MaxBandBytes > 0 {
		if need := WorkingBytes(geom); need > opts.MaxBandBytes {
			return nil, fmt.Errorf("%w: band needs %d bytes, budget is %d", ErrAllocation, need, opts.MaxBandBytes)
		}
	}

	// Step 1: require at least one strip of valid data
	valid := img.CountValid()
	if valid < geom.StripSize*geom.Pixels {
		return nil, fmt.Errorf("%w: %d valid pixels, need %d", ErrInsufficientData, valid, geom.StripSize*geom.Pixels)
	}

	// Step 2: per-detector distributions
	edfs, err := BuildEDFSet(img, geom, opts.BadDetectors, opts.Workers)
	if err != nil {
		return nil, err
	}

	// Step 3: reference detector on mirror side zero
	refIndex, err := ReferenceIndex(ref, geom.StripSize, mirror[0])
	if err != nil {
		return nil, err
	}

	// Step 4: histogram matching tables
	lut, err := BuildLUT(edfs, refIndex, opts.Workers)
	if err != nil {
		return nil, err
	}

	// Step 5: apply to a copy of the input
	out := img.Clone()
	if err := applyLUT(out, img, geom, lut, opts.Workers); err != nil {
		return nil, err
	}

	// Step 6: restore anything the lookup pushed out of range
	restored := 0
	for i, v := range out.Data {
		if !models.Valid(v) && v != img.Data[i] {
			out.Data[i] = img.Data[i]
			restored++
		}
	}

	// Step 7: keep the image median where it was
	before, _ := Median(img.Data)
	after, _ := Median(out.Data)
	delta := after - before
	if delta != 0 {
		shiftMedian(out.Data, delta, opts.MedianShift)
	}

	return &Result{
		Image:          out,
		ReferenceIndex: refIndex,
		Valid:          valid,
		MedianBefore:   before,
		MedianAfter:    after,
		MedianShift:    delta,
		Restored:       restored,
	}, nil
}

// applyLUT rewrites the valid pixels of every non-reference detector. Each
// row belongs to exactly one detector, so detectors write disjoint rows.
func applyLUT(out, in *models.Image, geom Geometry, lut *LUT, workers int) error {
	var g errgroup.Group
	g.SetLimit(workerLimit(workers))
	for v := 0; v < geom.Detectors(); v++ {
		if lut.IsIdentity(v) {
			continue
		}
		v := v
		g.Go(func() error {
			rows, err := geom.Rows(v)
			if err != nil {
				return err
			}
			table := lut.Detector(v)
			for _, r := range rows {
				src := in.Row(r)
				dst := out.Row(r)
				for x, c := range src {
					if models.Valid(c) {
						dst[x] = table[c]
					}
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func shiftMedian(data []int32, delta int32, policy MedianShiftPolicy) {
	for i, v := range data {
		if policy == ShiftAll || models.Valid(v) {
			data[i] = v - delta
		}
	}
}

func workerLimit(workers int) int {
	if workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return workers
}
