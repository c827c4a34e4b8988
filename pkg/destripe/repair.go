package destripe

import (
	"fmt"

	"modisdestripe/internal/models"
)

// NearestGood returns the good physical detector closest to detector d. Ties
// go to the lower index.
func NearestGood(bad []bool, d int) (int, error) {
	best, bestDiff := -1, 0
	for i, isBad := range bad {
		if isBad || i == d {
			continue
		}
		diff := i - d
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("%w: no good detector to replace detector %d", ErrConfiguration, d)
	}
	return best, nil
}

// RepairBadDetectors overwrites, in every scan, the line of each physical
// detector flagged in bad with the line of its nearest good neighbour. It
// returns the number of detectors repaired. Running it twice with the same
// flags changes nothing further.
func RepairBadDetectors(img *models.Image, geom Geometry, bad []bool) (int, error) {
	if len(bad) != geom.StripSize {
		return 0, fmt.Errorf("%w: %d bad detector flags for strip size %d", ErrConfiguration, len(bad), geom.StripSize)
	}
	if img.Width != geom.Pixels || img.Height != geom.Lines() {
		return 0, fmt.Errorf("%w: image does not match geometry of %d pixels x %d lines",
			ErrConfiguration, geom.Pixels, geom.Lines())
	}

	// Resolve every replacement before touching data so a configuration
	// error leaves the image as it was.
	replacement := make(map[int]int)
	for d, isBad := range bad {
		if !isBad {
			continue
		}
		good, err := NearestGood(bad, d)
		if err != nil {
			return 0, err
		}
		replacement[d] = good
	}

	for d := 0; d < geom.StripSize; d++ {
		good, ok := replacement[d]
		if !ok {
			continue
		}
		for scan := 0; scan < geom.Scans; scan++ {
			base := scan * geom.StripSize
			copy(img.Row(base+d), img.Row(base+good))
		}
	}
	return len(replacement), nil
}
