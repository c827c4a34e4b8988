package destripe

import (
	"modisdestripe/internal/models"
)

// Median returns the histogram median of the valid samples in data: the
// smallest count whose cumulative frequency reaches half of the valid samples
// (rounded up). It also returns the number of valid samples. Data without
// valid samples has median 0.
func Median(data []int32) (int32, int) {
	hist := make([]int, models.CountLevels)
	valid := 0
	for _, v := range data {
		if models.Valid(v) {
			hist[v]++
			valid++
		}
	}
	if valid == 0 {
		return 0, 0
	}

	target := (valid + 1) / 2
	sum := 0
	for c, n := range hist {
		sum += n
		if sum >= target {
			return int32(c), valid
		}
	}
	return models.MaxCount, valid
}
