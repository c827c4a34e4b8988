package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"

	"modisdestripe/internal/models"
)

// Stretch percentiles used to map counts onto display gray levels
const (
	LowQuantile  = 0.02
	HighQuantile = 0.98
)

// Quicklook renders a band of raw counts as an 8-bit grayscale preview.
// Valid counts are stretched linearly between two percentiles of the band;
// fill and saturated values are drawn black.
type Quicklook struct {
	img *models.Image

	// low and high are the counts mapped to black and white
	low  float64
	high float64
}

// NewQuicklook creates a preview of img stretched between its 2nd and 98th
// percentile of valid counts.
func NewQuicklook(img *models.Image) *Quicklook {
	q := &Quicklook{img: img}
	q.low, q.high = percentileStretch(img)
	return q
}

// WithStretch returns a preview of the same band using an explicit stretch,
// so two bands can be compared at equal brightness.
func (q *Quicklook) WithStretch(low, high float64) *Quicklook {
	return &Quicklook{img: q.img, low: low, high: high}
}

// Stretch returns the counts mapped to black and white.
func (q *Quicklook) Stretch() (low, high float64) {
	return q.low, q.high
}

func percentileStretch(img *models.Image) (float64, float64) {
	samples := make([]float64, 0, len(img.Data))
	for _, v := range img.Data {
		if models.Valid(v) {
			samples = append(samples, float64(v))
		}
	}
	if len(samples) == 0 {
		return 0, models.MaxCount
	}
	sort.Float64s(samples)
	low := stat.Quantile(LowQuantile, stat.Empirical, samples, nil)
	high := stat.Quantile(HighQuantile, stat.Empirical, samples, nil)
	return low, high
}

// Render draws the preview.
func (q *Quicklook) Render() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, q.img.Width, q.img.Height))
	span := q.high - q.low
	for y := 0; y < q.img.Height; y++ {
		for x, v := range q.img.Row(y) {
			if !models.Valid(v) {
				continue
			}
			var level float64
			if span <= 0 {
				level = 128
			} else {
				level = (float64(v) - q.low) / span * 255
			}
			level = math.Max(0, math.Min(255, math.Round(level)))
			out.SetGray(x, y, color.Gray{Y: uint8(level)})
		}
	}
	return out
}

// Save renders the preview to a JPEG file
func (q *Quicklook) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}
	defer file.Close()

	return jpeg.Encode(file, q.Render(), &jpeg.Options{Quality: 90})
}

// SavePair writes before and after previews of a band into dir, both
// stretched like the raw band. It returns the two file paths.
func SavePair(dir string, band int, raw, destriped *models.Image) (string, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("error creating quicklook directory: %w", err)
	}

	before := NewQuicklook(raw)
	low, high := before.Stretch()
	after := NewQuicklook(destriped).WithStretch(low, high)

	rawPath := filepath.Join(dir, fmt.Sprintf("band%02d_raw.jpg", band))
	outPath := filepath.Join(dir, fmt.Sprintf("band%02d_destriped.jpg", band))
	if err := before.Save(rawPath); err != nil {
		return "", "", err
	}
	if err := after.Save(outPath); err != nil {
		return "", "", err
	}
	return rawPath, outPath, nil
}
