package models

import (
	"fmt"
)

const (
	// MaxCount is the largest valid scaled-integer digital count.
	MaxCount = 32767

	// CountLevels is the number of distinct valid digital counts (0..MaxCount).
	CountLevels = MaxCount + 1
)

// Valid reports whether a sample is a valid digital count. Anything outside
// [0, MaxCount] is a fill or invalid marker.
func Valid(v int32) bool {
	return v >= 0 && v <= MaxCount
}

// Image is one band of scan-line imagery stored as a flattened row-major
// buffer. Samples are held in the canonical int32 type regardless of the
// on-disk sample width.
type Image struct {
	// Data holds Width*Height samples, row by row
	Data []int32

	// Width is the number of pixels per scan line
	Width int

	// Height is the number of scan lines
	Height int
}

// NewImage allocates a zeroed image with the given dimensions.
func NewImage(width, height int) *Image {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("models: negative image dimensions %dx%d", width, height))
	}
	return &Image{
		Data:   make([]int32, width*height),
		Width:  width,
		Height: height,
	}
}

// NewImageFrom wraps an existing buffer. The buffer length must match the
// dimensions exactly.
func NewImageFrom(data []int32, width, height int) (*Image, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("negative image dimensions %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, fmt.Errorf("buffer holds %d samples, %dx%d image needs %d",
			len(data), width, height, width*height)
	}
	return &Image{Data: data, Width: width, Height: height}, nil
}

// InBounds reports whether (x, y) addresses a sample of the image.
func (img *Image) InBounds(x, y int) bool {
	return x >= 0 && x < img.Width && y >= 0 && y < img.Height
}

// At returns the sample at pixel x of line y.
func (img *Image) At(x, y int) int32 {
	if !img.InBounds(x, y) {
		panic(fmt.Sprintf("models: pixel (%d,%d) outside %dx%d image", x, y, img.Width, img.Height))
	}
	return img.Data[y*img.Width+x]
}

// Set stores a sample at pixel x of line y.
func (img *Image) Set(x, y int, v int32) {
	if !img.InBounds(x, y) {
		panic(fmt.Sprintf("models: pixel (%d,%d) outside %dx%d image", x, y, img.Width, img.Height))
	}
	img.Data[y*img.Width+x] = v
}

// Row returns line y as a slice aliasing the image buffer.
func (img *Image) Row(y int) []int32 {
	if y < 0 || y >= img.Height {
		panic(fmt.Sprintf("models: line %d outside image of %d lines", y, img.Height))
	}
	start := y * img.Width
	return img.Data[start : start+img.Width : start+img.Width]
}

// Fill sets every sample to v.
func (img *Image) Fill(v int32) {
	for i := range img.Data {
		img.Data[i] = v
	}
}

// FillRow sets every sample of line y to v.
func (img *Image) FillRow(y int, v int32) {
	row := img.Row(y)
	for i := range row {
		row[i] = v
	}
}

// Clone returns a deep copy of the image.
func (img *Image) Clone() *Image {
	data := make([]int32, len(img.Data))
	copy(data, img.Data)
	return &Image{Data: data, Width: img.Width, Height: img.Height}
}

// CountValid returns the number of samples within the valid count range.
func (img *Image) CountValid() int {
	n := 0
	for _, v := range img.Data {
		if Valid(v) {
			n++
		}
	}
	return n
}

// Equal reports whether two images have the same dimensions and samples.
func (img *Image) Equal(other *Image) bool {
	if other == nil || img.Width != other.Width || img.Height != other.Height {
		return false
	}
	for i, v := range img.Data {
		if other.Data[i] != v {
			return false
		}
	}
	return true
}

// MirrorSides holds the scan-mirror side (0 or 1) of every scan, in scan order.
type MirrorSides []int

// Validate checks that the table covers nScan scans and only holds 0 or 1.
func (m MirrorSides) Validate(nScan int) error {
	if len(m) < nScan {
		return fmt.Errorf("mirror side table has %d scans, image has %d", len(m), nScan)
	}
	for i, side := range m[:nScan] {
		if side != 0 && side != 1 {
			return fmt.Errorf("mirror side of scan %d is %d, want 0 or 1", i, side)
		}
	}
	return nil
}
