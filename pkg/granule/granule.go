// Package granule stores a swath granule on disk: a YAML manifest describing
// the datasets, mirror sides and global attributes, plus one 16-bit
// grayscale TIFF per dataset band plane.
//
// Samples are widened to int32 images on read and narrowed back, saturating,
// on write. Writes go through a temporary file and a rename so a plane is
// either fully old or fully new.
package granule

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/tiff"
	"gopkg.in/yaml.v3"

	"modisdestripe/internal/models"
)

// ManifestFile is the name of the manifest inside a granule directory.
const ManifestFile = "granule.yaml"

var (
	// ErrNoDataset is returned when a granule has no dataset of the given name.
	ErrNoDataset = errors.New("granule: no such dataset")

	// ErrNoPlane is returned for a band plane outside a dataset or not yet
	// written.
	ErrNoPlane = errors.New("granule: no such band plane")

	// ErrShape is returned when an image does not match its dataset.
	ErrShape = errors.New("granule: image shape mismatch")
)

// SampleType is the on-disk type of a dataset's samples.
type SampleType string

const (
	Int16  SampleType = "int16"
	Uint16 SampleType = "uint16"
)

// DatasetInfo describes one dataset: a stack of equally sized band planes.
type DatasetInfo struct {
	Name   string     `yaml:"name"`
	Type   SampleType `yaml:"type"`
	Bands  int        `yaml:"bands"`
	Lines  int        `yaml:"lines"`
	Pixels int        `yaml:"pixels"`
}

// Manifest is the granule description persisted as granule.yaml.
type Manifest struct {
	Platform    string            `yaml:"platform"`
	Resolution  string            `yaml:"resolution"`
	MirrorSides []int             `yaml:"mirror_sides"`
	Attributes  map[string]string `yaml:"attributes,omitempty"`
	Datasets    []DatasetInfo     `yaml:"datasets"`
}

// Validate checks the manifest for impossible dataset descriptions.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool)
	for _, d := range m.Datasets {
		if d.Name == "" {
			return fmt.Errorf("granule: dataset without a name")
		}
		if seen[d.Name] {
			return fmt.Errorf("granule: dataset %s listed twice", d.Name)
		}
		seen[d.Name] = true
		if d.Type != Int16 && d.Type != Uint16 {
			return fmt.Errorf("granule: dataset %s has unsupported sample type %q", d.Name, d.Type)
		}
		if d.Bands <= 0 || d.Lines <= 0 || d.Pixels <= 0 {
			return fmt.Errorf("granule: dataset %s has non-positive dimensions", d.Name)
		}
	}
	return nil
}

// Granule is an open granule directory. It is safe for concurrent use.
type Granule struct {
	dir string

	mu       sync.RWMutex
	manifest Manifest
}

// Create makes a new granule in dir, which is created if needed, and writes
// its manifest. Band planes are written later with WriteBand.
func Create(dir string, m Manifest) (*Granule, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating granule directory: %w", err)
	}
	if m.Attributes == nil {
		m.Attributes = make(map[string]string)
	}
	g := &Granule{dir: dir, manifest: m}
	if err := g.Save(); err != nil {
		return nil, err
	}
	return g, nil
}

// Open reads the manifest of the granule in dir.
func Open(dir string) (*Granule, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("error reading granule manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("error parsing granule manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Attributes == nil {
		m.Attributes = make(map[string]string)
	}
	return &Granule{dir: dir, manifest: m}, nil
}

// Dir returns the granule directory.
func (g *Granule) Dir() string {
	return g.dir
}

// Platform and Resolution return the instrument mode recorded in the manifest.
func (g *Granule) Platform() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.manifest.Platform
}

func (g *Granule) Resolution() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.manifest.Resolution
}

// Dataset returns the description of the named dataset.
func (g *Granule) Dataset(name string) (DatasetInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, d := range g.manifest.Datasets {
		if d.Name == name {
			return d, nil
		}
	}
	return DatasetInfo{}, fmt.Errorf("%w: %s", ErrNoDataset, name)
}

// MirrorSides returns a copy of the per-scan mirror side table.
func (g *Granule) MirrorSides() models.MirrorSides {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append(models.MirrorSides(nil), g.manifest.MirrorSides...)
}

// Attribute returns a global attribute.
func (g *Granule) Attribute(name string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.manifest.Attributes[name]
	return v, ok
}

// SetAttribute sets a global attribute. It is persisted by Save.
func (g *Granule) SetAttribute(name, value string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.manifest.Attributes[name] = value
}

// Save writes the manifest back to disk.
func (g *Granule) Save() error {
	g.mu.RLock()
	data, err := yaml.Marshal(&g.manifest)
	g.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("error marshaling granule manifest: %w", err)
	}
	return writeAtomic(filepath.Join(g.dir, ManifestFile), func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// PlanePath returns the file holding one band plane of a dataset.
func PlanePath(dir, dataset string, plane int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_b%02d.tif", dataset, plane))
}

func (g *Granule) plane(dataset string, plane int) (DatasetInfo, string, error) {
	info, err := g.Dataset(dataset)
	if err != nil {
		return DatasetInfo{}, "", err
	}
	if plane < 0 || plane >= info.Bands {
		return DatasetInfo{}, "", fmt.Errorf("%w: %s plane %d of %d", ErrNoPlane, dataset, plane, info.Bands)
	}
	return info, PlanePath(g.dir, dataset, plane), nil
}

// ReadBand reads one band plane as an int32 image.
func (g *Granule) ReadBand(dataset string, plane int) (*models.Image, error) {
	info, path, err := g.plane(dataset, plane)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s plane %d not written", ErrNoPlane, dataset, plane)
	}
	if err != nil {
		return nil, fmt.Errorf("error opening band plane: %w", err)
	}
	defer f.Close()

	src, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", filepath.Base(path), err)
	}
	b := src.Bounds()
	if b.Dx() != info.Pixels || b.Dy() != info.Lines {
		return nil, fmt.Errorf("%w: %s is %dx%d, manifest says %dx%d",
			ErrShape, filepath.Base(path), b.Dx(), b.Dy(), info.Pixels, info.Lines)
	}

	img := models.NewImage(info.Pixels, info.Lines)
	for y := 0; y < info.Lines; y++ {
		row := img.Row(y)
		for x := range row {
			var raw uint16
			if gray, ok := src.(*image.Gray16); ok {
				raw = gray.Gray16At(b.Min.X+x, b.Min.Y+y).Y
			} else {
				raw = color.Gray16Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y
			}
			row[x] = widen(raw, info.Type)
		}
	}
	return img, nil
}

// WriteBand replaces one band plane with img, narrowing samples to the
// dataset's type.
func (g *Granule) WriteBand(dataset string, plane int, img *models.Image) error {
	info, path, err := g.plane(dataset, plane)
	if err != nil {
		return err
	}
	if img.Width != info.Pixels || img.Height != info.Lines {
		return fmt.Errorf("%w: image is %dx%d, %s is %dx%d",
			ErrShape, img.Width, img.Height, dataset, info.Pixels, info.Lines)
	}

	out := image.NewGray16(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x, v := range img.Row(y) {
			out.SetGray16(x, y, color.Gray16{Y: narrow(v, info.Type)})
		}
	}

	return writeAtomic(path, func(f *os.File) error {
		return tiff.Encode(f, out, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	})
}

// widen maps a stored 16-bit word to its signed value for the sample type.
func widen(raw uint16, t SampleType) int32 {
	if t == Int16 {
		return int32(int16(raw))
	}
	return int32(raw)
}

// narrow saturates v into the sample type and returns its 16-bit word.
func narrow(v int32, t SampleType) uint16 {
	if t == Int16 {
		switch {
		case v < math.MinInt16:
			v = math.MinInt16
		case v > math.MaxInt16:
			v = math.MaxInt16
		}
		return uint16(int16(v))
	}
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}

// writeAtomic writes a file through a temporary sibling and renames it into
// place.
func writeAtomic(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
