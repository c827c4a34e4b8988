package visualization

import (
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"modisdestripe/internal/models"
)

// gradient builds a band whose counts rise by one per pixel
func gradient(width, height int) *models.Image {
	img := models.NewImage(width, height)
	for i := range img.Data {
		img.Data[i] = int32(1000 + i)
	}
	return img
}

func TestQuicklookStretch(t *testing.T) {
	img := gradient(10, 10)
	q := NewQuicklook(img)
	low, high := q.Stretch()
	if low < 1000 || low > 1003 {
		t.Errorf("Expected low stretch near the 2nd percentile, got %f", low)
	}
	if high < 1096 || high > 1099 {
		t.Errorf("Expected high stretch near the 98th percentile, got %f", high)
	}
}

func TestQuicklookRender(t *testing.T) {
	img := gradient(10, 10)
	img.Set(5, 5, -1)
	img.Set(6, 5, 65535)

	out := NewQuicklook(img).Render()
	b := out.Bounds()
	if b.Dx() != 10 || b.Dy() != 10 {
		t.Fatalf("Expected 10x10 preview, got %dx%d", b.Dx(), b.Dy())
	}
	if out.GrayAt(0, 0).Y != 0 {
		t.Errorf("Expected darkest pixel black, got %d", out.GrayAt(0, 0).Y)
	}
	if out.GrayAt(9, 9).Y != 255 {
		t.Errorf("Expected brightest pixel white, got %d", out.GrayAt(9, 9).Y)
	}
	if out.GrayAt(5, 5).Y != 0 || out.GrayAt(6, 5).Y != 0 {
		t.Error("Expected invalid pixels black")
	}
	if out.GrayAt(4, 4).Y >= out.GrayAt(4, 6).Y {
		t.Error("Expected brightness to follow counts")
	}
}

func TestQuicklookConstantBand(t *testing.T) {
	img := models.NewImage(4, 4)
	img.Fill(500)
	out := NewQuicklook(img).Render()
	if out.GrayAt(2, 2).Y != 128 {
		t.Errorf("Expected mid gray for a flat band, got %d", out.GrayAt(2, 2).Y)
	}

	empty := models.NewImage(2, 2)
	empty.Fill(-1)
	low, high := NewQuicklook(empty).Stretch()
	if low != 0 || high != models.MaxCount {
		t.Errorf("Expected full range stretch without valid data, got %f..%f", low, high)
	}
}

func TestSavePair(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ql")
	raw := gradient(8, 6)
	out := raw.Clone()
	out.Fill(1020)

	rawPath, outPath, err := SavePair(dir, 7, raw, out)
	if err != nil {
		t.Fatalf("Failed to save quicklooks: %v", err)
	}
	if filepath.Base(rawPath) != "band07_raw.jpg" || filepath.Base(outPath) != "band07_destriped.jpg" {
		t.Errorf("Unexpected file names %s, %s", rawPath, outPath)
	}

	for _, p := range []string{rawPath, outPath} {
		f, err := os.Open(p)
		if err != nil {
			t.Fatalf("Failed to open %s: %v", p, err)
		}
		cfg, err := jpeg.DecodeConfig(f)
		f.Close()
		if err != nil {
			t.Fatalf("Failed to decode %s: %v", p, err)
		}
		if cfg.Width != 8 || cfg.Height != 6 {
			t.Errorf("%s: expected 8x6, got %dx%d", p, cfg.Width, cfg.Height)
		}
	}
}
