package modis

import (
	"errors"
	"testing"
)

func TestLookupMode(t *testing.T) {
	cases := []struct {
		platform, resolution string
		stripSize, bands     int
		config, probe        string
	}{
		{"terra", "1km", 10, 36, "MOD021KM_destripe_config.dat", "EV_1KM_Emissive"},
		{"Aqua", "1KM", 10, 36, "MYD021KM_destripe_config.dat", "EV_1KM_Emissive"},
		{"terra", "500m", 20, 7, "MOD02HKM_destripe_config.dat", "EV_500_RefSB"},
		{"aqua", "500m", 20, 7, "MYD02HKM_destripe_config.dat", "EV_500_RefSB"},
	}
	for _, c := range cases {
		t.Run(c.platform+"_"+c.resolution, func(t *testing.T) {
			m, err := LookupMode(c.platform, c.resolution)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if m.StripSize != c.stripSize {
				t.Errorf("Expected strip size %d, got %d", c.stripSize, m.StripSize)
			}
			if m.Bands != c.bands {
				t.Errorf("Expected %d bands, got %d", c.bands, m.Bands)
			}
			if m.ConfigFile != c.config {
				t.Errorf("Expected config file %s, got %s", c.config, m.ConfigFile)
			}
			if m.ProbeDataset != c.probe {
				t.Errorf("Expected probe dataset %s, got %s", c.probe, m.ProbeDataset)
			}
		})
	}

	if _, err := LookupMode("envisat", "1km"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Expected ErrUnknownMode for platform, got %v", err)
	}
	if _, err := LookupMode("terra", "250m"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Expected ErrUnknownMode for resolution, got %v", err)
	}
}

func TestDataset1km(t *testing.T) {
	m, _ := LookupMode("terra", "1km")
	cases := map[int]string{
		1:  "EV_250_Aggr1km_RefSB",
		2:  "EV_250_Aggr1km_RefSB",
		3:  "EV_500_Aggr1km_RefSB",
		7:  "EV_500_Aggr1km_RefSB",
		8:  "EV_1KM_RefSB",
		19: "EV_1KM_RefSB",
		20: "EV_1KM_Emissive",
		25: "EV_1KM_Emissive",
		26: "EV_1KM_RefSB",
		27: "EV_1KM_Emissive",
		36: "EV_1KM_Emissive",
	}
	for band, want := range cases {
		got, err := m.Dataset(band)
		if err != nil {
			t.Errorf("Band %d: unexpected error: %v", band, err)
			continue
		}
		if got != want {
			t.Errorf("Band %d: expected %s, got %s", band, want, got)
		}
	}
	if _, err := m.Dataset(37); !errors.Is(err, ErrUnknownBand) {
		t.Errorf("Expected ErrUnknownBand, got %v", err)
	}
}

func TestDataset500m(t *testing.T) {
	m, _ := LookupMode("aqua", "500m")
	if got, _ := m.Dataset(2); got != "EV_250_Aggr500_RefSB" {
		t.Errorf("Band 2: expected EV_250_Aggr500_RefSB, got %s", got)
	}
	if got, _ := m.Dataset(5); got != "EV_500_RefSB" {
		t.Errorf("Band 5: expected EV_500_RefSB, got %s", got)
	}
	if _, err := m.Dataset(8); !errors.Is(err, ErrUnknownBand) {
		t.Errorf("Expected ErrUnknownBand for band 8, got %v", err)
	}
}

func TestBandIndex(t *testing.T) {
	cases := map[int]int{1: 0, 2: 1, 3: 0, 7: 4, 8: 0, 13: 5, 14: 7, 15: 9, 19: 13, 20: 0, 26: 14, 27: 6, 36: 15}
	for band, want := range cases {
		got, err := BandIndex(band)
		if err != nil {
			t.Errorf("Band %d: unexpected error: %v", band, err)
			continue
		}
		if got != want {
			t.Errorf("Band %d: expected plane %d, got %d", band, want, got)
		}
	}
	for _, band := range []int{0, 37} {
		if _, err := BandIndex(band); !errors.Is(err, ErrUnknownBand) {
			t.Errorf("Band %d: expected ErrUnknownBand, got %v", band, err)
		}
	}
}
