// Package modis holds the static instrument tables of the MODIS Level 1B
// products the destriper works on: the two platforms, the two resolutions,
// and where each band lives inside the granule's datasets.
package modis

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned for a platform or resolution that is not
// supported.
var ErrUnknownMode = errors.New("modis: unknown instrument mode")

// ErrUnknownBand is returned for a band the mode does not carry.
var ErrUnknownBand = errors.New("modis: unknown band")

// Platform is the satellite carrying the instrument.
type Platform string

const (
	Terra Platform = "terra"
	Aqua  Platform = "aqua"
)

// Resolution is the nominal ground resolution of the product.
type Resolution string

const (
	Res1km  Resolution = "1km"
	Res500m Resolution = "500m"
)

// Mode describes one platform and resolution combination.
type Mode struct {
	Platform   Platform
	Resolution Resolution

	// StripSize is the number of detectors, and so lines, per scan
	StripSize int

	// Bands is the number of bands the product carries
	Bands int

	// ConfigFile is the name of the default band configuration table
	ConfigFile string

	// ProbeDataset is read to find the granule's dimensions
	ProbeDataset string
}

// ShortName returns the product short name, e.g. MOD021KM.
func (m Mode) ShortName() string {
	prefix := "MOD"
	if m.Platform == Aqua {
		prefix = "MYD"
	}
	if m.Resolution == Res500m {
		return prefix + "02HKM"
	}
	return prefix + "021KM"
}

func (m Mode) String() string {
	return fmt.Sprintf("%s %s", m.Platform, m.Resolution)
}

// LookupMode resolves a platform and resolution, case-insensitively.
func LookupMode(platform, resolution string) (Mode, error) {
	m := Mode{
		Platform:   Platform(strings.ToLower(strings.TrimSpace(platform))),
		Resolution: Resolution(strings.ToLower(strings.TrimSpace(resolution))),
	}
	if m.Platform != Terra && m.Platform != Aqua {
		return Mode{}, fmt.Errorf("%w: platform %q (want terra or aqua)", ErrUnknownMode, platform)
	}

	switch m.Resolution {
	case Res1km:
		m.StripSize = 10
		m.Bands = 36
		m.ProbeDataset = "EV_1KM_Emissive"
	case Res500m:
		m.StripSize = 20
		m.Bands = 7
		m.ProbeDataset = "EV_500_RefSB"
	default:
		return Mode{}, fmt.Errorf("%w: resolution %q (want 1km or 500m)", ErrUnknownMode, resolution)
	}
	m.ConfigFile = m.ShortName() + "_destripe_config.dat"
	return m, nil
}

// Dataset returns the name of the dataset holding band.
func (m Mode) Dataset(band int) (string, error) {
	if band < 1 || band > m.Bands {
		return "", fmt.Errorf("%w: band %d in %s mode", ErrUnknownBand, band, m)
	}
	if m.Resolution == Res500m {
		if band <= 2 {
			return "EV_250_Aggr500_RefSB", nil
		}
		return "EV_500_RefSB", nil
	}

	switch {
	case band <= 2:
		return "EV_250_Aggr1km_RefSB", nil
	case band <= 7:
		return "EV_500_Aggr1km_RefSB", nil
	case band <= 19, band == 26:
		return "EV_1KM_RefSB", nil
	default:
		return "EV_1KM_Emissive", nil
	}
}

// bandIndex is the plane of each band, 1 to 36, within its dataset. Bands
// 13 and 14 each occupy two planes in EV_1KM_RefSB, so later planes skip.
var bandIndex = [36]int{
	0, 1,
	0, 1, 2, 3, 4,
	0, 1, 2, 3, 4, 5, 7, 9, 10, 11, 12, 13,
	0, 1, 2, 3, 4, 5, 14, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

// BandIndex returns the plane of band within its dataset.
func BandIndex(band int) (int, error) {
	if band < 1 || band > len(bandIndex) {
		return 0, fmt.Errorf("%w: band %d", ErrUnknownBand, band)
	}
	return bandIndex[band-1], nil
}

// Locate returns the dataset and plane of band.
func (m Mode) Locate(band int) (string, int, error) {
	name, err := m.Dataset(band)
	if err != nil {
		return "", 0, err
	}
	idx, err := BandIndex(band)
	if err != nil {
		return "", 0, err
	}
	return name, idx, nil
}
