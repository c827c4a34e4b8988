// Package processing runs destriping over a whole granule: it resolves the
// instrument mode, loads the band table, destripes and repairs every
// configured band, and records provenance so a granule is never corrected
// twice.
package processing

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"modisdestripe/internal/models"
	"modisdestripe/pkg/bandconfig"
	"modisdestripe/pkg/destripe"
	"modisdestripe/pkg/granule"
	"modisdestripe/pkg/ledger"
	"modisdestripe/pkg/modis"
	"modisdestripe/pkg/visualization"
)

// Global attributes written to a destriped granule
const (
	AttrDestriped = "UW_DESTRIPE"
	AttrConfig    = "UW_DESTRIPE_CONFIG"
)

// ToolTag identifies this tool in the provenance attribute.
const ToolTag = "modisdestripe EDF histogram matching destriper"

var (
	// ErrAlreadyDestriped is returned for a granule that already carries the
	// destriping attribute.
	ErrAlreadyDestriped = errors.New("processing: granule is already destriped")

	// ErrTooFewScans is returned when the granule holds one scan or less.
	ErrTooFewScans = errors.New("processing: granule has too few scans")
)

// Params holds the run parameters.
type Params struct {
	// GranuleDir is the granule to correct in place
	GranuleDir string

	// Platform and Resolution select the instrument mode. Empty values are
	// taken from the granule manifest.
	Platform   string
	Resolution string

	// BandConfigPath is the band table for the mode
	BandConfigPath string

	// NumCores bounds the detectors processed concurrently; 0 uses all cores
	NumCores int

	MedianShift  destripe.MedianShiftPolicy
	MaxBandBytes int64

	// QuicklookDir receives before/after previews when set
	QuicklookDir string

	// LedgerPath is the SQLite run ledger; empty disables it
	LedgerPath string

	// Logf receives progress messages. Defaults to log.Printf.
	Logf func(format string, args ...any)
}

// BandResult is the outcome of one configured band.
type BandResult struct {
	Band    int
	Dataset string
	Plane   int

	// Err is nil when the band was corrected and written
	Err error

	Result   *destripe.Result
	Metrics  destripe.Metrics
	Repaired int
	Elapsed  time.Duration

	rawHash string
	outHash string
}

// OK reports whether the band was corrected.
func (b BandResult) OK() bool {
	return b.Err == nil
}

// Status names the outcome: "ok", a destriping failure kind, or "store" for
// granule access failures.
func (b BandResult) Status() string {
	switch {
	case errors.Is(b.Err, granule.ErrNoDataset),
		errors.Is(b.Err, granule.ErrNoPlane),
		errors.Is(b.Err, granule.ErrShape):
		return "store"
	case errors.Is(b.Err, modis.ErrUnknownBand):
		return "configuration"
	default:
		return destripe.Kind(b.Err)
	}
}

// Summary describes a finished run.
type Summary struct {
	Mode       modis.Mode
	Geometry   destripe.Geometry
	Header     string
	Provenance string
	RunID      int64
	Bands      []BandResult
}

// Succeeded and Failed count the bands by outcome.
func (s *Summary) Succeeded() int {
	n := 0
	for _, b := range s.Bands {
		if b.OK() {
			n++
		}
	}
	return n
}

func (s *Summary) Failed() int {
	return len(s.Bands) - s.Succeeded()
}

// Processor destripes one granule.
type Processor struct {
	params  *Params
	logf    func(format string, args ...any)
	summary Summary
}

// NewProcessor creates a processor for the given parameters.
func NewProcessor(params *Params) *Processor {
	logf := params.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Processor{params: params, logf: logf}
}

// Provenance returns the text recorded for a granule destriped with the band
// table whose header is given.
func Provenance(header string) string {
	return fmt.Sprintf("%s (band table: %s)", ToolTag, header)
}

// Summary returns the outcome of the last Process call.
func (p *Processor) Summary() *Summary {
	return &p.summary
}

// Process runs the whole granule. Failures of single bands are reported in
// the summary and do not stop the run; failures to access the granule, the
// band table or the ledger are returned. A granule in which no band was
// corrected is not marked as destriped.
func (p *Processor) Process() (err error) {
	p.summary = Summary{}

	// Step 1: open the granule and refuse a second pass
	p.logf("Step 1: Opening granule %s", p.params.GranuleDir)
	g, err := granule.Open(p.params.GranuleDir)
	if err != nil {
		return err
	}
	if _, done := g.Attribute(AttrDestriped); done {
		return fmt.Errorf("%w: %s", ErrAlreadyDestriped, p.params.GranuleDir)
	}

	platform, resolution := p.params.Platform, p.params.Resolution
	if platform == "" {
		platform = g.Platform()
	}
	if resolution == "" {
		resolution = g.Resolution()
	}
	mode, err := modis.LookupMode(platform, resolution)
	if err != nil {
		return err
	}
	p.summary.Mode = mode

	// Step 2: geometry from the probe dataset
	p.logf("Step 2: Reading %s geometry from %s", mode, mode.ProbeDataset)
	geom, err := probeGeometry(g, mode)
	if err != nil {
		return err
	}
	p.summary.Geometry = geom
	p.logf("%s pixels x %s lines, %d scans, %s per band working set",
		humanize.Comma(int64(geom.Pixels)), humanize.Comma(int64(geom.Lines())), geom.Scans,
		humanize.Bytes(uint64(destripe.WorkingBytes(geom))))

	mirror := g.MirrorSides()
	if err := mirror.Validate(geom.Scans); err != nil {
		return fmt.Errorf("mirror side table: %w", err)
	}

	// Step 3: band table
	p.logf("Step 3: Loading band configuration %s", p.params.BandConfigPath)
	table, err := bandconfig.Load(p.params.BandConfigPath, mode.StripSize, mode.Bands)
	if err != nil {
		return err
	}
	p.summary.Header = table.Header
	p.summary.Provenance = Provenance(table.Header)

	var lg *ledger.Ledger
	if p.params.LedgerPath != "" {
		lg, err = ledger.Open(p.params.LedgerPath)
		if err != nil {
			return err
		}
		defer lg.Close()

		var runID int64
		runID, err = lg.BeginRun(ledger.RunInfo{
			Granule:      p.params.GranuleDir,
			Platform:     string(mode.Platform),
			Resolution:   string(mode.Resolution),
			ConfigHeader: table.Header,
			MedianShift:  p.params.MedianShift.String(),
		})
		if err != nil {
			return err
		}
		p.summary.RunID = runID
		defer func() {
			status := ledger.StatusCompleted
			if err != nil {
				status = ledger.StatusFailed
			}
			if ferr := lg.FinishRun(runID, status); ferr != nil && err == nil {
				err = ferr
			}
		}()
	}

	// Step 4: every configured band
	p.logf("Step 4: Destriping %d configured bands", len(table.Entries))
	for _, entry := range table.Entries {
		res := p.processBand(g, mode, geom, mirror, entry)
		if res.OK() {
			p.logf("Band %d: reference detector %d, median %d -> %d (shift %d), %s restored, %d repaired, striping %.2f -> %.2f in %s",
				res.Band, res.Result.ReferenceIndex, res.Result.MedianBefore, res.Result.MedianAfter,
				res.Result.MedianShift, humanize.Comma(int64(res.Result.Restored)), res.Repaired,
				res.Metrics.StripingBefore, res.Metrics.StripingAfter, res.Elapsed.Round(time.Millisecond))
		} else {
			p.logf("Warning: could not destripe band %d: %v", res.Band, res.Err)
		}
		p.summary.Bands = append(p.summary.Bands, res)

		if lg != nil {
			if err := lg.RecordBand(bandRecord(p.summary.RunID, res)); err != nil {
				return err
			}
		}
	}

	// Step 5: provenance
	if p.summary.Succeeded() == 0 {
		p.logf("Warning: no band was destriped; granule left unmarked")
		return nil
	}
	p.logf("Step 5: Recording provenance")
	g.SetAttribute(AttrDestriped, ToolTag)
	g.SetAttribute(AttrConfig, table.Header)
	if err := g.Save(); err != nil {
		return err
	}

	p.logf("Destriped %d of %d bands", p.summary.Succeeded(), len(p.summary.Bands))
	return nil
}

// probeGeometry derives the scan geometry from the mode's probe dataset.
func probeGeometry(g *granule.Granule, mode modis.Mode) (destripe.Geometry, error) {
	probe, err := g.Dataset(mode.ProbeDataset)
	if err != nil {
		return destripe.Geometry{}, err
	}
	geom := destripe.Geometry{
		Pixels:    probe.Pixels,
		Scans:     probe.Lines / mode.StripSize,
		StripSize: mode.StripSize,
	}
	if geom.Scans <= 1 {
		return destripe.Geometry{}, fmt.Errorf("%w: %d lines hold %d scans of %d", ErrTooFewScans, probe.Lines, geom.Scans, mode.StripSize)
	}
	if probe.Lines != geom.Lines() {
		return destripe.Geometry{}, fmt.Errorf("%w: %d lines is not a whole number of %d line scans",
			destripe.ErrConfiguration, probe.Lines, mode.StripSize)
	}
	return geom, geom.Validate()
}

func (p *Processor) processBand(g *granule.Granule, mode modis.Mode, geom destripe.Geometry,
	mirror models.MirrorSides, entry bandconfig.Entry) (res BandResult) {
	start := time.Now()
	res = BandResult{Band: entry.Band}
	defer func() { res.Elapsed = time.Since(start) }()

	name, plane, err := mode.Locate(entry.Band)
	if err != nil {
		res.Err = err
		return res
	}
	res.Dataset, res.Plane = name, plane

	info, err := g.Dataset(name)
	if err != nil {
		res.Err = err
		return res
	}
	if info.Pixels != geom.Pixels || info.Lines != geom.Lines() {
		res.Err = fmt.Errorf("%w: %s is %dx%d, granule is %dx%d", destripe.ErrConfiguration,
			name, info.Pixels, info.Lines, geom.Pixels, geom.Lines())
		return res
	}

	raw, err := g.ReadBand(name, plane)
	if err != nil {
		res.Err = err
		return res
	}
	res.rawHash = ledger.Fingerprint(raw.Data)

	out, err := destripe.Destripe(raw, geom, entry.Reference, mirror, destripe.Options{
		Workers:      p.params.NumCores,
		MedianShift:  p.params.MedianShift,
		MaxBandBytes: p.params.MaxBandBytes,
		BadDetectors: entry.Bad,
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.Result = out

	if entry.HasBad() {
		res.Repaired, err = destripe.RepairBadDetectors(out.Image, geom, entry.Bad)
		if err != nil {
			res.Err = err
			return res
		}
	}
	res.Metrics = destripe.Assess(raw, out.Image, geom)

	if err := g.WriteBand(name, plane, out.Image); err != nil {
		res.Err = err
		return res
	}
	res.outHash = ledger.Fingerprint(out.Image.Data)

	if p.params.QuicklookDir != "" {
		if _, _, err := visualization.SavePair(p.params.QuicklookDir, entry.Band, raw, out.Image); err != nil {
			p.logf("Warning: failed to save quicklooks for band %d: %v", entry.Band, err)
		}
	}
	return res
}

func bandRecord(runID int64, b BandResult) ledger.BandRecord {
	rec := ledger.BandRecord{
		RunID:   runID,
		Band:    b.Band,
		Dataset: b.Dataset,
		Plane:   b.Plane,
		Status:  b.Status(),
		RawHash: b.rawHash,
		OutHash: b.outHash,
		Elapsed: b.Elapsed,
	}
	if b.Err != nil {
		rec.Error = b.Err.Error()
	}
	if b.Result != nil {
		rec.Reference = b.Result.ReferenceIndex
		rec.MedianBefore = b.Result.MedianBefore
		rec.MedianAfter = b.Result.MedianAfter
		rec.MedianShift = b.Result.MedianShift
		rec.Restored = b.Result.Restored
	}
	if b.OK() {
		rec.Repaired = b.Repaired
		rec.StripingBefore = b.Metrics.StripingBefore
		rec.StripingAfter = b.Metrics.StripingAfter
	}
	return rec
}
