// Package ledger records destriping runs and their per-band outcomes in a
// SQLite database so reruns and regressions can be audited after the fact.
package ledger

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/xxh3"

	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrNoRun is returned when a run id is not in the ledger.
var ErrNoRun = errors.New("ledger: no such run")

// RunInfo describes a run when it starts.
type RunInfo struct {
	Granule      string
	Platform     string
	Resolution   string
	ConfigHeader string
	MedianShift  string
	Started      time.Time
}

// Run is a stored run.
type Run struct {
	ID int64
	RunInfo
	Finished time.Time
	Status   string
}

// BandRecord is the outcome of one band. Status is "ok" or the failure kind.
type BandRecord struct {
	RunID   int64
	Band    int
	Dataset string
	Plane   int
	Status  string
	Error   string

	Reference      int
	MedianBefore   int32
	MedianAfter    int32
	MedianShift    int32
	Restored       int
	Repaired       int
	StripingBefore float64
	StripingAfter  float64

	// RawHash and OutHash fingerprint the band before and after correction
	RawHash string
	OutHash string
	Elapsed time.Duration
}

// Ledger is an open run ledger.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at path and ensures the schema exists.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: ensure dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    granule TEXT,
    platform TEXT,
    resolution TEXT,
    config_header TEXT,
    median_shift TEXT,
    started_at INTEGER,
    finished_at INTEGER,
    status TEXT
);
CREATE TABLE IF NOT EXISTS bands (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER REFERENCES runs(id),
    band INTEGER,
    dataset TEXT,
    plane INTEGER,
    status TEXT,
    error TEXT,
    reference INTEGER,
    median_before INTEGER,
    median_after INTEGER,
    median_shift INTEGER,
    restored INTEGER,
    repaired INTEGER,
    striping_before REAL,
    striping_after REAL,
    raw_hash TEXT,
    out_hash TEXT,
    elapsed_ms INTEGER
);
CREATE INDEX IF NOT EXISTS bands_run ON bands(run_id, band);`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// BeginRun inserts a running run and returns its id.
func (l *Ledger) BeginRun(info RunInfo) (int64, error) {
	if info.Started.IsZero() {
		info.Started = time.Now()
	}
	res, err := l.db.Exec(`
INSERT INTO runs (granule, platform, resolution, config_header, median_shift, started_at, status)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		info.Granule,
		info.Platform,
		info.Resolution,
		info.ConfigHeader,
		info.MedianShift,
		info.Started.UTC().UnixMilli(),
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("ledger: begin run: %w", err)
	}
	return res.LastInsertId()
}

// RecordBand stores the outcome of one band.
func (l *Ledger) RecordBand(b BandRecord) error {
	_, err := l.db.Exec(`
INSERT INTO bands (
    run_id, band, dataset, plane, status, error,
    reference, median_before, median_after, median_shift, restored, repaired,
    striping_before, striping_after, raw_hash, out_hash, elapsed_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.RunID,
		b.Band,
		b.Dataset,
		b.Plane,
		b.Status,
		b.Error,
		b.Reference,
		b.MedianBefore,
		b.MedianAfter,
		b.MedianShift,
		b.Restored,
		b.Repaired,
		b.StripingBefore,
		b.StripingAfter,
		b.RawHash,
		b.OutHash,
		b.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("ledger: record band %d: %w", b.Band, err)
	}
	return nil
}

// FinishRun marks a run as finished with the given status.
func (l *Ledger) FinishRun(id int64, status string) error {
	res, err := l.db.Exec(`UPDATE runs SET finished_at = ?, status = ? WHERE id = ?`,
		time.Now().UTC().UnixMilli(), status, id)
	if err != nil {
		return fmt.Errorf("ledger: finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrNoRun, id)
	}
	return nil
}

// Run returns a stored run.
func (l *Ledger) Run(id int64) (Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	err := l.db.QueryRow(`
SELECT id, granule, platform, resolution, config_header, median_shift, started_at, finished_at, status
FROM runs WHERE id = ?`, id).Scan(
		&r.ID, &r.Granule, &r.Platform, &r.Resolution, &r.ConfigHeader, &r.MedianShift,
		&started, &finished, &r.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %d", ErrNoRun, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("ledger: run %d: %w", id, err)
	}
	r.Started = time.UnixMilli(started).UTC()
	if finished.Valid {
		r.Finished = time.UnixMilli(finished.Int64).UTC()
	}
	return r, nil
}

// Bands returns the band records of a run ordered by band number.
func (l *Ledger) Bands(runID int64) ([]BandRecord, error) {
	rows, err := l.db.Query(`
SELECT run_id, band, dataset, plane, status, error,
    reference, median_before, median_after, median_shift, restored, repaired,
    striping_before, striping_after, raw_hash, out_hash, elapsed_ms
FROM bands WHERE run_id = ? ORDER BY band`, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger: query bands: %w", err)
	}
	defer rows.Close()

	var out []BandRecord
	for rows.Next() {
		var (
			b       BandRecord
			elapsed int64
		)
		if err := rows.Scan(
			&b.RunID, &b.Band, &b.Dataset, &b.Plane, &b.Status, &b.Error,
			&b.Reference, &b.MedianBefore, &b.MedianAfter, &b.MedianShift, &b.Restored, &b.Repaired,
			&b.StripingBefore, &b.StripingAfter, &b.RawHash, &b.OutHash, &elapsed,
		); err != nil {
			return nil, fmt.Errorf("ledger: scan band: %w", err)
		}
		b.Elapsed = time.Duration(elapsed) * time.Millisecond
		out = append(out, b)
	}
	return out, rows.Err()
}

// Fingerprint returns a stable hash of a band's samples.
func Fingerprint(data []int32) string {
	buf := make([]byte, 0, len(data)*4)
	for _, v := range data {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
	}
	return fmt.Sprintf("%016x", xxh3.Hash(buf))
}
