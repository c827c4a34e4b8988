// Package bandconfig loads the per-band destriping table of an instrument
// mode: for every band, the physical reference detector and which physical
// detectors are permanently bad.
//
// The table is a text file. Its first line is a free-form header that is
// recorded in the provenance of destriped output. Every following non-blank
// line holds comma-separated integers:
//
//	band, reference, flag0, flag1, ..., flag{stripsize-1}
//
// where a flag of 1 marks a bad detector.
package bandconfig

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformed is returned for a table that cannot be parsed or contradicts
// itself.
var ErrMalformed = errors.New("bandconfig: malformed band table")

// Entry is the configuration of one band.
type Entry struct {
	// Band is the instrument band number, starting at 1
	Band int

	// Reference is the physical detector every other detector is matched to
	Reference int

	// Bad flags the physical detectors replaced after destriping
	Bad []bool
}

// HasBad reports whether any detector of the band is flagged bad.
func (e Entry) HasBad() bool {
	for _, b := range e.Bad {
		if b {
			return true
		}
	}
	return false
}

// GoodDetectors returns the indices of the detectors not flagged bad.
func (e Entry) GoodDetectors() []int {
	good := make([]int, 0, len(e.Bad))
	for i, b := range e.Bad {
		if !b {
			good = append(good, i)
		}
	}
	return good
}

// Table is a parsed band configuration.
type Table struct {
	Header    string
	StripSize int

	// Entries are sorted by band number
	Entries []Entry
}

// Lookup returns the entry of a band.
func (t *Table) Lookup(band int) (Entry, bool) {
	i := sort.Search(len(t.Entries), func(i int) bool { return t.Entries[i].Band >= band })
	if i < len(t.Entries) && t.Entries[i].Band == band {
		return t.Entries[i], true
	}
	return Entry{}, false
}

// Load reads the table at path.
func Load(path string, stripSize, nBands int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening band config: %w", err)
	}
	defer f.Close()

	t, err := Parse(f, stripSize, nBands)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse reads a table for a mode with the given strip size and band count.
// Lines for bands outside [1, nBands] are ignored.
func Parse(r io.Reader, stripSize, nBands int) (*Table, error) {
	if stripSize <= 0 || nBands <= 0 {
		return nil, fmt.Errorf("%w: strip size %d and band count %d must be positive", ErrMalformed, stripSize, nBands)
	}

	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	if header == "" {
		return nil, fmt.Errorf("%w: missing header line", ErrMalformed)
	}

	t := &Table{
		Header:    strings.TrimRight(header, "\r\n"),
		StripSize: stripSize,
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	seen := make(map[int]bool)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		line, _ := cr.FieldPos(0)

		fields, err := parseInts(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line+1, err)
		}
		if len(fields) == 0 {
			continue
		}
		band := fields[0]
		if band < 1 || band > nBands {
			continue
		}
		if len(fields) != stripSize+2 {
			return nil, fmt.Errorf("%w: line %d: band %d has %d values, need %d",
				ErrMalformed, line+1, band, len(fields), stripSize+2)
		}
		if seen[band] {
			return nil, fmt.Errorf("%w: line %d: band %d listed twice", ErrMalformed, line+1, band)
		}
		seen[band] = true

		e, err := newEntry(band, fields[1], fields[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line+1, err)
		}
		t.Entries = append(t.Entries, e)
	}

	sort.Slice(t.Entries, func(i, j int) bool { return t.Entries[i].Band < t.Entries[j].Band })
	return t, nil
}

func newEntry(band, ref int, flags []int) (Entry, error) {
	if ref < 0 || ref >= len(flags) {
		return Entry{}, fmt.Errorf("band %d: reference detector %d outside [0,%d)", band, ref, len(flags))
	}
	e := Entry{Band: band, Reference: ref, Bad: make([]bool, len(flags))}
	for i, f := range flags {
		switch f {
		case 0:
		case 1:
			e.Bad[i] = true
		default:
			return Entry{}, fmt.Errorf("band %d: detector %d flag %d is neither 0 nor 1", band, i, f)
		}
	}
	return e, nil
}

func parseInts(rec []string) ([]int, error) {
	out := make([]int, 0, len(rec))
	for _, s := range rec {
		s = strings.TrimSpace(s)
		if s == "" && len(rec) == 1 {
			return nil, nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("value %q is not an integer", s)
		}
		out = append(out, v)
	}
	return out, nil
}
