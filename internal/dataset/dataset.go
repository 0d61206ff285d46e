// Package dataset holds the tabular input of an insight run: ordered records
// that share a column universe but may omit keys.
package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

var (
	// ErrNoColumns is returned for a non-empty dataset without a single column.
	ErrNoColumns = errors.New("dataset has rows but no columns")
	// ErrNotTabular is returned when the input is neither an array of objects nor a single object.
	ErrNotTabular = errors.New("input is not tabular JSON")
)

// Dataset is an ordered sequence of records. An aggregate dataset wraps a single
// summary object and is never sampled or split.
type Dataset struct {
	records   []*Record
	aggregate bool
}

// New builds a row dataset.
func New(records ...*Record) *Dataset {
	return &Dataset{records: records}
}

// Aggregate wraps one summary object.
func Aggregate(rec *Record) *Dataset {
	if rec == nil {
		rec = NewRecord()
	}
	return &Dataset{records: []*Record{rec}, aggregate: true}
}

// IsAggregate reports whether the dataset is a single summary object.
func (d *Dataset) IsAggregate() bool { return d != nil && d.aggregate }

// Len is the row count. An aggregate counts as one row.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// Empty reports whether there is nothing to analyze.
func (d *Dataset) Empty() bool { return d.Len() == 0 }

// Records exposes the rows. Callers must not mutate the slice.
func (d *Dataset) Records() []*Record {
	if d == nil {
		return nil
	}
	return d.records
}

// Columns returns the union of all record keys in first-seen order.
func (d *Dataset) Columns() []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range d.Records() {
		for _, k := range r.Keys() {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

// Head returns up to n leading records.
func (d *Dataset) Head(n int) []*Record {
	recs := d.Records()
	if n < 0 {
		n = 0
	}
	if n > len(recs) {
		n = len(recs)
	}
	return recs[:n]
}

// Project keeps only the given columns in every record.
func (d *Dataset) Project(cols []string) *Dataset {
	keep := make(map[string]bool, len(cols))
	for _, c := range cols {
		keep[c] = true
	}
	out := &Dataset{aggregate: d.IsAggregate(), records: make([]*Record, 0, d.Len())}
	for _, r := range d.Records() {
		out.records = append(out.records, r.Project(keep))
	}
	return out
}

// Subset returns the records at the given indices, in index-list order.
func (d *Dataset) Subset(idx []int) *Dataset {
	recs := d.Records()
	out := &Dataset{records: make([]*Record, 0, len(idx))}
	for _, i := range idx {
		if i >= 0 && i < len(recs) {
			out.records = append(out.records, recs[i])
		}
	}
	return out
}

// Validate enforces that a non-empty dataset has at least one column.
func (d *Dataset) Validate() error {
	if d.Empty() {
		return nil
	}
	for _, r := range d.Records() {
		if r.Len() > 0 {
			return nil
		}
	}
	return ErrNoColumns
}

// MarshalJSON writes an array of records, or the bare object for an aggregate.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	if d.IsAggregate() {
		return json.MarshalNoEscape(d.records[0])
	}
	recs := d.Records()
	if recs == nil {
		recs = []*Record{}
	}
	return json.MarshalNoEscape(recs)
}

// ReadJSON decodes a JSON array of objects into a row dataset, or a single
// JSON object into an aggregate dataset.
func ReadJSON(r io.Reader) (*Dataset, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, ErrNotTabular
	}
	switch b[0] {
	case '{':
		rec := NewRecord()
		if err := rec.UnmarshalJSON(b); err != nil {
			return nil, err
		}
		ds := Aggregate(rec)
		if err := ds.Validate(); err != nil {
			return nil, err
		}
		return ds, nil
	case '[':
		var rows []json.RawMessage
		if err := json.Unmarshal(b, &rows); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotTabular, err)
		}
		ds := &Dataset{records: make([]*Record, 0, len(rows))}
		for i, raw := range rows {
			raw = bytes.TrimSpace(raw)
			if len(raw) == 0 || raw[0] != '{' {
				return nil, fmt.Errorf("%w: row %d is not an object", ErrNotTabular, i)
			}
			rec := NewRecord()
			if err := rec.UnmarshalJSON(raw); err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			ds.records = append(ds.records, rec)
		}
		if err := ds.Validate(); err != nil {
			return nil, err
		}
		return ds, nil
	default:
		return nil, ErrNotTabular
	}
}
