package dataset

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record is one row of a Dataset: column name to scalar value, in column order.
// A nil value or a missing key both mean the value is absent.
type Record struct {
	fields *orderedmap.OrderedMap[string, any]
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{fields: orderedmap.New[string, any]()}
}

// RecordOf builds a record from alternating column/value pairs.
// It panics on an odd argument count or a non-string column, so it is meant for literals.
func RecordOf(kv ...any) *Record {
	if len(kv)%2 != 0 {
		panic("dataset: RecordOf needs column/value pairs")
	}
	r := NewRecord()
	for i := 0; i < len(kv); i += 2 {
		col, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("dataset: column %v is not a string", kv[i]))
		}
		r.Set(col, kv[i+1])
	}
	return r
}

func (r *Record) init() {
	if r.fields == nil {
		r.fields = orderedmap.New[string, any]()
	}
}

// Set assigns a value, appending the column if it is new.
func (r *Record) Set(col string, v any) *Record {
	r.init()
	r.fields.Set(col, v)
	return r
}

// Get returns the raw value and whether the column key exists.
func (r *Record) Get(col string) (any, bool) {
	if r == nil || r.fields == nil {
		return nil, false
	}
	return r.fields.Get(col)
}

// Present reports whether the column exists with a non-nil value.
func (r *Record) Present(col string) bool {
	v, ok := r.Get(col)
	return ok && v != nil
}

// Keys returns the column names in insertion order.
func (r *Record) Keys() []string {
	if r == nil || r.fields == nil {
		return nil
	}
	keys := make([]string, 0, r.fields.Len())
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Len is the number of columns in the record.
func (r *Record) Len() int {
	if r == nil || r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Project copies the record keeping only the named columns, in the record's own order.
func (r *Record) Project(keep map[string]bool) *Record {
	out := NewRecord()
	if r == nil || r.fields == nil {
		return out
	}
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		if keep[p.Key] {
			out.fields.Set(p.Key, p.Value)
		}
	}
	return out
}

// Clone returns a shallow copy.
func (r *Record) Clone() *Record {
	out := NewRecord()
	if r == nil || r.fields == nil {
		return out
	}
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		out.fields.Set(p.Key, p.Value)
	}
	return out
}

// MarshalJSON writes the record as an object with keys in column order.
// HTML characters are written as-is.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil || r.fields == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		key, err := json.MarshalNoEscape(p.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.MarshalNoEscape(p.Value)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", p.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping its key order. Numbers are kept as
// json.Number so large integers survive unchanged.
func (r *Record) UnmarshalJSON(b []byte) error {
	raw := orderedmap.New[string, json.RawMessage]()
	if err := raw.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("%w: %v", ErrNotTabular, err)
	}
	r.fields = orderedmap.New[string, any](orderedmap.WithCapacity[string, any](raw.Len()))
	for p := raw.Oldest(); p != nil; p = p.Next() {
		v, err := decodeValue(p.Value)
		if err != nil {
			return fmt.Errorf("%w: column %q: %v", ErrNotTabular, p.Key, err)
		}
		r.fields.Set(p.Key, v)
	}
	return nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
