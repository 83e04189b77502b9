package kv

import (
	"encoding/json"
	"sort"

	"github.com/influxdata/kvquery"
)

// cell is one column value with the timestamp of the write that set it.
type cell struct {
	Value string `json:"value"`
	TS    uint64 `json:"ts"`
}

// document is the stored form of a row. Deleted is the timestamp of the
// latest delete; cells written before it are gone.
type document struct {
	Deleted uint64          `json:"deleted,omitempty"`
	Columns map[string]cell `json:"columns"`
}

func newDocument() *document {
	return &document{Columns: map[string]cell{}}
}

func decodeDocument(v []byte) (*document, error) {
	doc := newDocument()
	if err := json.Unmarshal(v, doc); err != nil {
		return nil, &corruptDocumentError{err: err}
	}
	if doc.Columns == nil {
		doc.Columns = map[string]cell{}
	}
	return doc, nil
}

func (d *document) encode() ([]byte, error) {
	return json.Marshal(d)
}

// set applies a write of value at ts. It reports the previous live value
// and whether the stored value changed.
func (d *document) set(column, value string, ts uint64) (prev string, hadPrev, changed bool) {
	if ts <= d.Deleted {
		return "", false, false
	}
	old, ok := d.Columns[column]
	if ok && old.TS > ts {
		return "", false, false
	}
	prev, hadPrev = old.Value, ok && old.Value != kvquery.Null
	d.Columns[column] = cell{Value: value, TS: ts}
	return prev, hadPrev, true
}

// remove records a delete at ts and returns the live values it dropped.
func (d *document) remove(ts uint64) map[string]string {
	if ts > d.Deleted {
		d.Deleted = ts
	}
	dropped := map[string]string{}
	for col, c := range d.Columns {
		if c.TS <= d.Deleted {
			if c.Value != kvquery.Null {
				dropped[col] = c.Value
			}
			delete(d.Columns, col)
		}
	}
	return dropped
}

// live returns the current value of column, treating explicit nulls as
// absent.
func (d *document) live(column string) (string, bool) {
	c, ok := d.Columns[column]
	if !ok || c.Value == kvquery.Null {
		return "", false
	}
	return c.Value, true
}

// slice converts the document into the KeySlice returned to callers, keeping
// at most maxColumns live columns in column name order. maxColumns <= 0
// means no limit.
func (d *document) slice(key string, maxColumns int) kvquery.KeySlice {
	names := make([]string, 0, len(d.Columns))
	for col, c := range d.Columns {
		if c.Value != kvquery.Null {
			names = append(names, col)
		}
	}
	sort.Strings(names)
	if maxColumns > 0 && len(names) > maxColumns {
		names = names[:maxColumns]
	}

	ks := kvquery.KeySlice{Key: key, Columns: make(kvquery.Row, len(names))}
	for _, col := range names {
		ks.Columns[col] = d.Columns[col].Value
	}
	return ks
}
