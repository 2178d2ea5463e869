// Package register holds the record model for patient register rows, the field
// normalizer applied to every recognized row, and the aggregator that assembles
// rows from many images into one table.
package register

import "github.com/joseph-ayodele/register-extractor/constants"

// Record maps a column name to its recognized text.
type Record map[string]string

// Clone returns an independent copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Get returns the value for field, or NA when it is absent.
func (r Record) Get(field string) string {
	if v, ok := r[field]; ok {
		return v
	}
	return constants.NA
}

// Table is the aggregate of all processed images, ready for display or export.
type Table struct {
	Columns []string
	Rows    []Record
}

// Len is the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// Values returns row i projected onto Columns.
func (t Table) Values(i int) []string {
	row := t.Rows[i]
	out := make([]string, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = row.Get(c)
	}
	return out
}
