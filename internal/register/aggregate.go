package register

import (
	"sort"

	"github.com/joseph-ayodele/register-extractor/constants"
)

// Batch is the normalized output of a single image.
type Batch struct {
	Source  string
	Records []Record
	Keys    []string // field order as the image's response listed them
}

// Aggregator accumulates records from images in submission order.
// It is not safe for concurrent use; the pipeline feeds it from one goroutine.
type Aggregator struct {
	rows   []Record
	extras []string
	seen   map[string]struct{}
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	seen := map[string]struct{}{constants.FieldSourceFile: {}}
	for _, f := range constants.CanonicalFields() {
		seen[f] = struct{}{}
	}
	return &Aggregator{seen: seen}
}

// Add appends recs stamped with source. Input records are not modified.
// keys gives the order in which new columns are registered; a key missing from
// it sorts after the listed ones, alphabetically.
func (a *Aggregator) Add(source string, recs []Record, keys []string) {
	rank := make(map[string]int, len(keys))
	for i, k := range keys {
		if _, ok := rank[k]; !ok {
			rank[k] = i
		}
	}
	for _, r := range recs {
		row := r.Clone()
		row[constants.FieldSourceFile] = source

		var fresh []string
		for k := range r {
			if _, ok := a.seen[k]; !ok {
				fresh = append(fresh, k)
			}
		}
		sort.Slice(fresh, func(i, j int) bool {
			ri, iok := rank[fresh[i]]
			rj, jok := rank[fresh[j]]
			switch {
			case iok && jok:
				return ri < rj
			case iok != jok:
				return iok
			default:
				return fresh[i] < fresh[j]
			}
		})
		for _, k := range fresh {
			a.seen[k] = struct{}{}
		}
		a.extras = append(a.extras, fresh...)
		a.rows = append(a.rows, row)
	}
}

// Len is the number of rows accumulated so far.
func (a *Aggregator) Len() int { return len(a.rows) }

// Table snapshots the accumulated rows. Columns are canonical fields, SourceFile,
// then extra fields in first-seen order; any column a row lacks is filled with NA.
func (a *Aggregator) Table() Table {
	cols := append(constants.CanonicalFields(), constants.FieldSourceFile)
	cols = append(cols, a.extras...)

	rows := make([]Record, 0, len(a.rows))
	for _, r := range a.rows {
		row := r.Clone()
		for _, c := range cols {
			if _, ok := row[c]; !ok {
				row[c] = constants.NA
			}
		}
		rows = append(rows, row)
	}
	return Table{Columns: cols, Rows: rows}
}

// Aggregate is the one-shot form of Aggregator.
func Aggregate(batches []Batch) Table {
	a := NewAggregator()
	for _, b := range batches {
		a.Add(b.Source, b.Records, b.Keys)
	}
	return a.Table()
}
