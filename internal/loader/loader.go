package loader

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"pkt.systems/measurements/internal/columns"
	"pkt.systems/measurements/internal/config"
)

// Record is one measurement row.
type Record struct {
	Strain string
	Value  float64
	Fields map[string]string
}

// MarshalJSON flattens the record into a single object keyed by column name
// with the canonical strain and value keys.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		out[k] = v
	}
	out[columns.Strain] = r.Strain
	out[columns.Value] = r.Value
	return json.Marshal(out)
}

// Collection is a loaded table with its resolved column mapping.
type Collection struct {
	Source       string
	StrainColumn string
	ValueColumn  string
	Groupings    []string
	Records      []Record
}

// Options tunes which extra columns survive projection.
type Options struct {
	// IncludeColumns are carried into every record in addition to the
	// columns referenced by the configuration.
	IncludeColumns []string
}

// MissingDataColumnError reports a configured column absent from the table header.
type MissingDataColumnError struct {
	Purpose string
	Column  string
}

func (e *MissingDataColumnError) Error() string {
	return fmt.Sprintf("Provided %s column %q does not exist in collection TSV.", e.Purpose, e.Column)
}

// InvalidValueError reports a value cell that is not a finite number. Row is
// 1-based and counts data rows after the header.
type InvalidValueError struct {
	Row   int
	Value string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("Row %d has a non-numeric value %q in the value column.", e.Row, e.Value)
}

type reference struct {
	purpose string
	column  string
}

// references lists every column the configuration and options point at, in
// declaration order: grouping, filter, group-by, field and included columns.
func references(cfg config.CollectionConfig, opts Options) []reference {
	var refs []reference
	for _, g := range cfg.Groupings {
		refs = append(refs, reference{"grouping", g.Key})
	}
	for _, f := range cfg.Filters {
		refs = append(refs, reference{"filter", f})
	}
	for _, g := range cfg.GroupBy {
		refs = append(refs, reference{"group-by", g})
	}
	for _, f := range cfg.Fields {
		refs = append(refs, reference{"field", f.Key})
	}
	for _, c := range opts.IncludeColumns {
		refs = append(refs, reference{"included", c})
	}
	return refs
}

// Load validates the configured columns against the table and converts its
// rows into records. All missing columns and bad values are reported together.
func Load(t *Table, m columns.Mapping, cfg config.CollectionConfig, opts Options) (Collection, error) {
	idx := t.Index()

	var errs error
	missing := map[string]bool{}
	kept := map[string]bool{}
	var projected []string
	for _, ref := range references(cfg, opts) {
		if _, ok := idx[ref.column]; !ok {
			if !missing[ref.column] {
				missing[ref.column] = true
				errs = multierr.Append(errs, &MissingDataColumnError{Purpose: ref.purpose, Column: ref.column})
			}
			continue
		}
		// The canonical names are always emitted; a renamed strain or value
		// column keeps its source name as well.
		if ref.column == columns.Strain || ref.column == columns.Value || kept[ref.column] {
			continue
		}
		kept[ref.column] = true
		projected = append(projected, ref.column)
	}

	strainIdx, ok := idx[m.Strain]
	if !ok {
		return Collection{}, multierr.Append(errs, &columns.MissingColumnError{Purpose: columns.Strain, Column: m.Strain})
	}
	valueIdx, ok := idx[m.Value]
	if !ok {
		return Collection{}, multierr.Append(errs, &columns.MissingColumnError{Purpose: columns.Value, Column: m.Value})
	}

	records := make([]Record, 0, len(t.Rows))
	for i, row := range t.Rows {
		raw := cell(row, valueIdx)
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			errs = multierr.Append(errs, &InvalidValueError{Row: i + 1, Value: raw})
			continue
		}
		fields := make(map[string]string, len(projected))
		for _, col := range projected {
			fields[col] = cell(row, idx[col])
		}
		records = append(records, Record{Strain: cell(row, strainIdx), Value: v, Fields: fields})
	}
	if errs != nil {
		return Collection{}, errs
	}

	return Collection{
		Source:       t.Source,
		StrainColumn: m.Strain,
		ValueColumn:  m.Value,
		Groupings:    cfg.GroupingColumns(),
		Records:      records,
	}, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
