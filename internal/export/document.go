package export

import (
	"bytes"
	"encoding/json"
	"slices"

	"pkt.systems/measurements/internal/config"
	"pkt.systems/measurements/internal/loader"
)

// Document is the exported JSON document.
type Document struct {
	Collections       []CollectionOutput `json:"collections"`
	DefaultCollection string             `json:"default_collection,omitempty"`
}

// CollectionOutput is one collection as it appears in the document.
type CollectionOutput struct {
	Key             string            `json:"key"`
	Title           string            `json:"title"`
	XAxisLabel      string            `json:"x_axis_label"`
	Threshold       *float64          `json:"threshold,omitempty"`
	Fields          []config.Field    `json:"fields,omitempty"`
	Groupings       []config.Grouping `json:"groupings"`
	Filters         []string          `json:"filters"`
	DisplayDefaults DisplayDefaults   `json:"display_defaults"`
	Measurements    []loader.Record   `json:"measurements"`
}

// DisplayDefaults are the initial view settings of a collection.
type DisplayDefaults struct {
	GroupBy             []string           `json:"group_by,omitempty"`
	MeasurementsDisplay config.DisplayMode `json:"measurements_display"`
	ShowOverallMean     bool               `json:"show_overall_mean"`
	ShowThreshold       bool               `json:"show_threshold"`
}

// Loaded pairs a loaded collection with its resolved configuration.
type Loaded struct {
	Collection loader.Collection
	Config     config.CollectionConfig
}

// Metadata carries document-level settings.
type Metadata struct {
	// DefaultCollection, when set, must be the key of one collection.
	DefaultCollection string
}

// Assemble builds the document from loaded collections in input order.
// Duplicate keys are passed through unchanged.
func Assemble(loaded []Loaded, meta Metadata) (Document, error) {
	doc := Document{Collections: make([]CollectionOutput, 0, len(loaded))}
	for _, l := range loaded {
		doc.Collections = append(doc.Collections, collectionOutput(l))
	}
	if err := applyDefault(doc.keys(), meta.DefaultCollection); err != nil {
		return Document{}, err
	}
	doc.DefaultCollection = meta.DefaultCollection
	return doc, nil
}

func collectionOutput(l Loaded) CollectionOutput {
	cfg := l.Config
	records := l.Collection.Records
	if records == nil {
		records = []loader.Record{}
	}
	out := CollectionOutput{
		Key:        cfg.Key,
		Title:      cfg.Title,
		XAxisLabel: cfg.XAxisLabel,
		Fields:     slices.Clone(cfg.Fields),
		Groupings:  slices.Clone(cfg.Groupings),
		Filters:    slices.Clone(cfg.Filters),
		DisplayDefaults: DisplayDefaults{
			GroupBy:             slices.Clone(cfg.GroupBy),
			MeasurementsDisplay: cfg.MeasurementsDisplay,
			ShowOverallMean:     cfg.ShowOverallMean,
			ShowThreshold:       cfg.ShowThreshold,
		},
		Measurements: records,
	}
	if out.Filters == nil {
		out.Filters = []string{}
	}
	if cfg.Threshold != nil {
		t := *cfg.Threshold
		out.Threshold = &t
	}
	return out
}

func (d Document) keys() []string {
	out := make([]string, 0, len(d.Collections))
	for _, c := range d.Collections {
		out = append(out, c.Key)
	}
	return out
}

func applyDefault(keys []string, def string) error {
	if def == "" || slices.Contains(keys, def) {
		return nil
	}
	return &UnknownDefaultCollectionError{Key: def, Available: keys}
}

// Encode renders v as JSON, indented unless minify is set. The output always
// ends with a newline.
func Encode(v any, minify bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if !minify {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
