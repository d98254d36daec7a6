// Package config resolves the per-collection export configuration from
// built-in defaults, an optional collection-config document and command-line
// overrides.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// DisplayMode selects how measurements are displayed by default.
type DisplayMode string

const (
	// DisplayRaw shows every individual measurement.
	DisplayRaw DisplayMode = "raw"
	// DisplayMean shows the mean of each group.
	DisplayMean DisplayMode = "mean"
)

// DisplayModes lists the accepted display modes.
var DisplayModes = []DisplayMode{DisplayRaw, DisplayMean}

// ParseDisplayMode validates s as a DisplayMode.
func ParseDisplayMode(s string) (DisplayMode, error) {
	m := DisplayMode(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(DisplayModes, m) {
		return m, nil
	}
	return "", fmt.Errorf("unknown measurements display %q (want raw|mean)", s)
}

const (
	// DefaultXAxisLabel is used when no layer names the x-axis.
	DefaultXAxisLabel = "measurements"
)

// Field gives a display title to a data column.
type Field struct {
	Key   string `json:"key" validate:"required"`
	Title string `json:"title,omitempty"`
}

// Grouping is a grouping column with an optional explicit value order.
type Grouping struct {
	Key   string   `json:"key" validate:"required"`
	Order []string `json:"order,omitempty"`
}

// UnmarshalJSON accepts either a bare column name or a {"key","order"} object.
func (g *Grouping) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*g = Grouping{Key: name}
		return nil
	}
	type plain Grouping
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*g = Grouping(p)
	return nil
}

// GroupingsFromColumns builds groupings without explicit orders.
func GroupingsFromColumns(cols []string) []Grouping {
	out := make([]Grouping, 0, len(cols))
	for _, c := range cols {
		out = append(out, Grouping{Key: c})
	}
	return out
}

// CollectionConfig is the fully resolved configuration of one collection. It
// is produced by Merge and never modified afterwards.
type CollectionConfig struct {
	Key                 string      `json:"key" validate:"required"`
	Title               string      `json:"title" validate:"required"`
	XAxisLabel          string      `json:"x_axis_label" validate:"required"`
	Threshold           *float64    `json:"threshold,omitempty"`
	Fields              []Field     `json:"fields,omitempty" validate:"dive"`
	Groupings           []Grouping  `json:"groupings" validate:"required,min=1,dive"`
	Filters             []string    `json:"filters" validate:"dive,required"`
	GroupBy             []string    `json:"group_by" validate:"dive,required"`
	MeasurementsDisplay DisplayMode `json:"measurements_display" validate:"oneof=raw mean"`
	ShowOverallMean     bool        `json:"show_overall_mean"`
	ShowThreshold       bool        `json:"show_threshold"`
}

// GroupingColumns returns the grouping column names in declared order.
func (c CollectionConfig) GroupingColumns() []string {
	out := make([]string, 0, len(c.Groupings))
	for _, g := range c.Groupings {
		out = append(out, g.Key)
	}
	return out
}

// Overlay is one configuration layer. A nil pointer or nil slice leaves the
// field unset so that a lower layer shows through; a non-nil slice, even an
// empty one, replaces the lower layer's list.
type Overlay struct {
	Key                 *string
	Title               *string
	XAxisLabel          *string
	Threshold           *float64
	Fields              []Field
	Groupings           []Grouping
	Filters             []string
	GroupBy             []string
	MeasurementsDisplay *DisplayMode
	ShowOverallMean     *bool
	ShowThreshold       *bool
}

// Defaults returns the built-in layer for a collection read from source.
// The key is the base name of source without its extension and the title
// repeats the key.
func Defaults(source string) Overlay {
	key := DefaultKey(source)
	display := DisplayRaw
	no := false
	label := DefaultXAxisLabel
	return Overlay{
		Key:                 &key,
		Title:               &key,
		XAxisLabel:          &label,
		Filters:             []string{},
		GroupBy:             []string{},
		MeasurementsDisplay: &display,
		ShowOverallMean:     &no,
		ShowThreshold:       &no,
	}
}

// DefaultKey derives a collection key from its source path.
func DefaultKey(source string) string {
	base := filepath.Base(source)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// Ptr returns a pointer to v; it keeps overlay literals short.
func Ptr[T any](v T) *T {
	return &v
}
