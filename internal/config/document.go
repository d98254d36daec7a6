package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

//go:embed schema/collection-config.json
var collectionConfigSchema []byte

// pseudoSchemaFile is the location the embedded schema is registered under.
const pseudoSchemaFile = "file:///collection-config.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(pseudoSchemaFile, bytes.NewReader(collectionConfigSchema)); err != nil {
		return nil, err
	}
	return c.Compile(pseudoSchemaFile)
})

// DocumentError reports a collection-config document that cannot be used.
type DocumentError struct {
	Path     string
	Location string
	Message  string
}

func (e *DocumentError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("Collection config %q is invalid at %q: %s", e.Path, e.Location, e.Message)
	}
	return fmt.Sprintf("Collection config %q is invalid: %s", e.Path, e.Message)
}

type displayDefaults struct {
	GroupBy             []string     `json:"group_by"`
	MeasurementsDisplay *DisplayMode `json:"measurements_display"`
	ShowOverallMean     *bool        `json:"show_overall_mean"`
	ShowThreshold       *bool        `json:"show_threshold"`
}

type settings struct {
	Key             *string          `json:"key"`
	Title           *string          `json:"title"`
	XAxisLabel      *string          `json:"x_axis_label"`
	Threshold       *float64         `json:"threshold"`
	Fields          []Field          `json:"fields"`
	Groupings       []Grouping       `json:"groupings"`
	Filters         []string         `json:"filters"`
	DisplayDefaults *displayDefaults `json:"display_defaults"`
}

func (s settings) overlay() Overlay {
	o := Overlay{
		Key:        s.Key,
		Title:      s.Title,
		XAxisLabel: s.XAxisLabel,
		Threshold:  s.Threshold,
		Fields:     s.Fields,
		Groupings:  s.Groupings,
		Filters:    s.Filters,
	}
	if d := s.DisplayDefaults; d != nil {
		o.GroupBy = d.GroupBy
		o.MeasurementsDisplay = d.MeasurementsDisplay
		o.ShowOverallMean = d.ShowOverallMean
		o.ShowThreshold = d.ShowThreshold
	}
	return o
}

type entry struct {
	Collection string `json:"collection"`
	settings
}

// Document is a parsed collection-config document.
type Document struct {
	Path        string
	settings    settings
	collections []entry
}

// ReadDocument loads a JSON or YAML (by .yaml/.yml extension) collection
// config from fsys and validates it against the embedded JSON schema.
func ReadDocument(fsys afero.Fs, path string) (*Document, error) {
	raw, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &DocumentError{Path: path, Message: "file does not exist"}
		}
		return nil, fmt.Errorf("read collection config %q: %w", path, err)
	}
	return ParseDocument(path, raw)
}

// ParseDocument validates and decodes raw. The path selects the syntax and
// appears in error messages.
func ParseDocument(path string, raw []byte) (*Document, error) {
	data, err := normalize(path, raw)
	if err != nil {
		return nil, &DocumentError{Path: path, Message: err.Error()}
	}

	var generic any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, &DocumentError{Path: path, Message: "not a valid JSON document: " + err.Error()}
	}
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile collection config schema: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, schemaErrors(path, ve)
		}
		return nil, err
	}

	var doc struct {
		settings
		Collections []entry `json:"collections"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &DocumentError{Path: path, Message: err.Error()}
	}
	return &Document{Path: path, settings: doc.settings, collections: doc.Collections}, nil
}

func normalize(path string, raw []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("not a valid YAML document: %w", err)
		}
		return json.Marshal(v)
	default:
		return raw, nil
	}
}

func schemaErrors(path string, ve *jsonschema.ValidationError) error {
	var leaves []*jsonschema.ValidationError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			leaves = append(leaves, e)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.SliceStable(leaves, func(i, j int) bool {
		return leaves[i].InstanceLocation < leaves[j].InstanceLocation
	})

	var errs error
	for _, l := range leaves {
		loc := l.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		errs = multierr.Append(errs, &DocumentError{Path: path, Location: loc, Message: l.Message})
	}
	return errs
}

// Overlays returns the document layers that apply to source: the top-level
// settings followed by the first collections entry naming source by path or
// base name.
func (d *Document) Overlays(source string) []Overlay {
	if d == nil {
		return nil
	}
	out := []Overlay{d.settings.overlay()}
	if e, ok := d.entryFor(source); ok {
		out = append(out, e.overlay())
	}
	return out
}

func (d *Document) entryFor(source string) (entry, bool) {
	base := filepath.Base(source)
	for _, e := range d.collections {
		if e.Collection == source || filepath.Clean(e.Collection) == filepath.Clean(source) || e.Collection == base {
			return e, true
		}
	}
	return entry{}, false
}

// UnmatchedEntries lists collections entries that name none of sources.
func (d *Document) UnmatchedEntries(sources []string) []string {
	if d == nil {
		return nil
	}
	var out []string
	for _, e := range d.collections {
		matched := false
		for _, s := range sources {
			if m, ok := d.entryFor(s); ok && m.Collection == e.Collection {
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, e.Collection)
		}
	}
	return out
}
