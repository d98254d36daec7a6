package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
)

// MissingConfigFieldError reports a field that no layer set.
type MissingConfigFieldError struct {
	Field string
}

func (e *MissingConfigFieldError) Error() string {
	return fmt.Sprintf("Missing required configuration %q: set it in the collection config or with --%s.", e.Field, e.Field)
}

// InvalidConfigFieldError reports a merged field that failed validation.
type InvalidConfigFieldError struct {
	Field string
	Value any
	Rule  string
}

func (e *InvalidConfigFieldError) Error() string {
	return fmt.Sprintf("key=%q, value=\"%v\", failed %q validation", e.Field, e.Value, e.Rule)
}

// With returns a new overlay where every field set on upper replaces the
// receiver's value. Neither input is modified.
func (o Overlay) With(upper Overlay) Overlay {
	out := o
	if upper.Key != nil {
		out.Key = upper.Key
	}
	if upper.Title != nil {
		out.Title = upper.Title
	}
	if upper.XAxisLabel != nil {
		out.XAxisLabel = upper.XAxisLabel
	}
	if upper.Threshold != nil {
		out.Threshold = upper.Threshold
	}
	if upper.Fields != nil {
		out.Fields = upper.Fields
	}
	if upper.Groupings != nil {
		out.Groupings = upper.Groupings
	}
	if upper.Filters != nil {
		out.Filters = upper.Filters
	}
	if upper.GroupBy != nil {
		out.GroupBy = upper.GroupBy
	}
	if upper.MeasurementsDisplay != nil {
		out.MeasurementsDisplay = upper.MeasurementsDisplay
	}
	if upper.ShowOverallMean != nil {
		out.ShowOverallMean = upper.ShowOverallMean
	}
	if upper.ShowThreshold != nil {
		out.ShowThreshold = upper.ShowThreshold
	}
	return out
}

// Merge folds layers in ascending precedence and resolves the result into a
// CollectionConfig. Every missing or invalid field is reported.
func Merge(layers ...Overlay) (CollectionConfig, error) {
	var acc Overlay
	for _, l := range layers {
		acc = acc.With(l)
	}

	var errs error
	required := []struct {
		name string
		set  bool
	}{
		{"key", acc.Key != nil},
		{"title", acc.Title != nil},
		{"x-axis-label", acc.XAxisLabel != nil},
		{"grouping-column", acc.Groupings != nil},
		{"measurements-display", acc.MeasurementsDisplay != nil},
		{"show-overall-mean", acc.ShowOverallMean != nil},
		{"show-threshold", acc.ShowThreshold != nil},
	}
	for _, r := range required {
		if !r.set {
			errs = multierr.Append(errs, &MissingConfigFieldError{Field: r.name})
		}
	}
	if errs != nil {
		return CollectionConfig{}, errs
	}

	cfg := CollectionConfig{
		Key:                 *acc.Key,
		Title:               *acc.Title,
		XAxisLabel:          *acc.XAxisLabel,
		Fields:              slices.Clone(acc.Fields),
		Groupings:           cloneGroupings(acc.Groupings),
		Filters:             cloneOrEmpty(acc.Filters),
		GroupBy:             cloneOrEmpty(acc.GroupBy),
		MeasurementsDisplay: *acc.MeasurementsDisplay,
		ShowOverallMean:     *acc.ShowOverallMean,
		ShowThreshold:       *acc.ShowThreshold,
	}
	if acc.Threshold != nil {
		t := *acc.Threshold
		cfg.Threshold = &t
	}
	if err := Validate(cfg); err != nil {
		return CollectionConfig{}, err
	}
	return cfg, nil
}

func cloneOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

func cloneGroupings(in []Grouping) []Grouping {
	out := make([]Grouping, len(in))
	for i, g := range in {
		out[i] = Grouping{Key: g.Key, Order: slices.Clone(g.Order)}
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the structural rules of a merged configuration.
func Validate(cfg CollectionConfig) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var errs error
	for _, e := range verrs {
		errs = multierr.Append(errs, &InvalidConfigFieldError{
			Field: strings.TrimPrefix(e.Namespace(), "CollectionConfig."),
			Value: e.Value(),
			Rule:  e.ActualTag(),
		})
	}
	return errs
}
