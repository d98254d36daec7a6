// Package columns resolves which header columns carry the strain identifier
// and the measurement value of a collection.
package columns

import (
	"fmt"

	"go.uber.org/multierr"
)

const (
	// Strain is the canonical name of the strain identifier column.
	Strain = "strain"
	// Value is the canonical name of the measurement value column.
	Value = "value"
)

// Options carries the user overrides. Empty fields fall back to the canonical names.
type Options struct {
	StrainColumn string
	ValueColumn  string
}

// Mapping is the resolved pair of source columns.
type Mapping struct {
	Strain string
	Value  string
}

// Renamed reports whether either source column differs from its canonical name.
func (m Mapping) Renamed() bool {
	return m.Strain != Strain || m.Value != Value
}

// ColumnCollisionError reports an override that would shadow an existing
// canonically named column.
type ColumnCollisionError struct {
	Canonical string
	Column    string
}

func (e *ColumnCollisionError) Error() string {
	return fmt.Sprintf("Cannot use provided %s column %q as %q because a %q column already exists in collection TSV.",
		e.Canonical, e.Column, e.Canonical, e.Canonical)
}

// ColumnIdentityError reports that the strain and value columns resolve to the same column.
type ColumnIdentityError struct {
	Column string
}

func (e *ColumnIdentityError) Error() string {
	return fmt.Sprintf("The strain column and value column cannot be the same column (%q).", e.Column)
}

// MissingColumnError reports a resolved strain or value column absent from the header.
type MissingColumnError struct {
	Purpose string
	Column  string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("Provided %s column %q does not exist in collection TSV.", e.Purpose, e.Column)
}

// Resolve validates the overrides against header and returns the column mapping.
// An identity conflict is returned on its own; every other problem is collected
// so that a single call reports all of them.
func Resolve(header []string, opts Options) (Mapping, error) {
	m := Mapping{Strain: opts.StrainColumn, Value: opts.ValueColumn}
	if m.Strain == "" {
		m.Strain = Strain
	}
	if m.Value == "" {
		m.Value = Value
	}
	if m.Strain == m.Value {
		return Mapping{}, &ColumnIdentityError{Column: m.Strain}
	}

	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[h] = struct{}{}
	}

	var errs error
	for _, c := range []struct{ canonical, column string }{
		{Strain, m.Strain},
		{Value, m.Value},
	} {
		if _, ok := present[c.column]; !ok {
			errs = multierr.Append(errs, &MissingColumnError{Purpose: c.canonical, Column: c.column})
		}
		if c.column == c.canonical {
			continue
		}
		if _, ok := present[c.canonical]; ok {
			errs = multierr.Append(errs, &ColumnCollisionError{Canonical: c.canonical, Column: c.column})
		}
	}
	if errs != nil {
		return Mapping{}, errs
	}
	return m, nil
}
