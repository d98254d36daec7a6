package measurements

import (
	"context"
	"runtime/debug"

	"pkt.systems/measurements/internal/columns"
	"pkt.systems/measurements/internal/config"
	"pkt.systems/measurements/internal/export"
	"pkt.systems/measurements/internal/settings"
)

// Public type aliases to the internal packages

type (
	// ExportOptions configure a single export run.
	ExportOptions = export.Options
	// ExportSummary aggregates collection results of an export run.
	ExportSummary = export.Summary
	// CollectionResult captures the outcome of a single collection.
	CollectionResult = export.CollectionResult
	// ConcatOptions configure a concat run.
	ConcatOptions = export.ConcatOptions
	// ConcatSummary describes a finished concat run.
	ConcatSummary = export.ConcatSummary
	// ColumnOptions rename the strain and value columns.
	ColumnOptions = columns.Options
	// Overlay is one configuration layer.
	Overlay = config.Overlay
	// CollectionConfig is a fully resolved collection configuration.
	CollectionConfig = config.CollectionConfig
	// Field gives a display title to a data column.
	Field = config.Field
	// Grouping is a grouping column with an optional value order.
	Grouping = config.Grouping
	// DisplayMode selects raw or mean display.
	DisplayMode = config.DisplayMode
	// Settings are read from MEASUREMENTS_* environment variables.
	Settings = settings.Settings
)

// Error types callers match with errors.As.
type (
	LoadAggregateError            = export.LoadAggregateError
	ConcatError                   = export.ConcatError
	CollectionError               = export.CollectionError
	UnknownDefaultCollectionError = export.UnknownDefaultCollectionError
	SchemaViolationError          = export.SchemaViolationError
	ColumnCollisionError          = columns.ColumnCollisionError
	ColumnIdentityError           = columns.ColumnIdentityError
	MissingConfigFieldError       = config.MissingConfigFieldError
	InvalidConfigFieldError       = config.InvalidConfigFieldError
	DocumentError                 = config.DocumentError
)

const (
	DisplayRaw  = config.DisplayRaw
	DisplayMean = config.DisplayMean
)

var (
	// GroupingsFromColumns builds groupings without explicit orders.
	GroupingsFromColumns = config.GroupingsFromColumns
	// ParseDisplayMode validates a display mode name.
	ParseDisplayMode = config.ParseDisplayMode
	// LoadSettings reads Settings from the environment.
	LoadSettings = settings.Load
)

// Ptr returns a pointer to v, for Overlay literals.
func Ptr[T any](v T) *T { return &v }

// Export writes the measurements document for opts.Collections.
func Export(ctx context.Context, opts ExportOptions) (ExportSummary, error) {
	return export.Export(ctx, opts)
}

// Concat merges previously exported documents into one.
func Concat(ctx context.Context, opts ConcatOptions) (ConcatSummary, error) {
	return export.Concat(ctx, opts)
}

// ValidateJSON checks raw against the measurements document schema.
func ValidateJSON(raw []byte) error {
	return export.ValidateJSON("", raw)
}

// Version returns the current module version (best effort).
func Version() string {
	return moduleVersion(modulePath)
}

const modulePath = "pkt.systems/measurements"

var moduleVersion = buildVersion

func buildVersion(path string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "(devel)"
	}
	if info.Main.Path == path && info.Main.Version != "" {
		return info.Main.Version
	}
	for _, dep := range info.Deps {
		if dep.Path == path {
			if dep.Replace != nil {
				return dep.Replace.Version
			}
			return dep.Version
		}
	}
	return "(devel)"
}
