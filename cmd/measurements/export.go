package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"pkt.systems/measurements"
	"pkt.systems/pslog"
)

func newExportCmd() *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export collection TSV files to a measurements JSON document",
		Args:  cobra.NoArgs,
		RunE:  exportE,
	}

	addLoggingFlags(exportCmd.Flags())
	f := exportCmd.Flags()
	f.StringArray("collection", nil, "Collection TSV file (repeatable, output order)")
	f.String("collection-config", "", "Collection config document (.json, .yaml or .yml)")
	f.String("strain-column", "", "Column holding the strain identifier (default \"strain\")")
	f.String("value-column", "", "Column holding the measured value (default \"value\")")
	f.StringSlice("grouping-column", nil, "Grouping columns in display order")
	f.String("key", "", "Collection key (default: file name without extension)")
	f.String("title", "", "Collection title (default: the key)")
	f.String("x-axis-label", "", "Label of the measurement axis (default \"measurements\")")
	f.Float64("threshold", 0, "Threshold line value")
	f.StringSlice("filters", nil, "Columns offered as filters")
	f.StringSlice("group-by", nil, "Columns grouped by default")
	f.StringArray("field", nil, "Column display title as column=Title (repeatable)")
	f.String("measurements-display", "", "Default display of measurements: raw|mean")
	f.Bool("show-overall-mean", false, "Show the overall mean by default")
	f.Bool("hide-overall-mean", false, "Hide the overall mean by default")
	f.Bool("show-threshold", false, "Show the threshold by default")
	f.Bool("hide-threshold", false, "Hide the threshold by default")
	f.StringSlice("include-columns", nil, "Extra columns copied into every measurement")
	f.String("default-collection", "", "Key of the collection shown first")
	f.Bool("minify-json", false, "Write compact JSON (env MEASUREMENTS_MINIFY_JSON)")
	f.String("output-json", "", "Output path or s3://bucket/key")
	f.String("reporter-json", "", "Write JSON summary report to path")
	f.String("reporter-junit", "", "Write JUnit XML summary report to path")
	f.String("reporter-html", "", "Write HTML summary report to path")

	_ = exportCmd.MarkFlagRequired("collection")
	_ = exportCmd.MarkFlagRequired("output-json")
	exportCmd.MarkFlagsMutuallyExclusive("show-overall-mean", "hide-overall-mean")
	exportCmd.MarkFlagsMutuallyExclusive("show-threshold", "hide-threshold")
	return exportCmd
}

func exportE(cmd *cobra.Command, args []string) error {
	logger := loggerFromCmd(cmd)
	flags := cmd.Flags()

	st, err := measurements.LoadSettings()
	if err != nil {
		return reportFailure(cmd.ErrOrStderr(), err)
	}
	overrides, err := overridesFromFlags(cmd)
	if err != nil {
		return reportFailure(cmd.ErrOrStderr(), err)
	}

	collections, _ := flags.GetStringArray("collection")
	configPath, _ := flags.GetString("collection-config")
	strainCol, _ := flags.GetString("strain-column")
	valueCol, _ := flags.GetString("value-column")
	include, _ := flags.GetStringSlice("include-columns")
	defaultCollection, _ := flags.GetString("default-collection")
	output, _ := flags.GetString("output-json")

	opts := measurements.ExportOptions{
		Collections:       collections,
		ConfigPath:        configPath,
		Columns:           measurements.ColumnOptions{StrainColumn: strainCol, ValueColumn: valueCol},
		Overrides:         overrides,
		IncludeColumns:    include,
		DefaultCollection: defaultCollection,
		Output:            output,
		Minify:            minifyJSON(cmd, st),
		Settings:          st,
		Logger:            logger,
	}

	sum, runErr := measurements.Export(cmd.Context(), opts)
	if err := writeReports(cmd, sum, logger); err != nil {
		logger.Error("report", "err", err)
	}
	if runErr != nil {
		return reportFailure(cmd.ErrOrStderr(), runErr)
	}
	logger.Info("summary", "collections", sum.Total, "output", sum.Output, "elapsed", sum.TotalElapsed.String())
	return nil
}

// overridesFromFlags builds the command-line layer from flags the user set.
// Flags left at their defaults do not take part in the merge.
func overridesFromFlags(cmd *cobra.Command) (measurements.Overlay, error) {
	flags := cmd.Flags()
	var o measurements.Overlay

	if flags.Changed("key") {
		v, _ := flags.GetString("key")
		o.Key = &v
	}
	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		o.Title = &v
	}
	if flags.Changed("x-axis-label") {
		v, _ := flags.GetString("x-axis-label")
		o.XAxisLabel = &v
	}
	if flags.Changed("threshold") {
		v, _ := flags.GetFloat64("threshold")
		o.Threshold = &v
	}
	if flags.Changed("grouping-column") {
		v, _ := flags.GetStringSlice("grouping-column")
		o.Groupings = measurements.GroupingsFromColumns(v)
	}
	if flags.Changed("filters") {
		o.Filters = changedList(cmd, "filters")
	}
	if flags.Changed("group-by") {
		o.GroupBy = changedList(cmd, "group-by")
	}
	if flags.Changed("field") {
		raw, _ := flags.GetStringArray("field")
		fields := make([]measurements.Field, 0, len(raw))
		for _, r := range raw {
			key, title, ok := strings.Cut(r, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return o, fmt.Errorf("invalid --field %q (want column=Title)", r)
			}
			fields = append(fields, measurements.Field{Key: key, Title: title})
		}
		o.Fields = fields
	}
	if flags.Changed("measurements-display") {
		raw, _ := flags.GetString("measurements-display")
		mode, err := measurements.ParseDisplayMode(raw)
		if err != nil {
			return o, err
		}
		o.MeasurementsDisplay = &mode
	}
	o.ShowOverallMean = showHide(cmd, "show-overall-mean", "hide-overall-mean")
	o.ShowThreshold = showHide(cmd, "show-threshold", "hide-threshold")
	return o, nil
}

func changedList(cmd *cobra.Command, name string) []string {
	v, _ := cmd.Flags().GetStringSlice(name)
	if v == nil {
		v = []string{}
	}
	return v
}

// showHide maps a --show-X/--hide-X pair onto a tri-state value.
func showHide(cmd *cobra.Command, show, hide string) *bool {
	flags := cmd.Flags()
	switch {
	case flags.Changed(show):
		v, _ := flags.GetBool(show)
		return &v
	case flags.Changed(hide):
		v, _ := flags.GetBool(hide)
		v = !v
		return &v
	}
	return nil
}

func minifyJSON(cmd *cobra.Command, st measurements.Settings) bool {
	if cmd.Flags().Changed("minify-json") {
		v, _ := cmd.Flags().GetBool("minify-json")
		return v
	}
	return st.MinifyJSON
}

func writeReports(cmd *cobra.Command, sum measurements.ExportSummary, logger pslog.Base) error {
	for _, r := range []struct{ flag, format string }{
		{"reporter-json", "json"},
		{"reporter-junit", "junit"},
		{"reporter-html", "html"},
	} {
		path, _ := cmd.Flags().GetString(r.flag)
		if path == "" {
			continue
		}
		if err := measurements.WriteReport(r.format, path, sum); err != nil {
			return err
		}
		logger.Debug("report written", "format", r.format, "path", path)
	}
	return nil
}
