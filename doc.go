// Package measurements exposes a Go API for exporting tab-separated
// measurement collections into the normalized measurements JSON document.
//
// Quick start:
//
//		ctx := context.Background()
//		sum, err := measurements.Export(ctx, measurements.ExportOptions{
//			Collections: []string{"data/collection.tsv"},
//			Overrides: measurements.Overlay{
//				Groupings: measurements.GroupingsFromColumns([]string{"field_1"}),
//			},
//			Output: "measurements.json",
//		})
//
// A collection-config document (JSON or YAML) sits between the built-in
// defaults and Overrides:
//
//		sum, err := measurements.Export(ctx, measurements.ExportOptions{
//			Collections: []string{"a.tsv", "b.tsv"},
//			ConfigPath:  "collections.yaml",
//			Overrides:   measurements.Overlay{Threshold: measurements.Ptr(10.0)},
//			Output:      "s3://bucket/exports/measurements.json",
//		})
//
// Failures are collected across every collection. When any collection fails
// the returned error is a *LoadAggregateError whose Causes hold each problem
// and nothing is written:
//
//		var agg *measurements.LoadAggregateError
//		if errors.As(err, &agg) {
//			for _, cause := range agg.Causes {
//				log.Println(cause)
//			}
//		}
//
// Previously exported documents can be combined:
//
//		_, err := measurements.Concat(ctx, measurements.ConcatOptions{
//			Inputs: []string{"one.json", "two.json"},
//			Output: "all.json",
//		})
package measurements
