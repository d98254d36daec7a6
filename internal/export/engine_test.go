package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkt.systems/measurements/internal/columns"
	"pkt.systems/measurements/internal/config"
	"pkt.systems/measurements/internal/loader"
	"pkt.systems/measurements/internal/sink"
	"pkt.systems/pslog"
)

const basicTSV = "strain\tvalue\tfield_1\tfield_2\n" +
	"s1\t1.5\ta\tx\n" +
	"s2\t2\tb\ty\n"

func newFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(body), 0o644))
	}
	return fsys
}

func quietLogger() pslog.Base {
	return pslog.NewStructured(&bytes.Buffer{})
}

func readOutput(t *testing.T, fsys afero.Fs, path string) map[string]any {
	t.Helper()
	raw, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func firstCollection(t *testing.T, out map[string]any) map[string]any {
	t.Helper()
	cols, ok := out["collections"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, cols)
	return cols[0].(map[string]any)
}

func TestExportDefaultsWithGroupingOverride(t *testing.T) {
	fsys := newFS(t, map[string]string{"data/collection.tsv": basicTSV})

	sum, err := Export(context.Background(), Options{
		Collections: []string{"data/collection.tsv"},
		Overrides:   config.Overlay{Groupings: config.GroupingsFromColumns([]string{"field_1"})},
		Output:      "out/measurements.json",
		FS:          fsys,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Passed)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, "out/measurements.json", sum.Output)

	out := readOutput(t, fsys, "out/measurements.json")
	col := firstCollection(t, out)
	assert.Equal(t, "collection", col["key"])
	assert.Equal(t, "collection", col["title"])
	assert.Equal(t, config.DefaultXAxisLabel, col["x_axis_label"])
	assert.NotContains(t, col, "threshold")
	assert.Equal(t, []any{map[string]any{"key": "field_1"}}, col["groupings"])
	assert.Equal(t, []any{}, col["filters"])
	assert.Equal(t, map[string]any{
		"measurements_display": "raw",
		"show_overall_mean":    false,
		"show_threshold":       false,
	}, col["display_defaults"])

	records := col["measurements"].([]any)
	require.Len(t, records, 2)
	assert.Equal(t, map[string]any{"strain": "s1", "value": 1.5, "field_1": "a"}, records[0])
	assert.Equal(t, map[string]any{"strain": "s2", "value": 2.0, "field_1": "b"}, records[1])
}

func TestExportCollisionsFailClosed(t *testing.T) {
	fsys := newFS(t, map[string]string{"collection.tsv": basicTSV})
	opened := false

	_, err := Export(context.Background(), Options{
		Collections: []string{"collection.tsv"},
		Columns:     columns.Options{StrainColumn: "field_1", ValueColumn: "field_2"},
		Overrides:   config.Overlay{Groupings: config.GroupingsFromColumns([]string{"field_1"})},
		Output:      "out.json",
		FS:          fsys,
		Logger:      quietLogger(),
		OpenSink: func(ctx context.Context, target string) (sink.Writer, error) {
			opened = true
			return nil, errors.New("must not be called")
		},
	})
	var agg *LoadAggregateError
	require.ErrorAs(t, err, &agg)
	assert.Equal(t, "Loading of collection TSV was unsuccessful. See detailed errors above.", agg.Error())
	require.Len(t, agg.Causes, 2)

	var got []string
	for _, cause := range agg.Causes {
		var ce *CollectionError
		require.ErrorAs(t, cause, &ce)
		assert.Equal(t, "collection.tsv", ce.Source)
		var coll *columns.ColumnCollisionError
		require.ErrorAs(t, cause, &coll)
		got = append(got, coll.Canonical)
	}
	assert.ElementsMatch(t, []string{"strain", "value"}, got)
	assert.False(t, opened, "sink must not be opened on failure")
}

func TestExportIdentityReportedAlone(t *testing.T) {
	fsys := newFS(t, map[string]string{
		"collection_without_strain_value_columns.tsv": "strain_field\tvalue_field\tfield_1\nA\t1\tx\n",
	})

	_, err := Export(context.Background(), Options{
		Collections: []string{"collection_without_strain_value_columns.tsv"},
		Columns:     columns.Options{StrainColumn: "field_1", ValueColumn: "field_1"},
		Output:      "out.json",
		FS:          fsys,
		Logger:      quietLogger(),
	})
	var agg *LoadAggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Causes, 1)
	var ident *columns.ColumnIdentityError
	require.ErrorAs(t, agg.Causes[0], &ident)
	assert.Equal(t, "field_1", ident.Column)

	exists, _ := afero.Exists(fsys, "out.json")
	assert.False(t, exists)
}

func TestExportCommandLineBeatsDocument(t *testing.T) {
	fsys := newFS(t, map[string]string{
		"c.tsv": "strain\tvalue\tfield_1\tfield_2\tfield_3\nA\t1\tx\ty\tz\n",
		"config.json": `{
			"title": "From document",
			"threshold": 2.0,
			"groupings": ["field_1", "field_2"]
		}`,
	})

	_, err := Export(context.Background(), Options{
		Collections: []string{"c.tsv"},
		ConfigPath:  "config.json",
		Overrides: config.Overlay{
			Threshold: config.Ptr(10.0),
			Groupings: config.GroupingsFromColumns([]string{"field_3"}),
		},
		Output: "out.json",
		FS:     fsys,
		Logger: quietLogger(),
	})
	require.NoError(t, err)

	col := firstCollection(t, readOutput(t, fsys, "out.json"))
	assert.Equal(t, 10.0, col["threshold"])
	assert.Equal(t, []any{map[string]any{"key": "field_3"}}, col["groupings"])
	assert.Equal(t, "From document", col["title"])
	assert.Equal(t, map[string]any{"strain": "A", "value": 1.0, "field_3": "z"}, col["measurements"].([]any)[0])
}

func TestExportOneBadCollectionBlocksAll(t *testing.T) {
	fsys := newFS(t, map[string]string{
		"good.tsv": basicTSV,
		"bad.tsv":  "strain\tvalue\tfield_1\nA\tnot-a-number\tx\nB\t3\ty\n",
	})

	sum, err := Export(context.Background(), Options{
		Collections: []string{"good.tsv", "bad.tsv", "missing.tsv"},
		Overrides:   config.Overlay{Groupings: config.GroupingsFromColumns([]string{"field_1"})},
		Output:      "out.json",
		FS:          fsys,
		Logger:      quietLogger(),
	})
	var agg *LoadAggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Causes, 2)

	var bad *loader.InvalidValueError
	require.ErrorAs(t, agg.Causes[0], &bad)
	assert.Equal(t, 1, bad.Row)
	var src *loader.SourceError
	require.ErrorAs(t, agg.Causes[1], &src)
	assert.Equal(t, `collection TSV file "missing.tsv" does not exist`, agg.Causes[1].Error())

	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Passed)
	assert.Equal(t, 2, sum.Failed)
	assert.True(t, sum.Collections[0].Passed)
	assert.Equal(t, 2, sum.Collections[0].Records)
	assert.False(t, sum.Collections[1].Passed)

	exists, _ := afero.Exists(fsys, "out.json")
	assert.False(t, exists)
}

func TestExportReportsMissingColumnsTogetherWithBadValues(t *testing.T) {
	fsys := newFS(t, map[string]string{"c.tsv": "strain\tvalue\tfield_1\nA\tnope\tx\n"})

	_, err := Export(context.Background(), Options{
		Collections: []string{"c.tsv"},
		Overrides: config.Overlay{
			Groupings: config.GroupingsFromColumns([]string{"field_1"}),
			Filters:   []string{"missing_col"},
		},
		Output: "out.json",
		FS:     fsys,
		Logger: quietLogger(),
	})
	var agg *LoadAggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Causes, 2)
	var missing *loader.MissingDataColumnError
	require.ErrorAs(t, agg.Causes[0], &missing)
	assert.Equal(t, "missing_col", missing.Column)
	var bad *loader.InvalidValueError
	require.ErrorAs(t, agg.Causes[1], &bad)
	assert.Equal(t, "nope", bad.Value)
}

func TestExportKeepsRenamedGroupingColumn(t *testing.T) {
	fsys := newFS(t, map[string]string{"c.tsv": "strain_field\tvalue_field\tfield_1\nA\t1\tx\n"})

	_, err := Export(context.Background(), Options{
		Collections: []string{"c.tsv"},
		Columns:     columns.Options{StrainColumn: "strain_field", ValueColumn: "value_field"},
		Overrides:   config.Overlay{Groupings: config.GroupingsFromColumns([]string{"strain_field"})},
		Output:      "out.json",
		FS:          fsys,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)

	col := firstCollection(t, readOutput(t, fsys, "out.json"))
	assert.Equal(t, []any{map[string]any{"key": "strain_field"}}, col["groupings"])
	assert.Equal(t, map[string]any{"strain": "A", "value": 1.0, "strain_field": "A"}, col["measurements"].([]any)[0])
}

func TestExportMissingGroupingColumnIsReported(t *testing.T) {
	fsys := newFS(t, map[string]string{"c.tsv": basicTSV})

	_, err := Export(context.Background(), Options{
		Collections: []string{"c.tsv"},
		Output:      "out.json",
		FS:          fsys,
		Logger:      quietLogger(),
	})
	var missing *config.MissingConfigFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "grouping-column", missing.Field)
}

func TestExportDocumentErrorsAbort(t *testing.T) {
	fsys := newFS(t, map[string]string{
		"c.tsv":       basicTSV,
		"config.yaml": "groupings: []\nunknown: 1\n",
	})

	_, err := Export(context.Background(), Options{
		Collections: []string{"c.tsv"},
		ConfigPath:  "config.yaml",
		Output:      "out.json",
		FS:          fsys,
		Logger:      quietLogger(),
	})
	var agg *LoadAggregateError
	require.ErrorAs(t, err, &agg)
	var docErr *config.DocumentError
	require.ErrorAs(t, err, &docErr)
	assert.Equal(t, "config.yaml", docErr.Path)
}

func TestExportDefaultCollection(t *testing.T) {
	fsys := newFS(t, map[string]string{"a.tsv": basicTSV, "b.tsv": basicTSV})
	opts := Options{
		Collections: []string{"a.tsv", "b.tsv"},
		Overrides:   config.Overlay{Groupings: config.GroupingsFromColumns([]string{"field_2"})},
		Output:      "out.json",
		FS:          fsys,
		Logger:      quietLogger(),
	}

	opts.DefaultCollection = "b"
	_, err := Export(context.Background(), opts)
	require.NoError(t, err)
	out := readOutput(t, fsys, "out.json")
	assert.Equal(t, "b", out["default_collection"])
	cols := out["collections"].([]any)
	require.Len(t, cols, 2)
	assert.Equal(t, "a", cols[0].(map[string]any)["key"])
	assert.Equal(t, "b", cols[1].(map[string]any)["key"])

	opts.DefaultCollection = "c"
	opts.Output = "other.json"
	_, err = Export(context.Background(), opts)
	var unknown *UnknownDefaultCollectionError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"a", "b"}, unknown.Available)
	exists, _ := afero.Exists(fsys, "other.json")
	assert.False(t, exists)
}

func TestExportMinify(t *testing.T) {
	fsys := newFS(t, map[string]string{"c.tsv": basicTSV})
	opts := Options{
		Collections: []string{"c.tsv"},
		Overrides:   config.Overlay{Groupings: config.GroupingsFromColumns([]string{"field_1"})},
		Output:      "pretty.json",
		FS:          fsys,
		Logger:      quietLogger(),
	}
	_, err := Export(context.Background(), opts)
	require.NoError(t, err)
	opts.Output, opts.Minify = "min.json", true
	_, err = Export(context.Background(), opts)
	require.NoError(t, err)

	pretty, err := afero.ReadFile(fsys, "pretty.json")
	require.NoError(t, err)
	minified, err := afero.ReadFile(fsys, "min.json")
	require.NoError(t, err)

	assert.Contains(t, string(pretty), "\n  \"collections\"")
	assert.Equal(t, 1, bytes.Count(minified, []byte("\n")))
	var compact bytes.Buffer
	require.NoError(t, json.Compact(&compact, pretty))
	assert.Equal(t, compact.String()+"\n", string(minified))
}

func TestExportHonorsCancellation(t *testing.T) {
	fsys := newFS(t, map[string]string{"c.tsv": basicTSV})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Export(ctx, Options{
		Collections: []string{"c.tsv"},
		Output:      "out.json",
		FS:          fsys,
		Logger:      quietLogger(),
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestExportRequiresCollections(t *testing.T) {
	_, err := Export(context.Background(), Options{Output: "out.json", FS: afero.NewMemMapFs(), Logger: quietLogger()})
	var agg *LoadAggregateError
	require.ErrorAs(t, err, &agg)
}
