// Package export turns measurement collections and their configuration into
// the normalized measurements JSON document.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"pkt.systems/measurements/internal/columns"
	"pkt.systems/measurements/internal/config"
	"pkt.systems/measurements/internal/loader"
	"pkt.systems/measurements/internal/settings"
	"pkt.systems/measurements/internal/sink"
	"pkt.systems/pslog"
)

// SinkOpener returns the writer for an output target.
type SinkOpener func(ctx context.Context, target string) (sink.Writer, error)

// Options configure a single export run.
type Options struct {
	// Collections are the TSV sources in output order.
	Collections []string
	// ConfigPath is an optional collection-config document (JSON or YAML).
	ConfigPath string
	Columns    columns.Options
	// Overrides is the command-line layer; it wins over every other layer.
	Overrides         config.Overlay
	IncludeColumns    []string
	DefaultCollection string
	Output            string
	Minify            bool
	Settings          settings.Settings
	FS                afero.Fs
	Logger            pslog.Base
	// OpenSink replaces sink.Open, mostly for tests.
	OpenSink SinkOpener
}

// CollectionResult captures the outcome of one collection.
type CollectionResult struct {
	Source   string
	Key      string
	Records  int
	Duration time.Duration
	Passed   bool
	Errors   []string
}

// Summary aggregates collection results of a run.
type Summary struct {
	Collections  []CollectionResult
	Total        int
	Passed       int
	Failed       int
	Output       string
	Bytes        int
	TotalElapsed time.Duration
}

func (o Options) withDefaults() Options {
	if o.FS == nil {
		o.FS = afero.NewOsFs()
	}
	if o.Logger == nil {
		o.Logger = pslog.New(os.Stdout)
	}
	if o.OpenSink == nil {
		fsys, st := o.FS, o.Settings
		o.OpenSink = func(ctx context.Context, target string) (sink.Writer, error) {
			return sink.Open(ctx, target, st, fsys)
		}
	}
	return o
}

// Export reads every collection, resolves its configuration, and writes the
// assembled document to opts.Output. Nothing is written unless every
// collection loads; in that case the returned error is a
// *LoadAggregateError carrying every cause.
func Export(ctx context.Context, opts Options) (Summary, error) {
	opts = opts.withDefaults()
	logger := opts.Logger
	start := time.Now()
	sum := Summary{Total: len(opts.Collections)}

	if len(opts.Collections) == 0 {
		return sum, &LoadAggregateError{Causes: []error{errors.New("no collection TSV files given")}}
	}

	var doc *config.Document
	if opts.ConfigPath != "" {
		d, err := config.ReadDocument(opts.FS, opts.ConfigPath)
		if err != nil {
			sum.TotalElapsed = time.Since(start)
			return sum, &LoadAggregateError{Causes: multierr.Errors(err)}
		}
		doc = d
		logger.Debug("collection config loaded", "path", opts.ConfigPath)
		for _, name := range doc.UnmatchedEntries(opts.Collections) {
			logger.Warn("collection config entry matches no collection", "collection", name, "path", opts.ConfigPath)
		}
	}

	var (
		loaded []Loaded
		causes []error
	)
	for _, source := range opts.Collections {
		if err := ctx.Err(); err != nil {
			sum.TotalElapsed = time.Since(start)
			return sum, err
		}
		began := time.Now()
		l, err := loadOne(source, doc, opts)
		res := CollectionResult{Source: source, Key: l.Config.Key, Duration: time.Since(began)}
		if err != nil {
			for _, e := range multierr.Errors(err) {
				causes = append(causes, &CollectionError{Source: source, Err: e})
				res.Errors = append(res.Errors, e.Error())
			}
			logger.Error("collection failed", "source", source, "errors", len(res.Errors))
			sum.Failed++
		} else {
			res.Passed = true
			res.Records = len(l.Collection.Records)
			loaded = append(loaded, l)
			logger.Info("collection loaded", "source", source, "key", res.Key, "records", res.Records, "dur", res.Duration.String())
			sum.Passed++
		}
		sum.Collections = append(sum.Collections, res)
	}
	if len(causes) > 0 {
		sum.TotalElapsed = time.Since(start)
		return sum, &LoadAggregateError{Causes: causes}
	}

	data, err := render(loaded, Metadata{DefaultCollection: opts.DefaultCollection}, opts.Minify)
	if err != nil {
		sum.TotalElapsed = time.Since(start)
		return sum, &LoadAggregateError{Causes: multierr.Errors(err)}
	}

	w, err := opts.OpenSink(ctx, opts.Output)
	if err != nil {
		sum.TotalElapsed = time.Since(start)
		return sum, fmt.Errorf("open output: %w", err)
	}
	if err := w.Write(ctx, data); err != nil {
		sum.TotalElapsed = time.Since(start)
		return sum, fmt.Errorf("write output: %w", err)
	}
	sum.Output = w.Target()
	sum.Bytes = len(data)
	sum.TotalElapsed = time.Since(start)
	logger.Info("export written", "output", sum.Output, "collections", len(loaded), "bytes", sum.Bytes)
	return sum, nil
}

// loadOne runs read, resolve, merge and load for a single source. A failed
// column resolution is reported on its own.
func loadOne(source string, doc *config.Document, opts Options) (Loaded, error) {
	t, err := loader.ReadTable(opts.FS, source)
	if err != nil {
		return Loaded{}, err
	}

	mapping, err := columns.Resolve(t.Header, opts.Columns)
	if err != nil {
		return Loaded{}, err
	}

	layers := []config.Overlay{config.Defaults(source)}
	layers = append(layers, doc.Overlays(source)...)
	layers = append(layers, opts.Overrides)
	cfg, err := config.Merge(layers...)
	if err != nil {
		return Loaded{}, err
	}

	c, err := loader.Load(t, mapping, cfg, loader.Options{IncludeColumns: opts.IncludeColumns})
	if err != nil {
		return Loaded{Config: cfg}, err
	}
	return Loaded{Collection: c, Config: cfg}, nil
}

func render(loaded []Loaded, meta Metadata, minify bool) ([]byte, error) {
	doc, err := Assemble(loaded, meta)
	if err != nil {
		return nil, err
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}
	return Encode(doc, minify)
}
