package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"pkt.systems/measurements/internal/settings"
	"pkt.systems/pslog"
)

// ConcatOptions configure a concat run.
type ConcatOptions struct {
	// Inputs are previously exported documents, concatenated in order.
	Inputs []string
	// DefaultCollection overrides any default carried by the inputs.
	DefaultCollection string
	Output            string
	Minify            bool
	Settings          settings.Settings
	FS                afero.Fs
	Logger            pslog.Base
	OpenSink          SinkOpener
}

// rawDocument keeps collections opaque so that records pass through
// untouched.
type rawDocument struct {
	Collections       []json.RawMessage `json:"collections"`
	DefaultCollection string            `json:"default_collection,omitempty"`
}

// ConcatSummary describes a finished concat run.
type ConcatSummary struct {
	Inputs      int
	Collections int
	Output      string
	Bytes       int
}

func (o ConcatOptions) withDefaults() ConcatOptions {
	e := Options{FS: o.FS, Logger: o.Logger, Settings: o.Settings, OpenSink: o.OpenSink}.withDefaults()
	o.FS, o.Logger, o.OpenSink = e.FS, e.Logger, e.OpenSink
	return o
}

// Concat merges several exported documents into one. Every input is
// validated first; nothing is written if any input or the result is
// invalid. When no default collection is given, the first default found in
// the inputs is kept.
func Concat(ctx context.Context, opts ConcatOptions) (ConcatSummary, error) {
	opts = opts.withDefaults()
	logger := opts.Logger
	sum := ConcatSummary{Inputs: len(opts.Inputs)}

	if len(opts.Inputs) == 0 {
		return sum, &ConcatError{Causes: []error{fmt.Errorf("no measurements JSON files given")}}
	}

	var (
		out    rawDocument
		keys   []string
		causes error
	)
	for _, path := range opts.Inputs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		doc, docKeys, err := readExported(opts.FS, path)
		if err != nil {
			causes = multierr.Append(causes, err)
			continue
		}
		out.Collections = append(out.Collections, doc.Collections...)
		keys = append(keys, docKeys...)
		if out.DefaultCollection == "" {
			out.DefaultCollection = doc.DefaultCollection
		}
		logger.Debug("measurements JSON read", "path", path, "collections", len(doc.Collections))
	}
	if causes != nil {
		return sum, &ConcatError{Causes: multierr.Errors(causes)}
	}

	if opts.DefaultCollection != "" {
		out.DefaultCollection = opts.DefaultCollection
	}
	if err := applyDefault(keys, out.DefaultCollection); err != nil {
		return sum, &ConcatError{Causes: []error{err}}
	}

	data, err := Encode(out, opts.Minify)
	if err != nil {
		return sum, fmt.Errorf("encode document: %w", err)
	}
	if err := ValidateJSON("", data); err != nil {
		return sum, &ConcatError{Causes: multierr.Errors(err)}
	}

	w, err := opts.OpenSink(ctx, opts.Output)
	if err != nil {
		return sum, fmt.Errorf("open output: %w", err)
	}
	if err := w.Write(ctx, data); err != nil {
		return sum, fmt.Errorf("write output: %w", err)
	}
	sum.Collections = len(out.Collections)
	sum.Output = w.Target()
	sum.Bytes = len(data)
	logger.Info("concat written", "output", sum.Output, "inputs", sum.Inputs, "collections", sum.Collections, "bytes", sum.Bytes)
	return sum, nil
}

func readExported(fsys afero.Fs, path string) (rawDocument, []string, error) {
	raw, err := afero.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return rawDocument{}, nil, fmt.Errorf("measurements JSON file %q does not exist", path)
		}
		return rawDocument{}, nil, fmt.Errorf("read measurements JSON %q: %w", path, err)
	}
	if err := ValidateJSON(path, raw); err != nil {
		return rawDocument{}, nil, err
	}
	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return rawDocument{}, nil, fmt.Errorf("decode %q: %w", path, err)
	}
	keys := make([]string, 0, len(doc.Collections))
	for _, c := range doc.Collections {
		var k struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(c, &k); err != nil {
			return rawDocument{}, nil, fmt.Errorf("decode %q: %w", path, err)
		}
		keys = append(keys, k.Key)
	}
	return doc, keys, nil
}
