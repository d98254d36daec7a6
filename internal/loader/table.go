// Package loader reads collection tables and turns them into measurement
// records.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Table is the raw content of a collection file.
type Table struct {
	Source string
	Header []string
	Rows   [][]string
}

// Index maps header names to their column position.
func (t *Table) Index() map[string]int {
	idx := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

// SourceError reports a collection file that could not be read.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	if errors.Is(e.Err, fs.ErrNotExist) {
		return fmt.Sprintf("collection TSV file %q does not exist", e.Source)
	}
	return fmt.Sprintf("collection TSV file %q could not be read: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// ReadTable reads a tab separated file (comma separated for .csv) from fsys.
func ReadTable(fsys afero.Fs, path string) (*Table, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, &SourceError{Source: path, Err: err}
	}
	defer f.Close()

	t, err := readTable(f, delimiterFor(path))
	if err != nil {
		return nil, &SourceError{Source: path, Err: err}
	}
	t.Source = path
	return t, nil
}

func delimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ','
	}
	return '\t'
}

func readTable(r io.Reader, comma rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.LazyQuotes = true
	// Rows may be shorter or longer than the header; missing cells read as empty.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, err
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := &Table{Header: header}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
