// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes harvested rows to a terminal artifact: a spreadsheet,
// CSV, JSON, YAML, or a SQLite database. Every sink emits the same four
// columns in the same order: subject, abstract, title, date.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/faculty-papers/pkg/types"
)

// Exporter serializes a row set. Write replaces any artifact a previous run
// left at the same location.
type Exporter interface {
	Write(ctx context.Context, rows []types.OutputRow) error
}

// Column headers. LegacyColumns matches the spreadsheet layout earlier
// tooling produced.
var (
	Columns       = []string{"subject", "abstract", "title", "date"}
	LegacyColumns = []string{"professor name", "paper_abstract", "title", "date"}
)

// New returns the sink selected by cfg.Format, or by the extension of
// cfg.Path when no format is set. Paths in cfg.Also get their own sink with
// the format taken from their extension, and all sinks are written as one
// Multi.
func New(cfg types.ExportConfig) (Exporter, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("export path is required")
	}
	headers := Columns
	if cfg.LegacyColumns {
		headers = LegacyColumns
	}

	primary, err := newSink(cfg.Path, cfg.Format, headers)
	if err != nil {
		return nil, err
	}
	if len(cfg.Also) == 0 {
		return primary, nil
	}

	sinks := Multi{primary}
	for _, path := range cfg.Also {
		sink, err := newSink(path, types.FormatAuto, headers)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

func newSink(path string, format types.ExportFormat, headers []string) (Exporter, error) {
	if format == types.FormatAuto {
		var err error
		format, err = FormatFor(path)
		if err != nil {
			return nil, err
		}
	}

	switch format {
	case types.FormatXLSX:
		return &XLSX{Path: path, Headers: headers}, nil
	case types.FormatCSV:
		return &CSV{Path: path, Headers: headers}, nil
	case types.FormatJSON:
		return &JSON{Path: path}, nil
	case types.FormatYAML:
		return &YAML{Path: path}, nil
	case types.FormatSQLite:
		return &SQLite{Path: path}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// FormatFor infers the export format from a file extension.
func FormatFor(path string) (types.ExportFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return types.FormatXLSX, nil
	case ".csv":
		return types.FormatCSV, nil
	case ".json":
		return types.FormatJSON, nil
	case ".yaml", ".yml":
		return types.FormatYAML, nil
	case ".db", ".sqlite", ".sqlite3":
		return types.FormatSQLite, nil
	default:
		return "", fmt.Errorf("cannot infer export format from %q; set the format explicitly", path)
	}
}

// Multi writes to every exporter in order and joins their errors. A failing
// sink does not stop the others.
type Multi []Exporter

// Write implements Exporter.
func (m Multi) Write(ctx context.Context, rows []types.OutputRow) error {
	var errs []error
	for _, e := range m {
		if err := e.Write(ctx, rows); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// record is the serialized shape of one row in document sinks.
type record struct {
	Subject  string `json:"subject" yaml:"subject"`
	Abstract string `json:"abstract" yaml:"abstract"`
	Title    string `json:"title" yaml:"title"`
	Date     string `json:"date" yaml:"date"`
}

func records(rows []types.OutputRow) []record {
	out := make([]record, len(rows))
	for i, r := range rows {
		out[i] = record{
			Subject:  r.Subject,
			Abstract: r.Abstract,
			Title:    r.Title,
			Date:     r.Date.String(),
		}
	}
	return out
}

// values returns a row's cells in column order.
func values(r types.OutputRow) []string {
	return []string{r.Subject, r.Abstract, r.Title, r.Date.String()}
}

// writeFile creates path's directory and writes the file through fn. The
// content lands in a temporary sibling first and is renamed into place, so
// an interrupted write never leaves a truncated artifact.
func writeFile(path string, fn func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := fn(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("moving output into place: %w", err)
	}
	return nil
}
