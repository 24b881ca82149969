// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/pdiddy/faculty-papers/pkg/types"
)

// sheetName is the worksheet excelize creates in a new workbook.
const sheetName = "Sheet1"

// XLSX writes rows to a single-sheet workbook with a header row.
type XLSX struct {
	Path    string
	Headers []string
}

// Write implements Exporter.
func (x *XLSX) Write(_ context.Context, rows []types.OutputRow) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("opening sheet: %w", err)
	}
	if err := sw.SetRow("A1", cells(headersOrDefault(x.Headers))); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells(values(r))); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flushing sheet: %w", err)
	}

	return writeFile(x.Path, func(w io.Writer) error {
		if _, err := f.WriteTo(w); err != nil {
			return fmt.Errorf("writing workbook: %w", err)
		}
		return nil
	})
}

// CSV writes rows as RFC 4180 CSV with a header line.
type CSV struct {
	Path    string
	Headers []string
}

// Write implements Exporter.
func (c *CSV) Write(_ context.Context, rows []types.OutputRow) error {
	return writeFile(c.Path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(headersOrDefault(c.Headers)); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		for _, r := range rows {
			if err := cw.Write(values(r)); err != nil {
				return fmt.Errorf("writing row: %w", err)
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func headersOrDefault(h []string) []string {
	if len(h) == 0 {
		return Columns
	}
	return h
}

func cells(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
