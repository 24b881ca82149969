// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/faculty-papers/pkg/types"
)

// JSON writes rows as an indented JSON array.
type JSON struct {
	Path string
}

// Write implements Exporter.
func (j *JSON) Write(_ context.Context, rows []types.OutputRow) error {
	data, err := json.MarshalIndent(records(rows), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return writeFile(j.Path, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
}

// YAML writes rows as a YAML sequence.
type YAML struct {
	Path string
}

// Write implements Exporter.
func (y *YAML) Write(_ context.Context, rows []types.OutputRow) error {
	data, err := yaml.Marshal(records(rows))
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return writeFile(y.Path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Report is the failure summary of a run.
type Report struct {
	Rows               int      `json:"rows" yaml:"rows"`
	FailedSubjects     []string `json:"failed_subjects" yaml:"failed_subjects"`
	FailedPublications []string `json:"failed_publications" yaml:"failed_publications"`
}

// WriteReport writes the failed subject and publication sets of result to
// path, as JSON for a .json path and YAML otherwise.
func WriteReport(path string, result types.RunResult) error {
	rep := Report{
		Rows:               len(result.Rows),
		FailedSubjects:     nonNil(result.FailedSubjects),
		FailedPublications: nonNil(result.FailedPublications),
	}

	var (
		data []byte
		err  error
	)
	if f, _ := FormatFor(path); f == types.FormatJSON {
		data, err = json.MarshalIndent(rep, "", "  ")
	} else {
		data, err = yaml.Marshal(rep)
	}
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return writeFile(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
