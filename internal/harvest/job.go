// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"

	"github.com/pdiddy/faculty-papers/internal/observability"
	"github.com/pdiddy/faculty-papers/pkg/types"
)

// RunSubject turns one subject name into output rows. It takes the first
// search candidate in source order, fills its publication list, and resolves
// every publication. Publications missing a title or abstract are returned
// as failed titles; they never stop the remaining publications.
//
// A search or fill that cannot be completed yields *SubjectFailedError.
// Cancellation of ctx is returned unwrapped.
func RunSubject(ctx context.Context, s *Session, name string) ([]types.OutputRow, []string, error) {
	parent := s.logger
	s.logger = observability.WithSubject(parent, name)
	defer func() { s.logger = parent }()

	rec, err := s.searchSubject(ctx, name)
	if err != nil {
		return nil, nil, subjectErr(ctx, name, err)
	}
	s.logger.Debug().Str("source_id", rec.ID).Str("display_name", rec.Name).Msg("subject found")

	filled, err := s.fillSubject(ctx, rec)
	if err != nil {
		return nil, nil, subjectErr(ctx, name, err)
	}

	stubs := filled.Publications
	if limit := s.opts.PublicationLimit; limit > 0 && len(stubs) > limit {
		stubs = stubs[:limit]
	}

	display := filled.Name
	if display == "" {
		display = name
	}

	var rows []types.OutputRow
	var failed []string
	for i, stub := range stubs {
		bib, ok, err := ResolvePublication(ctx, s, name, stub)
		if err != nil {
			return rows, failed, err
		}
		if !ok {
			failed = append(failed, failedTitle(bib.Title, stub))
			continue
		}
		rows = append(rows, types.OutputRow{
			Subject:  display,
			Abstract: bib.Abstract,
			Title:    bib.Title,
			Date:     bib.Date,
			Position: i,
		})
	}
	s.metrics.PublicationsEmitted.Add(float64(len(rows)))
	s.logger.Debug().Int("rows", len(rows)).Int("failed", len(failed)).Msg("subject done")
	return rows, failed, nil
}

func subjectErr(ctx context.Context, name string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &SubjectFailedError{Subject: name, Err: err}
}

// failedTitle names a publication for the failed set. Untitled stubs are
// identified by their source ID.
func failedTitle(title string, stub types.PublicationStub) string {
	if title != "" {
		return title
	}
	if stub.ID != "" {
		return "untitled:" + stub.ID
	}
	return "untitled"
}
