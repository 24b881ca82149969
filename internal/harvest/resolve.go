// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"errors"

	"github.com/pdiddy/faculty-papers/pkg/types"
)

// ResolvePublication determines title, abstract, and date for one stub. A
// stub that already has a title and an abstract is used as is; otherwise one
// retried enrichment call fills the gaps.
//
// The boolean result is false when title or abstract is still missing after
// enrichment. The returned bib then carries whatever title is known so the
// caller can record it. Only cancellation of ctx is returned as an error;
// an enrichment that fails for any other reason counts as missing fields.
func ResolvePublication(ctx context.Context, s *Session, subject string, stub types.PublicationStub) (types.PublicationBib, bool, error) {
	bib := types.PublicationBib{
		Title:     stub.Title,
		Abstract:  stub.Abstract,
		Year:      stub.Year,
		Timestamp: stub.Timestamp,
	}

	if !stub.HasRequiredFields() {
		filled, err := s.fillPublication(ctx, subject, stub)
		switch {
		case err == nil:
			bib = mergeBib(bib, filled)
		case ctx.Err() != nil:
			return bib, false, ctx.Err()
		default:
			ev := s.logger.Warn().Str("title", stub.Title)
			if !errors.Is(err, ErrRetryExhausted) {
				ev = ev.Err(err)
			}
			ev.Msg("publication enrichment failed")
		}
	}

	bib.Date = resolveDate(bib)
	if bib.Date.Fallback {
		s.metrics.DegradedDates.Inc()
		s.logger.Warn().
			Str("title", bib.Title).
			Str("date", bib.Date.String()).
			Msg("publication has no date, using fallback")
	}

	if bib.Title == "" || bib.Abstract == "" {
		s.metrics.PublicationsFailed.Inc()
		s.logger.Warn().
			Str("title", bib.Title).
			Bool("has_abstract", bib.Abstract != "").
			Msg("publication missing required fields")
		return bib, false, nil
	}
	return bib, true, nil
}

// mergeBib overlays the non-empty fields of filled onto known.
func mergeBib(known, filled types.PublicationBib) types.PublicationBib {
	if filled.Title != "" {
		known.Title = filled.Title
	}
	if filled.Abstract != "" {
		known.Abstract = filled.Abstract
	}
	if filled.Year != 0 {
		known.Year = filled.Year
	}
	if filled.Timestamp != nil {
		known.Timestamp = filled.Timestamp
	}
	return known
}

// resolveDate prefers the precise timestamp, then the year, then FallbackDate.
func resolveDate(bib types.PublicationBib) types.PubDate {
	switch {
	case bib.Timestamp != nil && !bib.Timestamp.IsZero():
		return types.DateFromTimestamp(*bib.Timestamp)
	case bib.Year != 0:
		return types.DateFromYear(bib.Year)
	default:
		return types.FallbackDate
	}
}
