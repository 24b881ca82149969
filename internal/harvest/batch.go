// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/faculty-papers/internal/egress"
	"github.com/pdiddy/faculty-papers/internal/observability"
	"github.com/pdiddy/faculty-papers/internal/source"
	"github.com/pdiddy/faculty-papers/pkg/types"
)

// Batch processes a list of subjects sequentially on one session. A subject
// that fails is recorded and the batch moves on. If no first route can be
// obtained every subject is recorded as failed. Cancellation or a panic
// while processing a subject ends the batch early.
type Batch struct {
	Source   source.RecordSource
	Supplier egress.Supplier
	Options  Options
	Logger   zerolog.Logger
	Metrics  *observability.Metrics
}

// Run deduplicates subjects and processes each one. On early return the
// result holds everything gathered before the error.
func (b *Batch) Run(ctx context.Context, subjects []string) (types.RunResult, error) {
	var result types.RunResult
	subjects = Dedup(subjects)
	if len(subjects) == 0 {
		return result, nil
	}

	metrics := b.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	sess, err := NewSession(ctx, b.Source, b.Supplier, b.Options, b.Logger, metrics)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		// Without a route none of the subjects can be tried; they are
		// reported as failed so the failure set stays complete.
		for _, name := range subjects {
			result.AddFailedSubject(name)
		}
		metrics.SubjectsFailed.Add(float64(len(subjects)))
		b.Logger.Warn().Err(err).Int("subjects", len(subjects)).Msg("no route for batch, subjects not attempted")
		return result, nil
	}
	defer sess.Close()

	for _, name := range subjects {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		metrics.SubjectsProcessed.Inc()

		rows, failed, err := runGuarded(ctx, sess, name)
		result.AddRows(rows...)
		for _, title := range failed {
			result.AddFailedPublication(title)
		}
		if err == nil {
			continue
		}

		var sf *SubjectFailedError
		if !errors.As(err, &sf) {
			return result, err
		}
		metrics.SubjectsFailed.Inc()
		result.AddFailedSubject(sf.Subject)
		b.Logger.Warn().Err(sf.Err).Str("subject", sf.Subject).Msg("subject failed")
	}
	return result, nil
}

// runGuarded runs one subject and converts a panic into an error so the
// batch can hand back the rows gathered before it.
func runGuarded(ctx context.Context, sess *Session, name string) (rows []types.OutputRow, failed []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subject %q: panic: %v", name, r)
		}
	}()
	return RunSubject(ctx, sess, name)
}

// Dedup returns subjects with exact duplicates removed, keeping the first
// occurrence's position. Empty names are dropped.
func Dedup(subjects []string) []string {
	seen := make(map[string]bool, len(subjects))
	out := make([]string, 0, len(subjects))
	for _, s := range subjects {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
