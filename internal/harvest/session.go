// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest runs the batch core: bounded retries over rotating egress
// routes, per-publication field resolution, per-subject jobs, batches with a
// failure boundary, and a worker pool that merges and flushes results.
package harvest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/faculty-papers/internal/egress"
	"github.com/pdiddy/faculty-papers/internal/observability"
	"github.com/pdiddy/faculty-papers/internal/source"
	"github.com/pdiddy/faculty-papers/pkg/types"
)

// Options are the per-run knobs shared by every session.
type Options struct {
	// RetryCount is the total attempts per lookup, first call included.
	RetryCount int

	// PublicationLimit bounds the publications considered per subject.
	PublicationLimit int

	// SortBy is the recency criterion passed to FillSubject.
	SortBy types.SortKey

	// AcquireTimeout and AcquireWait bound each route acquisition.
	AcquireTimeout time.Duration
	AcquireWait    time.Duration
}

// OptionsFrom extracts Options from a loaded configuration.
func OptionsFrom(cfg types.Config) Options {
	return Options{
		RetryCount:       cfg.Harvest.RetryCount,
		PublicationLimit: cfg.Harvest.PublicationLimit,
		SortBy:           cfg.Harvest.SortBy,
		AcquireTimeout:   cfg.Egress.AcquireTimeout,
		AcquireWait:      cfg.Egress.AcquireWait,
	}
}

func (o Options) attempts() int {
	if o.RetryCount < 1 {
		return 1
	}
	return o.RetryCount
}

// Session is the state one worker owns for the life of a batch: the record
// source, the supplier it leases from, and the route it currently holds. A
// Session is not safe for concurrent use.
type Session struct {
	src      source.RecordSource
	supplier egress.Supplier
	route    egress.Route
	opts     Options
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewSession acquires the session's first route. metrics may be nil.
func NewSession(ctx context.Context, src source.RecordSource, supplier egress.Supplier, opts Options, logger zerolog.Logger, metrics *observability.Metrics) (*Session, error) {
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	s := &Session{
		src:      src,
		supplier: supplier,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
	r, err := supplier.Acquire(ctx, opts.AcquireTimeout, opts.AcquireWait)
	if err != nil {
		metrics.RouteAcquisitions.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.RouteAcquisitions.WithLabelValues("acquired").Inc()
	s.route = r
	logger.Debug().Str("route", r.String()).Msg("route acquired")
	return s, nil
}

// Route returns the route the session currently holds.
func (s *Session) Route() egress.Route { return s.route }

// Close releases the held route.
func (s *Session) Close() {
	s.forget(s.route)
	s.supplier.Release(s.route)
}

// forget lets the source drop any state it keeps for r.
func (s *Session) forget(r egress.Route) {
	if rr, ok := s.src.(source.RouteReleaser); ok {
		rr.ReleaseRoute(r)
	}
}

// rotate trades the held route for a fresh one. A supplier that cannot
// produce one leaves the session on its current route; only cancellation of
// ctx is returned.
func (s *Session) rotate(ctx context.Context) error {
	prev := s.route
	r, err := s.supplier.Rotate(ctx, prev, s.opts.AcquireTimeout, s.opts.AcquireWait)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, egress.ErrSupplyExhausted) {
			s.logger.Warn().Err(err).Msg("route rotation failed")
		} else {
			s.logger.Warn().Str("route", prev.String()).Msg("no fresh route available, keeping current")
		}
		s.metrics.RouteAcquisitions.WithLabelValues("exhausted").Inc()
		return nil
	}
	s.metrics.RouteAcquisitions.WithLabelValues("rotated").Inc()
	if r.ID != prev.ID {
		s.forget(prev)
	}
	s.route = r
	s.logger.Debug().Str("from", prev.String()).Str("to", r.String()).Msg("route rotated")
	return nil
}

// Retry calls op on the session's route until it reports a present result.
// An empty result rotates the route before the next call. Retry makes at
// most Options.RetryCount calls, so at most RetryCount-1 rotations, and
// returns *RetryExhaustedError naming subject when every call came back
// empty. An error from op is returned as is without further attempts.
func Retry[T any](ctx context.Context, s *Session, subject, operation string, op func(context.Context, egress.Route) (T, bool, error)) (T, error) {
	var zero T
	attempts := s.opts.attempts()
	for attempt := 1; ; attempt++ {
		s.metrics.LookupAttempts.WithLabelValues(operation).Inc()
		v, ok, err := op(ctx, s.route)
		if err != nil {
			return zero, err
		}
		if ok {
			return v, nil
		}
		s.metrics.LookupEmpty.WithLabelValues(operation).Inc()

		if attempt >= attempts {
			s.metrics.RetriesExhausted.WithLabelValues(operation).Inc()
			s.logger.Warn().
				Str("operation", operation).
				Int("attempts", attempts).
				Msg("retries exhausted")
			return zero, &RetryExhaustedError{Subject: subject, Operation: operation, Attempts: attempts}
		}

		s.logger.Warn().
			Str("operation", operation).
			Int("attempt", attempt).
			Str("route", s.route.String()).
			Msg("empty result, rotating route")
		if err := s.rotate(ctx); err != nil {
			return zero, err
		}
	}
}

// The three record source operations, adapted to the Retry signature.

func (s *Session) searchSubject(ctx context.Context, name string) (types.SubjectRecord, error) {
	return Retry(ctx, s, name, "search_subject", func(ctx context.Context, r egress.Route) (types.SubjectRecord, bool, error) {
		recs, err := s.src.SearchSubject(ctx, r, name)
		if err != nil || len(recs) == 0 {
			return types.SubjectRecord{}, false, err
		}
		return recs[0], true, nil
	})
}

func (s *Session) fillSubject(ctx context.Context, rec types.SubjectRecord) (types.SubjectRecord, error) {
	return Retry(ctx, s, rec.Name, "fill_subject", func(ctx context.Context, r egress.Route) (types.SubjectRecord, bool, error) {
		filled, err := s.src.FillSubject(ctx, r, rec, s.opts.SortBy, s.opts.PublicationLimit)
		if err != nil || filled == nil {
			return types.SubjectRecord{}, false, err
		}
		return *filled, true, nil
	})
}

func (s *Session) fillPublication(ctx context.Context, subject string, stub types.PublicationStub) (types.PublicationBib, error) {
	return Retry(ctx, s, subject, "fill_publication", func(ctx context.Context, r egress.Route) (types.PublicationBib, bool, error) {
		bib, err := s.src.FillPublication(ctx, r, stub)
		if err != nil || bib == nil {
			return types.PublicationBib{}, false, err
		}
		return *bib, true, nil
	})
}
