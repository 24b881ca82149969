// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/faculty-papers/internal/egress"
	"github.com/pdiddy/faculty-papers/internal/export"
	"github.com/pdiddy/faculty-papers/internal/observability"
	"github.com/pdiddy/faculty-papers/internal/source"
	"github.com/pdiddy/faculty-papers/pkg/types"
)

// Pool fans subjects out over a fixed number of workers. Subjects are split
// into contiguous groups; each group runs as one Batch with its own session
// and route. Results are merged as groups finish and exported once all
// groups are done, including when one of them faulted.
type Pool struct {
	Source   source.RecordSource
	Supplier egress.Supplier
	Options  Options

	// Workers is the pool width. Values below one mean one.
	Workers int

	// ChunkSize is the number of subjects per group. Zero yields one group
	// per worker.
	ChunkSize int

	// SortOutput orders the merged rows by subject, then publication order.
	SortOutput bool

	// Exporter receives the merged rows. Nil skips export.
	Exporter export.Exporter

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Run processes subjects and returns the merged result. A group that fails
// does not cancel the others. If any group faulted, the merged partial
// result is still exported and every fault is returned, one
// *FatalFaultError per group joined in group order, after the export.
func (p *Pool) Run(ctx context.Context, subjects []string) (types.RunResult, error) {
	runID := uuid.NewString()
	logger := observability.WithRun(p.Logger, runID)
	metrics := p.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	subjects = Dedup(subjects)
	groups := Partition(subjects, workers, p.ChunkSize)
	logger.Info().
		Int("subjects", len(subjects)).
		Int("groups", len(groups)).
		Int("workers", workers).
		Msg("harvest started")

	var (
		mu     sync.Mutex
		merged types.RunResult
		faults []*FatalFaultError
	)
	var g errgroup.Group
	g.SetLimit(workers)

	for i, group := range groups {
		g.Go(func() error {
			res, fault := p.runGroup(ctx, i, group, logger, metrics)

			mu.Lock()
			merged.Merge(res)
			if fault != nil {
				faults = append(faults, fault)
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(faults, func(a, b int) bool { return faults[a].Group < faults[b].Group })
	var runErr error
	for _, f := range faults {
		runErr = errors.Join(runErr, f)
	}

	if p.SortOutput {
		merged.SortRows()
	}

	if runErr != nil {
		logger.Error().Err(runErr).Int("rows", len(merged.Rows)).Msg("fatal fault, flushing partial results")
	}
	if p.Exporter != nil {
		// Export even when ctx was cancelled so an interrupted run keeps
		// what it gathered.
		if err := p.Exporter.Write(context.WithoutCancel(ctx), merged.Rows); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("exporting results: %w", err))
		}
	}

	logger.Info().
		Int("rows", len(merged.Rows)).
		Strs("failed_subjects", merged.FailedSubjects).
		Strs("failed_publications", merged.FailedPublications).
		Msg("harvest finished")
	return merged, runErr
}

// runGroup runs one group as a Batch. A panic or batch error comes back as
// a fault alongside whatever the batch gathered.
func (p *Pool) runGroup(ctx context.Context, i int, group []string, logger zerolog.Logger, metrics *observability.Metrics) (res types.RunResult, fault *FatalFaultError) {
	glog := observability.WithWorker(logger, i)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			fault = &FatalFaultError{Group: i, Err: fmt.Errorf("panic: %v", r)}
			glog.Error().Err(fault).Msg("worker panicked")
		}
		metrics.GroupDuration.Observe(time.Since(start).Seconds())
	}()

	b := &Batch{
		Source:   p.Source,
		Supplier: p.Supplier,
		Options:  p.Options,
		Logger:   glog,
		Metrics:  metrics,
	}
	res, err := b.Run(ctx, group)

	glog.Info().
		Int("subjects", len(group)).
		Int("rows", len(res.Rows)).
		Int("failed_subjects", len(res.FailedSubjects)).
		Dur("elapsed", time.Since(start)).
		Msg("group completed")

	if err != nil {
		return res, &FatalFaultError{Group: i, Err: err}
	}
	return res, nil
}

// Partition splits subjects into contiguous groups of chunkSize. A
// chunkSize of zero or less produces at most workers groups of near-equal
// size.
func Partition(subjects []string, workers, chunkSize int) [][]string {
	if len(subjects) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		if workers < 1 {
			workers = 1
		}
		chunkSize = (len(subjects) + workers - 1) / workers
	}
	groups := make([][]string, 0, (len(subjects)+chunkSize-1)/chunkSize)
	for start := 0; start < len(subjects); start += chunkSize {
		end := min(start+chunkSize, len(subjects))
		groups = append(groups, subjects[start:end])
	}
	return groups
}
