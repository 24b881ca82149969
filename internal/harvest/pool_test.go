// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/faculty-papers/internal/egress"
	"github.com/pdiddy/faculty-papers/pkg/types"
)

func TestPartition(t *testing.T) {
	subjects := []string{"a", "b", "c", "d", "e"}
	tests := []struct {
		name      string
		workers   int
		chunkSize int
		want      [][]string
	}{
		{"one per worker", 2, 0, [][]string{{"a", "b", "c"}, {"d", "e"}}},
		{"more workers than subjects", 8, 0, [][]string{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}}},
		{"single worker", 1, 0, [][]string{{"a", "b", "c", "d", "e"}}},
		{"explicit chunk", 2, 2, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}},
		{"zero workers", 0, 0, [][]string{{"a", "b", "c", "d", "e"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Partition(subjects, tt.workers, tt.chunkSize))
		})
	}
	assert.Nil(t, Partition(nil, 4, 0))
}

func TestPartitionCoversEverySubjectOnce(t *testing.T) {
	for n := 0; n <= 20; n++ {
		subjects := make([]string, n)
		for i := range subjects {
			subjects[i] = fmt.Sprintf("s%d", i)
		}
		for w := 1; w <= 6; w++ {
			var flat []string
			groups := Partition(subjects, w, 0)
			assert.LessOrEqual(t, len(groups), w)
			for _, g := range groups {
				assert.NotEmpty(t, g)
				flat = append(flat, g...)
			}
			if n == 0 {
				assert.Empty(t, flat)
				continue
			}
			assert.Equal(t, subjects, flat, "n=%d w=%d", n, w)
		}
	}
}

func newTestPool(src *fakeSource, sup egress.Supplier, exp *memExporter) *Pool {
	p := &Pool{
		Source:     src,
		Supplier:   sup,
		Options:    testOptions(),
		Workers:    2,
		SortOutput: true,
		Logger:     zerolog.Nop(),
	}
	if exp != nil {
		p.Exporter = exp
	}
	return p
}

func TestPoolRunMergesAndExports(t *testing.T) {
	src := newFakeSource()
	names := []string{"Dee", "Ada", "Cy", "Bob"}
	for _, n := range names {
		src.subjects[n] = []types.PublicationStub{
			stub(n+"1", n+" first", "abs", 2021),
			stub(n+"2", n+" second", "abs", 2020),
		}
	}
	sup := newFakeSupplier()
	exp := &memExporter{}
	p := newTestPool(src, sup, exp)

	res, err := p.Run(context.Background(), append(names, "Ada", "Missing"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Missing"}, res.FailedSubjects)
	require.Len(t, res.Rows, 8)
	var got []string
	for _, r := range res.Rows {
		got = append(got, r.Title)
	}
	assert.Equal(t, []string{
		"Ada first", "Ada second",
		"Bob first", "Bob second",
		"Cy first", "Cy second",
		"Dee first", "Dee second",
	}, got)

	assert.Equal(t, 1, exp.calls)
	assert.Equal(t, res.Rows, exp.rows)
	assert.Equal(t, 1, src.count("search:Ada"), "duplicate subject is processed once")

	_, _, held := sup.stats()
	assert.Zero(t, held, "every group releases its route")
}

func TestPoolRunRoutesNotShared(t *testing.T) {
	src := newFakeSource()
	names := []string{"a", "b", "c", "d", "e", "f"}
	for _, n := range names {
		src.subjects[n] = []types.PublicationStub{stub(n, n, "abs", 2020)}
	}
	p := newTestPool(src, newFakeSupplier(), nil)
	p.Workers = 3

	_, err := p.Run(context.Background(), names)
	require.NoError(t, err)

	// Partition gives {a,b} {c,d} {e,f}; each group holds one route.
	groupRoute := make(map[string]string)
	for _, pair := range [][2]string{{"a", "b"}, {"c", "d"}, {"e", "f"}} {
		first := src.routes[pair[0]]
		second := src.routes[pair[1]]
		require.Len(t, first, 1)
		require.Len(t, second, 1)
		assert.Equal(t, first[0], second[0], "subjects in a group share the group's route")
		groupRoute[pair[0]] = first[0]
	}
	seen := make(map[string]bool)
	for _, r := range groupRoute {
		assert.False(t, seen[r], "route %s used by two groups", r)
		seen[r] = true
	}
}

func TestPoolRunFatalFaultFlushesPartialResults(t *testing.T) {
	src := newFakeSource()
	for _, n := range []string{"Ada", "Bob", "Cy"} {
		src.subjects[n] = []types.PublicationStub{stub(n, n+" paper", "abs", 2020)}
	}
	src.panicOn["Dee"] = true
	exp := &memExporter{}
	p := newTestPool(src, newFakeSupplier(), exp)
	p.ChunkSize = 2

	// Groups: {Ada, Bob} completes, {Cy, Dee} faults after Cy.
	res, err := p.Run(context.Background(), []string{"Ada", "Bob", "Cy", "Dee"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFatalFault)

	var ff *FatalFaultError
	require.True(t, errors.As(err, &ff))
	assert.Equal(t, 1, ff.Group)

	require.Equal(t, 1, exp.calls, "partial results are exported before the error surfaces")
	var subjects []string
	for _, r := range exp.rows {
		subjects = append(subjects, r.Subject)
	}
	assert.Equal(t, []string{"Ada", "Bob", "Cy"}, subjects)
	assert.Equal(t, exp.rows, res.Rows)
}

func TestPoolRunReportsEveryFault(t *testing.T) {
	src := newFakeSource()
	for _, n := range []string{"Ada", "Cy"} {
		src.subjects[n] = []types.PublicationStub{stub(n, n+" paper", "abs", 2020)}
	}
	src.panicOn["Bob"] = true
	src.panicOn["Dee"] = true
	exp := &memExporter{}
	p := newTestPool(src, newFakeSupplier(), exp)
	p.ChunkSize = 2

	// Groups {Ada, Bob} and {Cy, Dee} both fault on their second subject.
	res, err := p.Run(context.Background(), []string{"Ada", "Bob", "Cy", "Dee"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "group 0")
	assert.Contains(t, err.Error(), "group 1")
	assert.Contains(t, err.Error(), "Bob")
	assert.Contains(t, err.Error(), "Dee")
	assert.Len(t, res.Rows, 2)
	assert.Equal(t, 1, exp.calls)
}

func TestPoolRunPacedAcquisitionsDoNotFault(t *testing.T) {
	src := newFakeSource()
	var names []string
	for i := 0; i < 20; i++ {
		n := fmt.Sprintf("Subject %02d", i)
		names = append(names, n)
		src.subjects[n] = []types.PublicationStub{stub(n, n+" paper", "abs", 2020)}
	}
	p := newTestPool(src, egress.NewDirectSupplier(), nil)
	p.Workers = 20
	p.Options.AcquireTimeout = 100 * time.Millisecond
	p.Options.AcquireWait = 10 * time.Millisecond

	// Twenty first acquisitions spaced 10ms apart queue for longer than the
	// acquisition timeout; the queueing is throttling, not exhaustion.
	res, err := p.Run(context.Background(), names)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 20)
	assert.Empty(t, res.FailedSubjects)
}

func TestPoolRunNoRouteRecordsSubjects(t *testing.T) {
	src := newFakeSource()
	for _, n := range []string{"Ada", "Bob", "Cy"} {
		src.subjects[n] = []types.PublicationStub{stub(n, n+" paper", "abs", 2020)}
	}
	sup := newFakeSupplier()
	sup.failAcquire = true
	exp := &memExporter{}
	p := newTestPool(src, sup, exp)

	res, err := p.Run(context.Background(), []string{"Ada", "Bob", "Cy"})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, []string{"Ada", "Bob", "Cy"}, res.FailedSubjects)
	assert.Equal(t, 1, exp.calls)
}

func TestPoolRunExportError(t *testing.T) {
	src := newFakeSource()
	src.subjects["Ada"] = []types.PublicationStub{stub("p1", "X", "Y", 2020)}
	exp := &memExporter{err: errors.New("disk full")}
	p := newTestPool(src, newFakeSupplier(), exp)

	res, err := p.Run(context.Background(), []string{"Ada"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NotErrorIs(t, err, ErrFatalFault)
	assert.Len(t, res.Rows, 1)
}

func TestPoolRunCancelledStillExports(t *testing.T) {
	src := newFakeSource()
	src.subjects["Ada"] = []types.PublicationStub{stub("p1", "X", "Y", 2020)}
	exp := &memExporter{}
	p := newTestPool(src, newFakeSupplier(), exp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, []string{"Ada"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, exp.calls)
}

func TestPoolRunUnsortedKeepsGroupOrder(t *testing.T) {
	src := newFakeSource()
	src.subjects["Zed"] = []types.PublicationStub{
		stub("z1", "Zed newest", "abs", 2022),
		stub("z2", "Zed older", "abs", 2021),
	}
	p := newTestPool(src, newFakeSupplier(), nil)
	p.SortOutput = false
	p.Workers = 1

	res, err := p.Run(context.Background(), []string{"Zed"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Zed newest", res.Rows[0].Title)
	assert.Equal(t, 0, res.Rows[0].Position)
	assert.Equal(t, 1, res.Rows[1].Position)
}
