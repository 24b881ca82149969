// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/faculty-papers/internal/egress"
	"github.com/pdiddy/faculty-papers/pkg/types"
)

// scripted returns an op that reports empty for the first `empties` calls
// and present afterwards, recording the route of every call.
func scripted(empties int, seen *[]string) func(context.Context, egress.Route) (string, bool, error) {
	calls := 0
	return func(_ context.Context, r egress.Route) (string, bool, error) {
		calls++
		*seen = append(*seen, r.ID)
		if calls <= empties {
			return "", false, nil
		}
		return fmt.Sprintf("value-%d", calls), true, nil
	}
}

func TestRetryPresentOnFirstCall(t *testing.T) {
	sup := newFakeSupplier()
	s := newTestSession(newFakeSource(), sup, testOptions())

	var seen []string
	got, err := Retry(context.Background(), s, "Ada", "op", scripted(0, &seen))
	require.NoError(t, err)
	assert.Equal(t, "value-1", got)
	assert.Equal(t, []string{"r1"}, seen)

	_, rotations, _ := sup.stats()
	assert.Zero(t, rotations)
}

func TestRetryRotatesOnEmpty(t *testing.T) {
	sup := newFakeSupplier()
	s := newTestSession(newFakeSource(), sup, testOptions())

	var seen []string
	got, err := Retry(context.Background(), s, "Ada", "op", scripted(2, &seen))
	require.NoError(t, err)
	assert.Equal(t, "value-3", got)
	assert.Equal(t, []string{"r1", "r2", "r3"}, seen, "each retry uses a fresh route")
	assert.Equal(t, "r3", s.Route().ID)

	_, rotations, _ := sup.stats()
	assert.Equal(t, 2, rotations)
}

func TestRetryExhausted(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		t.Run(fmt.Sprintf("attempts=%d", n), func(t *testing.T) {
			sup := newFakeSupplier()
			opts := testOptions()
			opts.RetryCount = n
			s := newTestSession(newFakeSource(), sup, opts)

			var seen []string
			_, err := Retry(context.Background(), s, "Ghost Person", "search_subject", scripted(100, &seen))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRetryExhausted))

			var re *RetryExhaustedError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, "Ghost Person", re.Subject)
			assert.Equal(t, "search_subject", re.Operation)
			assert.Equal(t, n, re.Attempts)

			assert.Len(t, seen, n)
			acquires, rotations, _ := sup.stats()
			assert.Equal(t, 1, acquires, "only the session start acquires")
			assert.Equal(t, n-1, rotations, "one rotation per retry")
		})
	}
}

func TestRetryZeroCountStillCallsOnce(t *testing.T) {
	opts := testOptions()
	opts.RetryCount = 0
	s := newTestSession(newFakeSource(), newFakeSupplier(), opts)

	var seen []string
	_, err := Retry(context.Background(), s, "Ada", "op", scripted(100, &seen))
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.Len(t, seen, 1)
}

func TestRetryHardErrorStops(t *testing.T) {
	sup := newFakeSupplier()
	s := newTestSession(newFakeSource(), sup, testOptions())
	boom := errors.New("boom")

	calls := 0
	_, err := Retry(context.Background(), s, "Ada", "op", func(context.Context, egress.Route) (int, bool, error) {
		calls++
		return 0, false, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	_, rotations, _ := sup.stats()
	assert.Zero(t, rotations)
}

func TestRetryKeepsRouteWhenSupplyExhausted(t *testing.T) {
	sup := newFakeSupplier()
	sup.exhausted = true
	s := newTestSession(newFakeSource(), sup, testOptions())

	var seen []string
	got, err := Retry(context.Background(), s, "Ada", "op", scripted(2, &seen))
	require.NoError(t, err)
	assert.Equal(t, "value-3", got)
	assert.Equal(t, []string{"r1", "r1", "r1"}, seen)
}

func TestRetryCancelledDuringRotation(t *testing.T) {
	s := newTestSession(newFakeSource(), newFakeSupplier(), testOptions())
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Retry(ctx, s, "Ada", "op", func(context.Context, egress.Route) (string, bool, error) {
		calls++
		cancel()
		return "", false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNewSessionAcquireFailure(t *testing.T) {
	sup := newFakeSupplier()
	sup.failAcquire = true
	_, err := NewSession(context.Background(), newFakeSource(), sup, testOptions(), zerolog.Nop(), nil)
	assert.ErrorIs(t, err, egress.ErrSupplyExhausted)
}

func TestSessionCloseReleasesRoute(t *testing.T) {
	sup := newFakeSupplier()
	s := newTestSession(newFakeSource(), sup, testOptions())
	_, _, held := sup.stats()
	require.Equal(t, 1, held)

	s.Close()
	_, _, held = sup.stats()
	assert.Zero(t, held)
}

func TestOptionsFrom(t *testing.T) {
	var cfg types.Config
	cfg.Harvest.RetryCount = 4
	cfg.Harvest.PublicationLimit = 7
	cfg.Harvest.SortBy = types.SortByCitations
	cfg.Egress.AcquireTimeout = 9
	cfg.Egress.AcquireWait = 3

	assert.Equal(t, Options{
		RetryCount:       4,
		PublicationLimit: 7,
		SortBy:           types.SortByCitations,
		AcquireTimeout:   9,
		AcquireWait:      3,
	}, OptionsFrom(cfg))
}

func TestSessionReleasesSourceStateForReplacedRoutes(t *testing.T) {
	src := newFakeSource()
	s := newTestSession(src, newFakeSupplier(), testOptions())

	var seen []string
	_, err := Retry(context.Background(), s, "Ada", "op", scripted(2, &seen))
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, src.released)

	s.Close()
	assert.Equal(t, []string{"r1", "r2", "r3"}, src.released)
}

func TestSessionKeepsSourceStateWhenRouteKept(t *testing.T) {
	src := newFakeSource()
	sup := newFakeSupplier()
	sup.exhausted = true
	s := newTestSession(src, sup, testOptions())

	var seen []string
	_, err := Retry(context.Background(), s, "Ada", "op", scripted(2, &seen))
	require.NoError(t, err)
	assert.Empty(t, src.released)
}
