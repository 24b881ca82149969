// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source looks up subjects and their publications in academic APIs.
// Each backend (Semantic Scholar, OpenAlex) implements RecordSource.
//
// A lookup that comes back empty returns a nil value and a nil error. Callers
// treat that as a signal to rotate the egress route and try again; errors are
// reserved for failures a new route cannot fix.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/pdiddy/faculty-papers/internal/egress"
	"github.com/pdiddy/faculty-papers/internal/httputil"
	"github.com/pdiddy/faculty-papers/pkg/types"
)

// ErrNotFound is returned when the source reports that an entity does not exist.
var ErrNotFound = errors.New("not found")

// RecordSource searches subjects, fills their publication lists, and fills
// individual publications. Every call travels through the given route.
type RecordSource interface {
	Name() string

	// SearchSubject returns candidate records for name in source order.
	SearchSubject(ctx context.Context, route egress.Route, name string) ([]types.SubjectRecord, error)

	// FillSubject returns rec with at most limit publications, most recent
	// first according to sortBy.
	FillSubject(ctx context.Context, route egress.Route, rec types.SubjectRecord, sortBy types.SortKey, limit int) (*types.SubjectRecord, error)

	// FillPublication returns the full bibliographic fields for stub.
	FillPublication(ctx context.Context, route egress.Route, stub types.PublicationStub) (*types.PublicationBib, error)
}

// RouteReleaser is implemented by sources that keep per-route state.
// ReleaseRoute drops that state once the caller stops using the route.
type RouteReleaser interface {
	ReleaseRoute(route egress.Route)
}

// New returns the backend named by cfg.Backend.
func New(cfg types.SourceConfig) (RecordSource, error) {
	switch cfg.Backend {
	case "semantic_scholar", "":
		return NewSemanticScholar(cfg), nil
	case "openalex":
		return NewOpenAlex(cfg), nil
	default:
		return nil, fmt.Errorf("unknown record source %q", cfg.Backend)
	}
}

// client holds per-route HTTP clients and rate limiters shared by backends.
// Clients are cached by route ID so connection pools survive across calls.
type client struct {
	cfg types.SourceConfig

	mu       sync.Mutex
	clients  map[string]*http.Client
	limiters map[string]*rate.Limiter
}

func newClient(cfg types.SourceConfig) *client {
	return &client{
		cfg:      cfg,
		clients:  make(map[string]*http.Client),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *client) forRoute(route egress.Route) (*http.Client, *rate.Limiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hc, ok := c.clients[route.ID]
	if !ok {
		hc = httputil.ClientFor(route, c.cfg.Timeout)
		c.clients[route.ID] = hc
	}
	lim, ok := c.limiters[route.ID]
	if !ok {
		limit := rate.Inf
		if c.cfg.RateLimit > 0 {
			limit = rate.Limit(c.cfg.RateLimit)
		}
		lim = rate.NewLimiter(limit, 1)
		c.limiters[route.ID] = lim
	}
	return hc, lim
}

// ReleaseRoute closes idle connections of route's client and forgets its
// client and limiter.
func (c *client) ReleaseRoute(route egress.Route) {
	c.mu.Lock()
	hc := c.clients[route.ID]
	delete(c.clients, route.ID)
	delete(c.limiters, route.ID)
	c.mu.Unlock()
	if hc != nil {
		hc.CloseIdleConnections()
	}
}

// getJSON fetches reqURL through route and decodes the body into v. It
// reports ok=false with a nil error when the failure is transient.
func (c *client) getJSON(ctx context.Context, route egress.Route, reqURL string, headers map[string]string, v any) (bool, error) {
	hc, lim := c.forRoute(route)
	if err := lim.Wait(ctx); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := httputil.Do(ctx, hc, req)
	if err != nil {
		var se *httputil.StatusError
		switch {
		case errors.Is(err, httputil.ErrTransient):
			return false, nil
		case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
			return false, fmt.Errorf("%w: %s", ErrNotFound, se.URL)
		default:
			return false, err
		}
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, fmt.Errorf("parsing response: %w", err)
	}
	return true, nil
}

// sortStubs orders stubs most recent first (by timestamp, falling back to
// year) and truncates to limit. Stubs with no date sort last; ties keep
// source order.
func sortStubs(stubs []types.PublicationStub, limit int) []types.PublicationStub {
	sort.SliceStable(stubs, func(i, j int) bool {
		return recency(stubs[i]) > recency(stubs[j])
	})
	if limit > 0 && len(stubs) > limit {
		stubs = stubs[:limit]
	}
	return stubs
}

// recency returns a comparable key: YYYYMMDD for timestamps, YYYY0000 for
// bare years, and zero when no date is known.
func recency(p types.PublicationStub) int {
	if p.Timestamp != nil {
		t := *p.Timestamp
		return t.Year()*10000 + int(t.Month())*100 + t.Day()
	}
	return p.Year * 10000
}

// truncate bounds stubs to limit without reordering.
func truncate(stubs []types.PublicationStub, limit int) []types.PublicationStub {
	if limit > 0 && len(stubs) > limit {
		return stubs[:limit]
	}
	return stubs
}
