// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/faculty-papers/internal/egress"
	"github.com/pdiddy/faculty-papers/pkg/types"
)

// fakeSource serves subjects and publications from in-memory tables. A name
// missing from subjects searches empty; a stub ID missing from bibs fills
// empty.
type fakeSource struct {
	mu sync.Mutex

	subjects map[string][]types.PublicationStub
	bibs     map[string]*types.PublicationBib

	// emptyFirst makes the first n searches for a name come back empty.
	emptyFirst map[string]int

	// searchErr and pubErr return hard errors for a name or stub ID.
	searchErr map[string]error
	pubErr    map[string]error

	// panicOn panics when one of these names is searched.
	panicOn map[string]bool

	calls    map[string]int
	routes   map[string][]string // subject name -> route IDs used for search
	released []string            // route IDs passed to ReleaseRoute
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		subjects:   make(map[string][]types.PublicationStub),
		bibs:       make(map[string]*types.PublicationBib),
		emptyFirst: make(map[string]int),
		searchErr:  make(map[string]error),
		pubErr:     make(map[string]error),
		panicOn:    make(map[string]bool),
		calls:      make(map[string]int),
		routes:     make(map[string][]string),
	}
}

func (f *fakeSource) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) ReleaseRoute(r egress.Route) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, r.ID)
}

func (f *fakeSource) SearchSubject(_ context.Context, route egress.Route, name string) ([]types.SubjectRecord, error) {
	if f.panicOn[name] {
		panic("source blew up on " + name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["search:"+name]++
	f.routes[name] = append(f.routes[name], route.ID)
	if err := f.searchErr[name]; err != nil {
		return nil, err
	}
	if f.calls["search:"+name] <= f.emptyFirst[name] {
		return nil, nil
	}
	if _, ok := f.subjects[name]; !ok {
		return nil, nil
	}
	return []types.SubjectRecord{{ID: name, Name: name}}, nil
}

func (f *fakeSource) FillSubject(_ context.Context, _ egress.Route, rec types.SubjectRecord, _ types.SortKey, _ int) (*types.SubjectRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["fill:"+rec.ID]++
	stubs, ok := f.subjects[rec.ID]
	if !ok {
		return nil, nil
	}
	// Deliberately ignores the limit so callers must enforce it.
	filled := rec
	filled.Publications = append([]types.PublicationStub(nil), stubs...)
	return &filled, nil
}

func (f *fakeSource) FillPublication(_ context.Context, _ egress.Route, stub types.PublicationStub) (*types.PublicationBib, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["pub:"+stub.ID]++
	if err := f.pubErr[stub.ID]; err != nil {
		return nil, err
	}
	bib, ok := f.bibs[stub.ID]
	if !ok {
		return nil, nil
	}
	cp := *bib
	return &cp, nil
}

// fakeSupplier hands out numbered routes and counts every call.
type fakeSupplier struct {
	mu sync.Mutex

	next      int
	acquires  int
	rotations int
	releases  int
	held      map[string]bool

	// exhausted makes Rotate fail with ErrSupplyExhausted.
	exhausted bool

	// failAcquire makes Acquire fail with ErrSupplyExhausted.
	failAcquire bool
}

func newFakeSupplier() *fakeSupplier {
	return &fakeSupplier{held: make(map[string]bool)}
}

func (s *fakeSupplier) newRoute() egress.Route {
	s.next++
	r := egress.Route{ID: fmt.Sprintf("r%d", s.next)}
	s.held[r.ID] = true
	return r
}

func (s *fakeSupplier) Acquire(ctx context.Context, _, _ time.Duration) (egress.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquires++
	if err := ctx.Err(); err != nil {
		return egress.Route{}, err
	}
	if s.failAcquire {
		return egress.Route{}, egress.ErrSupplyExhausted
	}
	return s.newRoute(), nil
}

func (s *fakeSupplier) Rotate(ctx context.Context, current egress.Route, _, _ time.Duration) (egress.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotations++
	if err := ctx.Err(); err != nil {
		return current, err
	}
	if s.exhausted {
		return current, egress.ErrSupplyExhausted
	}
	delete(s.held, current.ID)
	return s.newRoute(), nil
}

func (s *fakeSupplier) Release(r egress.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	delete(s.held, r.ID)
}

func (s *fakeSupplier) stats() (acquires, rotations, held int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquires, s.rotations, len(s.held)
}

// memExporter records what it was asked to write.
type memExporter struct {
	mu    sync.Mutex
	calls int
	rows  []types.OutputRow
	err   error
}

func (m *memExporter) Write(_ context.Context, rows []types.OutputRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.rows = append([]types.OutputRow(nil), rows...)
	return m.err
}

func testOptions() Options {
	return Options{
		RetryCount:       3,
		PublicationLimit: 2,
		SortBy:           types.SortByYear,
	}
}

func newTestSession(src *fakeSource, sup *fakeSupplier, opts Options) *Session {
	s, err := NewSession(context.Background(), src, sup, opts, zerolog.Nop(), nil)
	if err != nil {
		panic(err)
	}
	return s
}

func stub(id, title, abstract string, year int) types.PublicationStub {
	return types.PublicationStub{ID: id, Title: title, Abstract: abstract, Year: year}
}

func datePtr(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}
