// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package egress

import (
	"context"
	"sync"
	"time"
)

// Pool leases routes from a fixed set. A leased route is never handed to a
// second holder until it is released, so concurrent workers never share an
// egress identity. Free routes are handed out round-robin.
type Pool struct {
	mu     sync.Mutex
	routes []Route
	leased map[string]bool
	next   int
	freed  chan struct{} // closed and replaced whenever the free set grows
	pace   pacer
}

// NewPool returns a pool over routes.
func NewPool(routes []Route) *Pool {
	return &Pool{
		routes: routes,
		leased: make(map[string]bool),
		freed:  make(chan struct{}),
	}
}

// Acquire leases the next free route. It waits for the pacing interval first
// and then for a release if every route is held, failing with
// ErrSupplyExhausted once timeout plus wait has elapsed after pacing.
func (p *Pool) Acquire(ctx context.Context, timeout, wait time.Duration) (Route, error) {
	if err := p.pace.wait(ctx, wait); err != nil {
		return Route{}, acquireErr(ctx)
	}
	return p.lease(ctx, timeout, wait)
}

// lease takes a free route without pacing, waiting up to timeout plus wait
// for a release.
func (p *Pool) lease(ctx context.Context, timeout, wait time.Duration) (Route, error) {
	ctx, cancel := withTimeout(ctx, timeout, wait)
	defer cancel()

	for {
		p.mu.Lock()
		r, ok := p.leaseLocked("")
		freed := p.freed
		p.mu.Unlock()
		if ok {
			return r, nil
		}
		select {
		case <-freed:
		case <-ctx.Done():
			return Route{}, acquireErr(ctx)
		}
	}
}

// Rotate swaps current for a different free route in one step, so the
// caller never holds zero or two leases. If no other route is free it keeps
// current and returns ErrSupplyExhausted without waiting.
func (p *Pool) Rotate(ctx context.Context, current Route, _, wait time.Duration) (Route, error) {
	if err := p.pace.wait(ctx, wait); err != nil {
		return current, acquireErr(ctx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.leaseLocked(current.ID)
	if !ok {
		return current, ErrSupplyExhausted
	}
	if p.leased[current.ID] {
		delete(p.leased, current.ID)
		p.wake()
	}
	return r, nil
}

// Release returns r to the pool. Releasing an unknown or free route is a no-op.
func (p *Pool) Release(r Route) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.leased[r.ID] {
		return
	}
	delete(p.leased, r.ID)
	p.wake()
}

// Len returns the number of routes in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.routes)
}

// Leased returns the number of routes currently held.
func (p *Pool) Leased() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.leased)
}

// Free returns the number of routes not currently held.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, r := range p.routes {
		if !p.leased[r.ID] {
			n++
		}
	}
	return n
}

// Add appends routes to the pool and wakes waiting acquirers.
func (p *Pool) Add(routes ...Route) {
	if len(routes) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes = append(p.routes, routes...)
	p.wake()
}

// Drop releases r and removes it from the pool for good.
func (p *Pool) Drop(r Route) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.leased, r.ID)
	kept := p.routes[:0]
	for _, existing := range p.routes {
		if existing.ID != r.ID {
			kept = append(kept, existing)
		}
	}
	p.routes = kept
	if p.next > len(p.routes) {
		p.next = 0
	}
}

// tryLease leases a free route other than skipID without waiting.
func (p *Pool) tryLease(skipID string) (Route, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.leaseLocked(skipID)
}

// snapshot returns a copy of the route set.
func (p *Pool) snapshot() []Route {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Route(nil), p.routes...)
}

// wake signals waiters; callers hold p.mu.
func (p *Pool) wake() {
	close(p.freed)
	p.freed = make(chan struct{})
}

// leaseLocked leases the next free route other than skipID. Callers hold p.mu.
func (p *Pool) leaseLocked(skipID string) (Route, bool) {
	for i := 0; i < len(p.routes); i++ {
		idx := (p.next + i) % len(p.routes)
		r := p.routes[idx]
		if p.leased[r.ID] || (skipID != "" && r.ID == skipID) {
			continue
		}
		p.leased[r.ID] = true
		p.next = idx + 1
		return r, true
	}
	return Route{}, false
}
