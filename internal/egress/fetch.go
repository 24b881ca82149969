// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package egress

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// maxCandidates caps how many working proxies one refresh adds to the pool.
const maxCandidates = 8

// Prober checks that a route can reach the outside world.
type Prober interface {
	Probe(ctx context.Context, r Route) error
}

// FetchSupplier leases proxies from a public proxy list. When every known
// proxy is held it downloads the list again, probes new candidates, and adds
// the working ones to its pool. Released proxies are considered burned and
// are never handed out again.
type FetchSupplier struct {
	listURL string
	client  *http.Client
	probe   Prober
	pool    *Pool
	pace    pacer

	refreshMu sync.Mutex // serializes list downloads

	mu     sync.Mutex
	burned map[string]bool // keyed by proxy host
}

// NewFetchSupplier returns a supplier backed by the list at listURL. probe
// may be nil to skip candidate checks.
func NewFetchSupplier(listURL string, probe Prober) *FetchSupplier {
	return &FetchSupplier{
		listURL: listURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		probe:   probe,
		pool:    NewPool(nil),
		burned:  make(map[string]bool),
	}
}

// Acquire leases a proxy, refreshing the candidate list whenever none is
// free. Pacing comes first; timeout plus wait bounds the rest.
func (s *FetchSupplier) Acquire(ctx context.Context, timeout, wait time.Duration) (Route, error) {
	if err := s.pace.wait(ctx, wait); err != nil {
		return Route{}, acquireErr(ctx)
	}
	ctx, cancel := withTimeout(ctx, timeout, wait)
	defer cancel()
	return s.lease(ctx, "")
}

// Rotate leases a fresh proxy and burns current. If no fresh proxy can be
// found current is kept and stays usable.
func (s *FetchSupplier) Rotate(ctx context.Context, current Route, timeout, wait time.Duration) (Route, error) {
	if err := s.pace.wait(ctx, wait); err != nil {
		return current, acquireErr(ctx)
	}
	ctx, cancel := withTimeout(ctx, timeout, wait)
	defer cancel()

	r, err := s.lease(ctx, current.ID)
	if err != nil {
		return current, err
	}
	s.Release(current)
	return r, nil
}

// lease alternates between taking a free proxy and refreshing the list, so
// a proxy taken by another worker in between only costs another round.
func (s *FetchSupplier) lease(ctx context.Context, skipID string) (Route, error) {
	for {
		if r, ok := s.pool.tryLease(skipID); ok {
			return r, nil
		}
		if ctx.Err() != nil {
			return Route{}, acquireErr(ctx)
		}
		if err := s.refresh(ctx); err != nil {
			return Route{}, err
		}
	}
}

// Release burns r: it leaves the pool and is skipped by later refreshes.
func (s *FetchSupplier) Release(r Route) {
	if r.Proxy != nil {
		s.burn(r.Proxy.Host)
	}
	s.pool.Drop(r)
}

func (s *FetchSupplier) burn(host string) {
	s.mu.Lock()
	s.burned[host] = true
	s.mu.Unlock()
}

func (s *FetchSupplier) isBurned(host string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.burned[host]
}

// refresh downloads the proxy list and adds up to maxCandidates working,
// unseen proxies. Concurrent callers serialize; a caller that finds free
// proxies after waiting its turn returns without downloading.
func (s *FetchSupplier) refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.pool.Free() > 0 {
		return nil
	}

	candidates, err := s.fetchList(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return acquireErr(ctx)
		}
		return fmt.Errorf("fetching proxy list: %w", err)
	}

	known := make(map[string]bool)
	for _, r := range s.pool.snapshot() {
		known[r.Proxy.Host] = true
	}

	var added []Route
	for _, r := range candidates {
		if len(added) >= maxCandidates {
			break
		}
		if ctx.Err() != nil {
			break
		}
		host := r.Proxy.Host
		if known[host] || s.isBurned(host) {
			continue
		}
		known[host] = true
		if s.probe != nil {
			if err := s.probe.Probe(ctx, r); err != nil {
				s.burn(host)
				continue
			}
		}
		added = append(added, r)
	}

	if len(added) == 0 {
		if ctx.Err() != nil {
			return acquireErr(ctx)
		}
		return ErrSupplyExhausted
	}
	s.pool.Add(added...)
	return nil
}

func (s *FetchSupplier) fetchList(ctx context.Context) ([]Route, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proxy list returned HTTP %d", resp.StatusCode)
	}
	return ParseList(resp.Body)
}

// ParseList reads one proxy per line. Blank lines and lines starting with
// '#' are skipped; malformed entries are ignored.
func ParseList(r io.Reader) ([]Route, error) {
	var routes []Route
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		route, err := ParseProxy(line)
		if err != nil {
			continue
		}
		routes = append(routes, route)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading proxy list: %w", err)
	}
	return routes, nil
}
