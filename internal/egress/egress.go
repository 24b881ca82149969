// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package egress supplies network routes for record source calls. A route is
// a value owned by exactly one worker at a time; suppliers lease routes and
// take them back on Release.
package egress

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/pdiddy/faculty-papers/pkg/types"
)

// ErrSupplyExhausted is returned when no route became available within the
// acquisition timeout.
var ErrSupplyExhausted = errors.New("egress supply exhausted")

// Route is an egress identity. A nil Proxy means a direct connection.
type Route struct {
	ID    string
	Proxy *url.URL
}

// Direct returns a route without a proxy.
func Direct() Route {
	return Route{ID: "direct"}
}

// IsDirect reports whether the route bypasses any proxy.
func (r Route) IsDirect() bool { return r.Proxy == nil }

// String returns the proxy address with credentials redacted.
func (r Route) String() string {
	if r.Proxy == nil {
		return "direct"
	}
	return r.Proxy.Redacted()
}

// Supplier hands out routes. Acquire and Rotate may block up to timeout plus
// the wait interval; the blocking throttles callers and is not an error.
//
// Rotate trades the caller's current route for a different one. On error the
// caller keeps current, which stays leased to it.
type Supplier interface {
	Acquire(ctx context.Context, timeout, wait time.Duration) (Route, error)
	Rotate(ctx context.Context, current Route, timeout, wait time.Duration) (Route, error)
	Release(r Route)
}

// ParseProxy converts "host:port" or a full proxy URL into a Route.
func ParseProxy(raw string) (Route, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Route{}, fmt.Errorf("empty proxy address")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Route{}, fmt.Errorf("parsing proxy %q: %w", raw, err)
	}
	if u.Host == "" {
		return Route{}, fmt.Errorf("proxy %q has no host", raw)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return Route{}, fmt.Errorf("proxy %q: unsupported scheme %q", raw, u.Scheme)
	}
	return Route{ID: uuid.NewString(), Proxy: u}, nil
}

// New builds the supplier selected by cfg.Mode.
func New(cfg types.EgressConfig, probe Prober) (Supplier, error) {
	switch cfg.Mode {
	case types.EgressDirect, "":
		return NewDirectSupplier(), nil
	case types.EgressList:
		routes := make([]Route, 0, len(cfg.Proxies))
		for _, p := range cfg.Proxies {
			r, err := ParseProxy(p)
			if err != nil {
				return nil, err
			}
			routes = append(routes, r)
		}
		if len(routes) == 0 {
			return nil, fmt.Errorf("egress mode %q requires at least one proxy", cfg.Mode)
		}
		return NewPool(routes), nil
	case types.EgressFetch:
		if cfg.ListURL == "" {
			return nil, fmt.Errorf("egress mode %q requires a proxy list URL", cfg.Mode)
		}
		return NewFetchSupplier(cfg.ListURL, probe), nil
	default:
		return nil, fmt.Errorf("unknown egress mode %q", cfg.Mode)
	}
}

// pacer spaces acquisitions at least every apart. The limiter is created
// lazily because the interval arrives with each Acquire call.
type pacer struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	every   time.Duration
}

// wait blocks until the caller's turn. Every caller gets a slot however far
// out it is queued; only cancellation of ctx ends the wait early, in which
// case the slot is handed back.
func (p *pacer) wait(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		return ctx.Err()
	}
	p.mu.Lock()
	if p.limiter == nil || p.every != every {
		p.limiter = rate.NewLimiter(rate.Every(every), 1)
		p.every = every
	}
	res := p.limiter.Reserve()
	p.mu.Unlock()

	delay := res.Delay()
	if delay == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		res.Cancel()
		return ctx.Err()
	}
}

// DirectSupplier always returns the direct route. It still honours the wait
// interval so retries against the source are spaced out.
type DirectSupplier struct {
	pace pacer
}

// NewDirectSupplier returns a supplier with no proxies.
func NewDirectSupplier() *DirectSupplier {
	return &DirectSupplier{}
}

// Acquire waits for the pacing interval and returns the direct route. The
// pacing wait is throttling and is not bounded by timeout.
func (s *DirectSupplier) Acquire(ctx context.Context, _, wait time.Duration) (Route, error) {
	if err := s.pace.wait(ctx, wait); err != nil {
		return Route{}, acquireErr(ctx)
	}
	return Direct(), nil
}

// Rotate is Acquire: there is only one direct route.
func (s *DirectSupplier) Rotate(ctx context.Context, _ Route, timeout, wait time.Duration) (Route, error) {
	return s.Acquire(ctx, timeout, wait)
}

// Release is a no-op for the direct route.
func (s *DirectSupplier) Release(Route) {}

// withTimeout bounds the lease step of an acquisition by timeout plus wait.
// Pacing happens before it and is not counted. A zero timeout
// leaves ctx unbounded.
func withTimeout(ctx context.Context, timeout, wait time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout+wait)
}

// acquireErr maps an expired acquisition to ErrSupplyExhausted while passing
// caller cancellation through.
func acquireErr(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil, errors.Is(err, context.DeadlineExceeded):
		return ErrSupplyExhausted
	default:
		return err
	}
}
