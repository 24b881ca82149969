// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by record sources and egress
// suppliers. Every client is bound to one egress route; no proxy setting is
// ever installed process-wide.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/faculty-papers/internal/egress"
)

// DefaultTimeout applies when a caller passes a zero timeout.
const DefaultTimeout = 30 * time.Second

// ClientFor returns an HTTP client whose transport sends every request
// through route. A direct route gets a transport without a proxy, ignoring
// HTTP_PROXY and friends so the route value alone decides egress.
func ClientFor(route egress.Route, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = nil
	if route.Proxy != nil {
		tr.Proxy = http.ProxyURL(route.Proxy)
	}
	return &http.Client{Transport: tr, Timeout: timeout}
}

// IsTransient reports whether status signals a blocked or overloaded
// upstream: 403 and 429 from bot defenses, and any 5xx.
func IsTransient(status int) bool {
	switch {
	case status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return true
	case status >= 500 && status < 600:
		return true
	default:
		return false
	}
}

// ErrTransient marks a request that failed in a way a fresh route may fix.
var ErrTransient = errors.New("transient upstream failure")

// StatusError is a non-transient HTTP failure.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// Do executes req with client. Transport failures and transient statuses
// return an error wrapping ErrTransient; other non-200 statuses return a
// *StatusError. Caller cancellation is returned unchanged. On success the
// caller owns the response body.
func Do(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Dial, TLS, and proxy failures all point at the route.
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if IsTransient(resp.StatusCode) {
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrTransient, resp.StatusCode, req.URL.Redacted())
	}
	return nil, &StatusError{URL: req.URL.Redacted(), StatusCode: resp.StatusCode}
}

// Prober checks a route by requesting URL through it.
type Prober struct {
	URL     string
	Timeout time.Duration
}

// Probe issues a GET to p.URL through r and expects a 2xx response.
func (p Prober) Probe(ctx context.Context, r egress.Route) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fmt.Errorf("creating probe request: %w", err)
	}
	resp, err := ClientFor(r, timeout).Do(req)
	if err != nil {
		return fmt.Errorf("probing %s: %w", r, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probing %s: HTTP %d", r, resp.StatusCode)
	}
	return nil
}
