// Package health serves the liveness and readiness probes of the API
// server.
//
// Every registered check runs on its own ticker. A check flips to failing
// after FailureThreshold consecutive errors and back to passing after
// SuccessThreshold consecutive successes, so one slow ping does not pull
// the instance out of rotation.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

// Probe selects the endpoint a check contributes to.
type Probe int

const (
	// Liveness checks decide whether the process should be restarted.
	Liveness Probe = iota
	// Readiness checks decide whether the instance receives traffic.
	Readiness
)

// Check describes a registered check. Zero thresholds default to 3
// failures and 1 success; a zero timeout defaults to one second.
type Check struct {
	Name             string
	Timeout          time.Duration
	Func             CheckFunc
	FailureThreshold int
	SuccessThreshold int
}

func (c Check) withDefaults() Check {
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	return c
}

// state holds the runtime status of one check. The counters belong to the
// single goroutine calling run; passing and lastErr are read concurrently
// by the endpoints.
type state struct {
	Check

	passing atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func newState(c Check) *state {
	s := &state{Check: c.withDefaults()}
	s.passing.Store(true)
	return s
}

func (s *state) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	err := s.Func(ctx)
	s.lastErr.Store(&err)

	if err != nil {
		s.oks = 0
		s.fails++
		if s.fails >= s.FailureThreshold {
			s.passing.Store(false)
		}
		return
	}
	s.fails = 0
	s.oks++
	if s.oks >= s.SuccessThreshold {
		s.passing.Store(true)
	}
}

func (s *state) err() error {
	if p := s.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Health tracks probe state for a service. It starts not ready.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks map[Probe][]*state
	cancel context.CancelFunc
}

// New returns a Health with no checks.
func New() *Health {
	return &Health{checks: make(map[Probe][]*state)}
}

// Register adds a check to probe. Register before Start.
func (h *Health) Register(probe Probe, c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[probe] = append(h.checks[probe], newState(c))
}

func (h *Health) snapshot(probe Probe) []*state {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*state(nil), h.checks[probe]...)
}

// Start runs every check immediately and then once per interval until ctx
// is done or Stop is called.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	var all []*state
	for _, list := range h.checks {
		all = append(all, list...)
	}
	h.mu.Unlock()

	for _, s := range all {
		go loop(ctx, s, interval)
	}
}

func loop(ctx context.Context, s *state, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

// Stop cancels the check goroutines. It is idempotent.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady marks the service ready once initialisation completes, or not
// ready while draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, s := range h.snapshot(Readiness) {
		if !s.passing.Load() {
			return false
		}
	}
	return true
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, report(h.snapshot(Liveness)), nil)
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	ready := h.ready.Load()
	writeReport(w, report(h.snapshot(Readiness)), &ready)
}

type checkResult struct {
	name    string
	passing bool
	message string
}

func report(states []*state) []checkResult {
	out := make([]checkResult, 0, len(states))
	for _, s := range states {
		r := checkResult{name: s.Name, passing: s.passing.Load()}
		if !r.passing {
			r.message = "check is failing"
			if err := s.err(); err != nil {
				r.message = err.Error()
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// writeReport writes
//
//	{"status":"ok|unhealthy","ready":bool,"checks":{"name":{"status":"ok|failing","error":"..."}}}
//
// ready is omitted when nil.
func writeReport(w http.ResponseWriter, results []checkResult, ready *bool) {
	healthy := ready == nil || *ready
	for _, r := range results {
		healthy = healthy && r.passing
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	if healthy {
		e.Str("ok")
	} else {
		e.Str("unhealthy")
	}
	if ready != nil {
		e.FieldStart("ready")
		e.Bool(*ready)
	}
	if len(results) > 0 {
		e.FieldStart("checks")
		e.ObjStart()
		for _, r := range results {
			e.FieldStart(r.name)
			e.ObjStart()
			e.FieldStart("status")
			if r.passing {
				e.Str("ok")
			} else {
				e.Str("failing")
				e.FieldStart("error")
				e.Str(r.message)
			}
			e.ObjEnd()
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
