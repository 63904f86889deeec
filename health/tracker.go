// Package health tracks per-provider availability for one capability category.
//
// A provider is taken out of rotation after a run of consecutive failures. With
// the default options it stays out until Reset is called or the process restarts.
// Setting a cooldown lets a single probe call through once the cooldown has passed.
package health

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

const DefaultFailureThreshold = 3

// ErrUnknownProvider is returned by Reset for a provider the tracker has never seen.
var ErrUnknownProvider = errors.New("unknown provider")

// Status is a point-in-time view of one provider.
type Status struct {
	Category            string    `json:"category"`
	Provider            string    `json:"provider"`
	Available           bool      `json:"available"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
	TrippedAt           time.Time `json:"tripped_at,omitzero"`
}

type Options struct {
	// FailureThreshold is the number of consecutive failures that trips a provider.
	FailureThreshold int
	// Cooldown of zero disables automatic recovery.
	Cooldown time.Duration
	// OnTrip is called, outside any lock, when a provider becomes unavailable.
	OnTrip func(Status)
	Now    func() time.Time
}

type Tracker struct {
	category string
	opts     Options

	mu        sync.RWMutex
	providers map[string]*entry
}

type entry struct {
	mu          sync.Mutex
	available   bool
	failures    int
	lastSuccess time.Time
	trippedAt   time.Time
}

func NewTracker(category string, opts Options) *Tracker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		category:  category,
		opts:      opts,
		providers: make(map[string]*entry),
	}
}

func (t *Tracker) Category() string { return t.category }

// entry returns the state for provider, creating it as available on first use.
func (t *Tracker) entry(provider string) *entry {
	t.mu.RLock()
	e, ok := t.providers[provider]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.providers[provider]; ok {
		return e
	}
	e = &entry{available: true}
	t.providers[provider] = e
	return e
}

// IsAvailable reports whether provider may be called. When a cooldown is set
// and has elapsed, exactly one caller is let through as a probe and the
// cooldown restarts for everyone else.
func (t *Tracker) IsAvailable(provider string) bool {
	e := t.entry(provider)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.available {
		return true
	}
	if t.opts.Cooldown <= 0 {
		return false
	}
	now := t.opts.Now()
	if now.Sub(e.trippedAt) < t.opts.Cooldown {
		return false
	}
	e.trippedAt = now
	slog.Info("HEALTH: Probing tripped provider", "category", t.category, "provider", provider)
	return true
}

func (t *Tracker) RecordSuccess(provider string) {
	e := t.entry(provider)
	e.mu.Lock()
	recovered := !e.available
	e.failures = 0
	e.available = true
	e.lastSuccess = t.opts.Now()
	e.trippedAt = time.Time{}
	e.mu.Unlock()

	if recovered {
		slog.Info("HEALTH: Provider recovered", "category", t.category, "provider", provider)
	}
}

func (t *Tracker) RecordFailure(provider string) {
	e := t.entry(provider)
	e.mu.Lock()
	e.failures++
	tripped := false
	if e.failures >= t.opts.FailureThreshold {
		if e.available {
			tripped = true
		}
		e.available = false
		e.trippedAt = t.opts.Now()
	}
	st := t.status(provider, e)
	e.mu.Unlock()

	if tripped {
		slog.Warn("HEALTH: Provider marked unavailable",
			"category", t.category,
			"provider", provider,
			"consecutive_failures", st.ConsecutiveFailures,
		)
		if t.opts.OnTrip != nil {
			t.opts.OnTrip(st)
		}
	}
}

// Reset puts provider back into rotation with a clean failure count. Only
// providers already tracked can be reset.
func (t *Tracker) Reset(provider string) error {
	t.mu.RLock()
	e, ok := t.providers[provider]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q in %s", ErrUnknownProvider, provider, t.category)
	}

	e.mu.Lock()
	e.available = true
	e.failures = 0
	e.trippedAt = time.Time{}
	e.mu.Unlock()
	slog.Info("HEALTH: Provider reset", "category", t.category, "provider", provider)
	return nil
}

func (t *Tracker) Status(provider string) Status {
	e := t.entry(provider)
	e.mu.Lock()
	defer e.mu.Unlock()
	return t.status(provider, e)
}

// Snapshot returns every provider seen so far, sorted by name.
func (t *Tracker) Snapshot() []Status {
	t.mu.RLock()
	names := make([]string, 0, len(t.providers))
	for name := range t.providers {
		names = append(names, name)
	}
	t.mu.RUnlock()

	slices.Sort(names)
	out := make([]Status, 0, len(names))
	for _, name := range names {
		out = append(out, t.Status(name))
	}
	return out
}

// Track registers providers up front so they show in Snapshot before their first call.
func (t *Tracker) Track(providers ...string) {
	for _, p := range providers {
		t.entry(p)
	}
}

func (t *Tracker) status(provider string, e *entry) Status {
	return Status{
		Category:            t.category,
		Provider:            provider,
		Available:           e.available,
		ConsecutiveFailures: e.failures,
		LastSuccess:         e.lastSuccess,
		TrippedAt:           e.trippedAt,
	}
}
