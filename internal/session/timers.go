package session

import (
	"sync"
	"time"
)

// Timer purposes. Each purpose holds at most one live timer; scheduling a
// purpose again replaces the previous timer so nothing fires twice.
const (
	TimerHeartbeat    = "heartbeat"
	TimerReconnect    = "reconnect"
	TimerLogin        = "login"
	TimerOnHoldText   = "on-hold-text"
	TimerOnHoldURL    = "on-hold-url"
	TimerTypingPrefix = "typing:" // + participant id
)

type timerEntry struct {
	timer *time.Timer
	gen   uint64
}

// Registry tracks every timer the session owns, keyed by purpose, so that
// teardown is a single total operation.
type Registry struct {
	mu     sync.Mutex
	timers map[string]*timerEntry
	gen    uint64
}

// NewRegistry creates an empty timer registry
func NewRegistry() *Registry {
	return &Registry{
		timers: make(map[string]*timerEntry),
	}
}

// Schedule runs fn once after d, replacing any existing timer for the
// same purpose.
func (r *Registry) Schedule(purpose string, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelLocked(purpose)
	r.gen++
	gen := r.gen

	entry := &timerEntry{gen: gen}
	entry.timer = time.AfterFunc(d, func() {
		if !r.claim(purpose, gen) {
			return
		}
		fn()
	})
	r.timers[purpose] = entry
}

// ScheduleRepeating runs fn every d until the purpose is cancelled,
// replacing any existing timer for the same purpose.
func (r *Registry) ScheduleRepeating(purpose string, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduleRepeatingLocked(purpose, d, fn)
}

func (r *Registry) scheduleRepeatingLocked(purpose string, d time.Duration, fn func()) {
	r.cancelLocked(purpose)
	r.gen++
	gen := r.gen

	entry := &timerEntry{gen: gen}
	entry.timer = time.AfterFunc(d, func() {
		if !r.owns(purpose, gen) {
			return
		}
		fn()
		// Re-arm unless the purpose was cancelled or replaced while fn ran
		r.mu.Lock()
		if cur, ok := r.timers[purpose]; ok && cur.gen == gen {
			r.scheduleRepeatingLocked(purpose, d, fn)
		}
		r.mu.Unlock()
	})
	r.timers[purpose] = entry
}

// owns reports whether the entry for purpose still belongs to gen,
// without removing it
func (r *Registry) owns(purpose string, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.timers[purpose]
	return ok && entry.gen == gen
}

// claim removes the entry for purpose if it still belongs to gen. A false
// return means the timer was cancelled or replaced after firing.
func (r *Registry) claim(purpose string, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.timers[purpose]
	if !ok || entry.gen != gen {
		return false
	}
	delete(r.timers, purpose)
	return true
}

// Cancel stops the timer for the given purpose, if any. Safe to call for
// purposes that were never scheduled.
func (r *Registry) Cancel(purpose string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked(purpose)
}

func (r *Registry) cancelLocked(purpose string) {
	if entry, ok := r.timers[purpose]; ok {
		entry.timer.Stop()
		delete(r.timers, purpose)
	}
}

// CancelAll stops every tracked timer
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for purpose, entry := range r.timers {
		entry.timer.Stop()
		delete(r.timers, purpose)
	}
}

// Active reports whether a timer exists for the given purpose
func (r *Registry) Active(purpose string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[purpose]
	return ok
}
