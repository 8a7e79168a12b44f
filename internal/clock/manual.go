// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual provides deterministic time control for testing. Scheduled callbacks
// run synchronously on the goroutine calling Advance.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	entries []*entry
}

type entry struct {
	seq     int
	period  time.Duration
	next    time.Time
	fn      func()
	stopped bool
}

// NewManual creates a manual clock starting at the given time.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Every(period time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	e := &entry{seq: m.seq, period: period, next: m.now.Add(period), fn: fn}
	m.entries = append(m.entries, e)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		e.stopped = true
		m.prune()
	}
}

// Advance moves the clock forward by d, firing every due callback in
// chronological order (ties in registration order).
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		due := m.nextDue(target)
		if due == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = due.next
		due.next = due.next.Add(due.period)
		fn := due.fn
		m.mu.Unlock()

		fn()
	}
}

// Pending returns the number of active schedules.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if !e.stopped {
			n++
		}
	}
	return n
}

func (m *Manual) nextDue(target time.Time) *entry {
	var candidates []*entry
	for _, e := range m.entries {
		if !e.stopped && !e.next.After(target) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].next.Equal(candidates[j].next) {
			return candidates[i].seq < candidates[j].seq
		}
		return candidates[i].next.Before(candidates[j].next)
	})
	return candidates[0]
}

func (m *Manual) prune() {
	out := m.entries[:0]
	for _, e := range m.entries {
		if !e.stopped {
			out = append(out, e)
		}
	}
	m.entries = out
}
