// SPDX-License-Identifier: MIT
package transport

import (
	"sync"
	"time"
)

// Throttled forwards at most one payload per interval to the wrapped
// transport and silently drops the rest. Spectra arrive once per block,
// which can be far faster than a browser wants to redraw.
type Throttled struct {
	next     Transport
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	last    time.Time
	dropped uint64
}

// NewThrottled wraps next. A non-positive interval forwards everything.
func NewThrottled(next Transport, interval time.Duration) *Throttled {
	return &Throttled{next: next, interval: interval, now: time.Now}
}

func (t *Throttled) Send(data any) error {
	t.mu.Lock()
	now := t.now()
	if t.interval > 0 && !t.last.IsZero() && now.Sub(t.last) < t.interval {
		t.dropped++
		t.mu.Unlock()
		return nil
	}
	t.last = now
	t.mu.Unlock()
	return t.next.Send(data)
}

// Dropped returns how many payloads were discarded.
func (t *Throttled) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

func (t *Throttled) Close() error {
	if n := t.Dropped(); n > 0 {
		logger.Debugf("Throttle dropped %d payloads", n)
	}
	return t.next.Close()
}

var _ Transport = (*Throttled)(nil)
