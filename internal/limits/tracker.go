// Package limits caps the number of successful downloads of one job.
package limits

import "sync"

// Tracker distinguishes URLs that hold a reserved slot from confirmed
// successes. While enabled, successful+reserved never exceeds max.
type Tracker struct {
	mu         sync.Mutex
	max        int
	successful int
	reserved   map[string]struct{}
	notified   bool
}

// NewTracker returns a tracker for max successful downloads; max <= 0
// disables the limit.
func NewTracker(max int) *Tracker {
	return &Tracker{
		max:      max,
		reserved: make(map[string]struct{}),
	}
}

func (t *Tracker) Enabled() bool {
	return t.max > 0
}

// TryAcquire reserves a slot for url. Reserving an already reserved URL
// succeeds without taking a second slot.
func (t *Tracker) TryAcquire(url string) bool {
	if !t.Enabled() {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.successful >= t.max {
		return false
	}
	if _, ok := t.reserved[url]; ok {
		return true
	}
	if t.successful+len(t.reserved) >= t.max {
		return false
	}
	t.reserved[url] = struct{}{}
	return true
}

// OnSuccess converts url's reservation into a success and reports whether the
// limit is now reached.
func (t *Tracker) OnSuccess(url string) bool {
	if !t.Enabled() {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.reserved[url]; ok {
		delete(t.reserved, url)
		t.successful++
	} else if t.successful+len(t.reserved) < t.max {
		t.successful++
	}
	return t.successful >= t.max
}

// OnFailure releases url's reservation without counting it.
func (t *Tracker) OnFailure(url string) {
	if !t.Enabled() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.reserved, url)
}

func (t *Tracker) IsLimitReached() bool {
	if !t.Enabled() {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.successful >= t.max
}

// ShouldNotifyLimitReached is true exactly once per tracker, the first time
// it is called after the limit is reached.
func (t *Tracker) ShouldNotifyLimitReached() bool {
	if !t.Enabled() {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.notified || t.successful < t.max {
		return false
	}
	t.notified = true
	return true
}

func (t *Tracker) Counts() (successful, reserved int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.successful, len(t.reserved)
}
