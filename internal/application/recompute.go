package application

import (
	"context"
	"sync"
	"time"
)

// saveDebounceDelay coalesces the save burst produced by rapid quantity
// edits: only the state after the operator pauses is persisted.
const saveDebounceDelay = 250 * time.Millisecond

// autosaveInterval drives the periodic flush of dirty sessions that never
// settled long enough for the debounced save to fire.
const autosaveInterval = 30 * time.Second

// debouncer delays a keyed action, restarting the delay on every trigger so
// only the last call in a burst runs.
type debouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	timers map[string]*time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:  delay,
		timers: make(map[string]*time.Timer),
	}
}

// Trigger schedules fn after the delay, replacing any pending run for key.
func (d *debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.timers[key]; ok {
		timer.Stop()
	}
	d.timers[key] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops any pending run for key.
func (d *debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.timers[key]; ok {
		timer.Stop()
		delete(d.timers, key)
	}
}

// Stop cancels all pending runs.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}

// autosaveLoop periodically flushes settled dirty sessions and purges the
// quote cache. It exits when stop is closed.
func (s *SessionService) autosaveLoop(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(autosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.flushSettled()
			s.engine.PurgeCache()
		}
	}
}

// flushSettled saves every dirty session not edited within the debounce
// window. Sessions mid-edit are left for the debounced save.
func (s *SessionService) flushSettled() {
	s.mu.Lock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, entry := range s.sessions {
		entries = append(entries, entry)
	}
	s.mu.Unlock()

	cutoff := time.Now().Add(-saveDebounceDelay)
	for _, entry := range entries {
		entry.mu.Lock()
		settled := entry.dirty && entry.lastEdit.Before(cutoff)
		entry.mu.Unlock()
		if settled {
			s.flushEntry(entry)
		}
	}
}

// flushEntry persists one dirty session snapshot.
func (s *SessionService) flushEntry(entry *sessionEntry) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.dirty {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.repo.Save(ctx, entry.session); err != nil {
		s.logger.WithError(err).Error("Failed to autosave session", "sessionId", entry.session.SessionID)
		return
	}
	entry.dirty = false
}
