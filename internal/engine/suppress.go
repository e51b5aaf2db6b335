package engine

import (
	"fmt"
	"time"
)

// suppressionKey identifies one (tab identity, target group) pair. Tab
// identity is content+kind, not label or current placement, so the same
// document re-matched in a new group forms a new key.
func suppressionKey(identity string, target int) string {
	return fmt.Sprintf("%s|%d", identity, target)
}

func (e *Engine) globallySuppressed(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Before(e.suppressUntil)
}

// keySuppressed checks a keyed entry lazily against the clock; expired
// entries are deleted on access rather than swept.
func (e *Engine) keySuppressed(key string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	expiry, ok := e.suppressKeys[key]
	if !ok {
		return false
	}
	if now.Before(expiry) {
		return true
	}
	delete(e.suppressKeys, key)
	return false
}

// markSuppressed records the keyed entry for the pending move and extends the
// global deadline so the notification cascade from the move is ignored.
func (e *Engine) markSuppressed(key string, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, expiry := range e.suppressKeys {
		if !now.Before(expiry) {
			delete(e.suppressKeys, k)
		}
	}
	e.suppressKeys[key] = now.Add(keyedSuppressionWindow)
	e.suppressUntil = now.Add(globalSuppressionWindow)
}
