package breaker

import "time"

// tally is a (count, lastFailure) pair recording evidence for one failure
// scope. The zero value represents "no failures observed": count == 0 and
// lastFailure is the zero time. Whenever count == 0, lastFailure is
// meaningless and must not be consulted — see effective.
type tally struct {
	count       int
	lastFailure time.Time
}

// fail increments the tally and refreshes its timestamp.
func (t *tally) fail(now time.Time) {
	t.count++
	t.lastFailure = now
}

// reset clears the tally back to its zero value, as observe_success does.
func (t *tally) reset() {
	t.count = 0
	t.lastFailure = time.Time{}
}

// effective returns the tally's count if it still falls within the cooldown
// window, else zero. This does not mutate the stored tally: an aged-out
// failure still exists in storage until cleanup removes it, it just stops
// contributing to decisions.
func (t *tally) effective(now time.Time) int {
	if t == nil || t.count == 0 {
		return 0
	}
	if t.lastFailure.Before(now.Add(-cooldownWindow)) || t.lastFailure.Equal(now.Add(-cooldownWindow)) {
		return 0
	}
	return t.count
}

// expired reports whether the tally should be swept by cleanup: either it
// has never failed (lastFailure is zero) or its last failure predates
// CleanupInterval.
func (t *tally) expired(now time.Time) bool {
	if t.count == 0 {
		return true
	}
	return t.lastFailure.Before(now.Add(-CleanupInterval))
}
