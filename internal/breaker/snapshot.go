package breaker

// Snapshot is a point-in-time, read-only view of a breaker's tallies,
// intended for metrics export. It reports
// effective counts — the same cooldown-aware counts SelectEndpoint itself
// consults — not raw storage, so a dashboard built on it agrees with the
// breaker's actual decisions.
type Snapshot struct {
	GlobalFailCount   int
	EndpointFailCount map[string]int
	MethodFailCount   map[string]int
}

// Snapshot returns the current effective failure counts for the global tier
// and every endpoint/method tier with a registered tally.
func (b *MultiCauseBreaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	snap := Snapshot{
		GlobalFailCount:   b.globalFail.effective(now),
		EndpointFailCount: make(map[string]int, len(b.endpointFail)),
		MethodFailCount:   make(map[string]int, len(b.methodFail)),
	}
	for e, t := range b.endpointFail {
		snap.EndpointFailCount[e] = t.effective(now)
	}
	for m, t := range b.methodFail {
		snap.MethodFailCount[m] = t.effective(now)
	}
	return snap
}
