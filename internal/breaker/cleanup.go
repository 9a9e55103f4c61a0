package breaker

import "time"

// cleanupLocked sweeps all tallies, dropping any whose last failure is
// older than CleanupInterval (or which never failed at all). When a
// method's instance map becomes empty, the method entry itself is dropped.
// Callers must hold b.mu.
//
// Known quirk, preserved deliberately: this does not remove the global
// tally, only per-scope entries. Maps are never mutated
// while being ranged over directly — keys are snapshotted first — which
// gives the same observable behavior (expired entries disappear) without
// depending on delete-during-range semantics.
func (b *MultiCauseBreaker) cleanupLocked(now time.Time) {
	endpoints := make([]string, 0, len(b.endpointFail))
	for e := range b.endpointFail {
		endpoints = append(endpoints, e)
	}
	for _, e := range endpoints {
		if b.endpointFail[e].expired(now) {
			delete(b.endpointFail, e)
		}
	}

	methods := make([]string, 0, len(b.methodFail))
	for m := range b.methodFail {
		methods = append(methods, m)
	}
	for _, m := range methods {
		if b.methodFail[m].expired(now) {
			delete(b.methodFail, m)
		}
	}

	instanceMethods := make([]string, 0, len(b.methodInstanceFail))
	for m := range b.methodInstanceFail {
		instanceMethods = append(instanceMethods, m)
	}
	for _, m := range instanceMethods {
		instances := b.methodInstanceFail[m]
		instanceEndpoints := make([]string, 0, len(instances))
		for e := range instances {
			instanceEndpoints = append(instanceEndpoints, e)
		}
		for _, e := range instanceEndpoints {
			if instances[e].expired(now) {
				delete(instances, e)
			}
		}
		if len(instances) == 0 {
			delete(b.methodInstanceFail, m)
		}
	}

	b.lastCleanup = now
}
