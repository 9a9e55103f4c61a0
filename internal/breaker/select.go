package breaker

import "time"

// SelectEndpoint produces an endpoint to dispatch method to, or an error.
//
// candidates, if non-empty, restricts selection to that set; otherwise all
// endpoints registered under method are eligible. The global and method
// tiers are checked before any endpoint is rated, so they trip even when no
// endpoint is available. The endpoint and method-instance tiers are checked
// only for the endpoint drawn from the shortlist, so an empty rated set
// yields NotConnectedError rather than an endpoint-level
// CircuitBreakerOpenError, and a per-endpoint trip can still reject the
// drawn endpoint even though an alternative healthy endpoint may have
// existed outside the shortlist. Selection is not retried in that case.
func (b *MultiCauseBreaker) SelectEndpoint(method string, candidates []string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	if b.lastCleanup.Before(now.Add(-CleanupInterval)) {
		b.cleanupLocked(now)
	}

	if b.globalFail.effective(now) > MaxErrorsBeforeOpen {
		return "", &CircuitBreakerOpenError{Reason: "global"}
	}

	endpointsForMethod, isRegistered := b.registered[method]
	if !isRegistered {
		return "", &NotConnectedError{Method: method}
	}

	if b.methodFail[method].effective(now) > MaxErrorsBeforeOpen {
		return "", &CircuitBreakerOpenError{Reason: "method:" + method}
	}

	instances := b.methodInstanceFail[method]

	var pool []string
	if len(candidates) > 0 {
		pool = candidates
	} else {
		for e := range endpointsForMethod {
			pool = append(pool, e)
		}
	}

	ratings := make(map[string]int, len(pool))
	for _, e := range pool {
		ratings[e] = b.rating(method, e, now, instances)
	}
	ratings = b.adjust(ratings)

	if len(ratings) == 0 {
		return "", &NotConnectedError{Method: method}
	}

	ranked := sortedRatedEndpoints(ratings)
	shortlist := ranked[:shortlistWidth(len(ranked))]
	chosen := shortlist[b.rng.Intn(len(shortlist))]

	if b.endpointFail[chosen].effective(now) > MaxErrorsBeforeOpen {
		return "", &CircuitBreakerOpenError{Reason: "endpoint:" + chosen}
	}
	if instances[chosen].effective(now) > MaxErrorsBeforeOpen {
		return "", &CircuitBreakerOpenError{Reason: "method-instance:(" + chosen + "," + method + ")"}
	}

	return chosen, nil
}

// rating computes max(effective(endpoint_fail[e]), effective(method_instance_fail[method][e]))
// for endpoint e. An endpoint absent from endpointFail or instances
// (possible when a caller passes a candidate set never seen by Register) is
// treated as having no failures on that tier.
func (b *MultiCauseBreaker) rating(method, endpoint string, now time.Time, instances map[string]*tally) int {
	endpointEffective := b.endpointFail[endpoint].effective(now)
	instanceEffective := instances[endpoint].effective(now)
	if endpointEffective > instanceEffective {
		return endpointEffective
	}
	return instanceEffective
}
