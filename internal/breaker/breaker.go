package breaker

import (
	"math/rand"
	"sort"
	"sync"
	"time"
)

// MultiCauseBreaker infers which of several overlapping failure causes is
// responsible for observed RPC failures and uses that inference to decide,
// per call, whether to dispatch and which endpoint to dispatch to.
//
// It models five reasons a request can fail:
//
//  1. Something is globally broken (the network, a shared dependency) —
//     everything will fail.
//  2. A specific service instance is down — all requests to that endpoint
//     will fail.
//  3. A method's implementation is broken — all requests using that method
//     will fail, regardless of endpoint.
//  4. A specific (method, endpoint) pair is broken.
//  5. The request itself was bad (invalid parameters) — not evidence of any
//     of the above.
//
// Every failure is counted as evidence for causes 1–4; a success on the
// matching scope is treated as conclusive evidence against that scope. Using
// integer counts instead of floating-point probabilities is a deliberate
// approximation: a count acts as a negative logarithm (in a nonstandard
// base) of the residual probability that the cause is absent, and
// MaxErrorsBeforeOpen is the count at which that probability is judged too
// low to keep dispatching. Exponential decay of old evidence is
// approximated by hard expiry after CooldownSeconds of silence.
//
// Selection additionally spreads load: rather than always picking the
// single best-rated endpoint (which would concentrate all traffic on it),
// SelectEndpoint keeps the best 1+⌊(N-1)/OverprovisioningFactor⌋ candidates
// and draws uniformly among them.
//
// MultiCauseBreaker never performs I/O, never retries, and never blocks: all
// decisions are immediate and computed from in-memory tallies under a
// single mutex. It does not persist state across restarts.
type MultiCauseBreaker struct {
	mu sync.Mutex

	globalFail         tally
	endpointFail       map[string]*tally
	methodFail         map[string]*tally
	methodInstanceFail map[string]map[string]*tally

	// registered tracks which (method, endpoint) pairs have ever been
	// registered, independent of the failure tallies above. It is never
	// touched by cleanup: a pair that simply has no recent failures must
	// stay selectable, not fall out of the candidate pool just because its
	// evidence aged out of the tally maps.
	registered map[string]map[string]bool // method -> endpoint -> true

	lastCleanup time.Time

	adjust RatingAdjuster
	now    func() time.Time
	rng    *rand.Rand
}

// New creates a MultiCauseBreaker ready for use. A zero Settings value is
// valid: RatingAdjuster defaults to IdentityAdjuster and Now defaults to
// time.Now.
func New(settings Settings) *MultiCauseBreaker {
	adjust := settings.RatingAdjuster
	if adjust == nil {
		adjust = IdentityAdjuster
	}
	now := settings.Now
	if now == nil {
		now = time.Now
	}
	return &MultiCauseBreaker{
		endpointFail:       make(map[string]*tally),
		methodFail:         make(map[string]*tally),
		methodInstanceFail: make(map[string]map[string]*tally),
		registered:         make(map[string]map[string]bool),
		lastCleanup:        now(),
		adjust:             adjust,
		now:                now,
		rng:                rand.New(rand.NewSource(now().UnixNano())),
	}
}

// Register ensures all four tallies exist for the (endpoint, method) pair,
// initialized to zero. Idempotent: registering the same pair twice is a
// no-op on existing tallies.
func (b *MultiCauseBreaker) Register(endpoint, method string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.register(endpoint, method)
}

// register is the unlocked core of Register; callers must hold b.mu.
func (b *MultiCauseBreaker) register(endpoint, method string) {
	if _, ok := b.endpointFail[endpoint]; !ok {
		b.endpointFail[endpoint] = &tally{}
	}
	if _, ok := b.methodFail[method]; !ok {
		b.methodFail[method] = &tally{}
	}
	if _, ok := b.methodInstanceFail[method]; !ok {
		b.methodInstanceFail[method] = make(map[string]*tally)
	}
	if _, ok := b.methodInstanceFail[method][endpoint]; !ok {
		b.methodInstanceFail[method][endpoint] = &tally{}
	}
	if _, ok := b.registered[method]; !ok {
		b.registered[method] = make(map[string]bool)
	}
	b.registered[method][endpoint] = true
}

// ObserveFailure increments the global, per-endpoint, per-method, and
// per-(method,endpoint) tallies that cover this observation, and sets each
// one's timestamp to now. The pair must already be registered; ObserveFailure
// registers it implicitly if not, so a failure can never be silently
// dropped for lack of bookkeeping.
func (b *MultiCauseBreaker) ObserveFailure(endpoint, method string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.register(endpoint, method)
	now := b.now()

	b.globalFail.fail(now)
	b.endpointFail[endpoint].fail(now)
	b.methodFail[method].fail(now)
	b.methodInstanceFail[method][endpoint].fail(now)
}

// ObserveSuccess resets all four tallies for the observation to zero. A
// success anywhere on (endpoint, method) clears the global tally too: the
// design treats any success as conclusive evidence that cause 1 ("everything
// is broken") is false, even though the global tally aggregates failures
// from unrelated (method, endpoint) pairs. This is deliberate, and may
// surprise operators who expect the global tier to track aggregate failures independently of any one success.
func (b *MultiCauseBreaker) ObserveSuccess(endpoint, method string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.register(endpoint, method)

	b.globalFail.reset()
	b.endpointFail[endpoint].reset()
	b.methodFail[method].reset()
	b.methodInstanceFail[method][endpoint].reset()
}

// sortedRatedEndpoints sorts the given rating map's keys ascending by
// rating, with ties broken by the endpoint identifier's natural order. A
// stable sort is not required for correctness (the tie-break is total), but
// sort.Slice is used for brevity here since ratings is always small.
func sortedRatedEndpoints(ratings map[string]int) []string {
	endpoints := make([]string, 0, len(ratings))
	for e := range ratings {
		endpoints = append(endpoints, e)
	}
	sort.Slice(endpoints, func(i, j int) bool {
		ri, rj := ratings[endpoints[i]], ratings[endpoints[j]]
		if ri != rj {
			return ri < rj
		}
		return endpoints[i] < endpoints[j]
	})
	return endpoints
}

// shortlistWidth returns 1 + ⌊(n-1)/OverprovisioningFactor⌋, the number of
// top-rated endpoints kept for the load-spread draw.
func shortlistWidth(n int) int {
	return 1 + (n-1)/OverprovisioningFactor
}
