// Package breaker implements a multi-cause circuit breaker.
//
// Unlike a conventional single-counter circuit breaker, MultiCauseBreaker
// keeps four independent failure tallies per observation — global, per
// endpoint, per method, and per (method, endpoint) pair — and infers which
// of several overlapping failure causes is most likely responsible before
// deciding whether (and where) to dispatch a request. See the package-level
// documentation on MultiCauseBreaker for the full rationale.
package breaker

import (
	"fmt"
	"time"
)

// Tunable constants governing trip thresholds, evidence decay, load-spread
// width, and sweep frequency. These mirror the constants documented on
// MultiCauseBreaker and are not configurable per instance: changing them
// changes the statistical assumptions baked into the selection algorithm.
const (
	// MaxErrorsBeforeOpen is the tally count, within the cooldown window,
	// above which a tier is considered tripped.
	MaxErrorsBeforeOpen = 7

	// CooldownSeconds is how long a failure remains "fresh" evidence. A
	// tally whose last failure is older than this is treated as zero,
	// though it is not cleared from storage until cleanup runs.
	CooldownSeconds = 60

	// OverprovisioningFactor controls how many of the best-rated candidate
	// endpoints are kept for the random load-spread draw: 1 + (N-1)/factor.
	OverprovisioningFactor = 2

	// CleanupInterval is how often select_endpoint sweeps expired tallies
	// out of storage.
	CleanupInterval = 3600 * time.Second
)

const cooldownWindow = CooldownSeconds * time.Second

// RatingAdjuster biases the per-endpoint rating map computed during
// selection. It may add, remove, or mutate entries before the load-spread
// shortlist is built. The identity adjuster (the default) changes nothing.
//
// This is the seam through which external signals — service-discovery
// weights, region preference, canary traffic shaping — enter endpoint
// selection.
type RatingAdjuster func(ratings map[string]int) map[string]int

// IdentityAdjuster returns ratings unchanged. It is the default
// RatingAdjuster used by New when Settings.RatingAdjuster is nil.
func IdentityAdjuster(ratings map[string]int) map[string]int {
	return ratings
}

// Settings configures a MultiCauseBreaker. Pass it to New.
type Settings struct {
	// RatingAdjuster biases endpoint ratings during selection. Defaults to
	// IdentityAdjuster. Fixed at construction time: see SPEC_FULL.md's Open
	// Questions for why this is not runtime-swappable.
	RatingAdjuster RatingAdjuster

	// Now returns the current monotonic time used for tally timestamps,
	// cooldown, and cleanup comparisons. Defaults to time.Now. Tests inject
	// a deterministic clock here to exercise cooldown and cleanup without
	// sleeping.
	Now func() time.Time
}

// CircuitBreakerOpenError is returned by SelectEndpoint when a tier's
// effective failure tally exceeds MaxErrorsBeforeOpen. Reason identifies
// which tier tripped: "global", "method:<m>", "endpoint:<e>", or
// "method-instance:(<e>,<m>)". The reason is for operator diagnosis; callers
// should not branch on it.
type CircuitBreakerOpenError struct {
	Reason string
}

func (e *CircuitBreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open: %s", e.Reason)
}

// NotConnectedError is returned by SelectEndpoint when a method has no
// registered endpoints, or when the candidate set filters down to empty.
// It is semantically distinct from CircuitBreakerOpenError: it signals "no
// configuration", not "too many failures".
type NotConnectedError struct {
	Method string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("not connected: no endpoints available for method %q", e.Method)
}
