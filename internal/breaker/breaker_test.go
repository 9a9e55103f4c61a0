package breaker

import (
	"errors"
	"testing"
	"time"
)

// clock is a mutable injectable time source for deterministic cooldown and
// cleanup tests.
type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(c *clock) *MultiCauseBreaker {
	return New(Settings{Now: c.now})
}

func failN(b *MultiCauseBreaker, endpoint, method string, n int) {
	for i := 0; i < n; i++ {
		b.ObserveFailure(endpoint, method)
	}
}

func TestBreakOnMethodInstance(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newTestBreaker(c)
	b.Register("A", "a")

	failN(b, "A", "a", 10)

	_, err := b.SelectEndpoint("a", nil)
	var openErr *CircuitBreakerOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("SelectEndpoint() err = %v, want CircuitBreakerOpenError", err)
	}
}

func TestRecoveryViaSuccess(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newTestBreaker(c)
	b.Register("A", "a")
	failN(b, "A", "a", 10)
	b.ObserveSuccess("A", "a")

	got, err := b.SelectEndpoint("a", nil)
	if err != nil {
		t.Fatalf("SelectEndpoint() err = %v, want nil", err)
	}
	if got != "A" {
		t.Fatalf("SelectEndpoint() = %q, want %q", got, "A")
	}
}

func TestBelowThreshold(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newTestBreaker(c)
	b.Register("A", "a")
	failN(b, "A", "a", 5)

	got, err := b.SelectEndpoint("a", nil)
	if err != nil {
		t.Fatalf("SelectEndpoint() err = %v, want nil", err)
	}
	if got != "A" {
		t.Fatalf("SelectEndpoint() = %q, want %q", got, "A")
	}
}

func TestEndpointLevelTripIsolated(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newTestBreaker(c)
	b.Register("A", "a1")
	b.Register("A", "a2")
	b.Register("B", "b")

	failN(b, "A", "a1", 5)
	failN(b, "A", "a2", 5)
	for i := 0; i < 5; i++ {
		b.ObserveSuccess("B", "b")
	}

	got, err := b.SelectEndpoint("b", nil)
	if err != nil || got != "B" {
		t.Fatalf("SelectEndpoint(b) = (%q, %v), want (\"B\", nil)", got, err)
	}

	_, err = b.SelectEndpoint("a1", nil)
	var openErr *CircuitBreakerOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("SelectEndpoint(a1) err = %v, want CircuitBreakerOpenError", err)
	}

	c.advance(120 * time.Second)
	got, err = b.SelectEndpoint("a1", nil)
	if err != nil || got != "A" {
		t.Fatalf("after cooldown, SelectEndpoint(a1) = (%q, %v), want (\"A\", nil)", got, err)
	}
}

func TestMethodLevelTripIsolated(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newTestBreaker(c)
	b.Register("A", "1")
	b.Register("A", "2")
	b.Register("B", "1")

	failN(b, "A", "1", 5)
	failN(b, "B", "1", 5)
	for i := 0; i < 5; i++ {
		b.ObserveSuccess("A", "2")
	}

	got, err := b.SelectEndpoint("2", nil)
	if err != nil || got != "A" {
		t.Fatalf("SelectEndpoint(2) = (%q, %v), want (\"A\", nil)", got, err)
	}

	_, err = b.SelectEndpoint("1", nil)
	var openErr *CircuitBreakerOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("SelectEndpoint(1) err = %v, want CircuitBreakerOpenError", err)
	}

	c.advance(120 * time.Second)
	got, err = b.SelectEndpoint("1", nil)
	if err != nil {
		t.Fatalf("after cooldown, SelectEndpoint(1) err = %v, want nil", err)
	}
	if got != "A" && got != "B" {
		t.Fatalf("after cooldown, SelectEndpoint(1) = %q, want A or B", got)
	}
}

func TestGlobalTrip(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newTestBreaker(c)
	for _, e := range []string{"A", "B"} {
		for _, m := range []string{"1", "2"} {
			b.Register(e, m)
		}
	}

	for _, e := range []string{"A", "B"} {
		for _, m := range []string{"1", "2"} {
			failN(b, e, m, 2)
		}
	}

	_, err := b.SelectEndpoint("1", nil)
	var openErr *CircuitBreakerOpenError
	if !errors.As(err, &openErr) || openErr.Reason != "global" {
		t.Fatalf("SelectEndpoint(1) err = %v, want CircuitBreakerOpenError(global)", err)
	}

	c.advance(120 * time.Second)
	got, err := b.SelectEndpoint("1", nil)
	if err != nil {
		t.Fatalf("after cooldown, SelectEndpoint(1) err = %v, want nil", err)
	}
	if got != "A" && got != "B" {
		t.Fatalf("after cooldown, SelectEndpoint(1) = %q, want A or B", got)
	}
}

func TestCleanupSweep(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newTestBreaker(c)
	b.Register("A", "1")
	b.ObserveFailure("A", "1")

	c.advance(99999 * time.Second)

	got, err := b.SelectEndpoint("1", nil)
	if err != nil || got != "A" {
		t.Fatalf("SelectEndpoint(1) = (%q, %v), want (\"A\", nil)", got, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.endpointFail) != 0 {
		t.Errorf("endpointFail not swept: %v", b.endpointFail)
	}
	if len(b.methodFail) != 0 {
		t.Errorf("methodFail not swept: %v", b.methodFail)
	}
	if len(b.methodInstanceFail) != 0 {
		t.Errorf("methodInstanceFail not swept: %v", b.methodInstanceFail)
	}
}

func TestSelectEndpointNotConnectedWhenUnregistered(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newTestBreaker(c)

	_, err := b.SelectEndpoint("ghost", nil)
	var notConnected *NotConnectedError
	if !errors.As(err, &notConnected) {
		t.Fatalf("SelectEndpoint() err = %v, want NotConnectedError", err)
	}
}

func TestSelectEndpointNotConnectedWhenCandidatesFilterToEmpty(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newTestBreaker(c)
	b.Register("A", "a")

	adjustToEmpty := func(ratings map[string]int) map[string]int {
		return map[string]int{}
	}
	b2 := New(Settings{Now: c.now, RatingAdjuster: adjustToEmpty})
	b2.Register("A", "a")

	_, err := b2.SelectEndpoint("a", nil)
	var notConnected *NotConnectedError
	if !errors.As(err, &notConnected) {
		t.Fatalf("SelectEndpoint() err = %v, want NotConnectedError", err)
	}

	// Sanity: without the emptying adjuster, selection succeeds.
	got, err := b.SelectEndpoint("a", nil)
	if err != nil || got != "A" {
		t.Fatalf("SelectEndpoint() = (%q, %v), want (\"A\", nil)", got, err)
	}
}

func TestLoadSpreadAcrossEquallyRatedEndpoints(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newTestBreaker(c)
	endpoints := []string{"A", "B", "C", "D", "E"}
	for _, e := range endpoints {
		b.Register(e, "m")
	}

	// 1 + floor((5-1)/2) = 3 endpoints make up the shortlist.
	seen := make(map[string]int)
	for i := 0; i < 500; i++ {
		got, err := b.SelectEndpoint("m", nil)
		if err != nil {
			t.Fatalf("SelectEndpoint() err = %v", err)
		}
		seen[got]++
	}

	if len(seen) != 3 {
		t.Fatalf("observed %d distinct endpoints, want 3: %v", len(seen), seen)
	}
}

func TestObserveFailureOnUnregisteredPairRegistersImplicitly(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newTestBreaker(c)

	b.ObserveFailure("A", "a")

	got, err := b.SelectEndpoint("a", nil)
	if err != nil || got != "A" {
		t.Fatalf("SelectEndpoint() = (%q, %v), want (\"A\", nil)", got, err)
	}
}

func TestCandidatesRestrictSelectionPool(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newTestBreaker(c)
	b.Register("A", "m")
	b.Register("B", "m")

	got, err := b.SelectEndpoint("m", []string{"B"})
	if err != nil || got != "B" {
		t.Fatalf("SelectEndpoint(candidates=[B]) = (%q, %v), want (\"B\", nil)", got, err)
	}
}
