package cache

import (
	"context"

	"pdf-translator/internal/document"
)

// Flight is one outstanding external translation call for a unit key.
// The leader performs the call and completes the flight; every waiter
// receives the leader's result. A waiter whose context is cancelled
// detaches with a Cancelled failure without disturbing the flight, so
// units already resolved for other requests stay valid.
type Flight struct {
	key    string
	done   chan struct{}
	result document.TranslatedUnit
}

// Begin registers interest in key. The second return value is true when
// the caller is the leader and must eventually call Complete; otherwise
// the caller should Wait.
func (c *Cache) Begin(key string) (*Flight, bool) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()

	if f, ok := c.flights[key]; ok {
		return f, false
	}
	f := &Flight{key: key, done: make(chan struct{})}
	c.flights[key] = f
	return f, true
}

// Complete resolves the flight with the leader's result, releases all
// waiters, and removes the flight from the registry. Successful results
// are stored in the cache before waiters are released so a waiter's
// follow-up Lookup always hits.
func (c *Cache) Complete(f *Flight, result document.TranslatedUnit) {
	if result.Succeeded() {
		c.Store(f.key, result)
	}

	c.flightMu.Lock()
	delete(c.flights, f.key)
	c.flightMu.Unlock()

	f.result = result
	close(f.done)
}

// Wait blocks until the flight completes or ctx is cancelled. On
// cancellation the waiter receives a Cancelled failure; the flight itself
// keeps running for other requests.
func (f *Flight) Wait(ctx context.Context) document.TranslatedUnit {
	select {
	case <-f.done:
		return f.result
	case <-ctx.Done():
		return document.TranslatedUnit{
			UnitID: f.key,
			Status: document.UnitFailed,
			Reason: document.ReasonCancelled,
		}
	}
}

// InFlight returns the number of outstanding flights.
func (c *Cache) InFlight() int {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	return len(c.flights)
}
