package device

import (
	"sync"
	"time"

	"github.com/nimbusai/querycore/internal/clock"
)

// CachedProber wraps a Prober with a TTL so the router does not re-probe
// hardware on every query, mirroring the teacher's SimpleCache TTL gate.
type CachedProber struct {
	mu      sync.Mutex
	inner   Prober
	ttl     time.Duration
	clock   clock.Clock
	cached  Capability
	at      time.Time
	primed  bool
}

// NewCachedProber wraps inner with the given TTL.
func NewCachedProber(inner Prober, ttl time.Duration, clk clock.Clock) *CachedProber {
	if clk == nil {
		clk = clock.Real{}
	}
	return &CachedProber{inner: inner, ttl: ttl, clock: clk}
}

// Snapshot returns the cached Capability if fresh, else re-probes.
func (c *CachedProber) Snapshot() Capability {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.primed && now.Sub(c.at) < c.ttl {
		return c.cached
	}
	c.cached = c.inner.Snapshot()
	c.at = now
	c.primed = true
	return c.cached
}

// CachedConnectivityProber wraps a ConnectivityProber with a TTL.
type CachedConnectivityProber struct {
	mu     sync.Mutex
	inner  ConnectivityProber
	ttl    time.Duration
	clock  clock.Clock
	cached ConnectivityStatus
	at     time.Time
	primed bool
}

// NewCachedConnectivityProber wraps inner with the given TTL.
func NewCachedConnectivityProber(inner ConnectivityProber, ttl time.Duration, clk clock.Clock) *CachedConnectivityProber {
	if clk == nil {
		clk = clock.Real{}
	}
	return &CachedConnectivityProber{inner: inner, ttl: ttl, clock: clk}
}

// Snapshot returns the cached ConnectivityStatus if fresh, else re-probes.
func (c *CachedConnectivityProber) Snapshot() ConnectivityStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.primed && now.Sub(c.at) < c.ttl {
		return c.cached
	}
	c.cached = c.inner.Snapshot()
	c.at = now
	c.primed = true
	return c.cached
}
