package device_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nimbusai/querycore/internal/clock"
	"github.com/nimbusai/querycore/pkg/device"
)

func TestFakeProberSnapshot(t *testing.T) {
	cap := device.Capability{CPUCores: 8, RAMAvailableGB: 16, HasGPU: true}
	p := device.FakeProber{Cap: cap}
	assert.Equal(t, cap, p.Snapshot())
}

func TestDefaultConnectivityProberUnreachable(t *testing.T) {
	p := device.DefaultConnectivityProber{
		Target:      "127.0.0.1:1", // nothing listens here
		DialTimeout: 50 * time.Millisecond,
	}
	status := p.Snapshot()
	assert.False(t, status.IsAvailable)
	assert.True(t, math.IsInf(status.LatencyMS, 1))
}

func TestCachedProberReusesWithinTTL(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	calls := 0
	counting := countingProber{onSnapshot: func() { calls++ }}
	cached := device.NewCachedProber(counting, 5*time.Second, fake)

	cached.Snapshot()
	cached.Snapshot()
	assert.Equal(t, 1, calls, "second call within TTL should reuse cache")

	fake.Advance(6 * time.Second)
	cached.Snapshot()
	assert.Equal(t, 2, calls, "call after TTL should re-probe")
}

type countingProber struct {
	onSnapshot func()
}

func (c countingProber) Snapshot() device.Capability {
	c.onSnapshot()
	return device.Capability{}
}
