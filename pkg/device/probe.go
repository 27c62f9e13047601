// Package device snapshots device capability and network connectivity for
// the Smart Router. Probing is best-effort: any probe failure falls back
// to conservative defaults and never panics or returns an error to the
// caller, per the core specification's probe design.
package device

import (
	"math"
	"net"
	"runtime"
	"time"

	"github.com/nimbusai/querycore/internal/clock"
)

// Capability is an immutable snapshot of local hardware state.
type Capability struct {
	CPUCores          int
	CPUPercent        float64
	RAMTotalGB        float64
	RAMAvailableGB    float64
	VRAMTotalGB       float64
	VRAMAvailableGB   float64
	HasGPU            bool
	BatteryPercent    *float64
	IsMetered         bool
	ThermalThrottling bool
}

// ConnectivityStatus is an immutable snapshot of network reachability.
type ConnectivityStatus struct {
	IsAvailable    bool
	ConnectionType string
	LatencyMS      float64
	BandwidthMbps  float64
	LastCheck      time.Time
}

// Prober snapshots device capability.
type Prober interface {
	Snapshot() Capability
}

// ConnectivityProber snapshots network reachability.
type ConnectivityProber interface {
	Snapshot() ConnectivityStatus
}

// DefaultProber is the stdlib-only production Prober. It reports what Go's
// runtime package can see directly (CPU core count) and leaves GPU/VRAM
// detection to conservative defaults, since hardware introspection beyond
// runtime.NumCPU requires OS-specific, non-portable APIs that this core
// does not own — see DESIGN.md for the stdlib-only justification.
type DefaultProber struct {
	// RAMTotalGB and RAMAvailableGB are supplied by the embedding process,
	// since Go's standard library has no portable way to read system
	// memory; a deployment wires these from its own OS/cgroup accounting.
	RAMTotalGB     float64
	RAMAvailableGB float64
	HasGPU         bool
	VRAMTotalGB    float64
	VRAMAvailableGB float64
	BatteryPercent *float64
	IsMetered      bool
}

// Snapshot returns a best-effort Capability. It never fails; fields that
// cannot be determined fall back to conservative defaults (no GPU, no
// VRAM).
func (p DefaultProber) Snapshot() Capability {
	return Capability{
		CPUCores:        runtime.NumCPU(),
		CPUPercent:       0,
		RAMTotalGB:      p.RAMTotalGB,
		RAMAvailableGB:  p.RAMAvailableGB,
		VRAMTotalGB:     p.VRAMTotalGB,
		VRAMAvailableGB: p.VRAMAvailableGB,
		HasGPU:          p.HasGPU,
		BatteryPercent:  p.BatteryPercent,
		IsMetered:       p.IsMetered,
	}
}

// DefaultConnectivityProber checks reachability via a short TCP dial
// against a well-known reachable host, falling back to "unavailable" on
// any failure per the probe design's conservative-default rule.
type DefaultConnectivityProber struct {
	Target         string // host:port, defaults to "1.1.1.1:443"
	DialTimeout    time.Duration
	ConnectionType string
	BandwidthMbps  float64
	Clock          clock.Clock
}

// Snapshot dials Target and measures latency; failure yields IsAvailable
// false and LatencyMS +Inf, never an error.
func (p DefaultConnectivityProber) Snapshot() ConnectivityStatus {
	target := p.Target
	if target == "" {
		target = "1.1.1.1:443"
	}
	timeout := p.DialTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	start := clk.Now()
	conn, err := net.DialTimeout("tcp", target, timeout)
	now := clk.Now()
	if err != nil {
		return ConnectivityStatus{
			IsAvailable: false,
			LatencyMS:   math.Inf(1),
			LastCheck:   now,
		}
	}
	_ = conn.Close()

	return ConnectivityStatus{
		IsAvailable:    true,
		ConnectionType: orDefault(p.ConnectionType, "unknown"),
		LatencyMS:      float64(now.Sub(start).Microseconds()) / 1000.0,
		BandwidthMbps:  p.BandwidthMbps,
		LastCheck:      now,
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// FakeProber and FakeConnectivityProber provide deterministic snapshots for
// tests, per the "wrap OS/hardware queries behind an interface" design
// note — routing determinism (P4) depends on injectable probes.
type FakeProber struct {
	Cap Capability
}

// Snapshot returns the fixed Capability.
func (f FakeProber) Snapshot() Capability { return f.Cap }

// FakeConnectivityProber returns a fixed ConnectivityStatus.
type FakeConnectivityProber struct {
	Status ConnectivityStatus
}

// Snapshot returns the fixed ConnectivityStatus.
func (f FakeConnectivityProber) Snapshot() ConnectivityStatus { return f.Status }
