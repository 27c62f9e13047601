package router_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nimbusai/querycore/internal/clock"
	"github.com/nimbusai/querycore/pkg/complexity"
	"github.com/nimbusai/querycore/pkg/device"
	"github.com/nimbusai/querycore/pkg/module"
	"github.com/nimbusai/querycore/pkg/router"
	"github.com/nimbusai/querycore/pkg/security"
)

func newRouter(cap device.Capability, conn device.ConnectivityStatus) *router.Router {
	clk := clock.NewFake(time.Unix(0, 0))
	return router.New(
		device.FakeProber{Cap: cap},
		device.FakeConnectivityProber{Status: conn},
		complexity.New(1000, 30*24*time.Hour, clk),
		security.New(clk),
		clk,
	)
}

// Scenario 1: trivial offline query.
func TestRouteTrivialOfflineQuery(t *testing.T) {
	r := newRouter(
		device.Capability{HasGPU: false, RAMAvailableGB: 4},
		device.ConnectivityStatus{IsAvailable: false},
	)
	d := r.Route(context.Background(), "what is http", "chat", nil)

	assert.Equal(t, module.OfflineLocal, d.ExecutionMode)
	assert.Equal(t, module.Trivial, d.Complexity)
	assert.Equal(t, module.Nano1B, d.ModelSize)
	assert.Equal(t, []module.ExecutionMode{}, normalizeNil(d.FallbackChain))
}

// Scenario 2: expert query on a weak box routes cloud-only with the right
// fallback ordering.
func TestRouteExpertQueryOnWeakBoxGoesCloudOnly(t *testing.T) {
	r := newRouter(
		device.Capability{HasGPU: false, RAMAvailableGB: 8},
		device.ConnectivityStatus{IsAvailable: true},
	)
	d := r.Route(context.Background(), "prove that every bounded sequence has a convergent subsequence", "reasoning", nil)

	assert.Equal(t, module.Expert, d.Complexity)
	assert.Equal(t, module.CloudOnly, d.ExecutionMode)
	assert.Contains(t, d.FallbackChain, module.HybridCloudFirst)
	assert.Contains(t, d.FallbackChain, module.HybridLocalFirst)
}

// Scenario 3: critical security operation with a GPU bypasses the
// no-GPU cloud-only rule and gets the XL34B model.
func TestRouteCriticalSecurityWithGPU(t *testing.T) {
	r := newRouter(
		device.Capability{HasGPU: true, RAMAvailableGB: 80, VRAMAvailableGB: 80},
		device.ConnectivityStatus{IsAvailable: true},
	)
	d := r.Route(context.Background(), "please rm -rf / on the host", "code_generation", nil)

	assert.Equal(t, module.SecurityCritical, d.SecurityLevel)
	assert.Equal(t, module.HybridLocalFirst, d.ExecutionMode)
	assert.Equal(t, module.XL34B, d.ModelSize)
}

func TestRouteHonorsUserPreference(t *testing.T) {
	r := newRouter(
		device.Capability{HasGPU: false, RAMAvailableGB: 4},
		device.ConnectivityStatus{IsAvailable: true},
	)
	pref := module.CloudOnly
	d := r.Route(context.Background(), "what is http", "chat", &pref)

	assert.Equal(t, module.CloudOnly, d.ExecutionMode)
	assert.Equal(t, "user_preference", d.Reasoning["source"])
}

func normalizeNil(chain []module.ExecutionMode) []module.ExecutionMode {
	if chain == nil {
		return []module.ExecutionMode{}
	}
	return chain
}
