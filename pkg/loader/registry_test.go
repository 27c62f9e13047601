package loader_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusai/querycore/internal/clock"
	"github.com/nimbusai/querycore/internal/telemetrylog"
	"github.com/nimbusai/querycore/pkg/loader"
	"github.com/nimbusai/querycore/pkg/memorymgr"
	"github.com/nimbusai/querycore/pkg/module"
	"github.com/nimbusai/querycore/pkg/quantizer"
)

func newRegistry(maxMemoryMB int) *loader.Registry {
	mem := memorymgr.New(maxMemoryMB, 0)
	return loader.New(mem, quantizer.NewSimulated(), clock.NewFake(time.Unix(0, 0)), telemetrylog.New())
}

func TestLoadSimpleModuleBecomesReady(t *testing.T) {
	r := newRegistry(1000)
	spec := &module.Spec{Name: "core-base", ModuleType: module.TypeCore, MemoryRequirementMB: 300}
	require.NoError(t, r.Register(spec))

	entry, err := r.Load(context.Background(), "core-base", false, "")
	require.NoError(t, err)
	assert.Equal(t, module.Ready, entry.Status)
	assert.Equal(t, 1, spec.UsageCount)
}

func TestLoadUnknownModuleFails(t *testing.T) {
	r := newRegistry(1000)
	_, err := r.Load(context.Background(), "does-not-exist", false, "")
	assert.Error(t, err)
}

func TestLoadReadyModuleIsIdempotentAndIncrementsUsage(t *testing.T) {
	r := newRegistry(1000)
	spec := &module.Spec{Name: "core-base", MemoryRequirementMB: 300}
	require.NoError(t, r.Register(spec))

	_, err := r.Load(context.Background(), "core-base", false, "")
	require.NoError(t, err)
	_, err = r.Load(context.Background(), "core-base", false, "")
	require.NoError(t, err)

	assert.Equal(t, 2, spec.UsageCount)
}

func TestLoadOutOfMemoryFails(t *testing.T) {
	r := newRegistry(100)
	spec := &module.Spec{Name: "too-big", MemoryRequirementMB: 500}
	require.NoError(t, r.Register(spec))

	_, err := r.Load(context.Background(), "too-big", false, "")
	assert.Error(t, err)
}

func TestLoadDependencyChain(t *testing.T) {
	r := newRegistry(1000)
	require.NoError(t, r.Register(&module.Spec{Name: "embedding-base", MemoryRequirementMB: 200}))
	require.NoError(t, r.Register(&module.Spec{
		Name: "vision-base", MemoryRequirementMB: 300, Dependencies: []string{"embedding-base"},
	}))

	entry, err := r.Load(context.Background(), "vision-base", false, "")
	require.NoError(t, err)
	assert.Equal(t, module.Ready, entry.Status)

	depStatus, ok := r.Status("embedding-base")
	require.True(t, ok)
	assert.Equal(t, module.Ready, depStatus)

	// Unloading the dependency must fail while vision-base is Ready.
	assert.False(t, r.Unload("embedding-base"))
}

func TestLoadMissingDependencyPropagatesFailure(t *testing.T) {
	r := newRegistry(1000)
	require.NoError(t, r.Register(&module.Spec{
		Name: "vision-base", MemoryRequirementMB: 300, Dependencies: []string{"missing-dep"},
	}))

	_, err := r.Load(context.Background(), "vision-base", false, "")
	assert.Error(t, err)

	status, ok := r.Status("vision-base")
	require.True(t, ok)
	assert.Equal(t, module.Error, status)
}

func TestUnloadRejectsPinnedModule(t *testing.T) {
	r := newRegistry(1000)
	spec := &module.Spec{Name: "pinned", MemoryRequirementMB: 200, Priority: 10}
	require.NoError(t, r.Register(spec))
	_, err := r.Load(context.Background(), "pinned", false, "")
	require.NoError(t, err)

	assert.False(t, r.Unload("pinned"))
}

func TestUnloadRejectsUnknownOrUnloaded(t *testing.T) {
	r := newRegistry(1000)
	assert.False(t, r.Unload("never-registered"))
}

func TestEvictionFreesLRUModuleUnderPressure(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	r := loader.New(memorymgr.New(1000, 200), quantizer.NewSimulated(), clk, telemetrylog.New())

	require.NoError(t, r.Register(&module.Spec{Name: "mod-a", MemoryRequirementMB: 300, Priority: 5}))
	require.NoError(t, r.Register(&module.Spec{Name: "mod-b", MemoryRequirementMB: 350, Priority: 5}))
	require.NoError(t, r.Register(&module.Spec{Name: "mod-c", MemoryRequirementMB: 250, Priority: 5}))

	_, err := r.Load(context.Background(), "mod-a", false, "")
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, err = r.Load(context.Background(), "mod-b", false, "")
	require.NoError(t, err)
	clk.Advance(time.Minute)

	// 200 baseline + 300 + 350 = 850 reserved of 1000 -> pressure 0.85, not
	// yet over the 0.9 eviction trigger. mod-c's 250 MB does not fit in the
	// 150 MB left, so the allocation itself would fail without eviction,
	// forcing the loader to evict the least-recently-used unpinned module
	// (mod-a).
	_, err = r.Load(context.Background(), "mod-c", false, "")
	require.NoError(t, err)

	statusA, _ := r.Status("mod-a")
	statusC, _ := r.Status("mod-c")
	assert.Equal(t, module.NotLoaded, statusA)
	assert.Equal(t, module.Ready, statusC)
}

func TestPreloadForQueryWithoutPredictorIsNoOp(t *testing.T) {
	mem := memorymgr.New(1000, 0)
	clk := clock.NewFake(time.Unix(0, 0))
	log := telemetrylog.New()
	r := loader.New(mem, quantizer.NewSimulated(), clk, log,
		loader.WithPreloadThreshold(0.3))

	require.NoError(t, r.Register(&module.Spec{
		Name: "code-helper", ModuleType: module.TypeCode, MemoryRequirementMB: 100, Priority: 2,
	}))

	// No predictor attached should be a safe no-op, not a panic.
	r.PreloadForQuery("refactor this function and debug the script", nil)

	status, ok := r.Status("code-helper")
	require.True(t, ok)
	assert.Equal(t, module.NotLoaded, status)
}
