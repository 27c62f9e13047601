// Command querycore wires together the Smart Router, Progressive Model
// Loader, and Multi-Layer Verification Engine, and runs one illustrative
// query through the full pipeline. It is a library demo, not a server:
// the core has no HTTP surface, per the specification's scope.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nimbusai/querycore/internal/clock"
	"github.com/nimbusai/querycore/internal/config"
	"github.com/nimbusai/querycore/internal/telemetry"
	"github.com/nimbusai/querycore/internal/telemetrylog"
	"github.com/nimbusai/querycore/pkg/breaker"
	"github.com/nimbusai/querycore/pkg/complexity"
	"github.com/nimbusai/querycore/pkg/device"
	"github.com/nimbusai/querycore/pkg/loader"
	"github.com/nimbusai/querycore/pkg/memorymgr"
	"github.com/nimbusai/querycore/pkg/module"
	"github.com/nimbusai/querycore/pkg/predictor"
	"github.com/nimbusai/querycore/pkg/quantizer"
	"github.com/nimbusai/querycore/pkg/router"
	"github.com/nimbusai/querycore/pkg/security"
	"github.com/nimbusai/querycore/pkg/verify"
)

func main() {
	cfg := config.New()
	log := telemetrylog.New().WithComponent("querycore")

	provider, err := telemetry.Init(cfg.Telemetry.ServiceName)
	if err != nil {
		log.Warn("telemetry init failed, continuing with noop provider", map[string]interface{}{"error": err.Error()})
		provider = telemetry.Get()
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}()

	clk := clock.Real{}

	mem := memorymgr.New(cfg.MaxMemoryMB, cfg.ReservedMB,
		memorymgr.WithMemoryObserver(provider.SetComponentMemoryMB),
	)
	quant := quantizer.NewSimulated()
	usagePredictor := predictor.New()

	registry := loader.New(mem, quant, clk, log.WithComponent("loader"),
		loader.WithPredictor(usagePredictor),
		loader.WithPreloadThreshold(cfg.PreloadThreshold),
		loader.WithPreloadQueueCapacity(cfg.Loader.PreloadQueueCap),
		loader.WithQuantization(cfg.EnableQuantization, quantizer.Int8),
		loader.WithInstruments(provider.Instruments),
	)
	registerCatalog(registry)

	ctx, cancelPreloader := context.WithCancel(context.Background())
	defer cancelPreloader()
	registry.StartPreloader(ctx)
	defer registry.Stop()

	capProber := device.NewCachedProber(
		device.DefaultProber{RAMTotalGB: 16, RAMAvailableGB: 10, HasGPU: false},
		cfg.Router.ProbeCacheTTL, clk,
	)
	connProber := device.NewCachedConnectivityProber(
		device.DefaultConnectivityProber{Target: "8.8.8.8:443", DialTimeout: time.Second, Clock: clk},
		cfg.Router.ProbeCacheTTL, clk,
	)
	analyzer := complexity.New(cfg.Loader.MaxHistory, cfg.HistoryTTL, clk)
	classifier := security.New(clk)
	smartRouter := router.New(capProber, connProber, analyzer, classifier, clk,
		router.WithInstruments(provider.Instruments),
	)

	cloudBreaker := breaker.New("cloud-inference", log.WithComponent("breaker"))
	_ = cloudBreaker // wired for CloudOnly dispatch; exercised once an inference backend is attached

	verifier := verify.New(cfg.EnabledLayers, cfg.VerificationThreshold, verify.NewRegexScanner(), clk,
		verify.WithHistoricalDefault(cfg.Verify.HistoricalDefault),
		verify.WithInstruments(provider.Instruments),
	)

	query := "explain why the sky is blue"
	operation := "chat"

	decision := smartRouter.Route(ctx, query, operation, nil)
	log.Info("routing decision", map[string]interface{}{
		"mode":       decision.ExecutionMode,
		"model":      decision.ModelSize.Label,
		"complexity": decision.Complexity.String(),
		"confidence": decision.Confidence,
	})

	registry.PreloadForQuery(query, nil)

	moduleName := moduleFor(decision.ModelSize)
	if _, err := registry.Load(ctx, moduleName, false, ""); err != nil {
		log.Error("module load failed", map[string]interface{}{"module": moduleName, "error": err.Error()})
		os.Exit(1)
	}

	output := "The sky looks blue because shorter wavelengths of sunlight scatter more in the atmosphere."
	result := verifier.Verify(ctx, output, nil, nil)
	log.Info("verification result", map[string]interface{}{
		"query_id":     result.QueryID,
		"confidence":   result.Confidence,
		"level":        result.ConfidenceLevel,
		"is_verified":  result.IsVerified,
		"recommended":  result.Recommendations,
	})

	fmt.Printf("decision=%s model=%s verified=%v confidence=%.2f\n",
		decision.ExecutionMode, decision.ModelSize.Label, result.IsVerified, result.Confidence)
}

// registerCatalog registers a small illustrative module catalog; a real
// deployment loads this from a manifest file instead.
func registerCatalog(registry *loader.Registry) {
	specs := []*module.Spec{
		{Name: "core-base", ModuleType: module.TypeCore, MemoryRequirementMB: 2048, Priority: 10},
		{Name: "small-chat", ModuleType: module.TypeCore, MemoryRequirementMB: 512, Priority: 5},
		{Name: "reasoning-medium", ModuleType: module.TypeReasoning, MemoryRequirementMB: 4096,
			Priority: 5, Dependencies: []string{"core-base"}, QuantizationSupported: true,
			ModelPath: "models/reasoning-medium.bin"},
		{Name: "vision-base", ModuleType: module.TypeVision, MemoryRequirementMB: 6144,
			Priority: 3, Dependencies: []string{"core-base"}, QuantizationSupported: true,
			ModelPath: "models/vision-base.bin"},
	}
	for _, spec := range specs {
		if err := registry.Register(spec); err != nil {
			panic(err) // catalog conflicts are a startup-time programming error
		}
	}
}

func moduleFor(size module.Size) string {
	switch size.Label {
	case module.Nano1B.Label, module.Small3B.Label:
		return "small-chat"
	default:
		return "reasoning-medium"
	}
}
