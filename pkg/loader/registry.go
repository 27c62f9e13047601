// Package loader implements the Module Registry and Progressive Model
// Loader: dependency-resolved load/unload over a shared module catalog,
// pressure-triggered eviction, and a FIFO predictive preloader. Modeled on
// the teacher framework's WorkflowRouter — a map of named entries guarded
// by a single mutex, with background workers draining a work queue.
package loader

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nimbusai/querycore/internal/clock"
	"github.com/nimbusai/querycore/internal/corerr"
	"github.com/nimbusai/querycore/internal/telemetry"
	"github.com/nimbusai/querycore/internal/telemetrylog"
	"github.com/nimbusai/querycore/pkg/memorymgr"
	"github.com/nimbusai/querycore/pkg/module"
	"github.com/nimbusai/querycore/pkg/predictor"
	"github.com/nimbusai/querycore/pkg/quantizer"
)

// Registry is the Module Registry + Progressive Loader. A single mutex
// guards module_registry and loaded_modules; it is released during the
// expensive stages of a load (dependency recursion, quantization) per the
// concurrency model, with the Loading/Unloading status fields acting as
// the per-name gate that upholds invariant I4.
type Registry struct {
	mu   sync.Mutex
	cond *sync.Cond

	specs  map[string]*module.Spec
	loaded map[string]*module.Loaded

	mem         *memorymgr.Manager
	quant       quantizer.Quantizer
	clock       clock.Clock
	log         telemetrylog.Logger
	predictor   *predictor.Predictor
	instruments *telemetry.Instruments

	enableQuantization bool
	defaultPrecision   quantizer.Precision
	preloadThreshold   float64

	preloadQueue chan string
	stopOnce     sync.Once
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithPredictor attaches the Usage Predictor consulted by PreloadForQuery.
func WithPredictor(p *predictor.Predictor) Option {
	return func(r *Registry) { r.predictor = p }
}

// WithPreloadThreshold sets the minimum predictive confidence that queues
// a module for background preloading.
func WithPreloadThreshold(threshold float64) Option {
	return func(r *Registry) { r.preloadThreshold = threshold }
}

// WithPreloadQueueCapacity bounds the FIFO preload queue; entries beyond
// capacity are dropped and logged rather than blocking the caller.
func WithPreloadQueueCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.preloadQueue = make(chan string, n)
		}
	}
}

// WithQuantization toggles whether a successful load invokes the
// quantizer for quantization-supporting modules.
func WithQuantization(enabled bool, defaultPrecision quantizer.Precision) Option {
	return func(r *Registry) {
		r.enableQuantization = enabled
		r.defaultPrecision = defaultPrecision
	}
}

// WithInstruments attaches the OTel counters the registry records load
// attempts, failures, and dependency/OOM errors against.
func WithInstruments(inst *telemetry.Instruments) Option {
	return func(r *Registry) { r.instruments = inst }
}

// New creates a Registry backed by mem for memory accounting, quant for
// quantization, clk for all timestamps, and log for diagnostics.
func New(mem *memorymgr.Manager, quant quantizer.Quantizer, clk clock.Clock, log telemetrylog.Logger, opts ...Option) *Registry {
	r := &Registry{
		specs:              make(map[string]*module.Spec),
		loaded:             make(map[string]*module.Loaded),
		mem:                mem,
		quant:              quant,
		clock:              clk,
		log:                log,
		enableQuantization: true,
		defaultPrecision:   quantizer.Int8,
		preloadThreshold:   0.5,
		preloadQueue:       make(chan string, 256),
		stopCh:             make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a module's declarative spec to the catalog. It does not
// load the module; absence from loaded_modules implies NotLoaded.
func (r *Registry) Register(spec *module.Spec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("loader: module %q already registered", spec.Name)
	}
	r.specs[spec.Name] = spec
	return nil
}

// Status returns the current lifecycle status of name, or NotLoaded if
// registered but never loaded. The second return is false if name was
// never registered.
func (r *Registry) Status(name string) (module.Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.loaded[name]; ok {
		return entry.Status, true
	}
	if _, ok := r.specs[name]; ok {
		return module.NotLoaded, true
	}
	return "", false
}

// Get returns a snapshot of the loaded entry for name, if any.
func (r *Registry) Get(name string) (module.Loaded, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.loaded[name]
	if !ok {
		return module.Loaded{}, false
	}
	return *entry, true
}

// Load makes name Ready, recursively loading its dependencies and
// invoking quantization, per the loader's 8-step load algorithm. background
// distinguishes a predictive preload from a user-driven request; precision
// overrides the registry default when quantizing (empty uses the default).
func (r *Registry) Load(ctx context.Context, name string, background bool, precision quantizer.Precision) (*module.Loaded, error) {
	r.mu.Lock()

	var spec *module.Spec
	var newEntry *module.Loaded

	for {
		entry, exists := r.loaded[name]
		if exists {
			switch entry.Status {
			case module.Ready:
				r.touchLocked(entry)
				r.mu.Unlock()
				return entry, nil
			case module.Loading, module.Unloading:
				r.cond.Wait() // atomically unlocks/relocks r.mu
				continue
			case module.Error:
				delete(r.loaded, name) // eligible for retry
			}
		}
		break
	}

	var ok bool
	spec, ok = r.specs[name]
	if !ok {
		r.mu.Unlock()
		r.instruments.RecordModelLoad(ctx, name, false)
		r.instruments.RecordError(ctx, "loader", corerr.ErrUnknownModule.Error())
		return nil, corerr.New("loader.Load", corerr.ErrUnknownModule, name)
	}

	// Evict preemptively under high pressure, and reactively whenever the
	// requested allocation plainly wouldn't fit without it — the pressure
	// threshold alone can be below 0.9 while a still-oversized request
	// needs room freed (scenario 4: two preloads leave 0.85 pressure but a
	// third request only fits after the LRU unpinned module is evicted).
	if r.mem.Pressure() > 0.9 || spec.MemoryRequirementMB > r.mem.Available() {
		r.evictForLocked(spec.MemoryRequirementMB)
	}
	if !r.mem.Allocate(name, spec.MemoryRequirementMB) {
		r.mu.Unlock()
		r.instruments.RecordModelLoad(ctx, name, false)
		r.instruments.RecordError(ctx, "loader", corerr.ErrOutOfMemory.Error())
		return nil, corerr.New("loader.Load", corerr.ErrOutOfMemory, name).
			Withf("required_mb=%d available_mb=%d", spec.MemoryRequirementMB, r.mem.Available())
	}

	newEntry = &module.Loaded{Spec: spec, Status: module.Loading, LoadTime: r.clock.Now()}
	r.loaded[name] = newEntry
	r.mu.Unlock()

	for _, dep := range spec.Dependencies {
		if _, err := r.Load(ctx, dep, background, precision); err != nil {
			r.failLocked(name, err)
			r.instruments.RecordModelLoad(ctx, name, false)
			r.instruments.RecordError(ctx, "loader", corerr.ErrDependencyFailure.Error())
			return nil, corerr.New("loader.Load", corerr.ErrDependencyFailure, name).
				Withf("dependency=%s: %v", dep, err)
		}
	}

	resolvedPath := spec.ModelPath
	if spec.QuantizationSupported && r.enableQuantization {
		p := precision
		if p == "" {
			p = r.defaultPrecision
		}
		if newPath, reductionPct, err := r.quant.Quantize(spec.ModelPath, p, 0); err != nil {
			r.log.Warn("quantization failed, continuing unquantized", map[string]interface{}{
				"module": name, "precision": string(p), "error": err.Error(),
			})
		} else {
			resolvedPath = newPath
			r.log.Debug("quantized module", map[string]interface{}{
				"module": name, "precision": string(p), "reduction_pct": reductionPct,
			})
		}
	}

	r.mu.Lock()
	newEntry.Status = module.Ready
	newEntry.MemoryAllocatedMB = spec.MemoryRequirementMB
	newEntry.ResolvedModelPath = resolvedPath
	r.touchLocked(newEntry)
	r.cond.Broadcast()
	r.mu.Unlock()

	r.instruments.RecordModelLoad(ctx, name, true)
	return newEntry, nil
}

// touchLocked increments usage_count and sets last_used for entry. Called
// both on a Ready short-circuit and on a fresh Ready transition, per the
// decision that background/predictive loads count toward usage the same
// as user-driven loads (see the open-question resolution in the design
// ledger).
func (r *Registry) touchLocked(entry *module.Loaded) {
	now := r.clock.Now()
	entry.Spec.UsageCount++
	entry.Spec.LastUsed = &now
}

// failLocked transitions name to Error, releasing its memory reservation,
// and wakes any goroutine blocked waiting on its Loading status.
func (r *Registry) failLocked(name string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.loaded[name]; ok {
		entry.Status = module.Error
		entry.ErrorMessage = cause.Error()
	}
	r.mem.Release(name)
	r.cond.Broadcast()
}

// Unload removes name if it is Ready, unpinned, and has no dependents
// among currently loaded modules.
func (r *Registry) Unload(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unloadLocked(name)
}

func (r *Registry) unloadLocked(name string) bool {
	entry, exists := r.loaded[name]
	if !exists || entry.Status != module.Ready || entry.Spec.Pinned() || r.hasDependentsLocked(name) {
		return false
	}
	entry.Status = module.Unloading
	r.mem.Release(name)
	delete(r.loaded, name)
	r.cond.Broadcast()
	return true
}

func (r *Registry) hasDependentsLocked(name string) bool {
	for _, entry := range r.loaded {
		if entry.Status != module.Ready {
			continue
		}
		for _, dep := range entry.Spec.Dependencies {
			if dep == name {
				return true
			}
		}
	}
	return false
}

// evictForLocked frees required_mb by unloading Ready, unpinned,
// dependency-free modules in ascending (last_used, priority) order —
// oldest and lowest-priority first — until available() clears the
// requirement or no further candidate exists. Caller must hold r.mu.
func (r *Registry) evictForLocked(requiredMB int) {
	for r.mem.Available() < requiredMB {
		candidate := r.pickEvictionCandidateLocked()
		if candidate == "" {
			return
		}
		r.unloadLocked(candidate)
	}
}

func (r *Registry) pickEvictionCandidateLocked() string {
	type candidate struct {
		name     string
		lastUsed int64 // unix nanos; nil last_used sorts as 0 (oldest)
		priority int
	}
	var candidates []candidate
	for name, entry := range r.loaded {
		if entry.Status != module.Ready || entry.Spec.Pinned() || r.hasDependentsLocked(name) {
			continue
		}
		var lastUsed int64
		if entry.Spec.LastUsed != nil {
			lastUsed = entry.Spec.LastUsed.UnixNano()
		}
		candidates = append(candidates, candidate{name: name, lastUsed: lastUsed, priority: entry.Spec.Priority})
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].lastUsed != candidates[j].lastUsed {
			return candidates[i].lastUsed < candidates[j].lastUsed
		}
		return candidates[i].priority < candidates[j].priority
	})
	return candidates[0].name
}
