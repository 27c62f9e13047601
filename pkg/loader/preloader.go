package loader

import (
	"context"

	"github.com/nimbusai/querycore/pkg/module"
)

// Enqueue appends name to the FIFO preload queue. Per the design notes,
// preload_queue entries are not deduplicated — a name already Ready is
// simply a no-op when the preloader eventually pops it. If the queue is
// full, the entry is dropped and logged; queue length is the backpressure
// mechanism, not a blocking send.
func (r *Registry) Enqueue(name string) {
	select {
	case r.preloadQueue <- name:
	default:
		r.log.Warn("preload queue full, dropping entry", map[string]interface{}{"module": name})
	}
}

// PreloadForQuery consults the Usage Predictor for query and fileTypes and
// enqueues every registered, unpinned-enough module whose predicted type
// clears preloadThreshold and isn't already Ready.
func (r *Registry) PreloadForQuery(query string, fileTypes []string) {
	if r.predictor == nil {
		return
	}

	predictedTypes := make(map[string]bool)
	for _, p := range r.predictor.Predict(query, fileTypes) {
		if p.Score > r.preloadThreshold {
			predictedTypes[string(p.Type)] = true
		}
	}
	if len(predictedTypes) == 0 {
		return
	}

	r.mu.Lock()
	var toEnqueue []string
	for name, spec := range r.specs {
		if !predictedTypes[string(spec.ModuleType)] {
			continue
		}
		if spec.Priority >= 8 {
			continue
		}
		if entry, ok := r.loaded[name]; ok && entry.Status == module.Ready {
			continue
		}
		toEnqueue = append(toEnqueue, name)
	}
	r.mu.Unlock()

	for _, name := range toEnqueue {
		r.Enqueue(name)
	}
}

// StartPreloader launches the single background worker that drains the
// FIFO preload queue, loading each popped name with background=true.
// Errors are logged and swallowed. Call Stop to shut it down.
func (r *Registry) StartPreloader(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case name := <-r.preloadQueue:
				if _, err := r.Load(ctx, name, true, ""); err != nil {
					r.log.Warn("predictive preload failed", map[string]interface{}{
						"module": name, "error": err.Error(),
					})
				}
			}
		}
	}()
}

// Stop shuts down the preloader worker and waits for it to exit.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}
