// Package profiling serves pprof and runtime statistics. The handler is
// meant for a separate listener bound to a private address, never for
// the public API router.
package profiling

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/go-chi/chi/v5"

	"github.com/portfolio-egg/egg/internal/web/response"
)

// Path is the prefix of every profiling endpoint
const Path = "/debug/pprof"

// Config holds profiling configuration
type Config struct {
	// BlockRate sets the block profiling rate (0 = disabled)
	BlockRate int
	// MutexFraction sets the mutex profiling fraction (0 = disabled)
	MutexFraction int
}

// Handler returns the pprof endpoints under Path plus runtime statistics
// at /debug/stats. It sets the process-wide block and mutex rates from
// config.
func Handler(config Config) http.Handler {
	runtime.SetBlockProfileRate(config.BlockRate)
	runtime.SetMutexProfileFraction(config.MutexFraction)

	r := chi.NewRouter()
	r.Route(Path, func(r chi.Router) {
		r.HandleFunc("/", pprof.Index)
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)
		for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
			r.Handle("/"+name, pprof.Handler(name))
		}
	})
	r.Get("/debug/stats", StatsHandler())
	return r
}

// RuntimeStats returns a snapshot of scheduler and memory statistics
func RuntimeStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"goroutines":     runtime.NumGoroutine(),
		"cpus":           runtime.NumCPU(),
		"go_version":     runtime.Version(),
		"heap_alloc":     m.HeapAlloc,
		"heap_objects":   m.HeapObjects,
		"total_alloc":    m.TotalAlloc,
		"sys":            m.Sys,
		"gc_runs":        m.NumGC,
		"gc_pause_total": m.PauseTotalNs,
	}
}

// StatsHandler renders RuntimeStats as JSON
func StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, RuntimeStats())
	}
}
