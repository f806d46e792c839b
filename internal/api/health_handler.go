package api

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const readinessTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function, such as a Redis PING, to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type readinessReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthzHandler handles GET /healthz. The process is alive if it answers.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler handles GET /readyz. Every dependency is pinged in parallel
// under a short deadline; any failure makes the instance unready and the
// report names the failing checks.
func ReadyzHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		report := readinessReport{Status: "ok", Checks: make(map[string]string, len(checks))}
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for name, p := range checks {
			wg.Add(1)
			go func(name string, p Pinger) {
				defer wg.Done()
				result := "ok"
				if err := p.Ping(ctx); err != nil {
					result = "unavailable"
				}
				mu.Lock()
				report.Checks[name] = result
				if result != "ok" {
					report.Status = "unavailable"
				}
				mu.Unlock()
			}(name, p)
		}
		wg.Wait()

		if report.Status != "ok" {
			w.Header().Set("Retry-After", "30")
			respondJSON(w, http.StatusServiceUnavailable, report)
			return
		}
		respondJSON(w, http.StatusOK, report)
	}
}
