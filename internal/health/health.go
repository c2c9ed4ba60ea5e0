// Package health provides readiness checks for the stores the API depends on.
package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Status values reported per check.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Checker reports whether a dependency is reachable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck implements Checker.
func (f CheckerFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

// Report is the outcome of running a set of checks.
type Report struct {
	Checks  map[string]string
	Healthy bool
}

// Failed returns the names of failed checks in sorted order.
func (r Report) Failed() []string {
	var failed []string
	for name, status := range r.Checks {
		if status != StatusOK {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}

// Run executes all checkers concurrently. Nil checkers are reported as ok,
// which is how the in-memory fallbacks show up.
func Run(ctx context.Context, checkers map[string]Checker) Report {
	report := Report{Checks: make(map[string]string, len(checkers)), Healthy: true}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, checker := range checkers {
		if checker == nil {
			report.Checks[name] = StatusOK
			continue
		}
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()
			err := checker.HealthCheck(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.WarnContext(ctx, "health check failed", "check", name, "error", err)
				report.Checks[name] = StatusError
				report.Healthy = false
				return
			}
			report.Checks[name] = StatusOK
		}(name, checker)
	}
	wg.Wait()
	return report
}
