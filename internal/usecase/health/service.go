package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure. Courtside keeps serving from memory.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as check keys.
const (
	ComponentPersistence = "persistence"
	ComponentEncoder     = "encoder"
)

// DefaultCheckTimeout bounds each component check.
const DefaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	persistence PersistencePinger
	encoder     EncoderChecker
	timeout     time.Duration
}

// New creates a Service. Either checker may be nil (in-memory persistence, offline encoder).
func New(persistence PersistencePinger, encoder EncoderChecker) *Service {
	return &Service{persistence: persistence, encoder: encoder, timeout: DefaultCheckTimeout}
}

// Check runs component checks concurrently, each under its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]func(context.Context) error, 2)
	if s.persistence != nil {
		checks[ComponentPersistence] = s.persistence.Ping
	}
	if s.encoder != nil {
		checks[ComponentEncoder] = s.encoder.HealthCheck
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	results := make(map[string]CheckResult, len(checks))
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := check(cctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := Healthy
	for _, v := range results {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	return Report{Status: status, Checks: results}
}
