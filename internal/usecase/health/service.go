package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure; search may still fail for some requests.
	Degraded Status = "degraded"
	// Unhealthy indicates the store is unreachable and no search can succeed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckMissing indicates the catalog index has not been created.
	CheckMissing CheckResult = "missing"
)

// Check names.
const (
	CheckStore     = "store"
	CheckIndex     = "index"
	CheckEmbedding = "embedding"
)

// DefaultCheckTimeout bounds each individual check.
const DefaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store     StorePinger
	index     IndexChecker
	embedding EmbeddingChecker
	timeout   time.Duration
}

// New creates a Service. index and embedding can be nil.
func New(store StorePinger, index IndexChecker, embedding EmbeddingChecker) *Service {
	return &Service{store: store, index: index, embedding: embedding, timeout: DefaultCheckTimeout}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	log := logger.FromContext(ctx)
	checks := make(map[string]CheckResult)

	if err := s.run(ctx, s.store.Ping); err != nil {
		log.Warn("Store health check failed", zap.Error(err))
		checks[CheckStore] = CheckError
	} else {
		checks[CheckStore] = CheckOK
	}

	if s.index != nil && checks[CheckStore] == CheckOK {
		var ready bool
		err := s.run(ctx, func(ctx context.Context) error {
			var err error
			ready, err = s.index.IndexReady(ctx)
			return err
		})
		switch {
		case err != nil:
			log.Warn("Index health check failed", zap.Error(err))
			checks[CheckIndex] = CheckError
		case !ready:
			checks[CheckIndex] = CheckMissing
		default:
			checks[CheckIndex] = CheckOK
		}
	}

	if s.embedding != nil {
		if err := s.run(ctx, s.embedding.HealthCheck); err != nil {
			log.Warn("Embedding health check failed", zap.Error(err))
			checks[CheckEmbedding] = CheckError
		} else {
			checks[CheckEmbedding] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v != CheckOK {
			status = Degraded
			break
		}
	}
	if checks[CheckStore] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) run(ctx context.Context, check func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return check(ctx)
}
