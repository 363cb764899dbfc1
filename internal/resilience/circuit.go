// Package resilience guards the outbound provider and model calls: bounded
// retries with backoff for transient failures, and per-provider circuit
// breakers so one dead API stops eating a run's time budget.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen is returned without calling the provider while its breaker
// is open.
var ErrCircuitOpen = eris.New("circuit open")

// CircuitBreakerConfig tunes a provider's breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the run of consecutive failures that opens the
	// breaker.
	FailureThreshold int

	// ResetTimeout is how long an open breaker rejects calls before it
	// lets a single probe through.
	ResetTimeout time.Duration
}

// DefaultCircuitBreakerConfig matches the shipped config defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// FromCircuitConfig builds a CircuitBreakerConfig from the flat viper
// settings, falling back to defaults for zero values.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}

// CircuitBreaker tracks consecutive failures for one provider. Closed while
// failures stay under the threshold; open rejects every call until
// ResetTimeout has passed, then admits one probe. A successful probe closes
// the breaker, a failed one restarts the open window.
type CircuitBreaker struct {
	mu       sync.Mutex
	cfg      CircuitBreakerConfig
	failures int
	openedAt time.Time
	probing  bool

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// ExecuteVal runs fn through the breaker, recording the outcome. While the
// breaker is open it returns ErrCircuitOpen without calling fn.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if !cb.allow() {
		var zero T
		return zero, ErrCircuitOpen
	}
	val, err := fn(ctx)
	cb.record(err)
	return val, err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.failures < cb.cfg.FailureThreshold {
		return true
	}
	// Open. Admit one probe once the reset window has passed.
	if cb.probing {
		return false
	}
	if cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		cb.probing = true
		return true
	}
	return false
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err == nil {
		cb.failures = 0
		return
	}
	cb.failures++
	cb.openedAt = cb.now()
}

// ServiceBreakers hands out one breaker per provider name so a PubMed
// outage never blocks Exa or Tavily calls.
type ServiceBreakers struct {
	mu     sync.Mutex
	cfg    CircuitBreakerConfig
	byName map[string]*CircuitBreaker
}

// NewServiceBreakers creates an empty registry; breakers are created on
// first Get.
func NewServiceBreakers(cfg CircuitBreakerConfig) *ServiceBreakers {
	return &ServiceBreakers{
		cfg:    cfg,
		byName: make(map[string]*CircuitBreaker),
	}
}

// Get returns the named provider's breaker, creating it if needed.
func (sb *ServiceBreakers) Get(name string) *CircuitBreaker {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	cb, ok := sb.byName[name]
	if !ok {
		cb = NewCircuitBreaker(sb.cfg)
		sb.byName[name] = cb
	}
	return cb
}
