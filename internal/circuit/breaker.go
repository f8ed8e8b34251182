// Package circuit wraps the Advisory Client's call to the external LLM
// planner endpoint so a flapping or dead planner degrades to the safe
// fallback immediately instead of hanging every assist request on a dead
// backend. Adapted from the teacher's internal/ai/circuit package.
package circuit

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrorCategory categorizes different error types for appropriate handling.
type ErrorCategory int

const (
	ErrorCategoryTransient ErrorCategory = iota
	ErrorCategoryRateLimit
	ErrorCategoryInvalid
	ErrorCategoryFatal
)

// Config configures the circuit breaker behavior.
type Config struct {
	FailureThreshold  int
	SuccessThreshold  int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	HalfOpenTimeout   time.Duration
}

// DefaultConfig matches spec.md §5's 8s advisory timeout: a short initial
// backoff keeps a transient planner hiccup from blocking more than a couple
// of assist requests.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  3,
		SuccessThreshold:  2,
		InitialBackoff:    time.Second,
		MaxBackoff:        5 * time.Minute,
		BackoffMultiplier: 2.0,
		HalfOpenTimeout:   30 * time.Second,
	}
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	mu sync.RWMutex

	config Config
	state  State
	name   string

	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailure          time.Time
	lastSuccess          time.Time
	lastError            error

	currentBackoff        time.Duration
	openedAt              time.Time
	halfOpenProbeInFlight bool

	totalFailures  int64
	totalSuccesses int64
	totalTrips     int64

	onStateChange func(from, to State)
	onTrip        func(err error)
}

// NewBreaker creates a new circuit breaker with the given configuration.
func NewBreaker(name string, config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 5 * time.Minute
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}
	if config.HalfOpenTimeout <= 0 {
		config.HalfOpenTimeout = 30 * time.Second
	}

	return &Breaker{
		config:         config,
		state:          StateClosed,
		name:           name,
		currentBackoff: config.InitialBackoff,
	}
}

func (b *Breaker) SetOnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

func (b *Breaker) SetOnTrip(fn func(err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = fn
}

// CanAllow checks if an operation would be allowed without causing state
// transitions. Use this for read-only status checks; use Allow for actual
// operations.
func (b *Breaker) CanAllow() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		return time.Since(b.openedAt) >= b.currentBackoff
	case StateHalfOpen:
		return !b.halfOpenProbeInFlight
	default:
		return true
	}
}

// Allow checks if an operation should be allowed. May transition
// open→half-open, so prefer CanAllow for read-only checks.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(b.openedAt) >= b.currentBackoff {
			b.transitionTo(StateHalfOpen)
			b.halfOpenProbeInFlight = true
			log.Info().Str("breaker", b.name).Str("state", "half-open").Msg("circuit breaker probing")
			return true
		}
		return false

	case StateHalfOpen:
		if b.halfOpenProbeInFlight {
			return false
		}
		b.halfOpenProbeInFlight = true
		return true

	default:
		return true
	}
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastSuccess = time.Now()
	b.consecutiveFailures = 0
	b.consecutiveSuccesses++
	b.totalSuccesses++

	if b.state == StateHalfOpen {
		b.halfOpenProbeInFlight = false
		if b.consecutiveSuccesses >= b.config.SuccessThreshold {
			b.transitionTo(StateClosed)
			b.currentBackoff = b.config.InitialBackoff
			log.Info().Str("breaker", b.name).Str("state", "closed").Msg("circuit breaker recovered")
		}
	}
}

func (b *Breaker) RecordFailure(err error) {
	b.RecordFailureWithCategory(err, ErrorCategoryTransient)
}

func (b *Breaker) RecordFailureWithCategory(err error, category ErrorCategory) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()
	b.lastError = err
	b.consecutiveSuccesses = 0
	b.totalFailures++

	switch category {
	case ErrorCategoryInvalid, ErrorCategoryFatal:
		if b.state == StateHalfOpen {
			b.halfOpenProbeInFlight = false
		}
		log.Warn().Str("breaker", b.name).Err(err).Str("category", "non-transient").Msg("circuit breaker ignoring non-transient error")
		return

	case ErrorCategoryRateLimit:
		b.consecutiveFailures = b.config.FailureThreshold

	default:
		b.consecutiveFailures++
	}

	switch b.state {
	case StateClosed:
		if b.consecutiveFailures >= b.config.FailureThreshold {
			b.tripCircuit(err)
		}

	case StateHalfOpen:
		b.halfOpenProbeInFlight = false
		b.currentBackoff = time.Duration(float64(b.currentBackoff) * b.config.BackoffMultiplier)
		if b.currentBackoff > b.config.MaxBackoff {
			b.currentBackoff = b.config.MaxBackoff
		}
		b.tripCircuit(err)
	}
}

func (b *Breaker) tripCircuit(err error) {
	b.transitionTo(StateOpen)
	b.openedAt = time.Now()
	b.halfOpenProbeInFlight = false
	b.totalTrips++

	log.Warn().Str("breaker", b.name).Dur("backoff", b.currentBackoff).Int("failures", b.consecutiveFailures).Err(err).Msg("circuit breaker tripped")

	if b.onTrip != nil {
		go b.onTrip(err)
	}
}

func (b *Breaker) transitionTo(newState State) {
	if b.state == newState {
		return
	}
	oldState := b.state
	b.state = newState
	if b.onStateChange != nil {
		go b.onStateChange(oldState, newState)
	}
}

// Reset resets the circuit breaker to closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transitionTo(StateClosed)
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	b.currentBackoff = b.config.InitialBackoff
	b.lastError = nil
	b.halfOpenProbeInFlight = false
}

func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Status is a snapshot of the breaker's current condition, suitable for a
// diagnostics endpoint.
type Status struct {
	Name                 string        `json:"name"`
	State                string        `json:"state"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	LastFailure          *time.Time    `json:"last_failure,omitempty"`
	LastSuccess          *time.Time    `json:"last_success,omitempty"`
	LastError            string        `json:"last_error,omitempty"`
	CurrentBackoff       time.Duration `json:"current_backoff_ms"`
	TotalFailures        int64         `json:"total_failures"`
	TotalSuccesses       int64         `json:"total_successes"`
	TotalTrips           int64         `json:"total_trips"`
	TimeUntilRetry       time.Duration `json:"time_until_retry_ms,omitempty"`
}

func (b *Breaker) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	status := Status{
		Name:                 b.name,
		State:                b.state.String(),
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		CurrentBackoff:       b.currentBackoff,
		TotalFailures:        b.totalFailures,
		TotalSuccesses:       b.totalSuccesses,
		TotalTrips:           b.totalTrips,
	}
	if !b.lastFailure.IsZero() {
		status.LastFailure = &b.lastFailure
	}
	if !b.lastSuccess.IsZero() {
		status.LastSuccess = &b.lastSuccess
	}
	if b.lastError != nil {
		status.LastError = b.lastError.Error()
	}
	if b.state == StateOpen {
		if retryIn := b.currentBackoff - time.Since(b.openedAt); retryIn > 0 {
			status.TimeUntilRetry = retryIn
		}
	}
	return status
}

func (b *Breaker) IsOpen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state == StateOpen
}

func (b *Breaker) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state == StateClosed
}

// Execute wraps operation with circuit breaker logic, categorizing any
// resulting error via CategorizeError.
func (b *Breaker) Execute(operation func() error) error {
	if !b.Allow() {
		return ErrCircuitOpen
	}
	err := operation()
	if err != nil {
		b.RecordFailureWithCategory(err, CategorizeError(err))
		return err
	}
	b.RecordSuccess()
	return nil
}

type circuitOpenError struct{}

func (e circuitOpenError) Error() string { return "circuit breaker is open" }

// ErrCircuitOpen is returned when an operation is blocked by an open circuit.
var ErrCircuitOpen error = circuitOpenError{}

func IsCircuitOpen(err error) bool {
	_, ok := err.(circuitOpenError)
	return ok
}

// CategorizeError classifies a transport error for the breaker's failure
// handling. Rate-limit and auth/credit errors trip faster or not at all;
// everything else is treated as a retryable transient failure.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryTransient
	}
	errStr := strings.ToLower(err.Error())

	if containsAny(errStr, "rate limit", "429", "too many requests", "quota exceeded") {
		return ErrorCategoryRateLimit
	}
	if containsAny(errStr, "400", "bad request", "invalid", "malformed") {
		return ErrorCategoryInvalid
	}
	if containsAny(errStr, "401", "403", "unauthorized", "forbidden", "api key") {
		return ErrorCategoryFatal
	}
	return ErrorCategoryTransient
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
