// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package fabric

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker open: database unavailable")

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	StateClosed   CircuitState = iota // Normal operation
	StateOpen                         // Failing - reject requests immediately
	StateHalfOpen                     // Testing - allow limited requests
)

func (s CircuitState) String() string {
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

// CircuitBreakerConfig defines circuit breaker behavior.
type CircuitBreakerConfig struct {
	FailureThreshold int           // Consecutive connectivity failures to open (default: 5)
	SuccessThreshold int           // Consecutive successes to close from half-open (default: 1)
	Timeout          time.Duration // Time to wait before attempting half-open (default: 30s)
	Logger           *zap.Logger
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreaker fails fast while the database is unreachable. Only
// connectivity failures count; a bad query says nothing about the server.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	lastError       error
	config          CircuitBreakerConfig
	now             func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	defaults := DefaultCircuitBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &CircuitBreaker{
		state:  StateClosed,
		config: config,
		now:    time.Now,
	}
}

// Execute wraps an operation with circuit breaker logic.
func (cb *CircuitBreaker) Execute(operation func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}
	err := operation()
	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailureTime) < cb.config.Timeout {
			if cb.lastError != nil {
				return fmt.Errorf("%w (last error: %v)", ErrCircuitOpen, cb.lastError)
			}
			return ErrCircuitOpen
		}
		cb.setStateLocked(StateHalfOpen)
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil || !isConnectivityError(err) {
		cb.failureCount = 0
		if cb.state == StateHalfOpen {
			cb.successCount++
			if cb.successCount >= cb.config.SuccessThreshold {
				cb.setStateLocked(StateClosed)
			}
		}
		return
	}

	cb.failureCount++
	cb.lastFailureTime = cb.now()
	cb.lastError = err
	if cb.state == StateHalfOpen || cb.failureCount >= cb.config.FailureThreshold {
		cb.setStateLocked(StateOpen)
	}
}

func (cb *CircuitBreaker) setStateLocked(newState CircuitState) {
	if cb.state == newState {
		return
	}
	cb.config.Logger.Warn("circuit breaker state change",
		zap.String("from", cb.state.String()),
		zap.String("to", newState.String()),
		zap.Int("failures", cb.failureCount))
	cb.state = newState
	cb.successCount = 0
	if newState == StateClosed {
		cb.failureCount = 0
		cb.lastError = nil
	}
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the breaker.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setStateLocked(StateClosed)
}

func isConnectivityError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return InferErrorType(err.Error()) == ErrorTypeConnection
}

// BreakerBackend routes ExecuteQuery and Ping through a CircuitBreaker.
// Catalog reads share the breaker so a dead database fails fast everywhere.
type BreakerBackend struct {
	ExecutionBackend
	breaker *CircuitBreaker
}

// NewBreakerBackend wraps backend.
func NewBreakerBackend(backend ExecutionBackend, breaker *CircuitBreaker) *BreakerBackend {
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultCircuitBreakerConfig())
	}
	return &BreakerBackend{ExecutionBackend: backend, breaker: breaker}
}

// Breaker returns the breaker guarding the backend.
func (b *BreakerBackend) Breaker() *CircuitBreaker {
	return b.breaker
}

// ExecuteQuery runs the query unless the breaker is open.
func (b *BreakerBackend) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	var result *QueryResult
	err := b.breaker.Execute(func() error {
		var err error
		result, err = b.ExecutionBackend.ExecuteQuery(ctx, query)
		return err
	})
	return result, err
}

// ListTables lists tables unless the breaker is open.
func (b *BreakerBackend) ListTables(ctx context.Context) ([]string, error) {
	var tables []string
	err := b.breaker.Execute(func() error {
		var err error
		tables, err = b.ExecutionBackend.ListTables(ctx)
		return err
	})
	return tables, err
}

// Ping checks connectivity. A successful ping after the timeout closes the
// breaker.
func (b *BreakerBackend) Ping(ctx context.Context) error {
	return b.breaker.Execute(func() error {
		return b.ExecutionBackend.Ping(ctx)
	})
}
