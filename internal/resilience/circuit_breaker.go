// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when a breaker refuses an operation.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerState represents the state of a circuit breaker.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // normal operation
	BreakerOpen                         // failing fast
	BreakerHalfOpen                     // probing after the cooldown
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	Name             string           // name used in error messages
	FailureThreshold int              // consecutive failures before opening
	SuccessThreshold int              // successes needed to close from half-open
	Cooldown         time.Duration    // how long to stay open before probing
	IsFailure        func(error) bool // nil counts every non-nil error
}

// OCRBreakerConfig returns breaker configuration for the OCR engine.
// A scanned agreement can have hundreds of empty pages; once the engine
// is clearly broken there is no point paying the per-page retry cost.
func OCRBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "ocr",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
		IsFailure: func(err error) bool {
			// Invalid page images are the page's fault, not the engine's.
			return err != nil && ClassifyError(err).Type != ErrorTypeInvalidInput
		},
	}
}

// Breaker implements the circuit breaker pattern for a single dependency.
// After FailureThreshold consecutive failures it fails fast for Cooldown,
// then lets probes through until SuccessThreshold successes close it again.
type Breaker struct {
	config BreakerConfig

	mu            sync.Mutex
	state         BreakerState
	failures      int
	successes     int
	openedAt      time.Time
	probeInFlight bool
}

// NewBreaker creates a breaker in the closed state.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	return &Breaker{config: config, state: BreakerClosed}
}

// Allow reports whether an operation may proceed. Every accepted
// operation must be followed by exactly one Record call.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil

	case BreakerOpen:
		if time.Since(b.openedAt) < b.config.Cooldown {
			return fmt.Errorf("%w: '%s' failed %d times", ErrBreakerOpen, b.config.Name, b.failures)
		}
		b.setState(BreakerHalfOpen)
		fallthrough

	case BreakerHalfOpen:
		// One probe at a time; everything else fails fast.
		if b.probeInFlight {
			return fmt.Errorf("%w: '%s' probe in flight", ErrBreakerOpen, b.config.Name)
		}
		b.probeInFlight = true
		return nil

	default:
		return fmt.Errorf("unknown breaker state: %v", b.state)
	}
}

// Record feeds the outcome of an accepted operation back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.probeInFlight = false
	}

	failed := err != nil
	if b.config.IsFailure != nil {
		failed = b.config.IsFailure(err)
	}

	if failed {
		b.failures++
		switch b.state {
		case BreakerClosed:
			if b.failures >= b.config.FailureThreshold {
				b.open()
			}
		case BreakerHalfOpen:
			b.open()
		}
		return
	}

	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.setState(BreakerClosed)
			b.failures = 0
			b.successes = 0
		}
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) open() {
	b.setState(BreakerOpen)
	b.openedAt = time.Now()
	b.successes = 0
}

func (b *Breaker) setState(newState BreakerState) {
	b.state = newState
}

// IsBreakerOpen checks whether an error came from an open breaker.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, ErrBreakerOpen)
}
