// Package circuitbreaker guards repeatedly failing API sources. After
// a threshold of consecutive failures the source is skipped outright
// until a cooldown passes, then a single probe attempt is allowed.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

type sourceState struct {
	state    state
	failures int
	openedAt time.Time
	probing  bool
}

type Breaker struct {
	mu        sync.Mutex
	sources   map[string]*sourceState
	threshold int
	cooldown  time.Duration
	clock     func() time.Time
}

// New creates a breaker that opens after threshold consecutive failures
// and allows one probe after cooldown. A threshold of 0 never opens.
func New(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		sources:   make(map[string]*sourceState),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// Allow reports whether an attempt against key may proceed.
func (b *Breaker) Allow(key string) error {
	if b.threshold <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sources[key]
	if !ok {
		return nil
	}
	switch s.state {
	case stateClosed:
		return nil
	case stateOpen:
		if b.clock().Sub(s.openedAt) < b.cooldown {
			return ErrOpen
		}
		s.state = stateHalfOpen
		s.probing = true
		return nil
	case stateHalfOpen:
		if s.probing {
			return ErrOpen
		}
		s.probing = true
		return nil
	}
	return nil
}

// RecordSuccess closes the breaker for key.
func (b *Breaker) RecordSuccess(key string) {
	if b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sources[key]; ok {
		s.state = stateClosed
		s.failures = 0
		s.probing = false
	}
}

// RecordFailure counts a failure for key, opening the breaker at the
// threshold or re-opening a failed half-open probe.
func (b *Breaker) RecordFailure(key string) {
	if b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sources[key]
	if !ok {
		s = &sourceState{}
		b.sources[key] = s
	}
	if s.state == stateHalfOpen {
		s.state = stateOpen
		s.openedAt = b.clock()
		s.probing = false
		return
	}
	s.failures++
	if s.failures >= b.threshold {
		s.state = stateOpen
		s.openedAt = b.clock()
	}
}
