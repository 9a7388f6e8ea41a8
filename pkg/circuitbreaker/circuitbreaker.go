// Package circuitbreaker stops calls to a failing dependency until it has
// had time to recover.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker is refusing calls.
var ErrOpen = errors.New("circuit open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Config tunes when the breaker trips and how long it stays tripped.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before allowing a
	// trial call through.
	Cooldown time.Duration
}

type Breaker struct {
	name string
	cfg  Config

	mu          sync.Mutex
	state       state
	failures    int
	openedAt    time.Time
}

func New(name string, cfg Config) *Breaker {
	return &Breaker{name: name, cfg: cfg, state: stateClosed}
}

// Do runs fn unless the breaker is open. A success in the half-open state
// closes the breaker; any failure counts toward reopening it.
func (b *Breaker) Do(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := fn()
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen {
		if time.Since(b.openedAt) <= b.cfg.Cooldown {
			return ErrOpen
		}
		b.state = stateHalfOpen
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = stateOpen
			b.openedAt = time.Now()
		}
		return
	}

	b.failures = 0
	if b.state == stateHalfOpen {
		b.state = stateClosed
	}
}
