// Package clock abstrai a fonte de tempo para que janelas deslizantes e
// expiração de desafios OTP possam ser testadas sem sleeps.
package clock

import (
	"sync"
	"time"
)

// Clock retorna o instante atual.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// System retorna o relógio real do processo.
func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

// Manual é um relógio controlado pelo teste. Seguro para uso concorrente.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (c *Manual) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance move o relógio para frente. Valores negativos são ignorados.
func (c *Manual) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *Manual) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// OrSystem devolve c, ou o relógio do sistema quando c é nil.
func OrSystem(c Clock) Clock {
	if c == nil {
		return System()
	}
	return c
}
