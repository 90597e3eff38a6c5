package infra

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"admission-gateway/internal/clock"
	"admission-gateway/middleware/ratelimit/domain"
)

// MemoryCounter é o fallback em processo para o CounterStore: um mapa
// chave -> timestamps (ms) protegido por mutex, com limpeza probabilística.
//
// Não é compartilhado entre processos: sob fallback o limite passa a valer por
// instância do gateway.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*counterEntry

	clock            clock.Clock
	sweepProbability float64
	randFloat        func() float64
	cleanupEvery     time.Duration
}

type counterEntry struct {
	stamps []int64
	window time.Duration
}

type MemoryCounterOption func(*MemoryCounter)

func WithMemoryClock(c clock.Clock) MemoryCounterOption {
	return func(m *MemoryCounter) { m.clock = clock.OrSystem(c) }
}

// WithSweepProbability define a chance (0..1) de varrer o mapa inteiro a cada chamada.
func WithSweepProbability(p float64) MemoryCounterOption {
	return func(m *MemoryCounter) { m.sweepProbability = p }
}

func WithRandSource(fn func() float64) MemoryCounterOption {
	return func(m *MemoryCounter) {
		if fn != nil {
			m.randFloat = fn
		}
	}
}

func WithCleanupEvery(d time.Duration) MemoryCounterOption {
	return func(m *MemoryCounter) { m.cleanupEvery = d }
}

func NewMemoryCounter(opts ...MemoryCounterOption) *MemoryCounter {
	m := &MemoryCounter{
		entries:          make(map[string]*counterEntry),
		clock:            clock.System(),
		sweepProbability: 0.1,
		randFloat:        rand.Float64,
		cleanupEvery:     time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryCounter) CleanupEvery() time.Duration { return m.cleanupEvery }

// RecordAndCount implementa domain.CounterStore. Nunca falha.
func (m *MemoryCounter) RecordAndCount(_ context.Context, key domain.Key, window time.Duration) (int64, error) {
	now := m.clock.Now().UnixMilli()
	cutoff := now - window.Milliseconds()

	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.entries[string(key)]
	if !ok {
		ent = &counterEntry{}
		m.entries[string(key)] = ent
	}
	ent.window = window
	ent.stamps = append(ent.stamps, now)

	kept := ent.stamps[:0]
	for _, ts := range ent.stamps {
		if ts >= cutoff {
			kept = append(kept, ts)
		}
	}
	ent.stamps = kept
	count := int64(len(kept))

	if m.sweepProbability > 0 && m.randFloat() < m.sweepProbability {
		m.sweepLocked(now)
	}
	return count, nil
}

// Len retorna quantas chaves estão em memória.
func (m *MemoryCounter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Cleanup remove chaves vazias ou cujo último evento já saiu da janela.
func (m *MemoryCounter) Cleanup() {
	now := m.clock.Now().UnixMilli()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(now)
}

func (m *MemoryCounter) sweepLocked(now int64) {
	for k, ent := range m.entries {
		if len(ent.stamps) == 0 || ent.stamps[len(ent.stamps)-1] < now-ent.window.Milliseconds() {
			delete(m.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves expiradas periodicamente,
// complementando a limpeza probabilística. Pare cancelando o contexto.
func (m *MemoryCounter) StartJanitor(ctx DoneContext) {
	if m.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(m.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context no janitor.
type DoneContext interface {
	Done() <-chan struct{}
}
