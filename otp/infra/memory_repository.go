package infra

import (
	"context"
	"sync"
	"time"

	"admission-gateway/otp/domain"
)

type pairKey struct {
	identity string
	purpose  domain.Purpose
}

// MemoryRepository guarda desafios em memória. Útil para testes e
// desenvolvimento; não sobrevive a restart nem é compartilhado entre processos.
type MemoryRepository struct {
	mu     sync.Mutex
	byID   map[string]*domain.Challenge
	byPair map[pairKey][]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[string]*domain.Challenge),
		byPair: make(map[pairKey][]string),
	}
}

func (m *MemoryRepository) Replace(_ context.Context, c domain.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := pairKey{c.Identity, c.Purpose}
	m.deletePairLocked(k)
	stored := c
	m.byID[c.ID] = &stored
	m.byPair[k] = []string{c.ID}
	return nil
}

func (m *MemoryRepository) Latest(_ context.Context, identity string, purpose domain.Purpose) (domain.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *domain.Challenge
	for _, id := range m.byPair[pairKey{identity, purpose}] {
		c := m.byID[id]
		if c == nil {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return domain.Challenge{}, domain.ErrNotFound
	}
	out := *latest
	return out, nil
}

func (m *MemoryRepository) ReserveAttempt(_ context.Context, id string, max int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byID[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if c.Attempts >= max {
		return c.Attempts, domain.ErrAttemptsExhausted
	}
	c.Attempts++
	return c.Attempts, nil
}

func (m *MemoryRepository) MarkVerified(_ context.Context, id string, at time.Time, max int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byID[id]
	if !ok || c.Attempts > max {
		return domain.ErrNotFound
	}
	c.Verified = true
	t := at
	c.VerifiedAt = &t
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(id)
	return nil
}

func (m *MemoryRepository) DeleteAll(_ context.Context, identity string, purpose domain.Purpose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletePairLocked(pairKey{identity, purpose})
	return nil
}

func (m *MemoryRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, c := range m.byID {
		if c.Expired(now) {
			m.deleteLocked(id)
			n++
		}
	}
	return n, nil
}

// Len retorna quantos desafios estão guardados.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *MemoryRepository) deletePairLocked(k pairKey) {
	for _, id := range m.byPair[k] {
		delete(m.byID, id)
	}
	delete(m.byPair, k)
}

func (m *MemoryRepository) deleteLocked(id string) {
	c, ok := m.byID[id]
	if !ok {
		return
	}
	delete(m.byID, id)

	k := pairKey{c.Identity, c.Purpose}
	ids := m.byPair[k][:0]
	for _, other := range m.byPair[k] {
		if other != id {
			ids = append(ids, other)
		}
	}
	if len(ids) == 0 {
		delete(m.byPair, k)
		return
	}
	m.byPair[k] = ids
}
