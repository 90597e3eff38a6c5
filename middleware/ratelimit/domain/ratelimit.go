package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"errors"
	"time"
)

type Key string

// ErrCounterUnavailable indica que o backend de contagem não respondeu
// (erro de rede, timeout, script falhou). Quem chama deve cair no fallback.
var ErrCounterUnavailable = errors.New("counter store unavailable")

// CounterStore registra um evento na janela da chave e devolve quantos
// eventos existem dentro de [now-window, now], já contando o novo.
//
// Implementações precisam ser seguras para chamadas concorrentes na mesma chave.
// A implementação distribuída faz add/prune/count/expire numa operação atômica.
type CounterStore interface {
	RecordAndCount(ctx context.Context, key Key, window time.Duration) (int64, error)
}

type Decision struct {
	Admitted bool
	Count    int64
	Limit    int64
	// Degraded indica que a contagem veio do fallback local (precisão por processo).
	Degraded bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

// Remaining é quantas requisições ainda cabem na janela atual.
func (d Decision) Remaining() int64 {
	if d.Limit <= 0 || d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}
