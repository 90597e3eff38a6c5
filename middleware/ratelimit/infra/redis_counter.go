package infra

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"admission-gateway/internal/clock"
	"admission-gateway/middleware/ratelimit/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowLua faz add/prune/count/expire numa única ida ao Redis.
// KEYS[1] = sorted set da janela
// ARGV[1] = agora (ms)
// ARGV[2] = limite inferior exclusivo, já no formato "(<now-window>"
// ARGV[3] = membro único (ms-uuid)
// ARGV[4] = ttl da chave (ms)
var slidingWindowLua = redis.NewScript(`
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[3])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return count
`)

// RedisCounter é o backend distribuído do CounterStore (sorted set por chave).
type RedisCounter struct {
	rdb redis.UniversalClient

	clock     clock.Clock
	timeout   time.Duration
	ttlMargin time.Duration
	prefix    string
	newMember func(nowMs int64) string
}

type RedisCounterOption func(*RedisCounter)

func WithRedisClock(c clock.Clock) RedisCounterOption {
	return func(r *RedisCounter) { r.clock = clock.OrSystem(c) }
}

// WithOpTimeout limita a ida ao Redis; estourou, a chamada vira "unavailable".
func WithOpTimeout(d time.Duration) RedisCounterOption {
	return func(r *RedisCounter) { r.timeout = d }
}

// WithTTLMargin é somado à janela no PEXPIRE para recolher chaves abandonadas.
func WithTTLMargin(d time.Duration) RedisCounterOption {
	return func(r *RedisCounter) { r.ttlMargin = d }
}

func WithCounterPrefix(prefix string) RedisCounterOption {
	return func(r *RedisCounter) { r.prefix = prefix }
}

func NewRedisCounter(rdb redis.UniversalClient, opts ...RedisCounterOption) *RedisCounter {
	r := &RedisCounter{
		rdb:       rdb,
		clock:     clock.System(),
		timeout:   50 * time.Millisecond,
		ttlMargin: time.Second,
		prefix:    "rl:",
		newMember: func(nowMs int64) string {
			return strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordAndCount implementa domain.CounterStore.
//
// Qualquer erro (rede, timeout, script) volta embrulhado em
// domain.ErrCounterUnavailable; nunca bloqueia além do timeout configurado.
func (r *RedisCounter) RecordAndCount(ctx context.Context, key domain.Key, window time.Duration) (int64, error) {
	if r == nil || r.rdb == nil {
		return 0, domain.ErrCounterUnavailable
	}

	// desconexão do cliente não cancela a contagem em andamento
	ctx = context.WithoutCancel(ctx)
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	nowMs := r.clock.Now().UnixMilli()
	count, err := slidingWindowLua.Run(ctx, r.rdb,
		[]string{r.prefix + string(key)},
		nowMs,
		"("+strconv.FormatInt(nowMs-window.Milliseconds(), 10),
		r.newMember(nowMs),
		(window + r.ttlMargin).Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCounterUnavailable, err)
	}
	return count, nil
}
