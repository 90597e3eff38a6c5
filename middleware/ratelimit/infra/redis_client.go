package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisNotInitialized = errors.New("redis client not initialized")

type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration

	// MaxRetries é o número fixo de novas tentativas por comando; depois disso
	// desiste até a próxima requisição tentar de novo.
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
}

// RedisClient é o recurso compartilhado de conexão com o Redis, com ciclo de
// vida explícito: Init na subida do processo, Close no desligamento.
type RedisClient struct {
	cfg RedisConfig

	mu  sync.Mutex
	rdb *redis.Client
}

func NewRedisClient(cfg RedisConfig) *RedisClient {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 500 * time.Millisecond
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 100 * time.Millisecond
	}
	if cfg.PoolTimeout <= 0 {
		cfg.PoolTimeout = 200 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.MinRetryBackoff <= 0 {
		cfg.MinRetryBackoff = 8 * time.Millisecond
	}
	if cfg.MaxRetryBackoff <= 0 {
		cfg.MaxRetryBackoff = 64 * time.Millisecond
	}
	return &RedisClient{cfg: cfg}
}

// Init cria o client e faz um PING. O client continua válido mesmo se o PING
// falhar: o go-redis reconecta sob demanda, e o limiter cai no fallback enquanto isso.
func (c *RedisClient) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.rdb == nil {
		c.rdb = redis.NewClient(&redis.Options{
			Addr:            c.cfg.Addr,
			Password:        c.cfg.Password,
			DB:              c.cfg.DB,
			DialTimeout:     c.cfg.DialTimeout,
			ReadTimeout:     c.cfg.ReadTimeout,
			WriteTimeout:    c.cfg.WriteTimeout,
			PoolTimeout:     c.cfg.PoolTimeout,
			MaxRetries:      c.cfg.MaxRetries,
			MinRetryBackoff: c.cfg.MinRetryBackoff,
			MaxRetryBackoff: c.cfg.MaxRetryBackoff,
		})
	}
	rdb := c.rdb
	c.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.cfg.Addr, err)
	}
	return nil
}

// Client devolve o client compartilhado, ou nil antes de Init.
func (c *RedisClient) Client() *redis.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rdb
}

func (c *RedisClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rdb == nil {
		return ErrRedisNotInitialized
	}
	err := c.rdb.Close()
	c.rdb = nil
	return err
}
