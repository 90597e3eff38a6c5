// Package config carrega a configuração do gateway: padrões, depois um arquivo
// YAML opcional (CONFIG_FILE) e por fim variáveis de ambiente, que sempre vencem.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinOTPSecretLen acompanha o mínimo exigido pelo hasher de OTP.
const MinOTPSecretLen = 32

type Config struct {
	ListenAddr  string
	UpstreamURL string
	AppEnv      string

	Rate  RateConfig
	Redis RedisConfig
	Stats StatsConfig
	OTP   OTPConfig
	DB    DBConfig

	// JWTSecret habilita a verificação do bearer no bypass do limiter geral.
	// Vazio: basta a presença do header.
	JWTSecret string

	SessionCheckPath string
	// AuthPaths são as rotas do tier estrito ("POST /api/auth/login", "/api/otp/*").
	AuthPaths []string
}

type RateConfig struct {
	Enabled    bool
	Window     time.Duration
	MaxGeneral int64
	MaxAuth    int64
	KeyPrefix  string
	KeyHeader  string
	AddHeaders bool
	// SkipRoutes são rotas de leitura que o limiter geral ignora.
	SkipRoutes []string
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	OpTimeout  time.Duration
	MaxRetries int
}

type StatsConfig struct {
	Enabled   bool
	Prefix    string
	TTL       time.Duration
	Bucket    string
	TrackKeys bool
	OTel      bool
}

type OTPConfig struct {
	Secret      string
	TTL         time.Duration
	MaxAttempts int
	Digits      int
	SweepEvery  time.Duration
	ExposeCode  bool
	// DeliveryURL recebe o código por POST (webhook de email). Obrigatório em produção.
	DeliveryURL     string
	DeliveryTimeout time.Duration
	// SecretGenerated indica que o segredo foi gerado na subida (fora de produção).
	SecretGenerated bool
}

type DBConfig struct {
	Dialect     string
	DSN         string
	AutoMigrate bool
}

func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

func Defaults() Config {
	return Config{
		ListenAddr: ":8080",
		AppEnv:     "development",
		Rate: RateConfig{
			Enabled:    true,
			Window:     15 * time.Minute,
			MaxGeneral: 2000,
			MaxAuth:    50,
			KeyPrefix:  "",
		},
		Redis: RedisConfig{
			OpTimeout:  50 * time.Millisecond,
			MaxRetries: 2,
		},
		Stats: StatsConfig{
			Prefix: "ratelimit:stats",
			TTL:    24 * time.Hour,
			Bucket: "minute",
		},
		OTP: OTPConfig{
			TTL:         10 * time.Minute,
			MaxAttempts: 5,
			Digits:      6,
			SweepEvery:  time.Minute,

			DeliveryTimeout: 5 * time.Second,
		},
		DB: DBConfig{
			Dialect:     "sqlite",
			AutoMigrate: true,
		},
		SessionCheckPath: "/api/auth/session",
		AuthPaths: []string{
			"/api/auth/*",
			"/api/otp/*",
		},
	}
}

// Load monta a configuração final e valida.
func Load() (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
		if err := fc.apply(&cfg); err != nil {
			return Config{}, fmt.Errorf("apply %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.finalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.ListenAddr = getenvDefault("LISTEN_ADDR", cfg.ListenAddr)
	cfg.UpstreamURL = getenvDefault("UPSTREAM_URL", cfg.UpstreamURL)
	cfg.AppEnv = getenvDefault("APP_ENV", cfg.AppEnv)

	cfg.Rate.Enabled = getenvBoolDefault("RATE_ENABLED", cfg.Rate.Enabled)
	if ms, ok := getenvInt("RATE_WINDOW_MS"); ok {
		cfg.Rate.Window = time.Duration(ms) * time.Millisecond
	}
	cfg.Rate.MaxGeneral = int64(getenvIntDefault("RATE_MAX_GENERAL", int(cfg.Rate.MaxGeneral)))
	cfg.Rate.MaxAuth = int64(getenvIntDefault("RATE_MAX_AUTH", int(cfg.Rate.MaxAuth)))
	cfg.Rate.KeyPrefix = getenvDefault("RATE_KEY_PREFIX", cfg.Rate.KeyPrefix)
	cfg.Rate.KeyHeader = getenvDefault("RATE_KEY_HEADER", cfg.Rate.KeyHeader)
	cfg.Rate.AddHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", cfg.Rate.AddHeaders)
	cfg.Rate.SkipRoutes = getenvListDefault("RATE_SKIP_ROUTES", cfg.Rate.SkipRoutes)

	cfg.Redis.Addr = getenvDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getenvDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getenvIntDefault("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.OpTimeout = getenvDurationDefault("REDIS_OP_TIMEOUT", cfg.Redis.OpTimeout)
	cfg.Redis.MaxRetries = getenvIntDefault("REDIS_MAX_RETRIES", cfg.Redis.MaxRetries)

	cfg.Stats.Enabled = getenvBoolDefault("RATE_STATS_ENABLED", cfg.Stats.Enabled)
	cfg.Stats.Prefix = getenvDefault("RATE_STATS_PREFIX", cfg.Stats.Prefix)
	cfg.Stats.TTL = getenvDurationDefault("RATE_STATS_TTL", cfg.Stats.TTL)
	cfg.Stats.Bucket = getenvDefault("RATE_STATS_BUCKET", cfg.Stats.Bucket)
	cfg.Stats.TrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", cfg.Stats.TrackKeys)
	cfg.Stats.OTel = getenvBoolDefault("RATE_STATS_OTEL", cfg.Stats.OTel)

	cfg.JWTSecret = getenvDefault("JWT_SECRET", cfg.JWTSecret)

	cfg.OTP.Secret = getenvDefault("OTP_SECRET", cfg.OTP.Secret)
	cfg.OTP.TTL = getenvDurationDefault("OTP_TTL", cfg.OTP.TTL)
	cfg.OTP.MaxAttempts = getenvIntDefault("OTP_MAX_ATTEMPTS", cfg.OTP.MaxAttempts)
	cfg.OTP.Digits = getenvIntDefault("OTP_DIGITS", cfg.OTP.Digits)
	cfg.OTP.SweepEvery = getenvDurationDefault("OTP_SWEEP_EVERY", cfg.OTP.SweepEvery)
	cfg.OTP.ExposeCode = getenvBoolDefault("OTP_EXPOSE_CODE", cfg.OTP.ExposeCode)
	cfg.OTP.DeliveryURL = getenvDefault("OTP_DELIVERY_URL", cfg.OTP.DeliveryURL)
	cfg.OTP.DeliveryTimeout = getenvDurationDefault("OTP_DELIVERY_TIMEOUT", cfg.OTP.DeliveryTimeout)

	cfg.DB.Dialect = getenvDefault("DB_DIALECT", cfg.DB.Dialect)
	cfg.DB.DSN = getenvDefault("DB_DSN", cfg.DB.DSN)
	cfg.DB.AutoMigrate = getenvBoolDefault("DB_AUTO_MIGRATE", cfg.DB.AutoMigrate)

	cfg.SessionCheckPath = getenvDefault("SESSION_CHECK_PATH", cfg.SessionCheckPath)
	cfg.AuthPaths = getenvListDefault("AUTH_PATHS", cfg.AuthPaths)
}

// finalize valida e completa o que depende do ambiente.
func (c *Config) finalize() error {
	if strings.TrimSpace(c.UpstreamURL) == "" {
		return errors.New("UPSTREAM_URL is required")
	}
	if c.Rate.Enabled {
		if c.Rate.Window <= 0 {
			return errors.New("RATE_WINDOW_MS must be > 0")
		}
		if c.Rate.MaxGeneral <= 0 || c.Rate.MaxAuth <= 0 {
			return errors.New("RATE_MAX_GENERAL and RATE_MAX_AUTH must be > 0")
		}
	}
	if c.OTP.MaxAttempts <= 0 {
		return errors.New("OTP_MAX_ATTEMPTS must be > 0")
	}
	if c.OTP.Digits < 4 || c.OTP.Digits > 10 {
		return errors.New("OTP_DIGITS must be between 4 and 10")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP_TTL must be > 0")
	}
	if c.OTP.DeliveryTimeout <= 0 {
		return errors.New("OTP_DELIVERY_TIMEOUT must be > 0")
	}

	secret := strings.TrimSpace(c.OTP.Secret)
	switch {
	case len(secret) >= MinOTPSecretLen:
	case c.Production():
		// segredo padrão tornaria todo OTP forjável: não sobe
		return fmt.Errorf("OTP_SECRET must be set with at least %d bytes in production", MinOTPSecretLen)
	case secret != "":
		return fmt.Errorf("OTP_SECRET must have at least %d bytes", MinOTPSecretLen)
	default:
		generated, err := randomSecret()
		if err != nil {
			return fmt.Errorf("generate OTP secret: %w", err)
		}
		c.OTP.Secret = generated
		c.OTP.SecretGenerated = true
	}

	if c.Production() {
		if strings.TrimSpace(c.DB.DSN) == "" {
			return errors.New("DB_DSN is required in production")
		}
		// sem entrega o código só chegaria ao cliente pela resposta HTTP
		if strings.TrimSpace(c.OTP.DeliveryURL) == "" {
			return errors.New("OTP_DELIVERY_URL is required in production")
		}
		c.OTP.ExposeCode = false
	}
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, MinOTPSecretLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	if i, ok := getenvInt(k); ok {
		return i
	}
	return def
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// getenvListDefault lê uma lista separada por vírgula.
func getenvListDefault(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return splitList(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
