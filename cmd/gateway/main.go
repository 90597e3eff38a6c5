package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"
	_ "modernc.org/sqlite"

	"admission-gateway/internal/config"
	"admission-gateway/internal/gateway"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"
	"admission-gateway/otp"
	"admission-gateway/otp/application"
	otpdomain "admission-gateway/otp/domain"
	otpinfra "admission-gateway/otp/infra"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		fatal(logger, "config error", err)
	}
	if cfg.OTP.SecretGenerated {
		logger.Warn("OTP_SECRET not set, using an ephemeral secret; codes will not survive a restart")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// contadores: Redis primeiro, memória como fallback por requisição
	var primary domain.CounterStore
	var redisClient *infra.RedisClient
	if cfg.Redis.Addr != "" {
		redisClient = infra.NewRedisClient(infra.RedisConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err := redisClient.Init(ctx); err != nil {
			logger.Warn("redis unreachable at startup, using in-process fallback until it recovers", slog.Any("err", err))
		}
		defer func() { _ = redisClient.Close() }()
		primary = infra.NewRedisCounter(redisClient.Client(), infra.WithOpTimeout(cfg.Redis.OpTimeout))
	} else {
		logger.Warn("REDIS_ADDR not set, rate limits are enforced per process")
	}

	fallback := infra.NewMemoryCounter()
	fallback.StartJanitor(ctx)

	stats, err := buildStats(cfg, redisClient)
	if err != nil {
		fatal(logger, "rate stats error", err)
	}

	repo, closeDB, err := buildRepository(ctx, cfg, logger)
	if err != nil {
		fatal(logger, "otp store error", err)
	}
	defer closeDB()

	hasher, err := otpinfra.NewHMACHasher(cfg.OTP.Secret)
	if err != nil {
		fatal(logger, "otp secret error", err)
	}

	otpService := &application.Service{
		Repo:        repo,
		Hasher:      hasher,
		TTL:         cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
		Digits:      cfg.OTP.Digits,
		Logger:      logger,
	}
	otpService.StartJanitor(ctx, cfg.OTP.SweepEvery)

	proxy, err := gateway.NewUpstreamProxy(cfg.UpstreamURL, logger)
	if err != nil {
		fatal(logger, "upstream error", err)
	}

	otpOpts := otp.Options{
		ExposeCode: cfg.OTP.ExposeCode || !cfg.Production(),
		Logger:     logger,
	}
	if cfg.OTP.DeliveryURL != "" {
		otpOpts.Sender = otp.NewWebhookSender(cfg.OTP.DeliveryURL, &http.Client{Timeout: cfg.OTP.DeliveryTimeout})
		otpOpts.ExposeCode = cfg.OTP.ExposeCode
	}

	h, err := gateway.New(gateway.Deps{
		Config:   cfg,
		Upstream: proxy,
		OTP:      otp.NewHandler(otpService, otpOpts),
		Primary:  primary,
		Fallback: fallback,
		Stats:    stats,
		Logger:   logger,
	})
	if err != nil {
		fatal(logger, "gateway error", err)
	}

	srv := gateway.NewServer(cfg.ListenAddr, h)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening",
		slog.String("addr", cfg.ListenAddr),
		slog.String("upstream", cfg.UpstreamURL),
		slog.String("env", cfg.AppEnv),
	)
	logger.Info("rate",
		slog.Bool("enabled", cfg.Rate.Enabled),
		slog.Duration("window", cfg.Rate.Window),
		slog.Int64("maxGeneral", cfg.Rate.MaxGeneral),
		slog.Int64("maxAuth", cfg.Rate.MaxAuth),
		slog.Bool("distributed", primary != nil),
		slog.String("sessionCheckPath", cfg.SessionCheckPath),
	)
	logger.Info("rate-stats",
		slog.Bool("enabled", cfg.Stats.Enabled),
		slog.String("bucket", cfg.Stats.Bucket),
		slog.Duration("ttl", cfg.Stats.TTL),
		slog.Bool("trackKeys", cfg.Stats.TrackKeys),
		slog.Bool("otel", cfg.Stats.OTel),
	)
	logger.Info("otp",
		slog.Duration("ttl", cfg.OTP.TTL),
		slog.Int("maxAttempts", cfg.OTP.MaxAttempts),
		slog.String("dialect", cfg.DB.Dialect),
		slog.Bool("persistent", cfg.DB.DSN != ""),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal(logger, "server error", err)
	}
}

func buildStats(cfg config.Config, rc *infra.RedisClient) (domain.StatsStore, error) {
	if !cfg.Stats.Enabled {
		return nil, nil
	}

	var sinks infra.MultiStats
	if rc != nil && rc.Client() != nil {
		sinks = append(sinks, infra.NewRedisStatsStore(
			rc.Client(),
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		))
	} else {
		sinks = append(sinks, infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.Stats.TrackKeys)))
	}

	if cfg.Stats.OTel {
		otelStats, err := infra.NewOTelStatsStore(otel.GetMeterProvider().Meter("admission-gateway"))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, otelStats)
	}
	return sinks, nil
}

// buildRepository abre o banco do OTP. Sem DB_DSN os desafios ficam em memória.
func buildRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (otpdomain.Repository, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Warn("DB_DSN not set, otp challenges are kept in memory")
		return otpinfra.NewMemoryRepository(), func() {}, nil
	}

	dialect, err := otpinfra.ParseDialect(cfg.DB.Dialect)
	if err != nil {
		return nil, nil, err
	}
	driver, err := otpinfra.DriverName(dialect)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(driver, cfg.DB.DSN)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = db.Close() }

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		closeDB()
		return nil, nil, err
	}

	if cfg.DB.AutoMigrate {
		if err := otpinfra.Migrate(ctx, db, dialect); err != nil {
			closeDB()
			return nil, nil, err
		}
	}
	return otpinfra.NewSQLRepository(db, dialect), closeDB, nil
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.Any("err", err))
	os.Exit(1)
}
