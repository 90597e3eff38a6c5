package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/infra"
	"admission-gateway/otp"
	"admission-gateway/otp/application"
	otpinfra "admission-gateway/otp/infra"
)

// Exemplo: injetando o limiter e os endpoints de OTP direto no seu webserver
// (sem proxy e sem Redis). O limite vale por processo.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	counter := infra.NewMemoryCounter()
	counter.StartJanitor(ctx)

	secret := os.Getenv("OTP_SECRET")
	if secret == "" {
		secret = "example-only-secret-change-me-0123456789"
	}
	hasher, err := otpinfra.NewHMACHasher(secret)
	if err != nil {
		logger.Error("otp secret", slog.Any("err", err))
		os.Exit(1)
	}
	svc := &application.Service{Repo: otpinfra.NewMemoryRepository(), Hasher: hasher, Logger: logger}
	svc.StartJanitor(ctx, time.Minute)

	mux := http.NewServeMux()
	otp.NewHandler(svc, otp.Options{Logger: logger}).Register(mux, otp.DefaultPaths())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	h := ratelimit.Middleware(ratelimit.Options{
		Fallback:            counter,
		Window:              time.Minute,
		Max:                 30,
		KeyPrefix:           "example",
		KeyFn:               ratelimit.HeaderKeyFunc("X-Api-Key", ratelimit.ClientIdentity), // ou nil para usar IP
		OnLimitReached:      ratelimit.LogLimitReached(logger, "example"),
		Logger:              logger,
		AddRateLimitHeaders: true,
	})(mux)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.Any("err", err))
		os.Exit(1)
	}
}
