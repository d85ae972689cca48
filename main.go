package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codetesla51/rategate/config"
	"github.com/codetesla51/rategate/limiter"
	"github.com/codetesla51/rategate/middleware"
	"github.com/codetesla51/rategate/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	counter, closeStore, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	fw, err := limiter.NewFixedWindow(cfg.Requests, cfg.Window(), counter,
		limiter.WithStoreTimeout(cfg.StoreTimeout))
	if err != nil {
		slog.Error("failed to create limiter", "error", err)
		os.Exit(1)
	}

	var mwOpts []middleware.Option
	if cfg.FailOpen {
		mwOpts = append(mwOpts, middleware.WithFailOpen())
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(fw, mwOpts...))
		r.Post("/api/submit", submitHandler)
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening",
			"addr", srv.Addr,
			"store", cfg.Store,
			"limit", cfg.Requests,
			"window_seconds", cfg.WindowSeconds,
		)
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func openStore(cfg config.Config) (store.Counter, func(), error) {
	switch cfg.Store {
	case "memory":
		ms := store.NewMemoryStore()
		return ms, ms.Close, nil
	case "redis":
		rs, err := store.NewRedisStore(cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() {
			if err := rs.Close(); err != nil {
				slog.Error("failed to close redis store", "error", err)
			}
		}, nil
	case "postgres":
		ds, err := store.NewDatabaseStore(cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return ds, func() {
			if err := ds.Close(); err != nil {
				slog.Error("failed to close database store", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store: %q", cfg.Store)
	}
}

// submitHandler stands in for the guarded write endpoint. Anything reaching
// it has already passed the rate limiter.
func submitHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"accepted"}`))
}
